package station

import (
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

// Window is a day's bookable range in minutes from local midnight.
// CloseMinute exceeds 1440 when the window crosses midnight.
type Window struct {
	OpenMinute  int
	CloseMinute int
}

// WindowFor returns the operating window for the weekday.
func (h OperatingHours) WindowFor(day time.Weekday) (Window, error) {
	d, ok := h[strings.ToLower(day.String())]
	if !ok || d.Is24Hours {
		return Window{OpenMinute: 0, CloseMinute: minutesPerDay}, nil
	}

	open, err := parseClock(d.Open)
	if err != nil {
		return Window{}, ErrInvalidOpeningHours
	}
	closing, err := parseClock(d.Close)
	if err != nil {
		return Window{}, ErrInvalidOpeningHours
	}

	if closing <= open {
		closing += minutesPerDay
	}
	return Window{OpenMinute: open, CloseMinute: closing}, nil
}

// Bounds returns the absolute open and close instants of the window on date's local day.
func (w Window) Bounds(date time.Time, loc *time.Location) (time.Time, time.Time) {
	y, m, d := date.In(loc).Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return midnight.Add(time.Duration(w.OpenMinute) * time.Minute),
		midnight.Add(time.Duration(w.CloseMinute) * time.Minute)
}

// Allows reports whether [start, end) fits inside an operating window.
// The previous day's window is also tried so that bookings after midnight
// inside an overnight window are accepted. A window closing at midnight
// continues into the next day when that day opens at midnight.
func (h OperatingHours) Allows(start, end time.Time, loc *time.Location) (bool, error) {
	for _, offset := range []int{0, -1} {
		day := start.In(loc).AddDate(0, 0, offset)
		w, err := h.WindowFor(day.Weekday())
		if err != nil {
			return false, err
		}
		open, closing := w.Bounds(day, loc)
		if start.Before(open) {
			continue
		}
		closing, err = h.extendAcrossMidnight(w, day, closing, end, loc)
		if err != nil {
			return false, err
		}
		if !end.After(closing) {
			return true, nil
		}
	}
	return false, nil
}

// extendAcrossMidnight pushes closing forward through following days whose
// windows open at midnight, stopping once end is covered.
func (h OperatingHours) extendAcrossMidnight(w Window, day, closing, end time.Time, loc *time.Location) (time.Time, error) {
	for i := 0; i < 7 && end.After(closing) && w.CloseMinute == minutesPerDay; i++ {
		day = day.AddDate(0, 0, 1)
		next, err := h.WindowFor(day.Weekday())
		if err != nil {
			return closing, err
		}
		if next.OpenMinute != 0 {
			break
		}
		_, closing = next.Bounds(day, loc)
		w = next
	}
	return closing, nil
}

// Validate checks every configured weekday parses.
func (h OperatingHours) Validate() error {
	for name, d := range h {
		if !isWeekdayName(name) {
			return ErrInvalidOpeningHours
		}
		if d.Is24Hours {
			continue
		}
		if _, err := parseClock(d.Open); err != nil {
			return ErrInvalidOpeningHours
		}
		if _, err := parseClock(d.Close); err != nil {
			return ErrInvalidOpeningHours
		}
	}
	return nil
}

func isWeekdayName(name string) bool {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if name == strings.ToLower(d.String()) {
			return true
		}
	}
	return false
}

// parseClock accepts HH:MM:SS or HH:MM and returns minutes from midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		t, err = time.Parse("15:04", s)
	}
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
