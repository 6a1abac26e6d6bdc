package booking

import (
	"iter"
	"time"

	"github.com/nekogravitycat/port-booking-backend/internal/station"
)

type PriceOption struct {
	DurationMinutes int
	EstimatedUnits  float64
	TotalAmount     float64
}

type Slot struct {
	Start     time.Time
	End       time.Time
	Available bool
	Prices    []PriceOption
}

// SlotRequest describes one port on one calendar date.
type SlotRequest struct {
	Date     time.Time // only the calendar date in Location is used
	Location *time.Location
	Hours    station.OperatingHours
	Now      time.Time
	Booked   []Interval // confirmed or active bookings on the port
	Port     *station.Port
}

// SlotGenerator enumerates bookable start times inside a station's opening window.
type SlotGenerator struct {
	policy Policy
}

func NewSlotGenerator(policy Policy) SlotGenerator {
	return SlotGenerator{policy: policy}
}

// Generate returns a restartable sequence of slots. Start times step from
// the day's opening time; only starts strictly after now plus the buffer
// are offered, matching what Create accepts.
func (g SlotGenerator) Generate(req SlotRequest) (iter.Seq[Slot], error) {
	w, err := req.Hours.WindowFor(req.Date.In(req.Location).Weekday())
	if err != nil {
		return nil, err
	}
	openAt, closeAt := w.Bounds(req.Date, req.Location)
	step := g.policy.SlotStep

	first := openAt
	if earliest := req.Now.Add(g.policy.Buffer); !earliest.Before(openAt) {
		n := earliest.Sub(openAt)/step + 1
		first = openAt.Add(n * step)
	}

	return func(yield func(Slot) bool) {
		for t := first; t.Before(closeAt); t = t.Add(step) {
			end := t.Add(step)
			if end.After(closeAt) {
				end = closeAt
			}
			slot := Slot{
				Start:     t,
				End:       end,
				Available: !anyContains(req.Booked, t),
			}
			if slot.Available && req.Port != nil {
				slot.Prices = g.prices(req.Port, t, closeAt)
			}
			if !yield(slot) {
				return
			}
		}
	}, nil
}

func (g SlotGenerator) prices(port *station.Port, start, closeAt time.Time) []PriceOption {
	var out []PriceOption
	for _, m := range g.policy.SlotDurations {
		if start.Add(time.Duration(m) * time.Minute).After(closeAt) {
			continue
		}
		q := g.policy.Quote(port, m)
		out = append(out, PriceOption{
			DurationMinutes: m,
			EstimatedUnits:  q.EstimatedUnits,
			TotalAmount:     q.TotalAmount,
		})
	}
	return out
}

func anyContains(intervals []Interval, t time.Time) bool {
	for _, iv := range intervals {
		if iv.Contains(t) {
			return true
		}
	}
	return false
}
