package booking

import "time"

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Expand widens the interval by d on both edges.
func (i Interval) Expand(d time.Duration) Interval {
	return Interval{Start: i.Start.Add(-d), End: i.End.Add(d)}
}

// Contains reports whether t falls inside [Start, End).
func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

// OverlapDetector decides whether two bookings collide. It is used by both
// the pre-check and the in-transaction re-check so the two cannot drift.
type OverlapDetector struct {
	Buffer time.Duration
}

// Overlaps reports whether a and b intersect once each is widened by the buffer.
func (d OverlapDetector) Overlaps(a, b Interval) bool {
	ea, eb := a.Expand(d.Buffer), b.Expand(d.Buffer)
	return ea.Start.Before(eb.End) && ea.End.After(eb.Start)
}

// SearchWindow is the raw range a stored booking must intersect to possibly
// overlap candidate. Repositories filter on it; Overlaps makes the final call.
func (d OverlapDetector) SearchWindow(candidate Interval) Interval {
	return candidate.Expand(2 * d.Buffer)
}

// FirstConflict returns the earliest existing booking that overlaps candidate, or nil.
func (d OverlapDetector) FirstConflict(candidate Interval, existing []*Booking) *Booking {
	var first *Booking
	for _, b := range existing {
		if !b.Status.HoldsPort() || !d.Overlaps(candidate, b.TimeSlot.Interval()) {
			continue
		}
		if first == nil || b.TimeSlot.Start.Before(first.TimeSlot.Start) {
			first = b
		}
	}
	return first
}
