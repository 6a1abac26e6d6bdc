package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(h, m int) time.Time {
	return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC)
}

func TestOverlapDetector_Overlaps(t *testing.T) {
	d := OverlapDetector{Buffer: 5 * time.Minute}
	existing := Interval{Start: at(14, 0), End: at(15, 0)}

	tests := []struct {
		name      string
		candidate Interval
		want      bool
	}{
		{"partial overlap", Interval{at(14, 30), at(15, 30)}, true},
		{"contained", Interval{at(14, 15), at(14, 45)}, true},
		{"contains", Interval{at(13, 0), at(16, 0)}, true},
		{"back to back inside buffer", Interval{at(15, 0), at(16, 0)}, true},
		{"gap smaller than two buffers", Interval{at(15, 9), at(16, 0)}, true},
		{"gap of exactly two buffers", Interval{at(15, 10), at(16, 0)}, false},
		{"well before", Interval{at(12, 0), at(13, 0)}, false},
		{"ends two buffers before", Interval{at(13, 0), at(13, 50)}, false},
		{"ends just inside buffer", Interval{at(13, 0), at(13, 51)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Overlaps(tt.candidate, existing))
			assert.Equal(t, tt.want, d.Overlaps(existing, tt.candidate), "overlap must be symmetric")
		})
	}
}

func TestOverlapDetector_SearchWindowCoversEveryConflict(t *testing.T) {
	d := OverlapDetector{Buffer: 5 * time.Minute}
	candidate := Interval{Start: at(14, 0), End: at(15, 0)}
	window := d.SearchWindow(candidate)

	for m := -120; m <= 120; m++ {
		other := Interval{Start: at(15, 0).Add(time.Duration(m) * time.Minute)}
		other.End = other.Start.Add(30 * time.Minute)
		if d.Overlaps(candidate, other) {
			intersects := other.Start.Before(window.End) && other.End.After(window.Start)
			assert.True(t, intersects, "conflict at offset %d outside search window", m)
		}
	}
}

func TestOverlapDetector_FirstConflict(t *testing.T) {
	d := OverlapDetector{Buffer: 5 * time.Minute}
	mk := func(ref string, start, end time.Time, status Status) *Booking {
		return &Booking{Reference: ref, Status: status, TimeSlot: TimeSlot{Start: start, End: end}}
	}
	existing := []*Booking{
		mk("later", at(15, 0), at(16, 0), StatusConfirmed),
		mk("cancelled", at(13, 0), at(14, 30), StatusCancelled),
		mk("earlier", at(13, 30), at(14, 10), StatusActive),
	}

	got := d.FirstConflict(Interval{at(14, 0), at(15, 0)}, existing)
	if assert.NotNil(t, got) {
		assert.Equal(t, "earlier", got.Reference)
	}
	assert.Nil(t, d.FirstConflict(Interval{at(17, 0), at(18, 0)}, existing))
}
