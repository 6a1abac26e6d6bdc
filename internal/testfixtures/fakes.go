package testfixtures

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/nekogravitycat/port-booking-backend/internal/notify"
)

// Clock is a settable time source.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock(t time.Time) *Clock {
	return &Clock{t: t}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// Recorder captures published events and scheduled expiries.
type Recorder struct {
	mu       sync.Mutex
	events   []notify.Event
	expiries map[string]time.Time
}

func NewRecorder() *Recorder {
	return &Recorder{expiries: map[string]time.Time{}}
}

func (r *Recorder) Publish(_ context.Context, ev notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) ScheduleExpiry(_ context.Context, bookingID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expiries[bookingID] = at
	return nil
}

func (r *Recorder) Types() []notify.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

// Has reports whether an event of type t was published.
func (r *Recorder) Has(t notify.EventType) bool {
	return slices.Contains(r.Types(), t)
}

func (r *Recorder) Expiry(bookingID string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	at, ok := r.expiries[bookingID]
	return at, ok
}

// Throttle is an in-memory sliding window. Err, when set, is returned by Reserve.
type Throttle struct {
	mu     sync.Mutex
	period time.Duration
	events map[string]map[string]time.Time
	Err    error
}

func NewThrottle(period time.Duration) *Throttle {
	return &Throttle{period: period, events: map[string]map[string]time.Time{}}
}

// Count returns how many events of userID fall inside the period ending at now.
func (t *Throttle) Count(_ context.Context, userID string, now time.Time) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count(userID, now), nil
}

func (t *Throttle) count(userID string, now time.Time) int {
	n := 0
	for _, at := range t.events[userID] {
		if !at.Before(now.Add(-t.period)) {
			n++
		}
	}
	return n
}

// Record adds an event unconditionally.
func (t *Throttle) Record(_ context.Context, userID, member string, now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.events[userID] == nil {
		t.events[userID] = map[string]time.Time{}
	}
	t.events[userID][member] = now
	return nil
}

func (t *Throttle) Reserve(_ context.Context, userID, member string, now time.Time, limit int) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Err != nil {
		return false, t.Err
	}
	if _, ok := t.events[userID][member]; ok {
		return true, nil
	}
	if t.count(userID, now) >= limit {
		return false, nil
	}
	if t.events[userID] == nil {
		t.events[userID] = map[string]time.Time{}
	}
	t.events[userID][member] = now
	return true, nil
}

func (t *Throttle) Release(_ context.Context, userID, member string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.events[userID], member)
	return nil
}
