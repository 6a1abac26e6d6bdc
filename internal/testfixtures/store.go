// Package testfixtures provides in-memory stand-ins for the PostgreSQL
// repositories so services can be exercised without a database.
package testfixtures

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nekogravitycat/port-booking-backend/internal/booking"
	"github.com/nekogravitycat/port-booking-backend/internal/foodorder"
	"github.com/nekogravitycat/port-booking-backend/internal/refund"
	"github.com/nekogravitycat/port-booking-backend/internal/station"
	"github.com/nekogravitycat/port-booking-backend/internal/user"
)

type state struct {
	stations map[string]*station.Station
	ports    map[string]*station.Port
	users    map[string]*user.User
	bookings map[string]*booking.Booking
	refunds  map[string]*refund.Refund
	orders   map[string]*foodorder.Order
}

func newState() *state {
	return &state{
		stations: map[string]*station.Station{},
		ports:    map[string]*station.Port{},
		users:    map[string]*user.User{},
		bookings: map[string]*booking.Booking{},
		refunds:  map[string]*refund.Refund{},
		orders:   map[string]*foodorder.Order{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.stations {
		c.stations[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.ports {
		c.ports[k] = copyPort(v)
	}
	for k, v := range s.bookings {
		c.bookings[k] = copyBooking(v)
	}
	for k, v := range s.refunds {
		c.refunds[k] = copyRefund(v)
	}
	for k, v := range s.orders {
		c.orders[k] = copyOrder(v)
	}
	return c
}

// Store is an in-memory datastore. Transactions run one at a time and are
// rolled back by restoring a snapshot taken when they began.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	st   *state

	failures map[string]error
	// BeforeTx, when set, runs once at the start of the next top-level transaction.
	BeforeTx func()
	now      func() time.Time
}

func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{st: newState(), failures: map[string]error{}, now: now}
}

// FailOn makes the next call of op return err. Ops are named
// "<table>.<method>", e.g. "bookings.create" or "ports.set_status".
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

// fail must be called with mu held.
func (s *Store) fail(op string) error {
	err, ok := s.failures[op]
	if ok {
		delete(s.failures, op)
	}
	return err
}

type txKey struct{}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	if hook := s.BeforeTx; hook != nil {
		s.BeforeTx = nil
		hook()
	}

	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) AddStation(st *station.Station) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.stations[st.ID] = st
}

func (s *Store) AddPort(p *station.Port) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.ports[p.ID] = copyPort(p)
}

func (s *Store) AddUser(u *user.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.users[u.ID] = u
}

// AddBooking stores b as is, skipping every check.
func (s *Store) AddBooking(b *booking.Booking) *booking.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.now()
		b.UpdatedAt = b.CreatedAt
	}
	s.st.bookings[b.ID] = copyBooking(b)
	return b
}

func (s *Store) AddFoodOrder(o *foodorder.Order) *foodorder.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	s.st.orders[o.ID] = copyOrder(o)
	return o
}

func (s *Store) Booking(id string) *booking.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.st.bookings[id]; ok {
		return copyBooking(b)
	}
	return nil
}

// Bookings returns every stored booking ordered by start time.
func (s *Store) Bookings() []*booking.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*booking.Booking, 0, len(s.st.bookings))
	for _, b := range s.st.bookings {
		out = append(out, copyBooking(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TimeSlot.Start.Before(out[j].TimeSlot.Start) })
	return out
}

func (s *Store) Port(id string) *station.Port {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.st.ports[id]; ok {
		return copyPort(p)
	}
	return nil
}

func (s *Store) Refunds() []*refund.Refund {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*refund.Refund, 0, len(s.st.refunds))
	for _, r := range s.st.refunds {
		out = append(out, copyRefund(r))
	}
	return out
}

func (s *Store) FoodOrder(id string) *foodorder.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.st.orders[id]; ok {
		return copyOrder(o)
	}
	return nil
}

// Repository views. Each satisfies the interface of its package.

func (s *Store) StationRepo() station.Repository {
	return stationRepo{s}
}

func (s *Store) UserRepo() user.Repository {
	return userRepo{s}
}

func (s *Store) BookingRepo() booking.Repository {
	return bookingRepo{s}
}

func (s *Store) RefundRepo() refund.Repository {
	return refundRepo{s}
}

func (s *Store) FoodOrderRepo() foodorder.Repository {
	return foodOrderRepo{s}
}

func copyPort(p *station.Port) *station.Port {
	c := *p
	return &c
}

func copyBooking(b *booking.Booking) *booking.Booking {
	c := *b
	if b.Cancellation != nil {
		cc := *b.Cancellation
		c.Cancellation = &cc
	}
	return &c
}

func copyRefund(r *refund.Refund) *refund.Refund {
	c := *r
	c.AuditTrail = slices.Clone(r.AuditTrail)
	return &c
}

func copyOrder(o *foodorder.Order) *foodorder.Order {
	c := *o
	return &c
}
