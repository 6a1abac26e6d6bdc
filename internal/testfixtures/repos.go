package testfixtures

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nekogravitycat/port-booking-backend/internal/booking"
	"github.com/nekogravitycat/port-booking-backend/internal/foodorder"
	"github.com/nekogravitycat/port-booking-backend/internal/refund"
	"github.com/nekogravitycat/port-booking-backend/internal/station"
	"github.com/nekogravitycat/port-booking-backend/internal/user"
)

type stationRepo struct{ s *Store }

func (r stationRepo) GetByID(_ context.Context, id string) (*station.Station, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st, ok := r.s.st.stations[id]
	if !ok {
		return nil, station.ErrNotFound
	}
	c := *st
	return &c, nil
}

func (r stationRepo) GetPort(_ context.Context, id string) (*station.Port, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.st.ports[id]
	if !ok {
		return nil, station.ErrPortNotFound
	}
	return copyPort(p), nil
}

func (r stationRepo) ListPorts(_ context.Context, stationID string) ([]*station.Port, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*station.Port
	for _, p := range r.s.st.ports {
		if p.StationID == stationID {
			out = append(out, copyPort(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

type userRepo struct{ s *Store }

func (r userRepo) GetByID(_ context.Context, id string) (*user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("users.get"); err != nil {
		return nil, err
	}
	u, ok := r.s.st.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	c := *u
	return &c, nil
}

type bookingRepo struct{ s *Store }

func (r bookingRepo) Create(_ context.Context, b *booking.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("bookings.create"); err != nil {
		return err
	}
	b.ID = uuid.NewString()
	b.CreatedAt = r.s.now()
	b.UpdatedAt = b.CreatedAt
	r.s.st.bookings[b.ID] = copyBooking(b)
	return nil
}

func (r bookingRepo) GetByID(_ context.Context, id string) (*booking.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.st.bookings[id]
	if !ok {
		return nil, booking.ErrNotFound
	}
	return copyBooking(b), nil
}

func (r bookingRepo) GetByIDForUpdate(ctx context.Context, id string) (*booking.Booking, error) {
	return r.GetByID(ctx, id)
}

func (r bookingRepo) List(_ context.Context, f booking.Filter) ([]*booking.Booking, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []*booking.Booking
	for _, b := range r.s.st.bookings {
		if f.UserID != "" && b.UserID != f.UserID {
			continue
		}
		if f.PortID != "" && b.PortID != f.PortID {
			continue
		}
		if f.Status != "" && string(b.Status) != f.Status {
			continue
		}
		all = append(all, copyBooking(b))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].TimeSlot.Start.After(all[j].TimeSlot.Start) })

	page, size := max(f.Page, 1), f.PageSize
	if size < 1 {
		size = 20
	}
	from := min((page-1)*size, len(all))
	to := min(from+size, len(all))
	return all[from:to], len(all), nil
}

func (r bookingRepo) Update(_ context.Context, b *booking.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("bookings.update"); err != nil {
		return err
	}
	if _, ok := r.s.st.bookings[b.ID]; !ok {
		return booking.ErrNotFound
	}
	b.UpdatedAt = r.s.now()
	r.s.st.bookings[b.ID] = copyBooking(b)
	return nil
}

func (r bookingRepo) ListHolding(_ context.Context, portID string, from, to time.Time, excludeID string) ([]*booking.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("bookings.list_holding"); err != nil {
		return nil, err
	}
	var out []*booking.Booking
	for _, b := range r.s.st.bookings {
		if b.PortID != portID || b.ID == excludeID || !b.Status.HoldsPort() {
			continue
		}
		if b.TimeSlot.Start.Before(to) && b.TimeSlot.End.After(from) {
			out = append(out, copyBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TimeSlot.Start.Before(out[j].TimeSlot.Start) })
	return out, nil
}

func (r bookingRepo) CountHolding(_ context.Context, portID string, excludeID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, b := range r.s.st.bookings {
		if b.PortID == portID && b.ID != excludeID && b.Status.HoldsPort() {
			n++
		}
	}
	return n, nil
}

func (r bookingRepo) LockPort(_ context.Context, portID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.ports[portID]; !ok {
		return station.ErrPortNotFound
	}
	return nil
}

func (r bookingRepo) SetPortStatus(_ context.Context, portID string, status station.PortStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("ports.set_status"); err != nil {
		return err
	}
	p, ok := r.s.st.ports[portID]
	if !ok {
		return station.ErrPortNotFound
	}
	p.Status = status
	return nil
}

func (r bookingRepo) ReleasePort(_ context.Context, portID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("ports.set_status"); err != nil {
		return err
	}
	p, ok := r.s.st.ports[portID]
	if !ok {
		return station.ErrPortNotFound
	}
	if p.Status == station.PortOccupied {
		p.Status = station.PortAvailable
	}
	return nil
}

type refundRepo struct{ s *Store }

func (r refundRepo) CreateOnce(_ context.Context, rf *refund.Refund) (*refund.Refund, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("refunds.create"); err != nil {
		return nil, false, err
	}
	for _, existing := range r.s.st.refunds {
		if existing.ReferenceID == rf.ReferenceID {
			return copyRefund(existing), false, nil
		}
	}
	rf.ID = uuid.NewString()
	rf.CreatedAt = r.s.now()
	rf.UpdatedAt = rf.CreatedAt
	r.s.st.refunds[rf.ID] = copyRefund(rf)
	return rf, true, nil
}

func (r refundRepo) GetByID(_ context.Context, id string) (*refund.Refund, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rf, ok := r.s.st.refunds[id]
	if !ok {
		return nil, refund.ErrNotFound
	}
	return copyRefund(rf), nil
}

func (r refundRepo) GetByBookingID(_ context.Context, bookingID string) (*refund.Refund, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rf := range r.s.st.refunds {
		if rf.BookingID == bookingID {
			return copyRefund(rf), nil
		}
	}
	return nil, refund.ErrNotFound
}

func (r refundRepo) UpdateStatus(_ context.Context, id string, status refund.Status, entry refund.AuditEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rf, ok := r.s.st.refunds[id]
	if !ok {
		return refund.ErrNotFound
	}
	rf.Status = status
	rf.AuditTrail = append(rf.AuditTrail, entry)
	rf.UpdatedAt = r.s.now()
	return nil
}

type foodOrderRepo struct{ s *Store }

func (r foodOrderRepo) GetByID(_ context.Context, id string) (*foodorder.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.st.orders[id]
	if !ok {
		return nil, foodorder.ErrNotFound
	}
	return copyOrder(o), nil
}

func (r foodOrderRepo) ListOpenByVendor(_ context.Context, vendorID string, from, to time.Time) ([]*foodorder.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*foodorder.Order
	for _, o := range r.s.st.orders {
		if o.VendorID != vendorID || o.Status.IsTerminal() {
			continue
		}
		if o.CreatedAt.Before(from) || o.CreatedAt.After(to) {
			continue
		}
		out = append(out, copyOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r foodOrderRepo) Cancel(_ context.Context, id string, reason string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("food_orders.cancel"); err != nil {
		return err
	}
	o, ok := r.s.st.orders[id]
	if !ok {
		return foodorder.ErrNotFound
	}
	if o.Status.IsTerminal() {
		return foodorder.ErrNotCancelable
	}
	o.Status = foodorder.StatusCancelled
	o.CancelReason = &reason
	o.CancelledAt = &at
	return nil
}
