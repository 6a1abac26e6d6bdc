package booking

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nekogravitycat/port-booking-backend/internal/db"
	"github.com/nekogravitycat/port-booking-backend/internal/notify"
	"github.com/nekogravitycat/port-booking-backend/internal/station"
)

type CreateRequest struct {
	UserID          string
	StationID       string
	PortID          string
	StartTime       time.Time
	EndTime         *time.Time // optional, must equal StartTime + DurationMinutes
	DurationMinutes int
	FoodOrderID     *string
}

type ExtendRequest struct {
	BookingID         string
	RequesterID       string
	AdditionalMinutes int
}

type CancelRequest struct {
	BookingID   string
	RequesterID string
	Reason      string
	// Within runs inside the cancelling transaction on the locked booking,
	// after it is marked cancelled and before it is saved. It may set the
	// refund eligibility and payment status. An error rolls the cancellation back.
	Within func(ctx context.Context, b *Booking) error
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Booking, error)
	GetByID(ctx context.Context, id string, requesterID string) (*Booking, error)
	List(ctx context.Context, filter Filter) ([]*Booking, int, error)
	Extend(ctx context.Context, req ExtendRequest) (*Booking, error)
	CheckIn(ctx context.Context, id string, requesterID string) (*Booking, error)
	CompleteEarly(ctx context.Context, id string, requesterID string) (*Booking, error)
	// Expire moves a confirmed booking whose grace period has passed to expired.
	// Bookings no longer confirmed are returned unchanged.
	Expire(ctx context.Context, id string) (*Booking, error)
	Cancel(ctx context.Context, req CancelRequest) (*Booking, error)
}

// Deps are the collaborators of the booking service.
type Deps struct {
	Repo     Repository
	Stations station.Service
	Tx       db.TxManager
	Events   notify.Dispatcher
	Expiry   notify.ExpiryScheduler
	Logger   *zap.Logger
	Now      func() time.Time
}

type service struct {
	repo     Repository
	stations station.Service
	tx       db.TxManager
	events   notify.Dispatcher
	expiry   notify.ExpiryScheduler
	logger   *zap.Logger
	now      func() time.Time
	policy   Policy
	detector OverlapDetector
}

func NewService(d Deps, policy Policy) Service {
	s := &service{
		repo:     d.Repo,
		stations: d.Stations,
		tx:       d.Tx,
		events:   d.Events,
		expiry:   d.Expiry,
		logger:   d.Logger,
		now:      d.Now,
		policy:   policy,
		detector: policy.Detector(),
	}
	if s.events == nil {
		s.events = notify.Nop{}
	}
	if s.expiry == nil {
		s.expiry = notify.Nop{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*Booking, error) {
	now := s.now()

	// 1. Validate shape
	if !s.policy.validDuration(req.DurationMinutes) {
		return nil, ErrInvalidDuration
	}
	start := req.StartTime
	end := start.Add(time.Duration(req.DurationMinutes) * time.Minute)
	if req.EndTime != nil && !req.EndTime.Equal(end) {
		return nil, ErrInvalidTimeRange
	}
	if !start.After(now.Add(s.policy.Buffer)) {
		return nil, ErrStartTooSoon
	}

	// 2. Validate station and port
	st, err := s.stations.GetByID(ctx, req.StationID)
	if err != nil {
		return nil, err
	}
	if !st.IsActive {
		return nil, ErrStationInactive
	}
	port, err := s.stations.GetPortOfStation(ctx, st.ID, req.PortID)
	if err != nil {
		return nil, err
	}
	if !port.IsOperational() {
		return nil, ErrPortUnavailable
	}
	ok, err := st.OperatingHours.Allows(start, end, st.Location())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrOutsideHours
	}

	// 3. Pre-check outside the transaction to fail fast
	candidate := Interval{Start: start, End: end}
	if err := s.checkConflicts(ctx, port.ID, candidate, ""); err != nil {
		return nil, err
	}

	b := &Booking{
		Reference: newReference(now),
		PortID:    port.ID,
		StationID: st.ID,
		VendorID:  st.VendorID,
		UserID:    req.UserID,
		TimeSlot: TimeSlot{
			Start:           start,
			End:             end,
			DurationMinutes: req.DurationMinutes,
		},
		Pricing:       s.policy.Quote(port, req.DurationMinutes),
		Status:        StatusConfirmed,
		PaymentStatus: PaymentPaid,
		FoodOrderID:   req.FoodOrderID,
	}

	// 4. Lock the port, re-check, insert and mark the port occupied atomically
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.LockPort(ctx, port.ID); err != nil {
			return err
		}
		if err := s.checkConflicts(ctx, port.ID, candidate, ""); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, b); err != nil {
			return err
		}
		return s.repo.SetPortStatus(ctx, port.ID, station.PortOccupied)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking created",
		zap.String("booking_id", b.ID),
		zap.String("reference", b.Reference),
		zap.String("port_id", b.PortID),
		zap.Time("start", start),
		zap.Int("duration_minutes", req.DurationMinutes),
	)
	s.publish(notify.BookingCreated, b, map[string]any{"total_amount": b.Pricing.TotalAmount})
	notify.GoExpiry(s.logger, s.expiry, b.ID, start.Add(s.policy.ExpiryGrace))
	return b, nil
}

func (s *service) GetByID(ctx context.Context, id string, requesterID string) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.UserID != requesterID {
		return nil, ErrPermissionDenied
	}
	return b, nil
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Booking, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *service) Extend(ctx context.Context, req ExtendRequest) (*Booking, error) {
	if req.AdditionalMinutes <= 0 {
		return nil, ErrInvalidExtension
	}

	var out *Booking
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		b, err := s.lockOwned(ctx, req.BookingID, req.RequesterID)
		if err != nil {
			return err
		}
		if !b.Status.HoldsPort() {
			return ErrInvalidStatus
		}
		newDuration := b.TimeSlot.DurationMinutes + req.AdditionalMinutes
		if !s.policy.validDuration(newDuration) {
			return ErrInvalidDuration
		}

		st, port, err := s.stationAndPort(ctx, b)
		if err != nil {
			return err
		}
		newEnd := b.TimeSlot.End.Add(time.Duration(req.AdditionalMinutes) * time.Minute)
		ok, err := st.OperatingHours.Allows(b.TimeSlot.Start, newEnd, st.Location())
		if err != nil {
			return err
		}
		if !ok {
			return ErrOutsideHours
		}

		if err := s.repo.LockPort(ctx, b.PortID); err != nil {
			return err
		}
		if err := s.checkConflicts(ctx, b.PortID, Interval{Start: b.TimeSlot.Start, End: newEnd}, b.ID); err != nil {
			return err
		}

		// Extra time is billed at the rate applying when the original slot ends.
		rate := s.policy.RateAt(port, b.TimeSlot.End, st.Location())
		units, cost := energyCost(port.PowerOutputKW, req.AdditionalMinutes, rate)
		b.TimeSlot.End = newEnd
		b.TimeSlot.DurationMinutes = newDuration
		b.Pricing.EstimatedUnits = round2(b.Pricing.EstimatedUnits + units)
		b.Pricing.BaseCost = round2(b.Pricing.BaseCost + cost)
		b.Pricing.MerchantAmount = round2(b.Pricing.MerchantAmount + cost)
		b.Pricing.TotalAmount = round2(b.Pricing.TotalAmount + cost)

		if err := s.repo.Update(ctx, b); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking extended",
		zap.String("booking_id", out.ID),
		zap.Int("additional_minutes", req.AdditionalMinutes),
		zap.Time("new_end", out.TimeSlot.End),
	)
	s.publish(notify.BookingExtended, out, map[string]any{
		"additional_minutes": req.AdditionalMinutes,
		"total_amount":       out.Pricing.TotalAmount,
	})
	return out, nil
}

func (s *service) CheckIn(ctx context.Context, id string, requesterID string) (*Booking, error) {
	var out *Booking
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		b, err := s.lockOwned(ctx, id, requesterID)
		if err != nil {
			return err
		}
		if b.Status != StatusConfirmed {
			return ErrInvalidStatus
		}
		now := s.now()
		window := Interval{Start: b.TimeSlot.Start.Add(-s.policy.Buffer), End: b.TimeSlot.End}
		if !window.Contains(now) {
			return ErrCheckInWindow
		}

		b.Status = StatusActive
		b.ActualUsage.ActualStart = &now
		if err := s.repo.Update(ctx, b); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking checked in", zap.String("booking_id", out.ID))
	s.publish(notify.BookingCheckedIn, out, nil)
	return out, nil
}

func (s *service) CompleteEarly(ctx context.Context, id string, requesterID string) (*Booking, error) {
	var out *Booking
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		b, err := s.lockOwned(ctx, id, requesterID)
		if err != nil {
			return err
		}
		if !b.Status.HoldsPort() {
			return ErrInvalidStatus
		}
		st, port, err := s.stationAndPort(ctx, b)
		if err != nil {
			return err
		}

		now := s.now()
		actualEnd := now
		if actualEnd.After(b.TimeSlot.End) {
			actualEnd = b.TimeSlot.End
		}
		actualStart := b.TimeSlot.Start
		if b.ActualUsage.ActualStart != nil {
			actualStart = *b.ActualUsage.ActualStart
		}

		charged := s.chargedMinutes(actualEnd.Sub(actualStart), b.TimeSlot.DurationMinutes)
		unused := b.TimeSlot.DurationMinutes - charged
		rate := s.policy.RateAt(port, actualEnd, st.Location())
		_, refund := energyCost(port.PowerOutputKW, unused, rate)
		refund = math.Min(refund, b.Pricing.BaseCost)
		final := round2(b.Pricing.TotalAmount - refund)

		b.Status = StatusCompleted
		b.ActualUsage.ActualStart = &actualStart
		b.ActualUsage.ActualEnd = &actualEnd
		b.ActualUsage.ChargedMinutes = &charged
		b.ActualUsage.EarlyRefund = &refund
		b.ActualUsage.FinalAmount = &final
		if refund > 0 && b.PaymentStatus == PaymentPaid {
			b.PaymentStatus = PaymentPartialRefund
		}

		if err := s.repo.Update(ctx, b); err != nil {
			return err
		}
		if err := s.releasePort(ctx, b); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking completed early",
		zap.String("booking_id", out.ID),
		zap.Int("charged_minutes", *out.ActualUsage.ChargedMinutes),
		zap.Float64("refund", *out.ActualUsage.EarlyRefund),
	)
	s.publish(notify.BookingCompleted, out, map[string]any{
		"final_amount": *out.ActualUsage.FinalAmount,
		"refund":       *out.ActualUsage.EarlyRefund,
	})
	return out, nil
}

// chargedMinutes rounds elapsed time up to whole minutes, applies the
// minimum charge and caps the result at the booked duration.
func (s *service) chargedMinutes(elapsed time.Duration, booked int) int {
	if elapsed < 0 {
		elapsed = 0
	}
	charged := int(math.Ceil(elapsed.Minutes()))
	if floor := int(s.policy.MinChargeDuration / time.Minute); charged < floor {
		charged = floor
	}
	return min(charged, booked)
}

func (s *service) Expire(ctx context.Context, id string) (*Booking, error) {
	var (
		out     *Booking
		expired bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		b, err := s.repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		out = b
		if b.Status != StatusConfirmed {
			return nil
		}
		if s.now().Before(b.TimeSlot.Start.Add(s.policy.ExpiryGrace)) {
			return ErrNotExpirable
		}

		b.Status = StatusExpired
		if err := s.repo.Update(ctx, b); err != nil {
			return err
		}
		expired = true
		return s.releasePort(ctx, b)
	})
	if err != nil {
		return nil, err
	}

	if expired {
		s.logger.Info("booking expired", zap.String("booking_id", out.ID))
		s.publish(notify.BookingExpired, out, nil)
	}
	return out, nil
}

func (s *service) Cancel(ctx context.Context, req CancelRequest) (*Booking, error) {
	var out *Booking
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		b, err := s.lockOwned(ctx, req.BookingID, req.RequesterID)
		if err != nil {
			return err
		}
		switch b.Status {
		case StatusPending, StatusConfirmed:
		case StatusCancelled:
			return ErrAlreadyCancelled
		default:
			return ErrInvalidStatus
		}

		now := s.now()
		b.Status = StatusCancelled
		b.Cancellation = &Cancellation{
			CancelledBy:      req.RequesterID,
			Reason:           req.Reason,
			CancelledAt:      now,
			HoursBeforeStart: round2(b.TimeSlot.Start.Sub(now).Hours()),
		}
		if req.Within != nil {
			if err := req.Within(ctx, b); err != nil {
				return err
			}
		}

		if err := s.repo.Update(ctx, b); err != nil {
			return err
		}
		if err := s.releasePort(ctx, b); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// checkConflicts loads holding bookings near candidate and lets the detector decide.
func (s *service) checkConflicts(ctx context.Context, portID string, candidate Interval, excludeID string) error {
	window := s.detector.SearchWindow(candidate)
	existing, err := s.repo.ListHolding(ctx, portID, window.Start, window.End, excludeID)
	if err != nil {
		return err
	}
	if c := s.detector.FirstConflict(candidate, existing); c != nil {
		return newConflictError(c)
	}
	return nil
}

// releasePort marks an occupied port available once nothing else holds it.
// Ports under maintenance or offline keep their status.
func (s *service) releasePort(ctx context.Context, b *Booking) error {
	n, err := s.repo.CountHolding(ctx, b.PortID, b.ID)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	err = s.repo.ReleasePort(ctx, b.PortID)
	if errors.Is(err, station.ErrPortNotFound) {
		s.logger.Warn("port vanished while releasing", zap.String("port_id", b.PortID))
		return nil
	}
	return err
}

func (s *service) lockOwned(ctx context.Context, id string, requesterID string) (*Booking, error) {
	b, err := s.repo.GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.UserID != requesterID {
		return nil, ErrPermissionDenied
	}
	return b, nil
}

func (s *service) stationAndPort(ctx context.Context, b *Booking) (*station.Station, *station.Port, error) {
	st, err := s.stations.GetByID(ctx, b.StationID)
	if err != nil {
		return nil, nil, err
	}
	port, err := s.stations.GetPort(ctx, b.PortID)
	if err != nil {
		return nil, nil, err
	}
	return st, port, nil
}

func (s *service) publish(t notify.EventType, b *Booking, data map[string]any) {
	notify.Go(s.logger, s.events, notify.Event{
		Type:       t,
		BookingID:  b.ID,
		Reference:  b.Reference,
		UserID:     b.UserID,
		VendorID:   b.VendorID,
		OccurredAt: s.now(),
		Data:       data,
	})
}

// newReference returns a short human-readable booking code such as BK-260218-3F9A1C2E.
func newReference(now time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "BK-" + now.UTC().Format("060102") + "-" + strings.ToUpper(id[:8])
}
