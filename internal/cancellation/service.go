package cancellation

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nekogravitycat/port-booking-backend/internal/booking"
	"github.com/nekogravitycat/port-booking-backend/internal/foodorder"
	"github.com/nekogravitycat/port-booking-backend/internal/notify"
	"github.com/nekogravitycat/port-booking-backend/internal/refund"
	"github.com/nekogravitycat/port-booking-backend/internal/user"
)

// Throttle reserves a slot in a per-user trailing window of cancellations.
type Throttle interface {
	// Reserve records member for userID unless limit events already fall in
	// the window. The check and the write are atomic.
	Reserve(ctx context.Context, userID, member string, now time.Time, limit int) (bool, error)
	// Release hands back a reservation whose cancellation did not happen.
	Release(ctx context.Context, userID, member string) error
}

type Service interface {
	PreviewRefund(ctx context.Context, bookingID, requesterID string) (*Preview, error)
	Cancel(ctx context.Context, req Request) (*Result, error)
}

// amountTolerance absorbs float rounding between client and server totals.
const amountTolerance = 0.01

type Deps struct {
	Bookings   booking.Service
	Refunds    refund.Repository
	FoodOrders foodorder.Service
	Users      user.Repository
	Throttle   Throttle
	Events     notify.Dispatcher
	Logger     *zap.Logger
	Now        func() time.Time
}

type service struct {
	Deps
	limit int
}

// NewService builds the orchestrator. limit is the number of cancellations a
// user may make in 24 hours before further ones are refused.
func NewService(d Deps, limit int) Service {
	if d.Events == nil {
		d.Events = notify.Nop{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &service{Deps: d, limit: limit}
}

func (s *service) PreviewRefund(ctx context.Context, bookingID, requesterID string) (*Preview, error) {
	b, err := s.Bookings.GetByID(ctx, bookingID, requesterID)
	if err != nil {
		return nil, err
	}
	now := s.Now()
	hours := b.TimeSlot.Start.Sub(now).Hours()
	p := &Preview{
		BookingID:        b.ID,
		Reference:        b.Reference,
		CanCancel:        true,
		HoursBeforeStart: math.Round(hours*100) / 100,
		Calculation:      s.calculate(b, hours),
		At:               now,
	}
	if err := checkStatus(b); err != nil {
		p.CanCancel = false
		p.BlockedReason = err.Error()
	}
	return p, nil
}

func (s *service) Cancel(ctx context.Context, req Request) (*Result, error) {
	// 1. Ownership and status
	b, err := s.Bookings.GetByID(ctx, req.BookingID, req.RequesterID)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(b); err != nil {
		return nil, err
	}

	// 2. Rate limit fails closed. The slot is handed back if the cancellation
	// does not go through.
	now := s.Now()
	attempt := b.ID + ":" + uuid.NewString()
	if err := s.reserve(ctx, req, attempt, now); err != nil {
		return nil, err
	}
	res, err := s.cancel(ctx, req, now)
	if err != nil {
		if rerr := s.Throttle.Release(context.WithoutCancel(ctx), req.RequesterID, attempt); rerr != nil {
			s.Logger.Warn("release cancellation slot failed", zap.String("user_id", req.RequesterID), zap.Error(rerr))
		}
		return nil, err
	}

	// 3. Best-effort cascade, never fails the cancellation
	order := s.cascade(ctx, res.Booking)
	res.CascadedOrder = order

	s.publish(notify.BookingCancelled, res.Booking, "", map[string]any{"reason": req.Reason})
	if res.Refund != nil {
		s.publish(notify.RefundInitiated, res.Booking, res.Refund.ID, map[string]any{"amount": res.Refund.Calculation.FinalRefundAmount})
	}
	if order != nil {
		s.publish(notify.FoodOrderCancelled, res.Booking, "", map[string]any{"food_order_id": order.ID})
	}
	return res, nil
}

func (s *service) reserve(ctx context.Context, req Request, member string, now time.Time) error {
	ok, err := s.Throttle.Reserve(ctx, req.RequesterID, member, now, s.limit)
	if err != nil {
		s.Logger.Error("cancellation throttle unavailable", zap.String("user_id", req.RequesterID), zap.Error(err))
		return ErrTooManyCancellations
	}
	if !ok {
		s.Logger.Warn("cancellation rate limit hit",
			zap.String("user_id", req.RequesterID),
			zap.Int("limit", s.limit),
			zap.String("ip", req.Security.IPAddress),
		)
		return ErrTooManyCancellations
	}
	return nil
}

// cancel checks the amount, prices the refund and records it against the
// locked booking, so a concurrent extension cannot leave a stale total behind.
func (s *service) cancel(ctx context.Context, req Request, now time.Time) (*Result, error) {
	var (
		calc refund.Calculation
		rf   *refund.Refund
	)
	cancelled, err := s.Bookings.Cancel(ctx, booking.CancelRequest{
		BookingID:   req.BookingID,
		RequesterID: req.RequesterID,
		Reason:      req.Reason,
		Within: func(ctx context.Context, cb *booking.Booking) error {
			if err := s.checkAmount(cb, req); err != nil {
				return err
			}
			calc = s.calculate(cb, cb.TimeSlot.Start.Sub(now).Hours())
			rf = nil
			if !calc.IsEligible || cb.PaymentStatus != booking.PaymentPaid {
				return nil
			}
			cb.Cancellation.RefundEligible = true
			cb.PaymentStatus = booking.PaymentPartialRefund
			stored, _, err := s.Refunds.CreateOnce(ctx, s.newRefund(cb, calc, req, now))
			rf = stored
			return err
		},
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("booking cancelled",
		zap.String("booking_id", cancelled.ID),
		zap.String("user_id", req.RequesterID),
		zap.Float64("hours_before_start", cancelled.Cancellation.HoursBeforeStart),
		zap.Float64("refund", calc.FinalRefundAmount),
	)
	return &Result{Booking: cancelled, Calculation: calc, Refund: rf}, nil
}

func (s *service) checkAmount(b *booking.Booking, req Request) error {
	ca := req.Security.ClientAmount
	if ca == nil || math.Abs(*ca-b.Pricing.TotalAmount) <= amountTolerance {
		return nil
	}
	s.Logger.Warn("cancellation amount mismatch",
		zap.String("booking_id", b.ID),
		zap.Float64("client_amount", *ca),
		zap.Float64("booking_amount", b.Pricing.TotalAmount),
		zap.String("ip", req.Security.IPAddress),
		zap.String("user_agent", req.Security.UserAgent),
	)
	return ErrAmountMismatch
}

func (s *service) calculate(b *booking.Booking, hours float64) refund.Calculation {
	return refund.Calculate(b.Pricing.TotalAmount, b.Pricing.PlatformFee, hours)
}

func (s *service) newRefund(b *booking.Booking, calc refund.Calculation, req Request, now time.Time) *refund.Refund {
	return &refund.Refund{
		ReferenceID: refund.ReferenceFor(b.Reference),
		BookingID:   b.ID,
		UserID:      b.UserID,
		VendorID:    b.VendorID,
		Calculation: calc,
		Status:      refund.StatusPending,
		Reason:      req.Reason,
		AuditTrail: []refund.AuditEntry{{
			Action:    "refund_initiated",
			Actor:     req.RequesterID,
			Timestamp: now,
			Metadata: map[string]any{
				"hours_before_start": calc.HoursBeforeStart,
				"refund_percentage":  calc.RefundPercentage,
				"ip_address":         req.Security.IPAddress,
				"user_agent":         req.Security.UserAgent,
			},
		}},
	}
}

// cascade cancels the food order linked to b, if any. Failures are logged.
func (s *service) cascade(ctx context.Context, b *booking.Booking) *foodorder.Order {
	in := foodorder.MatchInput{
		OrderID:          b.FoodOrderID,
		BookingID:        b.ID,
		VendorID:         b.VendorID,
		BookingCreatedAt: b.CreatedAt,
	}
	if u, err := s.Users.GetByID(ctx, b.UserID); err == nil {
		in.Email = u.Email
		if u.Phone != nil {
			in.Phone = *u.Phone
		}
	} else {
		s.Logger.Warn("load user for food order match failed", zap.String("user_id", b.UserID), zap.Error(err))
	}

	order, strategy, err := s.FoodOrders.CancelLinked(ctx, in, "linked booking "+b.Reference+" cancelled")
	switch {
	case errors.Is(err, foodorder.ErrNotCancelable):
		s.Logger.Info("linked food order already closed", zap.String("booking_id", b.ID), zap.String("strategy", strategy))
		return nil
	case err != nil:
		s.Logger.Warn("cascade food order cancel failed", zap.String("booking_id", b.ID), zap.String("strategy", strategy), zap.Error(err))
		return nil
	case order == nil:
		return nil
	}
	s.Logger.Info("linked food order cancelled",
		zap.String("booking_id", b.ID),
		zap.String("food_order_id", order.ID),
		zap.String("strategy", strategy),
	)
	return order
}

func (s *service) publish(t notify.EventType, b *booking.Booking, refundID string, data map[string]any) {
	notify.Go(s.Logger, s.Events, notify.Event{
		Type:       t,
		BookingID:  b.ID,
		Reference:  b.Reference,
		UserID:     b.UserID,
		VendorID:   b.VendorID,
		RefundID:   refundID,
		OccurredAt: s.Now(),
		Data:       data,
	})
}

func checkStatus(b *booking.Booking) error {
	switch b.Status {
	case booking.StatusPending, booking.StatusConfirmed:
		return nil
	case booking.StatusCancelled:
		return booking.ErrAlreadyCancelled
	}
	return ErrNotCancellable
}
