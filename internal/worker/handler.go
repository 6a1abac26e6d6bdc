// Package worker consumes the background jobs produced by the booking core:
// event deliveries (which also settle initiated refunds) and expiry of
// bookings whose holder never checked in.
package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/nekogravitycat/port-booking-backend/internal/booking"
	"github.com/nekogravitycat/port-booking-backend/internal/notify"
	"github.com/nekogravitycat/port-booking-backend/internal/refund"
)

// systemActor is recorded in audit trails for changes made by the worker.
const systemActor = "system"

type Handler struct {
	bookings booking.Service
	refunds  refund.Service
	logger   *zap.Logger
}

func NewHandler(bookings booking.Service, refunds refund.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{bookings: bookings, refunds: refunds, logger: logger}
}

// NewServeMux routes asynq task types to h.
func NewServeMux(h *Handler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(notify.TypeDeliver, h.HandleDeliver)
	mux.HandleFunc(notify.TypeExpireBooking, h.HandleExpire)
	return mux
}

func (h *Handler) HandleDeliver(ctx context.Context, t *asynq.Task) error {
	ev, err := notify.ParseEvent(t)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return h.HandleEvent(ctx, ev)
}

// HandleEvent processes one event regardless of the transport it came from.
func (h *Handler) HandleEvent(ctx context.Context, ev notify.Event) error {
	log := h.logger.With(
		zap.String("event", string(ev.Type)),
		zap.String("booking_id", ev.BookingID),
		zap.String("user_id", ev.UserID),
	)

	switch ev.Type {
	case notify.RefundInitiated:
		if ev.RefundID == "" {
			log.Warn("refund event without refund id")
			return nil
		}
		_, err := h.refunds.Settle(ctx, ev.RefundID, systemActor)
		if errors.Is(err, refund.ErrNotFound) || errors.Is(err, refund.ErrInvalidTransition) {
			log.Warn("refund not settled", zap.String("refund_id", ev.RefundID), zap.Error(err))
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
		if err != nil {
			return fmt.Errorf("settle refund %s failed: %w", ev.RefundID, err)
		}
	default:
		// User-facing notifications are sent by a downstream service reading
		// the same exchange; here the event is only recorded.
		log.Info("event delivered", zap.String("reference", ev.Reference))
	}
	return nil
}

func (h *Handler) HandleExpire(ctx context.Context, t *asynq.Task) error {
	p, err := notify.ParseExpire(t)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	b, err := h.bookings.Expire(ctx, p.BookingID)
	switch {
	case errors.Is(err, booking.ErrNotFound):
		h.logger.Warn("expiry for unknown booking", zap.String("booking_id", p.BookingID))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	case err != nil:
		// ErrNotExpirable lands here too; asynq retries with backoff.
		return fmt.Errorf("expire booking %s failed: %w", p.BookingID, err)
	}

	h.logger.Info("expiry processed",
		zap.String("booking_id", b.ID),
		zap.String("status", string(b.Status)),
	)
	return nil
}
