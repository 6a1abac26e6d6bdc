package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type EventType string

const (
	BookingCreated     EventType = "booking.created"
	BookingExtended    EventType = "booking.extended"
	BookingCheckedIn   EventType = "booking.checked_in"
	BookingCompleted   EventType = "booking.completed"
	BookingExpired     EventType = "booking.expired"
	BookingCancelled   EventType = "booking.cancelled"
	RefundInitiated    EventType = "refund.initiated"
	FoodOrderCancelled EventType = "food_order.cancelled"
)

// Event is the envelope handed to whichever backend delivers notifications.
type Event struct {
	Type       EventType      `json:"type"`
	BookingID  string         `json:"booking_id"`
	Reference  string         `json:"reference,omitempty"`
	UserID     string         `json:"user_id"`
	VendorID   string         `json:"vendor_id,omitempty"`
	RefundID   string         `json:"refund_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

type Dispatcher interface {
	Publish(ctx context.Context, ev Event) error
}

// ExpiryScheduler arranges for a confirmed booking to be expired once its
// check-in grace period has passed.
type ExpiryScheduler interface {
	ScheduleExpiry(ctx context.Context, bookingID string, at time.Time) error
}

// Nop discards everything. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

func (Nop) ScheduleExpiry(context.Context, string, time.Time) error { return nil }

const publishTimeout = 5 * time.Second

// Go publishes ev on its own goroutine. Failures are logged and never reach the caller.
func Go(logger *zap.Logger, d Dispatcher, ev Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := d.Publish(ctx, ev); err != nil {
			logger.Warn("publish event failed",
				zap.String("type", string(ev.Type)),
				zap.String("booking_id", ev.BookingID),
				zap.Error(err),
			)
		}
	}()
}

// GoExpiry schedules the expiry check in the background so a slow broker
// never delays the caller.
func GoExpiry(logger *zap.Logger, sch ExpiryScheduler, bookingID string, at time.Time) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := sch.ScheduleExpiry(ctx, bookingID, at); err != nil {
			logger.Warn("schedule expiry failed", zap.String("booking_id", bookingID), zap.Error(err))
		}
	}()
}
