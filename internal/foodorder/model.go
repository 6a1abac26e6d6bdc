package foodorder

import (
	"time"

	"github.com/nekogravitycat/port-booking-backend/internal/pkg/apperror"
)

var (
	ErrNotFound      = apperror.NotFound("food order not found")
	ErrNotCancelable = apperror.Policy("food order can no longer be cancelled")
)

type Status string

const (
	StatusPlaced    Status = "placed"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Order is a meal pre-ordered from the station's vendor for pickup during a
// charging session. It is only loosely linked to its booking.
type Order struct {
	ID           string
	VendorID     string
	UserID       *string // nil for guest orders
	BookingID    *string
	ContactEmail string
	ContactPhone string
	TotalAmount  float64
	Status       Status
	CancelReason *string
	CancelledAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
