package cancellation

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/port-booking-backend/internal/booking"
	"github.com/nekogravitycat/port-booking-backend/internal/foodorder"
	"github.com/nekogravitycat/port-booking-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/port-booking-backend/internal/refund"
)

var (
	ErrTooManyCancellations = &apperror.AppError{Code: http.StatusTooManyRequests, Kind: apperror.KindSecurity, Message: "too many cancellations in the last 24 hours"}
	ErrAmountMismatch       = apperror.Security("booking amount does not match")
	ErrNotCancellable       = apperror.Policy("booking can no longer be cancelled")
)

// SecurityContext is what the client sent alongside the cancel request.
type SecurityContext struct {
	ClientAmount *float64 // amount the client believes it paid
	IPAddress    string
	UserAgent    string
}

type Request struct {
	BookingID   string
	RequesterID string
	Reason      string
	Security    SecurityContext
}

type Result struct {
	Booking       *booking.Booking
	Calculation   refund.Calculation
	Refund        *refund.Refund   // nil when not eligible
	CascadedOrder *foodorder.Order // nil when nothing was cancelled
}

type Preview struct {
	BookingID        string
	Reference        string
	CanCancel        bool
	BlockedReason    string
	HoursBeforeStart float64
	Calculation      refund.Calculation
	At               time.Time
}
