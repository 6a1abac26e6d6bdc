package booking

import (
	"fmt"
	"net/http"
	"time"

	"github.com/nekogravitycat/port-booking-backend/internal/pkg/apperror"
)

var (
	ErrNotFound         = apperror.NotFound("booking not found")
	ErrTimeConflict     = apperror.Conflict("time slot already booked")
	ErrInvalidDuration  = apperror.Validation("duration must be between 30 and 480 minutes")
	ErrInvalidTimeRange = apperror.Validation("end time must equal start time plus duration")
	ErrStartTooSoon     = apperror.Validation("start time must be at least 5 minutes from now")
	ErrOutsideHours     = apperror.Validation("requested window is outside station operating hours")
	ErrInvalidExtension = apperror.Validation("additional minutes must be positive")
	ErrInvalidDate      = apperror.Validation("invalid date, expected YYYY-MM-DD")
	ErrStationInactive  = apperror.Policy("station is not operational")
	ErrPortUnavailable  = apperror.Policy("port is not operational")
	ErrInvalidStatus    = apperror.Policy("operation not permitted in current booking status")
	ErrAlreadyCancelled = apperror.Policy("booking is already cancelled")
	ErrCheckInWindow    = apperror.Policy("check-in is only allowed between 5 minutes before start and the scheduled end")
	ErrNotExpirable     = apperror.Policy("booking is still within its check-in grace window")
	ErrPermissionDenied = &apperror.AppError{Code: http.StatusForbidden, Kind: apperror.KindPolicy, Message: "permission denied"}
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
	StatusFailed    Status = "failed"
)

// HoldsPort reports whether a booking in this status occupies its interval.
func (s Status) HoldsPort() bool {
	return s == StatusConfirmed || s == StatusActive
}

func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusExpired, StatusFailed:
		return true
	}
	return false
}

// HoldingStatuses are the statuses covered by the non-overlap guarantee.
var HoldingStatuses = []Status{StatusConfirmed, StatusActive}

type PaymentStatus string

const (
	PaymentPending       PaymentStatus = "pending"
	PaymentProcessing    PaymentStatus = "processing"
	PaymentPaid          PaymentStatus = "paid"
	PaymentFailed        PaymentStatus = "failed"
	PaymentRefunded      PaymentStatus = "refunded"
	PaymentPartialRefund PaymentStatus = "partial_refund"
)

// TimeSlot is the reserved interval. End always equals Start + DurationMinutes.
type TimeSlot struct {
	Start           time.Time
	End             time.Time
	DurationMinutes int
}

func (t TimeSlot) Interval() Interval {
	return Interval{Start: t.Start, End: t.End}
}

// Pricing is fixed at creation and adjusted by extension.
// MerchantAmount is the vendor's share and excludes PlatformFee.
type Pricing struct {
	UnitPrice      float64
	EstimatedUnits float64 // kWh
	BaseCost       float64
	Taxes          float64
	ServiceCharges float64
	PlatformFee    float64
	MerchantAmount float64
	TotalAmount    float64
}

type Cancellation struct {
	CancelledBy      string
	Reason           string
	CancelledAt      time.Time
	RefundEligible   bool
	HoursBeforeStart float64
}

// ActualUsage is filled by check-in (ActualStart) and early completion (the rest).
type ActualUsage struct {
	ActualStart    *time.Time
	ActualEnd      *time.Time
	ChargedMinutes *int
	EarlyRefund    *float64
	FinalAmount    *float64
}

type Booking struct {
	ID            string
	Reference     string
	PortID        string
	StationID     string
	VendorID      string
	UserID        string
	TimeSlot      TimeSlot
	Pricing       Pricing
	Status        Status
	PaymentStatus PaymentStatus
	Cancellation  *Cancellation
	ActualUsage   ActualUsage
	FoodOrderID   *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Filter struct {
	UserID   string
	PortID   string
	Status   string
	Page     int
	PageSize int
}

// ConflictError names the existing booking whose window collides with the request.
type ConflictError struct {
	BookingReference string
	Start            time.Time
	End              time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("time slot conflicts with booking %s (%s - %s)",
		e.BookingReference, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}

func (e *ConflictError) Unwrap() error {
	return ErrTimeConflict
}

func (e *ConflictError) Details() map[string]any {
	return map[string]any{
		"conflicting_booking": e.BookingReference,
		"conflict_start":      e.Start,
		"conflict_end":        e.End,
	}
}

func newConflictError(b *Booking) *ConflictError {
	return &ConflictError{
		BookingReference: b.Reference,
		Start:            b.TimeSlot.Start,
		End:              b.TimeSlot.End,
	}
}
