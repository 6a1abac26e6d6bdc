package refund

import (
	"time"

	"github.com/nekogravitycat/port-booking-backend/internal/pkg/apperror"
)

var (
	ErrNotFound          = apperror.NotFound("refund not found")
	ErrInvalidTransition = apperror.Policy("refund status transition not allowed")
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
}

// CanTransition reports whether a refund may move from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AuditEntry is one append-only line of a refund's history.
type AuditEntry struct {
	Action    string         `json:"action"`
	Actor     string         `json:"actor"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Refund is created once per cancelled booking. After creation only its
// status and audit trail change.
type Refund struct {
	ID          string
	ReferenceID string // unique, derived from the booking reference
	BookingID   string
	UserID      string
	VendorID    string
	Calculation Calculation
	Status      Status
	Reason      string
	AuditTrail  []AuditEntry
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ReferenceFor derives the idempotency key of a booking's refund.
func ReferenceFor(bookingReference string) string {
	return "RF-" + bookingReference
}
