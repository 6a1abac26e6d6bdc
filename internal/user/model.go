package user

import (
	"time"

	"github.com/nekogravitycat/port-booking-backend/internal/pkg/apperror"
)

var (
	ErrNotFound     = apperror.NotFound("user not found")
	ErrInactiveUser = apperror.Policy("user is inactive")
)

// User is the identity record the booking core reads for contact matching.
type User struct {
	ID          string // UUID
	Email       string
	Phone       *string
	DisplayName *string
	IsActive    bool
	CreatedAt   time.Time
}
