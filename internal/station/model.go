package station

import (
	"time"

	"github.com/nekogravitycat/port-booking-backend/internal/pkg/apperror"
)

var (
	ErrNotFound            = apperror.NotFound("station not found")
	ErrPortNotFound        = apperror.NotFound("port not found")
	ErrInvalidOpeningHours = apperror.Validation("invalid opening hours")
)

type PortStatus string

const (
	PortAvailable   PortStatus = "available"
	PortOccupied    PortStatus = "occupied"
	PortMaintenance PortStatus = "maintenance"
	PortOffline     PortStatus = "offline"
)

// DayHours is one weekday entry of a station's operating calendar.
// Open and Close use HH:MM or HH:MM:SS. Close <= Open means the window crosses midnight.
type DayHours struct {
	Open      string `json:"open"`
	Close     string `json:"close"`
	Is24Hours bool   `json:"is_24_hours"`
}

// OperatingHours is keyed by lowercase weekday name ("monday"...).
// A missing weekday is open all day.
type OperatingHours map[string]DayHours

// Station is a charging site owned by a vendor.
type Station struct {
	ID             string
	VendorID       string
	Name           string
	Timezone       string // IANA name, empty means UTC
	OperatingHours OperatingHours
	IsActive       bool
	CreatedAt      time.Time
}

// Location resolves the station's timezone, falling back to UTC.
func (s *Station) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Port is an individually bookable connector of a station.
type Port struct {
	ID                  string
	StationID           string
	Label               string
	ConnectorType       string
	PowerOutputKW       float64
	PricePerUnit        float64 // per kWh
	PeakPricePerUnit    float64 // 0 falls back to PricePerUnit
	OffPeakPricePerUnit float64 // 0 falls back to PricePerUnit
	Status              PortStatus
}

// IsOperational reports whether the port can take bookings.
// An occupied port is still operational for non-overlapping windows.
func (p *Port) IsOperational() bool {
	return p.Status == PortAvailable || p.Status == PortOccupied
}
