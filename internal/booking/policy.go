package booking

import (
	"math"
	"time"

	"github.com/nekogravitycat/port-booking-backend/internal/station"
)

// Policy holds the tunable rules of the reservation core.
type Policy struct {
	Buffer            time.Duration // gap kept around every booking on the same port
	MinDuration       time.Duration
	MaxDuration       time.Duration
	MinChargeDuration time.Duration // floor billed on early completion
	SlotStep          time.Duration
	SlotDurations     []int // minutes offered as price options per slot
	PlatformFee       float64
	PeakStartHour     int // local, inclusive
	PeakEndHour       int // local, exclusive
	ExpiryGrace       time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		Buffer:            5 * time.Minute,
		MinDuration:       30 * time.Minute,
		MaxDuration:       8 * time.Hour,
		MinChargeDuration: 30 * time.Minute,
		SlotStep:          30 * time.Minute,
		SlotDurations:     []int{30, 60, 120, 240},
		PlatformFee:       10,
		PeakStartHour:     8,
		PeakEndHour:       20,
		ExpiryGrace:       15 * time.Minute,
	}
}

func (p Policy) Detector() OverlapDetector {
	return OverlapDetector{Buffer: p.Buffer}
}

func (p Policy) validDuration(minutes int) bool {
	d := time.Duration(minutes) * time.Minute
	return d >= p.MinDuration && d <= p.MaxDuration
}

// Quote prices a fresh booking of the given length at the port's base rate.
func (p Policy) Quote(port *station.Port, minutes int) Pricing {
	units, cost := energyCost(port.PowerOutputKW, minutes, port.PricePerUnit)
	return Pricing{
		UnitPrice:      port.PricePerUnit,
		EstimatedUnits: units,
		BaseCost:       cost,
		PlatformFee:    p.PlatformFee,
		MerchantAmount: cost,
		TotalAmount:    round2(cost + p.PlatformFee),
	}
}

// RateAt returns the per-kWh price applying at t in the station's timezone.
// Ports without a peak or off-peak price fall back to their base price.
func (p Policy) RateAt(port *station.Port, t time.Time, loc *time.Location) float64 {
	h := t.In(loc).Hour()
	rate := port.OffPeakPricePerUnit
	if h >= p.PeakStartHour && h < p.PeakEndHour {
		rate = port.PeakPricePerUnit
	}
	if rate <= 0 {
		return port.PricePerUnit
	}
	return rate
}

func energyCost(powerKW float64, minutes int, rate float64) (units, cost float64) {
	kwh := powerKW * float64(minutes) / 60
	return round2(kwh), round2(kwh * rate)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
