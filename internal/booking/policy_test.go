package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nekogravitycat/port-booking-backend/internal/station"
)

func testPort() *station.Port {
	return &station.Port{
		ID:                  "port-1",
		StationID:           "st-1",
		PowerOutputKW:       10,
		PricePerUnit:        2,
		PeakPricePerUnit:    2.5,
		OffPeakPricePerUnit: 1.5,
		Status:              station.PortAvailable,
	}
}

func TestPolicy_Quote(t *testing.T) {
	p := DefaultPolicy()
	q := p.Quote(testPort(), 90)

	assert.Equal(t, 2.0, q.UnitPrice)
	assert.Equal(t, 15.0, q.EstimatedUnits)
	assert.Equal(t, 30.0, q.BaseCost)
	assert.Equal(t, 30.0, q.MerchantAmount)
	assert.Equal(t, 10.0, q.PlatformFee)
	assert.Equal(t, 40.0, q.TotalAmount)
}

func TestPolicy_RateAt(t *testing.T) {
	p := DefaultPolicy()
	port := testPort()

	assert.Equal(t, 1.5, p.RateAt(port, at(7, 59), time.UTC))
	assert.Equal(t, 2.5, p.RateAt(port, at(8, 0), time.UTC))
	assert.Equal(t, 2.5, p.RateAt(port, at(19, 59), time.UTC))
	assert.Equal(t, 1.5, p.RateAt(port, at(20, 0), time.UTC))

	// Evaluated in the station's timezone: 10:00 UTC is 19:00 in Tokyo.
	tokyo := time.FixedZone("JST", 9*60*60)
	assert.Equal(t, 2.5, p.RateAt(port, at(10, 0), tokyo))
	assert.Equal(t, 1.5, p.RateAt(port, at(11, 0), tokyo))

	flat := testPort()
	flat.PeakPricePerUnit, flat.OffPeakPricePerUnit = 0, 0
	assert.Equal(t, 2.0, p.RateAt(flat, at(12, 0), time.UTC))
}

func TestPolicy_ValidDuration(t *testing.T) {
	p := DefaultPolicy()
	assert.False(t, p.validDuration(15))
	assert.False(t, p.validDuration(29))
	assert.True(t, p.validDuration(30))
	assert.True(t, p.validDuration(480))
	assert.False(t, p.validDuration(481))
}
