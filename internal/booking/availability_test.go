package booking_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/port-booking-backend/internal/booking"
	"github.com/nekogravitycat/port-booking-backend/internal/station"
)

func slotState(a *booking.Availability, portIdx int, start time.Time) (found, available bool) {
	for _, s := range a.Ports[portIdx].Slots {
		if s.Start.Equal(start) {
			return true, s.Available
		}
	}
	return false, false
}

func TestGetAvailability(t *testing.T) {
	e := newEnv(t)
	e.store.AddPort(&station.Port{ID: "port-2", StationID: stationID, Label: "B1", PowerOutputKW: 22, PricePerUnit: 2, Status: station.PortAvailable})
	e.store.AddPort(&station.Port{ID: "port-3", StationID: stationID, Label: "C1", PowerOutputKW: 22, PricePerUnit: 2, Status: station.PortOffline})
	e.seed(owner, at(14, 0), 60, booking.StatusConfirmed)

	got, err := e.avail.GetAvailability(context.Background(), stationID, "2026-03-02", "")
	require.NoError(t, err)

	require.Len(t, got.Ports, 3)
	assert.Equal(t, "UTC", got.Timezone)
	assert.Equal(t, portID, got.Ports[0].Port.ID)

	// Now is 08:00, so the first bookable step is 08:30 and the last 21:30.
	first := got.Ports[0].Slots[0]
	assert.Equal(t, at(8, 30), first.Start)
	assert.Equal(t, at(21, 30), got.Ports[0].Slots[len(got.Ports[0].Slots)-1].Start)

	found, avail := slotState(got, 0, at(14, 0))
	assert.True(t, found)
	assert.False(t, avail)
	found, avail = slotState(got, 0, at(14, 30))
	assert.True(t, found)
	assert.False(t, avail)
	_, avail = slotState(got, 0, at(15, 0))
	assert.True(t, avail)

	// Other ports are unaffected; offline ports list no slots.
	_, avail = slotState(got, 1, at(14, 0))
	assert.True(t, avail)
	assert.Empty(t, got.Ports[2].Slots)
}

func TestGetAvailability_SinglePort(t *testing.T) {
	e := newEnv(t)
	e.store.AddPort(&station.Port{ID: "port-2", StationID: stationID, Label: "B1", PowerOutputKW: 22, PricePerUnit: 2, Status: station.PortAvailable})

	got, err := e.avail.GetAvailability(context.Background(), stationID, "2026-03-03", "port-2")
	require.NoError(t, err)
	require.Len(t, got.Ports, 1)
	assert.Equal(t, "port-2", got.Ports[0].Port.ID)
	assert.Len(t, got.Ports[0].Slots, 32) // 06:00-22:00 in 30 minute steps

	_, err = e.avail.GetAvailability(context.Background(), stationID, "2026-03-03", "elsewhere")
	assert.ErrorIs(t, err, station.ErrPortNotFound)
}

func TestGetAvailability_IsIdempotent(t *testing.T) {
	e := newEnv(t)
	e.seed(owner, at(10, 0), 90, booking.StatusConfirmed)
	e.seed(owner, at(18, 0), 30, booking.StatusActive)

	first, err := e.avail.GetAvailability(context.Background(), stationID, "2026-03-02", "")
	require.NoError(t, err)
	second, err := e.avail.GetAvailability(context.Background(), stationID, "2026-03-02", "")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGetAvailability_Errors(t *testing.T) {
	e := newEnv(t)

	_, err := e.avail.GetAvailability(context.Background(), stationID, "03/02/2026", "")
	assert.ErrorIs(t, err, booking.ErrInvalidDate)

	_, err = e.avail.GetAvailability(context.Background(), "missing", "2026-03-02", "")
	assert.ErrorIs(t, err, station.ErrNotFound)
}
