package station_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/port-booking-backend/internal/station"
)

func TestWindowFor(t *testing.T) {
	hours := station.OperatingHours{
		"monday":    {Open: "09:00", Close: "18:00"},
		"tuesday":   {Open: "22:00:00", Close: "02:00:00"},
		"wednesday": {Is24Hours: true},
		"thursday":  {Open: "nine", Close: "18:00"},
	}

	tests := []struct {
		name    string
		day     time.Weekday
		want    station.Window
		wantErr bool
	}{
		{"regular day", time.Monday, station.Window{OpenMinute: 540, CloseMinute: 1080}, false},
		{"crosses midnight", time.Tuesday, station.Window{OpenMinute: 1320, CloseMinute: 1560}, false},
		{"24 hours", time.Wednesday, station.Window{OpenMinute: 0, CloseMinute: 1440}, false},
		{"absent defaults to full day", time.Sunday, station.Window{OpenMinute: 0, CloseMinute: 1440}, false},
		{"malformed", time.Thursday, station.Window{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := hours.WindowFor(tt.day)
			if tt.wantErr {
				assert.ErrorIs(t, err, station.ErrInvalidOpeningHours)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAllows(t *testing.T) {
	// 2026-02-09 is a Monday, 2026-02-10 a Tuesday.
	hours := station.OperatingHours{
		"monday":    {Open: "09:00", Close: "18:00"},
		"tuesday":   {Open: "22:00", Close: "02:00"},
		"wednesday": {Open: "10:00", Close: "12:00"},
	}
	at := func(day, h, m int) time.Time { return time.Date(2026, 2, day, h, m, 0, 0, time.UTC) }

	tests := []struct {
		name       string
		start, end time.Time
		want       bool
	}{
		{"inside regular window", at(9, 10, 0), at(9, 11, 0), true},
		{"touches close", at(9, 17, 0), at(9, 18, 0), true},
		{"runs past close", at(9, 17, 30), at(9, 18, 30), false},
		{"before open", at(9, 8, 30), at(9, 9, 30), false},
		{"overnight evening part", at(10, 23, 0), at(11, 1, 0), true},
		{"after midnight in previous day's window", at(11, 0, 30), at(11, 1, 30), true},
		{"past overnight close", at(11, 1, 30), at(11, 2, 30), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := hours.Allows(tt.start, tt.end, time.UTC)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAllowsAcrossMidnightOfFullDays(t *testing.T) {
	// 2026-02-12 is a Thursday, 2026-02-13 a Friday.
	at := func(day, h, m int) time.Time { return time.Date(2026, 2, day, h, m, 0, 0, time.UTC) }

	tests := []struct {
		name  string
		hours station.OperatingHours
		want  bool
	}{
		{"no hours configured", nil, true},
		{"both days 24 hours", station.OperatingHours{"thursday": {Is24Hours: true}, "friday": {Is24Hours: true}}, true},
		{"closes at midnight into 24 hour day", station.OperatingHours{"thursday": {Open: "08:00", Close: "00:00"}}, true},
		{"next day opens late", station.OperatingHours{"friday": {Open: "06:00", Close: "22:00"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.hours.Allows(at(12, 23, 30), at(13, 0, 30), time.UTC)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, station.OperatingHours{"friday": {Open: "06:00", Close: "23:00"}}.Validate())
	assert.NoError(t, station.OperatingHours(nil).Validate())
	assert.Error(t, station.OperatingHours{"fri": {Open: "06:00", Close: "23:00"}}.Validate())
	assert.Error(t, station.OperatingHours{"friday": {Open: "6am", Close: "23:00"}}.Validate())
}
