package booking_test

import (
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/port-booking-backend/internal/booking"
)

// checkedValues returns the quoted values of `column IN (...)` constraints in the bookings table.
func checkedValues(t *testing.T, column string) []string {
	t.Helper()
	sql, err := os.ReadFile("../../migrations/0001_init.sql")
	require.NoError(t, err)

	table := string(sql)
	start := strings.Index(table, "CREATE TABLE IF NOT EXISTS public.bookings")
	require.GreaterOrEqual(t, start, 0)
	table = table[start:]
	table = table[:strings.Index(table, ");")]

	m := regexp.MustCompile(`CHECK \(` + column + ` IN \(([^)]*)\)\)`).FindStringSubmatch(table)
	require.NotNil(t, m, column)
	var out []string
	for _, v := range strings.Split(m[1], ",") {
		out = append(out, strings.Trim(strings.TrimSpace(v), "'"))
	}
	return out
}

func TestSchemaAcceptsEveryBookingStatus(t *testing.T) {
	statuses := []booking.Status{
		booking.StatusPending, booking.StatusConfirmed, booking.StatusActive,
		booking.StatusCompleted, booking.StatusCancelled, booking.StatusExpired, booking.StatusFailed,
	}
	var want []string
	for _, s := range statuses {
		want = append(want, string(s))
	}
	assert.ElementsMatch(t, want, checkedValues(t, "status"))

	payments := []booking.PaymentStatus{
		booking.PaymentPending, booking.PaymentProcessing, booking.PaymentPaid,
		booking.PaymentFailed, booking.PaymentRefunded, booking.PaymentPartialRefund,
	}
	want = want[:0]
	for _, s := range payments {
		want = append(want, string(s))
	}
	assert.ElementsMatch(t, want, checkedValues(t, "payment_status"))
}
