package cancellation_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/port-booking-backend/internal/booking"
	"github.com/nekogravitycat/port-booking-backend/internal/cancellation"
	"github.com/nekogravitycat/port-booking-backend/internal/foodorder"
	"github.com/nekogravitycat/port-booking-backend/internal/notify"
	"github.com/nekogravitycat/port-booking-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/port-booking-backend/internal/refund"
	"github.com/nekogravitycat/port-booking-backend/internal/station"
	"github.com/nekogravitycat/port-booking-backend/internal/testfixtures"
	"github.com/nekogravitycat/port-booking-backend/internal/user"
)

const (
	owner  = "user-1"
	portID = "port-1"
)

var now = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type env struct {
	store    *testfixtures.Store
	events   *testfixtures.Recorder
	throttle *testfixtures.Throttle
	svc      cancellation.Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	clock := testfixtures.NewClock(now)
	store := testfixtures.NewStore(clock.Now)
	store.AddStation(&station.Station{ID: "st-1", VendorID: "vendor-1", Timezone: "UTC", IsActive: true})
	store.AddPort(&station.Port{ID: portID, StationID: "st-1", PowerOutputKW: 10, PricePerUnit: 2, Status: station.PortOccupied})
	phone := "+886900000001"
	store.AddUser(&user.User{ID: owner, Email: "ana@example.test", Phone: &phone, IsActive: true})

	events := testfixtures.NewRecorder()
	bookings := booking.NewService(booking.Deps{
		Repo:     store.BookingRepo(),
		Stations: station.NewService(store.StationRepo()),
		Tx:       store,
		Events:   events,
		Expiry:   events,
		Now:      clock.Now,
	}, booking.DefaultPolicy())

	throttle := testfixtures.NewThrottle(24 * time.Hour)
	orders := store.FoodOrderRepo()
	svc := cancellation.NewService(cancellation.Deps{
		Bookings:   bookings,
		Refunds:    store.RefundRepo(),
		FoodOrders: foodorder.NewService(orders, foodorder.NewMatcher(orders), clock.Now),
		Users:      store.UserRepo(),
		Throttle:   throttle,
		Events:     events,
		Now:        clock.Now,
	}, 5)

	return &env{store: store, events: events, throttle: throttle, svc: svc}
}

// seed stores a paid booking of 60 minutes (total 30, platform fee 10).
func (e *env) seed(start time.Time, status booking.Status) *booking.Booking {
	return e.store.AddBooking(&booking.Booking{
		Reference: "BK-260302-" + start.Format("0102T1504"),
		PortID:    portID,
		StationID: "st-1",
		VendorID:  "vendor-1",
		UserID:    owner,
		TimeSlot:  booking.TimeSlot{Start: start, End: start.Add(time.Hour), DurationMinutes: 60},
		Pricing: booking.Pricing{
			UnitPrice: 2, EstimatedUnits: 10, BaseCost: 20, PlatformFee: 10,
			MerchantAmount: 20, TotalAmount: 30,
		},
		Status:        status,
		PaymentStatus: booking.PaymentPaid,
	})
}

func (e *env) cancel(b *booking.Booking, requester string) (*cancellation.Result, error) {
	return e.svc.Cancel(context.Background(), cancellation.Request{
		BookingID:   b.ID,
		RequesterID: requester,
		Reason:      "plans changed",
		Security:    cancellation.SecurityContext{IPAddress: "203.0.113.7"},
	})
}

func TestCancel_WithRefund(t *testing.T) {
	e := newEnv(t)
	b := e.seed(now.Add(30*time.Hour), booking.StatusConfirmed)

	res, err := e.cancel(b, owner)
	require.NoError(t, err)

	assert.Equal(t, booking.StatusCancelled, res.Booking.Status)
	assert.Equal(t, booking.PaymentPartialRefund, res.Booking.PaymentStatus)
	require.NotNil(t, res.Booking.Cancellation)
	assert.True(t, res.Booking.Cancellation.RefundEligible)
	assert.Equal(t, 30.0, res.Booking.Cancellation.HoursBeforeStart)

	// Refundable 20 at 100%, minus 5% occupancy fee.
	assert.Equal(t, 20.0, res.Calculation.BaseRefundAmount)
	assert.Equal(t, 1.0, res.Calculation.SlotOccupancyFee)
	assert.Equal(t, 19.0, res.Calculation.FinalRefundAmount)

	require.NotNil(t, res.Refund)
	assert.Equal(t, "RF-"+b.Reference, res.Refund.ReferenceID)
	assert.Equal(t, refund.StatusPending, res.Refund.Status)
	require.Len(t, res.Refund.AuditTrail, 1)
	assert.Equal(t, "refund_initiated", res.Refund.AuditTrail[0].Action)
	assert.Equal(t, owner, res.Refund.AuditTrail[0].Actor)
	assert.Equal(t, "203.0.113.7", res.Refund.AuditTrail[0].Metadata["ip_address"])

	assert.Equal(t, booking.StatusCancelled, e.store.Booking(b.ID).Status)
	assert.Equal(t, station.PortAvailable, e.store.Port(portID).Status)
	assert.Len(t, e.store.Refunds(), 1)

	n, err := e.throttle.Count(context.Background(), owner, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Eventually(t, func() bool {
		return e.events.Has(notify.BookingCancelled) && e.events.Has(notify.RefundInitiated)
	}, time.Second, 10*time.Millisecond)
}

func TestCancel_InsideLastHourHasNoRefund(t *testing.T) {
	e := newEnv(t)
	b := e.seed(now.Add(30*time.Minute), booking.StatusConfirmed)

	res, err := e.cancel(b, owner)
	require.NoError(t, err)

	assert.Equal(t, booking.StatusCancelled, res.Booking.Status)
	assert.Equal(t, booking.PaymentPaid, res.Booking.PaymentStatus)
	assert.False(t, res.Calculation.IsEligible)
	assert.Nil(t, res.Refund)
	assert.Empty(t, e.store.Refunds())
}

func TestCancel_UnpaidBookingGetsNoRefund(t *testing.T) {
	e := newEnv(t)
	b := e.seed(now.Add(48*time.Hour), booking.StatusPending)
	stored := e.store.Booking(b.ID)
	stored.PaymentStatus = booking.PaymentPending
	e.store.AddBooking(stored)

	res, err := e.cancel(b, owner)
	require.NoError(t, err)
	assert.True(t, res.Calculation.IsEligible)
	assert.Nil(t, res.Refund)
	assert.False(t, res.Booking.Cancellation.RefundEligible)
}

func TestCancel_Rejections(t *testing.T) {
	e := newEnv(t)
	confirmed := e.seed(now.Add(30*time.Hour), booking.StatusConfirmed)
	completed := e.seed(now.Add(-3*time.Hour), booking.StatusCompleted)
	cancelled := e.seed(now.Add(50*time.Hour), booking.StatusCancelled)

	_, err := e.cancel(confirmed, "intruder")
	assert.ErrorIs(t, err, booking.ErrPermissionDenied)

	_, err = e.cancel(completed, owner)
	assert.ErrorIs(t, err, cancellation.ErrNotCancellable)
	assert.Equal(t, apperror.KindPolicy, apperror.KindOf(err))

	_, err = e.cancel(cancelled, owner)
	assert.ErrorIs(t, err, booking.ErrAlreadyCancelled)

	assert.Equal(t, booking.StatusConfirmed, e.store.Booking(confirmed.ID).Status)
}

func TestCancel_RateLimited(t *testing.T) {
	e := newEnv(t)
	for i := range 5 {
		require.NoError(t, e.throttle.Record(context.Background(), owner, fmt.Sprintf("old-%d", i), now.Add(-time.Duration(i+1)*time.Hour)))
	}
	b := e.seed(now.Add(30*time.Hour), booking.StatusConfirmed)

	_, err := e.cancel(b, owner)
	require.ErrorIs(t, err, cancellation.ErrTooManyCancellations)
	assert.Equal(t, apperror.KindSecurity, apperror.KindOf(err))
	assert.Equal(t, booking.StatusConfirmed, e.store.Booking(b.ID).Status)
}

func TestCancel_OldCancellationsDoNotCount(t *testing.T) {
	e := newEnv(t)
	for i := range 5 {
		require.NoError(t, e.throttle.Record(context.Background(), owner, fmt.Sprintf("old-%d", i), now.Add(-25*time.Hour)))
	}
	b := e.seed(now.Add(30*time.Hour), booking.StatusConfirmed)

	_, err := e.cancel(b, owner)
	assert.NoError(t, err)
}

func TestCancel_ThrottleUnavailableFailsClosed(t *testing.T) {
	e := newEnv(t)
	e.throttle.Err = errors.New("redis: connection refused")
	b := e.seed(now.Add(30*time.Hour), booking.StatusConfirmed)

	_, err := e.cancel(b, owner)
	assert.ErrorIs(t, err, cancellation.ErrTooManyCancellations)
	assert.Equal(t, booking.StatusConfirmed, e.store.Booking(b.ID).Status)
}

func TestCancel_AmountTamper(t *testing.T) {
	e := newEnv(t)
	b := e.seed(now.Add(30*time.Hour), booking.StatusConfirmed)
	req := func(amount float64) cancellation.Request {
		return cancellation.Request{
			BookingID:   b.ID,
			RequesterID: owner,
			Security:    cancellation.SecurityContext{ClientAmount: &amount},
		}
	}

	_, err := e.svc.Cancel(context.Background(), req(25))
	require.ErrorIs(t, err, cancellation.ErrAmountMismatch)
	assert.Equal(t, apperror.KindSecurity, apperror.KindOf(err))
	assert.Equal(t, booking.StatusConfirmed, e.store.Booking(b.ID).Status)

	_, err = e.svc.Cancel(context.Background(), req(30.004))
	assert.NoError(t, err)
}

func TestCancel_RefundFailureRollsBack(t *testing.T) {
	e := newEnv(t)
	b := e.seed(now.Add(30*time.Hour), booking.StatusConfirmed)
	e.store.FailOn("refunds.create", errors.New("disk full"))

	_, err := e.cancel(b, owner)
	require.Error(t, err)

	assert.Equal(t, booking.StatusConfirmed, e.store.Booking(b.ID).Status)
	assert.Equal(t, station.PortOccupied, e.store.Port(portID).Status)
	assert.Empty(t, e.store.Refunds())

	// The failed attempt does not count against the user.
	n, err := e.throttle.Count(context.Background(), owner, now)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCancel_ConcurrentCancellationsShareLimit(t *testing.T) {
	e := newEnv(t)
	var bookings []*booking.Booking
	for i := range 8 {
		bookings = append(bookings, e.seed(now.Add(time.Duration(30+2*i)*time.Hour), booking.StatusConfirmed))
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		limited int
	)
	for _, b := range bookings {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.cancel(b, owner)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, cancellation.ErrTooManyCancellations):
				limited++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, ok)
	assert.Equal(t, 3, limited)
	n, err := e.throttle.Count(context.Background(), owner, now)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestCancel_RefundUsesTotalSeenInsideTransaction(t *testing.T) {
	e := newEnv(t)
	b := e.seed(now.Add(30*time.Hour), booking.StatusConfirmed)
	// An extension commits between the initial read and the cancelling transaction.
	e.store.BeforeTx = func() {
		stored := e.store.Booking(b.ID)
		stored.Pricing.TotalAmount = 40
		stored.Pricing.BaseCost = 30
		e.store.AddBooking(stored)
	}

	res, err := e.cancel(b, owner)
	require.NoError(t, err)
	// Refundable 30 at 100%, minus 5% occupancy fee.
	assert.Equal(t, 30.0, res.Calculation.BaseRefundAmount)
	assert.Equal(t, 28.5, res.Calculation.FinalRefundAmount)
	require.NotNil(t, res.Refund)
	assert.Equal(t, 28.5, res.Refund.Calculation.FinalRefundAmount)
}

func TestCancel_AmountCheckedAgainstCurrentTotal(t *testing.T) {
	e := newEnv(t)
	b := e.seed(now.Add(30*time.Hour), booking.StatusConfirmed)
	e.store.BeforeTx = func() {
		stored := e.store.Booking(b.ID)
		stored.Pricing.TotalAmount = 40
		e.store.AddBooking(stored)
	}
	stale := 30.0

	_, err := e.svc.Cancel(context.Background(), cancellation.Request{
		BookingID:   b.ID,
		RequesterID: owner,
		Security:    cancellation.SecurityContext{ClientAmount: &stale},
	})
	require.ErrorIs(t, err, cancellation.ErrAmountMismatch)
	assert.Equal(t, booking.StatusConfirmed, e.store.Booking(b.ID).Status)
}

func TestCancel_CascadesLinkedFoodOrder(t *testing.T) {
	t.Run("direct reference", func(t *testing.T) {
		e := newEnv(t)
		e.store.AddFoodOrder(&foodorder.Order{ID: "fo-1", VendorID: "vendor-1", Status: foodorder.StatusPlaced, CreatedAt: now})
		b := e.seed(now.Add(30*time.Hour), booking.StatusConfirmed)
		orderID := "fo-1"
		stored := e.store.Booking(b.ID)
		stored.FoodOrderID = &orderID
		e.store.AddBooking(stored)

		res, err := e.cancel(b, owner)
		require.NoError(t, err)
		require.NotNil(t, res.CascadedOrder)
		assert.Equal(t, "fo-1", res.CascadedOrder.ID)
		assert.Equal(t, foodorder.StatusCancelled, e.store.FoodOrder("fo-1").Status)
	})

	t.Run("identity and time window", func(t *testing.T) {
		e := newEnv(t)
		e.store.AddFoodOrder(&foodorder.Order{
			ID: "fo-2", VendorID: "vendor-1", ContactPhone: "+886900000001",
			Status: foodorder.StatusPreparing, CreatedAt: now.Add(2 * time.Minute),
		})
		b := e.seed(now.Add(30*time.Hour), booking.StatusConfirmed)

		res, err := e.cancel(b, owner)
		require.NoError(t, err)
		require.NotNil(t, res.CascadedOrder)
		assert.Equal(t, "fo-2", res.CascadedOrder.ID)
		assert.Eventually(t, func() bool { return e.events.Has(notify.FoodOrderCancelled) }, time.Second, 10*time.Millisecond)
	})

	t.Run("cascade failure does not fail the cancellation", func(t *testing.T) {
		e := newEnv(t)
		e.store.AddFoodOrder(&foodorder.Order{ID: "fo-3", VendorID: "vendor-1", ContactEmail: "ana@example.test", Status: foodorder.StatusPlaced, CreatedAt: now})
		e.store.FailOn("food_orders.cancel", errors.New("timeout"))
		b := e.seed(now.Add(30*time.Hour), booking.StatusConfirmed)

		res, err := e.cancel(b, owner)
		require.NoError(t, err)
		assert.Nil(t, res.CascadedOrder)
		assert.Equal(t, booking.StatusCancelled, e.store.Booking(b.ID).Status)
		assert.Equal(t, foodorder.StatusPlaced, e.store.FoodOrder("fo-3").Status)
	})

	t.Run("no match", func(t *testing.T) {
		e := newEnv(t)
		e.store.FailOn("users.get", errors.New("users down"))
		b := e.seed(now.Add(30*time.Hour), booking.StatusConfirmed)

		res, err := e.cancel(b, owner)
		require.NoError(t, err)
		assert.Nil(t, res.CascadedOrder)
	})
}

func TestPreviewRefund(t *testing.T) {
	e := newEnv(t)
	b := e.seed(now.Add(6*time.Hour), booking.StatusConfirmed)
	done := e.seed(now.Add(-5*time.Hour), booking.StatusCompleted)

	p, err := e.svc.PreviewRefund(context.Background(), b.ID, owner)
	require.NoError(t, err)
	assert.True(t, p.CanCancel)
	assert.Equal(t, 6.0, p.HoursBeforeStart)
	assert.Equal(t, 75.0, p.Calculation.RefundPercentage)
	assert.Equal(t, 14.25, p.Calculation.FinalRefundAmount)

	p, err = e.svc.PreviewRefund(context.Background(), done.ID, owner)
	require.NoError(t, err)
	assert.False(t, p.CanCancel)
	assert.NotEmpty(t, p.BlockedReason)

	_, err = e.svc.PreviewRefund(context.Background(), b.ID, "intruder")
	assert.ErrorIs(t, err, booking.ErrPermissionDenied)

	// Preview has no side effects.
	assert.Equal(t, booking.StatusConfirmed, e.store.Booking(b.ID).Status)
	assert.Empty(t, e.store.Refunds())
}
