package foodorder_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/port-booking-backend/internal/foodorder"
	"github.com/nekogravitycat/port-booking-backend/internal/testfixtures"
)

var bookedAt = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func order(id, vendor, email string, createdAt time.Time, status foodorder.Status) *foodorder.Order {
	return &foodorder.Order{
		ID:           id,
		VendorID:     vendor,
		ContactEmail: email,
		Status:       status,
		CreatedAt:    createdAt,
	}
}

func TestMatcher_DirectReferenceWins(t *testing.T) {
	store := testfixtures.NewStore(nil)
	store.AddFoodOrder(order("direct", "vendor-1", "someone@else.test", bookedAt.Add(-time.Hour), foodorder.StatusPlaced))
	store.AddFoodOrder(order("fuzzy", "vendor-1", "ana@example.test", bookedAt, foodorder.StatusPlaced))

	m := foodorder.NewMatcher(store.FoodOrderRepo())
	o, strategy, err := m.Find(context.Background(), foodorder.MatchInput{
		OrderID:          ptr("direct"),
		VendorID:         "vendor-1",
		Email:            "ana@example.test",
		BookingCreatedAt: bookedAt,
	})
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Equal(t, "direct", o.ID)
	assert.Equal(t, "direct_reference", strategy)
}

func TestMatcher_FallsBackToIdentityWindow(t *testing.T) {
	store := testfixtures.NewStore(nil)
	store.AddFoodOrder(order("far", "vendor-1", "ana@example.test", bookedAt.Add(-4*time.Minute), foodorder.StatusPlaced))
	store.AddFoodOrder(order("near", "vendor-1", "ANA@example.test", bookedAt.Add(90*time.Second), foodorder.StatusPreparing))
	store.AddFoodOrder(order("other-vendor", "vendor-2", "ana@example.test", bookedAt, foodorder.StatusPlaced))
	store.AddFoodOrder(order("other-person", "vendor-1", "bo@example.test", bookedAt, foodorder.StatusPlaced))
	store.AddFoodOrder(order("too-late", "vendor-1", "ana@example.test", bookedAt.Add(6*time.Minute), foodorder.StatusPlaced))

	m := foodorder.NewMatcher(store.FoodOrderRepo())
	o, strategy, err := m.Find(context.Background(), foodorder.MatchInput{
		OrderID:          ptr("vanished"),
		VendorID:         "vendor-1",
		Email:            "ana@example.test",
		BookingCreatedAt: bookedAt,
	})
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Equal(t, "near", o.ID)
	assert.Equal(t, "identity_time_window", strategy)
}

func TestMatcher_MatchesGuestOrder(t *testing.T) {
	store := testfixtures.NewStore(nil)
	guest := order("guest", "vendor-1", "ana@example.test", bookedAt.Add(30*time.Second), foodorder.StatusPlaced)
	require.Nil(t, guest.UserID)
	member := order("member", "vendor-1", "ana@example.test", bookedAt.Add(3*time.Minute), foodorder.StatusPlaced)
	member.UserID = ptr("user-1")
	store.AddFoodOrder(guest)
	store.AddFoodOrder(member)

	m := foodorder.NewMatcher(store.FoodOrderRepo())
	o, strategy, err := m.Find(context.Background(), foodorder.MatchInput{
		VendorID:         "vendor-1",
		Email:            "ana@example.test",
		BookingCreatedAt: bookedAt,
	})
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Equal(t, "guest", o.ID)
	assert.Equal(t, "identity_time_window", strategy)
}

func TestMatcher_MatchesByPhone(t *testing.T) {
	store := testfixtures.NewStore(nil)
	o := order("by-phone", "vendor-1", "", bookedAt, foodorder.StatusPlaced)
	o.ContactPhone = "+886912345678"
	store.AddFoodOrder(o)

	got, _, err := foodorder.NewMatcher(store.FoodOrderRepo()).Find(context.Background(), foodorder.MatchInput{
		VendorID:         "vendor-1",
		Phone:            "+886912345678",
		BookingCreatedAt: bookedAt,
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "by-phone", got.ID)
}

func TestMatcher_NoMatch(t *testing.T) {
	store := testfixtures.NewStore(nil)
	store.AddFoodOrder(order("done", "vendor-1", "ana@example.test", bookedAt, foodorder.StatusDelivered))

	got, strategy, err := foodorder.NewMatcher(store.FoodOrderRepo()).Find(context.Background(), foodorder.MatchInput{
		VendorID:         "vendor-1",
		Email:            "ana@example.test",
		BookingCreatedAt: bookedAt,
	})
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Empty(t, strategy)
}

func TestCancelLinked(t *testing.T) {
	store := testfixtures.NewStore(nil)
	store.AddFoodOrder(order("o-1", "vendor-1", "ana@example.test", bookedAt, foodorder.StatusPlaced))
	store.AddFoodOrder(order("o-2", "vendor-1", "", bookedAt, foodorder.StatusReady))
	now := bookedAt.Add(time.Hour)
	svc := foodorder.NewService(store.FoodOrderRepo(), foodorder.NewMatcher(store.FoodOrderRepo()), func() time.Time { return now })

	got, strategy, err := svc.CancelLinked(context.Background(), foodorder.MatchInput{OrderID: ptr("o-1")}, "booking cancelled")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "direct_reference", strategy)
	assert.Equal(t, foodorder.StatusCancelled, store.FoodOrder("o-1").Status)
	assert.Equal(t, now, *store.FoodOrder("o-1").CancelledAt)

	_, _, err = svc.CancelLinked(context.Background(), foodorder.MatchInput{OrderID: ptr("o-1")}, "again")
	assert.ErrorIs(t, err, foodorder.ErrNotCancelable)
}
