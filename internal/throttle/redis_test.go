package throttle_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/port-booking-backend/internal/throttle"
)

const day = 24 * time.Hour

var now = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func newWindow(t *testing.T) (*throttle.Window, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return throttle.NewWindow(client, day), mr
}

func TestReserve_StopsAtLimit(t *testing.T) {
	w, mr := newWindow(t)
	ctx := context.Background()

	for i := range 3 {
		ok, err := w.Reserve(ctx, "user-1", fmt.Sprintf("bk-%d", i), now, 3)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := w.Reserve(ctx, "user-1", "bk-3", now, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	// Other users have their own window.
	ok, err = w.Reserve(ctx, "user-2", "bk-9", now, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, day, mr.TTL("cancellations:user-1"))
	members, err := mr.ZMembers("cancellations:user-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"bk-0", "bk-1", "bk-2"}, members)
}

func TestReserve_SlidingCutoff(t *testing.T) {
	w, _ := newWindow(t)
	ctx := context.Background()

	ok, err := w.Reserve(ctx, "user-1", "boundary", now.Add(-day), 2)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = w.Reserve(ctx, "user-1", "stale", now.Add(-day-time.Millisecond), 2)
	require.NoError(t, err)
	require.True(t, ok)

	// At now the stale entry is pruned while the one exactly a day old still counts.
	ok, err = w.Reserve(ctx, "user-1", "fresh", now, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = w.Reserve(ctx, "user-1", "over", now, 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReserve_SameMemberIsIdempotent(t *testing.T) {
	w, mr := newWindow(t)
	ctx := context.Background()

	for range 3 {
		ok, err := w.Reserve(ctx, "user-1", "bk-1", now, 1)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	members, err := mr.ZMembers("cancellations:user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"bk-1"}, members)
}

func TestRelease_FreesSlot(t *testing.T) {
	w, _ := newWindow(t)
	ctx := context.Background()

	ok, err := w.Reserve(ctx, "user-1", "bk-1", now, 1)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, w.Release(ctx, "user-1", "bk-1"))

	ok, err = w.Reserve(ctx, "user-1", "bk-2", now, 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReserve_ConcurrentCallersShareLimit(t *testing.T) {
	w, _ := newWindow(t)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		granted atomic.Int32
	)
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := w.Reserve(ctx, "user-1", fmt.Sprintf("bk-%d", i), now, 5)
			if assert.NoError(t, err) && ok {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(5), granted.Load())
}

func TestReserve_UnavailableServer(t *testing.T) {
	w, mr := newWindow(t)
	mr.Close()

	_, err := w.Reserve(context.Background(), "user-1", "bk-1", now, 5)
	assert.Error(t, err)
}
