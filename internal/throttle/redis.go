package throttle

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// reserveScript prunes expired entries, then adds the member only while the
// set holds fewer than the limit. A member already present counts as reserved.
var reserveScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
if redis.call('ZSCORE', KEYS[1], ARGV[3]) then
	return 1
end
if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[4]) then
	return 0
end
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return 1
`)

// Window counts events per user over a trailing period using a Redis
// sorted set scored by event time in milliseconds.
type Window struct {
	client *redis.Client
	period time.Duration
	prefix string
}

func NewWindow(client *redis.Client, period time.Duration) *Window {
	return &Window{client: client, period: period, prefix: "cancellations:"}
}

func (w *Window) key(userID string) string {
	return w.prefix + userID
}

// Reserve atomically records member for userID unless limit events already
// fall inside the period ending at now. member identifies one attempt.
func (w *Window) Reserve(ctx context.Context, userID, member string, now time.Time, limit int) (bool, error) {
	key := w.key(userID)
	ok, err := reserveScript.Run(ctx, w.client, []string{key},
		cutoff(now, w.period),
		now.UnixMilli(),
		member,
		limit,
		w.period.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("reserve %s failed: %w", key, err)
	}
	return ok == 1, nil
}

// Release drops a reservation whose event did not happen.
func (w *Window) Release(ctx context.Context, userID, member string) error {
	key := w.key(userID)
	if err := w.client.ZRem(ctx, key, member).Err(); err != nil {
		return fmt.Errorf("release %s failed: %w", key, err)
	}
	return nil
}

// cutoff is the exclusive upper score of expired entries.
func cutoff(now time.Time, period time.Duration) string {
	return "(" + strconv.FormatInt(now.Add(-period).UnixMilli(), 10)
}
