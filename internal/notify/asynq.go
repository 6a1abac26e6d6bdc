package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// AsynqDispatcher queues events and expiry jobs on Redis for cmd/worker.
type AsynqDispatcher struct {
	client *asynq.Client
}

func NewAsynqDispatcher(opt asynq.RedisClientOpt) *AsynqDispatcher {
	return &AsynqDispatcher{client: asynq.NewClient(opt)}
}

func (d *AsynqDispatcher) Publish(ctx context.Context, ev Event) error {
	task, err := NewDeliverTask(ev)
	if err != nil {
		return err
	}
	if _, err := d.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue %s failed: %w", ev.Type, err)
	}
	return nil
}

func (d *AsynqDispatcher) ScheduleExpiry(ctx context.Context, bookingID string, at time.Time) error {
	task, opts, err := NewExpireTask(bookingID, at)
	if err != nil {
		return err
	}
	if _, err := d.client.EnqueueContext(ctx, task, opts...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("schedule expiry failed: %w", err)
	}
	return nil
}

func (d *AsynqDispatcher) Close() error {
	return d.client.Close()
}
