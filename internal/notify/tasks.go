package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeDeliver       = "notify:deliver"
	TypeExpireBooking = "booking:expire"
)

type ExpirePayload struct {
	BookingID string `json:"booking_id"`
}

func NewDeliverTask(ev Event) (*asynq.Task, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal event failed: %w", err)
	}
	return asynq.NewTask(TypeDeliver, b, asynq.MaxRetry(5)), nil
}

// NewExpireTask builds a task that fires at the given instant. The task ID is
// derived from the booking so scheduling twice is harmless.
func NewExpireTask(bookingID string, at time.Time) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(ExpirePayload{BookingID: bookingID})
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeExpireBooking, b)
	opts := []asynq.Option{
		asynq.ProcessAt(at),
		asynq.TaskID("expire:" + bookingID),
		asynq.MaxRetry(10),
	}
	return task, opts, nil
}

func ParseEvent(t *asynq.Task) (Event, error) {
	var ev Event
	if err := json.Unmarshal(t.Payload(), &ev); err != nil {
		return Event{}, fmt.Errorf("decode event payload failed: %w", err)
	}
	return ev, nil
}

func ParseExpire(t *asynq.Task) (ExpirePayload, error) {
	var p ExpirePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return ExpirePayload{}, fmt.Errorf("decode expire payload failed: %w", err)
	}
	if p.BookingID == "" {
		return ExpirePayload{}, fmt.Errorf("expire payload missing booking_id")
	}
	return p, nil
}
