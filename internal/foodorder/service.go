package foodorder

import (
	"context"
	"time"
)

type Service interface {
	// CancelLinked cancels the order linked to a booking. It returns the
	// cancelled order, or nil when no order matched.
	CancelLinked(ctx context.Context, in MatchInput, reason string) (*Order, string, error)
}

type service struct {
	repo    Repository
	matcher *Matcher
	now     func() time.Time
}

func NewService(repo Repository, matcher *Matcher, now func() time.Time) Service {
	if now == nil {
		now = time.Now
	}
	return &service{repo: repo, matcher: matcher, now: now}
}

func (s *service) CancelLinked(ctx context.Context, in MatchInput, reason string) (*Order, string, error) {
	o, strategy, err := s.matcher.Find(ctx, in)
	if err != nil || o == nil {
		return nil, strategy, err
	}
	if o.Status.IsTerminal() {
		return nil, strategy, ErrNotCancelable
	}

	at := s.now()
	if err := s.repo.Cancel(ctx, o.ID, reason, at); err != nil {
		return nil, strategy, err
	}
	o.Status = StatusCancelled
	o.CancelReason = &reason
	o.CancelledAt = &at
	return o, strategy, nil
}
