package refund

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nekogravitycat/port-booking-backend/internal/db"
)

// Service drives a refund through its status lifecycle after creation.
type Service interface {
	GetByBookingID(ctx context.Context, bookingID string) (*Refund, error)
	Transition(ctx context.Context, id string, next Status, actor string, metadata map[string]any) (*Refund, error)
	// Settle walks a pending refund to completed. There is no payment gateway
	// behind it yet; settlement is recorded as immediate.
	Settle(ctx context.Context, id string, actor string) (*Refund, error)
}

type service struct {
	repo   Repository
	tx     db.TxManager
	logger *zap.Logger
	now    func() time.Time
}

func NewService(repo Repository, tx db.TxManager, logger *zap.Logger, now func() time.Time) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &service{repo: repo, tx: tx, logger: logger, now: now}
}

func (s *service) GetByBookingID(ctx context.Context, bookingID string) (*Refund, error) {
	return s.repo.GetByBookingID(ctx, bookingID)
}

func (s *service) Transition(ctx context.Context, id string, next Status, actor string, metadata map[string]any) (*Refund, error) {
	var out *Refund
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		rf, err := s.advance(ctx, id, next, actor, metadata)
		out = rf
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) Settle(ctx context.Context, id string, actor string) (*Refund, error) {
	var out *Refund
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		rf, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if rf.Status == StatusCompleted {
			out = rf
			return nil
		}
		if rf.Status == StatusPending {
			if rf, err = s.advance(ctx, id, StatusProcessing, actor, nil); err != nil {
				return err
			}
		}
		out, err = s.advance(ctx, rf.ID, StatusCompleted, actor, map[string]any{
			"amount": rf.Calculation.FinalRefundAmount,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("refund settled",
		zap.String("refund_id", out.ID),
		zap.String("booking_id", out.BookingID),
		zap.Float64("amount", out.Calculation.FinalRefundAmount),
	)
	return out, nil
}

func (s *service) advance(ctx context.Context, id string, next Status, actor string, metadata map[string]any) (*Refund, error) {
	rf, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rf.Status.CanTransition(next) {
		return nil, ErrInvalidTransition
	}
	entry := AuditEntry{
		Action:    "status_" + string(next),
		Actor:     actor,
		Timestamp: s.now(),
		Metadata:  metadata,
	}
	if err := s.repo.UpdateStatus(ctx, id, next, entry); err != nil {
		return nil, err
	}
	rf.Status = next
	rf.AuditTrail = append(rf.AuditTrail, entry)
	return rf, nil
}
