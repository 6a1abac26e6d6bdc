package refund

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nekogravitycat/port-booking-backend/internal/db"
)

type Repository interface {
	// CreateOnce inserts r unless a refund with the same ReferenceID exists,
	// in which case the stored refund is returned and created is false.
	CreateOnce(ctx context.Context, r *Refund) (stored *Refund, created bool, err error)
	GetByID(ctx context.Context, id string) (*Refund, error)
	GetByBookingID(ctx context.Context, bookingID string) (*Refund, error)
	// UpdateStatus sets the status and appends entry to the audit trail.
	UpdateStatus(ctx context.Context, id string, status Status, entry AuditEntry) error
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

var refundColumns = []string{
	"id", "reference_id", "booking_id", "user_id", "vendor_id",
	"original_amount", "hours_before_start", "refund_percentage",
	"base_refund_amount", "slot_occupancy_fee", "slot_occupancy_fee_percentage",
	"platform_fee_deducted", "final_refund_amount", "is_eligible",
	"status", "reason", "audit_trail", "created_at", "updated_at",
}

func (r *pgxRepository) CreateOnce(ctx context.Context, rf *Refund) (*Refund, bool, error) {
	trail, err := json.Marshal(rf.AuditTrail)
	if err != nil {
		return nil, false, fmt.Errorf("marshal audit trail failed: %w", err)
	}

	c := rf.Calculation
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Insert("public.refunds").
		Columns(
			"reference_id", "booking_id", "user_id", "vendor_id",
			"original_amount", "hours_before_start", "refund_percentage",
			"base_refund_amount", "slot_occupancy_fee", "slot_occupancy_fee_percentage",
			"platform_fee_deducted", "final_refund_amount", "is_eligible",
			"status", "reason", "audit_trail",
		).
		Values(
			rf.ReferenceID, rf.BookingID, rf.UserID, rf.VendorID,
			c.OriginalAmount, c.HoursBeforeStart, c.RefundPercentage,
			c.BaseRefundAmount, c.SlotOccupancyFee, c.SlotOccupancyFeePercentage,
			c.PlatformFeeDeducted, c.FinalRefundAmount, c.IsEligible,
			rf.Status, rf.Reason, squirrel.Expr("?::jsonb", string(trail)),
		).
		Suffix("ON CONFLICT (reference_id) DO NOTHING RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build create refund query failed: %w", err)
	}

	err = db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&rf.ID, &rf.CreatedAt, &rf.UpdatedAt)
	switch {
	case err == nil:
		return rf, true, nil
	case errors.Is(err, pgx.ErrNoRows):
		existing, err := r.getBy(ctx, "reference_id", rf.ReferenceID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	return nil, false, fmt.Errorf("create refund failed: %w", err)
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Refund, error) {
	return r.getBy(ctx, "id", id)
}

func (r *pgxRepository) GetByBookingID(ctx context.Context, bookingID string) (*Refund, error) {
	return r.getBy(ctx, "booking_id", bookingID)
}

func (r *pgxRepository) getBy(ctx context.Context, column, value string) (*Refund, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(refundColumns...).
		From("public.refunds").
		Where(squirrel.Eq{column: value}).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get refund query failed: %w", err)
	}

	var (
		rf Refund
		c  = &rf.Calculation
	)
	err = db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(
		&rf.ID, &rf.ReferenceID, &rf.BookingID, &rf.UserID, &rf.VendorID,
		&c.OriginalAmount, &c.HoursBeforeStart, &c.RefundPercentage,
		&c.BaseRefundAmount, &c.SlotOccupancyFee, &c.SlotOccupancyFeePercentage,
		&c.PlatformFeeDeducted, &c.FinalRefundAmount, &c.IsEligible,
		&rf.Status, &rf.Reason, &rf.AuditTrail, &rf.CreatedAt, &rf.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get refund failed: %w", err)
	}
	return &rf, nil
}

func (r *pgxRepository) UpdateStatus(ctx context.Context, id string, status Status, entry AuditEntry) error {
	appended, err := json.Marshal([]AuditEntry{entry})
	if err != nil {
		return fmt.Errorf("marshal audit entry failed: %w", err)
	}

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.refunds").
		Set("status", status).
		Set("audit_trail", squirrel.Expr("audit_trail || ?::jsonb", string(appended))).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update refund query failed: %w", err)
	}

	tag, err := db.Conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update refund failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
