package foodorder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nekogravitycat/port-booking-backend/internal/db"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*Order, error)
	// ListOpenByVendor returns non-terminal orders of the vendor created in [from, to].
	ListOpenByVendor(ctx context.Context, vendorID string, from, to time.Time) ([]*Order, error)
	// Cancel moves a non-terminal order to cancelled. It returns ErrNotCancelable
	// when the order already reached a terminal status.
	Cancel(ctx context.Context, id string, reason string, at time.Time) error
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

var orderColumns = []string{
	"id", "vendor_id", "user_id", "booking_id", "contact_email", "contact_phone",
	"total_amount", "status", "cancel_reason", "cancelled_at", "created_at", "updated_at",
}

var terminalStatuses = []string{string(StatusDelivered), string(StatusCancelled)}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Order, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(orderColumns...).
		From("public.food_orders").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get food order query failed: %w", err)
	}

	o, err := scanOrder(db.Conn(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get food order failed: %w", err)
	}
	return o, nil
}

func (r *pgxRepository) ListOpenByVendor(ctx context.Context, vendorID string, from, to time.Time) ([]*Order, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(orderColumns...).
		From("public.food_orders").
		Where(squirrel.Eq{"vendor_id": vendorID}).
		Where(squirrel.NotEq{"status": terminalStatuses}).
		Where(squirrel.GtOrEq{"created_at": from}).
		Where(squirrel.LtOrEq{"created_at": to}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list food orders query failed: %w", err)
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list food orders failed: %w", err)
	}
	defer rows.Close()

	var out []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan food order failed: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *pgxRepository) Cancel(ctx context.Context, id string, reason string, at time.Time) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.food_orders").
		Set("status", StatusCancelled).
		Set("cancel_reason", reason).
		Set("cancelled_at", at).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.NotEq{"status": terminalStatuses}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build cancel food order query failed: %w", err)
	}

	tag, err := db.Conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("cancel food order failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrNotCancelable
	}
	return nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	if err := row.Scan(
		&o.ID, &o.VendorID, &o.UserID, &o.BookingID, &o.ContactEmail, &o.ContactPhone,
		&o.TotalAmount, &o.Status, &o.CancelReason, &o.CancelledAt, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &o, nil
}
