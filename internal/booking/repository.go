package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nekogravitycat/port-booking-backend/internal/db"
	"github.com/nekogravitycat/port-booking-backend/internal/station"
)

// Repository persists bookings. Every method joins the transaction carried
// by ctx when there is one.
type Repository interface {
	Create(ctx context.Context, b *Booking) error
	GetByID(ctx context.Context, id string) (*Booking, error)
	// GetByIDForUpdate locks the booking row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*Booking, error)
	List(ctx context.Context, filter Filter) ([]*Booking, int, error)
	Update(ctx context.Context, b *Booking) error

	// ListHolding returns confirmed or active bookings on the port whose raw
	// interval intersects [from, to). excludeID skips the booking itself.
	ListHolding(ctx context.Context, portID string, from, to time.Time, excludeID string) ([]*Booking, error)
	// CountHolding counts confirmed or active bookings on the port, excluding excludeID.
	CountHolding(ctx context.Context, portID string, excludeID string) (int, error)

	// LockPort takes a row lock on the port so that writers on the same port queue up.
	LockPort(ctx context.Context, portID string) error
	SetPortStatus(ctx context.Context, portID string, status station.PortStatus) error
	// ReleasePort moves the port from occupied to available. Any other status is left alone.
	ReleasePort(ctx context.Context, portID string) error
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

var bookingColumns = []string{
	"id", "reference", "port_id", "station_id", "vendor_id", "user_id",
	"start_time", "end_time", "duration_minutes",
	"unit_price", "estimated_units", "base_cost", "taxes", "service_charges",
	"platform_fee", "merchant_amount", "total_amount",
	"status", "payment_status",
	"cancelled_by", "cancel_reason", "cancelled_at", "refund_eligible", "hours_before_start",
	"actual_start", "actual_end", "charged_minutes", "early_refund_amount", "final_amount",
	"food_order_id", "created_at", "updated_at",
}

func holdingStatuses() []string {
	out := make([]string, len(HoldingStatuses))
	for i, s := range HoldingStatuses {
		out[i] = string(s)
	}
	return out
}

func (r *pgxRepository) Create(ctx context.Context, b *Booking) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Insert("public.bookings").
		Columns(
			"reference", "port_id", "station_id", "vendor_id", "user_id",
			"start_time", "end_time", "duration_minutes",
			"unit_price", "estimated_units", "base_cost", "taxes", "service_charges",
			"platform_fee", "merchant_amount", "total_amount",
			"status", "payment_status", "food_order_id",
		).
		Values(
			b.Reference, b.PortID, b.StationID, b.VendorID, b.UserID,
			b.TimeSlot.Start, b.TimeSlot.End, b.TimeSlot.DurationMinutes,
			b.Pricing.UnitPrice, b.Pricing.EstimatedUnits, b.Pricing.BaseCost, b.Pricing.Taxes, b.Pricing.ServiceCharges,
			b.Pricing.PlatformFee, b.Pricing.MerchantAmount, b.Pricing.TotalAmount,
			b.Status, b.PaymentStatus, b.FoodOrderID,
		).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create booking query failed: %w", err)
	}

	err = db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "create booking")
	}
	return nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Booking, error) {
	return r.get(ctx, id, false)
}

func (r *pgxRepository) GetByIDForUpdate(ctx context.Context, id string) (*Booking, error) {
	return r.get(ctx, id, true)
}

func (r *pgxRepository) get(ctx context.Context, id string, forUpdate bool) (*Booking, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	q := psql.Select(bookingColumns...).
		From("public.bookings").
		Where(squirrel.Eq{"id": id})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get booking query failed: %w", err)
	}

	b, err := scanBooking(db.Conn(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get booking failed: %w", err)
	}
	return b, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Booking, int, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query := psql.Select(append(bookingColumns, "count(*) OVER() as total_count")...).
		From("public.bookings")

	if filter.UserID != "" {
		query = query.Where(squirrel.Eq{"user_id": filter.UserID})
	}
	if filter.PortID != "" {
		query = query.Where(squirrel.Eq{"port_id": filter.PortID})
	}
	if filter.Status != "" {
		query = query.Where(squirrel.Eq{"status": filter.Status})
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	offset := (filter.Page - 1) * filter.PageSize

	query = query.OrderBy("start_time DESC").
		Limit(uint64(filter.PageSize)).
		Offset(uint64(offset))

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list bookings query failed: %w", err)
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list bookings failed: %w", err)
	}
	defer rows.Close()

	var (
		bookings []*Booking
		total    int
	)
	for rows.Next() {
		b, err := scanBooking(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan booking failed: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate bookings failed: %w", err)
	}
	return bookings, total, nil
}

func (r *pgxRepository) Update(ctx context.Context, b *Booking) error {
	var (
		c           Cancellation
		cancelledAt *time.Time
	)
	if b.Cancellation != nil {
		c = *b.Cancellation
		cancelledAt = &c.CancelledAt
	}

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.bookings").
		Set("end_time", b.TimeSlot.End).
		Set("duration_minutes", b.TimeSlot.DurationMinutes).
		Set("estimated_units", b.Pricing.EstimatedUnits).
		Set("base_cost", b.Pricing.BaseCost).
		Set("merchant_amount", b.Pricing.MerchantAmount).
		Set("total_amount", b.Pricing.TotalAmount).
		Set("status", b.Status).
		Set("payment_status", b.PaymentStatus).
		Set("cancelled_by", nullIfEmpty(c.CancelledBy)).
		Set("cancel_reason", nullIfEmpty(c.Reason)).
		Set("cancelled_at", cancelledAt).
		Set("refund_eligible", c.RefundEligible).
		Set("hours_before_start", c.HoursBeforeStart).
		Set("actual_start", b.ActualUsage.ActualStart).
		Set("actual_end", b.ActualUsage.ActualEnd).
		Set("charged_minutes", b.ActualUsage.ChargedMinutes).
		Set("early_refund_amount", b.ActualUsage.EarlyRefund).
		Set("final_amount", b.ActualUsage.FinalAmount).
		Set("food_order_id", b.FoodOrderID).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": b.ID}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update booking query failed: %w", err)
	}

	if err := db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&b.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return mapWriteError(err, "update booking")
	}
	return nil
}

func (r *pgxRepository) ListHolding(ctx context.Context, portID string, from, to time.Time, excludeID string) ([]*Booking, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	q := psql.Select(bookingColumns...).
		From("public.bookings").
		Where(squirrel.Eq{"port_id": portID}).
		Where(squirrel.Eq{"status": holdingStatuses()}).
		Where(squirrel.Lt{"start_time": to}).
		Where(squirrel.Gt{"end_time": from}).
		OrderBy("start_time ASC")
	if excludeID != "" {
		q = q.Where(squirrel.NotEq{"id": excludeID})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list holding bookings query failed: %w", err)
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list holding bookings failed: %w", err)
	}
	defer rows.Close()

	var out []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking failed: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *pgxRepository) CountHolding(ctx context.Context, portID string, excludeID string) (int, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	q := psql.Select("count(*)").
		From("public.bookings").
		Where(squirrel.Eq{"port_id": portID}).
		Where(squirrel.Eq{"status": holdingStatuses()})
	if excludeID != "" {
		q = q.Where(squirrel.NotEq{"id": excludeID})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count holding query failed: %w", err)
	}

	var n int
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count holding bookings failed: %w", err)
	}
	return n, nil
}

func (r *pgxRepository) LockPort(ctx context.Context, portID string) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select("id").
		From("public.ports").
		Where(squirrel.Eq{"id": portID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return fmt.Errorf("build lock port query failed: %w", err)
	}

	var id string
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return station.ErrPortNotFound
		}
		return fmt.Errorf("lock port failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) SetPortStatus(ctx context.Context, portID string, status station.PortStatus) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.ports").
		Set("status", status).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": portID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set port status query failed: %w", err)
	}

	tag, err := db.Conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("set port status failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return station.ErrPortNotFound
	}
	return nil
}

func (r *pgxRepository) ReleasePort(ctx context.Context, portID string) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.ports").
		Set("status", station.PortAvailable).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": portID, "status": station.PortOccupied}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build release port query failed: %w", err)
	}

	if _, err := db.Conn(ctx, r.pool).Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("release port failed: %w", err)
	}
	return nil
}

// mapWriteError turns constraint violations into domain errors. Serialization
// failures pass through untouched so the transaction manager can retry them.
func mapWriteError(err error, op string) error {
	switch {
	case db.HasCode(err, pgerrcode.ExclusionViolation):
		return ErrTimeConflict
	case db.HasCode(err, pgerrcode.UniqueViolation):
		return fmt.Errorf("%s failed: duplicate reference: %w", op, err)
	case db.IsRetryable(err):
		return err
	}
	return fmt.Errorf("%s failed: %w", op, err)
}

func scanBooking(row pgx.Row, extra ...any) (*Booking, error) {
	var (
		b                         Booking
		cancelledBy, cancelReason *string
		cancelledAt               *time.Time
		refundEligible            *bool
		hoursBeforeStart          *float64
	)
	dest := []any{
		&b.ID, &b.Reference, &b.PortID, &b.StationID, &b.VendorID, &b.UserID,
		&b.TimeSlot.Start, &b.TimeSlot.End, &b.TimeSlot.DurationMinutes,
		&b.Pricing.UnitPrice, &b.Pricing.EstimatedUnits, &b.Pricing.BaseCost, &b.Pricing.Taxes, &b.Pricing.ServiceCharges,
		&b.Pricing.PlatformFee, &b.Pricing.MerchantAmount, &b.Pricing.TotalAmount,
		&b.Status, &b.PaymentStatus,
		&cancelledBy, &cancelReason, &cancelledAt, &refundEligible, &hoursBeforeStart,
		&b.ActualUsage.ActualStart, &b.ActualUsage.ActualEnd, &b.ActualUsage.ChargedMinutes,
		&b.ActualUsage.EarlyRefund, &b.ActualUsage.FinalAmount,
		&b.FoodOrderID, &b.CreatedAt, &b.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	if cancelledAt != nil {
		b.Cancellation = &Cancellation{
			CancelledBy:      deref(cancelledBy),
			Reason:           deref(cancelReason),
			CancelledAt:      *cancelledAt,
			RefundEligible:   refundEligible != nil && *refundEligible,
			HoursBeforeStart: derefFloat(hoursBeforeStart),
		}
	}
	return &b, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefFloat(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
