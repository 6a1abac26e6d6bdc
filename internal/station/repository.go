package station

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the read side of the station/port directory.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Station, error)
	GetPort(ctx context.Context, id string) (*Port, error)
	ListPorts(ctx context.Context, stationID string) ([]*Port, error)
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

var portColumns = []string{
	"id", "station_id", "label", "connector_type", "power_output_kw",
	"price_per_unit", "peak_price_per_unit", "off_peak_price_per_unit", "status",
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Station, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(
		"id", "vendor_id", "name", "timezone", "operating_hours", "is_active", "created_at",
	).
		From("public.stations").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get station query failed: %w", err)
	}

	var s Station
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&s.ID, &s.VendorID, &s.Name, &s.Timezone, &s.OperatingHours, &s.IsActive, &s.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get station failed: %w", err)
	}
	return &s, nil
}

func (r *pgxRepository) GetPort(ctx context.Context, id string) (*Port, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(portColumns...).
		From("public.ports").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get port query failed: %w", err)
	}

	p, err := scanPort(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPortNotFound
		}
		return nil, fmt.Errorf("get port failed: %w", err)
	}
	return p, nil
}

func (r *pgxRepository) ListPorts(ctx context.Context, stationID string) ([]*Port, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(portColumns...).
		From("public.ports").
		Where(squirrel.Eq{"station_id": stationID}).
		OrderBy("label ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list ports query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ports failed: %w", err)
	}
	defer rows.Close()

	var ports []*Port
	for rows.Next() {
		p, err := scanPort(rows)
		if err != nil {
			return nil, fmt.Errorf("scan port failed: %w", err)
		}
		ports = append(ports, p)
	}
	return ports, rows.Err()
}

func scanPort(row pgx.Row) (*Port, error) {
	var p Port
	err := row.Scan(
		&p.ID, &p.StationID, &p.Label, &p.ConnectorType, &p.PowerOutputKW,
		&p.PricePerUnit, &p.PeakPricePerUnit, &p.OffPeakPricePerUnit, &p.Status,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
