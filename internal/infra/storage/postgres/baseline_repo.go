package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/permitpath/engine/internal/core/domain"
	"github.com/permitpath/engine/internal/infra/storage"
	"github.com/permitpath/engine/internal/resilience/pool"
)

// BaselineRepo implements storage.BaselineRepository over the
// station_baselines table. Queries go through the bounded checkout pool
// like every other repository.
type BaselineRepo struct {
	db   *DB
	pool *pool.Pool
}

// NewBaselineRepo creates a baseline repository.
func NewBaselineRepo(db *DB, p *pool.Pool) *BaselineRepo {
	return &BaselineRepo{db: db, pool: p}
}

// Get returns the baseline row for a station and window.
func (r *BaselineRepo) Get(ctx context.Context, station string, window domain.BaselineWindow) (*domain.StationBaseline, error) {
	ctx, cancel := r.db.queryCtx(ctx)
	defer cancel()

	lease, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	var row domain.StationBaseline
	err = lease.Conn.GetContext(ctx, &row,
		`SELECT station_code, time_window, sample_count, p50_days, p75_days, p90_days, computed_at
		 FROM station_baselines
		 WHERE station_code = $1 AND time_window = $2`, station, string(window))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNoBaseline
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get baseline: %w", err)
	}
	return &row, nil
}

// Upsert replaces baseline rows by (station, window) key so readers see
// either the old complete row or the new complete row, never a partial one.
func (r *BaselineRepo) Upsert(ctx context.Context, rows []domain.StationBaseline) error {
	if len(rows) == 0 {
		return nil
	}

	ctx, cancel := r.db.queryCtx(ctx)
	defer cancel()

	lease, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()

	tx, err := lease.Conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, row := range rows {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO station_baselines
			   (station_code, time_window, sample_count, p50_days, p75_days, p90_days, computed_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (station_code, time_window) DO UPDATE SET
			   sample_count = EXCLUDED.sample_count,
			   p50_days = EXCLUDED.p50_days,
			   p75_days = EXCLUDED.p75_days,
			   p90_days = EXCLUDED.p90_days,
			   computed_at = EXCLUDED.computed_at`,
			row.StationCode, string(row.Window), row.SampleCount,
			row.P50Days, row.P75Days, row.P90Days, row.ComputedAt)
		if err != nil {
			return fmt.Errorf("failed to upsert baseline %s/%s: %w", row.StationCode, row.Window, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit baselines: %w", err)
	}
	return nil
}
