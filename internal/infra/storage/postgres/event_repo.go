package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/permitpath/engine/internal/core/domain"
	"github.com/permitpath/engine/internal/resilience/pool"
)

// EventRepo implements storage.EventRepository over the routing_events
// table. The ingestion feed denormalizes permit_type and neighborhood onto
// each row so cohort queries need no join against permit metadata this
// engine does not own.
//
// Every query checks a connection out of the bounded pool; exhaustion
// surfaces as pool.ErrPoolExhausted instead of a blocked request.
type EventRepo struct {
	db   *DB
	pool *pool.Pool
}

// NewEventRepo creates a routing-event repository.
func NewEventRepo(db *DB, p *pool.Pool) *EventRepo {
	return &EventRepo{db: db, pool: p}
}

type eventRow struct {
	PermitID    string       `db:"permit_id"`
	StationCode string       `db:"station_code"`
	Cycle       int          `db:"cycle"`
	ArrivedAt   time.Time    `db:"arrived_at"`
	CompletedAt sql.NullTime `db:"completed_at"`
	Result      string       `db:"review_result"`
}

func (r eventRow) toDomain() domain.RoutingEvent {
	ev := domain.RoutingEvent{
		PermitID:    r.PermitID,
		StationCode: r.StationCode,
		Cycle:       r.Cycle,
		ArrivedAt:   r.ArrivedAt,
		Result:      domain.ReviewResult(r.Result),
	}
	if r.CompletedAt.Valid {
		t := r.CompletedAt.Time
		ev.CompletedAt = &t
	}
	return ev
}

const eventColumns = `permit_id, station_code, cycle, arrived_at, completed_at, review_result`

// ListByPermit returns all events for a permit ordered by arrival.
func (r *EventRepo) ListByPermit(ctx context.Context, permitID string) ([]domain.RoutingEvent, error) {
	ctx, cancel := r.db.queryCtx(ctx)
	defer cancel()

	lease, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	var rows []eventRow
	err = lease.Conn.SelectContext(ctx, &rows,
		`SELECT `+eventColumns+`
		 FROM routing_events
		 WHERE permit_id = $1
		 ORDER BY arrived_at, station_code`, permitID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return toDomainEvents(rows), nil
}

// ListOpenByPermit returns the permit's active events ordered by arrival.
func (r *EventRepo) ListOpenByPermit(ctx context.Context, permitID string) ([]domain.RoutingEvent, error) {
	ctx, cancel := r.db.queryCtx(ctx)
	defer cancel()

	lease, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	var rows []eventRow
	err = lease.Conn.SelectContext(ctx, &rows,
		`SELECT `+eventColumns+`
		 FROM routing_events
		 WHERE permit_id = $1 AND completed_at IS NULL
		 ORDER BY arrived_at, station_code`, permitID)
	if err != nil {
		return nil, fmt.Errorf("failed to list open events: %w", err)
	}
	return toDomainEvents(rows), nil
}

// ListCohort returns events of other permits with the same type and,
// when neighborhood is non-empty, the same neighborhood.
func (r *EventRepo) ListCohort(ctx context.Context, permitType, neighborhood, excludePermitID string) ([]domain.RoutingEvent, error) {
	ctx, cancel := r.db.queryCtx(ctx)
	defer cancel()

	query := `SELECT ` + eventColumns + `
		 FROM routing_events
		 WHERE permit_type = $1 AND permit_id <> $2`
	args := []any{permitType, excludePermitID}
	if neighborhood != "" {
		query += ` AND neighborhood = $3`
		args = append(args, neighborhood)
	}
	query += ` ORDER BY permit_id, arrived_at, station_code`

	lease, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	var rows []eventRow
	if err := lease.Conn.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list cohort events: %w", err)
	}
	return toDomainEvents(rows), nil
}

// ListCompleted returns completed events arrived at or after since; a zero
// since means all of history.
func (r *EventRepo) ListCompleted(ctx context.Context, since time.Time) ([]domain.RoutingEvent, error) {
	ctx, cancel := r.db.queryCtx(ctx)
	defer cancel()

	query := `SELECT ` + eventColumns + `
		 FROM routing_events
		 WHERE completed_at IS NOT NULL`
	args := []any{}
	if !since.IsZero() {
		query += ` AND arrived_at >= $1`
		args = append(args, since)
	}
	query += ` ORDER BY station_code, arrived_at`

	lease, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	var rows []eventRow
	if err := lease.Conn.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list completed events: %w", err)
	}
	return toDomainEvents(rows), nil
}

func toDomainEvents(rows []eventRow) []domain.RoutingEvent {
	out := make([]domain.RoutingEvent, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}
