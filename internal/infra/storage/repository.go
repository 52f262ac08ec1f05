package storage

import (
	"context"
	"errors"
	"time"

	"github.com/permitpath/engine/internal/core/domain"
)

var (
	// ErrPermitNotFound is returned when the catalog has no such permit.
	ErrPermitNotFound = errors.New("permit not found")

	// ErrNoBaseline is returned when no baseline row exists for a station
	// and window. InsufficientData is not an error: rows below the sample
	// threshold are returned and rejected by the caller's fallback chain.
	ErrNoBaseline = errors.New("no baseline for station")
)

// EventRepository reads routing events written by the upstream feed. The
// engine never writes events.
type EventRepository interface {
	// ListByPermit returns all events for a permit ordered by arrival.
	ListByPermit(ctx context.Context, permitID string) ([]domain.RoutingEvent, error)

	// ListOpenByPermit returns the permit's active (null-completion)
	// events ordered by arrival.
	ListOpenByPermit(ctx context.Context, permitID string) ([]domain.RoutingEvent, error)

	// ListCohort returns events of other permits sharing permitType and,
	// when neighborhood is non-empty, the neighborhood too. Ordered by
	// (permit, arrival) so callers can walk station sequences.
	ListCohort(ctx context.Context, permitType, neighborhood, excludePermitID string) ([]domain.RoutingEvent, error)

	// ListCompleted returns completed events arrived at or after since;
	// a zero since means all of history.
	ListCompleted(ctx context.Context, since time.Time) ([]domain.RoutingEvent, error)
}

// BaselineRepository stores station velocity baselines. The refresh worker
// is the sole writer and uses replace-by-key upserts.
type BaselineRepository interface {
	Get(ctx context.Context, station string, window domain.BaselineWindow) (*domain.StationBaseline, error)
	Upsert(ctx context.Context, rows []domain.StationBaseline) error
}

// PermitCatalog supplies permit snapshots from the metadata collaborator.
type PermitCatalog interface {
	Snapshot(ctx context.Context, permitID string) (*domain.PermitSnapshot, error)
}
