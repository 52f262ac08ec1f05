package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/permitpath/engine/internal/core/domain"
	"github.com/permitpath/engine/internal/infra/storage"
)

// MemoryStorage is an in-memory implementation of the storage interfaces.
// Used by tests and by local development without a database.
type MemoryStorage struct {
	mu        sync.RWMutex
	events    []domain.RoutingEvent
	eventMeta map[string]permitMeta // permit_id -> denormalized cohort fields
	baselines map[string]domain.StationBaseline
	permits   map[string]domain.PermitSnapshot

	// call counters for spy assertions in tests
	CohortCalls int
}

type permitMeta struct {
	permitType   string
	neighborhood string
}

func baselineKey(station string, window domain.BaselineWindow) string {
	return station + "|" + string(window)
}

// NewMemoryStorage creates empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		eventMeta: make(map[string]permitMeta),
		baselines: make(map[string]domain.StationBaseline),
		permits:   make(map[string]domain.PermitSnapshot),
	}
}

// AddPermit registers a permit snapshot with its cohort fields.
func (s *MemoryStorage) AddPermit(p domain.PermitSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permits[p.PermitID] = p
	s.eventMeta[p.PermitID] = permitMeta{permitType: p.Type, neighborhood: p.Neighborhood}
}

// AddEvent appends a routing event.
func (s *MemoryStorage) AddEvent(ev domain.RoutingEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

// SetBaseline stores a baseline row.
func (s *MemoryStorage) SetBaseline(b domain.StationBaseline) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baselines[baselineKey(b.StationCode, b.Window)] = b
}

// -----------------------------------------------------------------------------
// EventRepository
// -----------------------------------------------------------------------------

type EventRepo struct {
	store *MemoryStorage
}

func NewEventRepo(store *MemoryStorage) *EventRepo {
	return &EventRepo{store: store}
}

func (r *EventRepo) ListByPermit(ctx context.Context, permitID string) ([]domain.RoutingEvent, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []domain.RoutingEvent
	for _, ev := range r.store.events {
		if ev.PermitID == permitID {
			out = append(out, ev)
		}
	}
	sortEvents(out)
	return out, nil
}

func (r *EventRepo) ListOpenByPermit(ctx context.Context, permitID string) ([]domain.RoutingEvent, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []domain.RoutingEvent
	for _, ev := range r.store.events {
		if ev.PermitID == permitID && ev.Open() {
			out = append(out, ev)
		}
	}
	sortEvents(out)
	return out, nil
}

func (r *EventRepo) ListCohort(ctx context.Context, permitType, neighborhood, excludePermitID string) ([]domain.RoutingEvent, error) {
	r.store.mu.Lock()
	r.store.CohortCalls++
	r.store.mu.Unlock()

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []domain.RoutingEvent
	for _, ev := range r.store.events {
		if ev.PermitID == excludePermitID {
			continue
		}
		meta := r.store.eventMeta[ev.PermitID]
		if meta.permitType != permitType {
			continue
		}
		if neighborhood != "" && meta.neighborhood != neighborhood {
			continue
		}
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PermitID != out[j].PermitID {
			return out[i].PermitID < out[j].PermitID
		}
		return out[i].ArrivedAt.Before(out[j].ArrivedAt)
	})
	return out, nil
}

func (r *EventRepo) ListCompleted(ctx context.Context, since time.Time) ([]domain.RoutingEvent, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []domain.RoutingEvent
	for _, ev := range r.store.events {
		if ev.Open() {
			continue
		}
		if !since.IsZero() && ev.ArrivedAt.Before(since) {
			continue
		}
		out = append(out, ev)
	}
	sortEvents(out)
	return out, nil
}

func sortEvents(evs []domain.RoutingEvent) {
	sort.SliceStable(evs, func(i, j int) bool {
		if !evs[i].ArrivedAt.Equal(evs[j].ArrivedAt) {
			return evs[i].ArrivedAt.Before(evs[j].ArrivedAt)
		}
		return evs[i].StationCode < evs[j].StationCode
	})
}

// -----------------------------------------------------------------------------
// BaselineRepository
// -----------------------------------------------------------------------------

type BaselineRepo struct {
	store *MemoryStorage
}

func NewBaselineRepo(store *MemoryStorage) *BaselineRepo {
	return &BaselineRepo{store: store}
}

func (r *BaselineRepo) Get(ctx context.Context, station string, window domain.BaselineWindow) (*domain.StationBaseline, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	b, ok := r.store.baselines[baselineKey(station, window)]
	if !ok {
		return nil, storage.ErrNoBaseline
	}
	out := b
	return &out, nil
}

func (r *BaselineRepo) Upsert(ctx context.Context, rows []domain.StationBaseline) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, row := range rows {
		r.store.baselines[baselineKey(row.StationCode, row.Window)] = row
	}
	return nil
}

// Baselines returns a sorted copy of all rows (test helper).
func (s *MemoryStorage) Baselines() []domain.StationBaseline {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.StationBaseline, 0, len(s.baselines))
	for _, b := range s.baselines {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StationCode != out[j].StationCode {
			return out[i].StationCode < out[j].StationCode
		}
		return out[i].Window < out[j].Window
	})
	return out
}

// -----------------------------------------------------------------------------
// PermitCatalog
// -----------------------------------------------------------------------------

type PermitRepo struct {
	store *MemoryStorage
}

func NewPermitRepo(store *MemoryStorage) *PermitRepo {
	return &PermitRepo{store: store}
}

func (r *PermitRepo) Snapshot(ctx context.Context, permitID string) (*domain.PermitSnapshot, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	p, ok := r.store.permits[permitID]
	if !ok {
		return nil, storage.ErrPermitNotFound
	}
	out := p
	return &out, nil
}
