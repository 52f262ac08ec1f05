package baseline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/permitpath/engine/internal/core/domain"
	"github.com/permitpath/engine/internal/infra/storage"
)

// Cache is an optional read-through cache in front of the baseline table.
// Baselines go stale between refreshes anyway, so cached reads with a short
// TTL are always acceptable.
type Cache interface {
	GetBaseline(ctx context.Context, station string, window domain.BaselineWindow) (*domain.StationBaseline, bool, error)
	SetBaseline(ctx context.Context, b domain.StationBaseline) error
	InvalidateBaselines(ctx context.Context) error
}

// Result is a baseline lookup answer. When Source is SourceHeuristic no
// trustworthy row existed and Baseline is nil; the caller applies its
// hard-coded heuristic.
type Result struct {
	Baseline *domain.StationBaseline
	Source   domain.BaselineSource
}

// Trusted reports whether a real baseline backs this result.
func (r Result) Trusted() bool {
	return r.Baseline != nil
}

// Store answers baseline lookups with a deterministic fallback chain:
// current window, then all-time, then no baseline. Each step is accepted
// only when its sample count meets the minimum.
type Store struct {
	repo       storage.BaselineRepository
	cache      Cache // may be nil
	minSamples int
	log        *slog.Logger
}

// NewStore creates a baseline store. minSamples <= 0 falls back to
// domain.DefaultMinSamples.
func NewStore(repo storage.BaselineRepository, cache Cache, minSamples int, log *slog.Logger) *Store {
	if minSamples <= 0 {
		minSamples = domain.DefaultMinSamples
	}
	if log == nil {
		log = slog.Default()
	}
	return &Store{repo: repo, cache: cache, minSamples: minSamples, log: log}
}

// fallbackChain is the ordered list of windows tried by Get. Order matters
// and is covered by tests; do not reorder.
var fallbackChain = []struct {
	window domain.BaselineWindow
	source domain.BaselineSource
}{
	{domain.WindowCurrent, domain.SourceCurrent},
	{domain.WindowAllTime, domain.SourceAllTime},
}

// Get resolves the baseline for a station. Missing rows and rows below the
// sample threshold fall through to the next window; exhausting the chain
// returns a heuristic result, never an error.
func (s *Store) Get(ctx context.Context, station string) (Result, error) {
	for _, step := range fallbackChain {
		b, err := s.lookup(ctx, station, step.window)
		if errors.Is(err, storage.ErrNoBaseline) {
			continue
		}
		if err != nil {
			return Result{}, fmt.Errorf("baseline lookup %s/%s: %w", station, step.window, err)
		}
		if b.SampleCount >= s.minSamples {
			return Result{Baseline: b, Source: step.source}, nil
		}
	}
	return Result{Source: domain.SourceHeuristic}, nil
}

func (s *Store) lookup(ctx context.Context, station string, window domain.BaselineWindow) (*domain.StationBaseline, error) {
	if s.cache != nil {
		b, ok, err := s.cache.GetBaseline(ctx, station, window)
		if err != nil {
			s.log.Warn("baseline cache read failed", "station", station, "error", err)
		} else if ok {
			return b, nil
		}
	}

	b, err := s.repo.Get(ctx, station, window)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetBaseline(ctx, *b); err != nil {
			s.log.Warn("baseline cache write failed", "station", station, "error", err)
		}
	}
	return b, nil
}
