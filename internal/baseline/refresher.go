package baseline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/permitpath/engine/internal/core/domain"
	"github.com/permitpath/engine/internal/infra/storage"
	"github.com/permitpath/engine/internal/ops"
)

// RefresherConfig controls the batch recompute.
type RefresherConfig struct {
	Interval          time.Duration `yaml:"interval"`
	CurrentWindowDays int           `yaml:"current_window_days"`
}

// Refresher recomputes station baselines from completed routing events on a
// fixed cadence. It is the sole writer of baseline rows; replace-by-key
// upserts keep concurrent readers consistent. Re-running over unchanged
// events produces identical rows.
type Refresher struct {
	events    storage.EventRepository
	baselines storage.BaselineRepository
	cache     Cache // may be nil
	cfg       RefresherConfig
	log       *slog.Logger
	now       func() time.Time
}

// NewRefresher creates a baseline refresher.
func NewRefresher(
	events storage.EventRepository,
	baselines storage.BaselineRepository,
	cache Cache,
	cfg RefresherConfig,
	log *slog.Logger,
) *Refresher {
	if cfg.Interval <= 0 {
		cfg.Interval = 6 * time.Hour
	}
	if cfg.CurrentWindowDays <= 0 {
		cfg.CurrentWindowDays = 180
	}
	if log == nil {
		log = slog.Default()
	}
	return &Refresher{
		events:    events,
		baselines: baselines,
		cache:     cache,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// Start runs the refresh loop until ctx is cancelled. An initial refresh
// runs immediately so a fresh deployment has baselines before the first
// tick.
func (r *Refresher) Start(ctx context.Context) {
	if err := r.RefreshOnce(ctx); err != nil {
		r.log.Error("initial baseline refresh failed", "error", err)
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.RefreshOnce(ctx); err != nil {
				r.log.Error("baseline refresh failed", "error", err)
			}
		}
	}
}

// RefreshOnce recomputes and upserts all baseline rows for both windows.
func (r *Refresher) RefreshOnce(ctx context.Context) error {
	started := r.now()

	events, err := r.events.ListCompleted(ctx, time.Time{})
	if err != nil {
		return fmt.Errorf("failed to load completed events: %w", err)
	}

	cutoff := started.AddDate(0, 0, -r.cfg.CurrentWindowDays)

	rows := aggregate(events, domain.WindowAllTime, time.Time{}, started)
	rows = append(rows, aggregate(events, domain.WindowCurrent, cutoff, started)...)

	if err := r.baselines.Upsert(ctx, rows); err != nil {
		return fmt.Errorf("failed to upsert baselines: %w", err)
	}

	if r.cache != nil {
		if err := r.cache.InvalidateBaselines(ctx); err != nil {
			r.log.Warn("baseline cache invalidation failed", "error", err)
		}
	}

	elapsed := time.Since(started)
	ops.BaselineRefreshDuration.Observe(elapsed.Seconds())
	ops.BaselineRowsWritten.Add(float64(len(rows)))
	r.log.Info("baseline refresh complete",
		"events", len(events),
		"rows", len(rows),
		"elapsed", elapsed,
	)
	return nil
}

// aggregate groups completed events by station and computes percentile
// dwell statistics for one window. A zero cutoff means all of history.
func aggregate(events []domain.RoutingEvent, window domain.BaselineWindow, cutoff, computedAt time.Time) []domain.StationBaseline {
	dwells := make(map[string][]float64)
	for i := range events {
		ev := &events[i]
		if ev.Open() {
			continue
		}
		if !cutoff.IsZero() && ev.ArrivedAt.Before(cutoff) {
			continue
		}
		days := ev.Dwell(computedAt).Hours() / 24
		dwells[ev.StationCode] = append(dwells[ev.StationCode], days)
	}

	rows := make([]domain.StationBaseline, 0, len(dwells))
	for station, values := range dwells {
		rows = append(rows, domain.StationBaseline{
			StationCode: station,
			Window:      window,
			SampleCount: len(values),
			P50Days:     percentile(values, 50),
			P75Days:     percentile(values, 75),
			P90Days:     percentile(values, 90),
			ComputedAt:  computedAt,
		})
	}
	return rows
}
