package predict

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/permitpath/engine/internal/baseline"
	"github.com/permitpath/engine/internal/core/domain"
	"github.com/permitpath/engine/internal/infra/storage"
	"github.com/permitpath/engine/internal/ops"
	"github.com/permitpath/engine/internal/resilience/breaker"
	"github.com/permitpath/engine/internal/resilience/pool"
)

// allClearNote discloses the documented approximation behind the estimate:
// the sum assumes a linear chain even though stations can run in parallel.
const allClearNote = "Estimate sums median durations along the single most likely path; parallel review stations are not modeled."

// Config tunes the predictor.
type Config struct {
	StallThresholdDays         int `yaml:"stall_threshold_days"`
	MinNeighborhoodTransitions int `yaml:"min_neighborhood_transitions"`
	TopN                       int `yaml:"top_n"`
}

// DefaultConfig provides sensible defaults.
var DefaultConfig = Config{
	StallThresholdDays:         60,
	MinNeighborhoodTransitions: 5,
	TopN:                       3,
}

// Predictor ranks the probable next review stations for an in-flight
// permit using a transition-frequency model over similar permits.
type Predictor struct {
	catalog   storage.PermitCatalog
	events    storage.EventRepository
	baselines *baseline.Store
	cfg       Config
	log       *slog.Logger
	now       func() time.Time
}

// NewPredictor creates a predictor.
func NewPredictor(
	catalog storage.PermitCatalog,
	events storage.EventRepository,
	baselines *baseline.Store,
	cfg Config,
	log *slog.Logger,
) *Predictor {
	if cfg.StallThresholdDays <= 0 {
		cfg.StallThresholdDays = DefaultConfig.StallThresholdDays
	}
	if cfg.MinNeighborhoodTransitions <= 0 {
		cfg.MinNeighborhoodTransitions = DefaultConfig.MinNeighborhoodTransitions
	}
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultConfig.TopN
	}
	if log == nil {
		log = slog.Default()
	}
	return &Predictor{
		catalog:   catalog,
		events:    events,
		baselines: baselines,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// Predict answers "what happens next" for a permit. It never returns an
// error: not-found, missing data, and dependency failures all come back as
// labeled outcomes with a human-readable narrative.
func (p *Predictor) Predict(ctx context.Context, permitID string) domain.Prediction {
	pred, err := p.predict(ctx, permitID)
	if err != nil {
		pred = p.failurePrediction(permitID, err)
	}
	ops.PredictionsTotal.WithLabelValues(string(pred.Outcome)).Inc()
	return pred
}

func (p *Predictor) newPrediction(permitID string) domain.Prediction {
	return domain.Prediction{
		ID:          uuid.NewString(),
		PermitID:    permitID,
		GeneratedAt: p.now(),
	}
}

func (p *Predictor) failurePrediction(permitID string, err error) domain.Prediction {
	pred := p.newPrediction(permitID)
	if errors.Is(err, storage.ErrPermitNotFound) {
		pred.Outcome = domain.OutcomeNotFound
		pred.Narrative = fmt.Sprintf("Permit %s was not found in the routing records.", permitID)
		return pred
	}

	pred.Outcome = domain.OutcomeUnavailable
	pred.Narrative = fmt.Sprintf(
		"Routing data for permit %s is temporarily unavailable. Please try again in a few minutes.",
		permitID)
	if !errors.Is(err, breaker.ErrOpen) && !errors.Is(err, pool.ErrPoolExhausted) {
		p.log.Error("prediction failed", "permit_id", permitID, "error", err)
	}
	return pred
}

func (p *Predictor) predict(ctx context.Context, permitID string) (domain.Prediction, error) {
	pred := p.newPrediction(permitID)
	now := pred.GeneratedAt

	snap, err := p.catalog.Snapshot(ctx, permitID)
	if err != nil {
		return pred, err
	}

	events, err := p.events.ListByPermit(ctx, permitID)
	if err != nil {
		return pred, err
	}

	current := currentStation(events)
	if current == nil {
		if snap.Terminal() {
			pred.Outcome = domain.OutcomeReviewComplete
			pred.Narrative = fmt.Sprintf(
				"Permit %s is %s — review is complete and no further stations are expected.",
				permitID, strings.ToLower(snap.Status))
			return pred, nil
		}
		if len(events) == 0 {
			pred.Outcome = domain.OutcomeNoRoutingData
			pred.Narrative = fmt.Sprintf(
				"No routing data is available for permit %s yet — it may not have entered review.",
				permitID)
			return pred, nil
		}
		// Every station closed out but the permit is not terminal: it is
		// between stations waiting on the next routing entry.
		pred.Outcome = domain.OutcomeNoRoutingData
		pred.Narrative = fmt.Sprintf(
			"Permit %s is not checked in at any station right now; it is likely between review stations.",
			permitID)
		return pred, nil
	}

	pred.CurrentStation = current.StationCode
	pred.CurrentStationName = domain.StationName(current.StationCode)
	pred.DwellDays = current.Dwell(now).Hours() / 24
	pred.Stalled = pred.DwellDays > float64(p.cfg.StallThresholdDays)

	matrix, scope, err := p.buildMatrix(ctx, snap, current.StationCode)
	if err != nil {
		return pred, err
	}
	pred.Scope = scope
	pred.SampleSize = matrix.Total()
	pred.Confidence = domain.ConfidenceFor(matrix.Total())

	top := matrix.RankFrom(current.StationCode, p.cfg.TopN)
	if len(top) == 0 {
		pred.Outcome = domain.OutcomeNoTransitions
		pred.Narrative = p.noTransitionsNarrative(&pred)
		return pred, nil
	}

	for _, candidate := range top {
		forecast := domain.StationForecast{
			StationCode: candidate.Station,
			StationName: domain.StationName(candidate.Station),
			Probability: candidate.Probability,
			Transitions: candidate.Count,
		}
		res, err := p.baselines.Get(ctx, candidate.Station)
		if err != nil {
			return pred, err
		}
		if res.Trusted() {
			forecast.HasBaseline = true
			forecast.P50Days = res.Baseline.P50Days
			forecast.P75Days = res.Baseline.P75Days
			pred.AllClearDays += res.Baseline.P50Days
		}
		pred.Next = append(pred.Next, forecast)
	}

	pred.Outcome = domain.OutcomePredicted
	pred.AllClearNote = allClearNote
	pred.Narrative = p.predictedNarrative(&pred)
	return pred, nil
}

// buildMatrix builds the transition matrix from the neighborhood cohort,
// falling back to the city-wide cohort when too few transitions leave the
// current station. The fallback is a second full build so the scope label
// always matches the data actually used.
func (p *Predictor) buildMatrix(ctx context.Context, snap *domain.PermitSnapshot, station string) (*Matrix, domain.MatrixScope, error) {
	started := time.Now()
	defer func() {
		ops.MatrixBuildDuration.Observe(time.Since(started).Seconds())
	}()

	if snap.Neighborhood != "" {
		events, err := p.events.ListCohort(ctx, snap.Type, snap.Neighborhood, snap.PermitID)
		if err != nil {
			return nil, "", err
		}
		m := buildMatrix(events)
		if m.TotalFrom(station) >= p.cfg.MinNeighborhoodTransitions {
			return m, domain.ScopeNeighborhood, nil
		}
		p.log.Debug("neighborhood cohort too thin, falling back to city-wide",
			"permit_id", snap.PermitID,
			"station", station,
			"transitions", m.TotalFrom(station),
		)
	}

	events, err := p.events.ListCohort(ctx, snap.Type, "", snap.PermitID)
	if err != nil {
		return nil, "", err
	}
	return buildMatrix(events), domain.ScopeCitywide, nil
}

func (p *Predictor) predictedNarrative(pred *domain.Prediction) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Permit %s is at %s (%.0f days so far",
		pred.PermitID, pred.CurrentStationName, pred.DwellDays)
	if pred.Stalled {
		b.WriteString(", which is past the stall threshold")
	}
	b.WriteString("). ")

	scope := "permits of the same type in the same neighborhood"
	if pred.Scope == domain.ScopeCitywide {
		scope = "permits of the same type city-wide"
	}
	fmt.Fprintf(&b, "Based on %d observed moves among %s, the most likely next stations are: ",
		pred.SampleSize, scope)

	parts := make([]string, 0, len(pred.Next))
	for _, f := range pred.Next {
		part := fmt.Sprintf("%s (%.0f%%", f.StationName, f.Probability*100)
		if f.HasBaseline {
			part += fmt.Sprintf(", typically %.0f–%.0f days", f.P50Days, f.P75Days)
		}
		part += ")"
		parts = append(parts, part)
	}
	b.WriteString(strings.Join(parts, ", "))
	b.WriteString(". ")

	if pred.AllClearDays > 0 {
		fmt.Fprintf(&b, "If reviews proceed at the median pace, expect roughly %.0f more days to all-clear. ",
			pred.AllClearDays)
	}
	fmt.Fprintf(&b, "Confidence: %s.", pred.Confidence)
	return b.String()
}

func (p *Predictor) noTransitionsNarrative(pred *domain.Prediction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Permit %s is at %s (%.0f days so far",
		pred.PermitID, pred.CurrentStationName, pred.DwellDays)
	if pred.Stalled {
		b.WriteString(", which is past the stall threshold")
	}
	b.WriteString("). ")
	fmt.Fprintf(&b,
		"No historical moves out of %s were found for this permit type, so no next-station prediction is available.",
		pred.CurrentStationName)
	return b.String()
}

// currentStation returns the open event with the most recent arrival, or
// nil when the permit is not at any station.
func currentStation(events []domain.RoutingEvent) *domain.RoutingEvent {
	var current *domain.RoutingEvent
	for i := range events {
		ev := &events[i]
		if !ev.Open() {
			continue
		}
		if current == nil || ev.ArrivedAt.After(current.ArrivedAt) {
			current = ev
		}
	}
	return current
}
