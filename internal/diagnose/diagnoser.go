package diagnose

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/permitpath/engine/internal/baseline"
	"github.com/permitpath/engine/internal/core/domain"
	"github.com/permitpath/engine/internal/infra/storage"
	"github.com/permitpath/engine/internal/ops"
	"github.com/permitpath/engine/internal/resilience/breaker"
	"github.com/permitpath/engine/internal/resilience/pool"
)

// Config tunes the diagnoser.
type Config struct {
	// Heuristic thresholds used when no trustworthy baseline exists.
	HeuristicStalledDays  int `yaml:"heuristic_stalled_days"`
	HeuristicCriticalDays int `yaml:"heuristic_critical_days"`
	// InactivityDays flags permits with no recorded activity at all.
	InactivityDays int `yaml:"inactivity_days"`
}

// DefaultConfig provides sensible defaults.
var DefaultConfig = Config{
	HeuristicStalledDays:  45,
	HeuristicCriticalDays: 90,
	InactivityDays:        30,
}

// ContactSource enriches inter-agency escalation contacts. The static
// station registry is the fallback when lookup fails or no source is wired.
type ContactSource interface {
	AgencyContact(ctx context.Context, agency string) (*domain.AgencyContact, error)
}

// Diagnoser walks a permit's active stations, grades dwell against
// baselines, detects stuck patterns, and assembles a prioritized
// intervention playbook.
type Diagnoser struct {
	catalog   storage.PermitCatalog
	events    storage.EventRepository
	baselines *baseline.Store
	contacts  ContactSource // may be nil
	cfg       Config
	log       *slog.Logger
	now       func() time.Time
}

// NewDiagnoser creates a diagnoser.
func NewDiagnoser(
	catalog storage.PermitCatalog,
	events storage.EventRepository,
	baselines *baseline.Store,
	contacts ContactSource,
	cfg Config,
	log *slog.Logger,
) *Diagnoser {
	if cfg.HeuristicStalledDays <= 0 {
		cfg.HeuristicStalledDays = DefaultConfig.HeuristicStalledDays
	}
	if cfg.HeuristicCriticalDays <= 0 {
		cfg.HeuristicCriticalDays = DefaultConfig.HeuristicCriticalDays
	}
	if cfg.InactivityDays <= 0 {
		cfg.InactivityDays = DefaultConfig.InactivityDays
	}
	if log == nil {
		log = slog.Default()
	}
	return &Diagnoser{
		catalog:   catalog,
		events:    events,
		baselines: baselines,
		contacts:  contacts,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// Diagnose produces the stuck-permit playbook. Like the predictor it never
// returns an error: every failure mode becomes a labeled outcome carrying
// the permit identifier.
func (d *Diagnoser) Diagnose(ctx context.Context, permitID string) domain.Playbook {
	pb, err := d.diagnose(ctx, permitID)
	if err != nil {
		pb = d.failurePlaybook(permitID, err)
	}
	ops.PlaybooksTotal.WithLabelValues(string(pb.Outcome)).Inc()
	return pb
}

func (d *Diagnoser) newPlaybook(permitID string) domain.Playbook {
	return domain.Playbook{
		ID:          uuid.NewString(),
		PermitID:    permitID,
		GeneratedAt: d.now(),
	}
}

func (d *Diagnoser) failurePlaybook(permitID string, err error) domain.Playbook {
	pb := d.newPlaybook(permitID)
	if errors.Is(err, storage.ErrPermitNotFound) {
		pb.Outcome = domain.PlaybookNotFound
		pb.Narrative = fmt.Sprintf("Permit %s was not found in the routing records.", permitID)
		return pb
	}

	pb.Outcome = domain.PlaybookFailed
	pb.Narrative = fmt.Sprintf(
		"Diagnosis for permit %s is temporarily unavailable. Please try again in a few minutes.",
		permitID)
	if !errors.Is(err, breaker.ErrOpen) && !errors.Is(err, pool.ErrPoolExhausted) {
		d.log.Error("diagnosis failed", "permit_id", permitID, "error", err)
	}
	return pb
}

func (d *Diagnoser) diagnose(ctx context.Context, permitID string) (domain.Playbook, error) {
	pb := d.newPlaybook(permitID)
	now := pb.GeneratedAt

	snap, err := d.catalog.Snapshot(ctx, permitID)
	if err != nil {
		return pb, err
	}

	all, err := d.events.ListByPermit(ctx, permitID)
	if err != nil {
		return pb, err
	}

	var active []domain.RoutingEvent
	for _, ev := range all {
		if ev.Open() {
			active = append(active, ev)
		}
	}

	if len(active) == 0 {
		if snap.Terminal() {
			pb.Outcome = domain.PlaybookComplete
			pb.Narrative = fmt.Sprintf("Permit %s has finished review (%s); there is nothing to unstick.",
				permitID, snap.Status)
			return pb, nil
		}
		pb.Outcome = domain.PlaybookNotInQueue
		pb.Narrative = fmt.Sprintf(
			"Permit %s has no active review stations. It may not have entered the review queue yet; "+
				"check with the permit counter that intake is complete.", permitID)
		return pb, nil
	}

	var steps []scoredStep
	for i := range active {
		diag, err := d.diagnoseStation(ctx, &active[i], now)
		if err != nil {
			return pb, err
		}
		pb.Stations = append(pb.Stations, diag)
		steps = append(steps, d.stationSteps(ctx, diag, &active[i])...)
	}

	steps = append(steps, d.patternSteps(all, now)...)

	maxCycle := 0
	for _, ev := range all {
		if ev.Cycle > maxCycle {
			maxCycle = ev.Cycle
		}
	}
	if maxCycle >= 2 {
		pb.RevisionNote = fmt.Sprintf("This permit has gone through %d review cycles (%d resubmission(s)).",
			maxCycle, maxCycle-1)
	}

	pb.Steps = orderSteps(steps)
	pb.Outcome = domain.PlaybookDiagnosed
	pb.Narrative = d.narrative(&pb)
	return pb, nil
}

// diagnoseStation grades one active station's dwell against its baseline,
// falling back to the fixed day-count heuristic when no trustworthy
// baseline exists.
func (d *Diagnoser) diagnoseStation(ctx context.Context, ev *domain.RoutingEvent, now time.Time) (domain.StationDiagnosis, error) {
	info := domain.StationInfoFor(ev.StationCode)
	diag := domain.StationDiagnosis{
		StationCode: ev.StationCode,
		StationName: info.Name,
		Agency:      info.Agency,
		InterAgency: info.InterAgency,
		Cycle:       ev.Cycle,
		DwellDays:   ev.Dwell(now).Hours() / 24,
		Result:      ev.Result,
	}

	res, err := d.baselines.Get(ctx, ev.StationCode)
	if err != nil {
		return diag, err
	}
	diag.BaselineSource = res.Source

	if res.Trusted() {
		diag.P50Days = res.Baseline.P50Days
		diag.P90Days = res.Baseline.P90Days
		switch {
		case diag.DwellDays > res.Baseline.P90Days:
			diag.Severity = domain.SeverityCritical
		case diag.DwellDays > res.Baseline.P50Days:
			diag.Severity = domain.SeverityStalled
		default:
			diag.Severity = domain.SeverityNormal
		}
		return diag, nil
	}

	switch {
	case diag.DwellDays > float64(d.cfg.HeuristicCriticalDays):
		diag.Severity = domain.SeverityCritical
	case diag.DwellDays > float64(d.cfg.HeuristicStalledDays):
		diag.Severity = domain.SeverityStalled
	default:
		diag.Severity = domain.SeverityNormal
	}
	return diag, nil
}
