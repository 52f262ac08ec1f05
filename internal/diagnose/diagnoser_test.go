package diagnose

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/permitpath/engine/internal/baseline"
	"github.com/permitpath/engine/internal/core/domain"
	"github.com/permitpath/engine/internal/infra/storage/memory"
)

var testNow = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func newTestDiagnoser(ms *memory.MemoryStorage, contacts ContactSource) *Diagnoser {
	store := baseline.NewStore(memory.NewBaselineRepo(ms), nil, 30, nil)
	d := NewDiagnoser(
		memory.NewPermitRepo(ms),
		memory.NewEventRepo(ms),
		store,
		contacts,
		DefaultConfig,
		nil,
	)
	d.now = func() time.Time { return testNow }
	return d
}

func addPermit(ms *memory.MemoryStorage, id, status string) {
	ms.AddPermit(domain.PermitSnapshot{
		PermitID:     id,
		Type:         "alteration",
		Neighborhood: "Mission",
		Status:       status,
		FiledAt:      testNow.AddDate(0, -6, 0),
	})
}

// openAt adds an open routing event that arrived daysAgo days before testNow.
func openAt(ms *memory.MemoryStorage, permitID, station string, cycle, daysAgo int, result domain.ReviewResult) {
	ms.AddEvent(domain.RoutingEvent{
		PermitID:    permitID,
		StationCode: station,
		Cycle:       cycle,
		ArrivedAt:   testNow.AddDate(0, 0, -daysAgo),
		Result:      result,
	})
}

func setBaseline(ms *memory.MemoryStorage, station string, p50, p90 float64) {
	ms.SetBaseline(domain.StationBaseline{
		StationCode: station,
		Window:      domain.WindowCurrent,
		SampleCount: 50,
		P50Days:     p50,
		P75Days:     (p50 + p90) / 2,
		P90Days:     p90,
		ComputedAt:  testNow,
	})
}

func TestDiagnose_CompletedPermit(t *testing.T) {
	ms := memory.NewMemoryStorage()
	addPermit(ms, "P-200", "issued")

	d := newTestDiagnoser(ms, nil)
	pb := d.Diagnose(context.Background(), "P-200")

	if pb.Outcome != domain.PlaybookComplete {
		t.Fatalf("outcome = %s, want review_complete", pb.Outcome)
	}
	if !strings.Contains(pb.Narrative, "finished review") {
		t.Errorf("unexpected narrative: %q", pb.Narrative)
	}
}

func TestDiagnose_NotInQueue(t *testing.T) {
	ms := memory.NewMemoryStorage()
	addPermit(ms, "P-201", "filed")

	d := newTestDiagnoser(ms, nil)
	pb := d.Diagnose(context.Background(), "P-201")

	if pb.Outcome != domain.PlaybookNotInQueue {
		t.Fatalf("outcome = %s, want not_in_queue", pb.Outcome)
	}
}

func TestDiagnose_NotFound(t *testing.T) {
	ms := memory.NewMemoryStorage()
	d := newTestDiagnoser(ms, nil)

	pb := d.Diagnose(context.Background(), "P-404")
	if pb.Outcome != domain.PlaybookNotFound {
		t.Fatalf("outcome = %s, want not_found", pb.Outcome)
	}
	if !strings.Contains(pb.Narrative, "P-404") {
		t.Errorf("narrative must carry the permit id: %q", pb.Narrative)
	}
}

func TestDiagnose_SeverityAgainstBaseline(t *testing.T) {
	tests := []struct {
		name     string
		dwell    int
		severity domain.Severity
	}{
		{"within p50 is normal", 15, domain.SeverityNormal},
		{"between p50 and p90 is stalled", 45, domain.SeverityStalled},
		{"past p90 is critical", 75, domain.SeverityCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := memory.NewMemoryStorage()
			addPermit(ms, "P-202", "filed")
			openAt(ms, "P-202", "STRUCT", 1, tt.dwell, domain.ReviewPending)
			setBaseline(ms, "STRUCT", 20, 70)

			d := newTestDiagnoser(ms, nil)
			pb := d.Diagnose(context.Background(), "P-202")

			if pb.Outcome != domain.PlaybookDiagnosed {
				t.Fatalf("outcome = %s (%s)", pb.Outcome, pb.Narrative)
			}
			if len(pb.Stations) != 1 {
				t.Fatalf("expected 1 station, got %d", len(pb.Stations))
			}
			got := pb.Stations[0]
			if got.Severity != tt.severity {
				t.Errorf("severity = %s, want %s (dwell %d)", got.Severity, tt.severity, tt.dwell)
			}
			if got.BaselineSource != domain.SourceCurrent {
				t.Errorf("baseline source = %s, want current", got.BaselineSource)
			}
			if got.P50Days != 20 || got.P90Days != 70 {
				t.Errorf("percentiles not carried: %+v", got)
			}
		})
	}
}

func TestDiagnose_HeuristicWithoutBaseline(t *testing.T) {
	tests := []struct {
		name     string
		dwell    int
		severity domain.Severity
	}{
		{"under 45 days is normal", 40, domain.SeverityNormal},
		{"over 45 days is stalled", 50, domain.SeverityStalled},
		{"over 90 days is critical", 100, domain.SeverityCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := memory.NewMemoryStorage()
			addPermit(ms, "P-203", "filed")
			openAt(ms, "P-203", "MECH", 1, tt.dwell, domain.ReviewPending)

			d := newTestDiagnoser(ms, nil)
			pb := d.Diagnose(context.Background(), "P-203")

			got := pb.Stations[0]
			if got.Severity != tt.severity {
				t.Errorf("severity = %s, want %s", got.Severity, tt.severity)
			}
			if got.BaselineSource != domain.SourceHeuristic {
				t.Errorf("baseline source = %s, want heuristic", got.BaselineSource)
			}
		})
	}
}

// A critically stalled inter-agency hold must outrank everything else,
// and the step must point at the reviewing agency rather than the permit
// counter.
func TestDiagnose_OrdersInterAgencyEscalationFirst(t *testing.T) {
	ms := memory.NewMemoryStorage()
	addPermit(ms, "P-204", "filed")
	openAt(ms, "P-204", "SFFD", 1, 80, domain.ReviewPending)
	openAt(ms, "P-204", "STRUCT", 1, 75, domain.ReviewPending)
	openAt(ms, "P-204", "ELEC", 1, 5, domain.ReviewCommentsIssued)
	setBaseline(ms, "SFFD", 20, 60)
	setBaseline(ms, "STRUCT", 20, 70)
	setBaseline(ms, "ELEC", 20, 70)

	d := newTestDiagnoser(ms, nil)
	pb := d.Diagnose(context.Background(), "P-204")

	if pb.Outcome != domain.PlaybookDiagnosed {
		t.Fatalf("outcome = %s (%s)", pb.Outcome, pb.Narrative)
	}
	if len(pb.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d: %+v", len(pb.Steps), pb.Steps)
	}

	first := pb.Steps[0]
	if first.StationCode != "SFFD" {
		t.Fatalf("top step station = %s, want SFFD", first.StationCode)
	}
	if first.Rank != 1 {
		t.Errorf("top step rank = %d, want 1", first.Rank)
	}
	if first.Contact == nil || first.Contact.Phone != "(415) 558-3300" {
		t.Errorf("top step must carry the fire department contact: %+v", first.Contact)
	}
	if strings.Contains(first.Detail, "permit counter for a status check") {
		t.Errorf("inter-agency step must not route through the permit counter: %q", first.Detail)
	}

	if pb.Steps[1].StationCode != "STRUCT" {
		t.Errorf("second step station = %s, want STRUCT (critical same-agency)", pb.Steps[1].StationCode)
	}
	if pb.Steps[2].StationCode != "ELEC" {
		t.Errorf("third step station = %s, want ELEC (comments issued)", pb.Steps[2].StationCode)
	}
	if !strings.Contains(pb.Steps[2].Title, "plan-check comments") {
		t.Errorf("comments step title = %q", pb.Steps[2].Title)
	}

	if !strings.Contains(pb.Narrative, "critically stalled") {
		t.Errorf("narrative must call out the critical stall: %q", pb.Narrative)
	}
}

func TestDiagnose_AllClearWhenNothingActionable(t *testing.T) {
	ms := memory.NewMemoryStorage()
	addPermit(ms, "P-205", "filed")
	openAt(ms, "P-205", "BLDG", 1, 5, domain.ReviewPending)
	setBaseline(ms, "BLDG", 20, 70)

	d := newTestDiagnoser(ms, nil)
	pb := d.Diagnose(context.Background(), "P-205")

	if len(pb.Steps) != 1 || pb.Steps[0].Title != "No action needed" {
		t.Fatalf("expected the all-clear step, got %+v", pb.Steps)
	}
}

func TestDiagnose_RevisionCycles(t *testing.T) {
	t.Run("second cycle advises a complete response", func(t *testing.T) {
		ms := memory.NewMemoryStorage()
		addPermit(ms, "P-206", "filed")
		done := testNow.AddDate(0, 0, -60)
		ms.AddEvent(domain.RoutingEvent{
			PermitID: "P-206", StationCode: "BLDG", Cycle: 1,
			ArrivedAt: testNow.AddDate(0, 0, -90), CompletedAt: &done,
			Result: domain.ReviewCommentsIssued,
		})
		openAt(ms, "P-206", "BLDG", 2, 5, domain.ReviewPending)
		setBaseline(ms, "BLDG", 20, 70)

		d := newTestDiagnoser(ms, nil)
		pb := d.Diagnose(context.Background(), "P-206")

		if pb.RevisionNote == "" || !strings.Contains(pb.RevisionNote, "2 review cycles") {
			t.Errorf("revision note = %q", pb.RevisionNote)
		}
		if !hasStepTitled(pb.Steps, "Address all outstanding comments in one package") {
			t.Errorf("missing single-package advisory: %+v", pb.Steps)
		}
	})

	t.Run("third cycle advises a meeting", func(t *testing.T) {
		ms := memory.NewMemoryStorage()
		addPermit(ms, "P-207", "filed")
		openAt(ms, "P-207", "BLDG", 3, 5, domain.ReviewPending)
		setBaseline(ms, "BLDG", 20, 70)

		d := newTestDiagnoser(ms, nil)
		pb := d.Diagnose(context.Background(), "P-207")

		if !hasStepTitled(pb.Steps, "Request a pre-resubmission meeting") {
			t.Errorf("missing meeting advisory: %+v", pb.Steps)
		}
	})
}

func TestDiagnose_InactivityAdvisory(t *testing.T) {
	ms := memory.NewMemoryStorage()
	addPermit(ms, "P-208", "filed")
	openAt(ms, "P-208", "BLDG", 1, 40, domain.ReviewPending)
	setBaseline(ms, "BLDG", 50, 90) // dwell 40 stays normal

	d := newTestDiagnoser(ms, nil)
	pb := d.Diagnose(context.Background(), "P-208")

	if !hasStepTitled(pb.Steps, "Confirm the permit is still moving") {
		t.Errorf("missing inactivity advisory after 40 idle days: %+v", pb.Steps)
	}
}

type fakeContacts struct {
	contact *domain.AgencyContact
	err     error
}

func (f *fakeContacts) AgencyContact(ctx context.Context, agency string) (*domain.AgencyContact, error) {
	return f.contact, f.err
}

func TestDiagnose_ContactEnrichment(t *testing.T) {
	setup := func() *memory.MemoryStorage {
		ms := memory.NewMemoryStorage()
		addPermit(ms, "P-209", "filed")
		openAt(ms, "P-209", "SFFD", 1, 80, domain.ReviewPending)
		setBaseline(ms, "SFFD", 20, 60)
		return ms
	}

	t.Run("live contact wins", func(t *testing.T) {
		src := &fakeContacts{contact: &domain.AgencyContact{
			Agency: "Fire Department", Phone: "(415) 000-0000",
		}}
		pb := newTestDiagnoser(setup(), src).Diagnose(context.Background(), "P-209")
		if pb.Steps[0].Contact == nil || pb.Steps[0].Contact.Phone != "(415) 000-0000" {
			t.Errorf("expected enriched contact, got %+v", pb.Steps[0].Contact)
		}
	})

	t.Run("lookup failure falls back to the registry", func(t *testing.T) {
		src := &fakeContacts{err: errors.New("catalog down")}
		pb := newTestDiagnoser(setup(), src).Diagnose(context.Background(), "P-209")
		if pb.Steps[0].Contact == nil || pb.Steps[0].Contact.Phone != "(415) 558-3300" {
			t.Errorf("expected registry contact, got %+v", pb.Steps[0].Contact)
		}
	})
}

type failingEvents struct {
	memory.EventRepo
}

func (f *failingEvents) ListByPermit(ctx context.Context, permitID string) ([]domain.RoutingEvent, error) {
	return nil, errors.New("connection refused")
}

func TestDiagnose_StoreFailureBecomesUnavailable(t *testing.T) {
	ms := memory.NewMemoryStorage()
	addPermit(ms, "P-210", "filed")

	store := baseline.NewStore(memory.NewBaselineRepo(ms), nil, 30, nil)
	d := NewDiagnoser(
		memory.NewPermitRepo(ms),
		&failingEvents{EventRepo: *memory.NewEventRepo(ms)},
		store,
		nil,
		DefaultConfig,
		nil,
	)
	d.now = func() time.Time { return testNow }

	pb := d.Diagnose(context.Background(), "P-210")
	if pb.Outcome != domain.PlaybookFailed {
		t.Fatalf("outcome = %s, want unavailable", pb.Outcome)
	}
	if !strings.Contains(pb.Narrative, "P-210") {
		t.Errorf("narrative must carry the permit id: %q", pb.Narrative)
	}
}

func hasStepTitled(steps []domain.InterventionStep, title string) bool {
	for _, s := range steps {
		if s.Title == title {
			return true
		}
	}
	return false
}
