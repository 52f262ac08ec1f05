package predict

import (
	"fmt"
	"testing"
	"time"

	"github.com/permitpath/engine/internal/core/domain"
)

func seqEvents(permit string, start time.Time, stations ...string) []domain.RoutingEvent {
	out := make([]domain.RoutingEvent, 0, len(stations))
	for i, station := range stations {
		arrived := start.AddDate(0, 0, i*10)
		done := arrived.AddDate(0, 0, 5)
		out = append(out, domain.RoutingEvent{
			PermitID:    permit,
			StationCode: station,
			Cycle:       1,
			ArrivedAt:   arrived,
			CompletedAt: &done,
			Result:      domain.ReviewPassed,
		})
	}
	return out
}

func TestBuildMatrix_CountsAndTotals(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var events []domain.RoutingEvent
	events = append(events, seqEvents("P-1", start, "INTAKE", "BLDG", "SFFD")...)
	events = append(events, seqEvents("P-2", start, "INTAKE", "BLDG", "PLANNING")...)
	events = append(events, seqEvents("P-3", start, "INTAKE", "STRUCT")...)

	m := buildMatrix(events)

	if m.Total() != 5 {
		t.Fatalf("total transitions = %d, want 5", m.Total())
	}
	if got := m.TotalFrom("INTAKE"); got != 3 {
		t.Fatalf("transitions from INTAKE = %d, want 3", got)
	}
	if got := m.TotalFrom("SFFD"); got != 0 {
		t.Fatalf("transitions from terminal station = %d, want 0", got)
	}
}

func TestBuildMatrix_SkipsPermitBoundariesAndReentries(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var events []domain.RoutingEvent
	// P-1 ends at SFFD, P-2 begins at INTAKE: not a transition.
	events = append(events, seqEvents("P-1", start, "BLDG", "SFFD")...)
	events = append(events, seqEvents("P-2", start, "INTAKE", "BLDG")...)
	// A resubmission cycle re-enters the same station: not a transition.
	events = append(events, seqEvents("P-3", start, "BLDG", "BLDG", "SFFD")...)

	m := buildMatrix(events)

	if got := m.TotalFrom("SFFD"); got != 0 {
		t.Errorf("permit boundary counted as transition: %d", got)
	}
	if got := m.counts["BLDG"]["BLDG"]; got != 0 {
		t.Errorf("self re-entry counted as transition: %d", got)
	}
	if got := m.counts["BLDG"]["SFFD"]; got != 2 {
		t.Errorf("BLDG->SFFD = %d, want 2", got)
	}
}

func TestRankFrom_DeterministicTieBreaks(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var events []domain.RoutingEvent
	// Equal counts out of INTAKE for three destinations: ties must break
	// alphabetically.
	for i := 0; i < 2; i++ {
		events = append(events, seqEvents(fmt.Sprintf("PA-%d", i), start, "INTAKE", "STRUCT")...)
		events = append(events, seqEvents(fmt.Sprintf("PB-%d", i), start, "INTAKE", "BLDG")...)
		events = append(events, seqEvents(fmt.Sprintf("PC-%d", i), start, "INTAKE", "SFFD")...)
	}

	m := buildMatrix(events)
	first := m.RankFrom("INTAKE", 3)
	second := m.RankFrom("INTAKE", 3)

	want := []string{"BLDG", "SFFD", "STRUCT"}
	for i, w := range want {
		if first[i].Station != w {
			t.Errorf("rank %d = %s, want %s", i, first[i].Station, w)
		}
		if first[i].Station != second[i].Station ||
			first[i].Count != second[i].Count ||
			first[i].Probability != second[i].Probability {
			t.Errorf("consecutive calls disagree at rank %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestRankFrom_OrdersByProbabilityThenCount(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var events []domain.RoutingEvent
	for i := 0; i < 6; i++ {
		events = append(events, seqEvents(fmt.Sprintf("PX-%d", i), start, "BLDG", "SFFD")...)
	}
	for i := 0; i < 3; i++ {
		events = append(events, seqEvents(fmt.Sprintf("PY-%d", i), start, "BLDG", "PLANNING")...)
	}
	events = append(events, seqEvents("PZ", start, "BLDG", "DPH")...)

	m := buildMatrix(events)
	top := m.RankFrom("BLDG", 3)

	if len(top) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(top))
	}
	if top[0].Station != "SFFD" || top[1].Station != "PLANNING" || top[2].Station != "DPH" {
		t.Fatalf("wrong order: %+v", top)
	}
	if top[0].Probability != 0.6 {
		t.Errorf("top probability = %v, want 0.6", top[0].Probability)
	}
}

func TestRankFrom_UnknownOrigin(t *testing.T) {
	m := buildMatrix(nil)
	if got := m.RankFrom("BLDG", 3); got != nil {
		t.Fatalf("expected nil for unknown origin, got %+v", got)
	}
}
