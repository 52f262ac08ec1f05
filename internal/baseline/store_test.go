package baseline

import (
	"context"
	"testing"
	"time"

	"github.com/permitpath/engine/internal/core/domain"
	"github.com/permitpath/engine/internal/infra/storage/memory"
)

const minSamples = 30

func storeWith(rows ...domain.StationBaseline) *Store {
	ms := memory.NewMemoryStorage()
	for _, row := range rows {
		ms.SetBaseline(row)
	}
	return NewStore(memory.NewBaselineRepo(ms), nil, minSamples, nil)
}

func row(window domain.BaselineWindow, samples int) domain.StationBaseline {
	return domain.StationBaseline{
		StationCode: "SFFD",
		Window:      window,
		SampleCount: samples,
		P50Days:     10,
		P75Days:     20,
		P90Days:     30,
		ComputedAt:  time.Now(),
	}
}

// The fallback chain is current → all-time → heuristic, each step gated on
// the sample threshold. Exercised across counts around the threshold.
func TestStore_FallbackChain(t *testing.T) {
	tests := []struct {
		name           string
		currentSamples int // -1 means no row
		allTimeSamples int
		expectSource   domain.BaselineSource
	}{
		{"current trusted", minSamples, -1, domain.SourceCurrent},
		{"current above threshold", minSamples + 1, -1, domain.SourceCurrent},
		{"current thin, all-time trusted", minSamples - 1, minSamples, domain.SourceAllTime},
		{"current empty, all-time trusted", 0, minSamples, domain.SourceAllTime},
		{"both thin", minSamples - 1, minSamples - 1, domain.SourceHeuristic},
		{"both empty", 0, 0, domain.SourceHeuristic},
		{"no rows at all", -1, -1, domain.SourceHeuristic},
		{"current missing, all-time thin", -1, minSamples - 1, domain.SourceHeuristic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rows []domain.StationBaseline
			if tt.currentSamples >= 0 {
				rows = append(rows, row(domain.WindowCurrent, tt.currentSamples))
			}
			if tt.allTimeSamples >= 0 {
				rows = append(rows, row(domain.WindowAllTime, tt.allTimeSamples))
			}
			s := storeWith(rows...)

			res, err := s.Get(context.Background(), "SFFD")
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if res.Source != tt.expectSource {
				t.Errorf("source = %s, want %s", res.Source, tt.expectSource)
			}
			if tt.expectSource == domain.SourceHeuristic {
				if res.Trusted() {
					t.Error("heuristic result should carry no baseline")
				}
			} else if !res.Trusted() {
				t.Error("expected a trusted baseline")
			}
		})
	}
}

func TestStore_PrefersCurrentWhenBothTrusted(t *testing.T) {
	current := row(domain.WindowCurrent, minSamples)
	current.P50Days = 5
	allTime := row(domain.WindowAllTime, minSamples*2)
	allTime.P50Days = 50

	s := storeWith(current, allTime)
	res, err := s.Get(context.Background(), "SFFD")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if res.Source != domain.SourceCurrent {
		t.Fatalf("source = %s, want current", res.Source)
	}
	if res.Baseline.P50Days != 5 {
		t.Fatalf("wrong row returned: p50=%v", res.Baseline.P50Days)
	}
}
