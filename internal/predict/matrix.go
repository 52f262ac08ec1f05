package predict

import (
	"sort"

	"github.com/permitpath/engine/internal/core/domain"
)

// Matrix is an empirical station-to-station transition frequency table
// built from the event sequences of historically similar permits. It is
// computed per prediction request and discarded.
type Matrix struct {
	counts map[string]map[string]int
	total  int
}

// buildMatrix walks each permit's events in arrival order and counts moves
// between consecutive stations. Events must be sorted by (permit, arrival),
// which is the repository's contract. Re-entries to the same station
// (addenda cycles) are not transitions and are skipped.
func buildMatrix(events []domain.RoutingEvent) *Matrix {
	m := &Matrix{counts: make(map[string]map[string]int)}

	for i := 1; i < len(events); i++ {
		prev, cur := &events[i-1], &events[i]
		if prev.PermitID != cur.PermitID {
			continue
		}
		if prev.StationCode == cur.StationCode {
			continue
		}
		row, ok := m.counts[prev.StationCode]
		if !ok {
			row = make(map[string]int)
			m.counts[prev.StationCode] = row
		}
		row[cur.StationCode]++
		m.total++
	}
	return m
}

// Total returns the number of transitions backing the whole matrix.
func (m *Matrix) Total() int {
	return m.total
}

// TotalFrom returns the number of observed transitions out of origin.
func (m *Matrix) TotalFrom(origin string) int {
	n := 0
	for _, count := range m.counts[origin] {
		n += count
	}
	return n
}

// ranked is one destination candidate out of an origin station.
type ranked struct {
	Station     string
	Count       int
	Probability float64
}

// RankFrom returns up to topN destinations out of origin ordered by
// normalized probability descending. Ties break by absolute count, then
// alphabetically by station code, so identical inputs always produce
// byte-identical orderings.
func (m *Matrix) RankFrom(origin string, topN int) []ranked {
	totalOut := m.TotalFrom(origin)
	if totalOut == 0 {
		return nil
	}

	out := make([]ranked, 0, len(m.counts[origin]))
	for station, count := range m.counts[origin] {
		out = append(out, ranked{
			Station:     station,
			Count:       count,
			Probability: float64(count) / float64(totalOut),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Probability != out[j].Probability {
			return out[i].Probability > out[j].Probability
		}
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Station < out[j].Station
	})

	if len(out) > topN {
		out = out[:topN]
	}
	return out
}
