package baseline

import "testing"

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		p      float64
		expect float64
	}{
		{"empty", nil, 50, 0},
		{"single", []float64{7}, 50, 7},
		{"single p90", []float64{7}, 90, 7},
		{"median of ten", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 50, 5},
		{"p75 of ten", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 75, 8},
		{"p90 of ten", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 90, 9},
		{"unsorted input", []float64{10, 1, 5, 3}, 50, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := percentile(tt.values, tt.p); got != tt.expect {
				t.Errorf("percentile(%v, %v) = %v, want %v", tt.values, tt.p, got, tt.expect)
			}
		})
	}
}

func TestPercentileDoesNotMutateInput(t *testing.T) {
	values := []float64{3, 1, 2}
	_ = percentile(values, 50)
	if values[0] != 3 || values[1] != 1 || values[2] != 2 {
		t.Errorf("input slice mutated: %v", values)
	}
}
