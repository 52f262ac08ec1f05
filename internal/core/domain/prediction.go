package domain

import "time"

// MatrixScope records which cohort backed a transition matrix.
type MatrixScope string

const (
	ScopeNeighborhood MatrixScope = "neighborhood" // same type + same neighborhood
	ScopeCitywide     MatrixScope = "citywide"     // same type, city-wide fallback
)

// Confidence buckets the total sample size behind a prediction.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"   // >= 100 transitions
	ConfidenceMedium Confidence = "medium" // >= 30
	ConfidenceLow    Confidence = "low"
)

// ConfidenceFor maps a transition sample size to its bucket.
func ConfidenceFor(samples int) Confidence {
	switch {
	case samples >= 100:
		return ConfidenceHigh
	case samples >= 30:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// PredictionOutcome says what kind of answer a Prediction carries.
type PredictionOutcome string

const (
	OutcomePredicted      PredictionOutcome = "predicted"
	OutcomeReviewComplete PredictionOutcome = "review_complete"
	OutcomeNoRoutingData  PredictionOutcome = "no_routing_data"
	OutcomeNoTransitions  PredictionOutcome = "no_transitions"
	OutcomeNotFound       PredictionOutcome = "not_found"
	OutcomeUnavailable    PredictionOutcome = "unavailable"
)

// StationForecast is one ranked next-station candidate.
type StationForecast struct {
	StationCode string  `json:"station_code"`
	StationName string  `json:"station_name"`
	Probability float64 `json:"probability"` // normalized over outgoing transitions
	Transitions int     `json:"transitions"` // absolute observed count
	P50Days     float64 `json:"p50_days"`
	P75Days     float64 `json:"p75_days"`
	HasBaseline bool    `json:"has_baseline"`
}

// Prediction is the full answer to "what happens next for this permit".
// It is always a value result: failures surface as OutcomeUnavailable with
// the narrative explaining, never as an error crossing the boundary.
type Prediction struct {
	ID          string            `json:"id"`
	PermitID    string            `json:"permit_id"`
	Outcome     PredictionOutcome `json:"outcome"`
	GeneratedAt time.Time         `json:"generated_at"`

	CurrentStation     string  `json:"current_station,omitempty"`
	CurrentStationName string  `json:"current_station_name,omitempty"`
	DwellDays          float64 `json:"dwell_days,omitempty"`
	Stalled            bool    `json:"stalled,omitempty"`

	Next         []StationForecast `json:"next,omitempty"`
	AllClearDays float64           `json:"all_clear_days,omitempty"`
	AllClearNote string            `json:"all_clear_note,omitempty"`
	Scope        MatrixScope       `json:"scope,omitempty"`
	SampleSize   int               `json:"sample_size,omitempty"`
	Confidence   Confidence        `json:"confidence,omitempty"`

	Narrative string `json:"narrative"`
}
