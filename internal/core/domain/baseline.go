package domain

import "time"

// BaselineWindow labels the aggregation window a baseline row covers.
type BaselineWindow string

const (
	WindowCurrent BaselineWindow = "current"  // trailing window (default 180d)
	WindowAllTime BaselineWindow = "all_time" // everything on record
)

// DefaultMinSamples is the sample count below which a baseline row is not
// trusted and callers fall through to the next window or the heuristic.
const DefaultMinSamples = 30

// StationBaseline holds percentile dwell statistics for one station and
// window. Rows are replaced by key on every refresh; readers tolerate
// staleness measured in hours.
type StationBaseline struct {
	StationCode string         `db:"station_code"`
	Window      BaselineWindow `db:"time_window"`
	SampleCount int            `db:"sample_count"`
	P50Days     float64        `db:"p50_days"`
	P75Days     float64        `db:"p75_days"`
	P90Days     float64        `db:"p90_days"`
	ComputedAt  time.Time      `db:"computed_at"`
}

// BaselineSource tells a caller which window actually answered a lookup.
type BaselineSource string

const (
	SourceCurrent   BaselineSource = "current"
	SourceAllTime   BaselineSource = "all_time"
	SourceHeuristic BaselineSource = "heuristic" // no trustworthy row existed
)
