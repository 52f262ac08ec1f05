package domain

import "time"

// Severity classifies station dwell against the baseline percentiles.
type Severity string

const (
	SeverityNormal   Severity = "normal"             // dwell <= p50
	SeverityStalled  Severity = "stalled"            // p50 < dwell <= p90
	SeverityCritical Severity = "critically_stalled" // dwell > p90
)

// StationDiagnosis is the dwell-vs-baseline verdict for one active station.
type StationDiagnosis struct {
	StationCode    string         `json:"station_code"`
	StationName    string         `json:"station_name"`
	Agency         string         `json:"agency"`
	InterAgency    bool           `json:"inter_agency"`
	Cycle          int            `json:"cycle"`
	DwellDays      float64        `json:"dwell_days"`
	Severity       Severity       `json:"severity"`
	BaselineSource BaselineSource `json:"baseline_source"`
	P50Days        float64        `json:"p50_days,omitempty"`
	P90Days        float64        `json:"p90_days,omitempty"`
	Result         ReviewResult   `json:"result"`
}

// InterventionStep is one entry of the playbook, most urgent first.
type InterventionStep struct {
	Rank        int            `json:"rank"`
	Title       string         `json:"title"`
	Detail      string         `json:"detail"`
	StationCode string         `json:"station_code,omitempty"`
	Agency      string         `json:"agency,omitempty"`
	Contact     *AgencyContact `json:"contact,omitempty"`
}

// PlaybookOutcome says what kind of answer a Playbook carries.
type PlaybookOutcome string

const (
	PlaybookDiagnosed  PlaybookOutcome = "diagnosed"
	PlaybookNotInQueue PlaybookOutcome = "not_in_queue"
	PlaybookComplete   PlaybookOutcome = "review_complete"
	PlaybookNotFound   PlaybookOutcome = "not_found"
	PlaybookFailed     PlaybookOutcome = "unavailable"
)

// Playbook is the stuck-permit diagnosis: per-station verdicts plus an
// ordered intervention list. Like Prediction it is always a value result.
type Playbook struct {
	ID          string          `json:"id"`
	PermitID    string          `json:"permit_id"`
	Outcome     PlaybookOutcome `json:"outcome"`
	GeneratedAt time.Time       `json:"generated_at"`

	Stations     []StationDiagnosis `json:"stations,omitempty"`
	Steps        []InterventionStep `json:"steps,omitempty"`
	RevisionNote string             `json:"revision_note,omitempty"`

	Narrative string `json:"narrative"`
}
