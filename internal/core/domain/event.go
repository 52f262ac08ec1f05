package domain

import "time"

// ReviewResult is the outcome recorded against a station visit.
type ReviewResult string

const (
	ReviewPending        ReviewResult = "pending"
	ReviewCommentsIssued ReviewResult = "comments_issued"
	ReviewPassed         ReviewResult = "passed"
	ReviewOther          ReviewResult = "other"
)

// RoutingEvent is one visit of a permit to a review station. A permit is
// "at" a station while CompletedAt is nil; (permit, station, cycle) is
// unique and at most one event per (permit, station) may be open at a time.
// Events come from the upstream routing feed and are read-only here.
type RoutingEvent struct {
	PermitID    string
	StationCode string
	Cycle       int
	ArrivedAt   time.Time
	CompletedAt *time.Time
	Result      ReviewResult
}

// Open reports whether the permit is still at this station.
func (e *RoutingEvent) Open() bool {
	return e.CompletedAt == nil
}

// Dwell returns elapsed time at the station: completion minus arrival, or
// now minus arrival while the event is still open.
func (e *RoutingEvent) Dwell(now time.Time) time.Duration {
	if e.CompletedAt != nil {
		return e.CompletedAt.Sub(e.ArrivedAt)
	}
	return now.Sub(e.ArrivedAt)
}

// LastActivity returns the most recent recorded timestamp on the event.
func (e *RoutingEvent) LastActivity() time.Time {
	if e.CompletedAt != nil {
		return *e.CompletedAt
	}
	return e.ArrivedAt
}
