package domain

import (
	"strings"
	"time"
)

// PermitSnapshot is a read-only projection of permit metadata owned by the
// catalog collaborator. The engine never writes permits.
type PermitSnapshot struct {
	PermitID     string     `json:"permit_id"`
	Type         string     `json:"type"`
	Neighborhood string     `json:"neighborhood"`
	Status       string     `json:"status"`
	FiledAt      time.Time  `json:"filed_at"`
	IssuedAt     *time.Time `json:"issued_at,omitempty"`
}

// terminalStatuses are statuses after which no further routing occurs.
var terminalStatuses = map[string]struct{}{
	"issued":    {},
	"complete":  {},
	"completed": {},
	"cancelled": {},
	"canceled":  {},
	"withdrawn": {},
	"approved":  {},
}

// Terminal reports whether the permit's review is over.
func (p *PermitSnapshot) Terminal() bool {
	_, ok := terminalStatuses[strings.ToLower(strings.TrimSpace(p.Status))]
	return ok
}
