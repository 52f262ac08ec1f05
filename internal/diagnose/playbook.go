package diagnose

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/permitpath/engine/internal/core/domain"
)

// Urgency buckets, most urgent first. The fixed ordering is the product
// contract: a critically stalled inter-agency hold always outranks
// everything else.
const (
	urgencyCriticalInterAgency = iota
	urgencyCriticalSameAgency
	urgencyCommentsIssued
	urgencyStalledInterAgency
	urgencyStalledSameAgency
	urgencyRevisionAdvisory
	urgencyInformational
)

type scoredStep struct {
	urgency int
	step    domain.InterventionStep
}

// orderSteps sorts by urgency then station code for determinism and
// assigns ranks. An empty actionable set yields a single all-clear entry.
func orderSteps(steps []scoredStep) []domain.InterventionStep {
	if len(steps) == 0 {
		return []domain.InterventionStep{{
			Rank:   1,
			Title:  "No action needed",
			Detail: "All active stations are within their normal review times. Check back if anything passes its typical window.",
		}}
	}

	sort.SliceStable(steps, func(i, j int) bool {
		if steps[i].urgency != steps[j].urgency {
			return steps[i].urgency < steps[j].urgency
		}
		return steps[i].step.StationCode < steps[j].step.StationCode
	})

	out := make([]domain.InterventionStep, 0, len(steps))
	for i, s := range steps {
		s.step.Rank = i + 1
		out = append(out, s.step)
	}
	return out
}

// stationSteps emits the dwell-severity steps for one active station, plus
// a comments-issued step when corrections are outstanding there.
func (d *Diagnoser) stationSteps(ctx context.Context, diag domain.StationDiagnosis, ev *domain.RoutingEvent) []scoredStep {
	var steps []scoredStep

	switch diag.Severity {
	case domain.SeverityCritical:
		steps = append(steps, d.escalationStep(ctx, diag, true))
	case domain.SeverityStalled:
		steps = append(steps, d.escalationStep(ctx, diag, false))
	}

	if ev.Result == domain.ReviewCommentsIssued {
		steps = append(steps, scoredStep{
			urgency: urgencyCommentsIssued,
			step: domain.InterventionStep{
				Title:       fmt.Sprintf("Respond to plan-check comments at %s", diag.StationName),
				Detail:      "Corrections were requested. The review clock is paused until a revised set is resubmitted; submitting a complete response is the fastest way to restart it.",
				StationCode: diag.StationCode,
				Agency:      diag.Agency,
			},
		})
	}

	return steps
}

func (d *Diagnoser) escalationStep(ctx context.Context, diag domain.StationDiagnosis, critical bool) scoredStep {
	urgency := urgencyStalledSameAgency
	if critical {
		urgency = urgencyCriticalSameAgency
	}

	baselineClause := fmt.Sprintf("%.0f days against a typical %.0f (p50) / %.0f (p90)",
		diag.DwellDays, diag.P50Days, diag.P90Days)
	if diag.BaselineSource == domain.SourceHeuristic {
		baselineClause = fmt.Sprintf("%.0f days with no station baseline on record", diag.DwellDays)
	}

	if !diag.InterAgency {
		title := fmt.Sprintf("Follow up at the permit counter about %s", diag.StationName)
		if critical {
			title = fmt.Sprintf("Escalate %s at the permit counter", diag.StationName)
		}
		return scoredStep{
			urgency: urgency,
			step: domain.InterventionStep{
				Title:       title,
				Detail:      fmt.Sprintf("The permit has been at %s for %s. Ask the primary permitting counter for a status check on this station.", diag.StationName, baselineClause),
				StationCode: diag.StationCode,
				Agency:      diag.Agency,
			},
		}
	}

	if critical {
		urgency = urgencyCriticalInterAgency
	} else {
		urgency = urgencyStalledInterAgency
	}

	contact := d.contactFor(ctx, diag)
	title := fmt.Sprintf("Contact %s about %s", diag.Agency, diag.StationName)
	if critical {
		title = fmt.Sprintf("Escalate directly with %s", diag.Agency)
	}
	detail := fmt.Sprintf("The permit has been at %s for %s. This station is reviewed by %s, not the permit counter — contact them directly",
		diag.StationName, baselineClause, diag.Agency)
	if contact != nil && contact.Phone != "" {
		detail += fmt.Sprintf(" at %s", contact.Phone)
	}
	detail += "."

	return scoredStep{
		urgency: urgency,
		step: domain.InterventionStep{
			Title:       title,
			Detail:      detail,
			StationCode: diag.StationCode,
			Agency:      diag.Agency,
			Contact:     contact,
		},
	}
}

// contactFor prefers the live catalog contact and falls back to the static
// registry. A failed enrichment is logged, never surfaced.
func (d *Diagnoser) contactFor(ctx context.Context, diag domain.StationDiagnosis) *domain.AgencyContact {
	if d.contacts != nil {
		contact, err := d.contacts.AgencyContact(ctx, diag.Agency)
		if err == nil && contact != nil {
			return contact
		}
		if err != nil {
			d.log.Warn("contact enrichment failed, using registry",
				"agency", diag.Agency, "error", err)
		}
	}
	return domain.StationInfoFor(diag.StationCode).Contact
}

// patternSteps detects stuck signals independent of per-station dwell:
// repeated revision cycles and whole-permit inactivity.
func (d *Diagnoser) patternSteps(all []domain.RoutingEvent, now time.Time) []scoredStep {
	var steps []scoredStep

	maxCycle := 0
	var lastActivity time.Time
	for i := range all {
		ev := &all[i]
		if ev.Cycle > maxCycle {
			maxCycle = ev.Cycle
		}
		if act := ev.LastActivity(); act.After(lastActivity) {
			lastActivity = act
		}
	}

	if maxCycle >= 3 {
		steps = append(steps, scoredStep{
			urgency: urgencyRevisionAdvisory,
			step: domain.InterventionStep{
				Title: "Request a pre-resubmission meeting",
				Detail: fmt.Sprintf("This permit is on review cycle %d. After two or more rounds of corrections, "+
					"a face-to-face plan review meeting usually resolves open comments faster than another paper resubmission.", maxCycle),
			},
		})
	} else if maxCycle == 2 {
		steps = append(steps, scoredStep{
			urgency: urgencyRevisionAdvisory,
			step: domain.InterventionStep{
				Title:  "Address all outstanding comments in one package",
				Detail: "One resubmission has already occurred. Make sure the next response resolves every open comment, since each partial round adds a full review cycle.",
			},
		})
	}

	if !lastActivity.IsZero() {
		idleDays := now.Sub(lastActivity).Hours() / 24
		if idleDays > float64(d.cfg.InactivityDays) {
			steps = append(steps, scoredStep{
				urgency: urgencyInformational,
				step: domain.InterventionStep{
					Title: "Confirm the permit is still moving",
					Detail: fmt.Sprintf("No routing activity has been recorded for %.0f days. "+
						"A quick status check rules out a filing sitting in a queue nobody is watching.", idleDays),
				},
			})
		}
	}

	return steps
}

func (d *Diagnoser) narrative(pb *domain.Playbook) string {
	var b strings.Builder

	worst := domain.SeverityNormal
	for _, s := range pb.Stations {
		if s.Severity == domain.SeverityCritical {
			worst = domain.SeverityCritical
			break
		}
		if s.Severity == domain.SeverityStalled {
			worst = domain.SeverityStalled
		}
	}

	switch worst {
	case domain.SeverityCritical:
		fmt.Fprintf(&b, "Permit %s is critically stalled. ", pb.PermitID)
	case domain.SeverityStalled:
		fmt.Fprintf(&b, "Permit %s is moving slower than normal. ", pb.PermitID)
	default:
		fmt.Fprintf(&b, "Permit %s is within normal review times. ", pb.PermitID)
	}

	fmt.Fprintf(&b, "Active at %d station(s): ", len(pb.Stations))
	parts := make([]string, 0, len(pb.Stations))
	for _, s := range pb.Stations {
		parts = append(parts, fmt.Sprintf("%s (%.0f days, %s)", s.StationName, s.DwellDays,
			strings.ReplaceAll(string(s.Severity), "_", " ")))
	}
	b.WriteString(strings.Join(parts, "; "))
	b.WriteString(". ")

	if len(pb.Steps) > 0 {
		fmt.Fprintf(&b, "Recommended first step: %s.", pb.Steps[0].Title)
	}
	if pb.RevisionNote != "" {
		b.WriteString(" " + pb.RevisionNote)
	}
	return b.String()
}
