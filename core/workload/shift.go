package workload

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kilianp07/crisismatch/core/model"
)

// Severity grades a shift violation.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// Violation codes.
const (
	ViolationInvalidWindow    = "invalid_window"
	ViolationDailyHours       = "daily_hours_exceeded"
	ViolationWeeklyHours      = "weekly_hours_high"
	ViolationInsufficientRest = "insufficient_rest"
	ViolationCriticalBurnout  = "critical_burnout"
	ViolationHighBurnout      = "high_burnout"
)

// Violation describes one broken or strained rule.
type Violation struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// ShiftValidation is the verdict on a proposed shift. Adjustments is set
// when an ERROR or CRITICAL violation can be resolved by moving or
// shortening the shift.
type ShiftValidation struct {
	IsValid         bool         `json:"isValid"`
	Violations      []Violation  `json:"violations"`
	Recommendations []string     `json:"recommendations,omitempty"`
	Adjustments     *model.Shift `json:"adjustments,omitempty"`
}

func blocking(s Severity) bool { return s == SeverityError || s == SeverityCritical }

// ValidateShiftAssignment checks a proposed shift against daily hours, rest
// between shifts and current burnout risk.
func (a *Assessor) ValidateShiftAssignment(ctx context.Context, responderID string, proposed model.Shift) (ShiftValidation, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.validateTimeout())
	defer cancel()

	if !proposed.End.After(proposed.Start) {
		return ShiftValidation{Violations: []Violation{{
			Code: ViolationInvalidWindow, Severity: SeverityError, Message: "shift end must be after start",
		}}}, nil
	}

	p, err := a.profiles.Get(ctx, responderID)
	if err != nil {
		return ShiftValidation{}, fmt.Errorf("validate shift %s: %w", responderID, err)
	}
	assessment, err := a.Assess(ctx, responderID)
	if err != nil {
		return ShiftValidation{}, fmt.Errorf("validate shift %s: %w", responderID, err)
	}
	limits := assessment.Limits
	loc := a.location(p.Location.Timezone)
	start := proposed.Start.In(loc)
	snap := a.ledger.snapshot(responderID, a.now())

	var v ShiftValidation
	adj := proposed
	adjusted := false

	// Rest between shifts.
	prevEnd := snap.lastShiftEnd
	for _, s := range p.Shifts {
		if !s.End.After(proposed.Start) && s.End.After(prevEnd) {
			prevEnd = s.End
		}
	}
	minRest := time.Duration(limits.MinRestHours * float64(time.Hour))
	if !prevEnd.IsZero() && minRest > 0 {
		if rest := proposed.Start.Sub(prevEnd); rest < minRest {
			v.Violations = append(v.Violations, Violation{
				Code:     ViolationInsufficientRest,
				Severity: SeverityError,
				Message:  fmt.Sprintf("only %.1fh rest since previous shift, minimum %.1fh", rest.Hours(), limits.MinRestHours),
			})
			d := adj.Duration()
			adj.Start = prevEnd.Add(minRest)
			adj.End = adj.Start.Add(d)
			adjusted = true
			v.Recommendations = append(v.Recommendations, fmt.Sprintf("start no earlier than %s", adj.Start.Format(time.RFC3339)))
		}
	}

	// Daily hours on the day the shift starts, counting other scheduled
	// shifts and hours already worked. Worked time inside a scheduled shift
	// counts once.
	dayStart := startOfDay(start)
	dayEnd := dayStart.AddDate(0, 0, 1)
	committed := committedIntervals(snap, p.Shifts, proposed)
	existing := unionHours(committed, dayStart, dayEnd)
	if total := existing + proposed.Duration().Hours(); limits.MaxDailyHours > 0 && total > limits.MaxDailyHours {
		v.Violations = append(v.Violations, Violation{
			Code:     ViolationDailyHours,
			Severity: SeverityError,
			Message:  fmt.Sprintf("%.1fh scheduled on %s exceeds daily limit %.1fh", total, dayStart.Format("2006-01-02"), limits.MaxDailyHours),
		})
		remaining := limits.MaxDailyHours - existing
		if remaining > 0 {
			adj.End = adj.Start.Add(time.Duration(remaining * float64(time.Hour)))
			adjusted = true
			v.Recommendations = append(v.Recommendations, fmt.Sprintf("shorten the shift to %.1fh", remaining))
		} else {
			v.Recommendations = append(v.Recommendations, "move the shift to another day")
		}
	}

	// Weekly hours are advisory.
	weekStart := startOfWeek(start)
	weekEnd := weekStart.AddDate(0, 0, 7)
	week := unionHours(committed, weekStart, weekEnd) + proposed.Duration().Hours()
	if limits.MaxWeeklyHours > 0 && week > limits.MaxWeeklyHours {
		v.Violations = append(v.Violations, Violation{
			Code:     ViolationWeeklyHours,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("%.1fh scheduled this week exceeds %.1fh", week, limits.MaxWeeklyHours),
		})
	}

	switch assessment.Burnout.Level {
	case model.RiskCritical:
		v.Violations = append(v.Violations, Violation{
			Code:     ViolationCriticalBurnout,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("burnout risk is critical (%.2f)", assessment.Burnout.Score),
		})
		earliest := a.now().Add(minRest)
		if adj.Start.Before(earliest) {
			d := adj.Duration()
			adj.Start = earliest
			adj.End = earliest.Add(d)
		}
		adj.End = adj.Start.Add(adj.Duration() / 2)
		adjusted = true
		v.Recommendations = append(v.Recommendations, "schedule a reduced shift after a full rest period and a wellness check")
	case model.RiskHigh:
		v.Violations = append(v.Violations, Violation{
			Code:     ViolationHighBurnout,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("burnout risk is high (%.2f)", assessment.Burnout.Score),
		})
		v.Recommendations = append(v.Recommendations, "pair the shift with supervisor check-ins")
	}

	v.IsValid = true
	for _, viol := range v.Violations {
		if blocking(viol.Severity) {
			v.IsValid = false
		}
	}
	if !v.IsValid && adjusted && adj.End.After(adj.Start) {
		v.Adjustments = &adj
	}
	if err := ctx.Err(); err != nil {
		return ShiftValidation{}, fmt.Errorf("validate shift %s: %w", responderID, err)
	}
	return v, nil
}

// committedIntervals lists the scheduled shifts other than proposed together
// with the worked session spans.
func committedIntervals(snap snapshot, shifts []model.Shift, proposed model.Shift) []model.Shift {
	out := make([]model.Shift, 0, len(shifts)+len(snap.spans))
	for _, s := range shifts {
		if s.Start.Equal(proposed.Start) && s.End.Equal(proposed.End) {
			continue
		}
		out = append(out, s)
	}
	for _, sp := range snap.spans {
		out = append(out, model.Shift{Start: sp.start, End: sp.end})
	}
	return out
}

// unionHours returns the hours inside [from, to) covered by at least one
// interval.
func unionHours(ivs []model.Shift, from, to time.Time) float64 {
	clipped := make([]model.Shift, 0, len(ivs))
	for _, iv := range ivs {
		if iv.Start.Before(from) {
			iv.Start = from
		}
		if iv.End.After(to) {
			iv.End = to
		}
		if iv.End.After(iv.Start) {
			clipped = append(clipped, iv)
		}
	}
	if len(clipped) == 0 {
		return 0
	}
	sort.Slice(clipped, func(i, j int) bool { return clipped[i].Start.Before(clipped[j].Start) })

	var total time.Duration
	cur := clipped[0]
	for _, iv := range clipped[1:] {
		if iv.Start.After(cur.End) {
			total += cur.Duration()
			cur = iv
			continue
		}
		if iv.End.After(cur.End) {
			cur.End = iv.End
		}
	}
	total += cur.Duration()
	return total.Hours()
}
