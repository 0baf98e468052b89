package workload

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/crisismatch/core/model"
)

const maxPlanSlots = 2016

// Gap severities.
const (
	GapModerate = "moderate"
	GapHigh     = "high"
	GapCritical = "critical"
)

// CapacitySlot is the forecast for one planning interval. Demand and
// capacity are both expressed in concurrent sessions.
type CapacitySlot struct {
	Start             time.Time `json:"start"`
	End               time.Time `json:"end"`
	ExpectedRequests  float64   `json:"expected_requests_per_hour"`
	ForecastDemand    float64   `json:"forecast_demand"`
	ProjectedCapacity float64   `json:"projected_capacity"`
	Responders        int       `json:"responders"`
	Coverage          float64   `json:"coverage"`
}

// CapacityGap is a contiguous window where capacity misses demand.
type CapacityGap struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Shortfall float64   `json:"shortfall"`
	Severity  string    `json:"severity"`
}

// CapacityPlan is the output of GenerateCapacityPlan.
type CapacityPlan struct {
	Start              time.Time      `json:"start"`
	End                time.Time      `json:"end"`
	GranularityMinutes int            `json:"granularity_minutes"`
	Slots              []CapacitySlot `json:"slots"`
	Gaps               []CapacityGap  `json:"gaps,omitempty"`
	Recommendations    []string       `json:"recommendations"`
	Contingencies      []string       `json:"contingencies"`
	Confidence         float64        `json:"confidence"`
	GeneratedAt        time.Time      `json:"generated_at"`
}

// burnoutDiscount is the share of a responder's capacity withheld for the
// given risk level.
func burnoutDiscount(l model.RiskLevel) float64 {
	switch l {
	case model.RiskMedium:
		return 0.1
	case model.RiskHigh:
		return 0.3
	case model.RiskCritical:
		return 1
	default:
		return 0
	}
}

type forecast struct {
	rate    float64
	std     float64
	samples int
}

// forecastRate predicts the hourly request rate at slot from the same
// hour-of-week in previous weeks: the mean, corrected by a linear trend
// clamped to half the mean.
func (a *Assessor) forecastRate(slot, now time.Time) forecast {
	ys := a.demand.samples(slot, now)
	if len(ys) == 0 {
		return forecast{rate: a.cfg.DefaultHourlyDemand}
	}
	f := forecast{rate: stat.Mean(ys, nil), samples: len(ys)}
	if len(ys) >= 2 {
		f.std = stat.StdDev(ys, nil)
	}
	if len(ys) >= 3 {
		xs := make([]float64, len(ys))
		for i := range xs {
			xs[i] = float64(i)
		}
		alpha, beta := stat.LinearRegression(xs, ys, nil, false)
		adj := alpha + beta*float64(len(ys)) - f.rate
		limit := 0.5 * f.rate
		f.rate += math.Max(-limit, math.Min(limit, adj))
	}
	f.rate = math.Max(0, f.rate)
	return f
}

type plannedResponder struct {
	profile   model.ResponderProfile
	effective float64
	risk      model.RiskLevel
}

// GenerateCapacityPlan forecasts demand between start and end in steps of
// granularity, projects scheduled responder capacity net of burnout, and
// flags gaps with recommendations and contingencies.
func (a *Assessor) GenerateCapacityPlan(ctx context.Context, start, end time.Time, granularity time.Duration) (CapacityPlan, error) {
	if !end.After(start) {
		return CapacityPlan{}, fmt.Errorf("%w: plan end must be after start", model.ErrInvalidCriteria)
	}
	if granularity < time.Minute {
		return CapacityPlan{}, fmt.Errorf("%w: granularity must be at least one minute", model.ErrInvalidCriteria)
	}
	n := int(math.Ceil(float64(end.Sub(start)) / float64(granularity)))
	if n > maxPlanSlots {
		return CapacityPlan{}, fmt.Errorf("%w: plan spans %d slots, maximum %d", model.ErrInvalidCriteria, n, maxPlanSlots)
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.planTimeout())
	defer cancel()

	profiles, err := a.profiles.List(ctx)
	if err != nil {
		return CapacityPlan{}, fmt.Errorf("capacity plan: %w", err)
	}
	team := make([]plannedResponder, 0, len(profiles))
	for _, p := range profiles {
		level := model.RiskLow
		if as, err := a.Assess(ctx, p.ID); err == nil {
			level = as.Burnout.Level
		} else if ctx.Err() != nil {
			return CapacityPlan{}, fmt.Errorf("capacity plan: %w", ctx.Err())
		}
		sessions := p.MaxConcurrentSessions
		if sessions <= 0 {
			sessions = 1
		}
		team = append(team, plannedResponder{
			profile:   p,
			effective: float64(sessions) * (1 - burnoutDiscount(level)),
			risk:      level,
		})
	}

	now := a.now()
	plan := CapacityPlan{
		Start:              start,
		End:                end,
		GranularityMinutes: int(granularity / time.Minute),
		GeneratedAt:        now,
	}
	var withHistory int
	var cvSum float64
	var cvN int
	for i := 0; i < n; i++ {
		s := start.Add(time.Duration(i) * granularity)
		e := s.Add(granularity)
		if e.After(end) {
			e = end
		}
		f := a.forecastRate(s, now)
		if f.samples >= 2 {
			withHistory++
		}
		if f.rate > 0 && f.samples >= 2 {
			cvSum += f.std / f.rate
			cvN++
		}
		slot := CapacitySlot{
			Start:            s,
			End:              e,
			ExpectedRequests: f.rate,
			ForecastDemand:   f.rate * a.cfg.AvgSessionMinutes / 60,
		}
		width := e.Sub(s)
		for _, r := range team {
			var covered time.Duration
			for _, sh := range r.profile.Shifts {
				covered += sh.Overlap(s, e)
			}
			if covered <= 0 {
				continue
			}
			slot.Responders++
			slot.ProjectedCapacity += r.effective * math.Min(1, float64(covered)/float64(width))
		}
		switch {
		case slot.ForecastDemand > 0:
			slot.Coverage = slot.ProjectedCapacity / slot.ForecastDemand
		case slot.ProjectedCapacity > 0:
			slot.Coverage = 1
		}
		plan.Slots = append(plan.Slots, slot)
		if err := ctx.Err(); err != nil {
			return CapacityPlan{}, fmt.Errorf("capacity plan: %w", err)
		}
	}

	plan.Gaps = a.findGaps(plan.Slots)
	plan.Recommendations = recommendCapacity(plan, team)
	plan.Contingencies = contingencies(plan, team)

	coverage := float64(withHistory) / float64(n)
	cv := 0.0
	if cvN > 0 {
		cv = cvSum / float64(cvN)
	}
	plan.Confidence = math.Max(0.1, math.Min(0.95, 0.3+0.6*coverage-0.2*math.Min(1, cv)))
	return plan, nil
}

func gapSeverity(coverage float64) string {
	switch {
	case coverage < 0.5:
		return GapCritical
	case coverage < 0.8:
		return GapHigh
	default:
		return GapModerate
	}
}

func severityRank(s string) int {
	switch s {
	case GapCritical:
		return 2
	case GapHigh:
		return 1
	default:
		return 0
	}
}

// findGaps merges adjacent under-covered slots, keeping the largest
// shortfall and the worst severity of each run.
func (a *Assessor) findGaps(slots []CapacitySlot) []CapacityGap {
	var gaps []CapacityGap
	var cur *CapacityGap
	for _, s := range slots {
		need := s.ForecastDemand * (1 + a.cfg.DemandBuffer)
		if s.ProjectedCapacity >= need || need == 0 {
			cur = nil
			continue
		}
		short := need - s.ProjectedCapacity
		sev := gapSeverity(s.Coverage)
		if cur != nil && cur.End.Equal(s.Start) {
			cur.End = s.End
			cur.Shortfall = math.Max(cur.Shortfall, short)
			if severityRank(sev) > severityRank(cur.Severity) {
				cur.Severity = sev
			}
			continue
		}
		gaps = append(gaps, CapacityGap{Start: s.Start, End: s.End, Shortfall: short, Severity: sev})
		cur = &gaps[len(gaps)-1]
	}
	return gaps
}

func recommendCapacity(plan CapacityPlan, team []plannedResponder) []string {
	if len(plan.Gaps) == 0 {
		return []string{"scheduled capacity covers forecast demand"}
	}
	perResponder := 0.0
	for _, r := range team {
		perResponder += r.effective
	}
	if len(team) > 0 {
		perResponder /= float64(len(team))
	}
	if perResponder <= 0 {
		perResponder = 1
	}
	out := make([]string, 0, len(plan.Gaps))
	for _, g := range plan.Gaps {
		need := int(math.Ceil(g.Shortfall / perResponder))
		out = append(out, fmt.Sprintf("schedule %d additional responder(s) between %s and %s (%s gap)",
			need, g.Start.Format(time.RFC3339), g.End.Format(time.RFC3339), g.Severity))
	}
	return out
}

func contingencies(plan CapacityPlan, team []plannedResponder) []string {
	out := []string{"serve automated resources when no responder can be reserved"}
	critical := false
	for _, g := range plan.Gaps {
		if g.Severity == GapCritical {
			critical = true
			break
		}
	}
	if critical {
		out = append(out,
			"keep the emergency pool on standby through critical windows",
			"route overflow to the partner line")
	}
	if len(plan.Gaps) > 0 {
		var fresh []string
		for _, r := range team {
			if r.risk == model.RiskLow {
				fresh = append(fresh, r.profile.ID)
			}
		}
		sort.Strings(fresh)
		if len(fresh) > 5 {
			fresh = fresh[:5]
		}
		if len(fresh) > 0 {
			out = append(out, fmt.Sprintf("offer voluntary extra hours to low-risk responders: %v", fresh))
		}
	}
	return out
}
