package workload

import (
	"math"

	"github.com/kilianp07/crisismatch/core/model"
)

// Burnout factor names.
const (
	FactorWellness    = "wellness"
	FactorDaily       = "daily_hours"
	FactorWeekly      = "weekly_hours"
	FactorConsecutive = "consecutive_sessions"
	FactorBreak       = "overdue_break"
	FactorPerformance = "performance"
	FactorStress      = "stress"
)

const (
	capWellness    = 0.4
	capDaily       = 0.3
	capWeekly      = 0.2
	capConsecutive = 0.2
	capBreak       = 0.2
	capPerformance = 0.15
	capStress      = 0.1

	// overrunStart is the utilisation at which hour and session factors kick in.
	overrunStart = 0.8
	// overrunSpan is the utilisation range over which a factor reaches its cap.
	overrunSpan = 0.4
	// breakSpanMinutes is the overdue time at which the break factor caps.
	breakSpanMinutes = 180
	// ratingSpan is the rating gap at which the performance factor caps.
	ratingSpan = 1.5

	stressStart = 7
	stressSpan  = 3
)

type burnoutInput struct {
	load     model.CurrentLoad
	limits   model.CapacityLimits
	wellness *model.WellnessCheck
	rating   float64
	rated    bool
	minRate  float64
}

func ratio(v, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	return v / limit
}

func capped(share, limit float64) float64 {
	if share <= 0 || math.IsNaN(share) {
		return 0
	}
	return math.Min(share, 1) * limit
}

func overrun(r, limit float64) float64 {
	return capped((r-overrunStart)/overrunSpan, limit)
}

// scoreBurnout sums the individually capped factors and clamps to [0,1].
func scoreBurnout(in burnoutInput) model.BurnoutRisk {
	var factors []model.BurnoutFactor
	add := func(name string, v float64) {
		if v > 0 {
			factors = append(factors, model.BurnoutFactor{Name: name, Value: v})
		}
	}

	if in.wellness != nil {
		add(FactorWellness, capped(in.wellness.BurnoutScore, capWellness))
		add(FactorStress, capped((in.wellness.StressLevel-stressStart)/stressSpan, capStress))
	}
	add(FactorDaily, overrun(ratio(in.load.HoursToday, in.limits.MaxDailyHours), capDaily))
	add(FactorWeekly, overrun(ratio(in.load.HoursThisWeek, in.limits.MaxWeeklyHours), capWeekly))
	add(FactorConsecutive, overrun(ratio(float64(in.load.ConsecutiveSessions), float64(in.limits.MaxConsecutiveSessions)), capConsecutive))
	if in.limits.MandatoryBreakMinutes > 0 {
		overdue := in.load.MinutesSinceBreak - float64(in.limits.MandatoryBreakMinutes)
		add(FactorBreak, capped(overdue/breakSpanMinutes, capBreak))
	}
	if in.rated && in.minRate > 0 {
		add(FactorPerformance, capped((in.minRate-in.rating)/ratingSpan, capPerformance))
	}

	var total float64
	for _, f := range factors {
		total += f.Value
	}
	total = math.Max(0, math.Min(1, total))
	return model.BurnoutRisk{Level: model.RiskLevelFor(total), Score: total, Factors: factors}
}

func recommendations(risk model.BurnoutRisk, load model.CurrentLoad, limits model.CapacityLimits) []string {
	var out []string
	for _, f := range risk.Factors {
		switch f.Name {
		case FactorBreak:
			out = append(out, "take a mandatory break before the next session")
		case FactorDaily:
			out = append(out, "end the shift once active sessions close")
		case FactorWeekly:
			out = append(out, "reduce scheduled hours for the rest of the week")
		case FactorConsecutive:
			out = append(out, "pause new assignments after the current session")
		case FactorStress, FactorWellness:
			out = append(out, "offer a wellness check-in with a supervisor")
		case FactorPerformance:
			out = append(out, "schedule peer supervision")
		}
	}
	if load.ActiveSessions >= limits.MaxConcurrentSessions && limits.MaxConcurrentSessions > 0 {
		out = append(out, "at session capacity")
	}
	switch risk.Level {
	case model.RiskCritical:
		out = append(out, "remove from rotation and force a break")
	case model.RiskHigh:
		out = append(out, "request supervisor review")
	}
	return out
}
