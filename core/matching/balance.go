package matching

import (
	"fmt"

	"github.com/kilianp07/crisismatch/core/model"
)

// Load balancing factors.
const (
	FactorImmediate   = "immediate_availability"
	FactorBurnout     = "burnout"
	FactorUtilization = "utilization"
	FactorQuality     = "quality_floor"

	highUtilization = 0.8
)

// balance applies bonuses and penalties on top of the weighted score. It
// reports false when the candidate must be dropped.
func balance(c *candidate, req model.MatchRequest, belowFloor bool) bool {
	score := c.score

	if req.ImmediateResponse && c.status.Status == model.StatusOnline && c.status.CurrentSessions == 0 {
		score += 0.05
		c.adjust(FactorImmediate, 0.05, "idle and online for an immediate response")
	}

	if lvl, b, ok := c.burnout(); ok {
		switch lvl {
		case model.RiskCritical:
			d := -0.3 * b
			score += d
			c.adjust(FactorBurnout, d, fmt.Sprintf("critical burnout risk %.2f", b))
		case model.RiskHigh:
			d := -0.15 * b
			score += d
			c.adjust(FactorBurnout, d, fmt.Sprintf("high burnout risk %.2f", b))
		}
	}

	if u := c.utilization(); u >= highUtilization {
		d := -0.1 * u
		score += d
		c.adjust(FactorUtilization, d, fmt.Sprintf("utilization %.0f%%", u*100))
	}

	if belowFloor {
		if req.Urgency == model.UrgencyLow {
			return false
		}
		score -= 0.1
		c.adjust(FactorQuality, -0.1, "quality below floor")
	}

	c.score = clamp01(score)
	return true
}
