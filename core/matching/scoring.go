package matching

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/kilianp07/crisismatch/core/model"
)

// Values used when a component could not be computed in time.
const (
	neutralPerformance = 0.7
	neutralCultural    = 0.7
	neutralWorkload    = 0.6
	neutralGeographic  = 0.7
)

// candidate carries everything known about one responder during a match.
type candidate struct {
	status   model.ResponderStatus
	profile  model.ResponderProfile
	workload *model.WorkloadAssessment
	quality  *model.QualityScore
	compat   *model.CompatibilityMatch

	components  map[string]float64
	adjustments []model.Adjustment
	score       float64
}

func (c *candidate) adjust(factor string, delta float64, reason string) {
	c.adjustments = append(c.adjustments, model.Adjustment{Factor: factor, Delta: delta, Reason: reason})
}

// utilization is the highest of live session load and assessed workload.
func (c *candidate) utilization() float64 {
	u := c.status.Utilization()
	if c.workload != nil {
		u = math.Max(u, c.workload.Utilization.Max())
	}
	return u
}

func (c *candidate) burnout() (model.RiskLevel, float64, bool) {
	if c.workload == nil {
		return model.RiskLow, 0, false
	}
	return c.workload.Burnout.Level, c.workload.Burnout.Score, true
}

func specialtyScore(p model.ResponderProfile, req model.MatchRequest) float64 {
	if len(req.RequiredSpecialties) == 0 && len(req.PreferredSpecialties) == 0 {
		return 0.8
	}
	base := 0.0
	if p.HasAllSpecialties(req.RequiredSpecialties) {
		base = 0.7
	}
	if len(req.PreferredSpecialties) == 0 {
		return base + 0.3
	}
	held := 0
	for _, s := range req.PreferredSpecialties {
		if p.HasSpecialty(s) {
			held++
		}
	}
	return base + 0.3*float64(held)/float64(len(req.PreferredSpecialties))
}

func experienceScore(p model.ResponderProfile) float64 {
	years := math.Min(1, p.YearsExperience/10)
	sessions := math.Min(1, float64(p.TotalSessions)/500)
	return clamp01(0.6*years + 0.4*sessions)
}

// availabilityScore favours idle responders with a recent heartbeat.
func availabilityScore(st model.ResponderStatus, now time.Time, staleAfter time.Duration) float64 {
	age := 0.0
	if staleAfter > 0 && !st.LastHeartbeat.IsZero() {
		age = math.Min(1, math.Max(0, now.Sub(st.LastHeartbeat).Seconds()/staleAfter.Seconds()))
	}
	return clamp01((1 - 0.6*st.Utilization()) * (1 - 0.2*age))
}

func geographicScore(st model.ResponderStatus, p model.ResponderProfile, req model.MatchRequest) float64 {
	if req.Location.IsZero() {
		return neutralGeographic
	}
	loc := st.Location
	if loc.IsZero() {
		loc = p.Location
	}
	switch {
	case req.Location.Country != "" && strings.EqualFold(req.Location.Country, loc.Country):
		return 1
	case req.Location.Timezone != "" && req.Location.Timezone == loc.Timezone:
		return 0.8
	default:
		return 0.4
	}
}

func emergencyScore(st model.ResponderStatus, req model.MatchRequest) float64 {
	if req.Urgency != model.UrgencyEmergency {
		return 0
	}
	if st.EmergencyAvailable || st.Status == model.StatusEmergencyOnly {
		return 1
	}
	return 0.3
}

// computeComponents fills c.components. Components that could not be
// computed use neutral values and record an adjustment with zero delta.
func computeComponents(c *candidate, req model.MatchRequest, now time.Time, staleAfter time.Duration) {
	comp := map[string]float64{
		CompSpecialty:    specialtyScore(c.profile, req),
		CompExperience:   experienceScore(c.profile),
		CompAvailability: availabilityScore(c.status, now, staleAfter),
		CompGeographic:   geographicScore(c.status, c.profile, req),
		CompEmergency:    emergencyScore(c.status, req),
	}

	if c.compat != nil {
		comp[CompLanguage] = c.compat.LanguageMatch.LanguageScore
		comp[CompCultural] = c.compat.CulturalMatch
	} else {
		// required languages already passed the hard filter
		comp[CompLanguage] = 1
		comp[CompCultural] = neutralCultural
		c.adjust(CompCultural, 0, "cultural scoring skipped")
	}

	if c.quality != nil {
		comp[CompPerformance] = c.quality.Overall
		comp[CompReliability] = c.quality.Components.Reliability
	} else {
		comp[CompPerformance] = neutralPerformance
		comp[CompReliability] = neutralPerformance
		c.adjust(CompPerformance, 0, "quality score unavailable")
	}

	if c.workload != nil {
		comp[CompWorkload] = clamp01(1 - c.workload.Burnout.Score)
	} else {
		comp[CompWorkload] = neutralWorkload
		c.adjust(CompWorkload, 0, "workload assessment unavailable")
	}

	for k, v := range comp {
		comp[k] = clamp01(v)
	}
	c.components = comp
}

// composite returns the weighted sum of the components.
func composite(comp map[string]float64, w Weights) float64 {
	var sum float64
	for k, weight := range w {
		sum += weight * comp[k]
	}
	return clamp01(sum)
}

// rank orders candidates by score, then utilisation, then id.
func rank(cands []*candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		ui, uj := cands[i].utilization(), cands[j].utilization()
		if ui != uj {
			return ui < uj
		}
		return cands[i].status.ID < cands[j].status.ID
	})
}

func breakdown(c *candidate, w Weights) model.ScoreBreakdown {
	b := model.ScoreBreakdown{
		Components:  make(map[string]float64, len(c.components)),
		Weights:     make(map[string]float64, len(w)),
		Adjustments: append([]model.Adjustment(nil), c.adjustments...),
	}
	for k, v := range c.components {
		b.Components[k] = round3(v)
	}
	for k, v := range w {
		b.Weights[k] = round3(v)
	}
	return b
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
