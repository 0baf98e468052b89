package matching

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/crisismatch/core/factory"
	"github.com/kilianp07/crisismatch/core/model"
)

func TestDefaultWeightsSumToOne(t *testing.T) {
	for _, u := range []model.Urgency{model.UrgencyLow, model.UrgencyNormal, model.UrgencyHigh, model.UrgencyCritical, model.UrgencyEmergency} {
		var sum float64
		for _, v := range DefaultConfig().weights(u) {
			sum += v
		}
		assert.InDelta(t, 1, sum, 1e-9, "urgency %s", u)
	}
	assert.Zero(t, DefaultWeights(model.UrgencyHigh)[CompEmergency])
	assert.Equal(t, 0.30, DefaultWeights(model.UrgencyEmergency)[CompAvailability])
}

func TestWeightsNormalizedDropsUnknown(t *testing.T) {
	w := Weights{CompSpecialty: 2, CompLanguage: 2, "bogus": 5, CompCultural: -1}.normalized()
	assert.Len(t, w, 2)
	assert.InDelta(t, 0.5, w[CompSpecialty], 1e-9)
	assert.InDelta(t, 0.5, w[CompLanguage], 1e-9)
}

func TestConfigValidate(t *testing.T) {
	c := DefaultConfig()
	c.MinViableScore = 1.5
	assert.Error(t, c.Validate())

	c = DefaultConfig()
	c.Weights = map[model.Urgency]Weights{"SOON": {CompSpecialty: 1}}
	assert.Error(t, c.Validate())

	c = DefaultConfig()
	c.Weights = map[model.Urgency]Weights{model.UrgencyLow: {CompSpecialty: 1}}
	require.NoError(t, c.Validate())
	assert.Equal(t, Weights{CompSpecialty: 1}, c.weights(model.UrgencyLow))
}

func TestSpecialtyScore(t *testing.T) {
	p := model.ResponderProfile{Specialties: []model.Specialty{model.SpecialtyGrief, model.SpecialtyYouth}}
	assert.Equal(t, 0.8, specialtyScore(p, model.MatchRequest{}))
	assert.Equal(t, 1.0, specialtyScore(p, model.MatchRequest{RequiredSpecialties: []model.Specialty{model.SpecialtyGrief}}))
	assert.InDelta(t, 0.85, specialtyScore(p, model.MatchRequest{
		RequiredSpecialties:  []model.Specialty{model.SpecialtyGrief},
		PreferredSpecialties: []model.Specialty{model.SpecialtyYouth, model.SpecialtyTrauma},
	}), 1e-9)
	assert.InDelta(t, 0.3, specialtyScore(p, model.MatchRequest{RequiredSpecialties: []model.Specialty{model.SpecialtyTrauma}}), 1e-9)
}

func TestAvailabilityScore(t *testing.T) {
	now := time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)
	idle := model.ResponderStatus{MaxConcurrentSessions: 2, LastHeartbeat: now}
	assert.Equal(t, 1.0, availabilityScore(idle, now, time.Minute))

	half := model.ResponderStatus{CurrentSessions: 1, MaxConcurrentSessions: 2, LastHeartbeat: now.Add(-time.Minute)}
	assert.InDelta(t, 0.7*0.8, availabilityScore(half, now, time.Minute), 1e-9)
}

func TestGeographicScore(t *testing.T) {
	st := model.ResponderStatus{Location: model.Location{Country: "CA", Timezone: "America/Toronto"}}
	p := model.ResponderProfile{}
	assert.Equal(t, neutralGeographic, geographicScore(st, p, model.MatchRequest{}))
	assert.Equal(t, 1.0, geographicScore(st, p, model.MatchRequest{Location: model.Location{Country: "ca"}}))
	assert.Equal(t, 0.8, geographicScore(st, p, model.MatchRequest{Location: model.Location{Country: "US", Timezone: "America/Toronto"}}))
	assert.Equal(t, 0.4, geographicScore(st, p, model.MatchRequest{Location: model.Location{Country: "FR"}}))
}

func TestComputeComponentsNeutralWhenMissing(t *testing.T) {
	c := &candidate{
		status:  model.ResponderStatus{ID: "r1", MaxConcurrentSessions: 2},
		profile: model.ResponderProfile{ID: "r1"},
	}
	computeComponents(c, model.MatchRequest{Urgency: model.UrgencyNormal}, time.Now(), time.Minute)
	assert.Len(t, c.components, len(components))
	assert.Equal(t, neutralCultural, c.components[CompCultural])
	assert.Equal(t, neutralPerformance, c.components[CompPerformance])
	assert.Equal(t, neutralWorkload, c.components[CompWorkload])
	assert.Equal(t, 0.0, c.components[CompEmergency])
	assert.Len(t, c.adjustments, 3)
	for _, a := range c.adjustments {
		assert.Zero(t, a.Delta)
	}
}

func TestBalancePenalties(t *testing.T) {
	t.Run("immediate bonus", func(t *testing.T) {
		c := &candidate{status: model.ResponderStatus{Status: model.StatusOnline, MaxConcurrentSessions: 2}, score: 0.6}
		require.True(t, balance(c, model.MatchRequest{ImmediateResponse: true}, false))
		assert.InDelta(t, 0.65, c.score, 1e-9)
	})
	t.Run("critical burnout", func(t *testing.T) {
		c := &candidate{
			status:   model.ResponderStatus{Status: model.StatusOnline, MaxConcurrentSessions: 2},
			workload: &model.WorkloadAssessment{Burnout: model.BurnoutRisk{Level: model.RiskCritical, Score: 0.9}},
			score:    0.8,
		}
		require.True(t, balance(c, model.MatchRequest{Urgency: model.UrgencyEmergency}, false))
		assert.InDelta(t, 0.53, c.score, 1e-9)
		require.Len(t, c.adjustments, 1)
		assert.Equal(t, FactorBurnout, c.adjustments[0].Factor)
	})
	t.Run("high utilization", func(t *testing.T) {
		c := &candidate{status: model.ResponderStatus{Status: model.StatusOnline, CurrentSessions: 4, MaxConcurrentSessions: 5}, score: 0.7}
		require.True(t, balance(c, model.MatchRequest{}, false))
		assert.InDelta(t, 0.62, c.score, 1e-9)
	})
	t.Run("quality floor", func(t *testing.T) {
		c := &candidate{status: model.ResponderStatus{MaxConcurrentSessions: 2}, score: 0.7}
		assert.False(t, balance(c, model.MatchRequest{Urgency: model.UrgencyLow}, true))

		c = &candidate{status: model.ResponderStatus{MaxConcurrentSessions: 2}, score: 0.05}
		require.True(t, balance(c, model.MatchRequest{Urgency: model.UrgencyHigh}, true))
		assert.Equal(t, 0.0, c.score)
	})
}

func TestRankTieBreaks(t *testing.T) {
	busy := &candidate{status: model.ResponderStatus{ID: "a", CurrentSessions: 1, MaxConcurrentSessions: 2}, score: 0.7}
	idle := &candidate{status: model.ResponderStatus{ID: "b", MaxConcurrentSessions: 2}, score: 0.7}
	best := &candidate{status: model.ResponderStatus{ID: "c", CurrentSessions: 1, MaxConcurrentSessions: 2}, score: 0.9}
	twin := &candidate{status: model.ResponderStatus{ID: "0", MaxConcurrentSessions: 2}, score: 0.7}
	cands := []*candidate{busy, idle, best, twin}
	rank(cands)
	var ids []string
	for _, c := range cands {
		ids = append(ids, c.status.ID)
	}
	assert.Equal(t, []string{"c", "0", "b", "a"}, ids)
}

func TestFallbackStrategies(t *testing.T) {
	fbs, err := NewFallbacks([]factory.ModuleConfig{
		{Type: string(model.FallbackTransfer), Conf: map[string]any{"partners": []any{"line-a", "line-b"}}},
		{Type: string(model.FallbackEscalate), Conf: map[string]any{"contact": "supervisor-desk"}},
	})
	require.NoError(t, err)
	require.Len(t, fbs, 4)
	ctx := context.Background()
	booked := &model.MatchResult{ResponderID: "r9"}
	fc := FallbackContext{Request: model.MatchRequest{Urgency: model.UrgencyHigh}, Reason: "none left"}

	d := fbs[model.FallbackTransfer].Apply(ctx, fc)
	assert.Equal(t, "line-a", d.Partner)
	assert.Equal(t, "line-b", fbs[model.FallbackTransfer].Apply(ctx, fc).Partner)

	d = fbs[model.FallbackEscalate].Apply(ctx, fc)
	assert.Equal(t, "supervisor-desk", d.EscalatedTo)
	assert.Equal(t, DefaultResources, d.Resources)

	fc.Emergency = func(context.Context) (*model.MatchResult, bool) { return booked, true }
	d = fbs[model.FallbackBestAvailable].Apply(ctx, fc)
	assert.Same(t, booked, d.Match)
	assert.Equal(t, "none left; served from emergency pool", d.Reason)

	fc.Request.Urgency = model.UrgencyLow
	d = fbs[model.FallbackBestAvailable].Apply(ctx, fc)
	assert.Nil(t, d.Match)
	assert.Equal(t, DefaultResources, d.Resources)

	d = fbs[model.FallbackResourcesOnly].Apply(ctx, fc)
	assert.Nil(t, d.Match)
	assert.Equal(t, model.FallbackResourcesOnly, d.Strategy)

	_, err = NewFallbacks([]factory.ModuleConfig{{Type: "PRAY"}})
	assert.Error(t, err)
}
