package workload

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/crisismatch/core/model"
)

func TestGenerateCapacityPlanFlagsGaps(t *testing.T) {
	shift := []model.Shift{{Start: at(7, 8), End: at(7, 16)}}
	a := newTestAssessor(newFakeStatus(),
		model.ResponderProfile{ID: "a", MaxConcurrentSessions: 2, Shifts: shift},
		model.ResponderProfile{ID: "b", MaxConcurrentSessions: 2, Shifts: shift},
	)

	plan, err := a.GenerateCapacityPlan(context.Background(), at(7, 6), at(7, 12), time.Hour)
	require.NoError(t, err)
	require.Len(t, plan.Slots, 6)

	// Default demand of 4 requests/h at 45 min each is 3 concurrent sessions.
	assert.InDelta(t, 3.0, plan.Slots[0].ForecastDemand, 1e-9)
	assert.Equal(t, 0.0, plan.Slots[0].ProjectedCapacity)
	assert.InDelta(t, 4.0, plan.Slots[2].ProjectedCapacity, 1e-9)
	assert.Equal(t, 2, plan.Slots[2].Responders)

	require.Len(t, plan.Gaps, 1)
	g := plan.Gaps[0]
	assert.Equal(t, at(7, 6), g.Start)
	assert.Equal(t, at(7, 8), g.End)
	assert.Equal(t, GapCritical, g.Severity)
	assert.InDelta(t, 3.6, g.Shortfall, 1e-9)

	require.Len(t, plan.Recommendations, 1)
	assert.Contains(t, plan.Recommendations[0], "schedule 2 additional responder(s)")
	assert.Contains(t, plan.Contingencies, "keep the emergency pool on standby through critical windows")
	assert.InDelta(t, 0.3, plan.Confidence, 1e-9)
}

func TestGenerateCapacityPlanDiscountsBurnout(t *testing.T) {
	shift := []model.Shift{{Start: at(6, 0), End: at(7, 0)}}
	a := newTestAssessor(newFakeStatus(), model.ResponderProfile{ID: "tired", MaxConcurrentSessions: 3, Shifts: shift})
	exhaust(a, "tired")

	plan, err := a.GenerateCapacityPlan(context.Background(), at(6, 16), at(6, 17), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0.0, plan.Slots[0].ProjectedCapacity)
	assert.Equal(t, 1, plan.Slots[0].Responders)
}

func TestGenerateCapacityPlanRejectsBadInput(t *testing.T) {
	a := newTestAssessor(newFakeStatus())
	ctx := context.Background()
	_, err := a.GenerateCapacityPlan(ctx, at(7, 12), at(7, 6), time.Hour)
	assert.ErrorIs(t, err, model.ErrInvalidCriteria)
	_, err = a.GenerateCapacityPlan(ctx, at(7, 6), at(7, 12), time.Second)
	assert.ErrorIs(t, err, model.ErrInvalidCriteria)
	_, err = a.GenerateCapacityPlan(ctx, at(1, 0), at(29, 0), 5*time.Minute)
	assert.ErrorIs(t, err, model.ErrInvalidCriteria)
}

func TestForecastRateUsesHistoryAndTrend(t *testing.T) {
	a := newTestAssessor(newFakeStatus())
	slot := at(7, 10)
	ref := slot.AddDate(0, 0, -7)
	for i, n := range []float64{2, 4, 6, 8} {
		a.SeedDemand(ref.AddDate(0, 0, -7*(3-i)), n)
	}
	f := a.forecastRate(slot, testNow)
	assert.Equal(t, 4, f.samples)
	// Mean 5, trend projects 10, clamped to +50%.
	assert.InDelta(t, 7.5, f.rate, 1e-9)
	assert.Greater(t, f.std, 0.0)

	empty := a.forecastRate(at(7, 3), testNow)
	assert.Equal(t, 3, empty.samples, "quiet hours after the first record count as observed")
	assert.Equal(t, 0.0, empty.rate)
}
