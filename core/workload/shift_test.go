package workload

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/crisismatch/core/model"
)

func at(day, hour int) time.Time { return time.Date(2024, 3, day, hour, 0, 0, 0, time.UTC) }

func codes(v ShiftValidation) []string {
	var out []string
	for _, x := range v.Violations {
		out = append(out, x.Code)
	}
	return out
}

func TestValidateShiftAccepted(t *testing.T) {
	a := newTestAssessor(newFakeStatus(), model.ResponderProfile{ID: "r1"})
	v, err := a.ValidateShiftAssignment(context.Background(), "r1", model.Shift{Start: at(8, 9), End: at(8, 17)})
	require.NoError(t, err)
	assert.True(t, v.IsValid)
	assert.Empty(t, v.Violations)
	assert.Nil(t, v.Adjustments)
}

func TestValidateShiftInvalidWindow(t *testing.T) {
	a := newTestAssessor(newFakeStatus(), model.ResponderProfile{ID: "r1"})
	v, err := a.ValidateShiftAssignment(context.Background(), "r1", model.Shift{Start: at(8, 17), End: at(8, 9)})
	require.NoError(t, err)
	assert.False(t, v.IsValid)
	assert.Equal(t, []string{ViolationInvalidWindow}, codes(v))
}

func TestValidateShiftDailyHoursTruncated(t *testing.T) {
	a := newTestAssessor(newFakeStatus(), model.ResponderProfile{ID: "r1"})
	v, err := a.ValidateShiftAssignment(context.Background(), "r1", model.Shift{Start: at(8, 8), End: at(8, 18)})
	require.NoError(t, err)
	assert.False(t, v.IsValid)
	assert.Equal(t, []string{ViolationDailyHours}, codes(v))
	require.NotNil(t, v.Adjustments)
	assert.Equal(t, at(8, 8), v.Adjustments.Start)
	assert.Equal(t, at(8, 16), v.Adjustments.End)
}

func TestValidateShiftInsufficientRest(t *testing.T) {
	p := model.ResponderProfile{ID: "r1", Shifts: []model.Shift{{Start: at(7, 14), End: at(7, 22)}}}
	a := newTestAssessor(newFakeStatus(), p)
	v, err := a.ValidateShiftAssignment(context.Background(), "r1", model.Shift{Start: at(8, 4), End: at(8, 10)})
	require.NoError(t, err)
	assert.False(t, v.IsValid)
	assert.Equal(t, []string{ViolationInsufficientRest}, codes(v))
	require.NotNil(t, v.Adjustments)
	assert.Equal(t, at(8, 8), v.Adjustments.Start)
	assert.Equal(t, at(8, 14), v.Adjustments.End)
}

func TestValidateShiftCriticalBurnout(t *testing.T) {
	a := newTestAssessor(newFakeStatus(), model.ResponderProfile{ID: "r1"})
	exhaust(a, "r1")
	v, err := a.ValidateShiftAssignment(context.Background(), "r1", model.Shift{Start: at(9, 9), End: at(9, 17)})
	require.NoError(t, err)
	assert.False(t, v.IsValid)
	assert.Contains(t, codes(v), ViolationCriticalBurnout)
	require.NotNil(t, v.Adjustments)
	assert.Equal(t, 4*time.Hour, v.Adjustments.Duration())
}

func TestValidateShiftWeeklyIsWarningOnly(t *testing.T) {
	var shifts []model.Shift
	// Monday to Friday, 8h each, fills the 40h week.
	for d := 4; d <= 8; d++ {
		shifts = append(shifts, model.Shift{Start: at(d, 0), End: at(d, 8)})
	}
	p := model.ResponderProfile{ID: "r1", Shifts: shifts}
	a := newTestAssessor(newFakeStatus(), p)
	v, err := a.ValidateShiftAssignment(context.Background(), "r1", model.Shift{Start: at(9, 10), End: at(9, 18)})
	require.NoError(t, err)
	assert.True(t, v.IsValid)
	assert.Equal(t, []string{ViolationWeeklyHours}, codes(v))
	assert.Nil(t, v.Adjustments)
}

func TestValidateShiftWorkedHoursInsideScheduledShiftCountOnce(t *testing.T) {
	p := model.ResponderProfile{
		ID:     "r1",
		Shifts: []model.Shift{{Start: at(6, 8), End: at(6, 12)}},
		Limits: model.WorkLimits{MinRestHours: 0.5},
	}
	a := newTestAssessor(newFakeStatus(), p)
	ctx := context.Background()
	a.RecordSessionStart(ctx, "r1", "s1", at(6, 8))
	a.RecordSessionEnd(ctx, "r1", "s1", at(6, 12))

	v, err := a.ValidateShiftAssignment(ctx, "r1", model.Shift{Start: at(6, 15), End: at(6, 19)})
	require.NoError(t, err)
	assert.True(t, v.IsValid, "violations: %+v", v.Violations)
	assert.NotContains(t, codes(v), ViolationDailyHours)
	assert.Nil(t, v.Adjustments)

	// A further hour on the same day is over the 8h limit.
	v, err = a.ValidateShiftAssignment(ctx, "r1", model.Shift{Start: at(6, 15), End: at(6, 20)})
	require.NoError(t, err)
	assert.Equal(t, []string{ViolationDailyHours}, codes(v))
	require.NotNil(t, v.Adjustments)
	assert.Equal(t, at(6, 19), v.Adjustments.End)
}

func TestUnionHours(t *testing.T) {
	ivs := []model.Shift{
		{Start: at(6, 10), End: at(6, 14)},
		{Start: at(6, 8), End: at(6, 12)},
		{Start: at(6, 12), End: at(6, 13)},
		{Start: at(6, 20), End: at(7, 2)},
	}
	if got := unionHours(ivs, at(6, 0), at(7, 0)); got != 10 {
		t.Fatalf("union of day: got %.1fh, want 10h", got)
	}
	assert.Equal(t, 2.0, unionHours(ivs, at(7, 0), at(8, 0)))
	assert.Zero(t, unionHours(nil, at(6, 0), at(7, 0)))
}
