package quality

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/crisismatch/core/model"
	"github.com/kilianp07/crisismatch/infra/logger"
)

func outcome(id string, at time.Time, resolved bool, sat float64, rt time.Duration) model.SessionOutcome {
	return model.SessionOutcome{ResponderID: id, Resolved: resolved, Satisfaction: sat, ResponseTime: rt, Completed: true, EndedAt: at}
}

func TestScorePriorWithoutHistory(t *testing.T) {
	tr := NewTracker(DefaultConfig(), nil, logger.NopLogger{})
	s, err := tr.Score(context.Background(), "r1")
	require.NoError(t, err)
	assert.InDelta(t, 0.7, s.Overall, 1e-9)
	assert.Equal(t, 0, s.Samples)
	assert.False(t, tr.BelowFloor(s))

	tr2 := NewTracker(DefaultConfig(), nil, logger.NopLogger{})
	tr2.SetPrior(func(context.Context, string) (float64, bool) { return 0.9, true })
	s, _ = tr2.Score(context.Background(), "r1")
	assert.InDelta(t, 0.9, s.Overall, 1e-9)
}

func TestScoreComponents(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tr := NewTracker(DefaultConfig(), nil, logger.NopLogger{})
	tr.SetClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, tr.Record(ctx, outcome("r1", now.Add(-2*time.Hour), true, 5, 10*time.Second)))
	require.NoError(t, tr.Record(ctx, outcome("r1", now.Add(-time.Hour), false, 3, 165*time.Second)))
	require.NoError(t, tr.Record(ctx, model.SessionOutcome{ResponderID: "r1", Completed: false, EndedAt: now}))

	s, err := tr.Score(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 3, s.Samples)
	assert.InDelta(t, 0.5, s.Components.Resolution, 1e-9)
	assert.InDelta(t, 0.75, s.Components.Satisfaction, 1e-9)
	// a missing response time counts as instant
	assert.InDelta(t, (1+0.5+1)/3.0, s.Components.ResponseTime, 1e-9)
	assert.InDelta(t, 2.0/3.0, s.Components.Reliability, 1e-9)
	assert.GreaterOrEqual(t, s.Overall, 0.0)
	assert.LessOrEqual(t, s.Overall, 1.0)
}

func TestScoreWindowAndTrend(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	cfg.WindowDays = 30
	tr := NewTracker(cfg, nil, logger.NopLogger{})
	tr.SetClock(func() time.Time { return now })
	ctx := context.Background()

	// Outside the window, ignored.
	require.NoError(t, tr.Record(ctx, outcome("r1", now.AddDate(0, 0, -60), true, 5, 0)))
	for i := 0; i < 4; i++ {
		require.NoError(t, tr.Record(ctx, outcome("r1", now.Add(time.Duration(-10+i)*time.Hour), false, 1, 5*time.Minute)))
	}
	for i := 0; i < 4; i++ {
		require.NoError(t, tr.Record(ctx, outcome("r1", now.Add(time.Duration(-4+i)*time.Hour), true, 5, 0)))
	}

	s, err := tr.Score(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 8, s.Samples)
	assert.Equal(t, TrendImproving, s.Trend.Direction)
	assert.Greater(t, s.Trend.Delta, 0.05)
}

func TestScoreIsCachedUntilNextOutcome(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(DefaultConfig(), nil, logger.NopLogger{})
	require.NoError(t, tr.Record(ctx, outcome("r1", time.Now(), true, 5, 0)))
	first, _ := tr.Score(ctx, "r1")

	require.NoError(t, tr.Record(ctx, outcome("r1", time.Now(), false, 1, 10*time.Minute)))
	second, _ := tr.Score(ctx, "r1")
	assert.Less(t, second.Overall, first.Overall)
}

func TestRecordValidation(t *testing.T) {
	tr := NewTracker(DefaultConfig(), nil, logger.NopLogger{})
	assert.ErrorIs(t, tr.Record(context.Background(), model.SessionOutcome{}), model.ErrInvalidCriteria)
	assert.ErrorIs(t, tr.Record(context.Background(), model.SessionOutcome{ResponderID: "r", Satisfaction: 9}), model.ErrInvalidCriteria)
}

func TestRecentRating(t *testing.T) {
	tr := NewTracker(DefaultConfig(), nil, logger.NopLogger{})
	_, ok := tr.RecentRating("r1")
	assert.False(t, ok)
	_ = tr.Record(context.Background(), outcome("r1", time.Now(), true, 4, 0))
	_ = tr.Record(context.Background(), outcome("r1", time.Now(), true, 2, 0))
	v, ok := tr.RecentRating("r1")
	assert.True(t, ok)
	assert.InDelta(t, 3.0, v, 1e-9)
}

func TestResponseTimeScore(t *testing.T) {
	assert.Equal(t, 1.0, ResponseTimeScore(10*time.Second))
	assert.Equal(t, 0.0, ResponseTimeScore(10*time.Minute))
	assert.InDelta(t, 0.5, ResponseTimeScore(165*time.Second), 1e-9)
}
