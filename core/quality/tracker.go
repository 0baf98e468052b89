// Package quality keeps rolling quality scores per responder, derived from
// recorded session outcomes.
package quality

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/crisismatch/core/cache"
	"github.com/kilianp07/crisismatch/core/logger"
	"github.com/kilianp07/crisismatch/core/model"
)

const (
	weightResolution   = 0.3
	weightSatisfaction = 0.3
	weightResponseTime = 0.2
	weightReliability  = 0.2

	// priorScore is used for responders without history.
	priorScore = 0.7
	trendBand  = 0.05

	fastResponse = 30 * time.Second
	slowResponse = 5 * time.Minute
)

// Trend directions.
const (
	TrendImproving = "improving"
	TrendStable    = "stable"
	TrendDeclining = "declining"
)

// Config tunes the rolling window.
type Config struct {
	WindowSize      int     `json:"window_size"`
	WindowDays      int     `json:"window_days"`
	MinQualityFloor float64 `json:"min_quality_floor"`
	CacheTTLSeconds int     `json:"cache_ttl_seconds"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{WindowSize: 50, WindowDays: 90, MinQualityFloor: 0.5, CacheTTLSeconds: 60}
}

// PriorFunc returns a prior overall score for a responder without history,
// usually derived from the profile rating.
type PriorFunc func(ctx context.Context, responderID string) (float64, bool)

// Tracker records outcomes and serves cached quality scores.
type Tracker struct {
	mu       sync.RWMutex
	outcomes map[string][]model.SessionOutcome

	cfg   Config
	cache cache.Cache[model.QualityScore]
	prior PriorFunc
	log   logger.Logger
	now   func() time.Time
}

// NewTracker creates a tracker. A nil cache selects an in-memory one.
func NewTracker(cfg Config, c cache.Cache[model.QualityScore], log logger.Logger) *Tracker {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 50
	}
	if c == nil {
		c = cache.NewMemory[model.QualityScore]()
	}
	return &Tracker{
		outcomes: make(map[string][]model.SessionOutcome),
		cfg:      cfg,
		cache:    c,
		log:      log,
		now:      time.Now,
	}
}

// SetPrior installs the prior used for responders without outcomes.
func (t *Tracker) SetPrior(p PriorFunc) { t.prior = p }

// SetClock replaces the time source.
func (t *Tracker) SetClock(now func() time.Time) { t.now = now }

// Floor returns the configured minimum quality.
func (t *Tracker) Floor() float64 { return t.cfg.MinQualityFloor }

// Record stores a session outcome and invalidates the cached score.
func (t *Tracker) Record(ctx context.Context, o model.SessionOutcome) error {
	if o.ResponderID == "" {
		return fmt.Errorf("%w: outcome without responder", model.ErrInvalidCriteria)
	}
	if o.Satisfaction != 0 && (o.Satisfaction < 1 || o.Satisfaction > 5) {
		return fmt.Errorf("%w: satisfaction %.1f outside [1,5]", model.ErrInvalidCriteria, o.Satisfaction)
	}
	if o.EndedAt.IsZero() {
		o.EndedAt = t.now()
	}
	t.mu.Lock()
	list := append(t.outcomes[o.ResponderID], o)
	if limit := t.cfg.WindowSize * 2; len(list) > limit {
		list = append([]model.SessionOutcome(nil), list[len(list)-limit:]...)
	}
	t.outcomes[o.ResponderID] = list
	t.mu.Unlock()

	t.cache.Delete(ctx, o.ResponderID)
	t.log.Debugf("quality outcome recorded for %s (session %s, resolved=%t)", o.ResponderID, o.SessionID, o.Resolved)
	return nil
}

// Score returns the rolling quality score of a responder.
func (t *Tracker) Score(ctx context.Context, responderID string) (model.QualityScore, error) {
	if err := ctx.Err(); err != nil {
		return model.QualityScore{}, err
	}
	if s, ok := t.cache.Get(ctx, responderID); ok {
		return s, nil
	}
	window := t.window(responderID)
	var s model.QualityScore
	if len(window) == 0 {
		s = t.priorScore(ctx, responderID)
	} else {
		s = compute(responderID, window)
	}
	t.cache.Set(ctx, responderID, s, time.Duration(t.cfg.CacheTTLSeconds)*time.Second)
	return s, nil
}

// BelowFloor reports whether a score is under the minimum quality floor.
func (t *Tracker) BelowFloor(s model.QualityScore) bool {
	return s.Samples > 0 && s.Overall < t.cfg.MinQualityFloor
}

// RecentRating returns the mean satisfaction (1-5) over the window.
func (t *Tracker) RecentRating(responderID string) (float64, bool) {
	var sum float64
	var n int
	for _, o := range t.window(responderID) {
		if o.Satisfaction > 0 {
			sum += o.Satisfaction
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// window returns the outcomes inside the configured window, oldest first.
func (t *Tracker) window(responderID string) []model.SessionOutcome {
	t.mu.RLock()
	src := t.outcomes[responderID]
	list := make([]model.SessionOutcome, 0, len(src))
	var cutoff time.Time
	if t.cfg.WindowDays > 0 {
		cutoff = t.now().AddDate(0, 0, -t.cfg.WindowDays)
	}
	for _, o := range src {
		if !cutoff.IsZero() && o.EndedAt.Before(cutoff) {
			continue
		}
		list = append(list, o)
	}
	t.mu.RUnlock()

	sort.SliceStable(list, func(i, j int) bool { return list[i].EndedAt.Before(list[j].EndedAt) })
	if len(list) > t.cfg.WindowSize {
		list = list[len(list)-t.cfg.WindowSize:]
	}
	return list
}

func (t *Tracker) priorScore(ctx context.Context, responderID string) model.QualityScore {
	overall := priorScore
	if t.prior != nil {
		if p, ok := t.prior(ctx, responderID); ok {
			overall = clamp01(p)
		}
	}
	return model.QualityScore{
		ResponderID: responderID,
		Overall:     overall,
		Components: model.QualityComponents{
			Resolution: overall, Satisfaction: overall, ResponseTime: overall, Reliability: overall,
		},
		Trend: model.QualityTrend{Direction: TrendStable},
	}
}

func compute(responderID string, window []model.SessionOutcome) model.QualityScore {
	c := components(window)
	s := model.QualityScore{
		ResponderID: responderID,
		Overall:     overall(c),
		Components:  c,
		Samples:     len(window),
		Trend:       model.QualityTrend{Direction: TrendStable},
	}
	if len(window) >= 4 {
		half := len(window) / 2
		older := overall(components(window[:half]))
		recent := overall(components(window[half:]))
		s.Trend.Delta = recent - older
		switch {
		case s.Trend.Delta > trendBand:
			s.Trend.Direction = TrendImproving
		case s.Trend.Delta < -trendBand:
			s.Trend.Direction = TrendDeclining
		}
	}
	return s
}

func overall(c model.QualityComponents) float64 {
	return clamp01(weightResolution*c.Resolution +
		weightSatisfaction*c.Satisfaction +
		weightResponseTime*c.ResponseTime +
		weightReliability*c.Reliability)
}

func components(window []model.SessionOutcome) model.QualityComponents {
	var completed, resolved, rated int
	var sat, rt float64
	for _, o := range window {
		if o.Completed {
			completed++
			if o.Resolved {
				resolved++
			}
		}
		if o.Satisfaction > 0 {
			rated++
			sat += (o.Satisfaction - 1) / 4
		}
		rt += ResponseTimeScore(o.ResponseTime)
	}
	c := model.QualityComponents{Satisfaction: priorScore}
	if completed > 0 {
		c.Resolution = float64(resolved) / float64(completed)
	}
	if rated > 0 {
		c.Satisfaction = sat / float64(rated)
	}
	if n := len(window); n > 0 {
		c.ResponseTime = rt / float64(n)
		c.Reliability = float64(completed) / float64(n)
	}
	return c
}

// ResponseTimeScore maps a first-response delay onto [0,1]: 1 up to 30s,
// 0 from 5 minutes, linear in between.
func ResponseTimeScore(d time.Duration) float64 {
	switch {
	case d <= fastResponse:
		return 1
	case d >= slowResponse:
		return 0
	default:
		return 1 - float64(d-fastResponse)/float64(slowResponse-fastResponse)
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
