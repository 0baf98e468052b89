// Package matching assigns crisis sessions to responders. The Engine pulls
// candidates from the availability registry, scores them against the request
// using workload, quality and cultural signals, balances load and reserves
// the best candidate. Requests that cannot be matched in time resolve to a
// fallback decision; only invalid criteria are returned as errors.
package matching

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/crisismatch/core/availability"
	"github.com/kilianp07/crisismatch/core/emergency"
	"github.com/kilianp07/crisismatch/core/events"
	"github.com/kilianp07/crisismatch/core/logger"
	"github.com/kilianp07/crisismatch/core/matching/logging"
	"github.com/kilianp07/crisismatch/core/metrics"
	"github.com/kilianp07/crisismatch/core/model"
	"github.com/kilianp07/crisismatch/core/monitoring"
	"github.com/kilianp07/crisismatch/core/profile"
	"github.com/kilianp07/crisismatch/internal/eventbus"
)

// Registry is the availability view used by the engine.
type Registry interface {
	GetAvailable(f availability.Filter) []model.ResponderStatus
	Reserve(id string) (model.ResponderStatus, error)
	Release(id string) (model.ResponderStatus, error)
	StaleAfter() time.Duration
}

// Workload assesses burnout and tracks session activity.
type Workload interface {
	Assess(ctx context.Context, responderID string) (model.WorkloadAssessment, error)
	RecordSessionStart(ctx context.Context, responderID, sessionID string, at time.Time)
	RecordSessionEnd(ctx context.Context, responderID, sessionID string, at time.Time)
	RecordDemand(at time.Time)
}

// Quality scores responders from past session outcomes.
type Quality interface {
	Score(ctx context.Context, responderID string) (model.QualityScore, error)
	BelowFloor(s model.QualityScore) bool
	Record(ctx context.Context, o model.SessionOutcome) error
}

// Compatibility scores language and cultural fit.
type Compatibility interface {
	ComprehensiveMatch(ctx context.Context, responderID string, req model.MatchRequest) (model.CompatibilityMatch, error)
}

// EmergencyPool serves emergency-tier requests from the standby roster.
type EmergencyPool interface {
	GetEmergencyResponder(ctx context.Context, req model.MatchRequest, exclude ...string) (emergency.Pick, error)
}

type assignment struct {
	responderID string
	start       time.Time
}

// Engine orchestrates matching. It is safe for concurrent use.
type Engine struct {
	cfg       Config
	registry  Registry
	profiles  profile.Store
	workload  Workload
	quality   Quality
	compat    Compatibility
	pool      EmergencyPool
	fallbacks map[model.FallbackStrategy]Fallback

	log     logger.Logger
	sink    metrics.MetricsSink
	bus     eventbus.EventBus
	store   logging.Store
	monitor monitoring.Monitor
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]assignment
	assessed map[string]assessedAt
}

// assessedAt is the last workload assessment that arrived in time.
type assessedAt struct {
	as model.WorkloadAssessment
	at time.Time
}

// lastAssessmentMaxAge bounds how old a remembered assessment may be when a
// fresh lookup fails.
const lastAssessmentMaxAge = 5 * time.Minute

// NewEngine creates an engine. registry and profiles are required; a nil
// workload, quality, compat or pool collaborator disables that signal.
func NewEngine(cfg Config, registry Registry, profiles profile.Store, wl Workload, q Quality, compat Compatibility, pool EmergencyPool, log logger.Logger) (*Engine, error) {
	if registry == nil || profiles == nil || log == nil {
		return nil, fmt.Errorf("matching: nil parameter provided to NewEngine")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fb, err := NewFallbacks(cfg.Fallbacks)
	if err != nil {
		return nil, err
	}
	return &Engine{
		cfg:       cfg,
		registry:  registry,
		profiles:  profiles,
		workload:  wl,
		quality:   q,
		compat:    compat,
		pool:      pool,
		fallbacks: fb,
		log:       log,
		sink:      metrics.NopSink{},
		monitor:   monitoring.NopMonitor{},
		now:       time.Now,
		sessions:  make(map[string]assignment),
		assessed:  make(map[string]assessedAt),
	}, nil
}

// SetMetricsSink configures where match decisions are recorded.
func (e *Engine) SetMetricsSink(s metrics.MetricsSink) {
	if s != nil {
		e.sink = s
	}
}

// SetEventBus configures the bus MatchEvent and AlertEvent are published on.
func (e *Engine) SetEventBus(b eventbus.EventBus) { e.bus = b }

// SetDecisionLog configures the store used to persist decisions.
func (e *Engine) SetDecisionLog(s logging.Store) { e.store = s }

// SetMonitor configures panic and error reporting.
func (e *Engine) SetMonitor(m monitoring.Monitor) {
	if m != nil {
		e.monitor = m
	}
}

// SetClock replaces the time source.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// trace collects what happened during one FindMatch for the decision log.
type trace struct {
	mu         sync.Mutex
	candidates []string
	excluded   map[string]string
}

func (t *trace) exclude(id, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.excluded == nil {
		t.excluded = make(map[string]string)
	}
	t.excluded[id] = reason
}

// FindMatch matches a request to a responder or resolves it to a fallback.
// The returned error is non-nil only for invalid criteria.
func (e *Engine) FindMatch(ctx context.Context, req model.MatchRequest) (out model.Outcome, err error) {
	if err := req.Validate(); err != nil {
		return model.Outcome{}, err
	}
	start := e.now()
	budget := req.Deadline()
	// A twentieth of the budget is kept for persisting the decision.
	until := time.Now().Add(budget - budget/20)
	tr := &trace{}
	defer func() {
		if r := recover(); r != nil {
			perr := fmt.Errorf("match %s: panic: %v", req.SessionID, r)
			e.monitor.CaptureException(perr, map[string]string{"session_id": req.SessionID, "urgency": string(req.Urgency)})
			e.log.Errorf("%v", perr)
			out, err = e.fallback(ctx, req, nil, "internal error", start, until, tr), nil
		}
		e.finish(req, out, start, tr)
	}()

	if e.workload != nil {
		e.workload.RecordDemand(start)
	}
	ctx, cancel := context.WithTimeout(ctx, e.cfg.scoringBudget(budget))
	defer cancel()

	if req.Urgency == model.UrgencyEmergency && e.pool != nil {
		if m, ok := e.emergencyMatch(ctx, req, model.PathEmergency, start, tr); ok {
			return model.Outcome{Result: m}, nil
		}
		e.log.Warnf("emergency pool could not serve %s, scoring all responders", req.SessionID)
	}

	cands := e.candidates(ctx, req, tr)
	if len(cands) == 0 {
		reason := model.ErrNoAvailableResponders.Error()
		if ctx.Err() != nil {
			reason = model.ErrMatchTimeout.Error()
		}
		return e.fallback(ctx, req, nil, reason, start, until, tr), nil
	}
	e.enrichAll(ctx, req, cands)
	ranked := e.rank(req, cands, tr)
	if ctx.Err() != nil {
		return e.fallback(ctx, req, ranked, model.ErrMatchTimeout.Error(), start, until, tr), nil
	}
	if m, ok := e.reserveBest(ctx, req, ranked, e.cfg.MinViableScore, model.PathScored, start, tr); ok {
		return model.Outcome{Result: m}, nil
	}

	reason := fmt.Sprintf("no candidate reached min viable score %.2f", e.cfg.MinViableScore)
	switch {
	case ctx.Err() != nil:
		reason = model.ErrMatchTimeout.Error()
	case len(ranked) == 0:
		reason = model.ErrNoAvailableResponders.Error()
	case ranked[0].score >= e.cfg.MinViableScore:
		reason = model.ErrCapacityExceeded.Error()
	}
	return e.fallback(ctx, req, ranked, reason, start, until, tr), nil
}

// candidates returns available responders passing the hard filters.
func (e *Engine) candidates(ctx context.Context, req model.MatchRequest, tr *trace) []*candidate {
	statuses := e.registry.GetAvailable(availability.Filter{IncludeEmergencyOnly: req.Urgency == model.UrgencyEmergency})
	out := make([]*candidate, 0, len(statuses))
	for _, st := range statuses {
		if ctx.Err() != nil {
			break
		}
		p, err := e.profiles.Get(ctx, st.ID)
		if err != nil {
			if !errors.Is(err, model.ErrResponderNotFound) && !errors.Is(err, model.ErrDependencyUnavailable) {
				err = fmt.Errorf("%w: %v", model.ErrDependencyUnavailable, err)
			}
			e.log.Warnf("candidate %s skipped: %v", st.ID, err)
			tr.exclude(st.ID, "profile unavailable")
			continue
		}
		if !p.HasAllSpecialties(req.RequiredSpecialties) {
			tr.exclude(st.ID, "missing required specialty")
			continue
		}
		if !p.SatisfiesLanguages(req.RequiredLanguages) {
			tr.exclude(st.ID, "missing required language")
			continue
		}
		out = append(out, &candidate{status: st, profile: p})
		tr.candidates = append(tr.candidates, st.ID)
	}
	candidatesScored.WithLabelValues(string(req.Urgency)).Observe(float64(len(out)))
	return out
}

// enrichAll fetches workload, quality and compatibility for every candidate
// concurrently. Lookups that fail or time out leave the field nil.
func (e *Engine) enrichAll(ctx context.Context, req model.MatchRequest, cands []*candidate) {
	timeout := e.cfg.componentTimeout()
	var wg sync.WaitGroup
	for _, c := range cands {
		if e.workload != nil {
			wg.Add(1)
			go func(c *candidate) {
				defer wg.Done()
				as, err := withTimeout(ctx, timeout, func(ctx context.Context) (model.WorkloadAssessment, error) {
					return e.workload.Assess(ctx, c.status.ID)
				})
				if err != nil {
					e.degraded(CompWorkload, c.status.ID, err)
					return
				}
				e.remember(as)
				c.workload = &as
			}(c)
		}
		if e.quality != nil {
			wg.Add(1)
			go func(c *candidate) {
				defer wg.Done()
				qs, err := withTimeout(ctx, timeout, func(ctx context.Context) (model.QualityScore, error) {
					return e.quality.Score(ctx, c.status.ID)
				})
				if err != nil {
					e.degraded(CompPerformance, c.status.ID, err)
					return
				}
				c.quality = &qs
			}(c)
		}
		if e.compat != nil {
			wg.Add(1)
			go func(c *candidate) {
				defer wg.Done()
				cm, err := withTimeout(ctx, timeout, func(ctx context.Context) (model.CompatibilityMatch, error) {
					return e.compat.ComprehensiveMatch(ctx, c.status.ID, req)
				})
				if err != nil {
					e.degraded(CompCultural, c.status.ID, err)
					return
				}
				c.compat = &cm
			}(c)
		}
	}
	wg.Wait()
}

func (e *Engine) degraded(component, id string, err error) {
	if errors.Is(err, model.ErrMatchTimeout) {
		componentTimeouts.WithLabelValues(component).Inc()
	}
	e.log.Warnf("%s lookup for %s degraded: %v", component, id, err)
}

// rank scores and balances the candidates, dropping critical burnout for
// non-emergency requests, and returns them best first.
func (e *Engine) rank(req model.MatchRequest, cands []*candidate, tr *trace) []*candidate {
	w := e.cfg.weights(req.Urgency)
	now := e.now()
	stale := e.registry.StaleAfter()
	out := cands[:0]
	for _, c := range cands {
		if req.Urgency != model.UrgencyEmergency && e.workload != nil && c.workload == nil {
			as, ok := e.lastAssessment(c.status.ID)
			if !ok {
				tr.exclude(c.status.ID, "burnout risk unknown")
				continue
			}
			c.workload = &as
			c.adjust(CompWorkload, 0, "last known workload assessment")
		}
		if lvl, _, ok := c.burnout(); ok && lvl == model.RiskCritical && req.Urgency != model.UrgencyEmergency {
			tr.exclude(c.status.ID, "critical burnout risk")
			continue
		}
		computeComponents(c, req, now, stale)
		c.score = composite(c.components, w)
		below := c.quality != nil && e.quality.BelowFloor(*c.quality)
		if !balance(c, req, below) {
			tr.exclude(c.status.ID, "quality below floor")
			continue
		}
		out = append(out, c)
	}
	rank(out)
	return out
}

// reserveBest reserves the best ranked candidate scoring at least minScore,
// moving on to the next one when a reservation fails.
func (e *Engine) reserveBest(ctx context.Context, req model.MatchRequest, ranked []*candidate, minScore float64, path model.MatchPath, start time.Time, tr *trace) (*model.MatchResult, bool) {
	w := e.cfg.weights(req.Urgency)
	attempts := 0
	for i, c := range ranked {
		if c.score < minScore || attempts >= e.cfg.attempts() || ctx.Err() != nil {
			break
		}
		attempts++
		if _, err := e.registry.Reserve(c.status.ID); err != nil {
			if errors.Is(err, model.ErrCapacityExceeded) {
				reserveConflicts.Inc()
			}
			e.log.Warnf("reserve %s for %s: %v", c.status.ID, req.SessionID, err)
			tr.exclude(c.status.ID, "reservation failed")
			continue
		}
		m := e.newResult(req, c.status.ID, c.score, breakdown(c, w), path, start)
		for j, alt := range ranked {
			if len(m.Alternatives()) >= e.cfg.Alternatives {
				break
			}
			if j != i {
				m.AddAlternative(model.Alternative{ResponderID: alt.status.ID, Score: round3(alt.score)})
			}
		}
		e.assign(ctx, req.SessionID, c.status.ID)
		return m, true
	}
	return nil, false
}

// emergencyMatch reserves a responder from the emergency pool without full
// scoring. Non-emergency requests never get a critical burnout responder.
func (e *Engine) emergencyMatch(ctx context.Context, req model.MatchRequest, path model.MatchPath, start time.Time, tr *trace) (*model.MatchResult, bool) {
	if e.pool == nil {
		return nil, false
	}
	var exclude []string
	for i := 0; i < e.cfg.attempts(); i++ {
		pick, err := e.pool.GetEmergencyResponder(ctx, req, exclude...)
		if err != nil {
			e.log.Warnf("emergency pool for %s: %v", req.SessionID, err)
			return nil, false
		}
		id := pick.Status.ID
		if req.Urgency != model.UrgencyEmergency && e.criticalBurnout(ctx, id) {
			tr.exclude(id, "critical burnout risk")
			exclude = append(exclude, id)
			continue
		}
		if _, err := e.registry.Reserve(id); err != nil {
			if errors.Is(err, model.ErrCapacityExceeded) {
				reserveConflicts.Inc()
			}
			e.log.Warnf("reserve %s from emergency pool: %v", id, err)
			tr.exclude(id, "reservation failed")
			exclude = append(exclude, id)
			continue
		}
		avail := availabilityScore(pick.Status, e.now(), e.registry.StaleAfter())
		spec := 1.0
		if len(req.RequiredSpecialties) > 0 && !pick.SpecialtyMatch {
			spec = 0.5
		}
		b := model.ScoreBreakdown{
			Components: map[string]float64{CompAvailability: round3(avail), CompEmergency: 1, CompSpecialty: spec},
			Weights:    map[string]float64{CompAvailability: 0.5, CompEmergency: 0.3, CompSpecialty: 0.2},
			Adjustments: []model.Adjustment{{
				Factor: CompEmergency,
				Reason: "served from emergency pool tier " + pick.Tier,
			}},
		}
		score := 0.5*avail + 0.3 + 0.2*spec
		tr.candidates = append(tr.candidates, id)
		m := e.newResult(req, id, score, b, path, start)
		e.assign(ctx, req.SessionID, id)
		return m, true
	}
	return nil, false
}

// criticalBurnout reports whether id must be kept off a non-emergency
// session. A responder whose risk cannot be established counts as critical.
func (e *Engine) criticalBurnout(ctx context.Context, id string) bool {
	if e.workload == nil {
		return false
	}
	as, err := withTimeout(ctx, e.cfg.componentTimeout(), func(ctx context.Context) (model.WorkloadAssessment, error) {
		return e.workload.Assess(ctx, id)
	})
	if err != nil {
		e.degraded(CompWorkload, id, err)
		last, ok := e.lastAssessment(id)
		if !ok {
			return true
		}
		as = last
	} else {
		e.remember(as)
	}
	return as.Burnout.Level == model.RiskCritical
}

func (e *Engine) remember(as model.WorkloadAssessment) {
	if as.ResponderID == "" {
		return
	}
	e.mu.Lock()
	e.assessed[as.ResponderID] = assessedAt{as: as, at: e.now()}
	e.mu.Unlock()
}

// lastAssessment returns the remembered assessment for id if it is recent.
func (e *Engine) lastAssessment(id string) (model.WorkloadAssessment, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.assessed[id]
	if !ok || e.now().Sub(a.at) > lastAssessmentMaxAge {
		return model.WorkloadAssessment{}, false
	}
	return a.as, true
}

func (e *Engine) newResult(req model.MatchRequest, responderID string, score float64, b model.ScoreBreakdown, path model.MatchPath, start time.Time) *model.MatchResult {
	now := e.now()
	score = round3(clamp01(score))
	return &model.MatchResult{
		MatchID:        uuid.NewString(),
		SessionID:      req.SessionID,
		ResponderID:    responderID,
		MatchScore:     score,
		Confidence:     model.ConfidenceFor(score),
		Breakdown:      b,
		ResponseTimeMs: now.Sub(start).Milliseconds(),
		Path:           path,
		CreatedAt:      now,
	}
}

func (e *Engine) assign(ctx context.Context, sessionID, responderID string) {
	now := e.now()
	e.mu.Lock()
	e.sessions[sessionID] = assignment{responderID: responderID, start: now}
	e.mu.Unlock()
	if e.workload != nil {
		e.workload.RecordSessionStart(context.WithoutCancel(ctx), responderID, sessionID, now)
	}
}

// fallback applies the request's fallback strategy. It is detached from the
// caller so an expired scoring window still yields a decision, and it ends
// by until, the request's overall deadline.
func (e *Engine) fallback(ctx context.Context, req model.MatchRequest, ranked []*candidate, reason string, start, until time.Time, tr *trace) model.Outcome {
	deadline := time.Now().Add(e.cfg.fallbackTimeout())
	if until.Before(deadline) {
		deadline = until
	}
	fctx, cancel := context.WithDeadline(context.WithoutCancel(ctx), deadline)
	defer cancel()

	strategy := req.Strategy()
	fc := FallbackContext{Request: req, Reason: reason, Now: e.now()}
	for _, c := range ranked {
		fc.Ranked = append(fc.Ranked, model.Alternative{ResponderID: c.status.ID, Score: round3(c.score)})
	}
	if len(ranked) > 0 {
		fc.Reserve = func(ctx context.Context) (*model.MatchResult, bool) {
			return e.reserveBest(ctx, req, ranked, 0, model.PathFallback, start, tr)
		}
	}
	if e.pool != nil {
		fc.Emergency = func(ctx context.Context) (*model.MatchResult, bool) {
			return e.emergencyMatch(ctx, req, model.PathFallback, start, tr)
		}
	}
	d := e.fallbacks[strategy].Apply(fctx, fc)
	fallbacksApplied.WithLabelValues(string(strategy)).Inc()
	if d.Match == nil {
		e.alertUnmatched(req, d)
	}
	return model.Outcome{Fallback: &d}
}

// Alert kinds raised by the engine.
const AlertUnmatched = "unmatched_request"

func (e *Engine) alertUnmatched(req model.MatchRequest, d model.FallbackDecision) {
	if e.bus == nil {
		return
	}
	sev := events.SeverityWarning
	if req.Urgency.Rank() >= model.UrgencyHigh.Rank() {
		sev = events.SeverityCritical
	}
	e.bus.Publish(events.AlertEvent{
		Kind:      AlertUnmatched,
		Severity:  sev,
		SessionID: req.SessionID,
		Message:   fmt.Sprintf("%s session unmatched (%s): %s", req.Urgency, d.Strategy, d.Reason),
		At:        e.now(),
	})
}

// finish publishes, records and persists the decision.
func (e *Engine) finish(req model.MatchRequest, out model.Outcome, start time.Time, tr *trace) {
	now := e.now()
	lat := now.Sub(start)
	matchLatency.WithLabelValues(string(req.Urgency)).Observe(lat.Seconds())

	ev := events.MatchEvent{SessionID: req.SessionID, Urgency: req.Urgency, Latency: lat, At: now}
	rec := logging.DecisionRecord{
		Timestamp: now,
		SessionID: req.SessionID,
		Urgency:   req.Urgency,
		Severity:  req.Severity,
		LatencyMs: lat.Milliseconds(),
	}
	if m, ok := out.Matched(); ok {
		ev.ResponderID, ev.Score = m.ResponderID, m.MatchScore
		rec.MatchID, rec.ResponderID, rec.Score, rec.Confidence = m.MatchID, m.ResponderID, m.MatchScore, m.Confidence
		b := m.Breakdown
		rec.Breakdown = &b
	}
	switch {
	case out.Result != nil:
		ev.Path = out.Result.Path
	case out.Fallback != nil:
		ev.Path = model.PathFallback
		ev.Strategy, ev.Reason = out.Fallback.Strategy, out.Fallback.Reason
		rec.Strategy, rec.Reason = out.Fallback.Strategy, out.Fallback.Reason
	}
	rec.Path = ev.Path
	tr.mu.Lock()
	rec.Candidates = append([]string(nil), tr.candidates...)
	if len(tr.excluded) > 0 {
		rec.Excluded = make(map[string]string, len(tr.excluded))
		for k, v := range tr.excluded {
			rec.Excluded[k] = v
		}
	}
	tr.mu.Unlock()

	if e.bus != nil {
		e.bus.Publish(ev)
	}
	if err := e.sink.RecordMatch(metrics.MatchRecord{
		SessionID:   req.SessionID,
		Urgency:     string(req.Urgency),
		ResponderID: ev.ResponderID,
		Path:        string(ev.Path),
		Strategy:    string(ev.Strategy),
		Score:       ev.Score,
		Latency:     lat,
		Time:        now,
	}); err != nil {
		e.log.Errorf("metrics error: %v", err)
	}
	if e.store != nil {
		if err := e.store.Append(context.Background(), rec); err != nil {
			e.log.Errorf("decision log: %v", err)
		}
	}
	e.log.Debugw("match decision", map[string]any{
		"session_id":   req.SessionID,
		"urgency":      string(req.Urgency),
		"path":         string(ev.Path),
		"responder_id": ev.ResponderID,
		"score":        ev.Score,
		"latency_ms":   lat.Milliseconds(),
		"candidates":   len(rec.Candidates),
	})
	e.log.Infof("session %s (%s) resolved via %s to %q in %s", req.SessionID, req.Urgency, ev.Path, ev.ResponderID, lat)
}

// ActiveSession returns the responder assigned to a session.
func (e *Engine) ActiveSession(sessionID string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.sessions[sessionID]
	return a.responderID, ok
}

// CompleteSession releases the responder of a finished session and records
// its outcome for workload and quality tracking.
func (e *Engine) CompleteSession(ctx context.Context, o model.SessionOutcome) error {
	if o.SessionID == "" {
		return fmt.Errorf("%w: session id is required", model.ErrInvalidCriteria)
	}
	e.mu.Lock()
	a, ok := e.sessions[o.SessionID]
	delete(e.sessions, o.SessionID)
	e.mu.Unlock()
	switch {
	case ok && o.ResponderID == "":
		o.ResponderID = a.responderID
	case !ok && o.ResponderID == "":
		return fmt.Errorf("session %s: %w", o.SessionID, model.ErrResponderNotFound)
	}
	if o.EndedAt.IsZero() {
		o.EndedAt = e.now()
	}

	if _, err := e.registry.Release(o.ResponderID); err != nil {
		e.log.Warnf("release %s after session %s: %v", o.ResponderID, o.SessionID, err)
	}
	if e.workload != nil {
		e.workload.RecordSessionEnd(ctx, o.ResponderID, o.SessionID, o.EndedAt)
	}
	if e.quality != nil {
		if err := e.quality.Record(ctx, o); err != nil {
			return fmt.Errorf("record outcome of %s: %w", o.SessionID, err)
		}
	}
	return nil
}

// withTimeout runs fn with its own deadline and returns ErrMatchTimeout when
// it does not finish in time. Panics in fn become errors.
func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := fn(ctx)
		ch <- result{v: v, err: err}
	}()
	select {
	case r := <-ch:
		if r.err != nil && ctx.Err() != nil {
			return r.v, fmt.Errorf("%w: %v", model.ErrMatchTimeout, r.err)
		}
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w: %v", model.ErrMatchTimeout, ctx.Err())
	}
}
