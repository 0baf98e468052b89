// Package workload assesses responder workload and burnout risk, validates
// proposed shifts and produces capacity plans.
package workload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/crisismatch/core/cache"
	"github.com/kilianp07/crisismatch/core/events"
	"github.com/kilianp07/crisismatch/core/logger"
	"github.com/kilianp07/crisismatch/core/model"
	"github.com/kilianp07/crisismatch/core/profile"
)

// StatusSource exposes the live session load of responders.
type StatusSource interface {
	Get(id string) (model.ResponderStatus, error)
	Snapshot() []model.ResponderStatus
}

// RatingSource returns the recent average caller rating (1-5).
type RatingSource interface {
	RecentRating(responderID string) (float64, bool)
}

// Assessor computes workload assessments. Results are cached per responder
// and invalidated whenever the responder's activity changes.
type Assessor struct {
	cfg      Config
	profiles profile.Store
	status   StatusSource
	ratings  RatingSource
	cache    cache.Cache[model.WorkloadAssessment]
	ledger   *ledger
	demand   *demandLog
	log      logger.Logger
	now      func() time.Time

	locs sync.Map
}

// NewAssessor builds an Assessor. A nil cache selects an in-memory one.
func NewAssessor(cfg Config, profiles profile.Store, status StatusSource, c cache.Cache[model.WorkloadAssessment], log logger.Logger) *Assessor {
	if c == nil {
		c = cache.NewMemory[model.WorkloadAssessment]()
	}
	return &Assessor{
		cfg:      cfg,
		profiles: profiles,
		status:   status,
		cache:    c,
		ledger:   newLedger(),
		demand:   newDemandLog(cfg.HistoryWeeks),
		log:      log,
		now:      time.Now,
	}
}

// SetRatings installs the source used for the performance factor.
func (a *Assessor) SetRatings(r RatingSource) { a.ratings = r }

// SetClock replaces the time source.
func (a *Assessor) SetClock(now func() time.Time) { a.now = now }

// Config returns the assessor configuration.
func (a *Assessor) Config() Config { return a.cfg }

func (a *Assessor) invalidate(ctx context.Context, id string) { a.cache.Delete(ctx, id) }

// RecordSessionStart marks a session as active for the responder.
func (a *Assessor) RecordSessionStart(ctx context.Context, responderID, sessionID string, at time.Time) {
	a.ledger.startSession(responderID, sessionID, at)
	a.invalidate(ctx, responderID)
}

// RecordSessionEnd closes a session opened with RecordSessionStart.
func (a *Assessor) RecordSessionEnd(ctx context.Context, responderID, sessionID string, at time.Time) {
	if !a.ledger.endSession(responderID, sessionID, at) {
		a.log.Warnf("workload: session %s was not open for %s", sessionID, responderID)
	}
	a.invalidate(ctx, responderID)
}

// RecordBreak resets the consecutive-session counter.
func (a *Assessor) RecordBreak(ctx context.Context, responderID string, at time.Time) {
	a.ledger.recordBreak(responderID, at)
	a.invalidate(ctx, responderID)
}

// RecordShiftEnd stores the end of a worked shift for rest checks.
func (a *Assessor) RecordShiftEnd(ctx context.Context, responderID string, at time.Time) {
	a.ledger.recordShiftEnd(responderID, at)
	a.invalidate(ctx, responderID)
}

// RecordWellness stores the latest self-reported wellness check.
func (a *Assessor) RecordWellness(ctx context.Context, responderID string, w model.WellnessCheck) error {
	if w.BurnoutScore < 0 || w.BurnoutScore > 1 {
		return fmt.Errorf("%w: burnout score %.2f outside [0,1]", model.ErrInvalidCriteria, w.BurnoutScore)
	}
	if w.StressLevel < 0 || w.StressLevel > 10 {
		return fmt.Errorf("%w: stress level %.1f outside [0,10]", model.ErrInvalidCriteria, w.StressLevel)
	}
	if w.At.IsZero() {
		w.At = a.now()
	}
	a.ledger.recordWellness(responderID, w)
	a.invalidate(ctx, responderID)
	return nil
}

// Watch consumes availability events until ctx is done or ch closes. Breaks
// reset the consecutive counter, going offline ends the shift, and every
// event invalidates the cached assessment.
func (a *Assessor) Watch(ctx context.Context, ch <-chan events.AvailabilityChanged) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.Previous != ev.Current {
				switch ev.Current {
				case model.StatusBreak:
					a.ledger.recordBreak(ev.ResponderID, ev.At)
				case model.StatusOffline:
					a.ledger.recordShiftEnd(ev.ResponderID, ev.At)
				}
			}
			a.invalidate(ctx, ev.ResponderID)
		}
	}
}

func (a *Assessor) location(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	if v, ok := a.locs.Load(tz); ok {
		return v.(*time.Location)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		a.log.Warnf("workload: unknown timezone %q, using UTC", tz)
		loc = time.UTC
	}
	a.locs.Store(tz, loc)
	return loc
}

// limitsFor merges per-responder overrides into the defaults.
func (a *Assessor) limitsFor(p model.ResponderProfile, st model.ResponderStatus) model.CapacityLimits {
	l := model.CapacityLimits{
		MaxConcurrentSessions:  st.MaxConcurrentSessions,
		MaxDailyHours:          a.cfg.MaxDailyHours,
		MaxWeeklyHours:         a.cfg.MaxWeeklyHours,
		MaxConsecutiveSessions: a.cfg.MaxConsecutiveSessions,
		MandatoryBreakMinutes:  a.cfg.MandatoryBreakMinutes,
		MinRestHours:           a.cfg.MinRestHours,
	}
	if l.MaxConcurrentSessions <= 0 {
		l.MaxConcurrentSessions = p.MaxConcurrentSessions
	}
	o := p.Limits
	if o.MaxDailyHours > 0 {
		l.MaxDailyHours = o.MaxDailyHours
	}
	if o.MaxWeeklyHours > 0 {
		l.MaxWeeklyHours = o.MaxWeeklyHours
	}
	if o.MaxConsecutiveSessions > 0 {
		l.MaxConsecutiveSessions = o.MaxConsecutiveSessions
	}
	if o.MandatoryBreakMinutes > 0 {
		l.MandatoryBreakMinutes = o.MandatoryBreakMinutes
	}
	if o.MinRestHours > 0 {
		l.MinRestHours = o.MinRestHours
	}
	return l
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func startOfWeek(t time.Time) time.Time {
	day := startOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// Assess returns the workload assessment of a responder. Profile store
// failures degrade to default limits instead of failing the assessment.
func (a *Assessor) Assess(ctx context.Context, responderID string) (model.WorkloadAssessment, error) {
	if cached, ok := a.cache.Get(ctx, responderID); ok {
		return cached, nil
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.assessTimeout())
	defer cancel()

	p, err := a.profiles.Get(ctx, responderID)
	switch {
	case errors.Is(err, model.ErrResponderNotFound):
		return model.WorkloadAssessment{}, err
	case err != nil:
		if ctx.Err() != nil {
			return model.WorkloadAssessment{}, fmt.Errorf("assess %s: %w", responderID, ctx.Err())
		}
		a.log.Warnf("workload: profile %s unavailable, using default limits: %v", responderID, err)
		p = model.ResponderProfile{ID: responderID}
	}

	var st model.ResponderStatus
	if a.status != nil {
		if s, err := a.status.Get(responderID); err == nil {
			st = s
		}
	}
	res := a.assess(p, st)
	if err := ctx.Err(); err != nil {
		return model.WorkloadAssessment{}, fmt.Errorf("assess %s: %w", responderID, err)
	}
	a.cache.Set(ctx, responderID, res, a.cfg.cacheTTL())
	return res, nil
}

func (a *Assessor) assess(p model.ResponderProfile, st model.ResponderStatus) model.WorkloadAssessment {
	tz := p.Location.Timezone
	if tz == "" {
		tz = st.Location.Timezone
	}
	now := a.now().In(a.location(tz))
	snap := a.ledger.snapshot(p.ID, now)
	limits := a.limitsFor(p, st)

	dayStart := startOfDay(now)
	load := model.CurrentLoad{
		ActiveSessions:      st.CurrentSessions,
		HoursToday:          snap.hoursBetween(dayStart, now),
		HoursThisWeek:       snap.hoursBetween(startOfWeek(now), now),
		ConsecutiveSessions: snap.consecutive,
	}
	if load.ActiveSessions < snap.active {
		load.ActiveSessions = snap.active
	}
	if since := snap.workingSince(dayStart); !since.IsZero() && snap.consecutive > 0 {
		load.MinutesSinceBreak = now.Sub(since).Minutes()
	}

	in := burnoutInput{load: load, limits: limits, wellness: snap.wellness, minRate: a.cfg.MinPerformanceRating}
	if a.ratings != nil {
		in.rating, in.rated = a.ratings.RecentRating(p.ID)
	}
	risk := scoreBurnout(in)

	util := model.Utilization{
		Sessions:    ratio(float64(load.ActiveSessions), float64(limits.MaxConcurrentSessions)),
		Daily:       ratio(load.HoursToday, limits.MaxDailyHours),
		Weekly:      ratio(load.HoursThisWeek, limits.MaxWeeklyHours),
		Consecutive: ratio(float64(load.ConsecutiveSessions), float64(limits.MaxConsecutiveSessions)),
	}
	return model.WorkloadAssessment{
		ResponderID:     p.ID,
		Current:         load,
		Limits:          limits,
		Utilization:     util,
		Burnout:         risk,
		Recommendations: recommendations(risk, load, limits),
		AssessedAt:      now,
	}
}
