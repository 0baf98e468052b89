package workload

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/crisismatch/core/events"
	"github.com/kilianp07/crisismatch/core/logger"
	"github.com/kilianp07/crisismatch/core/model"
	"github.com/kilianp07/crisismatch/internal/eventbus"
)

// Alert kinds raised by the monitor.
const (
	AlertCriticalBurnout = "critical_burnout"
	AlertCoverageGap     = "coverage_gap"
)

// Intervener applies the monitor's interventions.
type Intervener interface {
	ForceBreak(ctx context.Context, responderID, reason string) error
	RequestSupervisorReview(ctx context.Context, responderID, reason string) error
}

// SweepReport summarises one monitoring pass.
type SweepReport struct {
	Assessed  int
	High      []string
	Critical  []string
	Available int
	Failed    int
}

// Monitor periodically re-assesses every active responder independently of
// the match path. Interventions fire once per escalation, not on every sweep.
type Monitor struct {
	assessor  *Assessor
	status    StatusSource
	intervene Intervener
	bus       eventbus.EventBus
	log       logger.Logger

	mu       sync.Mutex
	levels   map[string]model.RiskLevel
	shortage bool
}

// NewMonitor builds a Monitor. intervene and bus may be nil.
func NewMonitor(a *Assessor, status StatusSource, intervene Intervener, bus eventbus.EventBus, log logger.Logger) *Monitor {
	return &Monitor{
		assessor:  a,
		status:    status,
		intervene: intervene,
		bus:       bus,
		log:       log,
		levels:    make(map[string]model.RiskLevel),
	}
}

// Run sweeps every interval until ctx is canceled.
func (m *Monitor) Run(ctx context.Context) {
	t := time.NewTicker(m.assessor.cfg.MonitorInterval())
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			rep := m.Sweep(ctx)
			m.log.Debugw("workload sweep", map[string]any{
				"assessed": rep.Assessed, "high": len(rep.High), "critical": len(rep.Critical),
				"available": rep.Available, "failed": rep.Failed,
			})
		}
	}
}

func active(s model.Status) bool {
	switch s {
	case model.StatusOffline, model.StatusBreak:
		return false
	}
	return true
}

// Sweep re-assesses all active responders once.
func (m *Monitor) Sweep(ctx context.Context) SweepReport {
	var rep SweepReport
	for _, st := range m.status.Snapshot() {
		if ctx.Err() != nil {
			return rep
		}
		if (st.Status == model.StatusOnline || st.Status == model.StatusEmergencyOnly) && st.HasCapacity() {
			rep.Available++
		}
		if !active(st.Status) && st.CurrentSessions == 0 {
			m.forget(st.ID)
			continue
		}
		m.assessor.invalidate(ctx, st.ID)
		as, err := m.assessor.Assess(ctx, st.ID)
		if err != nil {
			rep.Failed++
			m.log.Warnf("workload sweep: assess %s: %v", st.ID, err)
			continue
		}
		rep.Assessed++
		switch as.Burnout.Level {
		case model.RiskCritical:
			rep.Critical = append(rep.Critical, st.ID)
		case model.RiskHigh:
			rep.High = append(rep.High, st.ID)
		}
		m.react(ctx, as)
	}
	m.checkCoverage(rep.Available)
	return rep
}

func (m *Monitor) forget(id string) {
	m.mu.Lock()
	delete(m.levels, id)
	m.mu.Unlock()
}

func (m *Monitor) react(ctx context.Context, as model.WorkloadAssessment) {
	lvl := as.Burnout.Level
	m.mu.Lock()
	prev, seen := m.levels[as.ResponderID]
	m.levels[as.ResponderID] = lvl
	m.mu.Unlock()
	if seen && prev >= lvl {
		return
	}
	now := m.assessor.now()
	if lvl >= model.RiskHigh {
		m.publish(events.BurnoutEvent{ResponderID: as.ResponderID, Level: lvl.String(), Score: as.Burnout.Score, At: now})
	}
	switch lvl {
	case model.RiskCritical:
		msg := fmt.Sprintf("burnout score %.2f for %s", as.Burnout.Score, as.ResponderID)
		m.publish(events.AlertEvent{
			Kind: AlertCriticalBurnout, Severity: events.SeverityCritical,
			ResponderID: as.ResponderID, Message: msg, At: now,
		})
		if m.intervene != nil {
			if err := m.intervene.ForceBreak(ctx, as.ResponderID, msg); err != nil {
				m.log.Errorf("force break %s: %v", as.ResponderID, err)
			}
		}
	case model.RiskHigh:
		if m.intervene != nil {
			if err := m.intervene.RequestSupervisorReview(ctx, as.ResponderID, fmt.Sprintf("burnout score %.2f", as.Burnout.Score)); err != nil {
				m.log.Errorf("supervisor review %s: %v", as.ResponderID, err)
			}
		}
	}
}

func (m *Monitor) checkCoverage(available int) {
	floor := m.assessor.cfg.MinAvailableResponders
	m.mu.Lock()
	was := m.shortage
	m.shortage = floor > 0 && available < floor
	short := m.shortage
	m.mu.Unlock()
	if !short || was {
		return
	}
	sev := events.SeverityWarning
	if available == 0 {
		sev = events.SeverityCritical
	}
	m.publish(events.AlertEvent{
		Kind:     AlertCoverageGap,
		Severity: sev,
		Message:  fmt.Sprintf("%d responder(s) available, minimum %d", available, floor),
		At:       m.assessor.now(),
	})
}

func (m *Monitor) publish(ev eventbus.Event) {
	if m.bus != nil {
		m.bus.Publish(ev)
	}
}
