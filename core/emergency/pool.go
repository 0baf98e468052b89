// Package emergency maintains the rotating standby roster used for
// emergency-tier requests.
package emergency

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/crisismatch/core/availability"
	"github.com/kilianp07/crisismatch/core/logger"
	"github.com/kilianp07/crisismatch/core/model"
	"github.com/kilianp07/crisismatch/core/profile"
)

// Roster tiers, in lookup order.
const (
	TierCritical   = "critical_response"
	TierSpecialist = "specialist_backup"
	TierSupervisor = "on_call_supervisors"
)

// Config tunes rotation and roster sizes.
type Config struct {
	RotationIntervalMinutes int `json:"rotation_interval_minutes"`
	OverlapMinutes          int `json:"overlap_minutes"`
	CriticalSize            int `json:"critical_size"`
	SpecialistSize          int `json:"specialist_size"`
	SupervisorSize          int `json:"supervisor_size"`
	LookupTimeoutSeconds    int `json:"lookup_timeout_seconds"`
}

// DefaultConfig rotates every 8 hours with a 30 minute handoff.
func DefaultConfig() Config {
	return Config{
		RotationIntervalMinutes: 480,
		OverlapMinutes:          30,
		CriticalSize:            3,
		SpecialistSize:          2,
		SupervisorSize:          2,
		LookupTimeoutSeconds:    30,
	}
}

func (c Config) interval() time.Duration {
	if c.RotationIntervalMinutes <= 0 {
		return 8 * time.Hour
	}
	return time.Duration(c.RotationIntervalMinutes) * time.Minute
}

func (c Config) lookupTimeout() time.Duration {
	if c.LookupTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.LookupTimeoutSeconds) * time.Second
}

// Availability is the subset of the registry used by the pool.
type Availability interface {
	GetAvailable(f availability.Filter) []model.ResponderStatus
}

// Manager owns the emergency roster. Rosters are disjoint; after a rotation
// the previous roster stays eligible until the overlap window closes.
type Manager struct {
	cfg      Config
	profiles profile.Store
	registry Availability
	log      logger.Logger
	now      func() time.Time

	mu           sync.RWMutex
	pool         model.EmergencyPool
	previous     model.EmergencyPool
	overlapUntil time.Time
	rotations    int
	lastAttempt  time.Time
}

// emptyRetry spaces out lazy rotations while no one is eligible.
const emptyRetry = time.Minute

// NewManager builds a Manager. The first rotation happens lazily.
func NewManager(cfg Config, profiles profile.Store, registry Availability, log logger.Logger) *Manager {
	return &Manager{cfg: cfg, profiles: profiles, registry: registry, log: log, now: time.Now}
}

// SetClock replaces the time source.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

// Pool returns the current roster.
func (m *Manager) Pool() model.EmergencyPool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyPool(m.pool)
}

func copyPool(p model.EmergencyPool) model.EmergencyPool {
	p.CriticalResponse = append([]string(nil), p.CriticalResponse...)
	p.SpecialistBackup = append([]string(nil), p.SpecialistBackup...)
	p.OnCallSupervisors = append([]string(nil), p.OnCallSupervisors...)
	return p
}

// pick takes n ids from sorted starting at a rotating offset.
func pick(sorted []string, n, rotation int) []string {
	if n <= 0 || len(sorted) == 0 {
		return nil
	}
	if n > len(sorted) {
		n = len(sorted)
	}
	start := (rotation * n) % len(sorted)
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, sorted[(start+i)%len(sorted)])
	}
	return out
}

// Rotate rebuilds the roster from emergency-eligible responders. Supervisors
// fill the supervisor roster, specialists the specialist backup, and everyone
// else the critical response roster.
func (m *Manager) Rotate(ctx context.Context) (model.EmergencyPool, error) {
	m.mu.Lock()
	m.lastAttempt = m.now()
	m.mu.Unlock()

	ps, err := m.profiles.List(ctx)
	if err != nil {
		return model.EmergencyPool{}, fmt.Errorf("rotate emergency pool: %w", err)
	}
	live := map[string]bool{}
	if m.registry != nil {
		for _, st := range m.registry.GetAvailable(availability.Filter{IncludeEmergencyOnly: true, EmergencyAvailableOnly: true}) {
			live[st.ID] = true
		}
	}
	var crit, spec, sup []string
	for _, p := range ps {
		if !p.EmergencyAvailable && !live[p.ID] {
			continue
		}
		switch p.Role {
		case model.RoleSupervisor:
			sup = append(sup, p.ID)
		case model.RoleSpecialist:
			spec = append(spec, p.ID)
		default:
			crit = append(crit, p.ID)
		}
	}
	sort.Strings(crit)
	sort.Strings(spec)
	sort.Strings(sup)

	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	next := model.EmergencyPool{
		CriticalResponse:  pick(crit, m.cfg.CriticalSize, m.rotations),
		SpecialistBackup:  pick(spec, m.cfg.SpecialistSize, m.rotations),
		OnCallSupervisors: pick(sup, m.cfg.SupervisorSize, m.rotations),
		RotatedAt:         now,
		NextRotation:      now.Add(m.cfg.interval()),
	}
	if len(m.pool.Members()) > 0 {
		m.previous = m.pool
		m.overlapUntil = now.Add(time.Duration(m.cfg.OverlapMinutes) * time.Minute)
	}
	m.pool = next
	m.rotations++
	m.log.Infof("emergency pool rotated: %d critical, %d specialist, %d supervisors",
		len(next.CriticalResponse), len(next.SpecialistBackup), len(next.OnCallSupervisors))
	return copyPool(next), nil
}

// Run rotates the pool on its interval until ctx is canceled.
func (m *Manager) Run(ctx context.Context) {
	if _, err := m.Rotate(ctx); err != nil {
		m.log.Errorf("%v", err)
	}
	t := time.NewTicker(m.cfg.interval())
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := m.Rotate(ctx); err != nil {
				m.log.Errorf("%v", err)
			}
		}
	}
}

type tier struct {
	name string
	ids  []string
}

func union(a, b []string) []string {
	out := append([]string(nil), a...)
	seen := make(map[string]struct{}, len(a))
	for _, id := range a {
		seen[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := seen[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// tiers returns the rosters in lookup order, including the previous roster
// while the handoff window is open.
func (m *Manager) tiers(now time.Time) []tier {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cur, prev := m.pool, model.EmergencyPool{}
	if now.Before(m.overlapUntil) {
		prev = m.previous
	}
	return []tier{
		{TierCritical, union(cur.CriticalResponse, prev.CriticalResponse)},
		{TierSpecialist, union(cur.SpecialistBackup, prev.SpecialistBackup)},
		{TierSupervisor, union(cur.OnCallSupervisors, prev.OnCallSupervisors)},
	}
}

func (m *Manager) needsRotation(now time.Time) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.pool.Members()) == 0 {
		return m.lastAttempt.IsZero() || now.Sub(m.lastAttempt) >= emptyRetry
	}
	return !now.Before(m.pool.NextRotation)
}
