// Package availability owns the live responder status view. The Registry is
// the only writer of model.ResponderStatus; reservations are serialised by a
// single mutex so concurrent matches never double-book a responder.
package availability

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/crisismatch/core/events"
	"github.com/kilianp07/crisismatch/core/logger"
	"github.com/kilianp07/crisismatch/core/model"
	"github.com/kilianp07/crisismatch/internal/eventbus"
)

// Config tunes the registry.
type Config struct {
	// StaleAfterSeconds excludes responders whose heartbeat is older.
	StaleAfterSeconds int `json:"stale_after_seconds"`
	// DefaultMaxSessions applies to responders registered without a limit.
	DefaultMaxSessions int `json:"default_max_sessions"`
	// EventBuffer is the per-subscriber buffer of the change feed.
	EventBuffer int `json:"event_buffer"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{StaleAfterSeconds: 120, DefaultMaxSessions: 3, EventBuffer: 64}
}

func (c Config) staleAfter() time.Duration {
	if c.StaleAfterSeconds <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(c.StaleAfterSeconds) * time.Second
}

// Metadata carries optional fields applied alongside a status update.
type Metadata struct {
	MaxConcurrentSessions *int
	EmergencyAvailable    *bool
	Location              *model.Location
	Reason                string
}

// Filter restricts GetAvailable.
type Filter struct {
	// IncludeEmergencyOnly also returns responders in EMERGENCY_ONLY status.
	IncludeEmergencyOnly bool
	// EmergencyAvailableOnly keeps only responders flagged for emergencies.
	EmergencyAvailableOnly bool
	// IDs limits the result to these responders when non-empty.
	IDs []string
}

// Registry is the authoritative in-memory view of responder availability.
type Registry struct {
	mu         sync.RWMutex
	responders map[string]*model.ResponderStatus

	cfg Config
	bus *eventbus.TypedBus[events.AvailabilityChanged]
	log logger.Logger
	now func() time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry(cfg Config, log logger.Logger) *Registry {
	if cfg.DefaultMaxSessions <= 0 {
		cfg.DefaultMaxSessions = 3
	}
	return &Registry{
		responders: make(map[string]*model.ResponderStatus),
		cfg:        cfg,
		bus:        eventbus.NewTypedWithBuffer[events.AvailabilityChanged](cfg.EventBuffer),
		log:        log,
		now:        time.Now,
	}
}

// SetClock replaces the time source.
func (r *Registry) SetClock(now func() time.Time) { r.now = now }

// StaleAfter returns the heartbeat freshness window.
func (r *Registry) StaleAfter() time.Duration { return r.cfg.staleAfter() }

// Events returns the change feed. Callers must Unsubscribe when done.
func (r *Registry) Events() <-chan events.AvailabilityChanged { return r.bus.Subscribe() }

// Unsubscribe detaches a feed obtained from Events.
func (r *Registry) Unsubscribe(ch <-chan events.AvailabilityChanged) { r.bus.Unsubscribe(ch) }

// Close stops the change feed.
func (r *Registry) Close() { r.bus.Close() }

// Register adds or replaces a responder, typically from its profile at login.
func (r *Registry) Register(st model.ResponderStatus) error {
	if st.ID == "" {
		return fmt.Errorf("%w: responder id is required", model.ErrInvalidCriteria)
	}
	if st.Status == "" {
		st.Status = model.StatusOffline
	}
	if !st.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", model.ErrInvalidCriteria, st.Status)
	}
	if st.MaxConcurrentSessions <= 0 {
		st.MaxConcurrentSessions = r.cfg.DefaultMaxSessions
	}
	if st.CurrentSessions > st.MaxConcurrentSessions {
		st.CurrentSessions = st.MaxConcurrentSessions
	}
	if st.CurrentSessions < 0 {
		st.CurrentSessions = 0
	}
	if st.Status == model.StatusOffline {
		st.EmergencyAvailable = false
	}
	if st.LastHeartbeat.IsZero() && st.Status != model.StatusOffline {
		st.LastHeartbeat = r.now()
	}

	r.mu.Lock()
	prev := model.StatusOffline
	if old, ok := r.responders[st.ID]; ok {
		prev = old.Status
	}
	cp := st
	r.responders[st.ID] = &cp
	r.mu.Unlock()

	r.publish(st.ID, prev, st.Status, "register", 0)
	return nil
}

// UpdateStatus sets the status of a responder and refreshes its heartbeat.
// Unknown responders are created with the default session limit.
func (r *Registry) UpdateStatus(id string, status model.Status, md Metadata) error {
	if id == "" {
		return fmt.Errorf("%w: responder id is required", model.ErrInvalidCriteria)
	}
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", model.ErrInvalidCriteria, status)
	}
	now := r.now()

	r.mu.Lock()
	st, ok := r.responders[id]
	if !ok {
		st = &model.ResponderStatus{ID: id, Status: model.StatusOffline, MaxConcurrentSessions: r.cfg.DefaultMaxSessions}
		r.responders[id] = st
	}
	prev := st.Status
	st.Status = status
	st.LastHeartbeat = now
	if md.MaxConcurrentSessions != nil && *md.MaxConcurrentSessions > 0 {
		st.MaxConcurrentSessions = *md.MaxConcurrentSessions
		if st.CurrentSessions > st.MaxConcurrentSessions {
			// Existing sessions are kept; no new reservations succeed until
			// the load drops under the new limit.
			r.log.Warnf("responder %s holds %d sessions above new limit %d", id, st.CurrentSessions, st.MaxConcurrentSessions)
		}
	}
	if md.EmergencyAvailable != nil {
		st.EmergencyAvailable = *md.EmergencyAvailable
	}
	if md.Location != nil {
		st.Location = *md.Location
	}
	if status == model.StatusOffline {
		st.EmergencyAvailable = false
	}
	r.mu.Unlock()

	reason := md.Reason
	if reason == "" {
		reason = "status_update"
	}
	r.publish(id, prev, status, reason, 0)
	return nil
}

// Heartbeat refreshes the liveness timestamp without changing status.
func (r *Registry) Heartbeat(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.responders[id]
	if !ok {
		return fmt.Errorf("responder %s: %w", id, model.ErrResponderNotFound)
	}
	st.LastHeartbeat = r.now()
	return nil
}

// Get returns a copy of the responder status.
func (r *Registry) Get(id string) (model.ResponderStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.responders[id]
	if !ok {
		return model.ResponderStatus{}, fmt.Errorf("responder %s: %w", id, model.ErrResponderNotFound)
	}
	return *st, nil
}

// GetAvailable returns responders that are online (or emergency-only when
// requested), have a fresh heartbeat and spare session capacity, sorted by id.
func (r *Registry) GetAvailable(f Filter) []model.ResponderStatus {
	now := r.now()
	stale := r.cfg.staleAfter()
	var ids map[string]struct{}
	if len(f.IDs) > 0 {
		ids = make(map[string]struct{}, len(f.IDs))
		for _, id := range f.IDs {
			ids[id] = struct{}{}
		}
	}

	r.mu.RLock()
	out := make([]model.ResponderStatus, 0, len(r.responders))
	for _, st := range r.responders {
		if ids != nil {
			if _, ok := ids[st.ID]; !ok {
				continue
			}
		}
		switch st.Status {
		case model.StatusOnline:
		case model.StatusEmergencyOnly:
			if !f.IncludeEmergencyOnly {
				continue
			}
		default:
			continue
		}
		if f.EmergencyAvailableOnly && !st.EmergencyAvailable {
			continue
		}
		if !st.Fresh(now, stale) || !st.HasCapacity() {
			continue
		}
		out = append(out, *st)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Reserve takes one session slot for the responder. It fails with
// model.ErrCapacityExceeded when the responder is full or no longer
// assignable.
func (r *Registry) Reserve(id string) (model.ResponderStatus, error) {
	r.mu.Lock()
	st, ok := r.responders[id]
	if !ok {
		r.mu.Unlock()
		return model.ResponderStatus{}, fmt.Errorf("responder %s: %w", id, model.ErrResponderNotFound)
	}
	if !assignable(st.Status) || !st.HasCapacity() {
		snap := *st
		r.mu.Unlock()
		return snap, fmt.Errorf("responder %s (%d/%d, %s): %w", id, snap.CurrentSessions, snap.MaxConcurrentSessions, snap.Status, model.ErrCapacityExceeded)
	}
	st.CurrentSessions++
	snap := *st
	r.mu.Unlock()

	r.publish(id, snap.Status, snap.Status, "reserve", 1)
	return snap, nil
}

// Release frees one session slot, floored at zero.
func (r *Registry) Release(id string) (model.ResponderStatus, error) {
	r.mu.Lock()
	st, ok := r.responders[id]
	if !ok {
		r.mu.Unlock()
		return model.ResponderStatus{}, fmt.Errorf("responder %s: %w", id, model.ErrResponderNotFound)
	}
	delta := 0
	if st.CurrentSessions > 0 {
		st.CurrentSessions--
		delta = -1
	}
	snap := *st
	r.mu.Unlock()

	if delta != 0 {
		r.publish(id, snap.Status, snap.Status, "release", delta)
	}
	return snap, nil
}

// Snapshot returns every known responder sorted by id.
func (r *Registry) Snapshot() []model.ResponderStatus {
	r.mu.RLock()
	out := make([]model.ResponderStatus, 0, len(r.responders))
	for _, st := range r.responders {
		out = append(out, *st)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func assignable(s model.Status) bool {
	return s == model.StatusOnline || s == model.StatusEmergencyOnly
}

func (r *Registry) publish(id string, prev, cur model.Status, reason string, delta int) {
	r.bus.Publish(events.AvailabilityChanged{
		ResponderID:  id,
		Previous:     prev,
		Current:      cur,
		Reason:       reason,
		SessionDelta: delta,
		At:           r.now(),
	})
	if prev != cur {
		r.log.Debugw("availability changed", map[string]any{"responder": id, "from": string(prev), "to": string(cur), "reason": reason})
	}
}
