package workload

import (
	"sync"
	"time"

	"github.com/kilianp07/crisismatch/core/model"
)

// retention bounds how long closed session spans are kept.
const retention = 8 * 24 * time.Hour

type span struct {
	start time.Time
	end   time.Time
}

type activity struct {
	open         map[string]time.Time
	closed       []span
	consecutive  int
	lastBreak    time.Time
	wellness     *model.WellnessCheck
	lastShiftEnd time.Time
}

// ledger records what responders have been doing. It is the input of every
// assessment and is mutated only through the Assessor's Record methods.
type ledger struct {
	mu   sync.RWMutex
	data map[string]*activity
}

func newLedger() *ledger { return &ledger{data: make(map[string]*activity)} }

func (l *ledger) get(id string) *activity {
	a, ok := l.data[id]
	if !ok {
		a = &activity{open: make(map[string]time.Time)}
		l.data[id] = a
	}
	return a
}

func (l *ledger) startSession(id, sessionID string, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.get(id)
	if _, dup := a.open[sessionID]; dup {
		return
	}
	a.open[sessionID] = at
	a.consecutive++
}

func (l *ledger) endSession(id, sessionID string, at time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.get(id)
	start, ok := a.open[sessionID]
	if !ok {
		return false
	}
	delete(a.open, sessionID)
	if at.Before(start) {
		at = start
	}
	a.closed = append(a.closed, span{start: start, end: at})
	cutoff := at.Add(-retention)
	i := 0
	for i < len(a.closed) && a.closed[i].end.Before(cutoff) {
		i++
	}
	if i > 0 {
		a.closed = append([]span(nil), a.closed[i:]...)
	}
	return true
}

func (l *ledger) recordBreak(id string, at time.Time) {
	l.mu.Lock()
	a := l.get(id)
	a.consecutive = 0
	a.lastBreak = at
	l.mu.Unlock()
}

func (l *ledger) recordWellness(id string, w model.WellnessCheck) {
	l.mu.Lock()
	l.get(id).wellness = &w
	l.mu.Unlock()
}

func (l *ledger) recordShiftEnd(id string, at time.Time) {
	l.mu.Lock()
	a := l.get(id)
	if at.After(a.lastShiftEnd) {
		a.lastShiftEnd = at
	}
	a.consecutive = 0
	l.mu.Unlock()
}

// snapshot is a consistent copy of one responder's activity.
type snapshot struct {
	spans        []span
	active       int
	consecutive  int
	lastBreak    time.Time
	wellness     *model.WellnessCheck
	lastShiftEnd time.Time
}

func (l *ledger) snapshot(id string, now time.Time) snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.data[id]
	if !ok {
		return snapshot{}
	}
	s := snapshot{
		spans:        make([]span, 0, len(a.closed)+len(a.open)),
		active:       len(a.open),
		consecutive:  a.consecutive,
		lastBreak:    a.lastBreak,
		lastShiftEnd: a.lastShiftEnd,
	}
	s.spans = append(s.spans, a.closed...)
	for _, st := range a.open {
		s.spans = append(s.spans, span{start: st, end: now})
	}
	if a.wellness != nil {
		w := *a.wellness
		s.wellness = &w
	}
	return s
}

// hoursBetween sums the session time inside [from, to).
func (s snapshot) hoursBetween(from, to time.Time) float64 {
	var total time.Duration
	for _, sp := range s.spans {
		total += model.Shift{Start: sp.start, End: sp.end}.Overlap(from, to)
	}
	return total.Hours()
}

// workingSince returns the start of the current uninterrupted stretch.
func (s snapshot) workingSince(dayStart time.Time) time.Time {
	if !s.lastBreak.IsZero() && s.lastBreak.After(dayStart) {
		return s.lastBreak
	}
	var first time.Time
	for _, sp := range s.spans {
		if sp.end.Before(dayStart) {
			continue
		}
		st := sp.start
		if st.Before(dayStart) {
			st = dayStart
		}
		if first.IsZero() || st.Before(first) {
			first = st
		}
	}
	return first
}
