package profile

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kilianp07/crisismatch/core/model"
)

// LastGood wraps a Store and serves the last successfully read profile when
// the backend fails. Not-found errors are passed through unchanged.
type LastGood struct {
	next Store

	mu    sync.RWMutex
	byID  map[string]model.ResponderProfile
	all   []model.ResponderProfile
	stale bool
}

// NewLastGood wraps next.
func NewLastGood(next Store) *LastGood {
	return &LastGood{next: next, byID: make(map[string]model.ResponderProfile)}
}

func (l *LastGood) Get(ctx context.Context, id string) (model.ResponderProfile, error) {
	p, err := l.next.Get(ctx, id)
	if err == nil {
		l.mu.Lock()
		l.byID[id] = p
		l.stale = false
		l.mu.Unlock()
		return p, nil
	}
	if errors.Is(err, model.ErrResponderNotFound) {
		return p, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if cached, ok := l.byID[id]; ok {
		l.stale = true
		return cached, nil
	}
	return model.ResponderProfile{}, fmt.Errorf("%w: profile %s: %v", model.ErrDependencyUnavailable, id, err)
}

func (l *LastGood) List(ctx context.Context) ([]model.ResponderProfile, error) {
	ps, err := l.next.List(ctx)
	if err == nil {
		l.mu.Lock()
		l.all = append(l.all[:0], ps...)
		for _, p := range ps {
			l.byID[p.ID] = p
		}
		l.stale = false
		l.mu.Unlock()
		return ps, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.all != nil {
		l.stale = true
		return append([]model.ResponderProfile(nil), l.all...), nil
	}
	return nil, fmt.Errorf("%w: list profiles: %v", model.ErrDependencyUnavailable, err)
}

// Stale reports whether the last answer came from the fallback copy.
func (l *LastGood) Stale() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stale
}
