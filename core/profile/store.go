// Package profile serves read-only responder profiles to the matching
// components.
package profile

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kilianp07/crisismatch/core/model"
)

// Store provides responder profiles.
type Store interface {
	Get(ctx context.Context, id string) (model.ResponderProfile, error)
	List(ctx context.Context) ([]model.ResponderProfile, error)
}

// Writer persists responder profiles.
type Writer interface {
	Upsert(ctx context.Context, p model.ResponderProfile) error
}

// MemoryStore keeps profiles in a map.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]model.ResponderProfile
}

// NewMemoryStore returns a store seeded with the given profiles.
func NewMemoryStore(ps ...model.ResponderProfile) *MemoryStore {
	s := &MemoryStore{data: make(map[string]model.ResponderProfile, len(ps))}
	for _, p := range ps {
		s.data[p.ID] = p
	}
	return s
}

func (s *MemoryStore) Get(_ context.Context, id string) (model.ResponderProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.data[id]
	if !ok {
		return model.ResponderProfile{}, fmt.Errorf("profile %s: %w", id, model.ErrResponderNotFound)
	}
	return p, nil
}

func (s *MemoryStore) List(_ context.Context) ([]model.ResponderProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ResponderProfile, 0, len(s.data))
	for _, p := range s.data {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Upsert(_ context.Context, p model.ResponderProfile) error {
	if p.ID == "" {
		return fmt.Errorf("%w: profile id is required", model.ErrInvalidCriteria)
	}
	s.mu.Lock()
	s.data[p.ID] = p
	s.mu.Unlock()
	return nil
}
