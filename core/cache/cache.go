// Package cache provides a small TTL cache abstraction shared by the
// assessors. The in-memory implementation is used by default; a Redis backed
// implementation lives in infra/cache.
package cache

import (
	"context"
	"sync"
	"time"
)

// Cache stores values of type V by key with an expiry.
type Cache[V any] interface {
	Get(ctx context.Context, key string) (V, bool)
	Set(ctx context.Context, key string, v V, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

type entry[V any] struct {
	value   V
	expires time.Time
}

// Memory is a goroutine-safe in-process Cache.
type Memory[V any] struct {
	mu    sync.Mutex
	items map[string]entry[V]
	now   func() time.Time
}

// NewMemory returns an empty in-memory cache.
func NewMemory[V any]() *Memory[V] {
	return &Memory[V]{items: make(map[string]entry[V]), now: time.Now}
}

// WithClock replaces the time source, used by tests.
func (m *Memory[V]) WithClock(now func() time.Time) *Memory[V] {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
	return m
}

func (m *Memory[V]) Get(_ context.Context, key string) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.items, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores v. A non-positive ttl keeps the entry until it is deleted.
func (m *Memory[V]) Set(_ context.Context, key string, v V, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := entry[V]{value: v}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.items[key] = e
}

func (m *Memory[V]) Delete(_ context.Context, key string) {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
