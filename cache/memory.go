package cache

import (
	"context"
	"sync"
	"time"

	"github.com/kochabonline/hartshorn/task"
)

type entry struct {
	value   []byte
	expires time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}

// Memory is an in-process cache. Expired entries are hidden on read and
// removed by a sweep scheduled on the task runner.
type Memory struct {
	name    string
	mu      sync.RWMutex
	entries map[string]entry
	runner  *task.Runner
	sweepID string
}

// NewMemory creates a memory cache. With a runner and a positive interval,
// expired entries are swept periodically.
func NewMemory(name string, runner *task.Runner, sweep time.Duration) (*Memory, error) {
	m := &Memory{
		name:    name,
		entries: make(map[string]entry),
		runner:  runner,
	}
	if runner != nil && sweep > 0 {
		id, err := runner.Every(sweep, func(context.Context) error {
			m.Sweep()
			return nil
		})
		if err != nil {
			return nil, err
		}
		m.sweepID = id
	}
	return m, nil
}

func (m *Memory) Name() string { return m.name }

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || e.expired(time.Now()) {
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: value}
	if ttl > 0 {
		e.expires = time.Now().Add(ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = e
	return nil
}

func (m *Memory) Evict(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.entries)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Sweep removes expired entries.
func (m *Memory) Sweep() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, k)
		}
	}
}

// Close stops the periodic sweep.
func (m *Memory) Close() {
	if m.runner != nil && m.sweepID != "" {
		m.runner.Cancel(m.sweepID)
	}
}
