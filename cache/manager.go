package cache

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kochabonline/hartshorn/errors"
	"github.com/kochabonline/hartshorn/task"
)

// Config selects the cache backend.
type Config struct {
	Backend string        `json:"backend" mapstructure:"backend" default:"memory" validate:"oneof=memory redis"`
	Sweep   time.Duration `json:"sweep" mapstructure:"sweep" default:"1m"`
}

// MemoryBackend creates memory caches swept on runner.
func MemoryBackend(runner *task.Runner, sweep time.Duration) Backend {
	return func(name string) (Cache, error) {
		return NewMemory(name, runner, sweep)
	}
}

// RedisBackend creates caches stored in client.
func RedisBackend(client redis.UniversalClient) Backend {
	return func(name string) (Cache, error) {
		return NewRedis(name, client), nil
	}
}

// Manager creates named caches lazily from a backend.
type Manager struct {
	backend Backend
	mu      sync.Mutex
	caches  map[string]Cache
}

func NewManager(backend Backend) *Manager {
	return &Manager{
		backend: backend,
		caches:  make(map[string]Cache),
	}
}

// Get returns the cache called name, creating it on first use.
func (m *Manager) Get(name string) (Cache, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.caches[name]; ok {
		return c, nil
	}
	c, err := m.backend(name)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeCache, "create cache %s", name)
	}
	m.caches[name] = c
	return c, nil
}

// Names returns the created cache names, sorted.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.caches))
	for name := range m.caches {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Destroy stops background sweeps of memory caches.
func (m *Manager) Destroy(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.caches {
		if mem, ok := c.(*Memory); ok {
			mem.Close()
		}
	}
	return nil
}
