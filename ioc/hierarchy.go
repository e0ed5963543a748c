package ioc

import (
	"sort"
	"strconv"
	"sync"

	"github.com/kochabonline/hartshorn/errors"
)

// DefaultPriority is used when a binding does not state a priority.
const DefaultPriority = 0

// PriorityProvider is one entry of a BindingHierarchy.
type PriorityProvider struct {
	Priority int
	Provider Provider
}

// BindingHierarchy holds the candidate providers for one key, strictly ordered
// by priority. Each priority holds at most one provider.
type BindingHierarchy struct {
	key     Key
	mu      sync.RWMutex
	entries []PriorityProvider // ascending by priority
}

func NewBindingHierarchy(key Key) *BindingHierarchy {
	return &BindingHierarchy{key: key}
}

func (h *BindingHierarchy) Key() Key { return h.key }

// search returns the insertion index for priority and whether it is taken.
// Must be called with lock held.
func (h *BindingHierarchy) search(priority int) (int, bool) {
	i := sort.Search(len(h.entries), func(i int) bool {
		return h.entries[i].Priority >= priority
	})
	return i, i < len(h.entries) && h.entries[i].Priority == priority
}

// Add registers provider at priority. An occupied priority is left untouched and
// reported, so the first registration wins.
func (h *BindingHierarchy) Add(priority int, provider Provider) error {
	if provider == nil {
		return errors.InvalidProvider("nil provider for %s", h.key)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	i, taken := h.search(priority)
	if taken {
		return errors.PriorityTaken("priority %d of %s is already bound", priority, h.key).
			WithMetadata(map[string]string{"key": h.key.String(), "priority": strconv.Itoa(priority)})
	}
	h.insert(i, PriorityProvider{Priority: priority, Provider: provider})
	return nil
}

// Set registers provider at priority, replacing any existing provider there.
func (h *BindingHierarchy) Set(priority int, provider Provider) {
	h.mu.Lock()
	defer h.mu.Unlock()

	i, taken := h.search(priority)
	if taken {
		h.entries[i].Provider = provider
		return
	}
	h.insert(i, PriorityProvider{Priority: priority, Provider: provider})
}

func (h *BindingHierarchy) insert(i int, e PriorityProvider) {
	h.entries = append(h.entries, PriorityProvider{})
	copy(h.entries[i+1:], h.entries[i:])
	h.entries[i] = e
}

// Get returns the provider bound at exactly priority.
func (h *BindingHierarchy) Get(priority int) (Provider, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	i, taken := h.search(priority)
	if !taken {
		return nil, false
	}
	return h.entries[i].Provider, true
}

// Remove deletes the provider at priority and reports whether one was present.
func (h *BindingHierarchy) Remove(priority int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	i, taken := h.search(priority)
	if !taken {
		return false
	}
	h.entries = append(h.entries[:i], h.entries[i+1:]...)
	return true
}

// Providers returns a snapshot of all entries in ascending priority order.
func (h *BindingHierarchy) Providers() []PriorityProvider {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]PriorityProvider, len(h.entries))
	copy(out, h.entries)
	return out
}

// Priorities returns the bound priorities in ascending order.
func (h *BindingHierarchy) Priorities() []int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]int, len(h.entries))
	for i, e := range h.entries {
		out[i] = e.Priority
	}
	return out
}

// Highest returns the entry with the greatest priority.
func (h *BindingHierarchy) Highest() (PriorityProvider, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.entries) == 0 {
		return PriorityProvider{}, false
	}
	return h.entries[len(h.entries)-1], true
}

// Lowest returns the entry with the smallest priority.
func (h *BindingHierarchy) Lowest() (PriorityProvider, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.entries) == 0 {
		return PriorityProvider{}, false
	}
	return h.entries[0], true
}

func (h *BindingHierarchy) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Merge copies entries of other into h where h has no provider at that priority.
func (h *BindingHierarchy) Merge(other *BindingHierarchy) {
	if other == nil || other == h {
		return
	}
	for _, e := range other.Providers() {
		_ = h.Add(e.Priority, e.Provider)
	}
}
