package ioc

// ProviderSelectionStrategy picks one provider out of a hierarchy.
// Strategies must be deterministic for identical hierarchy state.
type ProviderSelectionStrategy interface {
	Select(h *BindingHierarchy) (PriorityProvider, bool)
}

// SelectionFunc adapts a function to ProviderSelectionStrategy.
type SelectionFunc func(h *BindingHierarchy) (PriorityProvider, bool)

func (f SelectionFunc) Select(h *BindingHierarchy) (PriorityProvider, bool) {
	return f(h)
}

// HighestPriority selects the provider with the greatest priority. This is the default.
func HighestPriority() ProviderSelectionStrategy {
	return SelectionFunc(func(h *BindingHierarchy) (PriorityProvider, bool) {
		return h.Highest()
	})
}

// LowestPriority selects the provider with the smallest priority.
func LowestPriority() ProviderSelectionStrategy {
	return SelectionFunc(func(h *BindingHierarchy) (PriorityProvider, bool) {
		return h.Lowest()
	})
}

// MinimumPriority selects the highest provider, provided its priority is at least minimum.
func MinimumPriority(minimum int) ProviderSelectionStrategy {
	return SelectionFunc(func(h *BindingHierarchy) (PriorityProvider, bool) {
		e, ok := h.Highest()
		if !ok || e.Priority < minimum {
			return PriorityProvider{}, false
		}
		return e, true
	})
}

// MaximumPriority selects the highest provider whose priority does not exceed maximum.
func MaximumPriority(maximum int) ProviderSelectionStrategy {
	return SelectionFunc(func(h *BindingHierarchy) (PriorityProvider, bool) {
		entries := h.Providers()
		for i := len(entries) - 1; i >= 0; i-- {
			if entries[i].Priority <= maximum {
				return entries[i], true
			}
		}
		return PriorityProvider{}, false
	})
}

// ExactPriority selects the provider bound at exactly priority.
func ExactPriority(priority int) ProviderSelectionStrategy {
	return SelectionFunc(func(h *BindingHierarchy) (PriorityProvider, bool) {
		p, ok := h.Get(priority)
		if !ok {
			return PriorityProvider{}, false
		}
		return PriorityProvider{Priority: priority, Provider: p}, true
	})
}
