package ioc

import (
	"context"
	"time"
)

// Initializer defines components that require initialization after they are
// constructed and their fields are injected.
type Initializer interface {
	// Init initializes the component with context support for cancellation and timeout.
	Init(ctx context.Context) error
}

// Destroyer defines singleton components that require cleanup when the
// application context is closed.
type Destroyer interface {
	// Destroy cleans up resources used by the component.
	// It should be idempotent and safe to call multiple times.
	Destroy(ctx context.Context) error
}

// HealthChecker defines components that can report their health status.
type HealthChecker interface {
	// HealthCheck returns the current health status of the component.
	// It should be lightweight and non-blocking.
	HealthCheck(ctx context.Context) error
}

// Ordered is implemented by processors that must run in a defined order.
// Lower values run first.
type Ordered interface {
	Order() int
}

// PostProcessor observes, and may replace, every instance created by the
// context. Proxying, listener discovery and route registration are all
// post-processors.
type PostProcessor interface {
	Ordered
	Process(ctx context.Context, app *ApplicationContext, key Key, instance any) (any, error)
}

// PostProcessorFunc adapts a function to PostProcessor.
type PostProcessorFunc struct {
	Priority int
	Fn       func(ctx context.Context, app *ApplicationContext, key Key, instance any) (any, error)
}

func (f PostProcessorFunc) Order() int { return f.Priority }

func (f PostProcessorFunc) Process(ctx context.Context, app *ApplicationContext, key Key, instance any) (any, error) {
	return f.Fn(ctx, app, key, instance)
}

// Observer receives every resolution performed by the context.
type Observer interface {
	OnResolve(key Key, elapsed time.Duration, err error)
}

// PropertyResolver looks up configuration values for `value` struct tags.
type PropertyResolver interface {
	Property(key string) (any, bool)
}

// PropertiesMap is a PropertyResolver over a flat map, mostly useful in tests.
type PropertiesMap map[string]any

func (m PropertiesMap) Property(key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}
