package ioc

import (
	"context"
	"sync"

	"github.com/kochabonline/hartshorn/errors"
	"github.com/kochabonline/hartshorn/log"
)

// registry remembers created singletons in creation order so they can be
// destroyed in reverse.
type registry struct {
	mu      sync.Mutex
	objects []*object
}

type object struct {
	key      Key
	instance any
}

func newRegistry() *registry {
	return &registry{}
}

func (r *registry) track(key Key, instance any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.objects = append(r.objects, &object{key: key, instance: instance})
}

// snapshot returns the tracked objects, most recent first.
func (r *registry) snapshot() []*object {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*object, len(r.objects))
	for i, obj := range r.objects {
		out[len(out)-1-i] = obj
	}
	return out
}

// destroy calls Destroy on every Destroyer, most recent first. All destroyers are
// attempted; their errors are joined.
func (r *registry) destroy(ctx context.Context, logger *log.Logger) error {
	objects := r.snapshot()

	r.mu.Lock()
	r.objects = nil
	r.mu.Unlock()

	var (
		errs      []error
		destroyed []string
	)
	for _, obj := range objects {
		d, ok := obj.instance.(Destroyer)
		if !ok {
			continue
		}
		select {
		case <-ctx.Done():
			return errors.Join(append(errs, ctx.Err())...)
		default:
		}
		if err := d.Destroy(ctx); err != nil {
			errs = append(errs, errors.Component("destroy %s", obj.key).WithCause(err))
			continue
		}
		destroyed = append(destroyed, obj.key.String())
	}

	logger.Info().Msgf("[ioc] | destroyed: %v", destroyed)
	return errors.Join(errs...)
}

func (r *registry) healthCheck(ctx context.Context) error {
	var errs []error
	for _, obj := range r.snapshot() {
		hc, ok := obj.instance.(HealthChecker)
		if !ok {
			continue
		}
		if err := hc.HealthCheck(ctx); err != nil {
			errs = append(errs, errors.Component("health check %s", obj.key).
				WithCause(err).
				With("component", obj.key.String()))
		}
	}
	return errors.Join(errs...)
}
