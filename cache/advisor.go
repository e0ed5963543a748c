package cache

import (
	"context"
	"reflect"
	"strings"
	"time"

	"github.com/goccy/go-json"

	ireflect "github.com/kochabonline/hartshorn/core/reflect"
	"github.com/kochabonline/hartshorn/errors"
	"github.com/kochabonline/hartshorn/ioc"
	"github.com/kochabonline/hartshorn/log"
	"github.com/kochabonline/hartshorn/proxy"
)

// Spec declares how a component uses a cache.
type Spec struct {
	// Name of the cache in the Manager.
	Name string
	// TTL maps cached methods to the lifetime of their results.
	TTL map[string]time.Duration
	// Evict lists methods that clear the cache after a successful call.
	Evict []string
}

// Cached is implemented by components whose method results are cached.
type Cached interface {
	CacheSpec() Spec
}

// Advisor caches results of Cached components.
type Advisor struct {
	manager *Manager
	log     *log.Logger
}

func NewAdvisor(manager *Manager) *Advisor {
	return &Advisor{manager: manager, log: log.Global().Component("cache")}
}

func (a *Advisor) Applies(_ ioc.Key, instance any) bool {
	_, ok := instance.(Cached)
	return ok
}

func (a *Advisor) Advise(_ context.Context, _ *ioc.ApplicationContext, m *proxy.Manager) error {
	spec := m.Target().(Cached).CacheSpec()
	c, err := a.manager.Get(spec.Name)
	if err != nil {
		return err
	}

	for method, ttl := range spec.TTL {
		sig, ok := m.Signature(method)
		if !ok {
			return errors.MethodNotProxyable("cached method %s is not proxyable", method)
		}
		if err := m.Around(method, a.cached(c, sig, ttl)); err != nil {
			return err
		}
	}
	for _, method := range spec.Evict {
		if err := m.After(method, a.evict(c)); err != nil {
			return err
		}
	}
	return nil
}

func (a *Advisor) cached(c Cache, sig reflect.Type, ttl time.Duration) proxy.Interceptor {
	return func(inv *proxy.Invocation) ([]any, error) {
		ctx := inv.Context()
		key, err := cacheKey(inv)
		if err != nil {
			a.log.Warn().Err(err).Msgf("[cache] | %s | key not encodable", inv.Method)
			return inv.Proceed()
		}

		if raw, ok, err := c.Get(ctx, key); err != nil {
			a.log.Warn().Err(err).Msgf("[cache] | %s | get failed", c.Name())
		} else if ok {
			if results, err := decode(sig, raw); err == nil {
				return results, nil
			}
		}

		results, err := inv.Proceed()
		if err != nil {
			return results, err
		}
		raw, err := json.Marshal(results)
		if err != nil {
			a.log.Warn().Err(err).Msgf("[cache] | %s | result not encodable", inv.Method)
			return results, nil
		}
		if err := c.Put(ctx, key, raw, ttl); err != nil {
			a.log.Warn().Err(err).Msgf("[cache] | %s | put failed", c.Name())
		}
		return results, nil
	}
}

func (a *Advisor) evict(c Cache) proxy.AfterFunc {
	return func(inv *proxy.Invocation, _ []any) {
		if err := c.Clear(inv.Context()); err != nil {
			a.log.Warn().Err(err).Msgf("[cache] | %s | clear failed", c.Name())
		}
	}
}

// cacheKey is the method name followed by the JSON of its arguments, context excluded.
func cacheKey(inv *proxy.Invocation) (string, error) {
	args := make([]any, 0, len(inv.Args))
	for _, arg := range inv.Args {
		if _, ok := arg.(context.Context); ok {
			continue
		}
		args = append(args, arg)
	}
	b, err := json.Marshal(args)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString(inv.Method)
	sb.WriteByte(':')
	sb.Write(b)
	return sb.String(), nil
}

// decode restores the non-error results of sig from a JSON array.
func decode(sig reflect.Type, raw []byte) ([]any, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return nil, err
	}
	n := sig.NumOut()
	if ireflect.ReturnsError(sig) {
		n--
	}
	if len(parts) != n {
		return nil, errors.Cache("cached %d results, want %d", len(parts), n)
	}
	results := make([]any, n)
	for i := range n {
		ptr := reflect.New(sig.Out(i))
		if err := json.Unmarshal(parts[i], ptr.Interface()); err != nil {
			return nil, err
		}
		results[i] = ptr.Elem().Interface()
	}
	return results, nil
}
