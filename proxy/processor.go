package proxy

import (
	"context"
	"reflect"
	"sync"

	"github.com/kochabonline/hartshorn/errors"
	"github.com/kochabonline/hartshorn/ioc"
	ireflect "github.com/kochabonline/hartshorn/core/reflect"
	"github.com/kochabonline/hartshorn/log"
)

// OrderProxy is the post-processor order of proxying. It runs after the
// processors that inspect the raw instance.
const OrderProxy = 1000

// AdvisorSource contributes advice to proxies of the instances it applies to.
type AdvisorSource interface {
	Applies(key ioc.Key, instance any) bool
	Advise(ctx context.Context, app *ioc.ApplicationContext, m *Manager) error
}

// PostProcessor replaces instances with proxies when an AdvisorSource applies.
// Only interface keys with a registered stub can be proxied; others pass through.
type PostProcessor struct {
	mu      sync.RWMutex
	sources []AdvisorSource
	log     *log.Logger
}

func NewPostProcessor(sources ...AdvisorSource) *PostProcessor {
	return &PostProcessor{
		sources: sources,
		log:     log.Global().Component("proxy"),
	}
}

// Add registers another advisor source.
func (p *PostProcessor) Add(source AdvisorSource) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sources = append(p.sources, source)
}

func (p *PostProcessor) Order() int { return OrderProxy }

func (p *PostProcessor) Process(ctx context.Context, app *ioc.ApplicationContext, key ioc.Key, instance any) (any, error) {
	// concrete keys always resolve to the component itself
	if key.Type().Kind() != reflect.Interface {
		return nil, nil
	}

	p.mu.RLock()
	var applicable []AdvisorSource
	for _, s := range p.sources {
		if s.Applies(key, instance) {
			applicable = append(applicable, s)
		}
	}
	p.mu.RUnlock()

	if len(applicable) == 0 {
		return nil, nil
	}
	if !HasStub(key.Type()) {
		p.log.Warn().Msgf("[proxy] | no stub registered for %s | advice skipped", key)
		return nil, nil
	}

	m, err := NewOf(key.Type(), instance, WithLogger(p.log))
	if err != nil {
		return nil, err
	}
	for _, s := range applicable {
		if err := s.Advise(ctx, app, m); err != nil {
			return nil, errors.Proxy("advise %s", key).WithCause(err)
		}
	}

	stub, _ := StubOf(key.Type(), m)
	if ireflect.IsNil(stub) {
		return nil, errors.Proxy("stub factory for %s returned nil", key)
	}
	p.log.Debug().Msgf("[proxy] | proxied: %s | manager: %s | advisors: %d", key, m.ID(), len(applicable))
	return stub, nil
}
