package metrics

import (
	"context"
	"time"

	ireflect "github.com/kochabonline/hartshorn/core/reflect"
	"github.com/kochabonline/hartshorn/ioc"
	"github.com/kochabonline/hartshorn/proxy"
)

// Measured is implemented by components whose methods are timed.
// An empty result measures every proxyable method.
type Measured interface {
	MeasuredMethods() []string
}

// Advisor times Measured components.
type Advisor struct {
	p *Prometheus
}

func NewAdvisor(p *Prometheus) *Advisor {
	return &Advisor{p: p}
}

func (a *Advisor) Applies(_ ioc.Key, instance any) bool {
	_, ok := instance.(Measured)
	return ok
}

func (a *Advisor) Advise(_ context.Context, _ *ioc.ApplicationContext, m *proxy.Manager) error {
	methods := m.Target().(Measured).MeasuredMethods()
	if len(methods) == 0 {
		methods = m.Methods()
	}
	component := ireflect.TypeName(m.Type())
	for _, method := range methods {
		if err := m.Around(method, a.measure(component)); err != nil {
			return err
		}
	}
	return nil
}

func (a *Advisor) measure(component string) proxy.Interceptor {
	return func(inv *proxy.Invocation) ([]any, error) {
		start := time.Now()
		results, err := inv.Proceed()
		a.p.invocations.WithLabelValues(component, inv.Method, outcome(err)).Observe(time.Since(start).Seconds())
		if err != nil {
			a.p.failures.WithLabelValues("invocation", component+"."+inv.Method).Inc()
		}
		return results, err
	}
}
