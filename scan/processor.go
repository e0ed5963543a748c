package scan

import (
	"context"
	"sort"
	"strings"

	"github.com/kochabonline/hartshorn/errors"
	"github.com/kochabonline/hartshorn/ioc"
	"github.com/kochabonline/hartshorn/log"
)

// Order positions a PreProcessor in the bootstrap sequence. Lower runs first.
type Order int

const (
	OrderFirst  Order = -200
	OrderEarly  Order = -100
	OrderNormal Order = 0
	OrderLate   Order = 100
	OrderLast   Order = 200
)

// ProvidePrefix marks configuration methods that become providers.
const ProvidePrefix = "Provide"

// PreProcessor handles scanned definitions before the application starts.
type PreProcessor interface {
	Name() string
	Order() Order
	Process(ctx context.Context, app *ioc.ApplicationContext, defs []Definition) error
}

// DefaultProcessors returns the processors run when Bootstrap is given none.
func DefaultProcessors() []PreProcessor {
	return []PreProcessor{
		BindingProcessor{},
		ProviderMethodProcessor{},
		ActivationProcessor{},
	}
}

// Bootstrap scans definitions and runs processors over them in order.
// Processors with equal order run in the order given.
func Bootstrap(ctx context.Context, app *ioc.ApplicationContext, scanner *Scanner, processors ...PreProcessor) error {
	if len(processors) == 0 {
		processors = DefaultProcessors()
	}
	procs := append([]PreProcessor(nil), processors...)
	sort.SliceStable(procs, func(i, j int) bool {
		return procs[i].Order() < procs[j].Order()
	})

	defs := scanner.Scan()
	for _, p := range procs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := p.Process(ctx, app, defs); err != nil {
			return errors.Component("processor %s", p.Name()).WithCause(err)
		}
	}
	return nil
}

// BindingProcessor binds every definition and the interfaces it exposes.
type BindingProcessor struct{}

func (BindingProcessor) Name() string { return "binding" }

func (BindingProcessor) Order() Order { return OrderFirst }

func (BindingProcessor) Process(_ context.Context, app *ioc.ApplicationContext, defs []Definition) error {
	names := make([]string, 0, len(defs))
	for _, d := range defs {
		p, err := providerOf(d)
		if err != nil {
			return err
		}
		if err := app.Register(d.Key(), d.Priority, p); err != nil {
			return err
		}
		for _, iface := range d.Exposes {
			if err := app.Register(ioc.TypeKey(iface).Named(d.Name), d.Priority, p); err != nil {
				return err
			}
		}
		names = append(names, d.Key().String())
	}
	log.Infof("[scan] | binding | components: %v", names)
	return nil
}

func providerOf(d Definition) (ioc.Provider, error) {
	if d.Constructor == nil {
		return ioc.Struct(d.Type, d.Lifecycle)
	}
	p, err := ioc.Constructor(d.Constructor, d.Lifecycle)
	if err != nil {
		return nil, err
	}
	if !p.Out().AssignableTo(d.Type) {
		return nil, errors.InvalidProvider("constructor of %s returns %s", d.Key(), p.Out())
	}
	return p, nil
}

// ProviderMethodProcessor turns exported Provide* methods of configuration
// definitions into method providers bound to their result type.
type ProviderMethodProcessor struct{}

func (ProviderMethodProcessor) Name() string { return "provider-method" }

func (ProviderMethodProcessor) Order() Order { return OrderEarly }

func (ProviderMethodProcessor) Process(_ context.Context, app *ioc.ApplicationContext, defs []Definition) error {
	var provided []string
	for _, d := range defs {
		if d.Kind != KindConfiguration {
			continue
		}
		for i := range d.Type.NumMethod() {
			method := d.Type.Method(i)
			if !strings.HasPrefix(method.Name, ProvidePrefix) {
				continue
			}
			p, err := ioc.Method(d.Key(), method.Name, ioc.Singleton)
			if err != nil {
				return err
			}
			key := ioc.TypeKey(method.Type.Out(0))
			if err := app.Register(key, d.Priority, p); err != nil {
				return err
			}
			provided = append(provided, key.String())
		}
	}
	if len(provided) > 0 {
		log.Infof("[scan] | provider-method | provided: %v", provided)
	}
	return nil
}

// ActivationProcessor creates every eager singleton so failures surface at boot.
type ActivationProcessor struct{}

func (ActivationProcessor) Name() string { return "activation" }

func (ActivationProcessor) Order() Order { return OrderLast }

func (ActivationProcessor) Process(ctx context.Context, app *ioc.ApplicationContext, defs []Definition) error {
	activated := make([]string, 0, len(defs))
	for _, d := range defs {
		if d.Lazy || d.Lifecycle != ioc.Singleton {
			continue
		}
		if _, err := app.Get(ctx, d.Key()); err != nil {
			return err
		}
		activated = append(activated, d.Key().String())
	}
	log.Infof("[scan] | activation | components: %v", activated)
	return nil
}
