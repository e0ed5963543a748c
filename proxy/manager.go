// Package proxy intercepts method calls of components for cross-cutting concerns.
//
// A Manager holds the advice registered for each method of a proxied type:
// before callbacks, around interceptors, after and after-throwing callbacks,
// and an optional delegate replacing the method body. Calls reach the manager
// either dynamically through Call or through functions synthesized with
// reflect.MakeFunc (Func, Populate, Wrap), which typed stubs use to implement
// the proxied interface.
package proxy

import (
	"reflect"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/kochabonline/hartshorn/errors"
	ireflect "github.com/kochabonline/hartshorn/core/reflect"
	"github.com/kochabonline/hartshorn/log"
)

// BeforeFunc runs ahead of the call. It may rewrite inv.Args.
type BeforeFunc func(inv *Invocation)

// AfterFunc runs after a call that returned without error.
type AfterFunc func(inv *Invocation, results []any)

// ThrowingFunc runs after a call that returned an error or panicked.
type ThrowingFunc func(inv *Invocation, err error)

// Interceptor wraps the call. It continues the chain with inv.Proceed.
type Interceptor func(inv *Invocation) ([]any, error)

type advice struct {
	before   []BeforeFunc
	after    []AfterFunc
	throwing []ThrowingFunc
	around   []Interceptor
	delegate reflect.Value
}

func (a *advice) clone() *advice {
	return &advice{
		before:   slices.Clone(a.before),
		after:    slices.Clone(a.after),
		throwing: slices.Clone(a.throwing),
		around:   slices.Clone(a.around),
		delegate: a.delegate,
	}
}

// Manager is the advice registry of one proxy instance.
type Manager struct {
	id         string
	typ        reflect.Type
	target     reflect.Value
	fn         reflect.Value
	signatures map[string]reflect.Type

	mu     sync.RWMutex
	advice map[string]*advice
	log    *log.Logger
}

type Option func(*Manager)

func WithLogger(l *log.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// New creates a manager proxying T. When T is an interface, target may be nil
// and every method is abstract until a delegate is registered. Otherwise T's
// exported method set is proxyable and target is required.
func New[T any](target T, opts ...Option) (*Manager, error) {
	return NewOf(reflect.TypeFor[T](), any(target), opts...)
}

// NewOf is the non-generic form of New.
func NewOf(typ reflect.Type, target any, opts ...Option) (*Manager, error) {
	if typ == nil {
		return nil, errors.Proxy("cannot proxy a nil type")
	}
	m := newManager(typ, opts...)

	if !ireflect.IsNil(target) {
		tv := reflect.ValueOf(target)
		if !tv.Type().AssignableTo(typ) {
			return nil, errors.Proxy("target %T does not implement %s", target, ireflect.TypeName(typ))
		}
		m.target = tv
	} else if typ.Kind() != reflect.Interface {
		return nil, errors.Proxy("proxy of concrete type %s needs a target", ireflect.TypeName(typ))
	}

	for i := range typ.NumMethod() {
		method := typ.Method(i)
		if !method.IsExported() {
			continue
		}
		sig := method.Type
		if typ.Kind() != reflect.Interface {
			sig = dropReceiver(sig)
		}
		m.signatures[method.Name] = sig
	}

	m.log.Debug().Msgf("[proxy] | manager: %s | type: %s | methods: %d", m.id, ireflect.TypeName(typ), len(m.signatures))
	return m, nil
}

func newManager(typ reflect.Type, opts ...Option) *Manager {
	m := &Manager{
		id:         uuid.NewString(),
		typ:        typ,
		signatures: make(map[string]reflect.Type),
		advice:     make(map[string]*advice),
		log:        log.Global().Component("proxy"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ID returns the unique id of the manager.
func (m *Manager) ID() string { return m.id }

// Type returns the proxied type.
func (m *Manager) Type() reflect.Type { return m.typ }

// Target returns the proxied instance, or nil for an abstract proxy.
func (m *Manager) Target() any {
	if !m.target.IsValid() {
		return nil
	}
	return m.target.Interface()
}

// Methods returns the names of every proxyable method, sorted.
func (m *Manager) Methods() []string {
	out := make([]string, 0, len(m.signatures))
	for name := range m.signatures {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Proxyable reports whether method can carry advice.
func (m *Manager) Proxyable(method string) bool {
	_, ok := m.signatures[method]
	return ok
}

// Signature returns the function type of method without receiver.
func (m *Manager) Signature(method string) (reflect.Type, bool) {
	sig, ok := m.signatures[method]
	return sig, ok
}

// Advised reports whether any advice is registered for method.
func (m *Manager) Advised(method string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.advice[method]
	return ok
}

func (m *Manager) register(method string, fn func(a *advice)) error {
	if !m.Proxyable(method) {
		return errors.MethodNotProxyable("%s.%s cannot be intercepted", ireflect.TypeName(m.typ), method).
			With("method", method)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.advice[method]
	if !ok {
		a = &advice{}
		m.advice[method] = a
	}
	fn(a)
	return nil
}

func (m *Manager) Before(method string, fn BeforeFunc) error {
	return m.register(method, func(a *advice) { a.before = append(a.before, fn) })
}

func (m *Manager) After(method string, fn AfterFunc) error {
	return m.register(method, func(a *advice) { a.after = append(a.after, fn) })
}

func (m *Manager) AfterThrowing(method string, fn ThrowingFunc) error {
	return m.register(method, func(a *advice) { a.throwing = append(a.throwing, fn) })
}

// Around adds an interceptor. The first registered interceptor is the outermost.
func (m *Manager) Around(method string, fn Interceptor) error {
	return m.register(method, func(a *advice) { a.around = append(a.around, fn) })
}

// Delegate replaces the body of method with fn, which must have the method's
// exact signature.
func (m *Manager) Delegate(method string, fn any) error {
	sig, ok := m.signatures[method]
	if !ok {
		return m.register(method, nil)
	}
	fv := reflect.ValueOf(fn)
	if !fv.IsValid() || fv.Kind() != reflect.Func || unnamed(fv.Type()) != sig {
		return errors.SignatureMismatch("delegate %T does not match %s.%s %s",
			fn, ireflect.TypeName(m.typ), method, sig)
	}
	return m.register(method, func(a *advice) { a.delegate = fv })
}

// Reset drops every piece of advice registered for method.
func (m *Manager) Reset(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.advice, method)
}

func (m *Manager) adviceFor(method string) *advice {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a, ok := m.advice[method]; ok {
		return a.clone()
	}
	return &advice{}
}

// dropReceiver turns a method expression type into a method value type.
func dropReceiver(ft reflect.Type) reflect.Type {
	in := make([]reflect.Type, 0, ft.NumIn()-1)
	for i := 1; i < ft.NumIn(); i++ {
		in = append(in, ft.In(i))
	}
	return reflect.FuncOf(in, outs(ft), ft.IsVariadic())
}

// unnamed strips the name of a func type so signatures compare structurally.
func unnamed(ft reflect.Type) reflect.Type {
	if ft.Kind() != reflect.Func {
		return ft
	}
	in := make([]reflect.Type, ft.NumIn())
	for i := range in {
		in[i] = ft.In(i)
	}
	return reflect.FuncOf(in, outs(ft), ft.IsVariadic())
}

func outs(ft reflect.Type) []reflect.Type {
	out := make([]reflect.Type, ft.NumOut())
	for i := range out {
		out[i] = ft.Out(i)
	}
	return out
}
