package ioc

import (
	"context"
	"fmt"
	"reflect"

	"github.com/kochabonline/hartshorn/errors"
	ireflect "github.com/kochabonline/hartshorn/core/reflect"
)

// Lifecycle controls whether a provider's result is shared.
type Lifecycle int

const (
	// Singleton results are created once per provider and cached by the context.
	Singleton Lifecycle = iota
	// Prototype results are created on every request.
	Prototype
)

func (l Lifecycle) String() string {
	switch l {
	case Singleton:
		return "singleton"
	case Prototype:
		return "prototype"
	default:
		return fmt.Sprintf("lifecycle(%d)", int(l))
	}
}

// ProviderKind describes how a provider produces its instance. It is informational.
type ProviderKind string

const (
	KindInstance    ProviderKind = "instance"
	KindSupplier    ProviderKind = "supplier"
	KindConstructor ProviderKind = "constructor"
	KindMethod      ProviderKind = "method"
	KindStruct      ProviderKind = "struct"
)

// Provider is an immutable factory producing instances for a binding.
// Implementations must be pointer types: singleton caching is keyed by provider identity.
type Provider interface {
	Provide(ctx context.Context, app *ApplicationContext) (any, error)
	Lifecycle() Lifecycle
	Kind() ProviderKind
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	appType     = reflect.TypeOf((*ApplicationContext)(nil))

	initializerType = reflect.TypeOf((*Initializer)(nil)).Elem()
)

// ── instance ──────────────────────────────────────────────────────────────────

type instanceProvider struct {
	value any
}

// Instance returns a provider for a pre-built value. The value bypasses injection
// and post-processing and is never destroyed by the context.
func Instance(v any) Provider {
	return &instanceProvider{value: v}
}

func (p *instanceProvider) Provide(context.Context, *ApplicationContext) (any, error) {
	return p.value, nil
}

func (p *instanceProvider) Lifecycle() Lifecycle { return Singleton }

func (p *instanceProvider) Kind() ProviderKind { return KindInstance }

// ── supplier ──────────────────────────────────────────────────────────────────

type supplierProvider struct {
	fn        func(ctx context.Context, app *ApplicationContext) (any, error)
	lifecycle Lifecycle
}

// Supplier returns a provider backed by a typed factory function.
func Supplier[T any](fn func(ctx context.Context, app *ApplicationContext) (T, error), lifecycle Lifecycle) Provider {
	return &supplierProvider{
		fn: func(ctx context.Context, app *ApplicationContext) (any, error) {
			v, err := fn(ctx, app)
			if err != nil {
				return nil, err
			}
			return v, nil
		},
		lifecycle: lifecycle,
	}
}

func (p *supplierProvider) Provide(ctx context.Context, app *ApplicationContext) (any, error) {
	return p.fn(ctx, app)
}

func (p *supplierProvider) Lifecycle() Lifecycle { return p.lifecycle }

func (p *supplierProvider) Kind() ProviderKind { return KindSupplier }

// ── constructor ───────────────────────────────────────────────────────────────

// ConstructorProvider calls a plain Go function, resolving each parameter by type.
type ConstructorProvider struct {
	fn        reflect.Value
	out       reflect.Type
	lifecycle Lifecycle
}

// Constructor wraps fn, which must be a non-variadic function returning T or (T, error).
// Parameters of type context.Context and *ApplicationContext receive the current
// request context and the application context; all others are resolved by type.
func Constructor(fn any, lifecycle Lifecycle) (*ConstructorProvider, error) {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return nil, errors.InvalidProvider("constructor must be a function, got %T", fn)
	}
	out, err := resultType(v.Type())
	if err != nil {
		return nil, err
	}
	return &ConstructorProvider{fn: v, out: out, lifecycle: lifecycle}, nil
}

// Out returns the type produced by the constructor.
func (p *ConstructorProvider) Out() reflect.Type { return p.out }

func (p *ConstructorProvider) Provide(ctx context.Context, app *ApplicationContext) (any, error) {
	args, err := app.arguments(ctx, p.fn.Type())
	if err != nil {
		return nil, err
	}
	return unpack(p.fn.Call(args))
}

func (p *ConstructorProvider) Lifecycle() Lifecycle { return p.lifecycle }

func (p *ConstructorProvider) Kind() ProviderKind { return KindConstructor }

// ── method ────────────────────────────────────────────────────────────────────

type methodProvider struct {
	receiver  Key
	method    string
	out       reflect.Type
	lifecycle Lifecycle
}

// Method returns a provider that resolves receiver and invokes its exported method
// name, resolving the method's parameters by type.
func Method(receiver Key, name string, lifecycle Lifecycle) (Provider, error) {
	if receiver.IsZero() {
		return nil, errors.InvalidProvider("method provider %s needs a receiver key", name)
	}
	m, ok := receiver.Type().MethodByName(name)
	if !ok {
		return nil, errors.InvalidProvider("%s has no exported method %s", receiver, name)
	}
	ft := m.Type
	if receiver.Type().Kind() != reflect.Interface {
		ft = methodValueType(ft)
	}
	out, err := resultType(ft)
	if err != nil {
		return nil, errors.InvalidProvider("method %s.%s", receiver, name).WithCause(err)
	}
	return &methodProvider{receiver: receiver, method: name, out: out, lifecycle: lifecycle}, nil
}

func (p *methodProvider) Provide(ctx context.Context, app *ApplicationContext) (any, error) {
	recv, err := app.Get(ctx, p.receiver)
	if err != nil {
		return nil, err
	}
	if recv == nil {
		return nil, errors.Resolution("receiver %s resolved to nil", p.receiver)
	}
	m := reflect.ValueOf(recv).MethodByName(p.method)
	if !m.IsValid() {
		return nil, errors.Resolution("%T has no method %s", recv, p.method)
	}
	args, err := app.arguments(ctx, m.Type())
	if err != nil {
		return nil, err
	}
	return unpack(m.Call(args))
}

func (p *methodProvider) Lifecycle() Lifecycle { return p.lifecycle }

func (p *methodProvider) Kind() ProviderKind { return KindMethod }

// ── struct ────────────────────────────────────────────────────────────────────

type structProvider struct {
	typ       reflect.Type
	lifecycle Lifecycle
}

// Struct returns a provider that allocates t (a struct or pointer to struct)
// and populates its `inject` and `value` tagged fields.
func Struct(t reflect.Type, lifecycle Lifecycle) (Provider, error) {
	if !ireflect.IsStructLike(t) {
		return nil, errors.InvalidProvider("%s is not a struct type", ireflect.TypeName(t))
	}
	return &structProvider{typ: t, lifecycle: lifecycle}, nil
}

func (p *structProvider) Provide(ctx context.Context, app *ApplicationContext) (any, error) {
	elem := p.typ
	if elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}
	ptr := reflect.New(elem)
	if err := app.injectFields(ctx, ptr.Elem()); err != nil {
		return nil, err
	}
	if p.typ.Kind() == reflect.Ptr {
		return ptr.Interface(), nil
	}
	return ptr.Elem().Interface(), nil
}

func (p *structProvider) Lifecycle() Lifecycle { return p.lifecycle }

func (p *structProvider) Kind() ProviderKind { return KindStruct }

// ── helpers ───────────────────────────────────────────────────────────────────

// resultType validates a T or (T, error) result list and returns T.
func resultType(ft reflect.Type) (reflect.Type, error) {
	if ft.IsVariadic() {
		return nil, errors.InvalidProvider("variadic function %s is not supported", ft)
	}
	switch ft.NumOut() {
	case 1:
		if ft.Out(0) == ireflect.ErrorType() {
			return nil, errors.InvalidProvider("function %s returns only an error", ft)
		}
		return ft.Out(0), nil
	case 2:
		if ft.Out(1) != ireflect.ErrorType() {
			return nil, errors.InvalidProvider("second result of %s must be error", ft)
		}
		return ft.Out(0), nil
	default:
		return nil, errors.InvalidProvider("function %s must return T or (T, error)", ft)
	}
}

// methodValueType drops the receiver from a method expression type.
func methodValueType(ft reflect.Type) reflect.Type {
	in := make([]reflect.Type, 0, ft.NumIn()-1)
	for i := 1; i < ft.NumIn(); i++ {
		in = append(in, ft.In(i))
	}
	out := make([]reflect.Type, 0, ft.NumOut())
	for i := range ft.NumOut() {
		out = append(out, ft.Out(i))
	}
	return reflect.FuncOf(in, out, ft.IsVariadic())
}

func unpack(out []reflect.Value) (any, error) {
	if len(out) == 2 && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}
	v := out[0]
	if ireflect.IsNilable(v.Kind()) && v.IsNil() {
		return nil, nil
	}
	return v.Interface(), nil
}
