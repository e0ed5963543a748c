package ioc

import (
	"context"
	"reflect"

	"github.com/kochabonline/hartshorn/errors"
	ireflect "github.com/kochabonline/hartshorn/core/reflect"
	"github.com/kochabonline/hartshorn/option"
)

// Binder is a fluent builder for a single binding of T.
//
//	ioc.Bind[Repository](app).Named("primary").Priority(10).ToConstructor(NewSQLRepository)
type Binder[T any] struct {
	app       *ApplicationContext
	key       Key
	priority  int
	lifecycle Lifecycle
	replace   bool
}

func Bind[T any](app *ApplicationContext) *Binder[T] {
	return &Binder[T]{
		app:       app,
		key:       KeyOf[T](),
		priority:  DefaultPriority,
		lifecycle: Singleton,
	}
}

func (b *Binder[T]) Named(name string) *Binder[T] {
	b.key = b.key.Named(name)
	return b
}

func (b *Binder[T]) Scope(scope Scope) *Binder[T] {
	b.key = b.key.In(scope)
	return b
}

func (b *Binder[T]) Priority(priority int) *Binder[T] {
	b.priority = priority
	return b
}

func (b *Binder[T]) Singleton() *Binder[T] {
	b.lifecycle = Singleton
	return b
}

func (b *Binder[T]) Prototype() *Binder[T] {
	b.lifecycle = Prototype
	return b
}

// Replace makes the terminal call overwrite an existing binding at the same priority.
func (b *Binder[T]) Replace() *Binder[T] {
	b.replace = true
	return b
}

func (b *Binder[T]) Key() Key { return b.key }

func (b *Binder[T]) To(p Provider) error {
	if b.replace {
		return b.app.Replace(b.key, b.priority, p)
	}
	return b.app.Register(b.key, b.priority, p)
}

func (b *Binder[T]) ToInstance(v T) error {
	return b.To(Instance(v))
}

func (b *Binder[T]) ToSupplier(fn func(ctx context.Context, app *ApplicationContext) (T, error)) error {
	return b.To(Supplier(fn, b.lifecycle))
}

// ToConstructor binds fn, whose result must be assignable to T.
func (b *Binder[T]) ToConstructor(fn any) error {
	p, err := Constructor(fn, b.lifecycle)
	if err != nil {
		return err
	}
	if !p.Out().AssignableTo(b.key.Type()) {
		return errors.InvalidProvider("constructor returns %s, not assignable to %s",
			ireflect.TypeName(p.Out()), b.key)
	}
	return b.To(p)
}

// ToType binds a struct type t (or a pointer to one) built through field injection.
func (b *Binder[T]) ToType(t reflect.Type) error {
	p, err := Struct(t, b.lifecycle)
	if err != nil {
		return err
	}
	if !t.AssignableTo(b.key.Type()) {
		return errors.InvalidProvider("%s is not assignable to %s", ireflect.TypeName(t), b.key)
	}
	return b.To(p)
}

// Get resolves the unnamed binding of T.
func Get[T any](ctx context.Context, app *ApplicationContext) (T, error) {
	return GetNamed[T](ctx, app, "")
}

// GetNamed resolves the binding of T qualified by name.
func GetNamed[T any](ctx context.Context, app *ApplicationContext, name string) (T, error) {
	var zero T
	key := KeyOf[T]().Named(name)
	v, err := app.Get(ctx, key)
	if err != nil || v == nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, errors.Resolution("%s resolved to %T", key, v)
	}
	return t, nil
}

// MustGet is like Get but panics on error.
func MustGet[T any](ctx context.Context, app *ApplicationContext) T {
	v, err := Get[T](ctx, app)
	if err != nil {
		panic(err)
	}
	return v
}

// Lookup resolves T as an option: empty when T is not bound, failed when
// resolution itself fails.
func Lookup[T any](ctx context.Context, app *ApplicationContext) option.Option[T] {
	if !app.Contains(KeyOf[T]()) {
		return option.Empty[T]()
	}
	v, err := Get[T](ctx, app)
	if err != nil {
		return option.Failed[T](err)
	}
	return option.Of(v)
}
