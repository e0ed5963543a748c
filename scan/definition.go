// Package scan discovers component definitions registered at init time and
// binds them into an application context.
package scan

import (
	"reflect"
	"slices"
	"sync"

	"github.com/kochabonline/hartshorn/errors"
	ireflect "github.com/kochabonline/hartshorn/core/reflect"
	"github.com/kochabonline/hartshorn/ioc"
)

type Kind string

const (
	KindComponent     Kind = "component"
	KindService       Kind = "service"
	KindConfiguration Kind = "configuration"
)

// Definition describes a component type to bind during bootstrap.
type Definition struct {
	Type        reflect.Type
	Kind        Kind
	Name        string
	Priority    int
	Lifecycle   ioc.Lifecycle
	Lazy        bool
	Exposes     []reflect.Type
	Constructor any
}

// Key returns the key the definition is bound to.
func (d Definition) Key() ioc.Key {
	return ioc.TypeKey(d.Type).Named(d.Name)
}

// Package returns the import path of the defined type.
func (d Definition) Package() string {
	return ireflect.PkgPath(d.Type)
}

func (d Definition) String() string {
	return string(d.Kind) + " " + d.Key().String()
}

func (d Definition) validate() error {
	if d.Type == nil {
		return errors.InvalidProvider("definition without type")
	}
	if d.Constructor == nil && !ireflect.IsStructLike(d.Type) {
		return errors.InvalidProvider("%s is not a struct and has no constructor", ireflect.TypeName(d.Type))
	}
	for _, iface := range d.Exposes {
		if iface.Kind() != reflect.Interface || !d.Type.Implements(iface) {
			return errors.InvalidProvider("%s does not implement %s", ireflect.TypeName(d.Type), ireflect.TypeName(iface))
		}
	}
	return nil
}

type DefinitionOption func(*Definition)

func Named(name string) DefinitionOption {
	return func(d *Definition) {
		d.Name = name
	}
}

func WithPriority(priority int) DefinitionOption {
	return func(d *Definition) {
		d.Priority = priority
	}
}

func Prototype() DefinitionOption {
	return func(d *Definition) {
		d.Lifecycle = ioc.Prototype
	}
}

// Lazy keeps a singleton from being created during activation.
func Lazy() DefinitionOption {
	return func(d *Definition) {
		d.Lazy = true
	}
}

// Exposes additionally binds the component under interface I.
func Exposes[I any]() DefinitionOption {
	return func(d *Definition) {
		d.Exposes = append(d.Exposes, reflect.TypeFor[I]())
	}
}

// WithConstructor builds the component with fn instead of field injection alone.
func WithConstructor(fn any) DefinitionOption {
	return func(d *Definition) {
		d.Constructor = fn
	}
}

func define[T any](kind Kind, opts []DefinitionOption) Definition {
	d := Definition{
		Type:      reflect.TypeFor[T](),
		Kind:      kind,
		Priority:  ioc.DefaultPriority,
		Lifecycle: ioc.Singleton,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// Component defines a general purpose component.
func Component[T any](opts ...DefinitionOption) Definition {
	return define[T](KindComponent, opts)
}

// Service defines a component holding business logic.
func Service[T any](opts ...DefinitionOption) Definition {
	return define[T](KindService, opts)
}

// Configuration defines a component whose exported Provide* methods become providers.
func Configuration[T any](opts ...DefinitionOption) Definition {
	return define[T](KindConfiguration, opts)
}

// Catalog collects definitions, typically from init functions.
type Catalog struct {
	mu   sync.RWMutex
	defs []Definition
}

func NewCatalog() *Catalog {
	return &Catalog{}
}

// Add validates and appends definitions.
func (c *Catalog) Add(defs ...Definition) error {
	for _, d := range defs {
		if err := d.validate(); err != nil {
			return err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defs = append(c.defs, defs...)
	return nil
}

// Definitions returns a copy of every definition in registration order.
func (c *Catalog) Definitions() []Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.defs)
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.defs)
}

// Default is the catalog filled by Register.
var Default = NewCatalog()

// Register adds definitions to the Default catalog. It panics on an invalid
// definition and is meant to be called from init functions.
func Register(defs ...Definition) {
	if err := Default.Add(defs...); err != nil {
		panic(err)
	}
}
