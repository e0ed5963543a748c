package ioc

import (
	"reflect"
	"strings"

	ireflect "github.com/kochabonline/hartshorn/core/reflect"
)

// Scope narrows the visibility of a binding. The empty scope is the application scope.
type Scope string

const ApplicationScope Scope = ""

// Key identifies a requested abstraction: a type, an optional qualifier name
// and a scope. Keys are comparable values and are used directly as map keys.
type Key struct {
	typ   reflect.Type
	name  string
	scope Scope
}

// KeyOf returns the unnamed application-scoped key for T.
func KeyOf[T any]() Key {
	return Key{typ: reflect.TypeFor[T]()}
}

// TypeKey returns the unnamed application-scoped key for t.
func TypeKey(t reflect.Type) Key {
	return Key{typ: t}
}

// Named returns a copy of k qualified by name.
func (k Key) Named(name string) Key {
	k.name = name
	return k
}

// In returns a copy of k bound to scope.
func (k Key) In(scope Scope) Key {
	k.scope = scope
	return k
}

func (k Key) Type() reflect.Type { return k.typ }

func (k Key) Name() string { return k.name }

func (k Key) Scope() Scope { return k.scope }

func (k Key) IsZero() bool { return k.typ == nil }

func (k Key) String() string {
	var b strings.Builder
	b.WriteString(ireflect.TypeName(k.typ))
	if k.name != "" {
		b.WriteByte('#')
		b.WriteString(k.name)
	}
	if k.scope != ApplicationScope {
		b.WriteByte('@')
		b.WriteString(string(k.scope))
	}
	return b.String()
}

// parent is the key consulted when a scoped key has no binding of its own.
func (k Key) parent() (Key, bool) {
	if k.scope == ApplicationScope {
		return Key{}, false
	}
	return k.In(ApplicationScope), true
}
