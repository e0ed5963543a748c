package proxy

import (
	"reflect"
	"sync"
)

var stubs sync.Map // reflect.Type -> func(*Manager) any

// RegisterStub tells the proxy post-processor how to expose a manager as T.
// It is usually called from an init function next to the interface:
//
//	func init() {
//		proxy.RegisterStub(func(m *proxy.Manager) Repository {
//			s := &repositoryStub{}
//			if err := proxy.Populate(m, s); err != nil {
//				panic(err)
//			}
//			return s
//		})
//	}
func RegisterStub[T any](factory func(m *Manager) T) {
	stubs.Store(reflect.TypeFor[T](), func(m *Manager) any {
		return factory(m)
	})
}

// StubOf builds the stub registered for typ around m.
func StubOf(typ reflect.Type, m *Manager) (any, bool) {
	f, ok := stubs.Load(typ)
	if !ok {
		return nil, false
	}
	return f.(func(*Manager) any)(m), true
}

// HasStub reports whether a stub factory is registered for typ.
func HasStub(typ reflect.Type) bool {
	_, ok := stubs.Load(typ)
	return ok
}
