package proxy

import (
	"reflect"
	"strings"

	"github.com/kochabonline/hartshorn/errors"
	ireflect "github.com/kochabonline/hartshorn/core/reflect"
)

// FuncMethod is the method name under which Wrap registers a bare function.
const FuncMethod = "Func"

// Stub is embedded by proxy stub types so the manager can be recovered from
// the proxy with ManagerOf.
//
//	type repositoryStub struct {
//		proxy.Stub
//		FindFn func(id int) string
//	}
//
//	func (s *repositoryStub) Find(id int) string { return s.FindFn(id) }
type Stub struct {
	manager *Manager
}

func (s *Stub) ProxyManager() *Manager { return s.manager }

func (s *Stub) bindManager(m *Manager) { s.manager = m }

type managed interface {
	ProxyManager() *Manager
}

type bindable interface {
	bindManager(m *Manager)
}

// ManagerOf returns the manager behind a proxy.
func ManagerOf(v any) (*Manager, bool) {
	p, ok := v.(managed)
	if !ok || ireflect.IsNil(v) {
		return nil, false
	}
	m := p.ProxyManager()
	return m, m != nil
}

// Func returns a function of type F that routes calls of method through m.
// F must have the method's signature.
func Func[F any](m *Manager, method string) (F, error) {
	var zero F
	fv, err := m.funcOf(method, reflect.TypeFor[F]())
	if err != nil {
		return zero, err
	}
	return fv.Interface().(F), nil
}

func (m *Manager) funcOf(method string, ft reflect.Type) (reflect.Value, error) {
	sig, ok := m.signatures[method]
	if !ok {
		return reflect.Value{}, errors.MethodNotProxyable("%s.%s cannot be intercepted", ireflect.TypeName(m.typ), method)
	}
	if ft.Kind() != reflect.Func || unnamed(ft) != sig {
		return reflect.Value{}, errors.SignatureMismatch("%s does not match %s.%s %s", ft, ireflect.TypeName(m.typ), method, sig)
	}
	return reflect.MakeFunc(ft, func(in []reflect.Value) []reflect.Value {
		args := make([]any, len(in))
		for i, v := range in {
			args[i] = v.Interface()
		}
		results, err := m.invoke(method, sig, args)
		return pack(sig, results, err)
	}), nil
}

// Populate fills the func fields of the struct pointed to by stub with functions
// routed through m. A field maps to the method named by its `proxy` tag, or to
// its own name without an "Fn" suffix. Fields tagged `proxy:"-"` are skipped.
func Populate(m *Manager, stub any) error {
	v := reflect.ValueOf(stub)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return errors.Proxy("stub must be a non-nil struct pointer, got %T", stub)
	}
	if b, ok := stub.(bindable); ok {
		b.bindManager(m)
	}

	sv := v.Elem()
	st := sv.Type()
	for i := range st.NumField() {
		f := st.Field(i)
		if !f.IsExported() || f.Type.Kind() != reflect.Func {
			continue
		}
		method := f.Tag.Get("proxy")
		if method == "-" {
			continue
		}
		if method == "" {
			method = strings.TrimSuffix(f.Name, "Fn")
		}
		fn, err := m.funcOf(method, f.Type)
		if err != nil {
			return err
		}
		sv.Field(i).Set(fn)
	}
	return nil
}

// Wrap proxies a bare function. Advice is registered on the returned manager
// under FuncMethod; the returned function routes every call through it.
func Wrap[F any](fn F, opts ...Option) (F, *Manager, error) {
	var zero F
	ft := reflect.TypeFor[F]()
	fv := reflect.ValueOf(fn)
	if ft.Kind() != reflect.Func || !fv.IsValid() || fv.IsNil() {
		return zero, nil, errors.Proxy("wrap needs a non-nil function, got %T", fn)
	}

	m := newManager(ft, opts...)
	m.fn = fv
	m.signatures[FuncMethod] = unnamed(ft)

	wrapped, err := Func[F](m, FuncMethod)
	if err != nil {
		return zero, nil, err
	}
	return wrapped, m, nil
}
