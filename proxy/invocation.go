package proxy

import (
	"context"
	"fmt"
	"reflect"

	"github.com/kochabonline/hartshorn/errors"
	ireflect "github.com/kochabonline/hartshorn/core/reflect"
)

// Invocation is a single intercepted call travelling through the advice chain.
type Invocation struct {
	Method string
	Args   []any

	manager *Manager
	sig     reflect.Type
	advice  *advice
	pos     int
}

// Manager returns the manager handling the call.
func (inv *Invocation) Manager() *Manager { return inv.manager }

// Context returns the first argument when it is a context.Context.
func (inv *Invocation) Context() context.Context {
	if len(inv.Args) > 0 {
		if ctx, ok := inv.Args[0].(context.Context); ok && ctx != nil {
			return ctx
		}
	}
	return context.Background()
}

// Proceed continues with the next interceptor, or the method body when none is left.
func (inv *Invocation) Proceed() ([]any, error) {
	i := inv.pos
	if i < len(inv.advice.around) {
		inv.pos++
		defer func() { inv.pos = i }()
		return inv.advice.around[i](inv)
	}
	return inv.manager.callTarget(inv)
}

// Call invokes method dynamically. The results exclude a trailing error, which
// is returned separately. Arguments of a variadic method end with a slice.
func (m *Manager) Call(method string, args ...any) ([]any, error) {
	sig, ok := m.signatures[method]
	if !ok {
		return nil, errors.MethodNotProxyable("%s.%s cannot be intercepted", ireflect.TypeName(m.typ), method)
	}
	if len(args) != sig.NumIn() {
		return nil, errors.SignatureMismatch("%s takes %d arguments, got %d", method, sig.NumIn(), len(args))
	}
	for i, arg := range args {
		if arg == nil {
			continue
		}
		if !reflect.TypeOf(arg).AssignableTo(sig.In(i)) {
			return nil, errors.SignatureMismatch("argument %d of %s: %T is not assignable to %s", i, method, arg, sig.In(i))
		}
	}
	return m.invoke(method, sig, args)
}

func (m *Manager) invoke(method string, sig reflect.Type, args []any) (results []any, err error) {
	inv := &Invocation{
		Method:  method,
		Args:    args,
		manager: m,
		sig:     sig,
		advice:  m.adviceFor(method),
	}
	for _, fn := range inv.advice.before {
		fn(inv)
	}

	defer func() {
		if r := recover(); r != nil {
			perr := panicError(method, r)
			for _, fn := range inv.advice.throwing {
				fn(inv, perr)
			}
			panic(r)
		}
	}()

	results, err = inv.Proceed()
	if err != nil {
		for _, fn := range inv.advice.throwing {
			fn(inv, err)
		}
		return nil, err
	}
	for _, fn := range inv.advice.after {
		fn(inv, results)
	}
	return results, nil
}

// callTarget runs the delegate, the target method or the wrapped function.
func (m *Manager) callTarget(inv *Invocation) ([]any, error) {
	var fn reflect.Value
	switch {
	case inv.advice.delegate.IsValid():
		fn = inv.advice.delegate
	case m.target.IsValid():
		fn = m.target.MethodByName(inv.Method)
	case m.fn.IsValid():
		fn = m.fn
	}
	if !fn.IsValid() {
		return nil, errors.AbstractMethod("%s.%s has no implementation", ireflect.TypeName(m.typ), inv.Method)
	}

	in, err := values(inv.sig, inv.Args)
	if err != nil {
		return nil, err
	}
	var out []reflect.Value
	if inv.sig.IsVariadic() {
		out = fn.CallSlice(in)
	} else {
		out = fn.Call(in)
	}
	return split(inv.sig, out)
}

func values(sig reflect.Type, args []any) ([]reflect.Value, error) {
	if len(args) != sig.NumIn() {
		return nil, errors.SignatureMismatch("expected %d arguments, got %d", sig.NumIn(), len(args))
	}
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		pt := sig.In(i)
		if arg == nil {
			in[i] = reflect.Zero(pt)
			continue
		}
		rv := reflect.ValueOf(arg)
		if !rv.Type().AssignableTo(pt) {
			return nil, errors.SignatureMismatch("argument %d: %T is not assignable to %s", i, arg, pt)
		}
		in[i] = rv
	}
	return in, nil
}

func split(sig reflect.Type, out []reflect.Value) ([]any, error) {
	n := len(out)
	var err error
	if ireflect.ReturnsError(sig) {
		n--
		if e := out[n]; !e.IsNil() {
			err = e.Interface().(error)
		}
	}
	results := make([]any, n)
	for i := range n {
		results[i] = out[i].Interface()
	}
	return results, err
}

// pack converts results back into the return values of sig.
func pack(sig reflect.Type, results []any, err error) []reflect.Value {
	hasErr := ireflect.ReturnsError(sig)
	if err != nil && !hasErr {
		panic(err)
	}

	out := make([]reflect.Value, sig.NumOut())
	n := len(out)
	if hasErr {
		n--
		if err != nil {
			out[n] = reflect.ValueOf(&err).Elem()
		} else {
			out[n] = reflect.Zero(sig.Out(n))
		}
	}
	for i := range n {
		rt := sig.Out(i)
		if err != nil || i >= len(results) || results[i] == nil {
			out[i] = reflect.Zero(rt)
			continue
		}
		rv := reflect.ValueOf(results[i])
		if !rv.Type().AssignableTo(rt) {
			panic(errors.SignatureMismatch("result %d: %T is not assignable to %s", i, results[i], rt))
		}
		out[i] = rv
	}
	return out
}

func panicError(method string, r any) error {
	if err, ok := r.(error); ok {
		return errors.Proxy("panic in %s", method).WithCause(err)
	}
	return errors.Proxy("panic in %s: %v", method, fmt.Sprint(r))
}
