// Package option provides Option, a value that is present, absent, or failed.
//
// Expected absence (an optional dependency that was never bound) is modelled
// as an empty Option instead of an error; failures carry the error that
// prevented the value from being produced.
package option

import (
	"github.com/kochabonline/hartshorn/core/reflect"
)

// Option holds either a value, nothing, or an error.
type Option[T any] struct {
	value   T
	err     error
	present bool
}

// Of wraps v. A nil pointer, map, slice, func, chan or interface yields an empty Option.
func Of[T any](v T) Option[T] {
	if reflect.IsNil(any(v)) {
		return Option[T]{}
	}
	return Option[T]{value: v, present: true}
}

// Empty returns an Option without a value.
func Empty[T any]() Option[T] {
	return Option[T]{}
}

// Failed returns an empty Option carrying err.
func Failed[T any](err error) Option[T] {
	return Option[T]{err: err}
}

// From builds an Option from the usual (value, error) pair.
func From[T any](v T, err error) Option[T] {
	if err != nil {
		return Failed[T](err)
	}
	return Of(v)
}

func (o Option[T]) Present() bool { return o.present }

func (o Option[T]) Absent() bool { return !o.present }

func (o Option[T]) Failed() bool { return o.err != nil }

func (o Option[T]) Err() error { return o.err }

// Get returns the value and whether it was present.
func (o Option[T]) Get() (T, bool) {
	return o.value, o.present
}

// Unwrap returns the value, or the zero value together with the carried error.
func (o Option[T]) Unwrap() (T, error) {
	return o.value, o.err
}

func (o Option[T]) OrElse(fallback T) T {
	if o.present {
		return o.value
	}
	return fallback
}

func (o Option[T]) OrElseGet(fn func() T) T {
	if o.present {
		return o.value
	}
	return fn()
}

func (o Option[T]) IfPresent(fn func(T)) {
	if o.present {
		fn(o.value)
	}
}

// Filter keeps the value only if pred accepts it. Errors are preserved.
func (o Option[T]) Filter(pred func(T) bool) Option[T] {
	if !o.present || pred(o.value) {
		return o
	}
	return Option[T]{}
}

// Map transforms a present value. Absence and errors pass through.
func Map[T, U any](o Option[T], fn func(T) U) Option[U] {
	if !o.present {
		return Option[U]{err: o.err}
	}
	return Of(fn(o.value))
}

// FlatMap transforms a present value with a function that itself may fail.
func FlatMap[T, U any](o Option[T], fn func(T) Option[U]) Option[U] {
	if !o.present {
		return Option[U]{err: o.err}
	}
	return fn(o.value)
}
