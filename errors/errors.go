package errors

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Status is the serializable part of an Error.
type Status struct {
	Code     int32             `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Error is the structured error used across the framework. Resolution, proxy,
// scanning and component failures are all reported as *Error so callers can
// branch on Code; the original failure stays reachable through Unwrap.
type Error struct {
	Status
	cause error
}

// Error renders "[code] message {k=v, ...}: cause" with metadata keys sorted.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(strconv.Itoa(int(e.Code)))
	b.WriteString("] ")
	b.WriteString(e.Message)

	if len(e.Metadata) > 0 {
		b.WriteString(" {")
		for i, k := range slices.Sorted(maps.Keys(e.Metadata)) {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(e.Metadata[k])
		}
		b.WriteByte('}')
	}

	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether err is an *Error with the same code.
// A target without a message matches any message, which is how the
// sentinel values in codes.go are compared.
func (e *Error) Is(err error) bool {
	var ge *Error
	if !errors.As(err, &ge) || e.Code != ge.Code {
		return false
	}
	return e.Message == "" || ge.Message == "" || e.Message == ge.Message
}

// WithMetadata returns a copy of e carrying m in addition to its metadata.
func (e *Error) WithMetadata(m map[string]string) *Error {
	if len(m) == 0 {
		return e
	}
	err := e.clone()
	if err.Metadata == nil {
		err.Metadata = make(map[string]string, len(m))
	}
	maps.Copy(err.Metadata, m)
	return err
}

// With returns a copy of e carrying a single metadata pair.
func (e *Error) With(key, value string) *Error {
	return e.WithMetadata(map[string]string{key: value})
}

// WithCause returns a copy of e wrapping cause.
func (e *Error) WithCause(cause error) *Error {
	if cause == nil {
		return e
	}
	err := e.clone()
	err.cause = cause
	return err
}

func (e *Error) clone() *Error {
	c := *e
	if e.Metadata != nil {
		c.Metadata = maps.Clone(e.Metadata)
	}
	return &c
}

// New creates an Error; format is only expanded when args are given so
// messages containing '%' can be passed through verbatim.
func New(code int, format string, args ...any) *Error {
	message := format
	if len(args) > 0 {
		message = fmt.Sprintf(format, args...)
	}
	return &Error{Status: Status{Code: int32(code), Message: message}}
}

// Wrap annotates err with a code and message, or returns nil for a nil err.
// The nil is a typed *Error: callers returning error must check err first,
// otherwise the interface they return is non-nil.
func Wrap(err error, code int, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return New(code, format, args...).WithCause(err)
}

// FromError returns the first *Error in err's chain, or wraps err with UnknownCode.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}
	return New(UnknownCode, "%v", err).WithCause(err)
}

// Code returns the code carried by err, or UnknownCode when err is not an *Error.
func Code(err error) int32 {
	if err == nil {
		return 0
	}
	return FromError(err).Code
}

// Is forwards to the standard library so callers only import one errors package.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func Join(errs ...error) error {
	return errors.Join(errs...)
}
