package errors

const (
	UnknownCode = 500

	CodeApplication        = 1000
	CodeMissingBinding     = 1001
	CodeCircularDependency = 1002
	CodeInvalidProvider    = 1003
	CodePriorityTaken      = 1004
	CodeResolution         = 1005

	CodeProxy              = 1100
	CodeMethodNotProxyable = 1101
	CodeAbstractMethod     = 1102
	CodeSignatureMismatch  = 1103

	CodeComponent = 1200
	CodeConfig    = 1300
	CodeCache     = 1400
	CodeEvent     = 1500
)

// Sentinels for errors.Is comparisons. They carry no message so any error
// with the same code matches.
var (
	ErrApplication        = &Error{Status: Status{Code: CodeApplication}}
	ErrMissingBinding     = &Error{Status: Status{Code: CodeMissingBinding}}
	ErrCircularDependency = &Error{Status: Status{Code: CodeCircularDependency}}
	ErrInvalidProvider    = &Error{Status: Status{Code: CodeInvalidProvider}}
	ErrPriorityTaken      = &Error{Status: Status{Code: CodePriorityTaken}}
	ErrResolution         = &Error{Status: Status{Code: CodeResolution}}
	ErrProxy              = &Error{Status: Status{Code: CodeProxy}}
	ErrMethodNotProxyable = &Error{Status: Status{Code: CodeMethodNotProxyable}}
	ErrAbstractMethod     = &Error{Status: Status{Code: CodeAbstractMethod}}
	ErrSignatureMismatch  = &Error{Status: Status{Code: CodeSignatureMismatch}}
	ErrComponent          = &Error{Status: Status{Code: CodeComponent}}
	ErrConfig             = &Error{Status: Status{Code: CodeConfig}}
	ErrCache              = &Error{Status: Status{Code: CodeCache}}
	ErrEvent              = &Error{Status: Status{Code: CodeEvent}}
)

func MissingBinding(format string, args ...any) *Error {
	return New(CodeMissingBinding, format, args...)
}

func CircularDependency(format string, args ...any) *Error {
	return New(CodeCircularDependency, format, args...)
}

func InvalidProvider(format string, args ...any) *Error {
	return New(CodeInvalidProvider, format, args...)
}

func PriorityTaken(format string, args ...any) *Error {
	return New(CodePriorityTaken, format, args...)
}

func Resolution(format string, args ...any) *Error {
	return New(CodeResolution, format, args...)
}

func Proxy(format string, args ...any) *Error {
	return New(CodeProxy, format, args...)
}

func MethodNotProxyable(format string, args ...any) *Error {
	return New(CodeMethodNotProxyable, format, args...)
}

func AbstractMethod(format string, args ...any) *Error {
	return New(CodeAbstractMethod, format, args...)
}

func SignatureMismatch(format string, args ...any) *Error {
	return New(CodeSignatureMismatch, format, args...)
}

func Component(format string, args ...any) *Error {
	return New(CodeComponent, format, args...)
}

func Config(format string, args ...any) *Error {
	return New(CodeConfig, format, args...)
}

func Cache(format string, args ...any) *Error {
	return New(CodeCache, format, args...)
}

func Event(format string, args ...any) *Error {
	return New(CodeEvent, format, args...)
}
