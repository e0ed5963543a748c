package reflect

import (
	"reflect"
	"strings"
)

// TypeName renders t as "pkg/path.Name", keeping pointer, slice and map markers.
// Unnamed types fall back to reflect's own String form.
func TypeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind() {
	case reflect.Ptr:
		return "*" + TypeName(t.Elem())
	case reflect.Slice:
		return "[]" + TypeName(t.Elem())
	case reflect.Map:
		return "map[" + TypeName(t.Key()) + "]" + TypeName(t.Elem())
	}
	if t.Name() == "" || t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// PkgPath returns the package path of the named type behind t, unwrapping pointers.
func PkgPath(t reflect.Type) string {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	return t.PkgPath()
}

// IsNilable reports whether values of kind k can hold nil.
func IsNilable(k reflect.Kind) bool {
	switch k {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
		return true
	}
	return false
}

// IsNil reports whether v is nil, including typed nils stored in an interface.
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return IsNilable(rv.Kind()) && rv.IsNil()
}

// IsStructLike reports whether t is a struct or a pointer to a struct.
func IsStructLike(t reflect.Type) bool {
	if t == nil {
		return false
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}

// TagOptions splits a `name,opt1,opt2` tag into its name and option set.
func TagOptions(tag string) (string, map[string]bool) {
	parts := strings.Split(tag, ",")
	opts := make(map[string]bool, len(parts)-1)
	for _, p := range parts[1:] {
		if p = strings.TrimSpace(p); p != "" {
			opts[p] = true
		}
	}
	return strings.TrimSpace(parts[0]), opts
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// ErrorType is the reflect.Type of the error interface.
func ErrorType() reflect.Type {
	return errorType
}

// ReturnsError reports whether the last result of ft is error.
func ReturnsError(ft reflect.Type) bool {
	n := ft.NumOut()
	return n > 0 && ft.Out(n-1) == errorType
}
