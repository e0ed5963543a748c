package reflect

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var (
	ErrTagTargetMustBePointer = errors.New("target must be a pointer")
	ErrTagTargetMustNotBeNil  = errors.New("target must not be nil")
	ErrTagUnsupportedType     = errors.New("unsupported type")
)

var durationType = reflect.TypeOf(time.Duration(0))

// TagOption configuration options
type TagOption struct {
	tag string // tag name for default values
}

// WithTag sets the tag name
func WithTag(tag string) func(*TagOption) {
	return func(c *TagOption) {
		c.tag = tag
	}
}

// validateTarget validates whether the target object is valid
func validateTarget(target any) (reflect.Type, reflect.Value, error) {
	valueOf := reflect.ValueOf(target)

	if valueOf.Kind() != reflect.Ptr {
		return nil, reflect.Value{}, ErrTagTargetMustBePointer
	}

	if valueOf.IsNil() {
		return nil, reflect.Value{}, ErrTagTargetMustNotBeNil
	}

	return valueOf.Type().Elem(), valueOf.Elem(), nil
}

// SetDefaultTag fills zero-valued struct fields from their `default` tag.
// Nested structs are walked even when they carry no tag themselves.
func SetDefaultTag(target any, opts ...func(*TagOption)) error {
	t, v, err := validateTarget(target)
	if err != nil {
		return err
	}
	if t.Kind() != reflect.Struct {
		return ErrTagUnsupportedType
	}

	option := &TagOption{
		tag: "default",
	}

	for _, opt := range opts {
		opt(option)
	}

	return setStructDefaults(t, v, option.tag)
}

func setStructDefaults(t reflect.Type, v reflect.Value, tagName string) error {
	for i := range t.NumField() {
		field := t.Field(i)
		fieldValue := v.Field(i)
		if !field.IsExported() || !fieldValue.CanSet() {
			continue
		}

		tagValue := field.Tag.Get(tagName)
		if field.Type.Kind() == reflect.Struct {
			if err := setStructDefaults(field.Type, fieldValue, tagName); err != nil {
				return err
			}
			continue
		}

		if tagValue == "" || !fieldValue.IsZero() {
			continue
		}

		if err := SetString(fieldValue, tagValue); err != nil {
			return err
		}
	}
	return nil
}

// SetString parses str according to the kind of value and stores it.
// Durations accept both "1m30s" and plain nanosecond integers.
func SetString(value reflect.Value, str string) error {
	if value.Type() == durationType {
		d, err := time.ParseDuration(str)
		if err != nil {
			n, nerr := strconv.ParseInt(str, 10, 64)
			if nerr != nil {
				return err
			}
			d = time.Duration(n)
		}
		value.SetInt(int64(d))
		return nil
	}

	switch value.Kind() {
	case reflect.String:
		value.SetString(str)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		parsed, err := strconv.ParseInt(str, 10, value.Type().Bits())
		if err != nil {
			return err
		}
		value.SetInt(parsed)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		parsed, err := strconv.ParseUint(str, 10, value.Type().Bits())
		if err != nil {
			return err
		}
		value.SetUint(parsed)
	case reflect.Float32, reflect.Float64:
		parsed, err := strconv.ParseFloat(str, value.Type().Bits())
		if err != nil {
			return err
		}
		value.SetFloat(parsed)
	case reflect.Bool:
		parsed, err := strconv.ParseBool(str)
		if err != nil {
			return err
		}
		value.SetBool(parsed)
	case reflect.Ptr:
		elem := reflect.New(value.Type().Elem())
		if err := SetString(elem.Elem(), str); err != nil {
			return err
		}
		value.Set(elem)
	case reflect.Slice:
		return setSlice(value, str)
	default:
		return ErrTagUnsupportedType
	}
	return nil
}

func setSlice(value reflect.Value, str string) error {
	if str == "" {
		return nil
	}

	parts := strings.Split(str, ",")
	slice := reflect.MakeSlice(value.Type(), len(parts), len(parts))
	for i, part := range parts {
		if err := SetString(slice.Index(i), strings.TrimSpace(part)); err != nil {
			return err
		}
	}

	value.Set(slice)
	return nil
}
