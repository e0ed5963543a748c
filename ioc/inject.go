package ioc

import (
	"context"
	"reflect"
	"time"

	"github.com/spf13/cast"

	"github.com/kochabonline/hartshorn/errors"
	ireflect "github.com/kochabonline/hartshorn/core/reflect"
)

const (
	injectTag  = "inject"
	valueTag   = "value"
	defaultTag = "default"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Inject populates the `inject` and `value` tagged fields of target, which must
// be a non-nil pointer to a struct. Fields that already hold a value are kept.
//
//	type Service struct {
//		Repo    Repository    `inject:""`
//		Mailer  Mailer        `inject:"smtp,optional"`
//		Timeout time.Duration `value:"service.timeout" default:"5s"`
//	}
func (a *ApplicationContext) Inject(ctx context.Context, target any) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return errors.Resolution("inject target must be a non-nil struct pointer, got %T", target)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return a.injectFields(ctx, v.Elem())
}

// injectInto injects target when it is a struct pointer and ignores anything else.
func (a *ApplicationContext) injectInto(ctx context.Context, target any) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return nil
	}
	return a.injectFields(ctx, v.Elem())
}

func (a *ApplicationContext) injectFields(ctx context.Context, v reflect.Value) error {
	t := v.Type()
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		fv := v.Field(i)
		if !fv.IsZero() {
			continue
		}

		if tag, ok := f.Tag.Lookup(injectTag); ok {
			if err := a.injectField(ctx, f, fv, tag); err != nil {
				return errors.Resolution("inject %s.%s", ireflect.TypeName(t), f.Name).WithCause(err)
			}
			continue
		}
		if tag, ok := f.Tag.Lookup(valueTag); ok {
			if err := a.injectValue(f, fv, tag); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *ApplicationContext) injectField(ctx context.Context, f reflect.StructField, fv reflect.Value, tag string) error {
	name, opts := ireflect.TagOptions(tag)
	key := TypeKey(f.Type).Named(name)
	if opts["optional"] && !a.Contains(key) {
		return nil
	}

	v, err := a.resolve(ctx, key, a.strategy)
	if err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if !rv.Type().AssignableTo(f.Type) {
		return errors.Resolution("%T is not assignable to %s", v, ireflect.TypeName(f.Type))
	}
	fv.Set(rv)
	return nil
}

func (a *ApplicationContext) injectValue(f reflect.StructField, fv reflect.Value, property string) error {
	var (
		raw any
		ok  bool
	)
	if a.properties != nil {
		raw, ok = a.properties.Property(property)
	}
	if !ok {
		def, hasDefault := f.Tag.Lookup(defaultTag)
		if !hasDefault {
			return nil
		}
		if err := ireflect.SetString(fv, def); err != nil {
			return errors.Config("default of %s for property %s", f.Name, property).WithCause(err)
		}
		return nil
	}
	if err := assignProperty(fv, raw); err != nil {
		return errors.Config("property %s into field %s", property, f.Name).WithCause(err)
	}
	return nil
}

// assignProperty converts raw into the kind of fv.
func assignProperty(fv reflect.Value, raw any) error {
	if fv.Type() == durationType {
		d, err := cast.ToDurationE(raw)
		if err != nil {
			return err
		}
		fv.SetInt(int64(d))
		return nil
	}

	switch fv.Kind() {
	case reflect.String:
		s, err := cast.ToStringE(raw)
		if err != nil {
			return err
		}
		fv.SetString(s)
	case reflect.Bool:
		b, err := cast.ToBoolE(raw)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := cast.ToInt64E(raw)
		if err != nil {
			return err
		}
		if fv.OverflowInt(n) {
			return errors.Config("%d overflows %s", n, fv.Type())
		}
		fv.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := cast.ToUint64E(raw)
		if err != nil {
			return err
		}
		if fv.OverflowUint(n) {
			return errors.Config("%d overflows %s", n, fv.Type())
		}
		fv.SetUint(n)
	case reflect.Float32, reflect.Float64:
		n, err := cast.ToFloat64E(raw)
		if err != nil {
			return err
		}
		fv.SetFloat(n)
	case reflect.Slice:
		switch fv.Type().Elem().Kind() {
		case reflect.String:
			s, err := cast.ToStringSliceE(raw)
			if err != nil {
				return err
			}
			fv.Set(reflect.ValueOf(s).Convert(fv.Type()))
		case reflect.Int:
			s, err := cast.ToIntSliceE(raw)
			if err != nil {
				return err
			}
			fv.Set(reflect.ValueOf(s).Convert(fv.Type()))
		default:
			return assignDirect(fv, raw)
		}
	case reflect.Map:
		if fv.Type().Key().Kind() != reflect.String {
			return assignDirect(fv, raw)
		}
		switch fv.Type().Elem().Kind() {
		case reflect.String:
			m, err := cast.ToStringMapStringE(raw)
			if err != nil {
				return err
			}
			fv.Set(reflect.ValueOf(m).Convert(fv.Type()))
		case reflect.Interface:
			m, err := cast.ToStringMapE(raw)
			if err != nil {
				return err
			}
			fv.Set(reflect.ValueOf(m).Convert(fv.Type()))
		default:
			return assignDirect(fv, raw)
		}
	default:
		return assignDirect(fv, raw)
	}
	return nil
}

func assignDirect(fv reflect.Value, raw any) error {
	rv := reflect.ValueOf(raw)
	if !rv.IsValid() || !rv.Type().AssignableTo(fv.Type()) {
		return errors.Config("cannot assign %T to %s", raw, fv.Type())
	}
	fv.Set(rv)
	return nil
}
