package validator

import (
	"context"
	"reflect"
	"sync"

	"github.com/kochabonline/hartshorn/errors"
	"github.com/kochabonline/hartshorn/ioc"
)

// OrderValidate runs after Init and before listener, route and proxy processing.
const OrderValidate = 100

var _ ioc.PostProcessor = (*Processor)(nil)

// Processor validates components whose struct declares `validate` tags once
// they are injected and initialized, so a misconfigured component fails the
// resolution instead of the first request.
type Processor struct {
	language string
	tagged   sync.Map // reflect.Type -> bool
}

func NewProcessor(language string) *Processor {
	if language == "" {
		language = DefaultLanguage
	}
	return &Processor{language: language}
}

func (p *Processor) Order() int { return OrderValidate }

func (p *Processor) Process(_ context.Context, _ *ioc.ApplicationContext, key ioc.Key, instance any) (any, error) {
	t := reflect.TypeOf(instance)
	if t == nil || t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		return instance, nil
	}
	if !p.hasTags(t.Elem()) || reflect.ValueOf(instance).IsNil() {
		return instance, nil
	}
	if err := StructTrans(instance, p.language); err != nil {
		return nil, errors.Component("%s is invalid", key).WithCause(err)
	}
	return instance, nil
}

func (p *Processor) hasTags(t reflect.Type) bool {
	if v, ok := p.tagged.Load(t); ok {
		return v.(bool)
	}
	found := false
	for i := range t.NumField() {
		if _, ok := t.Field(i).Tag.Lookup("validate"); ok {
			found = true
			break
		}
	}
	p.tagged.Store(t, found)
	return found
}
