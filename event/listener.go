package event

import (
	"context"
	"reflect"
	"strings"
	"sync"

	ireflect "github.com/kochabonline/hartshorn/core/reflect"
	"github.com/kochabonline/hartshorn/ioc"
)

// OrderListeners 监听器注册的后置处理顺序, 早于代理, 注册的是原始实例
const OrderListeners = 500

// ListenerPrefix 监听方法名前缀
const ListenerPrefix = "On"

// Prioritized 组件可选实现, 返回其监听方法的优先级
type Prioritized interface {
	ListenerPriority() int
}

var contextType = reflect.TypeFor[context.Context]()

// ListenerProcessor 将组件的 On*(ctx, E) error 方法注册到事件总线
type ListenerProcessor struct {
	bus  *Bus
	mu   sync.Mutex
	seen map[any]struct{}
}

func NewListenerProcessor(bus *Bus) *ListenerProcessor {
	return &ListenerProcessor{
		bus:  bus,
		seen: make(map[any]struct{}),
	}
}

func (p *ListenerProcessor) Order() int { return OrderListeners }

func (p *ListenerProcessor) Process(_ context.Context, _ *ioc.ApplicationContext, key ioc.Key, instance any) (any, error) {
	if instance == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(instance)
	methods := listenerMethods(rv.Type())
	if len(methods) == 0 {
		return nil, nil
	}

	// 同一实例只注册一次
	if rv.Kind() == reflect.Pointer {
		p.mu.Lock()
		if _, ok := p.seen[instance]; ok {
			p.mu.Unlock()
			return nil, nil
		}
		p.seen[instance] = struct{}{}
		p.mu.Unlock()
	}

	priority := 0
	if pr, ok := instance.(Prioritized); ok {
		priority = pr.ListenerPriority()
	}
	for _, m := range methods {
		fn := rv.Method(m.Index)
		p.bus.SubscribeType(m.Type.In(2), key.String()+"."+m.Name, priority, func(ctx context.Context, event any) error {
			out := fn.Call([]reflect.Value{reflect.ValueOf(ctx), reflect.ValueOf(event)})
			if err, _ := out[0].Interface().(error); err != nil {
				return err
			}
			return nil
		})
	}
	return nil, nil
}

// listenerMethods 返回形如 On*(ctx, E) error 的导出方法
func listenerMethods(t reflect.Type) []reflect.Method {
	var methods []reflect.Method
	for i := range t.NumMethod() {
		m := t.Method(i)
		if !strings.HasPrefix(m.Name, ListenerPrefix) || len(m.Name) == len(ListenerPrefix) {
			continue
		}
		// 方法类型包含接收者
		ft := m.Type
		if ft.NumIn() != 3 || ft.IsVariadic() || ft.In(1) != contextType || ft.NumOut() != 1 || !ireflect.ReturnsError(ft) {
			continue
		}
		methods = append(methods, m)
	}
	return methods
}
