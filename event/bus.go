// Package event 提供进程内同步事件总线
package event

import (
	"cmp"
	"context"
	"reflect"
	"slices"
	"sync"

	ireflect "github.com/kochabonline/hartshorn/core/reflect"
	"github.com/kochabonline/hartshorn/errors"
	"github.com/kochabonline/hartshorn/log"
)

// Listener 事件监听器
type Listener func(ctx context.Context, event any) error

type subscription struct {
	name     string
	priority int
	seq      uint64
	listener Listener
}

// Bus 事件总线, 按事件类型分发, 优先级高的监听器先执行
type Bus struct {
	mu   sync.RWMutex
	subs map[reflect.Type][]subscription
	seq  uint64
	log  *log.Logger
}

type Option func(*Bus)

// WithLogger 设置日志记录器
func WithLogger(l *log.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.log = l
		}
	}
}

func NewBus(opts ...Option) *Bus {
	b := &Bus{
		subs: make(map[reflect.Type][]subscription),
		log:  log.Global().Component("event"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SubscribeType 订阅类型为t的事件, t为接口时匹配所有实现该接口的事件
func (b *Bus) SubscribeType(t reflect.Type, name string, priority int, listener Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	b.subs[t] = append(b.subs[t], subscription{
		name:     name,
		priority: priority,
		seq:      b.seq,
		listener: listener,
	})
	b.log.Debug().Msgf("[event] | subscribe: %s | listener: %s | priority: %d", ireflect.TypeName(t), name, priority)
}

// Subscribe 订阅E类型的事件
func Subscribe[E any](b *Bus, name string, priority int, fn func(ctx context.Context, event E) error) {
	b.SubscribeType(reflect.TypeFor[E](), name, priority, func(ctx context.Context, event any) error {
		return fn(ctx, event.(E))
	})
}

// Len 返回事件类型t的订阅数
func (b *Bus) Len(t reflect.Type) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[t])
}

func (b *Bus) listeners(et reflect.Type) []subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var matched []subscription
	for t, subs := range b.subs {
		if t == et || (t.Kind() == reflect.Interface && et.Implements(t)) {
			matched = append(matched, subs...)
		}
	}
	slices.SortFunc(matched, func(x, y subscription) int {
		if c := cmp.Compare(y.priority, x.priority); c != 0 {
			return c
		}
		return cmp.Compare(x.seq, y.seq)
	})
	return matched
}

// Publish 同步发布事件, 第一个失败的监听器终止分发
func (b *Bus) Publish(ctx context.Context, event any) error {
	if event == nil {
		return errors.Event("publish nil event")
	}
	et := reflect.TypeOf(event)
	subs := b.listeners(et)
	b.log.Debug().Msgf("[event] | publish: %s | listeners: %d", ireflect.TypeName(et), len(subs))

	for _, s := range subs {
		if err := ctx.Err(); err != nil {
			return errors.Event("publish %s", ireflect.TypeName(et)).WithCause(err)
		}
		if err := s.listener(ctx, event); err != nil {
			return errors.Event("listener %s failed on %s", s.name, ireflect.TypeName(et)).WithCause(err)
		}
	}
	return nil
}
