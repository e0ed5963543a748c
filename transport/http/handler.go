package http

import (
	"context"
	"reflect"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/kochabonline/hartshorn/ioc"
)

// OrderRoutes 路由收集的后置处理顺序, 早于代理, 收集的是原始实例
const OrderRoutes = 600

// GinRegister 注册到Gin路由器接口
type GinRegister interface {
	Register(r gin.IRouter)
}

// GinHandler 路由注册器池
type GinHandler struct {
	pool []GinRegister
	mu   sync.RWMutex
}

// NewHandler 创建一个新的GinHandler实例
func NewHandler() *GinHandler {
	return &GinHandler{
		pool: make([]GinRegister, 0),
	}
}

// Register 将所有处理器注册到给定的路由组
func (h *GinHandler) Register(rg *gin.RouterGroup) {
	if rg == nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, handler := range h.pool {
		handler.Register(rg)
	}
}

// Add 添加一个或多个处理器, nil被忽略
func (h *GinHandler) Add(handlers ...GinRegister) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, handler := range handlers {
		if handler != nil {
			h.pool = append(h.pool, handler)
		}
	}
}

// Count 返回当前处理器的数量
func (h *GinHandler) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.pool)
}

// Clear 清空所有处理器
func (h *GinHandler) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pool = h.pool[:0]
}

// RouteProcessor 收集容器中实现GinRegister的组件
type RouteProcessor struct {
	handler *GinHandler
	mu      sync.Mutex
	seen    map[any]struct{}
}

func NewRouteProcessor(handler *GinHandler) *RouteProcessor {
	return &RouteProcessor{
		handler: handler,
		seen:    make(map[any]struct{}),
	}
}

func (p *RouteProcessor) Order() int { return OrderRoutes }

func (p *RouteProcessor) Process(_ context.Context, _ *ioc.ApplicationContext, _ ioc.Key, instance any) (any, error) {
	r, ok := instance.(GinRegister)
	if !ok {
		return nil, nil
	}

	// 同一组件以多个键暴露时只注册一次路由
	if reflect.ValueOf(instance).Kind() == reflect.Pointer {
		p.mu.Lock()
		_, dup := p.seen[instance]
		p.seen[instance] = struct{}{}
		p.mu.Unlock()
		if dup {
			return nil, nil
		}
	}
	p.handler.Add(r)
	return nil, nil
}
