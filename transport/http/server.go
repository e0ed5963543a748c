package http

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/kochabonline/hartshorn/errors"
	"github.com/kochabonline/hartshorn/ioc"
	"github.com/kochabonline/hartshorn/log"
	"github.com/kochabonline/hartshorn/metrics"
	"github.com/kochabonline/hartshorn/transport"
	"github.com/kochabonline/hartshorn/transport/http/middleware"
	"github.com/kochabonline/hartshorn/transport/http/response"
)

var _ transport.Server = (*Server)(nil)

const defaultAddr = ":8080"

// Server 诊断服务, 暴露健康检查/指标/绑定列表以及组件注册的路由
type Server struct {
	config  Config
	app     *ioc.ApplicationContext
	handler *GinHandler
	metrics *metrics.Prometheus
	engine  *gin.Engine
	server  *http.Server
	mount   sync.Once
	log     *log.Logger
}

type Option func(*Server)

func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithHandler 设置组件路由池
func WithHandler(h *GinHandler) Option {
	return func(s *Server) {
		s.handler = h
	}
}

// WithMetrics 设置指标注册表, 未设置时不暴露指标路由
func WithMetrics(p *metrics.Prometheus) Option {
	return func(s *Server) {
		s.metrics = p
	}
}

func NewServer(c Config, app *ioc.ApplicationContext, opts ...Option) (*Server, error) {
	if err := c.init(); err != nil {
		return nil, errors.Config("http config").WithCause(err)
	}
	s := &Server{
		config:  c,
		app:     app,
		handler: NewHandler(),
		log:     log.Global().Component("http"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if ok := transport.ValidateAddress(s.config.Addr); !ok {
		s.log.Warn().Msgf("[http] | invalid address %s | using default: %s", s.config.Addr, defaultAddr)
		s.config.Addr = defaultAddr
	}

	s.engine = gin.New()
	s.engine.Use(
		middleware.GinRecovery(s.log),
		middleware.GinLoggerWithConfig(s.log, middleware.LoggerConfig{
			SkipPaths: []string{s.config.Health.Path, s.config.Metrics.Path},
		}),
	)
	if s.metrics != nil {
		s.engine.Use(middleware.GinMetricsWithConfig(s.metrics, middleware.MetricsConfig{
			SkipPaths: []string{s.config.Metrics.Path},
		}))
	}
	s.server = &http.Server{
		Addr:    s.config.Addr,
		Handler: s.engine,
	}
	return s, nil
}

// Handler 返回挂载好全部路由的处理器, 组件路由在首次调用时挂载
func (s *Server) Handler() http.Handler {
	s.mount.Do(s.routes)
	return s.engine
}

func (s *Server) routes() {
	if !s.config.Health.Disabled {
		s.engine.GET(s.config.Health.Path, s.health)
	}
	if !s.config.Metrics.Disabled && s.metrics != nil {
		s.engine.GET(s.config.Metrics.Path, gin.WrapH(s.metrics.Handler()))
	}
	if !s.config.Bindings.Disabled && s.app != nil {
		s.engine.GET(s.config.Bindings.Path, func(c *gin.Context) {
			response.GinJSON(c, s.app.Bindings())
		})
	}
	s.handler.Register(s.engine.Group(s.config.Prefix))
	s.log.Debug().Msgf("[http] | routes mounted | components: %d", s.handler.Count())
}

func (s *Server) health(c *gin.Context) {
	if s.app == nil {
		c.JSON(http.StatusOK, gin.H{"status": "up"})
		return
	}
	if err := s.app.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "up"})
}

func (s *Server) Name() string { return s.config.Name }

func (s *Server) Addr() string { return s.config.Addr }

// Run 启动服务并阻塞, 正常关闭返回nil
func (s *Server) Run() error {
	s.Handler()
	s.log.Info().Msgf("[http] | %s server listening on %s", s.config.Name, s.config.Addr)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
	}
	return s.server.Shutdown(ctx)
}
