// Package app 组装并运行应用: 加载配置, 构建容器, 扫描组件, 运行服务, 优雅关闭
package app

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kochabonline/hartshorn/cache"
	"github.com/kochabonline/hartshorn/config"
	"github.com/kochabonline/hartshorn/errors"
	"github.com/kochabonline/hartshorn/event"
	"github.com/kochabonline/hartshorn/ioc"
	"github.com/kochabonline/hartshorn/log"
	"github.com/kochabonline/hartshorn/metrics"
	"github.com/kochabonline/hartshorn/proxy"
	"github.com/kochabonline/hartshorn/scan"
	"github.com/kochabonline/hartshorn/store/redis"
	"github.com/kochabonline/hartshorn/task"
	"github.com/kochabonline/hartshorn/transport"
	"github.com/kochabonline/hartshorn/transport/http"
	"github.com/kochabonline/hartshorn/validator"
)

// 默认配置值
const (
	DefaultShutdownTimeout = 30 * time.Second
	DefaultCleanupTimeout  = 10 * time.Second
	DefaultEnvPrefix       = "HARTSHORN"
)

// 默认关闭信号
var DefaultSignals = []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT}

var (
	ErrAlreadyStarted = errors.New(errors.CodeApplication, "application already started")
	ErrCleanupPanic   = errors.New(errors.CodeApplication, "cleanup function panicked")
)

// Option 定义 Application 的配置选项
type Option interface {
	apply(*Application)
}

// optionFunc 包装函数以实现 Option 接口
type optionFunc func(*Application)

func (f optionFunc) apply(app *Application) {
	f(app)
}

// Application 管理容器/服务器和清理函数的生命周期
type Application struct {
	ctx             context.Context
	cancel          context.CancelFunc
	shutdownTimeout time.Duration
	cleanupTimeout  time.Duration
	signals         []os.Signal
	servers         []transport.Server
	cleanupFns      []CleanupFunc
	mu              sync.RWMutex
	started         bool

	configPaths []string
	configName  string
	config      *ApplicationConfig
	catalog     *scan.Catalog
	binders     []func(*ioc.ApplicationContext) error
	advisors    []proxy.AdvisorSource

	container *ioc.ApplicationContext
	bus       *event.Bus
	log       *log.Logger
}

// CleanupFunc 具有可选超时的清理函数
type CleanupFunc struct {
	Name    string
	Fn      func(context.Context) error
	Timeout time.Duration
}

// New 使用给定选项创建新的应用实例
func New(options ...Option) *Application {
	app := &Application{
		shutdownTimeout: DefaultShutdownTimeout,
		cleanupTimeout:  DefaultCleanupTimeout,
		signals:         make([]os.Signal, len(DefaultSignals)),
		servers:         make([]transport.Server, 0),
		cleanupFns:      make([]CleanupFunc, 0),
		configPaths:     []string{"."},
		catalog:         scan.Default,
		log:             log.Global().Component("app"),
	}

	// 复制默认信号
	copy(app.signals, DefaultSignals)

	// 设置默认上下文
	app.ctx, app.cancel = context.WithCancel(context.Background())

	// 应用选项
	for _, opt := range options {
		opt.apply(app)
	}

	return app
}

// WithContext 设置应用的根上下文
func WithContext(ctx context.Context) Option {
	return optionFunc(func(app *Application) {
		if ctx != nil {
			app.ctx, app.cancel = context.WithCancel(ctx)
		}
	})
}

// WithShutdownTimeout 设置服务器关闭的超时时间
func WithShutdownTimeout(timeout time.Duration) Option {
	return optionFunc(func(app *Application) {
		if timeout > 0 {
			app.shutdownTimeout = timeout
		}
	})
}

// WithCleanupTimeout 设置清理函数的默认超时时间
func WithCleanupTimeout(timeout time.Duration) Option {
	return optionFunc(func(app *Application) {
		if timeout > 0 {
			app.cleanupTimeout = timeout
		}
	})
}

// WithSignals 设置用于优雅关闭的自定义信号
func WithSignals(signals ...os.Signal) Option {
	return optionFunc(func(app *Application) {
		if len(signals) > 0 {
			app.signals = make([]os.Signal, len(signals))
			copy(app.signals, signals)
		}
	})
}

// WithServer 向应用添加服务器
func WithServer(server transport.Server) Option {
	return optionFunc(func(app *Application) {
		if server != nil {
			app.servers = append(app.servers, server)
		}
	})
}

// WithCleanup 添加在关闭期间执行的清理函数
func WithCleanup(name string, fn func(context.Context) error, timeout time.Duration) Option {
	return optionFunc(func(app *Application) {
		if fn == nil {
			app.log.Warn().Str("name", name).Msg("[app] | nil cleanup function ignored")
			return
		}
		if timeout == 0 {
			timeout = app.cleanupTimeout
		}
		app.cleanupFns = append(app.cleanupFns, CleanupFunc{Name: name, Fn: fn, Timeout: timeout})
	})
}

// WithConfigFile 设置配置文件的名称(含扩展名)和搜索路径, 文件不存在时使用默认值
func WithConfigFile(name string, paths ...string) Option {
	return optionFunc(func(app *Application) {
		app.configName = name
		if len(paths) > 0 {
			app.configPaths = paths
		}
	})
}

// WithConfig 直接使用给定配置, 不再读取文件
func WithConfig(c *ApplicationConfig) Option {
	return optionFunc(func(app *Application) {
		app.config = c
	})
}

// WithCatalog 设置组件目录, 默认为 scan.Default
func WithCatalog(c *scan.Catalog) Option {
	return optionFunc(func(app *Application) {
		if c != nil {
			app.catalog = c
		}
	})
}

// WithBindings 在扫描前以编程方式注册绑定
func WithBindings(fn func(*ioc.ApplicationContext) error) Option {
	return optionFunc(func(app *Application) {
		if fn != nil {
			app.binders = append(app.binders, fn)
		}
	})
}

// WithAdvisors 追加代理切面来源
func WithAdvisors(sources ...proxy.AdvisorSource) Option {
	return optionFunc(func(app *Application) {
		app.advisors = append(app.advisors, sources...)
	})
}

// AddServer 在运行时向应用添加服务器
func (app *Application) AddServer(server transport.Server) error {
	if server == nil {
		return errors.New(errors.CodeApplication, "server cannot be nil")
	}

	app.mu.Lock()
	defer app.mu.Unlock()

	if app.started {
		app.log.Warn().Msg("[app] | attempted to add server after application started")
		return ErrAlreadyStarted
	}

	app.servers = append(app.servers, server)
	return nil
}

// AddCleanup 在运行时向应用添加清理函数
func (app *Application) AddCleanup(name string, fn func(context.Context) error, timeout time.Duration) error {
	if fn == nil {
		return errors.New(errors.CodeApplication, "cleanup function cannot be nil")
	}

	app.mu.Lock()
	defer app.mu.Unlock()

	if timeout == 0 {
		timeout = app.cleanupTimeout
	}
	app.cleanupFns = append(app.cleanupFns, CleanupFunc{Name: name, Fn: fn, Timeout: timeout})
	return nil
}

// Container 返回应用容器, 启动前为nil
func (app *Application) Container() *ioc.ApplicationContext {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.container
}

// Start 装配容器, 启动所有服务器并阻塞直到关闭
func (app *Application) Start() error {
	app.mu.Lock()
	if app.started {
		app.mu.Unlock()
		return ErrAlreadyStarted
	}
	app.started = true
	app.mu.Unlock()

	if err := app.bootstrap(app.ctx); err != nil {
		app.cancel()
		return err
	}

	app.mu.RLock()
	servers := make([]transport.Server, len(app.servers))
	copy(servers, app.servers)
	signals := make([]os.Signal, len(app.signals))
	copy(signals, app.signals)
	app.mu.RUnlock()

	if len(servers) == 0 {
		app.log.Info().Msg("[app] | no servers configured, starting signal handler only")
	}

	// 设置信号处理
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, signals...)
	defer signal.Stop(sigCh)

	// 创建错误组来管理协程
	eg, egCtx := errgroup.WithContext(app.ctx)

	// 启动服务器
	app.startServers(eg, egCtx, servers)

	// 处理关闭信号
	eg.Go(func() error {
		select {
		case sig := <-sigCh:
			app.log.Info().Str("signal", sig.String()).Msg("[app] | received shutdown signal")
			app.cancel()
			return nil
		case <-egCtx.Done():
			return nil
		}
	})

	if err := app.bus.Publish(app.ctx, event.NewStarted(app.container)); err != nil {
		app.cancel()
		_ = eg.Wait()
		app.shutdown()
		return err
	}
	app.log.Info().Msgf("[app] | %s started", app.config.Name)

	// 等待关闭
	err := eg.Wait()
	app.shutdown()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Stop 优雅地停止应用
func (app *Application) Stop() {
	app.cancel()
}

// bootstrap 加载配置, 构建容器与基础组件, 扫描并激活组件
func (app *Application) bootstrap(ctx context.Context) (err error) {
	conf, err := app.loadConfig()
	if err != nil {
		return err
	}
	cfg := app.config

	level := log.ParseLevel(cfg.Log.Level)
	if cfg.Log.File {
		log.SetGlobalLogger(log.NewMulti(cfg.Log.Output, log.WithLevel(level)))
	} else {
		log.SetGlobalLevel(level)
	}
	// 生命周期日志跟随配置的级别与输出
	app.mu.Lock()
	app.log = log.Global().Component("app")
	app.mu.Unlock()

	runner := task.NewRunner()
	bus := event.NewBus()
	prom := metrics.NewPrometheus(cfg.Metrics)
	handler := http.NewHandler()

	var client *redis.Client
	backend := cache.MemoryBackend(runner, cfg.Cache.Sweep)
	if cfg.Cache.Backend == "redis" {
		if client, err = redis.New(ctx, &cfg.Redis); err != nil {
			return err
		}
		backend = cache.RedisBackend(client)
	}
	caches := cache.NewManager(backend)

	advisors := append([]proxy.AdvisorSource{
		cache.NewAdvisor(caches),
		metrics.NewAdvisor(prom),
		proxy.NewLoggingAdvisor(nil),
	}, app.advisors...)

	policy, err := ioc.ParseMissingBindingPolicy(cfg.Missing)
	if err != nil {
		return err
	}
	container := ioc.New(
		ioc.WithMissingBindingPolicy(policy),
		ioc.WithObserver(metrics.NewObserver(prom)),
		ioc.WithProperties(conf),
		ioc.WithAutowire(cfg.Autowire),
		ioc.WithPostProcessors(
			validator.NewProcessor(cfg.Language),
			event.NewListenerProcessor(bus),
			http.NewRouteProcessor(handler),
			proxy.NewPostProcessor(advisors...),
		),
	)

	defer func() {
		if err != nil {
			if cerr := container.Close(context.Background()); cerr != nil {
				app.log.Error().Err(cerr).Msg("[app] | close container after failed bootstrap")
			}
		}
	}()

	// 基础组件以单例注册, 由容器负责按创建的逆序销毁
	infra := []error{
		provide(container, cfg),
		provide(container, conf),
		provide(container, runner),
		provide(container, bus),
		provide(container, prom),
		provide(container, handler),
		provide(container, caches),
	}
	if client != nil {
		infra = append(infra, provide(container, client))
	}
	if err := errors.Join(infra...); err != nil {
		return errors.Component("register infrastructure").WithCause(err)
	}
	for _, key := range container.Keys() {
		if _, err := container.Get(ctx, key); err != nil {
			return err
		}
	}

	for _, bind := range app.binders {
		if err := bind(container); err != nil {
			return errors.Component("programmatic bindings").WithCause(err)
		}
	}

	app.mu.Lock()
	app.container, app.bus = container, bus
	app.mu.Unlock()

	if err := scan.Bootstrap(ctx, container, scan.NewScanner(app.catalog, cfg.Scan...)); err != nil {
		return err
	}
	runner.Start()

	if cfg.Server.Enabled {
		server, err := http.NewServer(cfg.Server.Config, container, http.WithHandler(handler), http.WithMetrics(prom))
		if err != nil {
			return err
		}
		app.mu.Lock()
		app.servers = append(app.servers, server)
		app.mu.Unlock()
	}
	return nil
}

func (app *Application) loadConfig() (*config.Config, error) {
	dest := app.config
	if dest == nil {
		dest = &ApplicationConfig{}
	}
	opts := []config.Option{
		config.WithDest(dest),
		config.WithEnvPrefix(DefaultEnvPrefix),
		config.WithOptional(),
	}
	if app.config == nil && app.configName != "" {
		opts = append(opts, config.WithName(app.configName), config.WithPath(app.configPaths...))
	}

	conf, err := config.New(opts...)
	if err != nil {
		return nil, err
	}
	if err := conf.ReadInConfig(); err != nil {
		return nil, err
	}
	app.config = dest
	return conf, nil
}

// provide 以单例注册已构建的基础组件
func provide[T any](container *ioc.ApplicationContext, v T) error {
	return ioc.Bind[T](container).ToSupplier(func(context.Context, *ioc.ApplicationContext) (T, error) {
		return v, nil
	})
}

// shutdown 发布Stopping事件, 停止任务, 关闭容器并执行清理函数
func (app *Application) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), app.shutdownTimeout)
	defer cancel()

	if err := app.bus.Publish(ctx, event.NewStopping(app.container)); err != nil {
		app.log.Error().Err(err).Msg("[app] | stopping listeners failed")
	}
	if err := app.container.Close(ctx); err != nil {
		app.log.Error().Err(err).Msg("[app] | close container failed")
	}
	app.executeCleanup()
	app.log.Info().Msgf("[app] | %s stopped", app.config.Name)
}

// startServers 启动所有配置的服务器
func (app *Application) startServers(eg *errgroup.Group, ctx context.Context, servers []transport.Server) {
	for _, server := range servers {
		// 服务器运行器
		eg.Go(func() error {
			app.log.Info().Msgf("[app] | %s running", transport.Describe(server))
			return server.Run()
		})

		// 服务器关闭处理器
		eg.Go(func() error {
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), app.shutdownTimeout)
			defer cancel()

			return server.Shutdown(shutdownCtx)
		})
	}
}

// executeCleanup 并发执行所有清理函数
func (app *Application) executeCleanup() {
	app.mu.RLock()
	cleanupFns := make([]CleanupFunc, len(app.cleanupFns))
	copy(cleanupFns, app.cleanupFns)
	app.mu.RUnlock()

	if len(cleanupFns) == 0 {
		return
	}

	eg := &errgroup.Group{}
	for _, cleanup := range cleanupFns {
		eg.Go(func() error {
			return app.executeCleanupFunc(cleanup)
		})
	}

	if err := eg.Wait(); err != nil {
		app.log.Error().Err(err).Msg("[app] | some cleanup functions failed")
	}
}

// executeCleanupFunc 执行单个带超时的清理函数
func (app *Application) executeCleanupFunc(cleanup CleanupFunc) error {
	ctx, cancel := context.WithTimeout(context.Background(), cleanup.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				app.log.Error().Interface("panic", r).Str("cleanup", cleanup.Name).Msg("[app] | cleanup function panicked")
				done <- ErrCleanupPanic
			}
		}()
		done <- cleanup.Fn(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			app.log.Error().Err(err).Str("cleanup", cleanup.Name).Msg("[app] | cleanup function failed")
		}
		return err
	case <-ctx.Done():
		app.log.Warn().Str("cleanup", cleanup.Name).Msg("[app] | cleanup function timed out")
		return ctx.Err()
	}
}

// Info 返回应用状态信息
func (app *Application) Info() ApplicationInfo {
	app.mu.RLock()
	defer app.mu.RUnlock()

	info := ApplicationInfo{
		Started:      app.started,
		ServerCount:  len(app.servers),
		CleanupCount: len(app.cleanupFns),
	}
	if app.container != nil {
		info.BindingCount = len(app.container.Bindings())
	}
	return info
}

// ApplicationInfo 提供应用状态信息
type ApplicationInfo struct {
	Started      bool `json:"started"`
	ServerCount  int  `json:"server_count"`
	CleanupCount int  `json:"cleanup_count"`
	BindingCount int  `json:"binding_count"`
}
