package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabonline/hartshorn/errors"
	"github.com/kochabonline/hartshorn/event"
	"github.com/kochabonline/hartshorn/ioc"
	"github.com/kochabonline/hartshorn/log"
	"github.com/kochabonline/hartshorn/scan"
)

type lifecycleState struct {
	started   chan struct{}
	stopping  atomic.Bool
	destroyed atomic.Bool
}

type lifecycleComponent struct {
	State    *lifecycleState `inject:""`
	Greeting string      `value:"greeting" default:"hi"`
}

func (p *lifecycleComponent) OnStarted(context.Context, *event.Started) error {
	close(p.State.started)
	return nil
}

func (p *lifecycleComponent) OnStopping(context.Context, *event.Stopping) error {
	p.State.stopping.Store(true)
	return nil
}

func (p *lifecycleComponent) Destroy(context.Context) error {
	p.State.destroyed.Store(true)
	return nil
}

type fakeServer struct {
	stop     chan struct{}
	running  atomic.Bool
	shutdown atomic.Bool
}

func newFakeServer() *fakeServer {
	return &fakeServer{stop: make(chan struct{})}
}

func (s *fakeServer) Run() error {
	s.running.Store(true)
	<-s.stop
	return nil
}

func (s *fakeServer) Shutdown(context.Context) error {
	if s.shutdown.CompareAndSwap(false, true) {
		close(s.stop)
	}
	return nil
}

func newLifecycleApp(t *testing.T, state *lifecycleState, opts ...Option) *Application {
	t.Helper()
	catalog := scan.NewCatalog()
	require.NoError(t, catalog.Add(scan.Component[*lifecycleComponent]()))

	return New(append([]Option{
		WithConfig(&ApplicationConfig{}),
		WithCatalog(catalog),
		WithSignals(syscall.SIGUSR2),
		WithBindings(func(c *ioc.ApplicationContext) error {
			return ioc.Bind[*lifecycleState](c).ToInstance(state)
		}),
	}, opts...)...)
}

func waitStarted(t *testing.T, state *lifecycleState, errCh <-chan error) {
	t.Helper()
	select {
	case <-state.started:
	case err := <-errCh:
		t.Fatalf("application exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("application did not start")
	}
}

func TestApplication_Lifecycle(t *testing.T) {
	state := &lifecycleState{started: make(chan struct{})}
	server := newFakeServer()
	var cleaned atomic.Bool
	a := newLifecycleApp(t, state,
		WithServer(server),
		WithCleanup("flag", func(context.Context) error {
			cleaned.Store(true)
			return nil
		}, 0),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- a.Start() }()
	waitStarted(t, state, errCh)

	info := a.Info()
	assert.True(t, info.Started)
	assert.Equal(t, 1, info.ServerCount)
	assert.Equal(t, 1, info.CleanupCount)
	assert.Greater(t, info.BindingCount, 1)
	assert.True(t, server.running.Load())

	component, err := ioc.Get[*lifecycleComponent](context.Background(), a.Container())
	require.NoError(t, err)
	assert.Equal(t, "hi", component.Greeting)

	cfg, err := ioc.Get[*ApplicationConfig](context.Background(), a.Container())
	require.NoError(t, err)
	assert.Equal(t, "hartshorn", cfg.Name)
	assert.Equal(t, "memory", cfg.Cache.Backend)

	a.Stop()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("application did not stop")
	}

	assert.True(t, server.shutdown.Load())
	assert.True(t, state.stopping.Load())
	assert.True(t, state.destroyed.Load())
	assert.True(t, cleaned.Load())

	_, err = a.Container().Get(context.Background(), ioc.KeyOf[*lifecycleComponent]())
	assert.True(t, errors.Is(err, errors.ErrApplication), "closed container rejects lookups")
}

func TestApplication_StartTwice(t *testing.T) {
	state := &lifecycleState{started: make(chan struct{})}
	a := newLifecycleApp(t, state)

	errCh := make(chan error, 1)
	go func() { errCh <- a.Start() }()
	waitStarted(t, state, errCh)

	assert.ErrorIs(t, a.Start(), ErrAlreadyStarted)
	assert.ErrorIs(t, a.AddServer(newFakeServer()), ErrAlreadyStarted)

	a.Stop()
	require.NoError(t, <-errCh)
}

type failingComponent struct{}

func (failingComponent) Init(context.Context) error { return fmt.Errorf("no database") }

func TestApplication_BootstrapFailure(t *testing.T) {
	catalog := scan.NewCatalog()
	require.NoError(t, catalog.Add(scan.Component[*failingComponent]()))

	a := New(WithConfig(&ApplicationConfig{}), WithCatalog(catalog))
	err := a.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no database")
}

func TestApplication_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.yaml"), []byte(`
name: demo
greeting: hello
cache:
  sweep: 30s
`), 0o644))

	state := &lifecycleState{started: make(chan struct{})}
	catalog := scan.NewCatalog()
	require.NoError(t, catalog.Add(scan.Component[*lifecycleComponent]()))
	a := New(
		WithConfigFile("app.yaml", dir),
		WithCatalog(catalog),
		WithSignals(syscall.SIGUSR2),
		WithBindings(func(c *ioc.ApplicationContext) error {
			return ioc.Bind[*lifecycleState](c).ToInstance(state)
		}),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- a.Start() }()
	waitStarted(t, state, errCh)

	cfg, err := ioc.Get[*ApplicationConfig](context.Background(), a.Container())
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.Name)
	assert.Equal(t, 30*time.Second, cfg.Cache.Sweep)

	component, err := ioc.Get[*lifecycleComponent](context.Background(), a.Container())
	require.NoError(t, err)
	assert.Equal(t, "hello", component.Greeting)

	a.Stop()
	require.NoError(t, <-errCh)
}

func TestApplication_AddServerAndCleanup(t *testing.T) {
	a := New()

	assert.Error(t, a.AddServer(nil))
	require.NoError(t, a.AddServer(newFakeServer()))
	assert.Error(t, a.AddCleanup("nil", nil, 0))
	require.NoError(t, a.AddCleanup("ok", func(context.Context) error { return nil }, 0))

	info := a.Info()
	assert.Equal(t, 1, info.ServerCount)
	assert.Equal(t, 1, info.CleanupCount)
	assert.False(t, info.Started)
	assert.Nil(t, a.Container())
}

func TestExecuteCleanupFunc(t *testing.T) {
	a := New()

	err := a.executeCleanupFunc(CleanupFunc{Name: "panics", Fn: func(context.Context) error {
		panic("boom")
	}, Timeout: time.Second})
	assert.ErrorIs(t, err, ErrCleanupPanic)

	err = a.executeCleanupFunc(CleanupFunc{Name: "slow", Fn: func(ctx context.Context) error {
		time.Sleep(200 * time.Millisecond)
		return nil
	}, Timeout: 10 * time.Millisecond})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type Notifier interface {
	Notify(msg string) error
}

type alerting struct {
	Notifier Notifier `inject:""`
}

func TestApplication_MissingBindingPolicy(t *testing.T) {
	catalog := scan.NewCatalog()
	require.NoError(t, catalog.Add(scan.Component[*alerting]()))

	strict := New(WithConfig(&ApplicationConfig{}), WithCatalog(catalog))
	err := strict.Start()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMissingBinding))

	state := &lifecycleState{started: make(chan struct{})}
	require.NoError(t, catalog.Add(scan.Component[*lifecycleComponent]()))
	lenient := New(
		WithConfig(&ApplicationConfig{Missing: "ignore"}),
		WithCatalog(catalog),
		WithSignals(syscall.SIGUSR2),
		WithBindings(func(c *ioc.ApplicationContext) error {
			return ioc.Bind[*lifecycleState](c).ToInstance(state)
		}),
	)
	errCh := make(chan error, 1)
	go func() { errCh <- lenient.Start() }()
	waitStarted(t, state, errCh)

	a, err := ioc.Get[*alerting](context.Background(), lenient.Container())
	require.NoError(t, err)
	assert.Nil(t, a.Notifier)

	lenient.Stop()
	require.NoError(t, <-errCh)
}

func TestApplicationConfig_MissingBindingValidation(t *testing.T) {
	a := New(WithConfig(&ApplicationConfig{Missing: "sometimes"}))
	err := a.Start()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfig))
}

func TestApplication_LoggerFollowsConfig(t *testing.T) {
	prev := log.Global()
	defer log.SetGlobalLogger(prev)

	state := &lifecycleState{started: make(chan struct{})}
	a := newLifecycleApp(t, state)
	a.config.Log.Level = "warn"

	errCh := make(chan error, 1)
	go func() { errCh <- a.Start() }()
	waitStarted(t, state, errCh)

	a.mu.RLock()
	level := a.log.GetLevel()
	a.mu.RUnlock()
	assert.Equal(t, zerolog.WarnLevel, level)
	assert.Equal(t, zerolog.WarnLevel, log.Global().GetLevel())

	a.Stop()
	require.NoError(t, <-errCh)
}
