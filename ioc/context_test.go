package ioc

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabonline/hartshorn/errors"
)

type Repository interface {
	Find(id int) string
}

type memoryRepo struct {
	prefix string
}

func (r *memoryRepo) Find(id int) string {
	return fmt.Sprintf("%s-%d", r.prefix, id)
}

type Mailer interface {
	Send(to string) error
}

type Service struct {
	Repo    Repository    `inject:""`
	Mailer  Mailer        `inject:"smtp,optional"`
	Name    string        `value:"service.name" default:"svc"`
	Timeout time.Duration `value:"service.timeout"`

	initialized bool
}

func (s *Service) Init(ctx context.Context) error {
	s.initialized = true
	return nil
}

type cycleA struct {
	B *cycleB `inject:""`
}

type cycleB struct {
	A *cycleA `inject:""`
}

type closer struct {
	name  string
	order *[]string
	err   error
}

func (c *closer) Destroy(ctx context.Context) error {
	*c.order = append(*c.order, c.name)
	return c.err
}

type recordingObserver struct {
	mu   sync.Mutex
	keys []Key
}

func (o *recordingObserver) OnResolve(key Key, elapsed time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.keys = append(o.keys, key)
}

func newRepoContext(t *testing.T, opts ...Option) *ApplicationContext {
	t.Helper()
	app := New(opts...)
	require.NoError(t, Bind[Repository](app).ToInstance(&memoryRepo{prefix: "mem"}))
	return app
}

func TestApplicationContext_SelfBinding(t *testing.T) {
	app := New()
	got, err := Get[*ApplicationContext](context.Background(), app)
	require.NoError(t, err)
	assert.Same(t, app, got)
}

func TestApplicationContext_PriorityResolution(t *testing.T) {
	ctx := context.Background()
	app := New()

	require.NoError(t, Bind[Repository](app).Priority(1).ToInstance(&memoryRepo{prefix: "low"}))
	require.NoError(t, Bind[Repository](app).Priority(10).ToInstance(&memoryRepo{prefix: "high"}))

	repo, err := Get[Repository](ctx, app)
	require.NoError(t, err)
	assert.Equal(t, "high-1", repo.Find(1))

	v, err := app.GetWith(ctx, KeyOf[Repository](), LowestPriority())
	require.NoError(t, err)
	assert.Equal(t, "low-1", v.(Repository).Find(1))

	app = New(WithStrategy(ExactPriority(1)))
	require.NoError(t, Bind[Repository](app).Priority(1).ToInstance(&memoryRepo{prefix: "low"}))
	require.NoError(t, Bind[Repository](app).Priority(10).ToInstance(&memoryRepo{prefix: "high"}))
	repo, err = Get[Repository](ctx, app)
	require.NoError(t, err)
	assert.Equal(t, "low-1", repo.Find(1))
}

func TestApplicationContext_PriorityTaken(t *testing.T) {
	app := New()
	require.NoError(t, Bind[Repository](app).ToInstance(&memoryRepo{prefix: "first"}))

	err := Bind[Repository](app).ToInstance(&memoryRepo{prefix: "second"})
	assert.True(t, errors.Is(err, errors.ErrPriorityTaken))

	repo := MustGet[Repository](context.Background(), app)
	assert.Equal(t, "first-1", repo.Find(1))

	require.NoError(t, Bind[Repository](app).Replace().ToInstance(&memoryRepo{prefix: "second"}))
	repo = MustGet[Repository](context.Background(), app)
	assert.Equal(t, "second-1", repo.Find(1))
}

func TestApplicationContext_MissingBinding(t *testing.T) {
	ctx := context.Background()

	t.Run("fail", func(t *testing.T) {
		app := New()
		_, err := Get[Repository](ctx, app)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrMissingBinding))
		assert.Equal(t, int32(errors.CodeMissingBinding), errors.Code(err))
		assert.Panics(t, func() { MustGet[Repository](ctx, app) })
	})

	t.Run("ignore", func(t *testing.T) {
		app := New(WithMissingBindingPolicy(IgnoreMissing))
		repo, err := Get[Repository](ctx, app)
		require.NoError(t, err)
		assert.Nil(t, repo)
	})

	t.Run("strategy without match", func(t *testing.T) {
		app := newRepoContext(t)
		_, err := app.GetWith(ctx, KeyOf[Repository](), MinimumPriority(100))
		assert.True(t, errors.Is(err, errors.ErrMissingBinding))
	})
}

func TestApplicationContext_Lookup(t *testing.T) {
	ctx := context.Background()
	app := New()

	assert.False(t, Lookup[Repository](ctx, app).Present())

	require.NoError(t, Bind[Repository](app).ToInstance(&memoryRepo{prefix: "mem"}))
	repo, ok := Lookup[Repository](ctx, app).Get()
	require.True(t, ok)
	assert.Equal(t, "mem-2", repo.Find(2))

	require.NoError(t, Bind[Mailer](app).ToSupplier(func(context.Context, *ApplicationContext) (Mailer, error) {
		return nil, fmt.Errorf("smtp unavailable")
	}))
	o := Lookup[Mailer](ctx, app)
	assert.True(t, o.Failed())
	assert.True(t, errors.Is(o.Err(), errors.ErrResolution))
}

func TestApplicationContext_Lifecycles(t *testing.T) {
	ctx := context.Background()
	app := New()

	var built atomic.Int32
	supplier := func(context.Context, *ApplicationContext) (*memoryRepo, error) {
		n := built.Add(1)
		return &memoryRepo{prefix: fmt.Sprint(n)}, nil
	}
	require.NoError(t, Bind[*memoryRepo](app).ToSupplier(supplier))
	require.NoError(t, Bind[*memoryRepo](app).Named("proto").Prototype().ToSupplier(supplier))

	a := MustGet[*memoryRepo](ctx, app)
	b := MustGet[*memoryRepo](ctx, app)
	assert.Same(t, a, b)

	p1, err := GetNamed[*memoryRepo](ctx, app, "proto")
	require.NoError(t, err)
	p2, err := GetNamed[*memoryRepo](ctx, app, "proto")
	require.NoError(t, err)
	assert.NotSame(t, p1, p2)
	assert.Equal(t, int32(3), built.Load())
}

func TestApplicationContext_ConcurrentSingleton(t *testing.T) {
	app := New()
	var built atomic.Int32
	require.NoError(t, Bind[*memoryRepo](app).ToSupplier(func(context.Context, *ApplicationContext) (*memoryRepo, error) {
		built.Add(1)
		time.Sleep(5 * time.Millisecond)
		return &memoryRepo{}, nil
	}))

	var wg sync.WaitGroup
	results := make([]*memoryRepo, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = MustGet[*memoryRepo](context.Background(), app)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), built.Load())
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestApplicationContext_Constructor(t *testing.T) {
	ctx := context.Background()
	app := newRepoContext(t)

	type report struct {
		line string
	}
	require.NoError(t, Bind[*report](app).ToConstructor(func(ctx context.Context, repo Repository, a *ApplicationContext) (*report, error) {
		require.NotNil(t, ctx)
		require.Same(t, app, a)
		return &report{line: repo.Find(7)}, nil
	}))

	r, err := Get[*report](ctx, app)
	require.NoError(t, err)
	assert.Equal(t, "mem-7", r.line)
}

func TestApplicationContext_InvalidConstructor(t *testing.T) {
	app := New()
	tests := []struct {
		name string
		fn   any
	}{
		{"not a function", 42},
		{"no results", func() {}},
		{"only error", func() error { return nil }},
		{"second result not error", func() (int, int) { return 0, 0 }},
		{"variadic", func(...int) int { return 0 }},
		{"wrong type", func() string { return "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Bind[Repository](app).ToConstructor(tt.fn)
			assert.True(t, errors.Is(err, errors.ErrInvalidProvider))
		})
	}
}

func TestApplicationContext_MethodProvider(t *testing.T) {
	ctx := context.Background()
	app := newRepoContext(t)

	type factory struct{}
	p, err := Method(KeyOf[Repository](), "Find", Prototype)
	require.NoError(t, err)

	// Find takes an int, resolved from the context.
	require.NoError(t, Bind[int](app).ToInstance(3))
	require.NoError(t, app.Register(KeyOf[string]().Named("found"), DefaultPriority, p))

	v, err := app.Get(ctx, KeyOf[string]().Named("found"))
	require.NoError(t, err)
	assert.Equal(t, "mem-3", v)

	_, err = Method(KeyOf[*factory](), "Missing", Singleton)
	assert.True(t, errors.Is(err, errors.ErrInvalidProvider))
}

func TestApplicationContext_FieldInjection(t *testing.T) {
	ctx := context.Background()
	app := newRepoContext(t, WithProperties(PropertiesMap{"service.timeout": "3s"}))
	require.NoError(t, Bind[*Service](app).ToType(reflect.TypeOf(&Service{})))

	svc, err := Get[*Service](ctx, app)
	require.NoError(t, err)
	assert.Equal(t, "mem-1", svc.Repo.Find(1))
	assert.Nil(t, svc.Mailer)
	assert.Equal(t, "svc", svc.Name)
	assert.Equal(t, 3*time.Second, svc.Timeout)
	assert.True(t, svc.initialized)
}

func TestApplicationContext_InjectRequiredMissing(t *testing.T) {
	app := New()
	err := app.Inject(context.Background(), &Service{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMissingBinding))

	assert.Error(t, app.Inject(context.Background(), Service{}))
}

func TestApplicationContext_Autowire(t *testing.T) {
	ctx := context.Background()

	app := newRepoContext(t, WithAutowire(true))
	svc, err := Get[*Service](ctx, app)
	require.NoError(t, err)
	assert.NotNil(t, svc.Repo)
	assert.True(t, svc.initialized)

	other, err := Get[*Service](ctx, app)
	require.NoError(t, err)
	assert.NotSame(t, svc, other)

	app = newRepoContext(t)
	_, err = Get[*Service](ctx, app)
	assert.True(t, errors.Is(err, errors.ErrMissingBinding))
}

func TestApplicationContext_CircularDependency(t *testing.T) {
	app := New(WithAutowire(true))
	_, err := Get[*cycleA](context.Background(), app)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCircularDependency))
	assert.Contains(t, err.Error(), "ioc.cycleA -> *github.com/kochabonline/hartshorn/ioc.cycleB -> ")
}

func TestApplicationContext_CircularSingletons(t *testing.T) {
	app := New()
	require.NoError(t, Bind[*cycleA](app).ToType(reflect.TypeOf(&cycleA{})))
	require.NoError(t, Bind[*cycleB](app).ToType(reflect.TypeOf(&cycleB{})))

	done := make(chan error, 1)
	go func() {
		_, err := Get[*cycleA](context.Background(), app)
		done <- err
	}()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, errors.ErrCircularDependency))
	case <-time.After(2 * time.Second):
		t.Fatal("resolution of a singleton cycle did not return")
	}
}

func TestApplicationContext_ScopeFallback(t *testing.T) {
	ctx := context.Background()
	app := newRepoContext(t)
	require.NoError(t, Bind[Repository](app).Scope("tenant").ToInstance(&memoryRepo{prefix: "tenant"}))

	v, err := app.Get(ctx, KeyOf[Repository]().In("tenant"))
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", v.(Repository).Find(1))

	v, err = app.Get(ctx, KeyOf[Repository]().In("request"))
	require.NoError(t, err)
	assert.Equal(t, "mem-1", v.(Repository).Find(1))
}

func TestApplicationContext_PostProcessors(t *testing.T) {
	ctx := context.Background()
	app := New()

	var order []string
	record := func(name string) PostProcessor {
		return PostProcessorFunc{Priority: len(name), Fn: func(_ context.Context, _ *ApplicationContext, key Key, instance any) (any, error) {
			order = append(order, name)
			return nil, nil
		}}
	}
	app.AddPostProcessor(record("ccc"))
	app.AddPostProcessor(record("a"))
	app.AddPostProcessor(record("bb"))
	app.AddPostProcessor(PostProcessorFunc{Priority: 100, Fn: func(_ context.Context, _ *ApplicationContext, key Key, instance any) (any, error) {
		if r, ok := instance.(*memoryRepo); ok {
			return &memoryRepo{prefix: "wrapped-" + r.prefix}, nil
		}
		return nil, nil
	}})

	require.NoError(t, Bind[Repository](app).ToSupplier(func(context.Context, *ApplicationContext) (Repository, error) {
		return &memoryRepo{prefix: "raw"}, nil
	}))
	require.NoError(t, Bind[string](app).ToInstance("skipped"))

	repo := MustGet[Repository](ctx, app)
	assert.Equal(t, "wrapped-raw-1", repo.Find(1))
	assert.Equal(t, []string{"a", "bb", "ccc"}, order)

	MustGet[string](ctx, app)
	assert.Len(t, order, 3)
}

func TestApplicationContext_Close(t *testing.T) {
	ctx := context.Background()
	app := New()

	var order []string
	require.NoError(t, Bind[*closer](app).Named("first").ToSupplier(func(context.Context, *ApplicationContext) (*closer, error) {
		return &closer{name: "first", order: &order}, nil
	}))
	require.NoError(t, Bind[*closer](app).Named("second").ToSupplier(func(context.Context, *ApplicationContext) (*closer, error) {
		return &closer{name: "second", order: &order, err: fmt.Errorf("boom")}, nil
	}))

	_, err := GetNamed[*closer](ctx, app, "first")
	require.NoError(t, err)
	_, err = GetNamed[*closer](ctx, app, "second")
	require.NoError(t, err)

	err = app.Close(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrComponent))
	assert.Equal(t, []string{"second", "first"}, order)

	require.NoError(t, app.Close(ctx))
	_, err = GetNamed[*closer](ctx, app, "first")
	assert.True(t, errors.Is(err, errors.ErrApplication))
}

func TestApplicationContext_ObserverAndBindings(t *testing.T) {
	obs := &recordingObserver{}
	app := newRepoContext(t, WithObserver(obs))

	MustGet[Repository](context.Background(), app)
	assert.Equal(t, []Key{KeyOf[Repository]()}, obs.keys)

	bindings := app.Bindings()
	require.Len(t, bindings, 2)
	keys := []string{bindings[0].Key, bindings[1].Key}
	assert.Contains(t, keys, KeyOf[Repository]().String())
	assert.Contains(t, keys, KeyOf[*ApplicationContext]().String())
	assert.Equal(t, []Key{KeyOf[*ApplicationContext](), KeyOf[Repository]()}, app.Keys())
}

type prefixedRepo struct {
	Repository
}

func TestApplicationContext_SharedProviderPerKey(t *testing.T) {
	ctx := context.Background()

	for _, first := range []string{"concrete", "interface"} {
		t.Run(first+" first", func(t *testing.T) {
			app := New()
			var built atomic.Int32
			app.AddPostProcessor(PostProcessorFunc{Priority: 1, Fn: func(_ context.Context, _ *ApplicationContext, key Key, instance any) (any, error) {
				if key.Type().Kind() != reflect.Interface {
					return nil, nil
				}
				return &prefixedRepo{Repository: instance.(Repository)}, nil
			}})

			p := Supplier(func(context.Context, *ApplicationContext) (*memoryRepo, error) {
				built.Add(1)
				return &memoryRepo{prefix: "mem"}, nil
			}, Singleton)
			require.NoError(t, app.Register(KeyOf[*memoryRepo](), DefaultPriority, p))
			require.NoError(t, app.Register(KeyOf[Repository](), DefaultPriority, p))

			var (
				raw  *memoryRepo
				repo Repository
				err  error
			)
			if first == "concrete" {
				raw, err = Get[*memoryRepo](ctx, app)
				require.NoError(t, err)
				repo, err = Get[Repository](ctx, app)
				require.NoError(t, err)
			} else {
				repo, err = Get[Repository](ctx, app)
				require.NoError(t, err)
				raw, err = Get[*memoryRepo](ctx, app)
				require.NoError(t, err)
			}

			wrapped, ok := repo.(*prefixedRepo)
			require.True(t, ok, "interface key gets the processed instance")
			assert.Same(t, raw, wrapped.Repository)
			assert.Same(t, repo, MustGet[Repository](ctx, app))
			assert.Equal(t, int32(1), built.Load())
		})
	}
}

type valueComponent struct {
	Ready bool
}

func (c *valueComponent) Init(context.Context) error {
	c.Ready = true
	return nil
}

func TestApplicationContext_ValueStructInit(t *testing.T) {
	app := New()
	require.NoError(t, Bind[valueComponent](app).ToType(reflect.TypeFor[valueComponent]()))

	c, err := Get[valueComponent](context.Background(), app)
	require.NoError(t, err)
	assert.True(t, c.Ready)
}
