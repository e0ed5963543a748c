package cache

import (
	"context"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabonline/hartshorn/ioc"
	"github.com/kochabonline/hartshorn/proxy"
	"github.com/kochabonline/hartshorn/task"
)

type Pricing interface {
	Price(ctx context.Context, sku string) (int, error)
	Update(ctx context.Context, sku string, price int) error
}

type pricing struct {
	lookups int
	prices  map[string]int
}

func (p *pricing) Price(_ context.Context, sku string) (int, error) {
	p.lookups++
	return p.prices[sku], nil
}

func (p *pricing) Update(_ context.Context, sku string, price int) error {
	p.prices[sku] = price
	return nil
}

func (p *pricing) CacheSpec() Spec {
	return Spec{
		Name:  "prices",
		TTL:   map[string]time.Duration{"Price": time.Minute},
		Evict: []string{"Update"},
	}
}

type pricingStub struct {
	proxy.Stub
	PriceFn  func(ctx context.Context, sku string) (int, error)
	UpdateFn func(ctx context.Context, sku string, price int) error
}

func (s *pricingStub) Price(ctx context.Context, sku string) (int, error) {
	return s.PriceFn(ctx, sku)
}

func (s *pricingStub) Update(ctx context.Context, sku string, price int) error {
	return s.UpdateFn(ctx, sku, price)
}

func init() {
	proxy.RegisterStub(func(m *proxy.Manager) Pricing {
		s := &pricingStub{}
		if err := proxy.Populate(m, s); err != nil {
			panic(err)
		}
		return s
	})
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory("test", nil, 0)
	require.NoError(t, err)

	_, ok, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Put(ctx, "a", []byte("1"), 0))
	require.NoError(t, m.Put(ctx, "b", []byte("2"), time.Millisecond))
	v, ok, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), v)

	time.Sleep(5 * time.Millisecond)
	_, ok, _ = m.Get(ctx, "b")
	assert.False(t, ok, "expired entries are hidden")
	assert.Equal(t, 2, m.Len())
	m.Sweep()
	assert.Equal(t, 1, m.Len())

	require.NoError(t, m.Evict(ctx, "a"))
	assert.Equal(t, 0, m.Len())

	require.NoError(t, m.Put(ctx, "c", []byte("3"), 0))
	require.NoError(t, m.Clear(ctx))
	assert.Equal(t, 0, m.Len())
}

func TestMemory_SweepOnRunner(t *testing.T) {
	r := task.NewRunner()
	r.Start()
	defer r.Stop(context.Background())

	m, err := NewMemory("swept", r, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())

	require.NoError(t, m.Put(context.Background(), "k", []byte("v"), time.Millisecond))
	assert.Eventually(t, func() bool { return m.Len() == 0 }, 2*time.Second, 10*time.Millisecond)

	m.Close()
	assert.Equal(t, 0, r.Len())
}

func TestManager(t *testing.T) {
	mgr := NewManager(MemoryBackend(nil, 0))

	a, err := mgr.Get("users")
	require.NoError(t, err)
	b, err := mgr.Get("users")
	require.NoError(t, err)
	assert.Same(t, a, b)

	_, err = mgr.Get("orders")
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "users"}, mgr.Names())
	assert.NoError(t, mgr.Destroy(context.Background()))
}

func TestAdvisor(t *testing.T) {
	ctx := context.Background()
	mgr := NewManager(MemoryBackend(nil, 0))
	app := ioc.New(ioc.WithPostProcessors(proxy.NewPostProcessor(NewAdvisor(mgr))))

	target := &pricing{prices: map[string]int{"apple": 3}}
	require.NoError(t, ioc.Bind[Pricing](app).ToSupplier(func(context.Context, *ioc.ApplicationContext) (Pricing, error) {
		return target, nil
	}))

	p, err := ioc.Get[Pricing](ctx, app)
	require.NoError(t, err)
	_, proxied := p.(*pricingStub)
	require.True(t, proxied)

	for range 3 {
		price, err := p.Price(ctx, "apple")
		require.NoError(t, err)
		assert.Equal(t, 3, price)
	}
	assert.Equal(t, 1, target.lookups)

	_, err = p.Price(ctx, "pear")
	require.NoError(t, err)
	assert.Equal(t, 2, target.lookups, "different arguments use a different key")

	require.NoError(t, p.Update(ctx, "apple", 5))
	price, err := p.Price(ctx, "apple")
	require.NoError(t, err)
	assert.Equal(t, 5, price)
	assert.Equal(t, 3, target.lookups)
}

type broken struct{ pricing }

func (b *broken) CacheSpec() Spec {
	return Spec{Name: "broken", TTL: map[string]time.Duration{"Missing": time.Minute}}
}

func TestAdvisor_UnknownMethod(t *testing.T) {
	app := ioc.New(ioc.WithPostProcessors(proxy.NewPostProcessor(NewAdvisor(NewManager(MemoryBackend(nil, 0))))))
	require.NoError(t, ioc.Bind[Pricing](app).ToSupplier(func(context.Context, *ioc.ApplicationContext) (Pricing, error) {
		return &broken{pricing{prices: map[string]int{}}}, nil
	}))

	_, err := ioc.Get[Pricing](context.Background(), app)
	assert.Error(t, err)
}

func TestDecode_Mismatch(t *testing.T) {
	sig := reflect.TypeOf(func(context.Context, string) (int, error) { return 0, nil })

	_, err := decode(sig, []byte(`[1,2]`))
	assert.Error(t, err)
	_, err = decode(sig, []byte(`["x"]`))
	assert.Error(t, err)

	res, err := decode(sig, []byte(`[7]`))
	require.NoError(t, err)
	assert.Equal(t, []any{7}, res)
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	defer client.Close()

	c := NewRedis("hartshorn-test", client)
	require.NoError(t, c.Put(ctx, "a", []byte("1"), time.Minute))
	v, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), v)

	require.NoError(t, c.Clear(ctx))
	_, ok, err = c.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}
