package ioc

import (
	"context"
	"reflect"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kochabonline/hartshorn/errors"
	ireflect "github.com/kochabonline/hartshorn/core/reflect"
	"github.com/kochabonline/hartshorn/log"
)

// MissingBindingPolicy decides what happens when a key has no usable provider.
type MissingBindingPolicy int

const (
	// FailOnMissing returns a CodeMissingBinding error.
	FailOnMissing MissingBindingPolicy = iota
	// IgnoreMissing logs a warning and resolves to the zero value.
	IgnoreMissing
)

func (p MissingBindingPolicy) String() string {
	if p == IgnoreMissing {
		return "ignore"
	}
	return "fail"
}

// ParseMissingBindingPolicy maps "fail" and "ignore" to a policy.
func ParseMissingBindingPolicy(s string) (MissingBindingPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail":
		return FailOnMissing, nil
	case "ignore":
		return IgnoreMissing, nil
	default:
		return FailOnMissing, errors.Config("unknown missing binding policy %q", s)
	}
}

// ApplicationContext binds keys to provider hierarchies and resolves them on request.
type ApplicationContext struct {
	mu          sync.RWMutex
	hierarchies map[Key]*BindingHierarchy
	order       []Key

	singletons sync.Map // Provider -> *singletonCell

	procMu     sync.RWMutex
	processors []PostProcessor

	strategy   ProviderSelectionStrategy
	policy     MissingBindingPolicy
	autowire   bool
	properties PropertyResolver
	observer   Observer
	registry   *registry
	log        *log.Logger
	closed     atomic.Bool
}

// singletonCell holds the instance built by one provider and, per requested
// key, the result of the post-processor pipeline. A provider bound under a
// concrete key and an exposed interface builds once but can be proxied for
// the interface only.
type singletonCell struct {
	mu    sync.Mutex
	done  bool
	raw   any
	views map[Key]any
}

// Option configures an ApplicationContext.
type Option func(*ApplicationContext)

// WithStrategy sets the default provider selection strategy.
func WithStrategy(s ProviderSelectionStrategy) Option {
	return func(a *ApplicationContext) {
		if s != nil {
			a.strategy = s
		}
	}
}

// WithMissingBindingPolicy sets how unresolvable keys are reported.
func WithMissingBindingPolicy(p MissingBindingPolicy) Option {
	return func(a *ApplicationContext) {
		a.policy = p
	}
}

// WithAutowire enables building unbound struct keys on demand.
func WithAutowire(enabled bool) Option {
	return func(a *ApplicationContext) {
		a.autowire = enabled
	}
}

func WithLogger(l *log.Logger) Option {
	return func(a *ApplicationContext) {
		if l != nil {
			a.log = l
		}
	}
}

func WithPostProcessors(ps ...PostProcessor) Option {
	return func(a *ApplicationContext) {
		for _, p := range ps {
			a.AddPostProcessor(p)
		}
	}
}

// WithProperties sets the source for `value` tagged fields.
func WithProperties(r PropertyResolver) Option {
	return func(a *ApplicationContext) {
		a.properties = r
	}
}

func WithObserver(o Observer) Option {
	return func(a *ApplicationContext) {
		a.observer = o
	}
}

// New creates an application context. The context is bound to its own key so
// components may depend on *ApplicationContext.
func New(opts ...Option) *ApplicationContext {
	a := &ApplicationContext{
		hierarchies: make(map[Key]*BindingHierarchy),
		strategy:    HighestPriority(),
		policy:      FailOnMissing,
		registry:    newRegistry(),
		log:         log.Global().Component("ioc"),
	}
	for _, opt := range opts {
		opt(a)
	}

	_ = a.Register(KeyOf[*ApplicationContext](), DefaultPriority, Instance(a))
	return a
}

// Register adds provider to the hierarchy of key. A taken priority is reported
// with CodePriorityTaken and leaves the existing binding in place.
func (a *ApplicationContext) Register(key Key, priority int, provider Provider) error {
	if key.IsZero() {
		return errors.InvalidProvider("cannot bind a zero key")
	}
	if err := a.hierarchy(key).Add(priority, provider); err != nil {
		return err
	}
	a.log.Debug().Msgf("[ioc] | bind: %s | priority: %d | kind: %s", key, priority, provider.Kind())
	return nil
}

// Replace binds provider at priority, overwriting any existing binding.
func (a *ApplicationContext) Replace(key Key, priority int, provider Provider) error {
	if key.IsZero() {
		return errors.InvalidProvider("cannot bind a zero key")
	}
	if provider == nil {
		return errors.InvalidProvider("nil provider for %s", key)
	}
	h := a.hierarchy(key)
	if old, ok := h.Get(priority); ok {
		a.singletons.Delete(old)
	}
	h.Set(priority, provider)
	a.log.Debug().Msgf("[ioc] | replace: %s | priority: %d | kind: %s", key, priority, provider.Kind())
	return nil
}

// hierarchy returns the hierarchy for key, creating it when absent.
func (a *ApplicationContext) hierarchy(key Key) *BindingHierarchy {
	a.mu.RLock()
	h, ok := a.hierarchies[key]
	a.mu.RUnlock()
	if ok {
		return h
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if h, ok = a.hierarchies[key]; ok {
		return h
	}
	h = NewBindingHierarchy(key)
	a.hierarchies[key] = h
	a.order = append(a.order, key)
	return h
}

// Hierarchy returns the hierarchy bound to exactly key.
func (a *ApplicationContext) Hierarchy(key Key) (*BindingHierarchy, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	h, ok := a.hierarchies[key]
	return h, ok
}

// find returns the non-empty hierarchy for key, falling back from a scoped key
// to the application scope.
func (a *ApplicationContext) find(key Key) *BindingHierarchy {
	for {
		if h, ok := a.Hierarchy(key); ok && h.Len() > 0 {
			return h
		}
		parent, ok := key.parent()
		if !ok {
			return nil
		}
		key = parent
	}
}

// Contains reports whether key can be resolved without hitting the missing
// binding policy.
func (a *ApplicationContext) Contains(key Key) bool {
	return a.find(key) != nil || a.autowirable(key)
}

// Keys returns every bound key in registration order.
func (a *ApplicationContext) Keys() []Key {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.order)
}

// Binding describes one registered provider.
type Binding struct {
	Key       string `json:"key"`
	Priority  int    `json:"priority"`
	Kind      string `json:"kind"`
	Lifecycle string `json:"lifecycle"`
}

// Bindings lists every provider of every key, sorted by key then priority.
func (a *ApplicationContext) Bindings() []Binding {
	var out []Binding
	for _, key := range a.Keys() {
		h, _ := a.Hierarchy(key)
		for _, e := range h.Providers() {
			out = append(out, Binding{
				Key:       key.String(),
				Priority:  e.Priority,
				Kind:      string(e.Provider.Kind()),
				Lifecycle: e.Provider.Lifecycle().String(),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Key < out[j].Key
	})
	return out
}

// AddPostProcessor adds p, keeping processors sorted by Order. Processors with
// equal order keep their insertion order.
func (a *ApplicationContext) AddPostProcessor(p PostProcessor) {
	if p == nil {
		return
	}
	a.procMu.Lock()
	defer a.procMu.Unlock()

	i := sort.Search(len(a.processors), func(i int) bool {
		return a.processors[i].Order() > p.Order()
	})
	a.processors = slices.Insert(a.processors, i, p)
}

func (a *ApplicationContext) postProcessors() []PostProcessor {
	a.procMu.RLock()
	defer a.procMu.RUnlock()
	return slices.Clone(a.processors)
}

// Get resolves key with the default selection strategy.
func (a *ApplicationContext) Get(ctx context.Context, key Key) (any, error) {
	return a.GetWith(ctx, key, a.strategy)
}

// GetWith resolves key using strategy to choose among its providers.
func (a *ApplicationContext) GetWith(ctx context.Context, key Key, strategy ProviderSelectionStrategy) (v any, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strategy == nil {
		strategy = a.strategy
	}
	if a.closed.Load() {
		return nil, errors.New(errors.CodeApplication, "application context is closed")
	}

	if a.observer != nil {
		start := time.Now()
		defer func() {
			a.observer.OnResolve(key, time.Since(start), err)
		}()
	}
	return a.resolve(ctx, key, strategy)
}

func (a *ApplicationContext) resolve(ctx context.Context, key Key, strategy ProviderSelectionStrategy) (any, error) {
	if key.IsZero() {
		return nil, errors.Resolution("cannot resolve a zero key")
	}
	chain := chainFrom(ctx)
	if chain.hasKey(key) {
		return nil, a.circular(chain, key)
	}

	h := a.find(key)
	if h == nil {
		if a.autowirable(key) {
			p, _ := Struct(key.Type(), Prototype)
			return a.instantiate(ctx, key, p)
		}
		return a.handleMissingBinding(key, "no binding")
	}

	entry, ok := strategy.Select(h)
	if !ok {
		return a.handleMissingBinding(key, "no provider matches the selection strategy")
	}
	return a.instantiate(ctx, key, entry.Provider)
}

func (a *ApplicationContext) autowirable(key Key) bool {
	return a.autowire && key.Name() == "" && ireflect.IsStructLike(key.Type())
}

func (a *ApplicationContext) handleMissingBinding(key Key, reason string) (any, error) {
	if a.policy == IgnoreMissing {
		a.log.Warn().Str("key", key.String()).Msgf("[ioc] | missing binding ignored: %s", reason)
		return nil, nil
	}
	return nil, errors.MissingBinding("%s for %s", reason, key).With("key", key.String())
}

func (a *ApplicationContext) circular(chain *frame, key Key) error {
	path := append(chain.path(), key.String())
	return errors.CircularDependency("circular dependency: %s", strings.Join(path, " -> ")).
		With("key", key.String())
}

func (a *ApplicationContext) instantiate(ctx context.Context, key Key, p Provider) (any, error) {
	if p.Kind() == KindInstance {
		return p.Provide(ctx, a)
	}

	chain := chainFrom(ctx)
	if chain.hasProvider(p) {
		return nil, a.circular(chain, key)
	}
	ctx = chain.push(ctx, key, p)

	if p.Lifecycle() == Prototype {
		v, err := a.build(ctx, key, p)
		if err != nil || v == nil {
			return nil, err
		}
		return a.postProcess(ctx, key, v)
	}

	c, _ := a.singletons.LoadOrStore(p, &singletonCell{})
	cell := c.(*singletonCell)
	cell.mu.Lock()
	defer cell.mu.Unlock()

	if !cell.done {
		v, err := a.build(ctx, key, p)
		if err != nil {
			return nil, err
		}
		cell.raw, cell.done = v, true
		if v != nil {
			a.registry.track(key, v)
		}
	}
	if cell.raw == nil {
		return nil, nil
	}
	if v, ok := cell.views[key]; ok {
		return v, nil
	}

	v, err := a.postProcess(ctx, key, cell.raw)
	if err != nil {
		return nil, err
	}
	if cell.views == nil {
		cell.views = make(map[Key]any, 1)
	}
	cell.views[key] = v
	return v, nil
}

// build runs the provider, injects fields and calls Init. The result is shared
// by every key bound to the provider.
func (a *ApplicationContext) build(ctx context.Context, key Key, p Provider) (any, error) {
	v, err := p.Provide(ctx, a)
	if err != nil {
		return nil, wrapResolution(err, key)
	}
	if v == nil {
		return nil, nil
	}

	if p.Kind() != KindStruct {
		if err := a.injectInto(ctx, v); err != nil {
			return nil, err
		}
	}
	return a.initialize(ctx, key, v)
}

// initialize calls Init on v. A struct value whose Init has a pointer receiver
// is initialized through an addressable copy, and the initialized copy is returned.
func (a *ApplicationContext) initialize(ctx context.Context, key Key, v any) (any, error) {
	if init, ok := v.(Initializer); ok {
		if err := init.Init(ctx); err != nil {
			return nil, errors.Component("init %s", key).WithCause(err)
		}
		return v, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Struct || !reflect.PointerTo(rv.Type()).Implements(initializerType) {
		return v, nil
	}
	ptr := reflect.New(rv.Type())
	ptr.Elem().Set(rv)
	if err := ptr.Interface().(Initializer).Init(ctx); err != nil {
		return nil, errors.Component("init %s", key).WithCause(err)
	}
	return ptr.Elem().Interface(), nil
}

// postProcess runs the post-processor pipeline for the instance requested as key.
func (a *ApplicationContext) postProcess(ctx context.Context, key Key, v any) (any, error) {
	for _, pp := range a.postProcessors() {
		next, err := pp.Process(ctx, a, key, v)
		if err != nil {
			return nil, wrapResolution(err, key)
		}
		if next != nil {
			v = next
		}
	}
	return v, nil
}

// arguments resolves the parameters of ft.
func (a *ApplicationContext) arguments(ctx context.Context, ft reflect.Type) ([]reflect.Value, error) {
	args := make([]reflect.Value, ft.NumIn())
	for i := range args {
		pt := ft.In(i)
		switch pt {
		case contextType:
			args[i] = reflect.ValueOf(ctx)
			continue
		case appType:
			args[i] = reflect.ValueOf(a)
			continue
		}

		v, err := a.resolve(ctx, TypeKey(pt), a.strategy)
		if err != nil {
			return nil, err
		}
		if v == nil {
			args[i] = reflect.Zero(pt)
			continue
		}
		rv := reflect.ValueOf(v)
		if !rv.Type().AssignableTo(pt) {
			return nil, errors.Resolution("parameter %d: %T is not assignable to %s", i, v, ireflect.TypeName(pt))
		}
		args[i] = rv
	}
	return args, nil
}

// Close destroys singletons in reverse creation order. Further resolutions fail.
func (a *ApplicationContext) Close(ctx context.Context) error {
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}
	if deadline, ok := ctx.Deadline(); !ok || deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}
	return a.registry.destroy(ctx, a.log)
}

// HealthCheck runs every created singleton implementing HealthChecker.
func (a *ApplicationContext) HealthCheck(ctx context.Context) error {
	return a.registry.healthCheck(ctx)
}

func wrapResolution(err error, key Key) error {
	var e *errors.Error
	if errors.As(err, &e) {
		return err
	}
	return errors.Wrap(err, errors.CodeResolution, "resolve %s", key).With("key", key.String())
}

// ── resolution chain ──────────────────────────────────────────────────────────

type chainKey struct{}

// frame is one step of the current resolution chain, carried in the context.
type frame struct {
	key      Key
	provider Provider
	prev     *frame
}

func chainFrom(ctx context.Context) *frame {
	f, _ := ctx.Value(chainKey{}).(*frame)
	return f
}

func (f *frame) push(ctx context.Context, key Key, p Provider) context.Context {
	return context.WithValue(ctx, chainKey{}, &frame{key: key, provider: p, prev: f})
}

func (f *frame) hasKey(key Key) bool {
	for ; f != nil; f = f.prev {
		if f.key == key {
			return true
		}
	}
	return false
}

func (f *frame) hasProvider(p Provider) bool {
	for ; f != nil; f = f.prev {
		if f.provider == p {
			return true
		}
	}
	return false
}

func (f *frame) path() []string {
	var out []string
	for ; f != nil; f = f.prev {
		out = append(out, f.key.String())
	}
	slices.Reverse(out)
	return out
}
