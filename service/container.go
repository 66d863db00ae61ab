package service

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"go.nameko.dev/nameko/concurrency"
	"go.nameko.dev/nameko/extension"
	xlog "go.nameko.dev/nameko/log"
)

// Option configures a Container at construction time.
type Option func(*Container)

// WithLogger sets the logger used by the container and handed to every
// extension it binds, default log.Discard().
func WithLogger(ll xlog.Logger) Option {
	return func(c *Container) { c.log = ll }
}

// Container hosts one service instance's worth of extensions: it builds a
// fresh service value per worker, injects dependency-provider values onto
// it, and runs the target method, exactly as ServiceContainer does in the
// original, minus the reflection-based discovery step (§9's "replace
// reflection with explicit factories" redesign) - entrypoints and
// dependencies are registered explicitly via RegisterEntrypoint/Register
// instead of being scanned off the service class.
type Container struct {
	name       string
	newService func() any
	config     Config
	maxWorkers int
	log        xlog.Logger

	mu           sync.Mutex
	entrypoints  []extension.Entrypoint
	dependencies []depBinding

	sharedMu sync.Mutex
	shared   map[string]extension.Extension

	pool    *concurrency.Pool
	managed concurrency.TaskGroup

	workersMu sync.Mutex
	workers   map[*extension.WorkerContext]struct{}

	ctx    context.Context
	cancel context.CancelFunc

	beingKilled int32

	startOnce sync.Once
	started   bool

	diedMu  sync.Mutex
	died    chan struct{}
	diedErr error
	diedSet bool
}

type depBinding struct {
	provider extension.DependencyProvider
	field    string
}

// New builds an unstarted container for the service produced by
// newService (called once per spawned worker - a fresh instance every
// time, matching `service = self.service_cls()`). cfg is overlaid on
// DefaultConfig via NewConfig.
func New(serviceName string, newService func() any, cfg Config, opts ...Option) *Container {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Container{
		name:       serviceName,
		newService: newService,
		config:     NewConfig(cfg),
		log:        xlog.Discard(),
		shared:     make(map[string]extension.Extension),
		workers:    make(map[*extension.WorkerContext]struct{}),
		ctx:        ctx,
		cancel:     cancel,
		died:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.maxWorkers = c.config.Int(MaxWorkersKey, DefaultMaxWorkers)
	c.pool = concurrency.NewPool(c.maxWorkers)
	return c
}

// ServiceName returns the bound service's unique name.
func (c *Container) ServiceName() string { return c.name }

// Config exposes the container's resolved configuration map.
func (c *Container) Config() map[string]any {
	out := make(map[string]any, len(c.config))
	for k, v := range c.config {
		out[k] = v
	}
	return out
}

// MaxWorkers returns the worker pool's capacity.
func (c *Container) MaxWorkers() int { return c.maxWorkers }

// Logger returns the container's logger.
func (c *Container) Logger() xlog.Logger { return c.log }

// Context is canceled once Stop or Kill begins.
func (c *Container) Context() context.Context { return c.ctx }

// RegisterEntrypoint binds entry to the container. Call before Start.
func (c *Container) RegisterEntrypoint(entry extension.Entrypoint) error {
	if err := entry.Bind(c); err != nil {
		return err
	}
	c.mu.Lock()
	c.entrypoints = append(c.entrypoints, entry)
	c.mu.Unlock()
	return nil
}

// Register binds dep to the container and arranges for its value to be
// injected into the field named fieldName on every spawned service
// instance - the Go analogue of `dependency.bind(container, attr_name)`.
func (c *Container) Register(dep extension.DependencyProvider, fieldName string) error {
	if err := dep.Bind(c); err != nil {
		return err
	}
	dep.SetAttrName(fieldName)
	c.mu.Lock()
	c.dependencies = append(c.dependencies, depBinding{provider: dep, field: fieldName})
	c.mu.Unlock()
	return nil
}

// Shared returns the extension registered under key for this container,
// building it with factory on first use - the Go analogue of
// SharedExtension.bind's shared_extensions cache, folded into the
// container itself instead of kept as a parallel type.
func (c *Container) Shared(key string, factory func() extension.Extension) extension.Extension {
	c.sharedMu.Lock()
	defer c.sharedMu.Unlock()
	if ext, ok := c.shared[key]; ok {
		return ext
	}
	ext := factory()
	_ = ext.Bind(c)
	c.shared[key] = ext
	return ext
}

func (c *Container) allExtensions() []extension.Extension {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]extension.Extension, 0, len(c.entrypoints)+len(c.dependencies))
	for _, e := range c.entrypoints {
		out = append(out, e)
	}
	for _, d := range c.dependencies {
		out = append(out, d.provider)
	}
	c.sharedMu.Lock()
	for _, ext := range c.shared {
		out = append(out, ext)
	}
	c.sharedMu.Unlock()
	return out
}

// Start sets up then starts every bound extension: all Setup calls
// complete before any Start call begins, so Start can rely on every
// extension's Setup having already run.
func (c *Container) Start() error {
	exts := c.allExtensions()
	if errs := concurrency.SpawnAll(exts, func(e extension.Extension) error { return e.Setup() }); len(errs) > 0 {
		return errs[0]
	}
	if errs := concurrency.SpawnAll(exts, func(e extension.Extension) error { return e.Start() }); len(errs) > 0 {
		return errs[0]
	}
	c.started = true
	return nil
}

// Stop drains the container: entrypoints stop first so no new worker can
// be spawned, then the pool is waited idle, then dependencies and shared
// extensions stop, then any remaining managed threads are asked to exit
// via Context cancellation. Safe to call once; a second call is a no-op
// once died has been signaled.
func (c *Container) Stop() error {
	select {
	case <-c.died:
		return c.diedErr
	default:
	}

	c.mu.Lock()
	entrypoints := append([]extension.Entrypoint(nil), c.entrypoints...)
	deps := append([]depBinding(nil), c.dependencies...)
	c.mu.Unlock()

	concurrency.SpawnAll(entrypoints, func(e extension.Entrypoint) error { return e.Stop() })
	c.pool.WaitAll()
	concurrency.SpawnAll(deps, func(d depBinding) error { return d.provider.Stop() })

	c.sharedMu.Lock()
	shared := make([]extension.Extension, 0, len(c.shared))
	for _, ext := range c.shared {
		shared = append(shared, ext)
	}
	c.sharedMu.Unlock()
	concurrency.SpawnAll(shared, func(e extension.Extension) error { return e.Stop() })

	c.cancel()
	c.managed.Wait()
	c.started = false
	c.signalDied(nil)
	return nil
}

// Kill tears the container down without draining: it marks the
// container as being killed (so SpawnWorker starts failing immediately),
// kills every extension, and cancels Context so managed threads exit.
// Go cannot forcibly terminate an in-flight worker goroutine the way a
// green thread can be killed; Kill does not wait for in-flight workers,
// it only prevents new ones and tears down extensions and managed
// threads promptly.
func (c *Container) Kill(cause error) {
	select {
	case <-c.died:
		return
	default:
	}
	atomic.StoreInt32(&c.beingKilled, 1)

	c.mu.Lock()
	entrypoints := append([]extension.Entrypoint(nil), c.entrypoints...)
	c.mu.Unlock()

	safelyKill := func(exts []extension.Extension) {
		concurrency.SpawnAll(exts, func(e extension.Extension) error {
			defer func() { recover() }() //nolint:errcheck
			return e.Kill()
		})
	}
	epAsExt := make([]extension.Extension, len(entrypoints))
	for i, e := range entrypoints {
		epAsExt[i] = e
	}
	safelyKill(epAsExt)
	safelyKill(c.allExtensions())

	c.cancel()
	c.started = false
	c.signalDied(cause)
}

func (c *Container) signalDied(err error) {
	c.diedMu.Lock()
	defer c.diedMu.Unlock()
	if c.diedSet {
		return
	}
	c.diedSet = true
	c.diedErr = err
	close(c.died)
}

// WorkersInFlight reports how many workers are currently running.
func (c *Container) WorkersInFlight() int {
	c.workersMu.Lock()
	defer c.workersMu.Unlock()
	return len(c.workers)
}

// Wait blocks until the container has stopped or been killed, returning
// the cause if it died with one.
func (c *Container) Wait() error {
	<-c.died
	return c.diedErr
}

// SpawnManagedThread runs fn in a background goroutine tracked by the
// container. An unexpected (non-nil error, or panicking) exit kills the
// container with that failure as cause, matching
// `_handle_thread_exited`'s reaction to an uncaught exception.
func (c *Container) SpawnManagedThread(fn func() error, name string) {
	c.managed.Go(fn, func(err error) {
		c.log.WithField("thread", name).WithField("error", err.Error()).Error("managed thread exited unexpectedly")
		c.Kill(err)
	})
}

// SpawnWorker builds a fresh service instance, injects every registered
// dependency's value onto it by field name, and runs entry's target
// method against args/kwargs in a pool-bounded goroutine. handleResult,
// if non-nil, replaces the default no-op result handling - the hook
// Consumer/Rpc entrypoints use to ack/requeue/reply.
func (c *Container) SpawnWorker(
	entry extension.Entrypoint,
	args []any,
	kwargs map[string]any,
	ctxData map[string]any,
	handleResult extension.ResultHandler,
) error {
	if atomic.LoadInt32(&c.beingKilled) == 1 {
		return extension.ErrContainerBeingKilled
	}

	svc := c.newService()
	parentCallsTracked := c.config.Int(ParentCallsTrackedKey, DefaultParentCallsTracked)
	wc := extension.NewWorkerContext(c, svc, entry, args, kwargs, ctxData, parentCallsTracked)

	c.workersMu.Lock()
	c.workers[wc] = struct{}{}
	c.workersMu.Unlock()

	c.pool.Spawn(func() {
		defer func() {
			c.workersMu.Lock()
			delete(c.workers, wc)
			c.workersMu.Unlock()
		}()
		c.runWorker(wc, handleResult)
	})
	return nil
}

func (c *Container) runWorker(wc *extension.WorkerContext, handleResult extension.ResultHandler) {
	c.mu.Lock()
	deps := append([]depBinding(nil), c.dependencies...)
	c.mu.Unlock()

	for _, d := range deps {
		value, err := d.provider.GetDependency(wc)
		if err != nil {
			c.log.WithField("dependency", d.field).WithField("error", err.Error()).Error("failed to resolve dependency")
			continue
		}
		setServiceField(wc.Service, d.field, value)
	}
	for _, d := range deps {
		if err := d.provider.WorkerSetup(wc); err != nil {
			c.log.WithField("error", err.Error()).Error("worker setup failed")
		}
	}

	result, err := invokeHandler(wc)
	if err != nil {
		if wc.Entry.IsExpected(err) {
			c.log.WithField("call-id", wc.CallID()).WithField("error", err.Error()).Warning("expected error handling worker")
		} else {
			c.log.WithField("call-id", wc.CallID()).WithField("error", err.Error()).Error("error handling worker")
		}
	}

	if handleResult != nil {
		result, err = handleResult(wc, result, err)
	}

	for _, d := range deps {
		if hErr := d.provider.WorkerResult(wc, result, err); hErr != nil {
			c.log.WithField("dependency", d.field).WithField("error", hErr.Error()).Error("worker result handling failed")
		}
	}
	for _, d := range deps {
		if hErr := d.provider.WorkerTeardown(wc); hErr != nil {
			c.log.WithField("dependency", d.field).WithField("error", hErr.Error()).Error("worker teardown failed")
		}
	}
}

func setServiceField(service any, field string, value any) {
	v := reflect.ValueOf(service)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return
	}
	elem := v.Elem()
	if elem.Kind() != reflect.Struct {
		return
	}
	f := elem.FieldByName(field)
	if !f.IsValid() || !f.CanSet() || value == nil {
		return
	}
	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(f.Type()) {
		f.Set(val)
	}
}

// invokeHandler looks up the target method by name on the worker's
// service instance and calls it with wc.Args, recovering from a panic as
// an error the same way the original converts an uncaught exception into
// exc_info.
func invokeHandler(wc *extension.WorkerContext) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &workerPanic{value: r}
		}
	}()

	v := reflect.ValueOf(wc.Service)
	method := v.MethodByName(wc.Entry.MethodName())
	if !method.IsValid() {
		return nil, &methodNotFound{name: wc.Entry.MethodName()}
	}

	t := method.Type()
	in := make([]reflect.Value, len(wc.Args))
	for i, a := range wc.Args {
		if a == nil {
			paramType := t.In(i)
			if t.IsVariadic() && i >= t.NumIn()-1 {
				paramType = t.In(t.NumIn() - 1).Elem()
			}
			in[i] = reflect.Zero(paramType)
			continue
		}
		in[i] = reflect.ValueOf(a)
	}
	out := method.Call(in)
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if e, ok := out[0].Interface().(error); ok {
			return nil, e
		}
		return out[0].Interface(), nil
	default:
		last := out[len(out)-1]
		var retErr error
		if e, ok := last.Interface().(error); ok {
			retErr = e
			out = out[:len(out)-1]
		}
		if len(out) == 1 {
			return out[0].Interface(), retErr
		}
		vals := make([]any, len(out))
		for i, o := range out {
			vals[i] = o.Interface()
		}
		return vals, retErr
	}
}

type workerPanic struct{ value any }

func (w *workerPanic) Error() string { return "worker panicked: " + toString(w.value) }

type methodNotFound struct{ name string }

func (m *methodNotFound) Error() string { return "method not found: " + m.name }

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if e, ok := v.(error); ok {
		return e.Error()
	}
	return fmt.Sprintf("%v", v)
}
