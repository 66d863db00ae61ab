// Package extension defines the contracts a service container binds
// against: dependency providers (things injected into a service instance)
// and entrypoints (things that spawn workers in response to external
// events). It replaces the reflection-based class-attribute scanning and
// prototype-clone binding of the original extension model
// (Extension.__new__ capturing constructor args, bind() cloning via
// cls(*args, **kwargs)) with explicit Go constructors plus an explicit
// registration call on the container - the redesign the original notes
// call for when porting away from a dynamically-typed host language.
package extension

import (
	"context"
	"errors"

	"go.nameko.dev/nameko/log"
)

// ErrContainerBeingKilled is returned by SpawnWorker once the container
// has begun its kill sequence, matching ContainerBeingKilled: entrypoints
// that see it should react as though they were never available, e.g. an
// AMQP-backed entrypoint requeues the message it was about to process.
var ErrContainerBeingKilled = errors.New("container is being killed")

// Container is the subset of ServiceContainer behavior an extension needs
// in order to bind to it and do its work. Kept narrow and interface-typed
// so the concrete container (package service) and the extensions
// (packages messaging, rpc, event, timer) never import each other.
type Container interface {
	ServiceName() string
	Config() map[string]any
	MaxWorkers() int
	Logger() log.Logger

	// Context is canceled once the container starts stopping or is
	// killed. Long-running managed threads select on it to exit
	// cooperatively instead of being forcibly terminated, the closest Go
	// analogue of killing a green thread.
	Context() context.Context

	// SpawnWorker runs entry's handler against a fresh service instance in
	// a managed worker goroutine, bounded by the container's worker pool.
	// handleResult, if non-nil, is invoked with the worker's result/error
	// before the dependencies' WorkerResult hooks, exactly as Entrypoint's
	// own handle_result override works in the original; the container
	// logs a worker error whether or not handleResult is set.
	SpawnWorker(entry Entrypoint, args []any, kwargs map[string]any, ctxData map[string]any, handleResult ResultHandler) error

	// SpawnManagedThread runs fn in a background goroutine tracked by the
	// container; an error return kills the container, mirroring
	// spawn_managed_thread's _handle_thread_exited.
	SpawnManagedThread(fn func() error, name string)

	// Shared returns the container-wide instance registered under key,
	// creating it via factory on first use. Used by extensions that must
	// be singletons per-container regardless of how many entrypoints or
	// dependency providers reference them (QueueConsumer, RpcConsumer,
	// ReplyListener), the Go equivalent of SharedExtension.bind's
	// shared_extensions cache.
	Shared(key string, factory func() Extension) Extension
}

// WorkerResult is what a worker produced: either a return value or an
// error raised while running the entrypoint's handler.
type WorkerResult struct {
	Value any
	Err   error
}

// ResultHandler customizes how a worker's outcome is processed, the Go
// analogue of Entrypoint.handle_result being overridden by Consumer/Rpc
// to ack or requeue the originating message.
type ResultHandler func(ctx *WorkerContext, result any, err error) (any, error)

// Extension is the lifecycle every dependency provider and entrypoint
// implements: bound once to a container, set up before the container
// starts accepting work, started, and eventually stopped or killed.
type Extension interface {
	Bind(container Container) error
	Setup() error
	Start() error
	Stop() error
	Kill() error
}

// Base provides no-op Setup/Start/Stop/Kill and stores the bound
// container, meant to be embedded by concrete extensions that only need
// to override a subset of the lifecycle.
type Base struct {
	container Container
}

// Bind stores the container reference. Override to add extension-specific
// setup, calling Base.Bind first.
func (b *Base) Bind(c Container) error {
	b.container = c
	return nil
}

// Container returns the container this extension was bound to, or nil if
// Bind has not been called yet.
func (b *Base) Container() Container { return b.container }

func (b *Base) Setup() error { return nil }
func (b *Base) Start() error { return nil }
func (b *Base) Stop() error  { return nil }
func (b *Base) Kill() error  { return nil }
