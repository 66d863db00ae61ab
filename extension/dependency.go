package extension

// DependencyProvider is anything injected into a service instance before a
// worker runs and given a chance to react to the worker's outcome
// afterwards - a database session, an RPC proxy, an event dispatcher.
type DependencyProvider interface {
	Extension
	// AttrName is the field name on the service struct this dependency is
	// injected into, set once when the provider is registered on the
	// container (the bind(container, attr_name) step in the original).
	AttrName() string
	SetAttrName(name string)
	// GetDependency returns the value injected into the worker's service
	// instance for this invocation.
	GetDependency(ctx *WorkerContext) (any, error)
	// WorkerSetup runs before the worker's handler, WorkerResult once after
	// it returns, and WorkerTeardown after WorkerResult - both regardless of
	// outcome - mirroring worker_setup/worker_result/worker_teardown.
	WorkerSetup(ctx *WorkerContext) error
	WorkerResult(ctx *WorkerContext, result any, err error) error
	WorkerTeardown(ctx *WorkerContext) error
}

// BaseDependencyProvider supplies no-op WorkerSetup/WorkerResult/
// WorkerTeardown and the attr-name bookkeeping, so a concrete provider
// need only implement GetDependency (and override whichever lifecycle
// hooks it actually uses).
type BaseDependencyProvider struct {
	Base
	attrName string
}

func (d *BaseDependencyProvider) AttrName() string        { return d.attrName }
func (d *BaseDependencyProvider) SetAttrName(name string) { d.attrName = name }

func (d *BaseDependencyProvider) WorkerSetup(*WorkerContext) error             { return nil }
func (d *BaseDependencyProvider) WorkerResult(*WorkerContext, any, error) error { return nil }
func (d *BaseDependencyProvider) WorkerTeardown(*WorkerContext) error          { return nil }
