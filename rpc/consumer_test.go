package rpc

import (
	"context"
	"testing"

	tdd "github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"go.nameko.dev/nameko/extension"
	"go.nameko.dev/nameko/log"
	"go.nameko.dev/nameko/rpcerr"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeContainer is a network-free stand-in for service.Container, enough
// to exercise the pure bookkeeping extensions do in Bind/Setup without
// ever touching a broker.
type fakeContainer struct {
	name   string
	config map[string]any
	logger log.Logger
	ctx    context.Context

	shared map[string]extension.Extension
}

func newFakeContainer(name string) *fakeContainer {
	return &fakeContainer{
		name:   name,
		config: map[string]any{},
		logger: log.Discard(),
		ctx:    context.Background(),
		shared: map[string]extension.Extension{},
	}
}

func (f *fakeContainer) ServiceName() string      { return f.name }
func (f *fakeContainer) Config() map[string]any   { return f.config }
func (f *fakeContainer) MaxWorkers() int          { return 1 }
func (f *fakeContainer) Logger() log.Logger       { return f.logger }
func (f *fakeContainer) Context() context.Context { return f.ctx }

func (f *fakeContainer) SpawnWorker(extension.Entrypoint, []any, map[string]any, map[string]any, extension.ResultHandler) error {
	return nil
}

func (f *fakeContainer) SpawnManagedThread(func() error, string) {}

// Shared mirrors service.Container.Shared's own behavior of binding a
// newly-created shared extension to the container before caching it, so
// a *RpcConsumer obtained this way is already usable exactly as it would
// be inside a real container.
func (f *fakeContainer) Shared(key string, factory func() extension.Extension) extension.Extension {
	if e, ok := f.shared[key]; ok {
		return e
	}
	e := factory()
	_ = e.Bind(f)
	f.shared[key] = e
	return e
}

func newBoundRpcConsumer(t *testing.T, serviceName string) (*RpcConsumer, *fakeContainer) {
	t.Helper()
	container := newFakeContainer(serviceName)
	c := sharedRpcConsumer(container)
	return c, container
}

func boundRpc(t *testing.T, c *RpcConsumer, container *fakeContainer, method string) *Rpc {
	t.Helper()
	r := NewRpc(method)
	if err := r.Bind(container); err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	c.registerMethod(r)
	return r
}

func TestProviderForDispatchesByRoutingKey(t *testing.T) {
	assert := tdd.New(t)
	c, container := newBoundRpcConsumer(t, "greeter")
	echo := boundRpc(t, c, container, "Echo")

	got, err := c.providerFor("greeter.Echo")
	assert.Nil(err)
	assert.Same(echo, got)
}

func TestProviderForReturnsMethodNotFoundForUnknownMethod(t *testing.T) {
	assert := tdd.New(t)
	c, container := newBoundRpcConsumer(t, "greeter")
	boundRpc(t, c, container, "Echo")

	_, err := c.providerFor("greeter.Nope")
	notFound, ok := err.(*rpcerr.MethodNotFound)
	assert.True(ok)
	assert.Equal("Nope", notFound.Method)
	assert.EqualError(err, "method not found: Nope")
}

func TestUnregisterMethodRemovesLastProvider(t *testing.T) {
	assert := tdd.New(t)
	c, container := newBoundRpcConsumer(t, "greeter")
	echo := boundRpc(t, c, container, "Echo")

	assert.Equal(1, len(c.providers))
	c.unregisterMethod(echo)
	assert.Equal(0, len(c.providers))
}
