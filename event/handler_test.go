package event

import (
	"context"
	"testing"

	tdd "github.com/stretchr/testify/assert"

	"go.nameko.dev/nameko/extension"
	"go.nameko.dev/nameko/log"
)

// fakeContainer is a network-free stand-in for service.Container, enough
// to exercise the pure queue-naming logic in Setup without ever touching
// a broker.
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

func (f *fakeContainer) Shared(key string, factory func() extension.Extension) extension.Extension {
	if e, ok := f.shared[key]; ok {
		return e
	}
	e := factory()
	_ = e.Bind(f)
	f.shared[key] = e
	return e
}

func boundHandler(t *testing.T, serviceName string, h *EventHandler) *EventHandler {
	t.Helper()
	container := newFakeContainer(serviceName)
	if err := h.Bind(container); err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	return h
}

func TestQueueNameServicePool(t *testing.T) {
	assert := tdd.New(t)
	h := boundHandler(t, "monitor", NewEventHandler("orders", "order_created", "OnOrderCreated"))

	name, err := h.queueName()
	assert.Nil(err)
	assert.Equal("evt-orders-order_created--monitor.OnOrderCreated", name)
}

func TestQueueNameSingleton(t *testing.T) {
	assert := tdd.New(t)
	h := boundHandler(t, "monitor", NewEventHandler(
		"orders", "order_created", "OnOrderCreated", WithHandlerType(Singleton),
	))

	name, err := h.queueName()
	assert.Nil(err)
	assert.Equal("evt-orders-order_created", name)
}

func TestQueueNameBroadcastIncludesIdentifier(t *testing.T) {
	assert := tdd.New(t)
	h := boundHandler(t, "monitor", NewEventHandler(
		"orders", "order_created", "OnOrderCreated",
		WithHandlerType(Broadcast), WithReliableDelivery(false),
	))

	name, err := h.queueName()
	assert.Nil(err)
	assert.Contains(name, "evt-orders-order_created--monitor.OnOrderCreated-")
	assert.True(len(name) > len("evt-orders-order_created--monitor.OnOrderCreated-"))
}

func TestQueueNameBroadcastWithReliableDeliveryErrors(t *testing.T) {
	assert := tdd.New(t)
	h := boundHandler(t, "monitor", NewEventHandler(
		"orders", "order_created", "OnOrderCreated",
		WithHandlerType(Broadcast), WithReliableDelivery(true),
	))

	_, err := h.queueName()
	assert.Equal(ErrBroadcastRequiresUnreliableDelivery, err)
}

func TestSetupRejectsInvalidBroadcastConfiguration(t *testing.T) {
	assert := tdd.New(t)
	h := boundHandler(t, "monitor", NewEventHandler(
		"orders", "order_created", "OnOrderCreated",
		WithHandlerType(Broadcast), WithReliableDelivery(true),
	))

	err := h.Setup()
	assert.Equal(ErrBroadcastRequiresUnreliableDelivery, err)
}

func TestDefaultsMatchServicePoolWithReliableDelivery(t *testing.T) {
	assert := tdd.New(t)
	h := NewEventHandler("orders", "order_created", "OnOrderCreated")

	assert.Equal(ServicePool, h.HandlerType)
	assert.True(h.ReliableDelivery)
	assert.False(h.RequeueOnError)
}
