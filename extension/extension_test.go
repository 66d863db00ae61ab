package extension

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	tdd "github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"go.nameko.dev/nameko/log"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeContainer struct {
	name string
}

func (f *fakeContainer) ServiceName() string       { return f.name }
func (f *fakeContainer) Config() map[string]any    { return nil }
func (f *fakeContainer) MaxWorkers() int           { return 10 }
func (f *fakeContainer) Logger() log.Logger         { return log.Discard() }
func (f *fakeContainer) Context() context.Context   { return context.Background() }
func (f *fakeContainer) SpawnWorker(Entrypoint, []any, map[string]any, map[string]any, ResultHandler) error {
	return nil
}
func (f *fakeContainer) SpawnManagedThread(func() error, string) {}
func (f *fakeContainer) Shared(key string, factory func() Extension) Extension {
	return factory()
}

type fakeEntrypoint struct {
	BaseEntrypoint
}

func TestWorkerContextCallIDStack(t *testing.T) {
	assert := tdd.New(t)
	container := &fakeContainer{name: "orders"}
	entry := &fakeEntrypoint{BaseEntrypoint{Method: "place_order"}}

	wc := NewWorkerContext(container, nil, entry, nil, nil, nil, 2)
	assert.NotEmpty(wc.CallID())
	assert.Len(wc.CallIDStack(), 1)

	child := NewWorkerContext(container, nil, entry, nil, nil, wc.ContextData(), 2)
	assert.Len(child.CallIDStack(), 2)
	assert.Equal(wc.CallID(), child.CallIDStack()[0])

	// a third generation trims the oldest entry once maxStack (2) is exceeded
	grandchild := NewWorkerContext(container, nil, entry, nil, nil, child.ContextData(), 1)
	assert.Len(grandchild.CallIDStack(), 2)
}

func TestProviderCollectorWaitsForRegisteredProviders(t *testing.T) {
	assert := tdd.New(t)
	c := NewProviderCollector()

	done := make(chan struct{})
	c.RegisterProvider("a")
	c.RegisterProvider("b")
	go func() {
		c.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before every provider unregistered")
	case <-time.After(50 * time.Millisecond):
	}

	c.UnregisterProvider("a")
	c.UnregisterProvider("b")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after last provider unregistered")
	}
	assert.True(true)
}

func TestProviderCollectorReturnsImmediatelyWhenNothingRegistered(t *testing.T) {
	c := NewProviderCollector()
	done := make(chan struct{})
	go func() {
		c.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait must return immediately when no provider ever registered")
	}
}

func TestProviderCollectorRearmsAfterDrain(t *testing.T) {
	c := NewProviderCollector()
	c.RegisterProvider("a")
	c.UnregisterProvider("a")

	c.RegisterProvider("b")
	done := make(chan struct{})
	go func() {
		c.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait must block again once a new provider is registered after a drain")
	case <-time.After(50 * time.Millisecond):
	}
	c.UnregisterProvider("b")
	<-done
}

func TestBaseEntrypointExpectedExceptions(t *testing.T) {
	assert := tdd.New(t)
	sentinel := errors.New("bad request")
	e := &BaseEntrypoint{
		Expected: []ExceptionMatcher{func(err error) bool { return errors.Is(err, sentinel) }},
	}
	assert.True(e.IsExpected(sentinel))
	assert.False(e.IsExpected(errors.New("boom")))
	assert.False(e.IsExpected(nil))
}

func TestCheckSignatureArity(t *testing.T) {
	assert := tdd.New(t)
	handler := reflect.ValueOf(func(a string, b int) {})

	assert.Nil(CheckSignature(handler, []any{"x", 1}))
	assert.ErrorIs(CheckSignature(handler, []any{"x"}), ErrIncorrectSignature)
	assert.ErrorIs(CheckSignature(handler, []any{1, 1}), ErrIncorrectSignature)
}
