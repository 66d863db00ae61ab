package service

import (
	"errors"
	"testing"
	"time"

	tdd "github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"go.nameko.dev/nameko/extension"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type echoService struct {
	Greeter *echoDependency `field:"Greeter"`
}

func (s *echoService) Echo(msg string) string {
	return s.Greeter.prefix + msg
}

func (s *echoService) Boom() error {
	return errors.New("boom")
}

type echoDependency struct {
	extension.BaseDependencyProvider
	prefix string
}

func (d *echoDependency) GetDependency(*extension.WorkerContext) (any, error) {
	return d, nil
}

type echoEntrypoint struct {
	extension.BaseEntrypoint
}

func newEchoEntrypoint(method string) *echoEntrypoint {
	return &echoEntrypoint{extension.BaseEntrypoint{Method: method}}
}

func TestSpawnWorkerInjectsDependencyAndCallsMethod(t *testing.T) {
	assert := tdd.New(t)

	dep := &echoDependency{prefix: "hello, "}
	c := New("greeter", func() any { return &echoService{} }, nil)
	assert.Nil(c.Register(dep, "Greeter"))

	entry := newEchoEntrypoint("Echo")
	assert.Nil(c.RegisterEntrypoint(entry))
	assert.Nil(c.Start())

	done := make(chan struct{})
	var got any
	handle := func(_ *extension.WorkerContext, result any, err error) (any, error) {
		got = result
		close(done)
		return result, err
	}
	assert.Nil(c.SpawnWorker(entry, []any{"world"}, nil, nil, handle))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not complete")
	}
	assert.Equal("hello, world", got)
	assert.Nil(c.Stop())
}

func TestSpawnWorkerReportsMethodError(t *testing.T) {
	assert := tdd.New(t)

	c := New("greeter", func() any { return &echoService{} }, nil)
	entry := newEchoEntrypoint("Boom")
	assert.Nil(c.RegisterEntrypoint(entry))
	assert.Nil(c.Start())

	done := make(chan error, 1)
	handle := func(_ *extension.WorkerContext, result any, err error) (any, error) {
		done <- err
		return result, err
	}
	assert.Nil(c.SpawnWorker(entry, nil, nil, nil, handle))

	select {
	case err := <-done:
		assert.EqualError(err, "boom")
	case <-time.After(time.Second):
		t.Fatal("worker did not complete")
	}
	assert.Nil(c.Stop())
}

func TestSpawnWorkerFailsWhileBeingKilled(t *testing.T) {
	assert := tdd.New(t)

	c := New("greeter", func() any { return &echoService{} }, nil)
	entry := newEchoEntrypoint("Echo")
	assert.Nil(c.RegisterEntrypoint(entry))
	assert.Nil(c.Start())

	c.Kill(nil)
	err := c.SpawnWorker(entry, []any{"x"}, nil, nil, nil)
	assert.ErrorIs(err, extension.ErrContainerBeingKilled)
	assert.Nil(c.Wait())
}

func TestKillSignalsWaitWithCause(t *testing.T) {
	assert := tdd.New(t)

	c := New("greeter", func() any { return &echoService{} }, nil)
	cause := errors.New("managed thread exploded")
	c.Kill(cause)
	assert.Equal(cause, c.Wait())
}

func TestSharedReturnsSameInstancePerKey(t *testing.T) {
	assert := tdd.New(t)
	c := New("greeter", func() any { return &echoService{} }, nil)

	calls := 0
	factory := func() extension.Extension {
		calls++
		return &echoDependency{prefix: "x"}
	}
	a := c.Shared("queue-consumer", factory)
	b := c.Shared("queue-consumer", factory)
	assert.Same(a, b)
	assert.Equal(1, calls)
}
