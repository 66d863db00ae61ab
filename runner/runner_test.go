package runner

import (
	"testing"
	"time"

	tdd "github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"go.nameko.dev/nameko/service"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type noopService struct{}

func TestAddServiceRejectsDuplicateName(t *testing.T) {
	assert := tdd.New(t)
	r := New(nil, nil)

	assert.Nil(r.AddService("catalog", func() any { return &noopService{} }))
	err := r.AddService("catalog", func() any { return &noopService{} })
	assert.EqualError(err, `service "catalog" already registered`)
}

func TestServiceNamesPreservesRegistrationOrder(t *testing.T) {
	assert := tdd.New(t)
	r := New(nil, nil)

	assert.Nil(r.AddService("a", func() any { return &noopService{} }))
	assert.Nil(r.AddService("b", func() any { return &noopService{} }))
	assert.Nil(r.AddService("c", func() any { return &noopService{} }))

	assert.Equal([]string{"a", "b", "c"}, r.ServiceNames())
}

func TestContainerReturnsRegisteredContainer(t *testing.T) {
	assert := tdd.New(t)
	r := New(nil, nil)
	assert.Nil(r.AddService("catalog", func() any { return &noopService{} }))

	c := r.Container("catalog")
	assert.NotNil(c)
	assert.Equal("catalog", c.ServiceName())
	assert.Nil(r.Container("missing"))
}

func TestStartStopRoundTripWithNoExtensions(t *testing.T) {
	assert := tdd.New(t)
	r := New(nil, nil)
	assert.Nil(r.AddService("catalog", func() any { return &noopService{} }))
	assert.Nil(r.AddService("billing", func() any { return &noopService{} }))

	assert.Nil(r.Start())
	assert.Nil(r.Stop())
}

func TestWaitStopsSiblingsWhenOneContainerDies(t *testing.T) {
	assert := tdd.New(t)
	r := New(nil, nil)
	assert.Nil(r.AddService("flaky", func() any { return &noopService{} }))
	assert.Nil(r.AddService("healthy", func() any { return &noopService{} }))
	assert.Nil(r.Start())

	boom := assertErr("boom")
	go func() {
		time.Sleep(10 * time.Millisecond)
		r.Container("flaky").Kill(boom)
	}()

	done := make(chan error, 1)
	go func() { done <- r.Wait() }()

	select {
	case err := <-done:
		assert.Equal(error(boom), err)
	case <-time.After(2 * time.Second):
		t.Fatal("Wait never returned; healthy siblings were never stopped")
	}

	// Wait must have stopped the healthy sibling as a side effect -
	// otherwise its own Wait would still be blocked on its died channel.
	healthyDone := make(chan error, 1)
	go func() { healthyDone <- r.Container("healthy").Wait() }()
	select {
	case err := <-healthyDone:
		assert.Nil(err)
	case <-time.After(2 * time.Second):
		t.Fatal("healthy sibling was never stopped")
	}
}

func TestRunInvokesCallbackBetweenStartAndStop(t *testing.T) {
	assert := tdd.New(t)
	var called bool

	err := Run(service.Config{}, nil, false, []ServiceDef{
		{Name: "catalog", NewService: func() any { return &noopService{} }},
	}, func(r *ServiceRunner) error {
		called = true
		assert.Equal([]string{"catalog"}, r.ServiceNames())
		return nil
	})

	assert.Nil(err)
	assert.True(called)
}

func TestRunPropagatesCallbackError(t *testing.T) {
	assert := tdd.New(t)
	boom := assertErr("boom")

	err := Run(service.Config{}, nil, false, []ServiceDef{
		{Name: "catalog", NewService: func() any { return &noopService{} }},
	}, func(*ServiceRunner) error {
		return boom
	})

	assert.Equal(boom, err)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
