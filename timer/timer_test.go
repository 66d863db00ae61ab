package timer

import (
	"context"
	"testing"
	"time"

	tdd "github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"go.nameko.dev/nameko/extension"
	"go.nameko.dev/nameko/log"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNextSleepNeverNegative(t *testing.T) {
	assert := tdd.New(t)
	start := time.Now().Add(-time.Hour)
	d := nextSleep(start, 1, time.Second)
	assert.Equal(time.Duration(0), d)
}

func TestNextSleepWaitsForFutureTick(t *testing.T) {
	assert := tdd.New(t)
	start := time.Now()
	d := nextSleep(start, 5, time.Second)
	assert.True(d > 4*time.Second && d <= 5*time.Second)
}

// fakeContainer spawns workers inline and synchronously, enough to drive
// Timer's loop deterministically without a real scheduler.
type fakeContainer struct {
	ctx    context.Context
	cancel context.CancelFunc
	ticks  chan struct{}
}

func newFakeContainer() *fakeContainer {
	ctx, cancel := context.WithCancel(context.Background())
	return &fakeContainer{ctx: ctx, cancel: cancel, ticks: make(chan struct{}, 16)}
}

func (f *fakeContainer) ServiceName() string      { return "svc" }
func (f *fakeContainer) Config() map[string]any   { return map[string]any{} }
func (f *fakeContainer) MaxWorkers() int          { return 1 }
func (f *fakeContainer) Logger() log.Logger       { return log.Discard() }
func (f *fakeContainer) Context() context.Context { return f.ctx }

func (f *fakeContainer) SpawnWorker(
	_ extension.Entrypoint, _ []any, _ map[string]any, _ map[string]any, handleResult extension.ResultHandler,
) error {
	f.ticks <- struct{}{}
	if handleResult != nil {
		go func() { _, _ = handleResult(nil, nil, nil) }()
	}
	return nil
}

func (f *fakeContainer) SpawnManagedThread(fn func() error, _ string) {
	go func() { _ = fn() }()
}

func (f *fakeContainer) Shared(key string, factory func() extension.Extension) extension.Extension {
	return factory()
}

func TestTimerFiresRepeatedlyUntilStopped(t *testing.T) {
	assert := tdd.New(t)
	container := newFakeContainer()
	tm := NewTimer(10*time.Millisecond, "Tick", true)
	assert.Nil(tm.Bind(container))
	assert.Nil(tm.Start())

	for i := 0; i < 3; i++ {
		select {
		case <-container.ticks:
		case <-time.After(time.Second):
			t.Fatalf("tick %d never fired", i)
		}
	}

	assert.Nil(tm.Stop())
}

func TestTimerStopReturnsAfterLoopExits(t *testing.T) {
	assert := tdd.New(t)
	container := newFakeContainer()
	tm := NewTimer(5*time.Millisecond, "Tick", false)
	assert.Nil(tm.Bind(container))
	assert.Nil(tm.Start())

	done := make(chan struct{})
	go func() {
		assert.Nil(tm.Stop())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stop never returned")
	}
}
