// Package timer implements an entrypoint that fires on a fixed wall-clock
// interval instead of in reaction to a message, the Go analogue of
// nameko's Timer entrypoint.
package timer

import (
	"sync"
	"time"

	"go.nameko.dev/nameko/extension"
)

// Timer spawns a worker every Interval, or immediately after the
// previous worker completes if that took longer than Interval, matching
// Timer's own docstring. By default the first tick waits a full
// Interval; set Eager to fire immediately on Start instead.
type Timer struct {
	extension.BaseEntrypoint

	Interval time.Duration
	Eager    bool

	workerComplete chan struct{}
	stopOnce       sync.Once
	stop           chan struct{}
	done           chan struct{}
}

// NewTimer declares method as the handler fired every interval.
func NewTimer(interval time.Duration, method string, eager bool) *Timer {
	return &Timer{
		BaseEntrypoint: extension.BaseEntrypoint{Method: method},
		Interval:       interval,
		Eager:          eager,
		workerComplete: make(chan struct{}, 1),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// Start spawns the interval loop as a managed thread, matching
// Timer.start.
func (t *Timer) Start() error {
	t.Container().SpawnManagedThread(t.run, "timer:"+t.MethodName())
	return nil
}

// Stop signals the loop to exit and waits for it, matching Timer.stop's
// should_stop.send + gt.wait.
func (t *Timer) Stop() error {
	t.stopOnce.Do(func() { close(t.stop) })
	<-t.done
	return nil
}

// Kill signals the loop to exit without waiting for it, the closest Go
// analogue of Timer.kill's gt.kill (Go has no way to forcibly terminate
// a goroutine).
func (t *Timer) Kill() error {
	t.stopOnce.Do(func() { close(t.stop) })
	return nil
}

// nextSleep returns how long to wait before the tick numbered count,
// measured from start, matching get_next_interval's
// max(start + count*interval - now, 0).
func nextSleep(start time.Time, count int, interval time.Duration) time.Duration {
	target := start.Add(time.Duration(count) * interval)
	if d := target.Sub(time.Now()); d > 0 {
		return d
	}
	return 0
}

func (t *Timer) run() error {
	defer close(t.done)

	start := time.Now()
	count := 1
	if t.Eager {
		count = 0
	}
	sleepFor := nextSleep(start, count, t.Interval)

	for {
		timer := time.NewTimer(sleepFor)
		select {
		case <-t.stop:
			timer.Stop()
			return nil
		case <-t.Container().Context().Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		if err := t.tick(); err != nil {
			return err
		}

		select {
		case <-t.workerComplete:
		case <-t.stop:
			return nil
		case <-t.Container().Context().Done():
			return nil
		}

		count++
		sleepFor = nextSleep(start, count, t.Interval)
	}
}

// tick spawns one worker for this firing and returns any error SpawnWorker
// itself raised synchronously (as opposed to an error the worker returns,
// which only ever reaches handleResult). ContainerBeingKilled is not
// handled specially here: there is nothing useful to do about it, and
// returning it lets run propagate it out of the managed thread, killing
// the container exactly as any other unexpected SpawnWorker failure would.
func (t *Timer) tick() error {
	handleResult := func(_ *extension.WorkerContext, result any, err error) (any, error) {
		select {
		case t.workerComplete <- struct{}{}:
		default:
		}
		return result, err
	}

	if err := t.Container().SpawnWorker(t, nil, nil, nil, handleResult); err != nil {
		return err
	}
	return nil
}
