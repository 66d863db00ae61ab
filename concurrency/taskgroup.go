package concurrency

import (
	"fmt"
	"sync"
)

// TaskGroup tracks a set of long-running managed goroutines, the
// equivalent of the container's spawn_managed_thread threads (the
// reconnect loop, the queue consumer's run loop, a timer's tick loop).
// Unlike Pool, a TaskGroup is unbounded - managed threads are few and
// long-lived, not per-request workers.
type TaskGroup struct {
	mu    sync.Mutex
	wg    sync.WaitGroup
	count int
}

// Go starts fn in a new goroutine. If fn returns a non-nil error, or
// panics, onExit is called with the failure; a clean (nil-error, no
// panic) return does not call onExit. This mirrors
// _handle_thread_exited, which only reacts to uncaught exceptions, not to
// threads that exit normally.
func (g *TaskGroup) Go(fn func() error, onExit func(error)) {
	g.mu.Lock()
	g.count++
	g.mu.Unlock()
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			g.mu.Lock()
			g.count--
			g.mu.Unlock()
		}()
		var err error
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("managed thread panic: %v", r)
				}
			}()
			err = fn()
		}()
		if err != nil && onExit != nil {
			onExit(err)
		}
	}()
}

// Wait blocks until every managed goroutine in the group has returned.
func (g *TaskGroup) Wait() {
	g.wg.Wait()
}

// Count returns the number of goroutines currently tracked by the group.
func (g *TaskGroup) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count
}
