// Package concurrency provides the bounded worker pool and fan-out helpers
// the service container uses to run workers and managed background tasks.
// It replaces the green-thread pool (GreenPool/SpawningProxy/SpawningSet)
// of the original implementation with goroutines, buffered-channel
// semaphores and sync.WaitGroup; concurrency is still bounded and shared
// state still guarded by a mutex, just with OS threads instead of
// cooperative green threads.
package concurrency

import "sync"

// Pool bounds the number of workers running at any given time. It mirrors
// the role of the container's GreenPool(size=max_workers): callers block
// on Spawn until a slot frees up, so at most `size` workers ever run
// concurrently.
type Pool struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

// NewPool returns a pool that allows up to `size` concurrent workers. A
// non-positive size is treated as 1.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{sem: make(chan struct{}, size)}
}

// Spawn blocks until a slot is available, then runs fn in a new goroutine.
func (p *Pool) Spawn(fn func()) {
	p.sem <- struct{}{}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() { <-p.sem }()
		fn()
	}()
}

// TrySpawn runs fn in a new goroutine only if a slot is immediately free,
// reporting whether it did so.
func (p *Pool) TrySpawn(fn func()) bool {
	select {
	case p.sem <- struct{}{}:
	default:
		return false
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() { <-p.sem }()
		fn()
	}()
	return true
}

// WaitAll blocks until every spawned worker has returned.
func (p *Pool) WaitAll() {
	p.wg.Wait()
}

// InFlight returns the number of slots currently occupied.
func (p *Pool) InFlight() int {
	return len(p.sem)
}

// Capacity returns the pool's maximum concurrency.
func (p *Pool) Capacity() int {
	return cap(p.sem)
}
