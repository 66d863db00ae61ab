package concurrency

import "sync"

// SpawnAll runs fn(item) for every item concurrently and waits for all of
// them to complete, collecting every non-nil error returned. Mirrors
// SpawningProxy's default behavior (abort_on_error=False) used e.g. to
// stop every extension in a set without one failure blocking the rest.
func SpawnAll[T any](items []T, fn func(T) error) []error {
	errs := make([]error, len(items))
	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item T) {
			defer wg.Done()
			errs[i] = fn(item)
		}(i, item)
	}
	wg.Wait()

	out := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}

// FailFastAll runs fn(item) for every item concurrently and returns as
// soon as any one of them reports an error, without waiting for the rest.
// Mirrors fail_fast_imap / SpawningProxy(abort_on_error=True), used by
// ServiceRunner.start so one container failing to start aborts the whole
// startup sequence promptly. Goroutines for items still in flight when an
// error is returned are not forcibly killed - Go has no such primitive -
// so fn should itself watch a context or similar if early exit matters.
func FailFastAll[T any](items []T, fn func(T) error) error {
	results := make(chan error, len(items))
	for _, item := range items {
		go func(item T) {
			results <- fn(item)
		}(item)
	}
	for range items {
		if err := <-results; err != nil {
			return err
		}
	}
	return nil
}
