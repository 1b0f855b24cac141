package pipeline

import (
	"context"
	"sync"

	"github.com/nvr-ai/camdetect/dispatch"
)

// Future is a value or error delivered asynchronously, resolved exactly once.
//
// Continuations registered with Then never run on the goroutine that
// resolves the future; they are handed to the future's executor, usually a
// dispatch.Queue drained by the render loop.
type Future[T any] struct {
	exec dispatch.Executor
	once sync.Once
	done chan struct{}

	mu        sync.Mutex
	value     T
	err       error
	callbacks []func()
}

// NewFuture creates an unresolved future whose continuations run on exec.
func NewFuture[T any](exec dispatch.Executor) *Future[T] {
	return &Future[T]{exec: exec, done: make(chan struct{})}
}

// Resolve completes the future with v. It reports false if the future was
// already completed.
func (f *Future[T]) Resolve(v T) bool {
	return f.complete(v, nil)
}

// Reject completes the future with err. It reports false if the future was
// already completed.
func (f *Future[T]) Reject(err error) bool {
	var zero T
	return f.complete(zero, err)
}

func (f *Future[T]) complete(v T, err error) bool {
	completed := false
	f.once.Do(func() {
		f.mu.Lock()
		f.value, f.err = v, err
		callbacks := f.callbacks
		f.callbacks = nil
		close(f.done)
		f.mu.Unlock()

		for _, cb := range callbacks {
			f.exec.Dispatch(cb)
		}
		completed = true
	})
	return completed
}

// Then registers continuations for success and failure. Either may be nil.
// Registering on a completed future schedules the continuation immediately.
func (f *Future[T]) Then(onValue func(T), onErr func(error)) {
	cb := func() {
		v, err, _ := f.Result()
		if err != nil {
			if onErr != nil {
				onErr(err)
			}
			return
		}
		if onValue != nil {
			onValue(v)
		}
	}

	f.mu.Lock()
	select {
	case <-f.done:
		f.mu.Unlock()
		f.exec.Dispatch(cb)
		return
	default:
	}
	f.callbacks = append(f.callbacks, cb)
	f.mu.Unlock()
}

// Done is closed once the future completes.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Result peeks at the outcome without blocking. ok is false while the future
// is pending.
func (f *Future[T]) Result() (v T, err error, ok bool) {
	select {
	case <-f.done:
	default:
		return v, nil, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err, true
}

// Wait blocks until the future completes or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		v, err, _ := f.Result()
		return v, err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
