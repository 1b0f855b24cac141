// Package dispatch - A callback queue that hands work from background
// goroutines to a single designated goroutine, typically the render loop.
package dispatch

import (
	"sync"

	"go.uber.org/zap"

	"github.com/nvr-ai/camdetect/logging"
)

// Executor accepts callbacks to run on some other execution context.
type Executor interface {
	Dispatch(fn func())
}

// Queue is a thread-safe FIFO of callbacks drained by one goroutine.
//
// Dispatch may be called from any goroutine. Drain must only be called from
// the goroutine that owns the state the callbacks touch, once per tick.
// Callbacks queued while a Drain is running are deferred to the next Drain,
// which keeps the per-tick cost bounded.
type Queue struct {
	mu      sync.Mutex
	pending []func()
	logger  *zap.SugaredLogger
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the logger used to report panicking callbacks.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(q *Queue) {
		q.logger = logger
	}
}

// New creates an empty queue.
func New(opts ...Option) *Queue {
	q := &Queue{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Dispatch enqueues fn. Nil callbacks are ignored.
func (q *Queue) Dispatch(fn func()) {
	if fn == nil {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	q.mu.Unlock()
}

// Drain runs every callback queued before the call, in submission order.
//
// The pending list is swapped out under the lock and run outside it, so
// callbacks may Dispatch freely. A panicking callback is logged and the
// remaining callbacks still run.
//
// Returns:
//   - int: The number of callbacks run.
func (q *Queue) Drain() int {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, fn := range batch {
		q.run(fn)
	}
	return len(batch)
}

func (q *Queue) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Errorw("dispatched callback panicked", "panic", r)
		}
	}()
	fn()
}

// Len is the number of callbacks waiting for the next Drain.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
