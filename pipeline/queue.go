package pipeline

import (
	"sync"

	"github.com/nvr-ai/camdetect/detection"
)

type task struct {
	frameID int
	data    []byte
	future  *Future[detection.Results]
}

// taskQueue is a FIFO guarded by a mutex and condition variable. A capacity
// of zero means unbounded.
type taskQueue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []task
	capacity int
	closed   bool
}

func newTaskQueue(capacity int) *taskQueue {
	q := &taskQueue{capacity: capacity}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *taskQueue) push(t task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrPipelineShutdown
	}
	if q.capacity > 0 && len(q.items) >= q.capacity {
		return ErrQueueFull
	}
	q.items = append(q.items, t)
	q.cond.Signal()
	return nil
}

// pop blocks until a task is available. It returns false once the queue is
// closed, even if tasks remain; close hands those back to the caller.
func (q *taskQueue) pop() (task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return task{}, false
	}
	t := q.items[0]
	q.items[0] = task{}
	q.items = q.items[1:]
	return t, true
}

// close stops the queue and returns the tasks that were never popped.
func (q *taskQueue) close() []task {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	remaining := q.items
	q.items = nil
	q.cond.Broadcast()
	return remaining
}

func (q *taskQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
