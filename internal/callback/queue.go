package callback

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/seantiz/tickq/internal/model"
)

var (
	// ErrQueueFull is returned by TrySend when a bounded queue is at capacity.
	ErrQueueFull = errors.New("callback queue full")

	// ErrNilTask is returned when a nil task is enqueued.
	ErrNilTask = errors.New("nil task")

	// ErrClosed is returned when a task is enqueued after the queue closed.
	ErrClosed = errors.New("callback queue closed")
)

// Sender is the producer side of a queue. It is safe for concurrent use.
type Sender interface {
	// TrySend enqueues t without blocking. A bounded queue at capacity
	// rejects the task with ErrQueueFull.
	TrySend(t Task) error

	// Send enqueues t, blocking while a bounded queue is at capacity until
	// space frees up or ctx is done.
	Send(ctx context.Context, t Task) error
}

// QueueStats is a point-in-time view of a queue's counters.
type QueueStats struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Len       int    `json:"len"`
	Capacity  int    `json:"capacity"`
	Enqueued  uint64 `json:"enqueued"`
	Rejected  uint64 `json:"rejected"`
	Delivered uint64 `json:"delivered"`
	Discarded uint64 `json:"discarded"`
}

// Queue is a multi-producer, single-consumer FIFO of tasks.
type Queue struct {
	id       string
	capacity int
	buf      buffer

	// gate is held shared by producers for the whole enqueue, so close can
	// wait them out before its final discard.
	gate      sync.RWMutex
	closed    bool
	done      chan struct{}
	closeOnce sync.Once

	enqueued  atomic.Uint64
	rejected  atomic.Uint64
	delivered atomic.Uint64
	discarded atomic.Uint64
}

// Compile-time interface satisfaction check.
var _ Sender = (*Queue)(nil)

// NewQueue creates a queue. A capacity of zero or less makes it unbounded.
func NewQueue(id string, capacity int) *Queue {
	q := &Queue{id: id, done: make(chan struct{})}
	if capacity > 0 {
		q.capacity = capacity
		q.buf = newChanBuffer(capacity)
	} else {
		q.buf = newListBuffer()
	}
	return q
}

// ID returns the queue id.
func (q *Queue) ID() string { return q.id }

// Cap returns the queue capacity, or 0 if unbounded.
func (q *Queue) Cap() int { return q.capacity }

// Len returns the number of queued tasks.
func (q *Queue) Len() int { return q.buf.len() }

// TrySend implements Sender.
func (q *Queue) TrySend(t Task) error {
	if t == nil {
		return ErrNilTask
	}
	q.gate.RLock()
	defer q.gate.RUnlock()

	if q.closed {
		return fmt.Errorf("enqueue to %q: %w", model.QueueLabel(q.id), ErrClosed)
	}
	if !q.buf.push(t) {
		q.rejected.Add(1)
		return fmt.Errorf("enqueue to %q: %w", model.QueueLabel(q.id), ErrQueueFull)
	}
	q.enqueued.Add(1)
	return nil
}

// Send implements Sender. A sender blocked on a full queue is released with
// ErrClosed when the queue closes.
func (q *Queue) Send(ctx context.Context, t Task) error {
	if t == nil {
		return ErrNilTask
	}
	q.gate.RLock()
	defer q.gate.RUnlock()

	if q.closed {
		return fmt.Errorf("enqueue to %q: %w", model.QueueLabel(q.id), ErrClosed)
	}
	if err := q.buf.pushWait(ctx, q.done, t); err != nil {
		return fmt.Errorf("enqueue to %q: %w", model.QueueLabel(q.id), err)
	}
	q.enqueued.Add(1)
	return nil
}

// TryPopAll returns an iterator over the tasks queued at the time of the call.
// It never waits for more tasks; tasks enqueued during iteration are left for
// a later call. Breaking out of the loop leaves the rest queued, in order.
// Only the drain engine consumes from a queue.
func (q *Queue) TryPopAll() iter.Seq[Task] {
	n := q.buf.len()
	return func(yield func(Task) bool) {
		for range n {
			t, ok := q.buf.pop()
			if !ok {
				return
			}
			q.delivered.Add(1)
			if !yield(t) {
				return
			}
		}
	}
}

// discard drops every queued task without running it.
func (q *Queue) discard() int {
	var n int
	for {
		if _, ok := q.buf.pop(); !ok {
			break
		}
		n++
	}
	q.discarded.Add(uint64(n))
	return n
}

// close makes the queue reject new tasks and discards what is queued. It
// returns how many tasks were dropped. Closing twice drops nothing more.
func (q *Queue) close() int {
	q.closeOnce.Do(func() { close(q.done) })

	// Blocked senders have been released; wait for in-flight pushes.
	q.gate.Lock()
	q.closed = true
	q.gate.Unlock()

	return q.discard()
}

// Closed reports whether the queue rejects new tasks.
func (q *Queue) Closed() bool {
	q.gate.RLock()
	defer q.gate.RUnlock()
	return q.closed
}

// Stats returns the queue's counters.
func (q *Queue) Stats() QueueStats {
	return QueueStats{
		ID:        q.id,
		Name:      model.QueueLabel(q.id),
		Len:       q.Len(),
		Capacity:  q.capacity,
		Enqueued:  q.enqueued.Load(),
		Rejected:  q.rejected.Load(),
		Delivered: q.delivered.Load(),
		Discarded: q.discarded.Load(),
	}
}
