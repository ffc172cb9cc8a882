package callback

import (
	"context"
	"sync"
)

// chunkSize is the number of tasks per node of an unbounded queue's list.
const chunkSize = 128

// buffer is the storage behind a Queue. push and pushWait may be called from
// any goroutine; pop is called by the single consumer, and by a closing queue
// discarding its tasks. Both are safe together. pushWait gives up
// with ErrClosed once done is closed.
type buffer interface {
	push(t Task) bool
	pushWait(ctx context.Context, done <-chan struct{}, t Task) error
	pop() (Task, bool)
	len() int
}

// chanBuffer is a bounded buffer.
type chanBuffer struct {
	ch chan Task
}

func newChanBuffer(capacity int) *chanBuffer {
	return &chanBuffer{ch: make(chan Task, capacity)}
}

func (b *chanBuffer) push(t Task) bool {
	select {
	case b.ch <- t:
		return true
	default:
		return false
	}
}

func (b *chanBuffer) pushWait(ctx context.Context, done <-chan struct{}, t Task) error {
	select {
	case b.ch <- t:
		return nil
	case <-done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *chanBuffer) pop() (Task, bool) {
	select {
	case t := <-b.ch:
		return t, true
	default:
		return nil, false
	}
}

func (b *chanBuffer) len() int { return len(b.ch) }

// listBuffer is an unbounded buffer: a linked list of fixed-size chunks, so
// growth never copies queued tasks.
type listBuffer struct {
	mu     sync.Mutex
	head   *chunk
	tail   *chunk
	length int
}

// chunk uses read/write cursors for O(1) push and pop.
type chunk struct {
	tasks   [chunkSize]Task
	next    *chunk
	readPos int
	pos     int
}

var chunkPool = sync.Pool{
	New: func() any {
		return &chunk{}
	},
}

func newChunk() *chunk {
	c := chunkPool.Get().(*chunk)
	c.pos = 0
	c.readPos = 0
	c.next = nil
	return c
}

// returnChunk clears the slots so pooled chunks do not pin task closures.
func returnChunk(c *chunk) {
	for i := 0; i < c.pos; i++ {
		c.tasks[i] = nil
	}
	c.pos = 0
	c.readPos = 0
	c.next = nil
	chunkPool.Put(c)
}

func newListBuffer() *listBuffer {
	return &listBuffer{}
}

func (b *listBuffer) push(t Task) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tail == nil {
		b.tail = newChunk()
		b.head = b.tail
	}
	if b.tail.pos == len(b.tail.tasks) {
		next := newChunk()
		b.tail.next = next
		b.tail = next
	}

	b.tail.tasks[b.tail.pos] = t
	b.tail.pos++
	b.length++
	return true
}

func (b *listBuffer) pushWait(_ context.Context, _ <-chan struct{}, t Task) error {
	b.push(t)
	return nil
}

func (b *listBuffer) pop() (Task, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.head == nil || b.head.readPos >= b.head.pos {
		return nil, false
	}

	t := b.head.tasks[b.head.readPos]
	b.head.tasks[b.head.readPos] = nil
	b.head.readPos++
	b.length--

	if b.head.readPos >= b.head.pos {
		if b.head == b.tail {
			// Only chunk and now empty: rewind it in place.
			b.head.pos = 0
			b.head.readPos = 0
		} else {
			old := b.head
			b.head = b.head.next
			returnChunk(old)
		}
	}

	return t, true
}

func (b *listBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.length
}
