package engine

import (
	"sync"

	"github.com/seantiz/tickq/internal/model"
)

// subscriberBufferSize is the channel buffer for each failure subscriber.
// Failures are dropped for a subscriber that falls this far behind.
const subscriberBufferSize = 64

// FailureBroker fans task failures out to live subscribers, e.g. SSE clients.
// It is safe for concurrent use. Publishing never blocks the drain.
type FailureBroker struct {
	mu     sync.Mutex
	subs   map[int]*failureSub
	nextID int
	closed bool
}

type failureSub struct {
	queue string
	all   bool
	ch    chan model.FailureRecord
}

// NewFailureBroker creates a new failure broker.
func NewFailureBroker() *FailureBroker {
	return &FailureBroker{
		subs: make(map[int]*failureSub),
	}
}

// Subscribe returns a channel receiving failures from the given queue and an
// unsubscribe function. After Close the returned channel is already closed.
func (b *FailureBroker) Subscribe(queueID string) (<-chan model.FailureRecord, func()) {
	return b.subscribe(&failureSub{queue: queueID})
}

// SubscribeAll is Subscribe for failures from every queue.
func (b *FailureBroker) SubscribeAll() (<-chan model.FailureRecord, func()) {
	return b.subscribe(&failureSub{all: true})
}

func (b *FailureBroker) subscribe(sub *failureSub) (<-chan model.FailureRecord, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub.ch = make(chan model.FailureRecord, subscriberBufferSize)
	if b.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = sub

	return sub.ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Publish delivers a failure to every matching subscriber.
func (b *FailureBroker) Publish(rec model.FailureRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for _, sub := range b.subs {
		if !sub.all && sub.queue != rec.Queue {
			continue
		}
		select {
		case sub.ch <- rec:
		default:
			// Slow subscriber.
		}
	}
}

// Close closes every subscriber channel. Later Subscribe calls return a
// closed channel.
func (b *FailureBroker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
}
