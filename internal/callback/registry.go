package callback

import (
	"sync"

	"github.com/seantiz/tickq/internal/model"
)

// DefaultCapacity bounds the implicit default queue unless configured otherwise.
const DefaultCapacity = 100000

// CapacityPolicy decides the capacity of each queue the registry creates.
// A capacity of zero or less means unbounded.
type CapacityPolicy struct {
	// DefaultCapacity applies to the default (unnamed) queue.
	DefaultCapacity int
	// NamedCapacity applies to every named queue without an override.
	NamedCapacity int
	// Overrides sets the capacity of specific queue ids.
	Overrides map[string]int
	// EagerDefault creates the default queue when the registry is built.
	EagerDefault bool
}

// DefaultCapacityPolicy returns a bounded default queue and unbounded named queues.
func DefaultCapacityPolicy() CapacityPolicy {
	return CapacityPolicy{
		DefaultCapacity: DefaultCapacity,
		EagerDefault:    true,
	}
}

// CapacityFor returns the capacity a new queue with the given id gets. An
// override for the default queue may be keyed by its id or its label.
func (p CapacityPolicy) CapacityFor(id string) int {
	id = model.CanonicalQueue(id)
	if c, ok := p.Overrides[id]; ok {
		return max(c, 0)
	}
	if id == model.DefaultQueue {
		if c, ok := p.Overrides[model.DefaultQueueLabel]; ok {
			return max(c, 0)
		}
		return max(p.DefaultCapacity, 0)
	}
	return max(p.NamedCapacity, 0)
}

// Registry maps queue ids to queues, creating them on first use. Queues are
// never removed. It is safe for concurrent use.
//
// The id model.DefaultQueueLabel is reserved for the default queue: every
// method treats it as model.DefaultQueue, so no named queue can share the
// default queue's label.
type Registry struct {
	mu     sync.RWMutex
	queues map[string]*Queue
	order  []*Queue
	policy CapacityPolicy
	closed bool
}

// NewRegistry creates a registry using the given capacity policy.
func NewRegistry(policy CapacityPolicy) *Registry {
	r := &Registry{
		queues: make(map[string]*Queue),
		policy: policy,
	}
	if policy.EagerDefault {
		r.GetOrCreate(model.DefaultQueue)
	}
	return r
}

// GetOrCreate returns the queue for id, creating it if absent. Concurrent
// callers with the same id always observe the same queue.
func (r *Registry) GetOrCreate(id string) *Queue {
	id = model.CanonicalQueue(id)

	r.mu.RLock()
	q, ok := r.queues[id]
	r.mu.RUnlock()
	if ok {
		return q
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another caller may have won the race between the two locks.
	if q, ok := r.queues[id]; ok {
		return q
	}
	q = NewQueue(id, r.policy.CapacityFor(id))
	if r.closed {
		q.close()
	}
	r.queues[id] = q
	r.order = append(r.order, q)
	return q
}

// Get returns the queue for id without creating it.
func (r *Registry) Get(id string) (*Queue, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.queues[model.CanonicalQueue(id)]
	return q, ok
}

// Sender returns the producer handle for id, creating the queue if needed.
func (r *Registry) Sender(id string) Sender {
	return r.GetOrCreate(id)
}

// Lookup returns the producer handle for an existing queue. It never creates.
func (r *Registry) Lookup(id string) (Sender, bool) {
	q, ok := r.Get(id)
	if !ok {
		return nil, false
	}
	return q, true
}

// Queues returns every queue in creation order.
func (r *Registry) Queues() []*Queue {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Queue, len(r.order))
	copy(out, r.order)
	return out
}

// Stats returns the counters of every queue in creation order.
func (r *Registry) Stats() []QueueStats {
	queues := r.Queues()
	stats := make([]QueueStats, len(queues))
	for i, q := range queues {
		stats[i] = q.Stats()
	}
	return stats
}

// Pending returns the total number of queued tasks across all queues.
func (r *Registry) Pending() int {
	var n int
	for _, q := range r.Queues() {
		n += q.Len()
	}
	return n
}

// Discard drops every queued task in every queue without running it and
// returns how many were dropped. Queues stay open.
func (r *Registry) Discard() int {
	var n int
	for _, q := range r.Queues() {
		n += q.discard()
	}
	return n
}

// Close discards every queued task and makes every queue, including ones
// created later, reject new tasks with ErrClosed. It returns how many tasks
// were dropped. It is used at shutdown so stale work never runs against a
// torn-down host and no late task is stranded.
func (r *Registry) Close() int {
	r.mu.Lock()
	r.closed = true
	queues := make([]*Queue, len(r.order))
	copy(queues, r.order)
	r.mu.Unlock()

	var n int
	for _, q := range queues {
		n += q.close()
	}
	return n
}
