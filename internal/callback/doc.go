// Package callback holds deferred tasks until the host goroutine is ready to
// run them. Producers on any goroutine enqueue into named queues; the drain
// engine is the single consumer.
//
// Each queue is FIFO. Bounded queues are backed by a buffered channel and
// reject or block at capacity; unbounded queues are backed by a chunked list
// and always accept. Queues are created lazily by the Registry and live for
// the lifetime of the process.
package callback
