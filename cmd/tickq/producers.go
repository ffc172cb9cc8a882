package main

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/seantiz/tickq/internal/callback"
	"github.com/seantiz/tickq/internal/host"
	"github.com/seantiz/tickq/internal/model"
)

// producer is a demo worker goroutine that hands work to the host.
type producer struct {
	queue string
	every time.Duration
	burst int
	// failRate is the fraction of tasks that fail.
	failRate float64
}

var demoProducers = []producer{
	{queue: model.DefaultQueue, every: 50 * time.Millisecond, burst: 20, failRate: 0.01},
	{queue: "atmos", every: 10 * time.Millisecond, burst: 50, failRate: 0.05},
	{queue: "lighting", every: 200 * time.Millisecond, burst: 200},
}

// run enqueues a burst of tasks every interval until ctx is cancelled. Send
// blocks on a full bounded queue, which throttles the producer.
func (p producer) run(ctx context.Context, out callback.Sender) error {
	ticker := time.NewTicker(p.every)
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		for range p.burst {
			seq++
			if err := out.Send(ctx, p.task(seq)); err != nil {
				if ctx.Err() != nil || errors.Is(err, callback.ErrClosed) {
					return nil
				}
				return err
			}
		}
	}
}

func (p producer) task(seq uint64) callback.Task {
	fail := rand.Float64() < p.failRate
	return callback.TaskFunc(func(w host.World) (any, error) {
		if fail {
			return nil, callback.Failf("%s: job %d rejected at tick %d", model.QueueLabel(p.queue), seq, w.Tick())
		}
		return seq * w.Tick(), nil
	})
}
