// Package hook binds the drain engine to the host's process procedure. The
// host calls Process once per tick, or on demand, with zero, one or two
// arguments selecting what to drain and for how long.
package hook

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/seantiz/tickq/internal/engine"
)

var (
	// ErrArity is returned when Process is called with more than two arguments.
	ErrArity = errors.New("process takes at most 2 arguments")

	// ErrArgumentType is returned when an argument has the wrong type for its
	// position.
	ErrArgumentType = errors.New("invalid process argument")
)

// Process drains the engine according to args:
//
//	()             drain every queue, returns nil
//	(queue)        drain one queue, returns nil
//	(millis)       drain all queues within the budget, returns bool
//	(queue, millis) drain one queue within the budget, returns bool
//
// The bool result reports whether the budget ran out before the work did.
func Process(ctx context.Context, eng *engine.Engine, args ...any) (any, error) {
	switch len(args) {
	case 0:
		if err := eng.DrainAll(ctx); err != nil {
			return nil, fmt.Errorf("process callbacks: %w", err)
		}
		return nil, nil

	case 1:
		switch v := args[0].(type) {
		case string:
			if err := eng.DrainQueue(ctx, v); err != nil {
				return nil, fmt.Errorf("process queue %q: %w", v, err)
			}
			return nil, nil
		default:
			budget, err := millis(v)
			if err != nil {
				return nil, fmt.Errorf("argument 1: %w", err)
			}
			exceeded, err := eng.DrainFor(ctx, budget)
			if err != nil {
				return exceeded, fmt.Errorf("process callbacks for %s: %w", budget, err)
			}
			return exceeded, nil
		}

	case 2:
		id, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("argument 1: %w: want queue id string, got %T", ErrArgumentType, args[0])
		}
		budget, err := millis(args[1])
		if err != nil {
			return nil, fmt.Errorf("argument 2: %w", err)
		}
		exceeded, err := eng.DrainQueueFor(ctx, id, budget)
		if err != nil {
			return exceeded, fmt.Errorf("process queue %q for %s: %w", id, budget, err)
		}
		return exceeded, nil

	default:
		return nil, fmt.Errorf("%w, got %d", ErrArity, len(args))
	}
}

// millis converts a host number of milliseconds to a duration. Fractions are
// truncated; negative values and NaN become zero.
func millis(v any) (time.Duration, error) {
	var ms float64
	switch n := v.(type) {
	case int:
		ms = float64(n)
	case int8:
		ms = float64(n)
	case int16:
		ms = float64(n)
	case int32:
		ms = float64(n)
	case int64:
		ms = float64(n)
	case uint:
		ms = float64(n)
	case uint8:
		ms = float64(n)
	case uint16:
		ms = float64(n)
	case uint32:
		ms = float64(n)
	case uint64:
		ms = float64(n)
	case float32:
		ms = float64(n)
	case float64:
		ms = n
	default:
		return 0, fmt.Errorf("%w: want number of milliseconds, got %T", ErrArgumentType, v)
	}

	if math.IsNaN(ms) || ms <= 0 {
		return 0, nil
	}
	ms = math.Trunc(ms)
	if ms >= float64(math.MaxInt64/int64(time.Millisecond)) {
		return time.Duration(math.MaxInt64), nil
	}
	return time.Duration(ms) * time.Millisecond, nil
}
