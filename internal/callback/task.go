package callback

import (
	"fmt"

	"github.com/seantiz/tickq/internal/host"
)

// Task is a unit of deferred work. It runs once, on the host goroutine, with
// the world handle of the drain that popped it.
type Task interface {
	Run(w host.World) (any, error)
}

// TaskFunc adapts a function taking the world handle to the Task interface.
type TaskFunc func(w host.World) (any, error)

// Run implements Task.
func (f TaskFunc) Run(w host.World) (any, error) { return f(w) }

// Thunk adapts a function that needs no world handle to the Task interface.
type Thunk func() (any, error)

// Run implements Task.
func (f Thunk) Run(host.World) (any, error) { return f() }

// Failure is a domain-level task error. Its message is what the host sees.
type Failure struct {
	Message string
}

func (f *Failure) Error() string { return f.Message }

// Failf returns a Failure with a formatted message.
func Failf(format string, args ...any) error {
	return &Failure{Message: fmt.Sprintf(format, args...)}
}
