package model

import "time"

// DefaultQueue is the id of the implicit, unnamed global queue.
const DefaultQueue = ""

// DefaultQueueLabel is how the default queue is rendered in metrics, logs and
// API responses, where an empty string would be ambiguous. It is reserved: a
// named queue cannot use it, and it addresses the default queue wherever a
// queue id is accepted.
const DefaultQueueLabel = "default"

// Drain mode constants.
const (
	ModeAll           = "all"
	ModeQueue         = "queue"
	ModeAllBudgeted   = "all_budgeted"
	ModeQueueBudgeted = "queue_budgeted"
)

// Drain session state constants.
const (
	StateRunning        = "running"
	StateExhausted      = "exhausted"
	StateBudgetExceeded = "budget_exceeded"
	StateAborted        = "aborted"
)

// validTransitions maps each drain state to the set of states it may move to.
// Every state other than running is terminal.
var validTransitions = map[string]map[string]bool{
	StateRunning: {
		StateExhausted:      true,
		StateBudgetExceeded: true,
		StateAborted:        true,
	},
}

// ValidTransition reports whether a drain session may move from one state to another.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// QueueLabel returns a printable name for a queue id. Labels and canonical
// ids map one to one.
func QueueLabel(id string) string {
	if id == DefaultQueue {
		return DefaultQueueLabel
	}
	return id
}

// CanonicalQueue maps the reserved label back to the default queue id and
// returns every other id unchanged.
func CanonicalQueue(id string) string {
	if id == DefaultQueueLabel {
		return DefaultQueue
	}
	return id
}

// DrainRecord summarises one completed drain session.
type DrainRecord struct {
	ID         string    `json:"id"`
	Mode       string    `json:"mode"`
	Queue      string    `json:"queue,omitempty"`
	BudgetMS   *int64    `json:"budget_ms,omitempty"`
	Tick       uint64    `json:"tick"`
	Executed   int       `json:"executed"`
	Failed     int       `json:"failed"`
	Outcome    string    `json:"outcome"`
	DurationMS float64   `json:"duration_ms"`
	StartedAt  time.Time `json:"started_at"`
}

// FailureRecord is a single task failure observed during a drain session.
type FailureRecord struct {
	ID        string    `json:"id"`
	DrainID   string    `json:"drain_id"`
	Queue     string    `json:"queue"`
	Seq       int       `json:"seq"`
	Message   string    `json:"message"`
	Tick      uint64    `json:"tick"`
	CreatedAt time.Time `json:"created_at"`
}
