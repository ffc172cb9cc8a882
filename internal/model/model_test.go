package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDFormat(t *testing.T) {
	// 26 chars, Crockford Base32 alphabet.
	assert.Regexp(t, `^[0123456789ABCDEFGHJKMNPQRSTVWXYZ]{26}$`, NewID())
}

func TestNewIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for range 1000 {
		id := NewID()
		require.False(t, seen[id], "NewID() produced duplicate: %s", id)
		seen[id] = true
	}
}

func TestValidTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{StateRunning, StateExhausted, true},
		{StateRunning, StateBudgetExceeded, true},
		{StateRunning, StateAborted, true},
		{StateRunning, StateRunning, false},
		{StateExhausted, StateRunning, false},
		{StateBudgetExceeded, StateExhausted, false},
		{StateAborted, StateExhausted, false},
		{"unknown", StateExhausted, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidTransition(tt.from, tt.to), "ValidTransition(%q, %q)", tt.from, tt.to)
	}
}

func TestQueueLabel(t *testing.T) {
	assert.Equal(t, "default", QueueLabel(DefaultQueue))
	assert.Equal(t, "atmos", QueueLabel("atmos"))
}

func TestCanonicalQueue(t *testing.T) {
	tests := []struct {
		id, want string
	}{
		{DefaultQueue, DefaultQueue},
		{DefaultQueueLabel, DefaultQueue},
		{"atmos", "atmos"},
		{"Default", "Default"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanonicalQueue(tt.id), "CanonicalQueue(%q)", tt.id)
		// Labels round-trip, so no two queues share one.
		assert.Equal(t, tt.want, CanonicalQueue(QueueLabel(tt.id)), "CanonicalQueue(QueueLabel(%q))", tt.id)
	}
}

func TestModeConstants(t *testing.T) {
	assert.Equal(t, "all", ModeAll)
	assert.Equal(t, "queue", ModeQueue)
	assert.Equal(t, "all_budgeted", ModeAllBudgeted)
	assert.Equal(t, "queue_budgeted", ModeQueueBudgeted)
}
