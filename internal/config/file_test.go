package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seantiz/tickq/internal/callback"
	"github.com/seantiz/tickq/internal/model"
)

const sampleFile = `
queues:
  default_capacity: 500
  named_capacity: 64
  capacities:
    atmos: 0
  declare: [atmos, lighting]
drain:
  saturation_window: 8
  failure_log_rates:
    - window: 1s
      limit: 10
    - window: 1m
      limit: 100
`

func TestParseFile(t *testing.T) {
	f, err := ParseFile([]byte(sampleFile))
	require.NoError(t, err)

	require.NotNil(t, f.Queues.DefaultCapacity)
	assert.Equal(t, 500, *f.Queues.DefaultCapacity)
	assert.Equal(t, []string{"atmos", "lighting"}, f.Queues.Declare)
	assert.Equal(t, 8, f.Drain.SaturationWindow)

	p := f.CapacityPolicy()
	assert.Equal(t, 500, p.CapacityFor(""))
	assert.Equal(t, 0, p.CapacityFor("atmos"))
	assert.Equal(t, 64, p.CapacityFor("other"))
	assert.True(t, p.EagerDefault)

	assert.Equal(t, map[time.Duration]int{time.Second: 10, time.Minute: 100}, f.FailureLogRates())
}

func TestParseFileDefaultQueueByLabel(t *testing.T) {
	f, err := ParseFile([]byte("queues:\n  default_capacity: 500\n  capacities:\n    default: 7\n"))
	require.NoError(t, err)

	p := f.CapacityPolicy()
	assert.Equal(t, 7, p.CapacityFor(model.DefaultQueue))
	assert.Equal(t, 7, p.CapacityFor(model.DefaultQueueLabel))

	reg := callback.NewRegistry(p)
	assert.Equal(t, 7, reg.GetOrCreate(model.DefaultQueueLabel).Cap())
	assert.Len(t, reg.Queues(), 1)
}

func TestParseFileEmpty(t *testing.T) {
	f, err := ParseFile(nil)
	require.NoError(t, err)
	assert.Equal(t, callback.DefaultCapacity, f.CapacityPolicy().CapacityFor(""))
	assert.Nil(t, f.FailureLogRates())
}

func TestNilFileDefaults(t *testing.T) {
	var f *File
	assert.Equal(t, callback.DefaultCapacity, f.CapacityPolicy().CapacityFor(""))
	assert.Nil(t, f.FailureLogRates())
}

func TestParseFileInvalid(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		invalid bool
	}{
		{"negative default", "queues:\n  default_capacity: -1\n", true},
		{"negative named", "queues:\n  named_capacity: -2\n", true},
		{"negative override", "queues:\n  capacities:\n    a: -3\n", true},
		{"negative window", "drain:\n  saturation_window: -1\n", true},
		{"zero rate limit", "drain:\n  failure_log_rates:\n    - window: 1s\n      limit: 0\n", true},
		{"duplicate window", "drain:\n  failure_log_rates:\n    - {window: 1s, limit: 1}\n    - {window: 1s, limit: 2}\n", true},
		{"non-monotonic rates", "drain:\n  failure_log_rates:\n    - {window: 1s, limit: 10}\n    - {window: 1m, limit: 5}\n", true},
		{"unknown key", "queues:\n  capacity: 5\n", false},
		{"bad duration", "drain:\n  failure_log_rates:\n    - window: soon\n      limit: 1\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFile([]byte(tt.doc))
			require.Error(t, err)
			if tt.invalid {
				assert.ErrorIs(t, err, ErrInvalidFile)
			} else {
				assert.NotErrorIs(t, err, ErrInvalidFile)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickq.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleFile), 0o644))

	f, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 8, f.Drain.SaturationWindow)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
