package config

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/seantiz/tickq/internal/callback"
)

// ErrInvalidFile is returned when a config file parses but holds invalid values.
var ErrInvalidFile = errors.New("invalid config file")

// File is the optional YAML configuration document:
//
//	queues:
//	  default_capacity: 100000
//	  named_capacity: 0
//	  capacities:
//	    atmos: 5000
//	  declare: [atmos, lighting]
//	drain:
//	  saturation_window: 5
//	  failure_log_rates:
//	    - window: 1s
//	      limit: 10
type File struct {
	Queues QueuesConfig `yaml:"queues"`
	Drain  DrainConfig  `yaml:"drain"`
}

// QueuesConfig sets queue capacities. A capacity of zero means unbounded.
type QueuesConfig struct {
	// DefaultCapacity bounds the default queue. Nil keeps
	// callback.DefaultCapacity.
	DefaultCapacity *int           `yaml:"default_capacity"`
	NamedCapacity   int            `yaml:"named_capacity"`
	Capacities      map[string]int `yaml:"capacities"`
	// Declare lists queues created at startup rather than on first use.
	Declare []string `yaml:"declare"`
}

// DrainConfig tunes the drain engine.
type DrainConfig struct {
	SaturationWindow int          `yaml:"saturation_window"`
	FailureLogRates  []RateConfig `yaml:"failure_log_rates"`
}

// RateConfig allows Limit failure log lines per queue in any Window.
type RateConfig struct {
	Window time.Duration `yaml:"window"`
	Limit  int           `yaml:"limit"`
}

// LoadFile reads and validates a YAML config file. Unknown keys are errors.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	f, err := ParseFile(data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return f, nil
}

// ParseFile decodes and validates a YAML config document.
func ParseFile(data []byte) (*File, error) {
	f := &File{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks the document for values the engine cannot use.
func (f *File) Validate() error {
	if c := f.Queues.DefaultCapacity; c != nil && *c < 0 {
		return fmt.Errorf("%w: queues.default_capacity must be >= 0, got %d", ErrInvalidFile, *c)
	}
	if f.Queues.NamedCapacity < 0 {
		return fmt.Errorf("%w: queues.named_capacity must be >= 0, got %d", ErrInvalidFile, f.Queues.NamedCapacity)
	}
	for id, c := range f.Queues.Capacities {
		if c < 0 {
			return fmt.Errorf("%w: queues.capacities[%q] must be >= 0, got %d", ErrInvalidFile, id, c)
		}
	}
	if f.Drain.SaturationWindow < 0 {
		return fmt.Errorf("%w: drain.saturation_window must be >= 0, got %d", ErrInvalidFile, f.Drain.SaturationWindow)
	}
	for i, r := range f.Drain.FailureLogRates {
		if r.Window <= 0 || r.Limit <= 0 {
			return fmt.Errorf("%w: drain.failure_log_rates[%d] needs a positive window and limit", ErrInvalidFile, i)
		}
	}
	return validateRates(f.Drain.FailureLogRates)
}

// validateRates checks that longer windows allow more events but at a lower
// rate, which catrate requires.
func validateRates(rates []RateConfig) error {
	sorted := slices.Clone(rates)
	slices.SortFunc(sorted, func(a, b RateConfig) int { return cmp.Compare(a.Window, b.Window) })
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if cur.Window == prev.Window {
			return fmt.Errorf("%w: drain.failure_log_rates has window %s twice", ErrInvalidFile, cur.Window)
		}
		if cur.Limit <= prev.Limit ||
			float64(cur.Limit)/float64(cur.Window) >= float64(prev.Limit)/float64(prev.Window) {
			return fmt.Errorf("%w: drain.failure_log_rates %s:%d must allow more events at a lower rate than %s:%d",
				ErrInvalidFile, cur.Window, cur.Limit, prev.Window, prev.Limit)
		}
	}
	return nil
}

// CapacityPolicy builds the registry capacity policy. The default queue is
// always created eagerly.
func (f *File) CapacityPolicy() callback.CapacityPolicy {
	p := callback.DefaultCapacityPolicy()
	if f == nil {
		return p
	}
	if f.Queues.DefaultCapacity != nil {
		p.DefaultCapacity = *f.Queues.DefaultCapacity
	}
	p.NamedCapacity = f.Queues.NamedCapacity
	if len(f.Queues.Capacities) != 0 {
		p.Overrides = make(map[string]int, len(f.Queues.Capacities))
		for id, c := range f.Queues.Capacities {
			p.Overrides[id] = c
		}
	}
	return p
}

// FailureLogRates returns the failure log rates as catrate rates, or nil if
// none are configured.
func (f *File) FailureLogRates() map[time.Duration]int {
	if f == nil || len(f.Drain.FailureLogRates) == 0 {
		return nil
	}
	rates := make(map[time.Duration]int, len(f.Drain.FailureLogRates))
	for _, r := range f.Drain.FailureLogRates {
		rates[r.Window] = r.Limit
	}
	return rates
}
