package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, doc string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickq.yaml")
	writeFile(t, path, "drain:\n  saturation_window: 3\n")

	changes := make(chan *File, 4)
	w, err := NewWatcher(path, slog.New(slog.NewJSONHandler(io.Discard, nil)), func(f *File) {
		select {
		case changes <- f:
		default:
		}
	})
	require.NoError(t, err)
	w.debounce = 10 * time.Millisecond

	require.Equal(t, 3, w.Current().Drain.SaturationWindow)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Go(func() {
		assert.NoError(t, w.Run(ctx))
	})
	defer func() {
		cancel()
		wg.Wait()
	}()

	// Give the watcher time to register before writing.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		writeFile(t, path, "drain:\n  saturation_window: 9\n")
		select {
		case f := <-changes:
			require.Equal(t, 9, f.Drain.SaturationWindow)
			assert.Equal(t, 9, w.Current().Drain.SaturationWindow)
			return
		case <-deadline:
			t.Fatal("no reload within 5s")
		case <-tick.C:
		}
	}
}

func TestWatcherKeepsConfigOnInvalidReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickq.yaml")
	writeFile(t, path, "drain:\n  saturation_window: 4\n")

	called := false
	w, err := NewWatcher(path, slog.New(slog.NewJSONHandler(io.Discard, nil)), func(*File) { called = true })
	require.NoError(t, err)

	writeFile(t, path, "drain:\n  saturation_window: -4\n")
	w.reload()

	assert.False(t, called, "onChange called for an invalid file")
	assert.Equal(t, 4, w.Current().Drain.SaturationWindow)
}

func TestNewWatcherMissingFile(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "nope.yaml"), slog.Default(), nil)
	assert.Error(t, err)
}
