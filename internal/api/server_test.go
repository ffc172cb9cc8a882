package api

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seantiz/tickq/internal/callback"
	"github.com/seantiz/tickq/internal/engine"
	"github.com/seantiz/tickq/internal/host"
	"github.com/seantiz/tickq/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	reg := callback.NewRegistry(callback.DefaultCapacityPolicy())
	h := host.Funcs{
		WorldFn:  func() host.World { return host.StaticWorld(1) },
		ReportFn: func(string) error { return nil },
	}
	eng := engine.NewEngine(reg, h, logger, engine.Options{Journal: s})

	// Engine first: Shutdown flushes the journal into the store.
	t.Cleanup(func() {
		eng.Shutdown()
		<-eng.Done()
		s.Close()
	})
	return NewServer(":0", s, reg, eng, logger)
}

func TestRequestIDHeader(t *testing.T) {
	srv := newTestServer(t)
	var reqID string
	srv.Router().Get("/test", func(w http.ResponseWriter, r *http.Request) {
		reqID = middleware.GetReqID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	req, err := http.NewRequest("GET", ts.URL+"/test", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "abc123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "abc123", reqID, "request id seen by handler")
}

func TestPanicRecovery(t *testing.T) {
	srv := newTestServer(t)
	srv.Router().Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/panic")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestCORSHeaders(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	req, err := http.NewRequest("OPTIONS", ts.URL+"/v1/queues", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestWriteMethodsNotRouted(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/queues/", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
