package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seantiz/tickq/internal/callback"
	"github.com/seantiz/tickq/internal/model"
)

func recordTestDrain(t *testing.T, srv *Server, outcome string, executed int) *model.DrainRecord {
	t.Helper()
	rec := &model.DrainRecord{
		ID:        model.NewID(),
		Mode:      model.ModeAllBudgeted,
		Tick:      9,
		Executed:  executed,
		Outcome:   outcome,
		StartedAt: time.Now().UTC(),
	}
	require.NoError(t, srv.store.RecordDrain(context.Background(), rec, nil))
	return rec
}

func TestListDrainsEmpty(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/drains")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body listDrainsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotNil(t, body.Drains, "drains must be an empty list, not null")
	assert.Empty(t, body.Drains)
	assert.Equal(t, defaultListLimit, body.Limit)
}

func TestListDrainsPagination(t *testing.T) {
	srv := newTestServer(t)
	for range 3 {
		recordTestDrain(t, srv, model.StateExhausted, 1)
	}

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/drains?limit=2&offset=-4")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body listDrainsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 3, body.Total)
	assert.Len(t, body.Drains, 2)
	assert.Equal(t, 0, body.Offset)
}

func TestGetDrain(t *testing.T) {
	srv := newTestServer(t)
	rec := recordTestDrain(t, srv, model.StateBudgetExceeded, 5)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/drains/" + rec.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got model.DrainRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, model.StateBudgetExceeded, got.Outcome)
	assert.Equal(t, 5, got.Executed)

	resp2, err := http.Get(ts.URL + "/v1/drains/nonexistent")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestEngineDrainsAreJournaled(t *testing.T) {
	srv := newTestServer(t)
	require.NoError(t, srv.registry.Sender("atmos").TrySend(noopTask()))
	require.NoError(t, srv.registry.Sender("atmos").TrySend(callback.Thunk(func() (any, error) {
		return nil, callback.Failf("boom")
	})))

	require.NoError(t, srv.engine.DrainQueue(context.Background(), "atmos"))
	// Flush the journal.
	srv.engine.Shutdown()

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/drains")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body listDrainsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, 1, body.Total)

	d := body.Drains[0]
	assert.Equal(t, model.ModeQueue, d.Mode)
	assert.Equal(t, "atmos", d.Queue)
	assert.Equal(t, 2, d.Executed)
	assert.Equal(t, 1, d.Failed)
}
