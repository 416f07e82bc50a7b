package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aihub/orchestrator/internal/agentexec"
	"github.com/aihub/orchestrator/internal/contextstore"
	"github.com/aihub/orchestrator/internal/eventbus"
	"github.com/aihub/orchestrator/internal/hub"
	"github.com/aihub/orchestrator/internal/journey"
	"github.com/aihub/orchestrator/internal/metrics"
	"github.com/aihub/orchestrator/internal/model"
	"github.com/aihub/orchestrator/internal/registry"
)

type fakeProducer struct{}

func (fakeProducer) WriteMessage(context.Context, string, []byte, []byte) error { return nil }
func (fakeProducer) Close() error                                              { return nil }

type memStore struct{ data map[string][]byte; streams map[string][]contextstore.Entry; seq int }

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}, streams: map[string][]contextstore.Entry{}}
}
func (m *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}
func (m *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.data[key] = value
	return nil
}
func (m *memStore) Delete(_ context.Context, key string) error { delete(m.data, key); return nil }
func (m *memStore) AppendStream(_ context.Context, stream string, payload map[string]any, _ int64) (string, error) {
	m.seq++
	data, _ := json.Marshal(payload)
	m.streams[stream] = append(m.streams[stream], contextstore.Entry{ID: "id", Fields: map[string]string{"data": string(data)}})
	return "id", nil
}
func (m *memStore) ReadStreamReverse(_ context.Context, stream, _ string, count int64) ([]contextstore.Entry, error) {
	entries := m.streams[stream]
	out := make([]contextstore.Entry, 0, len(entries))
	for i := len(entries) - 1; i >= 0 && int64(len(out)) < count; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}
func (m *memStore) Close() error { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := newMemStore()
	mgr := contextstore.NewManager(store, "hub")
	bus := eventbus.NewBus(fakeProducer{}, mgr, "ai.agent.events", "hub.events", "hub:events")
	collector := metrics.NewCollector()

	regSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]model.Agent{})
	}))
	t.Cleanup(regSrv.Close)
	client := registry.NewClient(regSrv.URL, "", mgr)
	cache := registry.NewCache(client, time.Minute)
	executor := agentexec.New(cache, nil, bus, collector)
	router := hub.NewRouter(cache, bus, mgr, executor, collector)
	deps := &journey.Dependencies{Checkpoints: mgr, Bus: bus, Disclaimer: "This is not medical advice."}
	engine := journey.NewEngine(deps)

	return &Server{Registry: cache, Router: router, Engine: engine, Executor: executor, Context: mgr, Metrics: collector}
}

func TestPublishEventWithoutAgentQueues(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	body := `{"id":"e1","tenantId":"t1","type":"note","source":"api"}`
	resp, err := http.Post(ts.URL+"/hub/events/publish", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "queued", result["status"])
	assert.Equal(t, "e1", result["eventId"])
}

func TestOrchestrateStartHappyPath(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	body := `{"tenantId":"t1","caseId":"c1","intake":{"targetProcedure":"Rhinoplasty","metrics":{"bmi":24}}}`
	resp, err := http.Post(ts.URL+"/orchestrate/start", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "completed", result["status"])
	pricing := result["pricing"].(map[string]any)
	assert.Equal(t, "EUR", pricing["currency"])
	assert.Equal(t, 7100.0, pricing["total"])
}

func TestOrchestrateStateNotFoundReturns404(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/orchestrate/state/missing-case")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTenantHeaderEchoedAndDefaulted(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/hub/agents")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "system", resp.Header.Get("X-Tenant"))
}
