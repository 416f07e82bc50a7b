package hub

import (
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
	id := intToID(m.seq)
	m.streams[stream] = append(m.streams[stream], contextstore.Entry{ID: id, Fields: map[string]string{"data": string(data)}})
	return id, nil
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

func intToID(n int) string {
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if len(digits) == 0 {
		return "0"
	}
	return string(digits)
}

func newTestRouter(t *testing.T, agentEndpoint string) *Router {
	t.Helper()
	store := newMemStore()
	mgr := contextstore.NewManager(store, "hub")
	bus := eventbus.NewBus(fakeProducer{}, mgr, "ai.agent.events", "hub.events", "hub:events")
	collector := metrics.NewCollector()

	regMux := http.NewServeMux()
	regMux.HandleFunc("/agents", func(w http.ResponseWriter, r *http.Request) {
		if agentEndpoint == "" {
			json.NewEncoder(w).Encode([]model.Agent{})
			return
		}
		json.NewEncoder(w).Encode([]model.Agent{{Name: "greeter", Endpoint: agentEndpoint}})
	})
	regMux.HandleFunc("/tenants", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]model.Tenant{})
	})
	regSrv := httptest.NewServer(regMux)
	t.Cleanup(regSrv.Close)

	client := registry.NewClient(regSrv.URL, "", mgr)
	cache := registry.NewCache(client, time.Minute)
	executor := agentexec.New(cache, nil, bus, collector)

	return NewRouter(cache, bus, mgr, executor, collector)
}

func TestRouteEventQueuesWhenNoAgent(t *testing.T) {
	r := newTestRouter(t, "")
	event := model.HubEvent{ID: "e1", TenantID: "t1", Type: "note", Timestamp: time.Now()}

	result, err := r.RouteEvent(context.Background(), event, true)
	require.NoError(t, err)
	assert.Equal(t, "queued", result.Status)
	assert.Equal(t, "e1", result.EventID)
}

func TestRouteEventDispatchesResolvedAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	r := newTestRouter(t, srv.URL)
	event := model.HubEvent{ID: "e1", TenantID: "t1", Type: "channel.message", TargetAgent: "greeter", Timestamp: time.Now()}

	result, err := r.RouteEvent(context.Background(), event, true)
	require.NoError(t, err)
	assert.Equal(t, "completed", result.Status)
	assert.Equal(t, "greeter", result.Agent)
}

func TestReplayDoesNotDoubleAppend(t *testing.T) {
	r := newTestRouter(t, "")
	event := model.HubEvent{ID: "e1", TenantID: "t1", Type: "note", Timestamp: time.Now()}

	_, err := r.RouteEvent(context.Background(), event, true)
	require.NoError(t, err)

	result, err := r.ReplayEvent(context.Background(), "t1", "")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "queued", result.Status)

	records, err := r.ctx.ReadStream(context.Background(), "t1:hub:events", "", 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestReplayMissingReturnsNil(t *testing.T) {
	r := newTestRouter(t, "")
	result, err := r.ReplayEvent(context.Background(), "t1", "")
	require.NoError(t, err)
	assert.Nil(t, result)
}
