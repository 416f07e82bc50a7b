package agentexec

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aihub/orchestrator/internal/contextstore"
	"github.com/aihub/orchestrator/internal/eventbus"
	"github.com/aihub/orchestrator/internal/metrics"
	"github.com/aihub/orchestrator/internal/model"
)

type fakeProducer struct{}

func (fakeProducer) WriteMessage(context.Context, string, []byte, []byte) error { return nil }
func (fakeProducer) Close() error                                              { return nil }

type memStore struct{ data map[string][]byte }

func newMemStore() *memStore { return &memStore{data: map[string][]byte{}} }
func (m *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}
func (m *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.data[key] = value
	return nil
}
func (m *memStore) Delete(_ context.Context, key string) error { delete(m.data, key); return nil }
func (m *memStore) AppendStream(context.Context, string, map[string]any, int64) (string, error) {
	return "0-1", nil
}
func (m *memStore) ReadStreamReverse(context.Context, string, string, int64) ([]contextstore.Entry, error) {
	return nil, nil
}
func (m *memStore) Close() error { return nil }

func TestExecuteDispatchesAndEmitsResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "t1", r.Header.Get("X-Tenant-ID"))
		assert.Equal(t, "greeter", r.Header.Get("X-Agent-Name"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "channel", body["channel"])
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"resp-1","session":{"step":2}}`))
	}))
	defer srv.Close()

	store := newMemStore()
	mgr := contextstore.NewManager(store, "hub")
	bus := eventbus.NewBus(fakeProducer{}, mgr, "ai.agent.events", "hub.events", "hub:events")
	collector := metrics.NewCollector()

	executor := New(nil, nil, bus, collector)
	agent := model.Agent{ID: "a1", Name: "greeter", Endpoint: srv.URL}
	event := model.HubEvent{ID: "e1", TenantID: "t1", Type: "channel.message", SessionID: "s1"}

	result, err := executor.Execute(context.Background(), agent, "t1", map[string]any{"text": "hi"}, event, nil, "channel")
	require.NoError(t, err)
	assert.Equal(t, "resp-1", result["id"])
}
