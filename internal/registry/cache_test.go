package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aihub/orchestrator/internal/contextstore"
	"github.com/aihub/orchestrator/internal/model"
)

// fakeStore is an in-memory contextstore.Store for tests that don't need
// a real Redis instance.
type fakeStore struct {
	data map[string][]byte
}

func newFakeStore() *fakeStore { return &fakeStore{data: map[string][]byte{}} }

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := f.data[key]
	return v, ok, nil
}
func (f *fakeStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	f.data[key] = value
	return nil
}
func (f *fakeStore) Delete(_ context.Context, key string) error {
	delete(f.data, key)
	return nil
}
func (f *fakeStore) AppendStream(_ context.Context, _ string, _ map[string]any, _ int64) (string, error) {
	return "0-1", nil
}
func (f *fakeStore) ReadStreamReverse(_ context.Context, _ string, _ string, _ int64) ([]contextstore.Entry, error) {
	return nil, nil
}
func (f *fakeStore) Close() error { return nil }

var _ contextstore.Store = (*fakeStore)(nil)

func newTestCache(t *testing.T, systemAgents []model.Agent, tenantAgents map[string][]model.Agent, tenants []model.Tenant) (*Cache, *httptest.Server) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/agents", func(w http.ResponseWriter, r *http.Request) {
		tenant := r.Header.Get("X-Tenant")
		if tenant == "" || tenant == "system" {
			_ = json.NewEncoder(w).Encode(systemAgents)
			return
		}
		_ = json.NewEncoder(w).Encode(tenantAgents[tenant])
	})
	mux.HandleFunc("/tenants", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(tenants)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	ctxMgr := contextstore.NewManager(newFakeStore(), "hub")
	client := NewClient(srv.URL, "", ctxMgr)
	return NewCache(client, 60*time.Second), srv
}

func TestGetAgentPrefersTenantScope(t *testing.T) {
	system := []model.Agent{{Name: "greeter", Endpoint: "http://system.local"}}
	tenantAgents := map[string][]model.Agent{
		"t1": {{Name: "greeter", Endpoint: "http://t1.local"}},
	}
	cache, _ := newTestCache(t, system, tenantAgents, nil)

	agent, err := cache.GetAgent(context.Background(), "greeter", "t1")
	require.NoError(t, err)
	require.NotNil(t, agent)
	require.Equal(t, "http://t1.local", agent.Endpoint)
}

func TestGetAgentFallsBackToSystemScope(t *testing.T) {
	system := []model.Agent{{Name: "greeter", Endpoint: "http://system.local"}}
	cache, _ := newTestCache(t, system, map[string][]model.Agent{"t1": {}}, nil)

	agent, err := cache.GetAgent(context.Background(), "greeter", "t1")
	require.NoError(t, err)
	require.NotNil(t, agent)
	require.Equal(t, "http://system.local", agent.Endpoint)
}

func TestGetAgentMissingReturnsNil(t *testing.T) {
	cache, _ := newTestCache(t, nil, nil, nil)
	agent, err := cache.GetAgent(context.Background(), "ghost", "t1")
	require.NoError(t, err)
	require.Nil(t, agent)
}

func TestHeartbeatOnUnknownClientCreatesEntry(t *testing.T) {
	cache, _ := newTestCache(t, nil, nil, nil)
	cache.HeartbeatClient("t1", "c1")

	clients := cache.ListClients("t1")
	require.Contains(t, clients, "t1")
	require.Contains(t, clients["t1"], "c1")
}
