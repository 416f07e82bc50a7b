package eventbus

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aihub/orchestrator/internal/contextstore"
	"github.com/aihub/orchestrator/internal/model"
)

type fakeProducer struct {
	mu       sync.Mutex
	messages []struct{ topic string }
}

func (f *fakeProducer) WriteMessage(_ context.Context, topic string, _, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, struct{ topic string }{topic})
	return nil
}
func (f *fakeProducer) Close() error { return nil }

type memStore struct {
	mu      sync.Mutex
	streams map[string][]contextstore.Entry
	seq     int
}

func newMemStore() *memStore { return &memStore{streams: map[string][]contextstore.Entry{}} }

func (m *memStore) Get(context.Context, string) ([]byte, bool, error)      { return nil, false, nil }
func (m *memStore) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (m *memStore) Delete(context.Context, string) error                   { return nil }
func (m *memStore) Close() error                                           { return nil }

func (m *memStore) AppendStream(_ context.Context, stream string, payload map[string]any, _ int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	data, _ := json.Marshal(payload)
	id := strconv.Itoa(m.seq)
	m.streams[stream] = append(m.streams[stream], contextstore.Entry{ID: id, Fields: map[string]string{"data": string(data)}})
	return id, nil
}

func (m *memStore) ReadStreamReverse(_ context.Context, stream, _ string, count int64) ([]contextstore.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.streams[stream]
	out := make([]contextstore.Entry, 0, len(entries))
	for i := len(entries) - 1; i >= 0 && int64(len(out)) < count; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

var _ contextstore.Store = (*memStore)(nil)

func TestPublishSendsToBothSinks(t *testing.T) {
	producer := &fakeProducer{}
	store := newMemStore()
	mgr := contextstore.NewManager(store, "hub")
	bus := NewBus(producer, mgr, "ai.agent.events", "hub.events", "hub:events")

	event := model.HubEvent{ID: "e1", TenantID: "t1", Type: "note", Timestamp: time.Now()}
	bus.Publish(context.Background(), event)

	producer.mu.Lock()
	require.Len(t, producer.messages, 1)
	assert.Equal(t, "tenant.t1.hub.events", producer.messages[0].topic)
	producer.mu.Unlock()

	records, err := readTenantStream(mgr, "t1:hub:events")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "e1", records[0].Payload["id"])
}

func TestResolveTopicUsesAgentSuffixForAgentEvents(t *testing.T) {
	bus := NewBus(&fakeProducer{}, nil, "ai.agent.events", "hub.events", "hub:events")
	topic := bus.resolveTopic(model.HubEvent{TenantID: "t1", Type: "agent.response"})
	assert.Equal(t, "tenant.t1.ai.agent.events", topic)
}

func TestResolveTopicDefaultsToSystemTenant(t *testing.T) {
	bus := NewBus(&fakeProducer{}, nil, "ai.agent.events", "hub.events", "hub:events")
	topic := bus.resolveTopic(model.HubEvent{Type: "note"})
	assert.Equal(t, "tenant.system.hub.events", topic)
}

func readTenantStream(mgr *contextstore.Manager, streamKey string) ([]contextstore.StreamRecord, error) {
	// streamKey already contains ":" so Manager treats it as a literal stream key.
	return mgr.ReadStream(context.Background(), streamKey, "", 10)
}
