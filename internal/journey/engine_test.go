package journey

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aihub/orchestrator/internal/contextstore"
	"github.com/aihub/orchestrator/internal/eventbus"
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

func newTestEngine() *Engine {
	mgr := contextstore.NewManager(newMemStore(), "hub")
	bus := eventbus.NewBus(fakeProducer{}, mgr, "ai.agent.events", "hub.events", "hub:events")
	deps := &Dependencies{Checkpoints: mgr, Bus: bus, Disclaimer: defaultDisclaimer}
	return NewEngine(deps)
}

func TestHappyOrchestrationCompletes(t *testing.T) {
	engine := newTestEngine()
	intake := map[string]any{
		"targetProcedure": "Rhinoplasty",
		"metrics":         map[string]any{"bmi": 24.0},
	}
	state, err := engine.Start(context.Background(), "t1", "c1", nil, intake)
	require.NoError(t, err)
	assert.Equal(t, "completed", state.Status)
	assert.Equal(t, "EUR", state.Pricing["currency"])
	assert.Equal(t, 7100.0, state.Pricing["total"])
	assert.Contains(t, state.Disclaimers, defaultDisclaimer)
}

func TestHighBmiHaltsForApproval(t *testing.T) {
	engine := newTestEngine()
	intake := map[string]any{
		"targetProcedure": "Rhinoplasty",
		"metrics":         map[string]any{"bmi": 35.0},
	}
	state, err := engine.Start(context.Background(), "t1", "c2", nil, intake)
	require.NoError(t, err)
	assert.Equal(t, "awaiting-approval", state.Status)
	require.Len(t, state.Approvals, 1)
	assert.Equal(t, "approval-c2", state.Approvals[0].ID)

	resumed, err := engine.Resume(context.Background(), "t1", "c2", "APPROVED", "")
	require.NoError(t, err)
	assert.Equal(t, "completed", resumed.Status)
	assert.Empty(t, resumed.RedFlags)
}

func TestRejectedApprovalHoldsWithoutAdvancing(t *testing.T) {
	engine := newTestEngine()
	intake := map[string]any{"metrics": map[string]any{"bmi": 35.0}}
	_, err := engine.Start(context.Background(), "t1", "c3", nil, intake)
	require.NoError(t, err)

	resumed, err := engine.Resume(context.Background(), "t1", "c3", "REJECTED", "not a fit")
	require.NoError(t, err)
	assert.Equal(t, "on-hold", resumed.Status)
	assert.Equal(t, "awaiting-decision", resumed.Stage)
}

func TestBudgetClampsPricingTotal(t *testing.T) {
	engine := newTestEngine()
	intake := map[string]any{
		"metrics": map[string]any{"bmi": 24.0},
		"budget":  map[string]any{"maxAmount": 4000.0},
	}
	state, err := engine.Start(context.Background(), "t1", "c4", nil, intake)
	require.NoError(t, err)
	assert.Equal(t, 4900.0, state.Pricing["total"])
}

func TestConcurrentStartOnSameCaseIsRejected(t *testing.T) {
	engine := newTestEngine()
	require.True(t, engine.gate.Acquire("t1", "c5"))
	_, err := engine.Start(context.Background(), "t1", "c5", nil, nil)
	require.Error(t, err)
	engine.gate.Release("t1", "c5")
}
