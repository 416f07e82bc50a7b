package contextstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Manager layers namespaced tenant/session JSON blobs and stream helpers
// on top of a raw Store, matching the key scheme in
// ai_services/hub_core/context_manager.py: tenant context
// "{tenantId}:{ns}:context", session "{tenantId}:{ns}:session:{sessionId}",
// stream "{ns}:{streamName}" unless the caller-supplied name already
// contains a colon.
type Manager struct {
	store      Store
	namespace  string
	defaultTTL time.Duration
}

func NewManager(store Store, namespace string) *Manager {
	return &Manager{store: store, namespace: namespace, defaultTTL: DefaultTTL}
}

func (m *Manager) tenantKey(tenantID string) string {
	return fmt.Sprintf("%s:%s:context", tenantID, m.namespace)
}

func (m *Manager) sessionKey(tenantID, sessionID string) string {
	return fmt.Sprintf("%s:%s:session:%s", tenantID, m.namespace, sessionID)
}

func (m *Manager) streamKey(streamName string) string {
	if strings.Contains(streamName, ":") {
		return streamName
	}
	return fmt.Sprintf("%s:%s", m.namespace, streamName)
}

func (m *Manager) getJSON(ctx context.Context, key string) (map[string]any, error) {
	raw, found, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		slog.Warn("context store: discarding unparsable value", "key", key, "error", err)
		return nil, nil
	}
	return out, nil
}

func (m *Manager) setJSON(ctx context.Context, key string, value map[string]any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("context store: marshal %s: %w", key, err)
	}
	return m.store.Set(ctx, key, data, ttl)
}

func (m *Manager) GetTenantContext(ctx context.Context, tenantID string) (map[string]any, error) {
	return m.getJSON(ctx, m.tenantKey(tenantID))
}

func (m *Manager) SetTenantContext(ctx context.Context, tenantID string, value map[string]any, ttl time.Duration) error {
	return m.setJSON(ctx, m.tenantKey(tenantID), value, ttl)
}

func (m *Manager) DeleteTenantContext(ctx context.Context, tenantID string) error {
	return m.store.Delete(ctx, m.tenantKey(tenantID))
}

func (m *Manager) GetSessionContext(ctx context.Context, tenantID, sessionID string) (map[string]any, error) {
	return m.getJSON(ctx, m.sessionKey(tenantID, sessionID))
}

func (m *Manager) SetSessionContext(ctx context.Context, tenantID, sessionID string, value map[string]any, ttl time.Duration) error {
	return m.setJSON(ctx, m.sessionKey(tenantID, sessionID), value, ttl)
}

func (m *Manager) DeleteSessionContext(ctx context.Context, tenantID, sessionID string) error {
	return m.store.Delete(ctx, m.sessionKey(tenantID, sessionID))
}

// AppendStream appends a JSON payload under the namespaced stream key.
func (m *Manager) AppendStream(ctx context.Context, streamName string, payload map[string]any, maxLen int64) (string, error) {
	return m.store.AppendStream(ctx, m.streamKey(streamName), payload, maxLen)
}

// ReadStream reads entries newest-first, decoding the "data" field of each.
func (m *Manager) ReadStream(ctx context.Context, streamName, lastID string, count int64) ([]StreamRecord, error) {
	raw, err := m.store.ReadStreamReverse(ctx, m.streamKey(streamName), lastID, count)
	if err != nil {
		return nil, err
	}
	out := make([]StreamRecord, 0, len(raw))
	for _, entry := range raw {
		var payload map[string]any
		if data, ok := entry.Fields["data"]; ok {
			if err := json.Unmarshal([]byte(data), &payload); err != nil {
				slog.Warn("context store: discarding unparsable stream entry", "id", entry.ID, "error", err)
				continue
			}
		}
		out = append(out, StreamRecord{ID: entry.ID, Payload: payload})
	}
	return out, nil
}

// StreamRecord is one decoded stream entry.
type StreamRecord struct {
	ID      string
	Payload map[string]any
}

// Get/Set/Delete expose the raw key-value surface for callers (e.g.
// journey checkpointing) that manage their own key scheme.
func (m *Manager) Get(ctx context.Context, key string) (map[string]any, error) {
	return m.getJSON(ctx, key)
}

func (m *Manager) Set(ctx context.Context, key string, value map[string]any, ttl time.Duration) error {
	return m.setJSON(ctx, key, value, ttl)
}

func (m *Manager) Delete(ctx context.Context, key string) error {
	return m.store.Delete(ctx, key)
}

func (m *Manager) Close() error {
	return m.store.Close()
}
