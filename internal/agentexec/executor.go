// Package agentexec dispatches a Hub Event to a resolved agent's /run
// endpoint, grounded on
// orchestrator-svc/app/services/agent_executor.py.
package agentexec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aihub/orchestrator/internal/apierr"
	"github.com/aihub/orchestrator/internal/eventbus"
	"github.com/aihub/orchestrator/internal/metrics"
	"github.com/aihub/orchestrator/internal/model"
	"github.com/aihub/orchestrator/internal/registry"
	"github.com/aihub/orchestrator/internal/tenantctx"
)

const dispatchTimeout = 60 * time.Second

type Executor struct {
	registry *registry.Cache
	tenants  *tenantctx.Service
	bus      *eventbus.Bus
	metrics  *metrics.Collector
	http     *http.Client
}

func New(reg *registry.Cache, tenants *tenantctx.Service, bus *eventbus.Bus, m *metrics.Collector) *Executor {
	return &Executor{
		registry: reg,
		tenants:  tenants,
		bus:      bus,
		metrics:  m,
		http:     &http.Client{Timeout: dispatchTimeout},
	}
}

// Execute re-resolves the agent against the registry cache, builds the
// dispatch request body, posts it to the agent's /run endpoint, persists
// any returned session state, and emits an agent.response event. The
// whole call is wrapped in the Metrics Collector so latency and error
// counters always reflect the final resolved agent name.
func (e *Executor) Execute(ctx context.Context, agent model.Agent, tenantID string, payload map[string]any, event model.HubEvent, sessionContext map[string]any, channel string) (map[string]any, error) {
	var result map[string]any
	labels := metrics.Labels{
		AgentName: agent.Name,
		TenantID:  tenantID,
		Channel:   resolveChannel(channel, event.Channel),
		EventType: event.Type,
	}
	err := e.metrics.TrackAgent(ctx, labels, func(ctx context.Context) error {
		out, err := e.execute(ctx, agent, tenantID, payload, event, sessionContext, channel)
		result = out
		return err
	})
	return result, err
}

func (e *Executor) execute(ctx context.Context, agent model.Agent, tenantID string, payload map[string]any, event model.HubEvent, sessionContext map[string]any, channel string) (map[string]any, error) {
	if e.registry != nil {
		if resolved, err := e.registry.GetAgent(ctx, agent.Name, tenantID); err == nil && resolved != nil {
			agent = *resolved
		}
	}

	var tenant *model.Tenant
	if e.tenants != nil {
		t, err := e.tenants.GetTenant(ctx, tenantID, true)
		if err == nil {
			tenant = t
		}
	}
	if tenant == nil {
		slog.Warn("agent executor: tenant not registered", "tenantId", tenantID, "agent", agent.Name)
	}

	body := buildRequestBody(agent, tenantID, payload, event, tenant, sessionContext, channel)

	slog.Info("agent executor: dispatching", "tenantId", tenantID, "agent", agent.Name, "channel", resolveChannel(channel, event.Channel))

	result, err := e.dispatch(ctx, agent, tenantID, body)
	if err != nil {
		return nil, err
	}

	e.persistSessionState(ctx, tenantID, event, result)

	correlationID := event.CorrelationID
	if correlationID == "" {
		correlationID = event.ID
	}
	if e.bus != nil {
		e.bus.EmitAgentResponse(ctx, tenantID, agent.Name, result, correlationID)
	}
	return result, nil
}

func (e *Executor) dispatch(ctx context.Context, agent model.Agent, tenantID string, body map[string]any) (map[string]any, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, apierr.DispatchFailure("marshal request body", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, agent.Endpoint+"/run", bytes.NewReader(data))
	if err != nil {
		return nil, apierr.DispatchFailure("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenantID)
	req.Header.Set("X-Agent-Name", agent.Name)

	resp, err := e.http.Do(req)
	if err != nil {
		slog.Error("agent executor: request error", "agent", agent.Name, "tenantId", tenantID, "error", err)
		return nil, apierr.DispatchFailure(fmt.Sprintf("agent %s unreachable", agent.Name), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierr.DispatchFailure("read agent response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("agent executor: call failed", "agent", agent.Name, "tenantId", tenantID, "status", resp.StatusCode, "body", string(respBody))
		return nil, apierr.DispatchFailure(fmt.Sprintf("agent %s returned status %d", agent.Name, resp.StatusCode), nil)
	}

	var result map[string]any
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &result); err != nil {
			return nil, apierr.DispatchFailure("decode agent response", err)
		}
	}
	return result, nil
}

func buildRequestBody(agent model.Agent, tenantID string, payload map[string]any, event model.HubEvent, tenant *model.Tenant, sessionContext map[string]any, channel string) map[string]any {
	var tenantPayload any
	if tenant != nil {
		tenantPayload = tenant
	} else {
		tenantPayload = map[string]any{"id": tenantID}
	}
	if sessionContext == nil {
		sessionContext = map[string]any{}
	}
	return map[string]any{
		"agent": map[string]any{
			"id":           agent.ID,
			"name":         agent.Name,
			"capabilities": agent.Capabilities,
		},
		"tenant":  tenantPayload,
		"event":   event,
		"payload": payload,
		"session": sessionContext,
		"channel": resolveChannel(channel, event.Channel),
	}
}

func resolveChannel(channel, eventChannel string) string {
	if channel != "" {
		return channel
	}
	if eventChannel != "" {
		return eventChannel
	}
	return "system"
}

func (e *Executor) persistSessionState(ctx context.Context, tenantID string, event model.HubEvent, result map[string]any) {
	if event.SessionID == "" || e.tenants == nil {
		return
	}
	sessionState, ok := extractSessionState(result)
	if !ok {
		return
	}
	if err := e.tenants.SetSessionState(ctx, tenantID, event.SessionID, sessionState, 0); err != nil {
		slog.Warn("agent executor: persist session state failed", "tenantId", tenantID, "sessionId", event.SessionID, "error", err)
	}
}

func extractSessionState(result map[string]any) (map[string]any, bool) {
	if result == nil {
		return nil, false
	}
	for _, key := range []string{"session", "context"} {
		if raw, ok := result[key]; ok {
			if state, ok := raw.(map[string]any); ok {
				return state, true
			}
		}
	}
	return nil, false
}
