// Package hub implements the stateless routing entry point, grounded on
// orchestrator-svc/app/services/hub_router.py.
package hub

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aihub/orchestrator/internal/agentexec"
	"github.com/aihub/orchestrator/internal/apierr"
	"github.com/aihub/orchestrator/internal/contextstore"
	"github.com/aihub/orchestrator/internal/eventbus"
	"github.com/aihub/orchestrator/internal/metrics"
	"github.com/aihub/orchestrator/internal/model"
	"github.com/aihub/orchestrator/internal/registry"
)

// Result is the union of the two outcomes routeEvent can produce.
type Result struct {
	Status  string         `json:"status"`
	EventID string         `json:"eventId,omitempty"`
	Agent   string         `json:"agent,omitempty"`
	Result  map[string]any `json:"result,omitempty"`
}

type Router struct {
	registry *registry.Cache
	bus      *eventbus.Bus
	ctx      *contextstore.Manager
	executor *agentexec.Executor
	metrics  *metrics.Collector
}

func NewRouter(reg *registry.Cache, bus *eventbus.Bus, ctxMgr *contextstore.Manager, executor *agentexec.Executor, m *metrics.Collector) *Router {
	return &Router{registry: reg, bus: bus, ctx: ctxMgr, executor: executor, metrics: m}
}

// RouteEvent is the single entry point every surface funnels through. If
// the event names a resolved agent and the registry has it, the call is
// dispatched synchronously; otherwise the event is queued onto the bus
// (and, when persist is true, the tenant replay stream) and the caller
// gets a queued acknowledgement.
func (r *Router) RouteEvent(ctx context.Context, event model.HubEvent, persist bool) (Result, error) {
	if agentName := event.ResolvedAgent(); agentName != "" {
		agent, err := r.registry.GetAgent(ctx, agentName, event.TenantID)
		if err != nil {
			return Result{}, err
		}
		if agent != nil {
			result, err := r.executor.Execute(ctx, *agent, event.TenantID, event.Payload, event, nil, event.Channel)
			if err != nil {
				return Result{}, err
			}
			return Result{Status: "completed", Agent: agent.Name, Result: result}, nil
		}
		slog.Info("hub router: resolved agent not found, falling through to queue", "agent", agentName, "tenantId", event.TenantID)
	}

	r.bus.Publish(ctx, event)
	if persist {
		if err := r.appendReplay(ctx, event); err != nil {
			slog.Warn("hub router: replay append failed", "eventId", event.ID, "error", err)
		}
	}

	agentLabel := event.ResolvedAgent()
	if agentLabel == "" {
		agentLabel = "orchestrator"
	}
	channel := event.Channel
	if channel == "" {
		channel = "system"
	}
	r.metrics.IncRequest(event.TenantID, agentLabel, channel, event.Type)

	return Result{Status: "queued", EventID: event.ID}, nil
}

func (r *Router) appendReplay(ctx context.Context, event model.HubEvent) error {
	payload, err := toPayload(event)
	if err != nil {
		return err
	}
	_, err = r.ctx.AppendStream(ctx, replayStreamKey(event.TenantID), payload, 1000)
	return err
}

func replayStreamKey(tenantID string) string {
	if tenantID == "" {
		tenantID = "system"
	}
	return fmt.Sprintf("%s:hub:events", tenantID)
}

func toPayload(event model.HubEvent) (map[string]any, error) {
	data, err := marshalJSON(event)
	if err != nil {
		return nil, err
	}
	return unmarshalJSON(data)
}

// HandleRestPayload validates a raw JSON payload into a Hub Event and
// routes it with persist=true.
func (r *Router) HandleRestPayload(ctx context.Context, payload map[string]any) (Result, model.HubEvent, error) {
	event, err := decodeHubEvent(payload)
	if err != nil {
		return Result{}, model.HubEvent{}, apierr.Validation(err.Error())
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.TenantID == "" {
		event.TenantID = "system"
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	result, err := r.RouteEvent(ctx, event, true)
	return result, event, err
}

// HandleChannelMessage builds a channel.message Hub Event and routes it.
func (r *Router) HandleChannelMessage(ctx context.Context, msg model.ChannelMessage) (Result, error) {
	event := msg.ToHubEvent()
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	return r.RouteEvent(ctx, event, true)
}

// ReplayEvent reads the replay-stream entry at or before entryId, decodes
// it into a Hub Event, and routes it with persist=false so it is not
// appended a second time. Returns (nil, nil) if no matching entry exists.
func (r *Router) ReplayEvent(ctx context.Context, tenantID, entryID string) (*Result, error) {
	records, err := r.ctx.ReadStream(ctx, replayStreamKey(tenantID), entryID, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	event, err := decodeHubEvent(records[0].Payload)
	if err != nil {
		return nil, apierr.Validation("replay entry is not a valid event: " + err.Error())
	}
	result, err := r.RouteEvent(ctx, event, false)
	if err != nil {
		return nil, err
	}
	return &result, nil
}
