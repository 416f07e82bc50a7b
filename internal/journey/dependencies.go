// Package journey implements the staged case workflow, grounded on
// orchestrator-svc/app/graph/workflow.py and state.py. Each node mutates
// a JourneyState, checkpoints it, and emits a redacted stage event; the
// approvals node is the single halt point pending human review.
package journey

import (
	"context"
	"time"

	"github.com/aihub/orchestrator/internal/contextstore"
	"github.com/aihub/orchestrator/internal/eventbus"
	"github.com/aihub/orchestrator/internal/model"
	"github.com/aihub/orchestrator/internal/tools"
)

// Dependencies replaces the original workflow's module-level global tool handles
// with an explicit record constructed once at startup (spec §9's
// "WorkflowDependencies" design note) and passed to every node — no
// package-level mutable state.
type Dependencies struct {
	Checkpoints *contextstore.Manager
	Bus         *eventbus.Bus
	CaseTool    *tools.CaseManagementTool
	TravelTool  *tools.TravelSearchTool
	StorageTool *tools.StorageTool
	Disclaimer  string
}

func (d *Dependencies) disclaimer() string {
	if d.Disclaimer == "" {
		return defaultDisclaimer
	}
	return d.Disclaimer
}

const defaultDisclaimer = "This information is for trip-planning purposes only and is not medical advice."

// StageHandler performs one node's work, mutating state in place
// (including state.Stage for the next hop) and returning only on error.
type StageHandler func(ctx context.Context, deps *Dependencies, state *model.JourneyState) error

var stages = map[string]StageHandler{
	"intake":         intakeStage,
	"eligibility":    eligibilityStage,
	"provider_match": providerMatchStage,
	"pricing":        pricingStage,
	"travel":         travelStage,
	"docs_visa":      docsVisaStage,
	"approvals":      approvalsStage,
	"itinerary":      itineraryStage,
	"aftercare":      aftercareStage,
}

func tenantOrSystem(tenantID string) string {
	if tenantID == "" {
		return "system"
	}
	return tenantID
}

func checkpointKey(tenantID, caseID string) string {
	return tenantOrSystem(tenantID) + ":lg:ckpt:" + caseID
}

func compactStateKey(tenantID, caseID string) string {
	return tenantOrSystem(tenantID) + ":case:state:" + caseID
}

// persistCheckpoint dual-writes the full working copy and a compact
// projection (spec §C.2). Checkpoint failure is the one node-level error
// that must surface to the caller rather than be swallowed.
func persistCheckpoint(ctx context.Context, deps *Dependencies, state *model.JourneyState) error {
	full, err := toMap(state)
	if err != nil {
		return err
	}
	if err := deps.Checkpoints.Set(ctx, checkpointKey(state.TenantID, state.CaseID), full, 0); err != nil {
		return err
	}
	compact := map[string]any{
		"caseId":    state.CaseID,
		"tenantId":  state.TenantID,
		"stage":     state.Stage,
		"status":    state.Status,
		"updatedAt": state.UpdatedAt,
	}
	return deps.Checkpoints.Set(ctx, compactStateKey(state.TenantID, state.CaseID), compact, 0)
}

// emitStageEvent publishes a PHI-redacted stage event on the bus. Bus
// publish failures are absorbed inside the Event Bus itself; this never
// returns an error.
func emitStageEvent(ctx context.Context, deps *Dependencies, state *model.JourneyState, eventType string, payload map[string]any) {
	if deps.Bus == nil {
		return
	}
	event := model.HubEvent{
		ID:        state.CaseID + ":" + eventType,
		TenantID:  state.TenantID,
		Type:      eventType,
		Source:    "journey",
		Timestamp: time.Now().UTC(),
		Payload:   redactMap(payload),
	}
	deps.Bus.Publish(ctx, event)
}
