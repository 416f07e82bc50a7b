package journey

import (
	"context"
	"fmt"
	"strings"

	"github.com/aihub/orchestrator/internal/apierr"
	"github.com/aihub/orchestrator/internal/model"
)

// Engine drives a case through the stage table, grounded on
// orchestrator-svc/app/routers/orchestrator.py's start/approval handlers.
type Engine struct {
	deps *Dependencies
	gate *CaseGate
}

func NewEngine(deps *Dependencies) *Engine {
	return &Engine{deps: deps, gate: NewCaseGate()}
}

// Start seeds a fresh case and runs it to completion or the first halt.
func (e *Engine) Start(ctx context.Context, tenantID, caseID string, patient, intake map[string]any) (*model.JourneyState, error) {
	if !e.gate.Acquire(tenantID, caseID) {
		return nil, apierr.Validation(fmt.Sprintf("case %s is already running", caseID))
	}
	defer e.gate.Release(tenantID, caseID)

	state := model.NewJourneyState(tenantID, caseID, patient, intake, e.deps.disclaimer())
	if err := e.run(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Resume applies an approval decision. REJECTED halts at on-hold;
// APPROVED clears redFlags/approvals, rewinds to the approvals stage, and
// continues forward (spec §4.9 Resumption).
func (e *Engine) Resume(ctx context.Context, tenantID, caseID, decision, comment string) (*model.JourneyState, error) {
	if !e.gate.Acquire(tenantID, caseID) {
		return nil, apierr.Validation(fmt.Sprintf("case %s is already running", caseID))
	}
	defer e.gate.Release(tenantID, caseID)

	state, err := e.GetState(ctx, tenantID, caseID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, apierr.NotFound(fmt.Sprintf("case %s not found", caseID))
	}

	switch strings.ToUpper(decision) {
	case "REJECTED":
		state.Status = "on-hold"
		state.Stage = "awaiting-decision"
		state.Approvals = []model.Approval{{
			Type:    "clinical_review",
			Payload: map[string]any{"decision": decision, "comment": comment},
		}}
		state.Touch()
		if err := persistCheckpoint(ctx, e.deps, state); err != nil {
			return nil, err
		}
		return state, nil
	case "APPROVED":
		state.RedFlags = []string{}
		state.Approvals = []model.Approval{}
		state.Stage = "approvals"
		state.Status = "pricing"
		if err := e.run(ctx, state); err != nil {
			return nil, err
		}
		return state, nil
	default:
		return nil, apierr.Validation("decision must be APPROVED or REJECTED")
	}
}

// GetState loads the full working copy from the checkpoint store.
func (e *Engine) GetState(ctx context.Context, tenantID, caseID string) (*model.JourneyState, error) {
	raw, err := e.deps.Checkpoints.Get(ctx, checkpointKey(tenantID, caseID))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return fromMap(raw)
}

func (e *Engine) run(ctx context.Context, state *model.JourneyState) error {
	for {
		handler, ok := stages[state.Stage]
		if !ok {
			break
		}
		if err := handler(ctx, e.deps, state); err != nil {
			return err
		}
	}
	state.AddDisclaimer(e.deps.disclaimer())
	state.Touch()
	return persistCheckpoint(ctx, e.deps, state)
}
