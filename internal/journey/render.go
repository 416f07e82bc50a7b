package journey

import (
	"github.com/aihub/orchestrator/internal/model"
	"github.com/aihub/orchestrator/internal/redact"
)

// Render builds the caller-facing view of a Journey State: patient and
// intake are redacted (the checkpointed working copy is not), grounded on
// orchestrator-svc/app/routers/orchestrator.py's render_state.
func Render(state *model.JourneyState) map[string]any {
	return map[string]any{
		"caseId":          state.CaseID,
		"tenantId":        state.TenantID,
		"status":          state.Status,
		"stage":           state.Stage,
		"clinicalSummary": redact.Text(state.ClinicalSummary),
		"eligibility":     state.Eligibility,
		"pricing":         state.Pricing,
		"travelPlan":      state.Travel,
		"docs":            state.Docs,
		"approvals":       state.Approvals,
		"itinerary":       state.Itinerary,
		"aftercare":       state.Aftercare,
		"disclaimers":     state.Disclaimers,
		"redFlags":        state.RedFlags,
		"patient":         redact.Payload(state.Patient),
		"intake":          redact.Payload(state.Intake),
		"updatedAt":       state.UpdatedAt,
	}
}
