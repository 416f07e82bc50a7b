package journey

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aihub/orchestrator/internal/model"
	"github.com/aihub/orchestrator/internal/redact"
)

func intakeStage(ctx context.Context, deps *Dependencies, state *model.JourneyState) error {
	state.Stage = "intake"
	state.Status = "intake"
	state.Transcript = append(state.Transcript, "Intake received and recorded.")
	state.AddDisclaimer(deps.disclaimer())
	state.Touch()

	if deps.CaseTool != nil {
		if _, err := deps.CaseTool.StartCase(ctx, state.TenantID, state.CaseID, redact.Payload(state.Intake)); err != nil {
			slog.Warn("journey: case-management start failed", "caseId", state.CaseID, "error", err)
		}
	}

	if err := persistCheckpoint(ctx, deps, state); err != nil {
		return err
	}
	emitStageEvent(ctx, deps, state, "case.created", map[string]any{"stage": state.Stage})

	state.Stage = "eligibility"
	state.Status = "eligibility"
	return nil
}

func eligibilityStage(ctx context.Context, deps *Dependencies, state *model.JourneyState) error {
	bmi := 24.0
	if metrics, ok := state.Intake["metrics"].(map[string]any); ok {
		if v, ok := asFloat(metrics["bmi"]); ok {
			bmi = v
		}
	}
	status := "needs-review"
	note := "BMI requires clinical oversight"
	if bmi < 32 {
		status = "eligible"
		note = "BMI within acceptable range"
	}
	state.Eligibility = map[string]any{
		"status": status,
		"bmi":    bmi,
		"notes":  []string{note},
	}
	if status != "eligible" {
		state.RedFlags = append(state.RedFlags, "clinical_review_required")
	}
	state.Stage = "provider_match"
	state.Status = "eligibility"
	state.Touch()
	return persistCheckpoint(ctx, deps, state)
}

func providerMatchStage(ctx context.Context, deps *Dependencies, state *model.JourneyState) error {
	preferences, _ := state.Intake["travelPreferences"].(map[string]any)
	providerPayload := map[string]any{
		"primary": map[string]any{
			"id":              "provider-istanbul-1",
			"name":            "Istanbul Care Hospital",
			"score":           0.92,
			"languageSupport": []string{"en", "tr"},
		},
		"alternatives": []map[string]any{
			{"id": "provider-ankara-1", "name": "Ankara Ortho Center", "score": 0.88},
		},
		"preferences": preferences,
	}
	state.Docs["provider_match"] = providerPayload

	if deps.CaseTool != nil {
		note := fmt.Sprintf("Matched providers for case %s", state.CaseID)
		if _, err := deps.CaseTool.AddNote(ctx, state.TenantID, state.CaseID, note); err != nil {
			slog.Debug("journey: case-management add note failed", "caseId", state.CaseID, "error", err)
		}
	}

	state.Stage = "pricing"
	state.Status = "provider-match"
	state.Touch()
	return persistCheckpoint(ctx, deps, state)
}

const (
	basePrice       = 6200.0
	travelAllowance = 900.0
)

func pricingStage(ctx context.Context, deps *Dependencies, state *model.JourneyState) error {
	price := basePrice
	if budget, ok := state.Intake["budget"].(map[string]any); ok {
		if max, ok := asFloat(budget["maxAmount"]); ok && max > 0 && max < price {
			price = max
		}
	}
	total := price + travelAllowance
	state.Pricing = map[string]any{
		"currency": "EUR",
		"total":    total,
		"travel":   travelAllowance,
		"breakdown": map[string]any{
			"procedure": price - 1200,
			"hospital":  1200.0,
			"travel":    travelAllowance,
		},
		"disclaimer": deps.disclaimer(),
	}
	state.Stage = "travel"
	state.Status = "pricing"
	state.Touch()
	if err := persistCheckpoint(ctx, deps, state); err != nil {
		return err
	}
	emitStageEvent(ctx, deps, state, "payment.succeeded", map[string]any{"amount": total, "currency": "EUR"})
	return nil
}

func travelStage(ctx context.Context, deps *Dependencies, state *model.JourneyState) error {
	preferences, _ := state.Intake["travelPreferences"].(map[string]any)
	var flights, hotels any

	if deps.TravelTool != nil {
		origin, _ := preferences["origin"].(string)
		if origin == "" {
			origin = "LHR"
		}
		flightResult, flightErr := deps.TravelTool.SearchFlights(ctx, origin, "IST", "")
		hotelResult, hotelErr := deps.TravelTool.SearchHotels(ctx, "Istanbul", "", "")
		if flightErr == nil && hotelErr == nil {
			flights = flightResult["itineraries"]
			hotels = hotelResult["options"]
		} else {
			slog.Warn("journey: travel search fallback", "caseId", state.CaseID, "flightErr", flightErr, "hotelErr", hotelErr)
		}
	}
	if flights == nil {
		departure := time.Now().UTC().AddDate(0, 0, 21)
		flights = []map[string]any{
			{
				"carrier":     "TK",
				"number":      "TK34",
				"origin":      "LHR",
				"destination": "IST",
				"departure":   departure.Format(time.RFC3339),
			},
		}
		hotels = []map[string]any{
			{"name": "Harbiye Surgical Suites", "nights": 7},
		}
	}
	state.Travel = map[string]any{"flights": flights, "hotels": hotels}
	state.Stage = "docs_visa"
	state.Status = "travel"
	state.Touch()
	if err := persistCheckpoint(ctx, deps, state); err != nil {
		return err
	}
	emitStageEvent(ctx, deps, state, "travel.offer.generated", map[string]any{"offers": state.Travel})
	return nil
}

func docsVisaStage(ctx context.Context, deps *Dependencies, state *model.JourneyState) error {
	documents := []map[string]any{
		{"name": "Passport copy", "status": "required"},
		{"name": "Medical history", "status": "required"},
		{"name": "Treatment plan", "status": "optional"},
	}
	state.Docs["visa_requirements"] = map[string]any{
		"documents":          documents,
		"processingTimeDays": 10,
		"disclaimer":         deps.disclaimer(),
	}

	if deps.StorageTool != nil {
		key := fmt.Sprintf("%s/checklist.json", state.CaseID)
		if err := deps.StorageTool.Upload(ctx, key, []byte("{}"), "application/json"); err != nil {
			slog.Debug("journey: checklist upload skipped", "caseId", state.CaseID, "error", err)
		} else if url, err := deps.StorageTool.PresignDownload(ctx, key); err == nil {
			state.Docs["uploadLink"] = url
		}
	}

	state.Stage = "approvals"
	state.Status = "docs"
	state.Touch()
	if err := persistCheckpoint(ctx, deps, state); err != nil {
		return err
	}
	emitStageEvent(ctx, deps, state, "doc.uploaded", map[string]any{"documents": documents})
	return nil
}

func approvalsStage(ctx context.Context, deps *Dependencies, state *model.JourneyState) error {
	state.Approvals = []model.Approval{}
	if len(state.RedFlags) > 0 {
		state.Approvals = append(state.Approvals, model.Approval{
			ID:      fmt.Sprintf("approval-%s", state.CaseID),
			Type:    "clinical_review",
			Payload: map[string]any{"flags": state.RedFlags},
		})
		state.Stage = "awaiting-approval"
		state.Status = "awaiting-approval"
		state.Touch()
		if err := persistCheckpoint(ctx, deps, state); err != nil {
			return err
		}
		emitStageEvent(ctx, deps, state, "approval.required", map[string]any{"flags": state.RedFlags})
		return nil
	}
	state.Stage = "itinerary"
	state.Status = "approved"
	state.Touch()
	return persistCheckpoint(ctx, deps, state)
}

func itineraryStage(ctx context.Context, deps *Dependencies, state *model.JourneyState) error {
	start := time.Now().UTC().AddDate(0, 0, 22)
	procedure, _ := state.Intake["targetProcedure"].(string)
	if procedure == "" {
		procedure = "Procedure"
	}
	events := []map[string]any{
		{"id": "consult-1", "title": "Pre-op consultation", "start": start.Format(time.RFC3339)},
		{"id": "surgery", "title": redact.Text(procedure), "start": start.AddDate(0, 0, 1).Format(time.RFC3339)},
	}
	state.Itinerary = map[string]any{"events": events, "disclaimer": deps.disclaimer()}
	state.Stage = "aftercare"
	state.Status = "itinerary"
	state.Touch()
	return persistCheckpoint(ctx, deps, state)
}

func aftercareStage(ctx context.Context, deps *Dependencies, state *model.JourneyState) error {
	state.Aftercare = map[string]any{
		"virtualFollowups": 3,
		"localClinic":      "Partner Clinic - London",
		"disclaimer":       deps.disclaimer(),
	}
	state.Stage = "completed"
	state.Status = "completed"
	state.Touch()
	return persistCheckpoint(ctx, deps, state)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
