package transport

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/aihub/orchestrator/internal/apierr"
	"github.com/aihub/orchestrator/internal/journey"
)

type startCaseRequest struct {
	TenantID string         `json:"tenantId"`
	CaseID   string         `json:"caseId"`
	Patient  map[string]any `json:"patient,omitempty"`
	Intake   map[string]any `json:"intake,omitempty"`
}

func (s *Server) handleOrchestrateStart(w http.ResponseWriter, r *http.Request) {
	var req startCaseRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.CaseID == "" {
		writeError(w, apierr.Validation("caseId is required"))
		return
	}
	tenantID := req.TenantID
	if tenantID == "" {
		tenantID = TenantFromContext(r.Context())
	}

	state, err := s.Engine.Start(r.Context(), tenantID, req.CaseID, req.Patient, req.Intake)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, journey.Render(state))
}

func (s *Server) handleOrchestrateState(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["caseId"]
	tenantID := TenantFromContext(r.Context())

	state, err := s.Engine.GetState(r.Context(), tenantID, caseID)
	if err != nil {
		writeError(w, err)
		return
	}
	if state == nil {
		writeError(w, apierr.NotFound("case not found: "+caseID))
		return
	}
	writeJSON(w, http.StatusOK, journey.Render(state))
}

type approvalRequest struct {
	TenantID string `json:"tenantId"`
	CaseID   string `json:"caseId"`
	Decision string `json:"decision"`
	Comment  string `json:"comment,omitempty"`
}

func (s *Server) handleOrchestrateApproval(w http.ResponseWriter, r *http.Request) {
	var req approvalRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Decision != "APPROVED" && req.Decision != "REJECTED" {
		writeError(w, apierr.Validation("decision must be APPROVED or REJECTED"))
		return
	}
	tenantID := req.TenantID
	if tenantID == "" {
		tenantID = TenantFromContext(r.Context())
	}

	state, err := s.Engine.Resume(r.Context(), tenantID, req.CaseID, req.Decision, req.Comment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, journey.Render(state))
}
