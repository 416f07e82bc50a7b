package transport

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/aihub/orchestrator/internal/apierr"
	"github.com/aihub/orchestrator/internal/model"
)

type runAgentRequest struct {
	TenantID  string         `json:"tenantId"`
	Payload   map[string]any `json:"payload"`
	SessionID string         `json:"sessionId,omitempty"`
	Channel   string         `json:"channel,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// handleRunAgent implements the synchronous direct-dispatch surface:
// POST /agents/{agentName}/run.
func (s *Server) handleRunAgent(w http.ResponseWriter, r *http.Request) {
	agentName := mux.Vars(r)["agentName"]

	var req runAgentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	tenantID := req.TenantID
	if tenantID == "" {
		tenantID = TenantFromContext(r.Context())
	}

	agent, err := s.Registry.GetAgent(r.Context(), agentName, tenantID)
	if err != nil {
		writeError(w, err)
		return
	}
	if agent == nil {
		writeError(w, apierr.NotFound("agent not found: "+agentName))
		return
	}

	event := model.HubEvent{
		ID:        agentName + ":" + tenantID,
		TenantID:  tenantID,
		Type:      "agent.run",
		SessionID: req.SessionID,
		AgentName: agentName,
		Channel:   req.Channel,
		Metadata:  req.Metadata,
	}

	result, err := s.Executor.Execute(r.Context(), *agent, tenantID, req.Payload, event, nil, req.Channel)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
