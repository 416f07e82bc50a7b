package transport

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/aihub/orchestrator/internal/apierr"
)

func (s *Server) handlePublishEvent(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	tenantID := TenantFromContext(r.Context())
	if _, ok := payload["tenantId"]; !ok {
		payload["tenantId"] = tenantID
	}

	result, _, err := s.Router.HandleRestPayload(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleReplayEvent(w http.ResponseWriter, r *http.Request) {
	eventID := mux.Vars(r)["eventId"]
	tenantID := TenantFromContext(r.Context())

	result, err := s.Router.ReplayEvent(r.Context(), tenantID, eventID)
	if err != nil {
		writeError(w, err)
		return
	}
	if result == nil {
		writeError(w, apierr.NotFound("replay entry not found"))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	tenantID := TenantFromContext(r.Context())
	agents, err := s.Registry.ListAgents(r.Context(), tenantID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tenantId": tenantID, "agents": agents})
}

func (s *Server) handleListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := s.Registry.ListTenants(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tenants)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	tenantID := TenantFromContext(r.Context())
	limit := int64(50)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > 0 {
			limit = n
		}
	}
	records, err := s.Context.ReadStream(r.Context(), tenantID+":hub:events", "", limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s.Registry.HeartbeatClient(vars["tenantId"], vars["clientId"])
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Registry.ListClients(""))
}
