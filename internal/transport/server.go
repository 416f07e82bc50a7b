package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/aihub/orchestrator/internal/agentexec"
	"github.com/aihub/orchestrator/internal/apierr"
	"github.com/aihub/orchestrator/internal/contextstore"
	"github.com/aihub/orchestrator/internal/hub"
	"github.com/aihub/orchestrator/internal/journey"
	"github.com/aihub/orchestrator/internal/metrics"
	"github.com/aihub/orchestrator/internal/registry"
)

// Server bundles the components every handler needs, grounded on the
// teacher's cmd/api/main.go dependency-threading pattern (there a
// collection of locals closed over by route handlers; here a struct
// since Go has no module-level closures spanning files as cleanly).
type Server struct {
	Registry *registry.Cache
	Router   *hub.Router
	Engine   *journey.Engine
	Executor *agentexec.Executor
	Context  *contextstore.Manager
	Metrics  *metrics.Collector
}

func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(LoggingMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", s.metricsHandler()).Methods(http.MethodGet)

	hubRoutes := r.PathPrefix("/hub").Subrouter()
	hubRoutes.Use(TenantMiddleware)
	hubRoutes.HandleFunc("/events/publish", s.handlePublishEvent).Methods(http.MethodPost)
	hubRoutes.HandleFunc("/events/{eventId}/replay", s.handleReplayEvent).Methods(http.MethodPost)
	hubRoutes.HandleFunc("/registry", s.handleListAgents).Methods(http.MethodGet)
	hubRoutes.HandleFunc("/agents", s.handleListAgents).Methods(http.MethodGet)
	hubRoutes.HandleFunc("/tenants", s.handleListTenants).Methods(http.MethodGet)
	hubRoutes.HandleFunc("/events", s.handleListEvents).Methods(http.MethodGet)
	hubRoutes.HandleFunc("/clients/{tenantId}/{clientId}/heartbeat", s.handleHeartbeat).Methods(http.MethodPost)
	hubRoutes.HandleFunc("/clients", s.handleListClients).Methods(http.MethodGet)

	agentRoutes := r.PathPrefix("/agents").Subrouter()
	agentRoutes.Use(TenantMiddleware)
	agentRoutes.HandleFunc("/{agentName}/run", s.handleRunAgent).Methods(http.MethodPost)

	orchestrateRoutes := r.PathPrefix("/orchestrate").Subrouter()
	orchestrateRoutes.Use(TenantMiddleware)
	orchestrateRoutes.HandleFunc("/start", s.handleOrchestrateStart).Methods(http.MethodPost)
	orchestrateRoutes.HandleFunc("/state/{caseId}", s.handleOrchestrateState).Methods(http.MethodGet)
	orchestrateRoutes.HandleFunc("/approval", s.handleOrchestrateApproval).Methods(http.MethodPost)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("transport: encode response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := apierr.StatusCode(err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeBody(r *http.Request, out any) error {
	if r.Body == nil {
		return apierr.Validation("request body required")
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return apierr.Validation("invalid JSON body: " + err.Error())
	}
	return nil
}
