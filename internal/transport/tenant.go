// Package transport wires the REST surface onto a gorilla/mux router,
// grounded on the teacher's cmd/api/main.go router setup and
// internal/middleware/tenant.go, generalized for the X-Tenant header
// resolution in orchestrator-svc/app/middleware/tenant_context.py.
package transport

import (
	"context"
	"net/http"
)

type ctxKey int

const tenantCtxKey ctxKey = iota

// TenantMiddleware resolves the X-Tenant header case-insensitively
// (net/http already canonicalizes header lookups), defaults to "system",
// injects it into the request context, and echoes it back on the
// response per spec §6.
func TenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := r.Header.Get("X-Tenant")
		if tenantID == "" {
			tenantID = "system"
		}
		w.Header().Set("X-Tenant", tenantID)
		ctx := context.WithValue(r.Context(), tenantCtxKey, tenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func TenantFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(tenantCtxKey).(string); ok && v != "" {
		return v
	}
	return "system"
}
