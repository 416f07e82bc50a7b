// Package tenantctx implements the layered tenant cache (in-process ->
// context store -> registry) plus per-session scratch R/W, grounded on
// orchestrator-svc/app/services/tenant_context.py.
package tenantctx

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/aihub/orchestrator/internal/contextstore"
	"github.com/aihub/orchestrator/internal/model"
	"github.com/aihub/orchestrator/internal/registry"
)

type Service struct {
	ctx        *contextstore.Manager
	registry   *registry.Client
	defaultTTL time.Duration

	mu    sync.Mutex
	cache map[string]model.Tenant
}

func NewService(ctx *contextstore.Manager, registryClient *registry.Client, defaultTTL time.Duration) *Service {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &Service{
		ctx:        ctx,
		registry:   registryClient,
		defaultTTL: defaultTTL,
		cache:      map[string]model.Tenant{},
	}
}

// GetTenant checks the process cache, then the context store (expecting
// {"tenant": TenantSchema}), then falls through to the registry client,
// write-through caching on each hit below the process cache.
func (s *Service) GetTenant(ctx context.Context, tenantID string, useCache bool) (*model.Tenant, error) {
	if useCache {
		s.mu.Lock()
		tenant, ok := s.cache[tenantID]
		s.mu.Unlock()
		if ok {
			return &tenant, nil
		}
	}

	blob, err := s.ctx.GetTenantContext(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if blob != nil {
		if raw, ok := blob["tenant"]; ok {
			if tenant, ok := decodeTenant(raw); ok {
				if useCache {
					s.mu.Lock()
					s.cache[tenantID] = tenant
					s.mu.Unlock()
				}
				return &tenant, nil
			}
		}
	}

	tenant, err := s.registry.GetTenant(ctx, tenantID, true)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		slog.Warn("tenant context: tenant not found in registry", "tenantId", tenantID)
		return nil, nil
	}

	_ = s.ctx.SetTenantContext(ctx, tenantID, map[string]any{"tenant": tenant}, s.defaultTTL)
	if useCache {
		s.mu.Lock()
		s.cache[tenantID] = *tenant
		s.mu.Unlock()
	}
	return tenant, nil
}

func decodeTenant(raw any) (model.Tenant, bool) {
	data, err := json.Marshal(raw)
	if err != nil {
		return model.Tenant{}, false
	}
	var tenant model.Tenant
	if err := json.Unmarshal(data, &tenant); err != nil {
		return model.Tenant{}, false
	}
	return tenant, true
}

func (s *Service) GetEnvironment(ctx context.Context, tenantID string) (map[string]string, error) {
	tenant, err := s.GetTenant(ctx, tenantID, true)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return map[string]string{}, nil
	}
	return tenant.EnvVars, nil
}

func (s *Service) SetSessionState(ctx context.Context, tenantID, sessionID string, state map[string]any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	return s.ctx.SetSessionContext(ctx, tenantID, sessionID, state, ttl)
}

func (s *Service) GetSessionState(ctx context.Context, tenantID, sessionID string) (map[string]any, error) {
	return s.ctx.GetSessionContext(ctx, tenantID, sessionID)
}

func (s *Service) ClearSessionState(ctx context.Context, tenantID, sessionID string) error {
	return s.ctx.DeleteSessionContext(ctx, tenantID, sessionID)
}

// WarmTenant force-refreshes a tenant under the process-cache mutex,
// single-flight per tenant by virtue of holding the lock across the fetch.
func (s *Service) WarmTenant(ctx context.Context, tenantID string) (*model.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tenant, err := s.GetTenant(ctx, tenantID, false)
	if err != nil {
		return nil, err
	}
	if tenant != nil {
		s.cache[tenantID] = *tenant
	}
	return tenant, nil
}

func (s *Service) DiscardCache(tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tenantID == "" {
		s.cache = map[string]model.Tenant{}
		return
	}
	delete(s.cache, tenantID)
}
