// Package registry implements the HTTP client to the external agent/tenant
// registry service (Client) and the in-process TTL-refreshed cache layered
// on top of it (Cache). Grounded on
// ai_services/hub_core/registry_client.py and
// orchestrator-svc/app/services/hub_registry.py.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aihub/orchestrator/internal/contextstore"
	"github.com/aihub/orchestrator/internal/model"
)

const tenantCacheTTL = 600 * time.Second

// Client is the HTTP client to the external registry service.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	ctx     *contextstore.Manager
}

func NewClient(baseURL, apiKey string, ctx *contextstore.Manager) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
		ctx:     ctx,
	}
}

func tenantHeader(tenantID string) string {
	if tenantID == "" {
		return "system"
	}
	return tenantID
}

func (c *Client) do(ctx context.Context, method, path, tenantID string, body any) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("registry client: marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("registry client: build request: %w", err)
	}
	req.Header.Set("X-Tenant", tenantHeader(tenantID))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("registry client: request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("registry client: read response: %w", err)
	}
	return data, resp.StatusCode, nil
}

// ListAgents lists agents in a tenant scope ("" means "system").
func (c *Client) ListAgents(ctx context.Context, tenantID string) ([]model.Agent, error) {
	data, status, err := c.do(ctx, http.MethodGet, "/agents", tenantID, nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("registry client: list agents: status %d", status)
	}
	var agents []model.Agent
	if err := json.Unmarshal(data, &agents); err != nil {
		return nil, fmt.Errorf("registry client: decode agents: %w", err)
	}
	return agents, nil
}

// GetAgent returns nil, nil on a 404.
func (c *Client) GetAgent(ctx context.Context, name, tenantID string) (*model.Agent, error) {
	data, status, err := c.do(ctx, http.MethodGet, "/agents/"+name, tenantID, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("registry client: get agent %s: status %d", name, status)
	}
	var agent model.Agent
	if err := json.Unmarshal(data, &agent); err != nil {
		return nil, fmt.Errorf("registry client: decode agent: %w", err)
	}
	return &agent, nil
}

func (c *Client) tenantsCacheKey() string {
	return "system:hub:registry:tenants"
}

func (c *Client) tenantCacheKey(tenantID string) string {
	return fmt.Sprintf("%s:hub:registry:tenant", tenantID)
}

// ListTenants is cache-first (600s TTL) through the context store.
func (c *Client) ListTenants(ctx context.Context, useCache bool) ([]model.Tenant, error) {
	if useCache {
		if cached, ok, err := c.readCachedTenants(ctx); err == nil && ok {
			return cached, nil
		}
	}
	data, status, err := c.do(ctx, http.MethodGet, "/tenants", "", nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("registry client: list tenants: status %d", status)
	}
	var tenants []model.Tenant
	if err := json.Unmarshal(data, &tenants); err != nil {
		return nil, fmt.Errorf("registry client: decode tenants: %w", err)
	}
	c.cacheTenants(ctx, tenants)
	return tenants, nil
}

func (c *Client) readCachedTenants(ctx context.Context) ([]model.Tenant, bool, error) {
	blob, err := c.ctx.Get(ctx, c.tenantsCacheKey())
	if err != nil || blob == nil {
		return nil, false, err
	}
	raw, ok := blob["tenants"]
	if !ok {
		return nil, false, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, false, err
	}
	var tenants []model.Tenant
	if err := json.Unmarshal(data, &tenants); err != nil {
		return nil, false, nil
	}
	return tenants, true, nil
}

func (c *Client) cacheTenants(ctx context.Context, tenants []model.Tenant) {
	_ = c.ctx.Set(ctx, c.tenantsCacheKey(), map[string]any{"tenants": tenants}, tenantCacheTTL)
}

// GetTenant is cache-first (600s TTL), falling back to a direct fetch.
func (c *Client) GetTenant(ctx context.Context, tenantID string, useCache bool) (*model.Tenant, error) {
	if useCache {
		if blob, err := c.ctx.Get(ctx, c.tenantCacheKey(tenantID)); err == nil && blob != nil {
			if raw, ok := blob["tenant"]; ok {
				data, err := json.Marshal(raw)
				if err == nil {
					var tenant model.Tenant
					if json.Unmarshal(data, &tenant) == nil {
						return &tenant, nil
					}
				}
			}
		}
	}
	data, status, err := c.do(ctx, http.MethodGet, "/tenants/"+tenantID, tenantID, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("registry client: get tenant %s: status %d", tenantID, status)
	}
	var tenant model.Tenant
	if err := json.Unmarshal(data, &tenant); err != nil {
		return nil, fmt.Errorf("registry client: decode tenant: %w", err)
	}
	_ = c.ctx.Set(ctx, c.tenantCacheKey(tenantID), map[string]any{"tenant": tenant}, tenantCacheTTL)
	return &tenant, nil
}

// RegisterAgent POSTs as the "system" tenant and returns the server echo.
func (c *Client) RegisterAgent(ctx context.Context, agent model.Agent) (*model.Agent, error) {
	data, status, err := c.do(ctx, http.MethodPost, "/agents", "system", agent)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("registry client: register agent: status %d", status)
	}
	var out model.Agent
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("registry client: decode registered agent: %w", err)
	}
	return &out, nil
}

// RegisterTenant POSTs as the "system" tenant and returns the server echo.
func (c *Client) RegisterTenant(ctx context.Context, tenant model.Tenant) (*model.Tenant, error) {
	data, status, err := c.do(ctx, http.MethodPost, "/tenants", "system", tenant)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("registry client: register tenant: status %d", status)
	}
	var out model.Tenant
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("registry client: decode registered tenant: %w", err)
	}
	return &out, nil
}
