package registry

import (
	"context"
	"sync"
	"time"

	"github.com/aihub/orchestrator/internal/model"
)

const systemScope = "system"

// Cache owns the in-process agent/tenant directory and the active-client
// heartbeat table. All map mutations happen under a single mutex. Refresh
// holds the write lock across its registry fetches as well as the swap, so
// at most one refresh runs at a time and readers wait for it; the other
// mutations hold it only across the map change. Grounded on
// orchestrator-svc/app/services/hub_registry.py and generalized from the
// teacher's single-mutex multi-index pattern in internal/fabric/hub.go.
type Cache struct {
	client *Client

	mu              sync.RWMutex
	agents          map[string]map[string]model.Agent // scope -> name -> agent
	tenants         map[string]model.Tenant
	activeClients   map[string]map[string]int64 // tenantID -> clientID -> epoch seconds
	lastRefresh     time.Time
	refreshInterval time.Duration
}

func NewCache(client *Client, refreshInterval time.Duration) *Cache {
	if refreshInterval <= 0 {
		refreshInterval = 60 * time.Second
	}
	return &Cache{
		client:          client,
		agents:          map[string]map[string]model.Agent{},
		tenants:         map[string]model.Tenant{},
		activeClients:   map[string]map[string]int64{},
		refreshInterval: refreshInterval,
	}
}

// Refresh replaces the "system" agent scope and the tenant map. It is a
// no-op unless forced or the refresh interval has elapsed; at most one
// refresh is in flight at a time.
func (c *Cache) Refresh(ctx context.Context, force bool) error {
	c.mu.RLock()
	stale := force || time.Since(c.lastRefresh) >= c.refreshInterval
	c.mu.RUnlock()
	if !stale {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Re-check under the write lock: another goroutine may have refreshed
	// while we waited.
	if !force && time.Since(c.lastRefresh) < c.refreshInterval {
		return nil
	}

	agents, err := c.client.ListAgents(ctx, systemScope)
	if err != nil {
		return err
	}
	tenants, err := c.client.ListTenants(ctx, true)
	if err != nil {
		return err
	}

	systemAgents := make(map[string]model.Agent, len(agents))
	for _, a := range agents {
		systemAgents[a.Name] = a
	}
	c.agents[systemScope] = systemAgents

	tenantMap := make(map[string]model.Tenant, len(tenants))
	for _, t := range tenants {
		tenantMap[t.ID] = t
	}
	c.tenants = tenantMap
	c.lastRefresh = time.Now()
	return nil
}

func scopeOrSystem(tenantID string) string {
	if tenantID == "" {
		return systemScope
	}
	return tenantID
}

// ListAgents returns the agents visible to tenantID, lazily fetching and
// memoizing that scope on first access.
func (c *Cache) ListAgents(ctx context.Context, tenantID string) ([]model.Agent, error) {
	if err := c.Refresh(ctx, false); err != nil {
		return nil, err
	}
	scope := scopeOrSystem(tenantID)

	c.mu.RLock()
	scoped, ok := c.agents[scope]
	c.mu.RUnlock()
	if !ok && scope != systemScope {
		if err := c.ensureScope(ctx, scope); err != nil {
			return nil, err
		}
		c.mu.RLock()
		scoped = c.agents[scope]
		c.mu.RUnlock()
	}

	out := make([]model.Agent, 0, len(scoped))
	for _, a := range scoped {
		out = append(out, a)
	}
	return out, nil
}

func (c *Cache) ensureScope(ctx context.Context, scope string) error {
	agents, err := c.client.ListAgents(ctx, scope)
	if err != nil {
		return err
	}
	scoped := make(map[string]model.Agent, len(agents))
	for _, a := range agents {
		scoped[a.Name] = a
	}
	c.mu.Lock()
	c.agents[scope] = scoped
	c.mu.Unlock()
	return nil
}

// GetAgent returns the tenant-scoped record if present, else the
// system-scoped record, else nil.
func (c *Cache) GetAgent(ctx context.Context, name, tenantID string) (*model.Agent, error) {
	if err := c.Refresh(ctx, false); err != nil {
		return nil, err
	}
	scope := scopeOrSystem(tenantID)
	if scope != systemScope {
		if _, err := c.ListAgents(ctx, scope); err != nil {
			return nil, err
		}
		c.mu.RLock()
		agent, ok := c.agents[scope][name]
		c.mu.RUnlock()
		if ok {
			return &agent, nil
		}
	}
	c.mu.RLock()
	agent, ok := c.agents[systemScope][name]
	c.mu.RUnlock()
	if ok {
		return &agent, nil
	}
	return nil, nil
}

func (c *Cache) ListTenants(ctx context.Context) ([]model.Tenant, error) {
	if err := c.Refresh(ctx, false); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Tenant, 0, len(c.tenants))
	for _, t := range c.tenants {
		out = append(out, t)
	}
	return out, nil
}

func (c *Cache) GetTenant(ctx context.Context, id string) (*model.Tenant, error) {
	if err := c.Refresh(ctx, false); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tenants[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

// RegisterClient, HeartbeatClient (treats a missing entry as a register),
// UnregisterClient and ListClients are O(1) operations on the heartbeat
// table, guarded by the same mutex as the agent/tenant maps.

func (c *Cache) RegisterClient(tenantID, clientID string) {
	c.heartbeat(tenantID, clientID)
}

func (c *Cache) HeartbeatClient(tenantID, clientID string) {
	c.heartbeat(tenantID, clientID)
}

func (c *Cache) heartbeat(tenantID, clientID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	clients, ok := c.activeClients[tenantID]
	if !ok {
		clients = map[string]int64{}
		c.activeClients[tenantID] = clients
	}
	clients[clientID] = time.Now().Unix()
}

func (c *Cache) UnregisterClient(tenantID, clientID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if clients, ok := c.activeClients[tenantID]; ok {
		delete(clients, clientID)
	}
}

func (c *Cache) ListClients(tenantID string) map[string]map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if tenantID != "" {
		clients, ok := c.activeClients[tenantID]
		if !ok {
			return map[string]map[string]int64{}
		}
		copyOf := make(map[string]int64, len(clients))
		for k, v := range clients {
			copyOf[k] = v
		}
		return map[string]map[string]int64{tenantID: copyOf}
	}
	out := make(map[string]map[string]int64, len(c.activeClients))
	for tenant, clients := range c.activeClients {
		copyOf := make(map[string]int64, len(clients))
		for k, v := range clients {
			copyOf[k] = v
		}
		out[tenant] = copyOf
	}
	return out
}

// SyncAgent registers or updates an agent with the registry (as "system")
// and updates the in-process cache with the server echo.
func (c *Cache) SyncAgent(ctx context.Context, agent model.Agent) (*model.Agent, error) {
	echoed, err := c.client.RegisterAgent(ctx, agent)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if c.agents[systemScope] == nil {
		c.agents[systemScope] = map[string]model.Agent{}
	}
	c.agents[systemScope][echoed.Name] = *echoed
	c.mu.Unlock()
	return echoed, nil
}

// SyncTenant registers or updates a tenant with the registry (as "system")
// and updates the in-process cache with the server echo.
func (c *Cache) SyncTenant(ctx context.Context, tenant model.Tenant) (*model.Tenant, error) {
	echoed, err := c.client.RegisterTenant(ctx, tenant)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.tenants[echoed.ID] = *echoed
	c.mu.Unlock()
	return echoed, nil
}
