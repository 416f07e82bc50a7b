// Package tools implements the shared retry/circuit-breaker/timeout
// machinery for outbound integration calls (case management, travel
// search, blob storage), grounded on orchestrator-svc/app/tools/base.py,
// and the three concrete tools the journey state machine calls.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aihub/orchestrator/internal/apierr"
)

const (
	defaultRetries    = 3
	backoffBase       = 300 * time.Millisecond
	circuitCooldown   = 30 * time.Second
)

// BaseTool holds the per-provider HTTP client, timeout, and circuit
// breaker state. failureCount/openUntil are guarded by mu (spec §9's
// "small per-tool value holding failureCount, openUntil").
type BaseTool struct {
	Provider string
	baseURL  string
	http     *http.Client

	mu           sync.Mutex
	failureCount int
	openUntil    time.Time
}

func NewBaseTool(provider, baseURL string, timeout time.Duration) *BaseTool {
	return &BaseTool{
		Provider: provider,
		baseURL:  baseURL,
		http:     &http.Client{Timeout: timeout},
	}
}

func (t *BaseTool) circuitOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.openUntil.IsZero() {
		return false
	}
	if time.Now().After(t.openUntil) {
		t.openUntil = time.Time{}
		t.failureCount = 0
		return false
	}
	return true
}

func (t *BaseTool) recordFailure() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failureCount++
	if t.failureCount >= defaultRetries {
		t.openUntil = time.Now().Add(circuitCooldown)
		slog.Warn("integration tool circuit opened", "provider", t.Provider, "cooldownSec", circuitCooldown.Seconds())
	}
}

func (t *BaseTool) recordSuccess() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failureCount = 0
}

// Request performs an HTTP call with up to defaultRetries attempts and
// exponential backoff (0.3 * 2^(n-1) seconds), failing fast while the
// circuit is open.
func (t *BaseTool) Request(ctx context.Context, method, path string, body map[string]any) (map[string]any, error) {
	if t.circuitOpen() {
		return nil, apierr.CircuitOpen(t.Provider)
	}

	var lastErr error
	for attempt := 1; attempt <= defaultRetries; attempt++ {
		result, err := t.attempt(ctx, method, path, body)
		if err == nil {
			t.recordSuccess()
			return result, nil
		}
		lastErr = err
		t.recordFailure()
		if attempt >= defaultRetries {
			break
		}
		sleep := time.Duration(float64(backoffBase) * pow2(attempt-1))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
	slog.Error("integration tool request failed after retries", "provider", t.Provider, "path", path, "error", lastErr)
	return nil, fmt.Errorf("%s: %w", t.Provider, lastErr)
}

func pow2(n int) float64 {
	result := 1.0
	for i := 0; i < n; i++ {
		result *= 2
	}
	return result
}

func (t *BaseTool) attempt(ctx context.Context, method, path string, body map[string]any) (map[string]any, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := t.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(data))
	}
	if len(data) == 0 {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
