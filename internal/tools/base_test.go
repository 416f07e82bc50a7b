package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aihub/orchestrator/internal/apierr"
)

func TestRequestSucceedsOnFirstAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tool := NewBaseTool("test", srv.URL, time.Second)
	out, err := tool.Request(context.Background(), "GET", "/", nil)
	require.NoError(t, err)
	assert.Equal(t, true, out["ok"])
}

func TestRequestRetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tool := NewBaseTool("test", srv.URL, time.Second)
	out, err := tool.Request(context.Background(), "GET", "/", nil)
	require.NoError(t, err)
	assert.Equal(t, true, out["ok"])
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestCircuitOpensAfterConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tool := NewBaseTool("test", srv.URL, time.Second)
	_, err := tool.Request(context.Background(), "GET", "/", nil)
	require.Error(t, err)

	_, err = tool.Request(context.Background(), "GET", "/", nil)
	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierr.KindCircuitOpen, apiErr.Kind)
}
