package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aihub/orchestrator/internal/apierr"
)

func TestTrackAgentSuccessIncrementsRequestCount(t *testing.T) {
	c := NewCollector()
	labels := Labels{AgentName: "greeter", TenantID: "t1", Channel: "api", EventType: "agent.direct"}

	err := c.TrackAgent(context.Background(), labels, func(context.Context) error { return nil })
	require.NoError(t, err)

	assert.Equal(t, 1, int(testutil.ToFloat64(c.RequestCount.WithLabelValues("t1", "greeter", "api", "agent.direct"))))
}

func TestTrackAgentFailureIncrementsErrorCount(t *testing.T) {
	c := NewCollector()
	labels := Labels{AgentName: "greeter", TenantID: "t1", Channel: "api", EventType: "agent.direct"}
	cause := apierr.DispatchFailure("upstream down", errors.New("boom"))

	err := c.TrackAgent(context.Background(), labels, func(context.Context) error { return cause })
	require.Error(t, err)

	assert.Equal(t, 1, int(testutil.ToFloat64(c.AgentErrors.WithLabelValues("greeter", "t1", "agent.direct", "dispatch_failure"))))
	assert.Equal(t, 0, int(testutil.ToFloat64(c.RequestCount.WithLabelValues("t1", "greeter", "api", "agent.direct"))))
}
