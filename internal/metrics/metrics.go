// Package metrics implements the three Prometheus metrics the dispatch
// path is instrumented with, following the HistogramVec/CounterVec shape
// of the teacher's internal/escrow/metrics.go and the exact metric names
// and labels of the original ai_services/hub_core/metrics_collector.py.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Collector struct {
	AgentLatency   *prometheus.HistogramVec
	RequestCount   *prometheus.CounterVec
	AgentErrors    *prometheus.CounterVec
}

func NewCollector() *Collector {
	return &Collector{
		AgentLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agent_latency_seconds",
				Help:    "Latency of an agent dispatch call, observed regardless of outcome",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"agent_name", "tenant_id", "event_type"},
		),
		RequestCount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenant_request_count",
				Help: "Successful dispatch/queue requests per tenant",
			},
			[]string{"tenant_id", "agent_name", "channel", "event_type"},
		),
		AgentErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_error_total",
				Help: "Agent dispatch failures by concrete error kind",
			},
			[]string{"agent_name", "tenant_id", "event_type", "error_type"},
		),
	}
}

// Labels identifies the four dimensions every dispatch call is tagged with.
type Labels struct {
	AgentName string
	TenantID  string
	Channel   string
	EventType string
}

// TrackAgent wraps fn with latency/error/success instrumentation: the
// latency histogram observes regardless of outcome; on error the error
// counter is incremented before the error is returned; on success the
// request counter is incremented. Mirrors metrics_collector.py's
// track_agent decorator.
func (c *Collector) TrackAgent(ctx context.Context, labels Labels, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start).Seconds()
	c.AgentLatency.WithLabelValues(labels.AgentName, labels.TenantID, labels.EventType).Observe(duration)
	if err != nil {
		c.AgentErrors.WithLabelValues(labels.AgentName, labels.TenantID, labels.EventType, ErrorKind(err)).Inc()
		return err
	}
	c.RequestCount.WithLabelValues(labels.TenantID, labels.AgentName, labels.Channel, labels.EventType).Inc()
	return nil
}

// IncRequest increments the request counter directly, for paths that do
// not go through TrackAgent (e.g. the hub router's fall-through queue path).
func (c *Collector) IncRequest(tenantID, agentName, channel, eventType string) {
	c.RequestCount.WithLabelValues(tenantID, agentName, channel, eventType).Inc()
}

// ErrorKindProvider is a typed classifier carried by errors that need to report a
// concrete failure kind on the agent_error_total label, the Go analogue of
// Python's exc.__class__.__name__.
type ErrorKindProvider interface {
	ErrorKind() string
}

// ErrorKind extracts a concrete failure kind from err, falling back to
// "unknown" when the error does not implement ErrorKindProvider.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	if kp, ok := err.(ErrorKindProvider); ok {
		return kp.ErrorKind()
	}
	return "unknown"
}
