// Package eventbus implements concurrent publish to a Kafka topic and a
// per-tenant context-store stream, grounded on
// orchestrator-svc/app/services/event_bus.py, using segmentio/kafka-go as
// the broker client (the only Kafka client referenced anywhere in the
// example pack, via other_examples/manifests/nmxmxh-master-ovasabi/go.mod)
// and generalizing the teacher's dual local+remote publish pattern in
// internal/fabric/redis_event_bus.go.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/aihub/orchestrator/internal/contextstore"
	"github.com/aihub/orchestrator/internal/model"
)

// Producer is the minimal interface the bus needs from a Kafka writer,
// letting tests substitute a fake.
type Producer interface {
	WriteMessage(ctx context.Context, topic string, key, value []byte) error
	Close() error
}

// KafkaProducer wraps segmentio/kafka-go, keyed by topic via per-topic
// writers cached under a mutex (kafka-go writers are topic-scoped).
type KafkaProducer struct {
	brokers []string

	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

func NewKafkaProducer(brokers []string) *KafkaProducer {
	return &KafkaProducer{brokers: brokers, writers: map[string]*kafka.Writer{}}
}

func (p *KafkaProducer) writerFor(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()
	if w, ok := p.writers[topic]; ok {
		return w
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(p.brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	p.writers[topic] = w
	return w
}

func (p *KafkaProducer) WriteMessage(ctx context.Context, topic string, key, value []byte) error {
	if len(p.brokers) == 0 {
		slog.Debug("event bus: kafka brokers not configured, dropping event", "topic", topic)
		return nil
	}
	return p.writerFor(topic).WriteMessages(ctx, kafka.Message{Key: key, Value: value})
}

func (p *KafkaProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for _, w := range p.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Bus publishes a Hub Event to the broker topic and appends it to the
// per-tenant replay stream, concurrently, absorbing failures from either
// sink without surfacing them to the caller (spec §4.6, §7 item 5).
type Bus struct {
	producer      Producer
	ctx           *contextstore.Manager
	kafkaTopic    string // ai.agent.events
	hubSuffix     string // hub.events
	replaySuffix  string // hub:events (stream name component)
	streamMaxLen  int64
}

func NewBus(producer Producer, ctx *contextstore.Manager, kafkaTopic, hubSuffix, replaySuffix string) *Bus {
	return &Bus{
		producer:     producer,
		ctx:          ctx,
		kafkaTopic:   kafkaTopic,
		hubSuffix:    hubSuffix,
		replaySuffix: replaySuffix,
		streamMaxLen: 1000,
	}
}

func scopeOrSystem(tenantID string) string {
	if tenantID == "" {
		return "system"
	}
	return tenantID
}

func (b *Bus) resolveTopic(event model.HubEvent) string {
	suffix := b.hubSuffix
	if strings.HasPrefix(event.Type, "agent.") {
		suffix = b.kafkaTopic
	}
	return fmt.Sprintf("tenant.%s.%s", scopeOrSystem(event.TenantID), suffix)
}

func (b *Bus) tenantStream(tenantID string) string {
	return fmt.Sprintf("%s:%s", scopeOrSystem(tenantID), b.replaySuffix)
}

// Publish serializes event to JSON (camelCase field names preserved by the
// model's json tags) and concurrently sends it to the broker and appends
// it to the tenant stream. Errors from either sink are logged, never
// returned: this is a best-effort sink per spec.
func (b *Bus) Publish(ctx context.Context, event model.HubEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("event bus: marshal event", "eventId", event.ID, "error", err)
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		topic := b.resolveTopic(event)
		if err := b.producer.WriteMessage(ctx, topic, []byte(event.ID), data); err != nil {
			slog.Warn("event bus: kafka publish failed", "topic", topic, "eventId", event.ID, "error", err)
		}
	}()

	go func() {
		defer wg.Done()
		var payload map[string]any
		if err := json.Unmarshal(data, &payload); err != nil {
			slog.Error("event bus: re-decode event for stream append", "eventId", event.ID, "error", err)
			return
		}
		stream := b.tenantStream(event.TenantID)
		if _, err := b.ctx.AppendStream(ctx, stream, payload, b.streamMaxLen); err != nil {
			slog.Warn("event bus: stream append failed", "stream", stream, "eventId", event.ID, "error", err)
		}
	}()

	wg.Wait()
}

// PublishRaw validates a raw payload into a Hub Event and publishes it.
func (b *Bus) PublishRaw(ctx context.Context, payload map[string]any) (model.HubEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return model.HubEvent{}, fmt.Errorf("event bus: marshal raw payload: %w", err)
	}
	var event model.HubEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return model.HubEvent{}, fmt.Errorf("event bus: decode hub event: %w", err)
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	b.Publish(ctx, event)
	return event, nil
}

// EmitAgentResponse builds and publishes the agent.response event the
// Agent Executor emits after every successful dispatch.
func (b *Bus) EmitAgentResponse(ctx context.Context, tenantID, agentName string, response map[string]any, correlationID string) {
	id := correlationID
	if v, ok := response["id"].(string); ok && v != "" {
		id = v
	}
	if id == "" {
		id = agentName
	}
	event := model.HubEvent{
		ID:            id,
		TenantID:      tenantID,
		Type:          "agent.response",
		Source:        agentName,
		Channel:       "internal",
		Timestamp:     resolveTimestamp(response),
		Payload:       response,
		CorrelationID: correlationID,
	}
	b.Publish(ctx, event)
}

func resolveTimestamp(response map[string]any) time.Time {
	if raw, ok := response["timestamp"]; ok {
		if s, ok := raw.(string); ok {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				return t
			}
		}
	}
	return time.Now().UTC()
}
