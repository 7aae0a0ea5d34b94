package mykafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"github.com/Skotchmaster/product_catalog/internal/metrics"
	"github.com/Skotchmaster/product_catalog/internal/models"
)

const (
	DefaultTopic   = "product_events"
	publishTimeout = 5 * time.Second

	// eventTypeHeader lets the delivery callback label messages without decoding them.
	eventTypeHeader = "event-type"

	EventCreated = "product_created"
	EventUpdated = "product_updated"
	EventDeleted = "product_deleted"
)

type ProductEvent struct {
	Type      string    `json:"type"`
	ProductID string    `json:"productID"`
	Name      string    `json:"name,omitempty"`
	Price     float64   `json:"price,omitempty"`
	Quantity  int       `json:"quantity,omitempty"`
	Image     string    `json:"image,omitempty"`
	At        time.Time `json:"at"`
}

func NewProductEvent(eventType string, p *models.Product) ProductEvent {
	ev := ProductEvent{Type: eventType, ProductID: p.ID, At: time.Now().UTC()}
	if eventType != EventDeleted {
		ev.Name = p.Name
		ev.Price = p.Price
		ev.Quantity = p.Quantity
		ev.Image = p.Image
	}
	return ev
}

type Publisher interface {
	PublishEvent(ctx context.Context, event ProductEvent) error
	Close() error
}

// Nop drops every event; used when no brokers are configured.
type Nop struct{}

func (Nop) PublishEvent(context.Context, ProductEvent) error { return nil }
func (Nop) Close() error                                     { return nil }

// Producer writes asynchronously. PublishEvent only queues the message; the
// broker outcome is counted and logged from the writer's completion callback.
type Producer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewProducer(brokers []string, topic string, logger *slog.Logger) *Producer {
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Producer{logger: logger.With("component", "kafka")}
	p.writer = &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           publishTimeout,
		AllowAutoTopicCreation: true,
		Async:                  true,
		Completion:             p.delivered,
	}
	return p
}

// delivered runs on the writer's goroutine once a batch is acknowledged or failed.
func (p *Producer) delivered(messages []kafka.Message, err error) {
	for _, m := range messages {
		eventType := headerCarrier(m.Headers).Get(eventTypeHeader)
		metrics.RecordEvent(eventType, err)
		if err != nil {
			p.logger.Warn("publish_event_error", "event", eventType, "product_id", string(m.Key), "error", err.Error())
		}
	}
}

func (p *Producer) Topic() string { return p.writer.Topic }

// message encodes the event keyed by product id and carries the trace context in headers.
func message(ctx context.Context, event ProductEvent) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("kafka: json.Marshal failed: %w", err)
	}

	carrier := make(headerCarrier, 0, 4)
	carrier.Set(eventTypeHeader, event.Type)
	otel.GetTextMapPropagator().Inject(ctx, &carrier)

	return kafka.Message{
		Key:     []byte(event.ProductID),
		Value:   data,
		Headers: []kafka.Header(carrier),
	}, nil
}

// PublishEvent queues the event and returns without waiting for the broker.
// An error means the message was never queued.
func (p *Producer) PublishEvent(ctx context.Context, event ProductEvent) error {
	msg, err := message(ctx, event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(context.WithoutCancel(ctx), msg); err != nil {
		return fmt.Errorf("kafka: queue %s failed: %w", event.Type, err)
	}
	return nil
}

// Close flushes queued messages before returning.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// headerCarrier adapts kafka headers to propagation.TextMapCarrier.
type headerCarrier []kafka.Header

func (c headerCarrier) Get(key string) string {
	for _, h := range c {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Set(key, value string) {
	for i, h := range *c {
		if h.Key == key {
			(*c)[i].Value = []byte(value)
			return
		}
	}
	*c = append(*c, kafka.Header{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, len(c))
	for i, h := range c {
		keys[i] = h.Key
	}
	return keys
}
