package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	TopicOrderPlaced    = "order.placed"
	TopicOrderSettled   = "order.settled"
	TopicOrderCancelled = "order.cancelled"
)

const (
	EventOrderPlaced    = "OrderPlaced"
	EventOrderSettled   = "OrderSettled"
	EventOrderCancelled = "OrderCancelled"
)

// Envelope is the wire format shared by all topics.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type OrderPlacedPayload struct {
	PaymentID string   `json:"payment_id"`
	ClientID  string   `json:"client_id"`
	OrderIDs  []string `json:"order_ids"`
	Total     float64  `json:"total"`
}

type OrderSettledPayload struct {
	PaymentID  string   `json:"payment_id"`
	ActionCode string   `json:"action_code"`
	Amount     float64  `json:"amount"`
	OrderIDs   []string `json:"order_ids,omitempty"`
	CreditID   string   `json:"credit_id,omitempty"`
}

type OrderCancelledPayload struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
}

// Publisher emits order lifecycle events. Delivery is async fire-and-forget;
// the writer reports failures through its error logger and the caller never
// blocks on the broker.
type Publisher struct {
	w      *kafka.Writer
	logger *zap.Logger
}

// NewPublisher creates new Publisher instance. The topic travels per message.
func NewPublisher(brokers []string, logger *zap.Logger) *Publisher {
	return &Publisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        true,
		},
		logger: logger,
	}
}

// Publish wraps the payload in an envelope keyed for per-entity ordering.
func (p *Publisher) Publish(ctx context.Context, topic, key, eventType string, payload any) {
	if p == nil || p.w == nil {
		return
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("event payload marshal failed", zap.String("eventType", eventType), zap.Error(err))
		return
	}

	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      "marketplace-core",
		CorrelationID: key,
		Payload:       raw,
	}
	value, err := json.Marshal(env)
	if err != nil {
		p.logger.Error("event envelope marshal failed", zap.String("eventType", eventType), zap.Error(err))
		return
	}

	err = p.w.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	})
	if err != nil {
		p.logger.Error("event publish failed", zap.String("topic", topic), zap.Error(err))
	}
}

// Close flushes buffered messages and releases the writer.
func (p *Publisher) Close() error {
	if p == nil || p.w == nil {
		return nil
	}
	return p.w.Close()
}
