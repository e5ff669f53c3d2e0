package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/agent"
)

const (
	TypeCheckoutStarted = "CheckoutStarted"
	TypeOrderPlaced     = "OrderPlaced"
	Version             = "v1"

	defaultPublishTimeout = 2 * time.Second
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes checkout milestones to one topic. It implements
// agent.Hooks.
type Producer struct {
	w       messageWriter
	topic   string
	timeout time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

func NewProducer(brokers []string, topic string, logger *zap.Logger) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{}, // partition by message key
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return newProducer(w, topic, logger)
}

func newProducer(w messageWriter, topic string, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Producer{w: w, topic: topic, timeout: defaultPublishTimeout, now: time.Now, logger: logger.Named("events")}
}

func (p *Producer) Close() error { return p.w.Close() }

// Envelope is the event schema on the wire. Keep it small and stable.
type Envelope struct {
	EventType    string    `json:"eventType"`
	EventVersion string    `json:"eventVersion"`
	OccurredAt   time.Time `json:"occurredAt"`
	AggregateID  string    `json:"aggregateId"` // checkout session id
	Data         any       `json:"data"`
}

// RawEnvelope defers decoding of Data until the event type is known.
type RawEnvelope struct {
	EventType    string          `json:"eventType"`
	EventVersion string          `json:"eventVersion"`
	OccurredAt   time.Time       `json:"occurredAt"`
	AggregateID  string          `json:"aggregateId"`
	Data         json.RawMessage `json:"data"`
}

// Publish writes one message keyed by key, so events of one session stay
// ordered within a partition.
func (p *Producer) Publish(ctx context.Context, key string, evt Envelope) error {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = p.now().UTC()
	}
	val, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", evt.EventType, err)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.w.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: val}); err != nil {
		return fmt.Errorf("publish %s to %s: %w", evt.EventType, p.topic, err)
	}
	p.logger.Debug("event published", zap.String("type", evt.EventType), zap.String("key", key))
	return nil
}

func (p *Producer) CheckoutStarted(ctx context.Context, e agent.CheckoutStarted) error {
	return p.Publish(ctx, e.SessionID, Envelope{
		EventType:    TypeCheckoutStarted,
		EventVersion: Version,
		OccurredAt:   e.OccurredAt.UTC(),
		AggregateID:  e.SessionID,
		Data:         e,
	})
}

func (p *Producer) OrderPlaced(ctx context.Context, e agent.OrderPlaced) error {
	return p.Publish(ctx, e.SessionID, Envelope{
		EventType:    TypeOrderPlaced,
		EventVersion: Version,
		OccurredAt:   e.OccurredAt.UTC(),
		AggregateID:  e.SessionID,
		Data:         e,
	})
}

// Decode parses a message value into a RawEnvelope.
func Decode(value []byte) (RawEnvelope, error) {
	var env RawEnvelope
	if err := json.Unmarshal(value, &env); err != nil {
		return RawEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.EventType == "" {
		return RawEnvelope{}, fmt.Errorf("decode envelope: missing eventType")
	}
	return env, nil
}

func (env RawEnvelope) OrderPlaced() (agent.OrderPlaced, error) {
	if env.EventType != TypeOrderPlaced {
		return agent.OrderPlaced{}, fmt.Errorf("event %s is not %s", env.EventType, TypeOrderPlaced)
	}
	var e agent.OrderPlaced
	if err := json.Unmarshal(env.Data, &e); err != nil {
		return agent.OrderPlaced{}, fmt.Errorf("decode %s data: %w", TypeOrderPlaced, err)
	}
	return e, nil
}
