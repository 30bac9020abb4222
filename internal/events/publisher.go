// Package events publishes prediction lifecycle events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/i474232898/crop-yield-analytics/internal/crop"
)

// TypePredictionCreated is the event type emitted after a prediction is stored.
const TypePredictionCreated = "prediction.created"

// Event is the message envelope written to the topic.
type Event struct {
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurredAt"`
	Prediction crop.Record `json:"prediction"`
}

// messageWriter is the subset of *kafka.Writer used by the publisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes prediction events to a Kafka topic, keyed by state
// so per-state consumers see events in order.
type KafkaPublisher struct {
	w   messageWriter
	log *zap.Logger
}

// NewKafkaPublisher creates a publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string, log *zap.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		Async:                  false,
		AllowAutoTopicCreation: true,
		WriteTimeout:           5 * time.Second,
	}
	return newKafkaPublisher(w, log)
}

func newKafkaPublisher(w messageWriter, log *zap.Logger) *KafkaPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaPublisher{w: w, log: log.With(zap.String("component", "kafka-publisher"))}
}

// PredictionCreated implements crop.Publisher.
func (p *KafkaPublisher) PredictionCreated(ctx context.Context, rec crop.Record) error {
	b, err := json.Marshal(Event{
		Type:       TypePredictionCreated,
		OccurredAt: time.Now().UTC(),
		Prediction: rec,
	})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(rec.StateName()),
		Value: b,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(TypePredictionCreated)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	p.log.Debug("event published", zap.String("id", rec.ID))
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

// Noop discards events. It is used when no brokers are configured.
type Noop struct{}

// PredictionCreated implements crop.Publisher.
func (Noop) PredictionCreated(context.Context, crop.Record) error { return nil }

// Close implements io.Closer.
func (Noop) Close() error { return nil }
