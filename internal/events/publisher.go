// Package events publishes executed actions to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/model"
)

// Event is the message published for every committed action.
type Event struct {
	ID         string          `json:"id"`
	Action     string          `json:"action"`
	MarketID   string          `json:"market_id"`
	Owner      string          `json:"owner,omitempty"`
	PositionID string          `json:"position_id,omitempty"`
	Report     json.RawMessage `json:"report"`
	Timestamp  time.Time       `json:"timestamp"`
}

// FromEntry builds an event from a ledger entry.
func FromEntry(e *model.ActionEntry) Event {
	return Event{
		ID:         e.ID,
		Action:     e.Action,
		MarketID:   e.MarketID,
		Owner:      e.Owner,
		PositionID: e.PositionID,
		Report:     e.Report,
		Timestamp:  e.Timestamp,
	}
}

// Publisher sends events to a message bus.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
	Close() error
}

// KafkaConfig holds Kafka connection configuration.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// BatchTimeout bounds how long a synchronous write waits for a batch to
// fill. kafka-go defaults to one second.
const BatchTimeout = 10 * time.Millisecond

// KafkaPublisher implements Publisher using Kafka. Events are keyed by
// market so each market's actions stay ordered within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a new Kafka publisher.
func NewKafkaPublisher(cfg KafkaConfig) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: BatchTimeout,
	}
	return &KafkaPublisher{writer: writer}
}

// Publish writes events in one batch.
func (p *KafkaPublisher) Publish(ctx context.Context, events ...Event) error {
	msgs, err := Messages(events)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Messages encodes events as Kafka messages keyed by market id.
func Messages(events []Event) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, len(events))
	for i, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		msgs[i] = kafka.Message{
			Key:   []byte(e.MarketID),
			Value: data,
			Time:  e.Timestamp,
		}
	}
	return msgs, nil
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ...Event) error { return nil }
func (NopPublisher) Close() error                            { return nil }
