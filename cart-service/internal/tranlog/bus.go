package tranlog

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

type Message struct {
	Key       string
	EventID   string
	EventType string
	Value     []byte
}

// Bus delivers messages to downstream consumers.
type Bus interface {
	Publish(ctx context.Context, msg Message) error
}

// KafkaBus writes to one topic, partitioned by message key so a
// terminal-day stays ordered on a single partition.
type KafkaBus struct {
	writer *kafka.Writer
}

func NewKafkaBus(topic string, brokers ...string) *KafkaBus {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &KafkaBus{writer: w}
}

func (b *KafkaBus) Publish(ctx context.Context, msg Message) error {
	return b.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.Key),
		Value: msg.Value,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(msg.EventID)},
			{Key: "event_type", Value: []byte(msg.EventType)},
		},
	})
}

func (b *KafkaBus) Close() error {
	return b.writer.Close()
}
