package events

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// Kafka writes events to a topic keyed by aggregate id.
type Kafka struct {
	w *kafka.Writer
}

func NewKafka(brokers []string, topic string) (*Kafka, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, fmt.Errorf("events: kafka needs brokers and topic")
	}
	return &Kafka{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}}, nil
}

func (k *Kafka) Publish(ctx context.Context, e Event) error {
	b, err := e.Marshal()
	if err != nil {
		return err
	}
	return k.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.Key()),
		Value: b,
	})
}

func (k *Kafka) Close() error { return k.w.Close() }
