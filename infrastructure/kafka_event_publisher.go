package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

// KafkaPublisher writes messages to one Kafka topic, keyed by subject
type KafkaPublisher struct {
	writer *kafka.Writer
}

var _ MessagePublisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a publisher for topic on brokers
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	log.WithFields(log.Fields{
		"brokers": brokers,
		"topic":   topic,
	}).Info("Using Kafka event sink")

	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

func newKafkaMessage(subject string, data []byte) kafka.Message {
	return kafka.Message{
		Key:   []byte(subject),
		Value: data,
		Headers: []kafka.Header{
			{Key: "subject", Value: []byte(subject)},
		},
	}
}

// Publish writes one message. Messages of the same subject land on the same partition.
func (p *KafkaPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if err := p.writer.WriteMessages(ctx, newKafkaMessage(subject, data)); err != nil {
		return fmt.Errorf("failed to write message for subject %s to kafka: %w", subject, err)
	}
	return nil
}

// Close flushes pending writes
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
