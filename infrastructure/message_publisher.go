package infrastructure

import (
	"context"
	"fmt"

	"lbx/config"

	log "github.com/sirupsen/logrus"
)

// MessagePublisher defines the interface for publishing messages to a message bus
type MessagePublisher interface {
	// Publish publishes a message to the specified subject
	Publish(ctx context.Context, subject string, data []byte) error
	// Close flushes pending messages and releases the connection
	Close() error
}

// NewMessagePublisher creates the sink selected by EVENT_SINK
func NewMessagePublisher(ctx context.Context, cfg *config.Config, subjectMapper *EventSubjectMapper) (MessagePublisher, error) {
	switch cfg.EventSink {
	case config.EventSinkNATS:
		client := NewNATSClient(cfg.NATSServers)
		if err := client.Connect(ctx); err != nil {
			return nil, err
		}
		if err := client.EnsureStream(cfg.NATSStream, subjectMapper.GetAllSubjects()); err != nil {
			client.Close()
			return nil, err
		}
		return client, nil

	case config.EventSinkKafka:
		return NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), nil

	case config.EventSinkNone, "":
		log.Info("External event sink disabled")
		return NewNoopPublisher(), nil

	default:
		return nil, fmt.Errorf("unknown event sink: %s", cfg.EventSink)
	}
}
