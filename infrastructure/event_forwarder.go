package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"lbx/events"
	"lbx/infrastructure/observability"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// SourceService identifies this service in event envelopes
const SourceService = "lbx"

// EventEnvelope wraps a domain event for the external sink
type EventEnvelope struct {
	EventID       string          `json:"eventId"`
	EventType     string          `json:"eventType"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"sourceService"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEventEnvelope serializes event inside a fresh envelope
func NewEventEnvelope(event events.Event, now time.Time) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	envelope := EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     string(event.Type()),
		Timestamp:     now.UTC(),
		SourceService: SourceService,
		Payload:       payload,
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event envelope: %w", err)
	}
	return data, nil
}

// EventForwarder relays bus events to an external message publisher.
// Forwarding is best effort: a failed publish is logged and counted, never retried.
type EventForwarder struct {
	publisher     MessagePublisher
	subjectMapper *EventSubjectMapper
	metrics       *observability.MetricsProvider
	timeout       time.Duration
}

// NewEventForwarder creates a new event forwarder
func NewEventForwarder(publisher MessagePublisher, subjectMapper *EventSubjectMapper, metrics *observability.MetricsProvider) *EventForwarder {
	return &EventForwarder{
		publisher:     publisher,
		subjectMapper: subjectMapper,
		metrics:       metrics,
		timeout:       5 * time.Second,
	}
}

// Subscribe registers the forwarder for every event type on bus
func (f *EventForwarder) Subscribe(bus *events.Bus) {
	bus.SubscribeAll(f.Handle)
}

// Handle forwards a single event
func (f *EventForwarder) Handle(ctx context.Context, event events.Event) {
	subject := f.subjectMapper.MapEventToSubject(event)

	data, err := NewEventEnvelope(event, time.Now())
	if err != nil {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
			"error":     err,
		}).Error("Failed to build event envelope")
		f.metrics.RecordEventPublished(subject, false)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if err := f.publisher.Publish(ctx, subject, data); err != nil {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
			"subject":   subject,
			"error":     err,
		}).Error("Failed to forward event")
		f.metrics.RecordEventPublished(subject, false)
		return
	}

	f.metrics.RecordEventPublished(subject, true)
	log.WithFields(log.Fields{
		"eventType": event.Type(),
		"subject":   subject,
	}).Debug("Forwarded event")
}
