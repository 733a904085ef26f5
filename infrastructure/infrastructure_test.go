package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"lbx/config"
	"lbx/events"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type publishedMessage struct {
	subject string
	data    []byte
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
	err      error
}

func (p *recordingPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, publishedMessage{subject: subject, data: data})
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) snapshot() []publishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedMessage(nil), p.messages...)
}

func TestEventSubjectMapper(t *testing.T) {
	mapper := NewEventSubjectMapper()

	tests := []struct {
		event   events.Event
		subject string
	}{
		{events.BalanceChangeEvent{}, "lbx.wallet.balance_changed"},
		{events.SignupBonusGrantedEvent{}, "lbx.wallet.signup_bonus_granted"},
		{events.JackpotChangedEvent{}, "lbx.jackpot.changed"},
		{events.PromoRedeemedEvent{}, "lbx.promo.redeemed"},
		{events.StreamEventAppliedEvent{}, "lbx.stream.event_applied"},
		{events.EventRulesUpdatedEvent{}, "lbx.stream.rules_updated"},
		{events.RechargeOrderEvent{}, "lbx.recharge.order_changed"},
	}
	for _, tt := range tests {
		t.Run(string(tt.event.Type()), func(t *testing.T) {
			assert.Equal(t, tt.subject, mapper.MapEventToSubject(tt.event))
			assert.Equal(t, tt.event.Type(), mapper.MapSubjectToEventType(tt.subject))
		})
	}

	assert.Len(t, mapper.GetAllSubjects(), len(events.AllEventTypes))
	assert.Equal(t, events.EventType("lbx.other"), mapper.MapSubjectToEventType("lbx.other"))
}

func TestNewEventEnvelope(t *testing.T) {
	now := time.Date(2025, 4, 16, 0, 0, 0, 0, time.UTC)
	event := events.JackpotChangedEvent{
		Month:  "2025-04",
		Change: events.JackpotChangeContribute,
		Amount: decimal.RequireFromString("2.5"),
		Extra:  decimal.RequireFromString("2.5"),
		Value:  decimal.RequireFromString("77.5"),
	}

	data, err := NewEventEnvelope(event, now)
	require.NoError(t, err)

	var envelope EventEnvelope
	require.NoError(t, json.Unmarshal(data, &envelope))
	assert.NotEmpty(t, envelope.EventID)
	assert.Equal(t, "jackpot_changed", envelope.EventType)
	assert.Equal(t, SourceService, envelope.SourceService)
	assert.True(t, now.Equal(envelope.Timestamp))

	var payload events.JackpotChangedEvent
	require.NoError(t, json.Unmarshal(envelope.Payload, &payload))
	assert.True(t, payload.Value.Equal(event.Value))
	assert.Equal(t, events.JackpotChangeContribute, payload.Change)
}

func TestEventForwarder_ForwardsBusEvents(t *testing.T) {
	bus := events.NewBus()
	publisher := &recordingPublisher{}
	NewEventForwarder(publisher, NewEventSubjectMapper(), nil).Subscribe(bus)

	bus.Publish(events.PromoRedeemedEvent{Code: "L3Z-10-ABCDEF", Username: "ALICE", Amount: 10, Balance: 60})

	require.Eventually(t, func() bool {
		return len(publisher.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	msg := publisher.snapshot()[0]
	assert.Equal(t, "lbx.promo.redeemed", msg.subject)

	var envelope EventEnvelope
	require.NoError(t, json.Unmarshal(msg.data, &envelope))
	assert.Equal(t, "promo_redeemed", envelope.EventType)
}

func TestEventForwarder_PublishFailureIsSwallowed(t *testing.T) {
	publisher := &recordingPublisher{err: errors.New("broker down")}
	forwarder := NewEventForwarder(publisher, NewEventSubjectMapper(), nil)

	assert.NotPanics(t, func() {
		forwarder.Handle(context.Background(), events.SignupBonusGrantedEvent{Username: "BOB", Amount: 50})
	})
	assert.Empty(t, publisher.snapshot())
}

func TestNewKafkaMessage(t *testing.T) {
	msg := newKafkaMessage("lbx.wallet.balance_changed", []byte(`{}`))

	assert.Equal(t, []byte("lbx.wallet.balance_changed"), msg.Key)
	assert.Equal(t, []byte(`{}`), msg.Value)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "subject", msg.Headers[0].Key)
}

func TestNewMessagePublisher(t *testing.T) {
	mapper := NewEventSubjectMapper()

	t.Run("none", func(t *testing.T) {
		cfg := config.NewTestConfig()
		publisher, err := NewMessagePublisher(context.Background(), cfg, mapper)
		require.NoError(t, err)
		assert.IsType(t, &NoopPublisher{}, publisher)
		assert.NoError(t, publisher.Publish(context.Background(), "lbx.jackpot.changed", nil))
		assert.NoError(t, publisher.Close())
	})

	t.Run("kafka", func(t *testing.T) {
		cfg := config.NewTestConfig()
		cfg.EventSink = config.EventSinkKafka
		cfg.KafkaBrokers = []string{"localhost:9092"}
		cfg.KafkaTopic = "lbx.events"

		publisher, err := NewMessagePublisher(context.Background(), cfg, mapper)
		require.NoError(t, err)
		assert.IsType(t, &KafkaPublisher{}, publisher)
		assert.NoError(t, publisher.Close())
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := config.NewTestConfig()
		cfg.EventSink = "smoke-signals"
		_, err := NewMessagePublisher(context.Background(), cfg, mapper)
		assert.Error(t, err)
	})
}
