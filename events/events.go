package events

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChange      EventType = "balance_change"
	EventTypeSignupBonusGranted EventType = "signup_bonus_granted"
	EventTypeJackpotChanged     EventType = "jackpot_changed"
	EventTypePromoRedeemed      EventType = "promo_redeemed"
	EventTypeStreamEventApplied EventType = "stream_event_applied"
	EventTypeEventRulesUpdated  EventType = "event_rules_updated"
	EventTypeRechargeOrder      EventType = "recharge_order_changed"
)

// AllEventTypes lists every event type emitted by the services
var AllEventTypes = []EventType{
	EventTypeBalanceChange,
	EventTypeSignupBonusGranted,
	EventTypeJackpotChanged,
	EventTypePromoRedeemed,
	EventTypeStreamEventApplied,
	EventTypeEventRulesUpdated,
	EventTypeRechargeOrder,
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BalanceChangeEvent represents a balance change that occurred
type BalanceChangeEvent struct {
	Username     string `json:"username"`
	OldBalance   int64  `json:"oldBalance"`
	NewBalance   int64  `json:"newBalance"`
	ChangeAmount int64  `json:"changeAmount"`
	Reason       string `json:"reason"`
	Ref          string `json:"ref"`
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// SignupBonusGrantedEvent represents the one-time bonus being credited
type SignupBonusGrantedEvent struct {
	Username string `json:"username"`
	Amount   int64  `json:"amount"`
	Balance  int64  `json:"balance"`
}

func (e SignupBonusGrantedEvent) Type() EventType {
	return EventTypeSignupBonusGranted
}

// JackpotChange describes what mutated a jackpot period
type JackpotChange string

const (
	JackpotChangeContribute JackpotChange = "contribute"
	JackpotChangeAdjust     JackpotChange = "adjust"
	JackpotChangeReset      JackpotChange = "reset"
)

// JackpotChangedEvent represents a mutation of the current jackpot period
type JackpotChangedEvent struct {
	Month  string          `json:"month"`
	Change JackpotChange   `json:"change"`
	Amount decimal.Decimal `json:"amount"`
	Extra  decimal.Decimal `json:"extra"`
	Value  decimal.Decimal `json:"value"`
}

func (e JackpotChangedEvent) Type() EventType {
	return EventTypeJackpotChanged
}

// PromoRedeemedEvent represents a fully successful promo redemption
type PromoRedeemedEvent struct {
	Code     string `json:"code"`
	Username string `json:"username"`
	Amount   int64  `json:"amount"`
	Balance  int64  `json:"balance"`
}

func (e PromoRedeemedEvent) Type() EventType {
	return EventTypePromoRedeemed
}

// StreamEventAppliedEvent represents a provider event whose rewards were applied
type StreamEventAppliedEvent struct {
	Provider string `json:"provider"`
	EventID  string `json:"eventId"`
	Kind     string `json:"kind"`
	Credited int64  `json:"credited"`
}

func (e StreamEventAppliedEvent) Type() EventType {
	return EventTypeStreamEventApplied
}

// EventRulesUpdatedEvent represents an admin change to the provider reward table
type EventRulesUpdatedEvent struct {
	UpdatedBy string `json:"updatedBy"`
	CapPerDay int64  `json:"capPerDay"`
}

func (e EventRulesUpdatedEvent) Type() EventType {
	return EventTypeEventRulesUpdated
}

// RechargeOrderEvent represents a recharge order being placed or decided
type RechargeOrderEvent struct {
	OrderID  string `json:"orderId"`
	Username string `json:"username"`
	Amount   int64  `json:"amount"`
	Status   string `json:"status"`
}

func (e RechargeOrderEvent) Type() EventType {
	return EventTypeRechargeOrder
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// SubscribeAll adds the same handler for every known event type
func (b *Bus) SubscribeAll(handler Handler) {
	for _, eventType := range AllEventTypes {
		b.Subscribe(eventType, handler)
	}
}

// Publish emits the event detached from any request context.
// Services call it after their storage operation has completed.
func (b *Bus) Publish(event Event) {
	b.Emit(context.Background(), event)
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers")

	// Call handlers asynchronously to avoid blocking
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}
