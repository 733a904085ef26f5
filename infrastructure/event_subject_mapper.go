package infrastructure

import (
	"fmt"

	"lbx/events"
)

// EventSubjectMapper handles mapping between domain events and bus subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

var subjectsByType = map[events.EventType]string{
	events.EventTypeBalanceChange:      "lbx.wallet.balance_changed",
	events.EventTypeSignupBonusGranted: "lbx.wallet.signup_bonus_granted",
	events.EventTypeJackpotChanged:     "lbx.jackpot.changed",
	events.EventTypePromoRedeemed:      "lbx.promo.redeemed",
	events.EventTypeStreamEventApplied: "lbx.stream.event_applied",
	events.EventTypeEventRulesUpdated:  "lbx.stream.rules_updated",
	events.EventTypeRechargeOrder:      "lbx.recharge.order_changed",
}

// MapEventToSubject converts a domain event to its subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	if subject, ok := subjectsByType[event.Type()]; ok {
		return subject
	}
	return fmt.Sprintf("lbx.unknown.%s", event.Type())
}

// MapSubjectToEventType converts a subject back to an event type
func (m *EventSubjectMapper) MapSubjectToEventType(subject string) events.EventType {
	for eventType, s := range subjectsByType {
		if s == subject {
			return eventType
		}
	}
	return events.EventType(subject)
}

// GetAllSubjects returns all subjects this service publishes to, in event type order
func (m *EventSubjectMapper) GetAllSubjects() []string {
	subjects := make([]string, 0, len(events.AllEventTypes))
	for _, eventType := range events.AllEventTypes {
		subjects = append(subjects, subjectsByType[eventType])
	}
	return subjects
}
