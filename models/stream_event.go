package models

import (
	"time"
)

// StreamEventType represents the kind of livestream event received from a provider
type StreamEventType string

const (
	StreamEventSubNew   StreamEventType = "SUB_NEW"
	StreamEventSubRenew StreamEventType = "SUB_RENEW"
	StreamEventSubGift  StreamEventType = "SUB_GIFT"
)

// StreamEvent represents an ingested provider event, unique per provider and event id
type StreamEvent struct {
	Provider   string          `db:"provider" json:"provider"`
	EventID    string          `db:"event_id" json:"eventId"`
	Type       StreamEventType `db:"type" json:"type"`
	Username   string          `db:"username" json:"username,omitempty"`
	Quantity   int             `db:"quantity" json:"quantity"`
	Recipients []string        `db:"recipients" json:"recipients,omitempty"`
	OccurredAt time.Time       `db:"occurred_at" json:"occurredAt"`
	ReceivedAt time.Time       `db:"received_at" json:"receivedAt"`
	Applied    bool            `db:"applied" json:"applied"`
	AppliedAt  *time.Time      `db:"applied_at" json:"appliedAt,omitempty"`
}
