package testutil

import (
	"time"

	"lbx/models"

	"github.com/google/uuid"
)

// CreateTestLedgerEntry creates a ledger entry stamped now
func CreateTestLedgerEntry(delta int64, reason string) models.LedgerEntry {
	return CreateTestLedgerEntryAt(delta, reason, time.Now().UTC())
}

// CreateTestLedgerEntryAt creates a ledger entry with a specific timestamp
func CreateTestLedgerEntryAt(delta int64, reason string, at time.Time) models.LedgerEntry {
	return models.LedgerEntry{
		Timestamp: at,
		Delta:     delta,
		Reason:    reason,
		Ref:       uuid.NewString(),
	}
}

// CreateTestPromoCode creates an active code with default limits
func CreateTestPromoCode(code string, amount int64) *models.PromoCode {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.PromoCode{
		Code:           code,
		Amount:         amount,
		MaxRedemptions: 10,
		PerUserLimit:   1,
		Active:         true,
		CreatedBy:      "test",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// CreateTestPromoCodeWithLimits creates an active code with specific limits
func CreateTestPromoCodeWithLimits(code string, amount int64, maxRedemptions, perUserLimit int) *models.PromoCode {
	promo := CreateTestPromoCode(code, amount)
	promo.MaxRedemptions = maxRedemptions
	promo.PerUserLimit = perUserLimit
	return promo
}

// CreateTestRedemption creates the seq-th redemption of code by username
func CreateTestRedemption(code, username string, seq int, amount int64) *models.PromoRedemption {
	return &models.PromoRedemption{
		ID:        uuid.NewString(),
		Code:      code,
		Username:  username,
		Seq:       seq,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}
}

// CreateTestStreamEvent creates a provider event received now
func CreateTestStreamEvent(provider, eventID string, eventType models.StreamEventType, username string) *models.StreamEvent {
	now := time.Now().UTC()
	return &models.StreamEvent{
		Provider:   provider,
		EventID:    eventID,
		Type:       eventType,
		Username:   username,
		Quantity:   1,
		OccurredAt: now,
		ReceivedAt: now,
	}
}
