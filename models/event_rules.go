package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventRules is the provider reward table applied to ingested stream events
type EventRules struct {
	SubNew           int64 `json:"subNew"`
	SubRenew         int64 `json:"subRenew"`
	SubGiftGifterPer int64 `json:"subGiftGifterPer"`
	SubGiftRecipient int64 `json:"subGiftRecipient"`
	// CapPerDay limits event credits per account over the rolling window
	CapPerDay     int64           `json:"capPerDay"`
	JackpotPerSub decimal.Decimal `json:"jackpotPerSub"`
	UpdatedBy     string          `json:"updatedBy,omitempty"`
	UpdatedAt     *time.Time      `json:"updatedAt,omitempty"`
}
