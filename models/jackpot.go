package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// JackpotPeriod represents the stored accounting record of one calendar month
type JackpotPeriod struct {
	Month         string          `db:"month" json:"month"`
	OverrideStart *time.Time      `db:"override_start" json:"overrideStart,omitempty"`
	Extra         decimal.Decimal `db:"extra" json:"extra"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updatedAt"`
}

// JackpotReading is the prorated value of a period at a point in time
type JackpotReading struct {
	Month       string          `json:"month"`
	Value       decimal.Decimal `json:"value"`
	Base        decimal.Decimal `json:"base"`
	Extra       decimal.Decimal `json:"extra"`
	PeriodStart time.Time       `json:"periodStart"`
	PeriodEnd   time.Time       `json:"periodEnd"`
}
