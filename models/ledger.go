package models

import (
	"strings"
	"time"
)

// Ledger reasons. Promo and event credits carry a suffix after the prefix.
const (
	ReasonSignupBonus = "signup_bonus"
	ReasonAdminAdjust = "admin_adjust"
	ReasonAdminCredit = "admin_credit"
	ReasonSpend       = "spend"
	ReasonPromoPrefix = "promo:"
	ReasonEventPrefix = "EVENT:"
)

// LedgerEntry represents one immutable balance change of an account
type LedgerEntry struct {
	ID           int64     `db:"id" json:"-"`
	Username     string    `db:"username" json:"-"`
	Timestamp    time.Time `db:"ts" json:"ts"`
	Delta        int64     `db:"delta" json:"delta"`
	Reason       string    `db:"reason" json:"reason"`
	Ref          string    `db:"ref" json:"ref,omitempty"`
	BalanceAfter int64     `db:"balance_after" json:"balanceAfter"`
}

// PromoReason builds the ledger reason for a promo code credit
func PromoReason(code string) string {
	return ReasonPromoPrefix + code
}

// EventReason builds the ledger reason for a stream event credit
func EventReason(eventType string) string {
	return ReasonEventPrefix + eventType
}

// ReasonClass returns the prefix used to group reasons for window sums.
// "EVENT:SUB_NEW" belongs to "EVENT:", a reason without a colon is its own class.
func ReasonClass(reason string) string {
	if i := strings.Index(reason, ":"); i >= 0 {
		return reason[:i+1]
	}
	return reason
}
