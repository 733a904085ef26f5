package models

import (
	"strings"
	"time"
	"unicode"
)

// PromoCode represents a redeemable voucher for a fixed LBX amount
type PromoCode struct {
	Code           string     `db:"code" json:"code"`
	Amount         int64      `db:"amount" json:"amount"`
	MaxRedemptions int        `db:"max_redemptions" json:"maxRedemptions"`
	PerUserLimit   int        `db:"per_user_limit" json:"perUserLimit"`
	RedeemedCount  int        `db:"redeemed_count" json:"redeemedCount"`
	Active         bool       `db:"active" json:"active"`
	ExpiresAt      *time.Time `db:"expires_at" json:"expiresAt,omitempty"`
	CreatedBy      string     `db:"created_by" json:"createdBy,omitempty"`
	Notes          string     `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

// IsExpired reports whether the code has an expiry at or before now
func (p *PromoCode) IsExpired(now time.Time) bool {
	return p.ExpiresAt != nil && !p.ExpiresAt.After(now)
}

// IsDepleted reports whether the global redemption cap is reached
func (p *PromoCode) IsDepleted() bool {
	return p.RedeemedCount >= p.MaxRedemptions
}

// PromoRedemption records the Seq-th redemption of a code by one account
type PromoRedemption struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Username  string    `db:"username" json:"username"`
	Seq       int       `db:"seq" json:"seq"`
	Amount    int64     `db:"amount" json:"amount"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NormalizeCode uppercases a promo code and strips all whitespace
func NormalizeCode(code string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, code)
}
