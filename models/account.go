package models

import (
	"strings"
	"time"
)

// Account represents a viewer wallet keyed by canonical username
type Account struct {
	Username             string     `db:"username" json:"username"`
	Balance              int64      `db:"balance" json:"balance"`
	SignupBonusGrantedAt *time.Time `db:"signup_bonus_granted_at" json:"signupBonusGrantedAt,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updatedAt"`
}

// NormalizeUsername returns the canonical account key: trimmed and uppercased
func NormalizeUsername(username string) string {
	return strings.ToUpper(strings.TrimSpace(username))
}
