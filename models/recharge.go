package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of a recharge order
type OrderStatus string

const (
	OrderPending  OrderStatus = "pending"
	OrderApproved OrderStatus = "approved"
	OrderRejected OrderStatus = "rejected"
)

// ReasonRechargePrefix starts the ledger reason of an approved recharge
const ReasonRechargePrefix = "RECHARGE:"

// RechargeOrder is a viewer's request to buy an LBX package, credited once an admin approves it
type RechargeOrder struct {
	ID        string          `db:"id" json:"id"`
	Username  string          `db:"username" json:"username"`
	Amount    int64           `db:"amount" json:"amount"`
	USD       decimal.Decimal `db:"usd" json:"usd"`
	Asset     string          `db:"asset" json:"asset"`
	Address   string          `db:"address" json:"address,omitempty"`
	Ref       string          `db:"ref" json:"ref,omitempty"`
	TxID      string          `db:"txid" json:"txid,omitempty"`
	Status    OrderStatus     `db:"status" json:"status"`
	Note      string          `db:"note" json:"note,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
	DecidedAt *time.Time      `db:"decided_at" json:"decidedAt,omitempty"`
	DecidedBy string          `db:"decided_by" json:"decidedBy,omitempty"`
}

// OrderDecision is the status transition applied to a pending order
type OrderDecision struct {
	Status OrderStatus
	By     string
	Note   string
	At     time.Time
}

// RechargeReason builds the ledger reason for an approved recharge order
func RechargeReason(orderID string) string {
	return ReasonRechargePrefix + "CRYPTO #" + orderID
}

// ParseOrderStatus returns the status named by s, with ok false for anything else
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch status := OrderStatus(s); status {
	case OrderPending, OrderApproved, OrderRejected:
		return status, true
	default:
		return "", false
	}
}
