package service

import (
	"errors"
)

// Error is a business-rule failure with a stable machine-readable code
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Business failures returned by the services. Compare with errors.Is.
var (
	ErrInvalidAmount      = &Error{Code: "INVALID_AMOUNT", Message: "amount must be a finite whole number"}
	ErrInvalidAccount     = &Error{Code: "INVALID_ACCOUNT", Message: "account name is required"}
	ErrInsufficientFunds  = &Error{Code: "INSUFFICIENT_FUNDS", Message: "insufficient LBX balance"}
	ErrInvalidLimits      = &Error{Code: "INVALID_LIMITS", Message: "redemption limits must be at least 1"}
	ErrDuplicateCode      = &Error{Code: "DUPLICATE_CODE", Message: "promo code already exists"}
	ErrPromoNotFound      = &Error{Code: "NOT_FOUND", Message: "promo code not found or inactive"}
	ErrPromoExpired       = &Error{Code: "EXPIRED", Message: "promo code has expired"}
	ErrPromoDepleted      = &Error{Code: "DEPLETED", Message: "promo code has no redemptions left"}
	ErrPerUserLimit       = &Error{Code: "PER_USER_LIMIT", Message: "promo code already redeemed the maximum number of times"}
	ErrAlreadyRedeemed    = &Error{Code: "ALREADY_REDEEMED", Message: "promo code already redeemed"}
	ErrCreditFailed       = &Error{Code: "CREDIT_FAILED", Message: "could not credit promo amount"}
	ErrInvalidEvent       = &Error{Code: "INVALID_EVENT", Message: "event id and type are required"}
	ErrInvalidRules       = &Error{Code: "INVALID_RULES", Message: "reward amounts must be >= 0 and the daily cap >= 1"}
	ErrInvalidPackage     = &Error{Code: "INVALID_PACKAGE", Message: "amount is not an available recharge package"}
	ErrAssetRequired      = &Error{Code: "ASSET_REQUIRED", Message: "payment asset is required"}
	ErrDailyCapExceeded   = &Error{Code: "DAILY_CAP_EXCEEDED", Message: "recharge would exceed the daily LBX limit"}
	ErrOrderNotFound      = &Error{Code: "NOT_FOUND", Message: "recharge order not found"}
	ErrOrderNotPending    = &Error{Code: "NOT_PENDING", Message: "recharge order is no longer pending"}
	ErrStorageUnavailable = &Error{Code: "STORAGE_UNAVAILABLE", Message: "storage backend unavailable"}
)

// AsError extracts the business failure from err, if there is one
func AsError(err error) (*Error, bool) {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr, true
	}
	return nil, false
}
