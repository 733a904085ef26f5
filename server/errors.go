package server

import (
	"net/http"

	"lbx/infrastructure/observability"
	"lbx/service"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Boundary error codes that have no service counterpart
const (
	CodeBadRequest    = "BAD_REQUEST"
	CodeLoginRequired = "LOGIN_REQUIRED"
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeTooFast       = "TOO_FAST"
	CodeCodeRequired  = "CODE_REQUIRED"
	CodeServer        = "SERVER"
)

var boundaryMessages = map[string]string{
	CodeBadRequest:    "request body or parameters are malformed",
	CodeLoginRequired: "viewer login is required",
	CodeUnauthorized:  "admin credentials are missing or invalid",
	CodeTooFast:       "too many requests, slow down",
	CodeCodeRequired:  "promo code is required",
	CodeServer:        "internal server error",
}

var statusByCode = map[string]int{
	service.ErrInvalidAmount.Code:      http.StatusBadRequest,
	service.ErrInvalidAccount.Code:     http.StatusBadRequest,
	service.ErrInvalidLimits.Code:      http.StatusBadRequest,
	service.ErrInvalidEvent.Code:       http.StatusBadRequest,
	service.ErrInvalidRules.Code:       http.StatusBadRequest,
	service.ErrInvalidPackage.Code:     http.StatusBadRequest,
	service.ErrAssetRequired.Code:      http.StatusBadRequest,
	service.ErrDailyCapExceeded.Code:   http.StatusConflict,
	service.ErrOrderNotPending.Code:    http.StatusConflict,
	service.ErrInsufficientFunds.Code:  http.StatusConflict,
	service.ErrDuplicateCode.Code:      http.StatusConflict,
	service.ErrPromoDepleted.Code:      http.StatusConflict,
	service.ErrPerUserLimit.Code:       http.StatusConflict,
	service.ErrAlreadyRedeemed.Code:    http.StatusConflict,
	service.ErrPromoNotFound.Code:      http.StatusNotFound,
	service.ErrPromoExpired.Code:       http.StatusGone,
	service.ErrCreditFailed.Code:       http.StatusInternalServerError,
	service.ErrStorageUnavailable.Code: http.StatusServiceUnavailable,
}

// StatusFor returns the HTTP status of a business error code
func StatusFor(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusBadRequest
}

// fail writes a boundary error code with its fixed message
func fail(c *gin.Context, status int, code string) {
	failWithMessage(c, status, code, boundaryMessages[code])
}

func failWithMessage(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"ok": false, "error": code, "message": message})
}

// respondError writes a business error with its stable status and hides everything else
func respondError(c *gin.Context, err error) {
	if svcErr, ok := service.AsError(err); ok {
		failWithMessage(c, StatusFor(svcErr.Code), svcErr.Code, svcErr.Message)
		return
	}

	log.WithFields(log.Fields{
		"method": c.Request.Method,
		"path":   c.FullPath(),
		"error":  err,
	}).Error("Request failed")
	fail(c, http.StatusInternalServerError, CodeServer)
}

// respondPromoError is respondError that also counts the rejection
func respondPromoError(c *gin.Context, err error) {
	if svcErr, ok := service.AsError(err); ok {
		observability.GetMetrics().RecordPromoRejection(svcErr.Code)
	} else {
		observability.GetMetrics().RecordPromoRejection(CodeServer)
	}
	respondError(c, err)
}

func respondBadRequest(c *gin.Context, err error) {
	log.WithFields(log.Fields{
		"path":  c.FullPath(),
		"error": err,
	}).Debug("Rejected malformed request")
	fail(c, http.StatusBadRequest, CodeBadRequest)
}
