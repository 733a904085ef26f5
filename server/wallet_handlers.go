package server

import (
	"net/http"
	"strconv"

	"lbx/models"
	"lbx/service"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func (s *Server) walletMe(c *gin.Context) {
	username := viewer(c)
	balance, err := s.services.Wallet.GetBalance(c.Request.Context(), username)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":       true,
		"username": username,
		"wallet":   gin.H{"balance": balance},
	})
}

func (s *Server) walletSpend(c *gin.Context) {
	var req spendRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondBadRequest(c, err)
		return
	}
	amount, err := req.value()
	if err != nil {
		respondError(c, err)
		return
	}

	reason := models.ReasonSpend
	if req.Reason != "" {
		reason = models.ReasonSpend + ":" + req.Reason
	}

	balance, err := s.services.Wallet.Debit(c.Request.Context(), viewer(c), amount, reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "balance": balance})
}

func (s *Server) walletSignupBonus(c *gin.Context) {
	result, err := s.services.Wallet.GrantSignupBonusIfNeeded(c.Request.Context(), viewer(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "granted": result.Granted, "balance": result.Balance})
}

func (s *Server) walletBalance(c *gin.Context) {
	username := models.NormalizeUsername(c.Param("username"))
	balance, err := s.services.Wallet.GetBalance(c.Request.Context(), username)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "username": username, "balance": balance})
}

func (s *Server) walletLedger(c *gin.Context) {
	username := models.NormalizeUsername(c.Param("username"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	entries, err := s.services.Wallet.Ledger(c.Request.Context(), username, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "username": username, "entries": entries})
}

func (s *Server) walletCredit(c *gin.Context) {
	var req accountAmountRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondBadRequest(c, err)
		return
	}
	amount, err := req.value(false)
	if err != nil {
		respondError(c, err)
		return
	}

	balance, err := s.services.Wallet.Credit(c.Request.Context(), req.account(), amount, models.ReasonAdminCredit)
	if err != nil {
		respondError(c, err)
		return
	}
	s.logAdminWrite(c, "credit", req.account(), amount)
	c.JSON(http.StatusOK, gin.H{"ok": true, "balance": balance})
}

func (s *Server) walletAdjust(c *gin.Context) {
	var req accountAmountRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondBadRequest(c, err)
		return
	}
	delta, err := req.value(true)
	if err != nil {
		respondError(c, err)
		return
	}

	balance, err := s.services.Wallet.Adjust(c.Request.Context(), req.account(), delta, models.ReasonAdminAdjust, service.AllowNegative)
	if err != nil {
		respondError(c, err)
		return
	}
	s.logAdminWrite(c, "adjust", req.account(), delta)
	c.JSON(http.StatusOK, gin.H{"ok": true, "balance": balance})
}

func (s *Server) walletCreditCapped(c *gin.Context) {
	var req accountAmountRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondBadRequest(c, err)
		return
	}
	requested, err := req.value(false)
	if err != nil {
		respondError(c, err)
		return
	}
	if requested <= 0 {
		respondError(c, service.ErrInvalidAmount)
		return
	}

	capPerWindow := s.cfg.EventCapPerDay
	if req.Cap != nil {
		if capPerWindow, err = service.ParseAmount(*req.Cap); err != nil || capPerWindow < 0 {
			respondError(c, service.ErrInvalidAmount)
			return
		}
	}
	reason := req.Reason
	if reason == "" {
		reason = models.EventReason("ADMIN")
	}

	result, err := s.services.Wallet.ApplyWithCap(c.Request.Context(), req.account(), requested, capPerWindow, reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "result": result})
}

func (s *Server) logAdminWrite(c *gin.Context, action, username string, amount int64) {
	log.WithFields(log.Fields{
		"admin":    adminUser(c),
		"action":   action,
		"username": models.NormalizeUsername(username),
		"amount":   amount,
	}).Info("Admin wallet write")
}
