package server

import (
	"net/http"

	"lbx/models"

	"github.com/gin-gonic/gin"
)

// JackpotCurrency is the currency of every jackpot amount
const JackpotCurrency = "AUD"

type jackpotResponse struct {
	OK       bool   `json:"ok"`
	Currency string `json:"currency"`
	*models.JackpotReading
}

func respondJackpot(c *gin.Context, reading *models.JackpotReading) {
	c.JSON(http.StatusOK, jackpotResponse{OK: true, Currency: JackpotCurrency, JackpotReading: reading})
}

func (s *Server) jackpotRead(c *gin.Context) {
	reading, err := s.services.Jackpot.Read(c.Request.Context(), s.now())
	if err != nil {
		respondError(c, err)
		return
	}
	respondJackpot(c, reading)
}

func (s *Server) jackpotContribute(c *gin.Context) {
	var req jackpotAmountRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondBadRequest(c, err)
		return
	}
	reading, err := s.services.Jackpot.Contribute(c.Request.Context(), req.value())
	if err != nil {
		respondError(c, err)
		return
	}
	respondJackpot(c, reading)
}

func (s *Server) jackpotAdjust(c *gin.Context) {
	var req jackpotAmountRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondBadRequest(c, err)
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = "ADJUST"
	}
	reading, err := s.services.Jackpot.Adjust(c.Request.Context(), req.value(), reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJackpot(c, reading)
}

func (s *Server) jackpotReset(c *gin.Context) {
	reading, err := s.services.Jackpot.Reset(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondJackpot(c, reading)
}

func (s *Server) jackpotDebug(c *gin.Context) {
	debug, err := s.services.Jackpot.Debug(c.Request.Context(), s.now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "currency": JackpotCurrency, "debug": debug})
}
