package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (s *Server) hookEvents(c *gin.Context) {
	var req hookEventRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondBadRequest(c, err)
		return
	}

	result, err := s.services.StreamEvents.Ingest(c.Request.Context(), req.input(s.cfg.EventDefaultProvider, s.now()))
	if err != nil {
		respondError(c, err)
		return
	}
	if result.Idempotent {
		c.JSON(http.StatusOK, gin.H{"ok": true, "idempotent": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "result": result})
}

func (s *Server) eventsRecent(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	recent, err := s.services.StreamEvents.Recent(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "events": recent})
}

func (s *Server) eventRules(c *gin.Context) {
	rules, err := s.services.StreamEvents.Rules(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "rules": rules})
}

func (s *Server) eventRulesUpdate(c *gin.Context) {
	var req updateRulesRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondBadRequest(c, err)
		return
	}

	rules, err := s.services.StreamEvents.UpdateRules(c.Request.Context(), req.patch(adminUser(c)))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "rules": rules})
}
