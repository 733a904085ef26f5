package server

import (
	"net/http"
	"strings"

	"lbx/models"
	"lbx/service"

	"github.com/gin-gonic/gin"
)

func (s *Server) rechargePlace(c *gin.Context) {
	var req placeOrderRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondBadRequest(c, err)
		return
	}
	in, err := req.input(viewer(c))
	if err != nil {
		respondError(c, err)
		return
	}

	order, err := s.services.Recharge.Place(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "order": order})
}

func (s *Server) rechargeMine(c *gin.Context) {
	orders, err := s.services.Recharge.List(c.Request.Context(), "", viewer(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "orders": orders})
}

// rechargeList filters by ?status=, defaulting to pending. all lists every order.
func (s *Server) rechargeList(c *gin.Context) {
	status := models.OrderPending
	switch value := strings.ToLower(strings.TrimSpace(c.Query("status"))); value {
	case "all":
		status = ""
	default:
		if parsed, ok := models.ParseOrderStatus(value); ok {
			status = parsed
		}
	}

	orders, err := s.services.Recharge.List(c.Request.Context(), status, c.Query("username"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "orders": orders})
}

func (s *Server) rechargeApprove(c *gin.Context) {
	in, ok := s.decideInput(c)
	if !ok {
		return
	}

	result, err := s.services.Recharge.Approve(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "order": result.Order, "balance": result.Balance})
}

func (s *Server) rechargeReject(c *gin.Context) {
	in, ok := s.decideInput(c)
	if !ok {
		return
	}

	order, err := s.services.Recharge.Reject(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "order": order})
}

func (s *Server) decideInput(c *gin.Context) (service.DecideOrderInput, bool) {
	var req decideOrderRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondBadRequest(c, err)
		return service.DecideOrderInput{}, false
	}
	return service.DecideOrderInput{
		ID:    c.Param("id"),
		By:    adminUser(c),
		Note:  req.Note,
		Force: req.Force,
	}, true
}
