package server

import (
	"net/http"

	"lbx/models"
	"lbx/service"

	"github.com/gin-gonic/gin"
)

// promoSampleSize is how many generated codes are echoed back
const promoSampleSize = 5

func (s *Server) promoCreate(c *gin.Context) {
	var req createPromoRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondBadRequest(c, err)
		return
	}
	amount, err := service.ParseAmount(req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	promo, err := s.services.Promo.CreateCode(c.Request.Context(), service.CreatePromoInput{
		Code:           req.Code,
		Amount:         amount,
		MaxRedemptions: intOr(req.MaxRedemptions, 1),
		PerUserLimit:   intOr(req.PerUserLimit, 1),
		ExpiresAt:      req.ExpiresAt,
		CreatedBy:      adminUser(c),
		Notes:          req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "code": promo.Code, "promo": promo})
}

func (s *Server) promoGenerate(c *gin.Context) {
	var req generatePromoRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondBadRequest(c, err)
		return
	}
	amount, err := service.ParseAmount(req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	codes, err := s.services.Promo.GenerateCodes(c.Request.Context(), service.GeneratePromoInput{
		Prefix:         req.Prefix,
		Count:          intOr(req.Count, 1),
		Amount:         amount,
		MaxRedemptions: intOr(req.MaxRedemptions, 1),
		PerUserLimit:   intOr(req.PerUserLimit, 1),
		ExpiresAt:      req.ExpiresAt,
		CreatedBy:      adminUser(c),
		Notes:          req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	sample := make([]string, 0, promoSampleSize)
	for _, promo := range codes {
		if len(sample) == promoSampleSize {
			break
		}
		sample = append(sample, promo.Code)
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "generated": len(codes), "sample": sample})
}

func (s *Server) promoList(c *gin.Context) {
	var active *bool
	if value, ok := c.GetQuery("active"); ok {
		only := value == "1" || value == "true"
		active = &only
	}

	items, err := s.services.Promo.ListCodes(c.Request.Context(), active)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "items": items})
}

func (s *Server) promoDisable(c *gin.Context) {
	var req codeRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondBadRequest(c, err)
		return
	}
	if models.NormalizeCode(req.Code) == "" {
		fail(c, http.StatusBadRequest, CodeCodeRequired)
		return
	}

	promo, err := s.services.Promo.DisableCode(c.Request.Context(), req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "modified": 1, "promo": promo})
}

func (s *Server) promoRedeem(c *gin.Context) {
	var req codeRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondBadRequest(c, err)
		return
	}
	if models.NormalizeCode(req.Code) == "" {
		fail(c, http.StatusBadRequest, CodeCodeRequired)
		return
	}

	result, err := s.services.Promo.Redeem(c.Request.Context(), viewer(c), req.Code)
	if err != nil {
		respondPromoError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"added":   result.Applied,
		"code":    result.Code,
		"balance": result.Balance,
	})
}

func (s *Server) promoMyRedemptions(c *gin.Context) {
	items, err := s.services.Promo.RedemptionsFor(c.Request.Context(), viewer(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "items": items})
}
