// Package server exposes the wallet, jackpot, promo, event and recharge services over HTTP with gin.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"lbx/config"
	"lbx/service"
	"lbx/storage"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Services are the core operations the HTTP layer calls
type Services struct {
	Wallet       service.WalletService
	Jackpot      service.JackpotService
	Promo        service.PromoService
	StreamEvents service.StreamEventService
	Recharge     service.RechargeService
}

// Server is the HTTP front of the service
type Server struct {
	cfg           *config.Config
	storage       *storage.Storage
	services      Services
	redeemLimiter *IPRateLimiter
	router        *gin.Engine
	httpServer    *http.Server
	now           func() time.Time
}

// New builds the server and its routes
func New(cfg *config.Config, store *storage.Storage, services Services) *Server {
	if cfg.IsProduction() || cfg.Environment == "test" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:           cfg,
		storage:       store,
		services:      services,
		redeemLimiter: NewIPRateLimiter(cfg.RedeemRatePerMinute, cfg.RedeemBurst),
		now:           time.Now,
	}
	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger())

	admin := RequireAdmin(s.cfg)
	viewer := RequireViewer()

	router.GET("/healthz", s.health)

	api := router.Group("/api")
	{
		wallet := api.Group("/wallet")
		{
			wallet.GET("/me", viewer, s.walletMe)
			wallet.POST("/me/spend", viewer, s.walletSpend)
			wallet.POST("/me/signup-bonus", viewer, s.walletSignupBonus)
			wallet.GET("/ledger/:username", s.walletLedger)
			wallet.GET("/:username", s.walletBalance)
			wallet.POST("/credit", admin, s.walletCredit)
			wallet.POST("/adjust", admin, s.walletAdjust)
			wallet.POST("/credit-capped", admin, s.walletCreditCapped)
		}

		jackpot := api.Group("/jackpot")
		{
			jackpot.GET("", s.jackpotRead)
			jackpot.POST("/contribute", admin, s.jackpotContribute)
			jackpot.POST("/reset", admin, s.jackpotReset)
			jackpot.POST("/adjust", admin, s.jackpotAdjust)
			jackpot.GET("/debug", admin, s.jackpotDebug)
		}

		adminGroup := api.Group("/admin")
		{
			adminGroup.POST("/login", s.adminLogin)
			adminGroup.POST("/logout", s.adminLogout)
			adminGroup.GET("/me", admin, s.adminMe)

			promo := adminGroup.Group("/promo", admin)
			{
				promo.POST("/create", s.promoCreate)
				promo.POST("/generate", s.promoGenerate)
				promo.GET("/list", s.promoList)
				promo.POST("/disable", s.promoDisable)
			}
		}

		api.POST("/promo/redeem", viewer, s.redeemLimiter.Middleware(), s.promoRedeem)
		api.GET("/promo/my-redemptions", viewer, s.promoMyRedemptions)

		api.POST("/hooks/events", RequireHookSecret(s.cfg), s.hookEvents)
		api.GET("/events/recent", admin, s.eventsRecent)
		api.GET("/events/rules", admin, s.eventRules)
		api.PUT("/events/rules", admin, s.eventRulesUpdate)

		recharge := api.Group("/recharge/orders")
		{
			recharge.POST("", viewer, s.rechargePlace)
			recharge.GET("/mine", viewer, s.rechargeMine)
			recharge.GET("", admin, s.rechargeList)
			recharge.POST("/:id/approve", admin, s.rechargeApprove)
			recharge.POST("/:id/reject", admin, s.rechargeReject)
		}
	}

	return router
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	log.WithField("addr", s.httpServer.Addr).Info("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve HTTP: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx ends
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	log.Info("HTTP server stopped")
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":          true,
		"env":         s.cfg.Environment,
		"storageMode": s.storage.Mode,
		"durable":     s.storage.Durable(),
		"fallback":    s.storage.Fallback,
		"adminBypass": s.cfg.DisableAdminAuth,
	})
}
