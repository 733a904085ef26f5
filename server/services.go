package server

import (
	"lbx/config"
	"lbx/models"
	"lbx/service"
	"lbx/storage"
)

// NewServices wires the core services onto the opened storage
func NewServices(cfg *config.Config, store *storage.Storage, eventPublisher service.EventPublisher) Services {
	wallet := service.NewWalletService(store.Accounts, eventPublisher, service.WalletConfig{
		SignupBonus: cfg.SignupBonus,
	})
	jackpot := service.NewJackpotService(store.Jackpots, eventPublisher, service.JackpotConfig{
		BaseFloor: cfg.JackpotBaseFloor,
		Location:  cfg.JackpotLocation,
	})
	promo := service.NewPromoService(store.Promos, wallet, eventPublisher, service.PromoConfig{
		AllowedAmounts: cfg.PromoAmounts,
	})
	streamEvents := service.NewStreamEventService(store.StreamEvents, store.EventRules, wallet, jackpot, eventPublisher, EventRules(cfg))
	recharge := service.NewRechargeService(store.RechargeOrders, wallet, eventPublisher, service.RechargeConfig{
		Packages:  cfg.RechargePackages,
		CapPerDay: cfg.RechargeCapPerDay,
	})

	return Services{
		Wallet:       wallet,
		Jackpot:      jackpot,
		Promo:        promo,
		StreamEvents: streamEvents,
		Recharge:     recharge,
	}
}

// EventRules builds the default provider reward table from configuration.
// Rules saved by an admin take precedence.
func EventRules(cfg *config.Config) models.EventRules {
	return models.EventRules{
		SubNew:           cfg.EventLBXSubNew,
		SubRenew:         cfg.EventLBXSubRenew,
		SubGiftGifterPer: cfg.EventLBXGiftPerSub,
		SubGiftRecipient: cfg.EventLBXGiftRecipient,
		CapPerDay:        cfg.EventCapPerDay,
		JackpotPerSub:    cfg.EventJackpotPerSub,
	}
}
