package cmd

import (
	"context"
	"fmt"
	"strconv"

	"lbx/config"
	"lbx/events"
	"lbx/models"
	"lbx/server"
	"lbx/service"
	"lbx/storage"

	log "github.com/sirupsen/logrus"
)

// AdjustBalance applies an admin adjustment to one account on the configured backend
func AdjustBalance(ctx context.Context, username, rawDelta, reason string) (int64, error) {
	cfg := config.Get()
	ConfigureLogging(cfg)

	delta, err := strconv.ParseInt(rawDelta, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", service.ErrInvalidAmount, rawDelta)
	}
	if reason == "" {
		reason = models.ReasonAdminAdjust
	}

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return 0, fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			log.WithError(err).Error("Error closing storage")
		}
	}()

	services := server.NewServices(cfg, store, events.NewBus())
	balance, err := services.Wallet.Adjust(ctx, username, delta, reason, service.AllowNegative)
	if err != nil {
		return 0, err
	}

	log.WithFields(log.Fields{
		"username":    models.NormalizeUsername(username),
		"delta":       delta,
		"reason":      reason,
		"balance":     balance,
		"storageMode": store.Mode,
	}).Info("Adjusted balance")
	return balance, nil
}
