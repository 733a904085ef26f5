package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"lbx/events"
	"lbx/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultPromoPrefix is used for generated codes when no prefix is given
	DefaultPromoPrefix = "L3Z"
	// MaxGenerateCount caps a single batch generation
	MaxGenerateCount = 5000
	// MyRedemptionsLimit is the number of redemptions listed per account
	MyRedemptionsLimit = 200
	// ListCodesLimit caps an admin code listing
	ListCodesLimit = 1000

	generateAttempts = 5
)

// DefaultPromoAmounts is the allowed denomination set when none is configured
var DefaultPromoAmounts = []int64{5, 10, 15, 20, 25, 30}

// PromoConfig holds the promo settings consumed by the service
type PromoConfig struct {
	AllowedAmounts []int64
}

// promoService implements the PromoService interface
type promoService struct {
	promos         PromoRepository
	wallet         WalletService
	eventPublisher EventPublisher
	config         PromoConfig
	now            func() time.Time
}

// NewPromoService creates a new promo service
func NewPromoService(promos PromoRepository, wallet WalletService, eventPublisher EventPublisher, config PromoConfig) PromoService {
	if len(config.AllowedAmounts) == 0 {
		config.AllowedAmounts = DefaultPromoAmounts
	}
	return &promoService{
		promos:         promos,
		wallet:         wallet,
		eventPublisher: eventPublisher,
		config:         config,
		now:            time.Now,
	}
}

// CreateCode creates a single promo code, generating one when Code is empty
func (s *promoService) CreateCode(ctx context.Context, in CreatePromoInput) (*models.PromoCode, error) {
	if err := s.validate(in.Amount, in.MaxRedemptions, in.PerUserLimit); err != nil {
		return nil, err
	}

	code := models.NormalizeCode(in.Code)
	if code != "" {
		promo := s.newCode(code, in.Amount, in.MaxRedemptions, in.PerUserLimit, in.ExpiresAt, in.CreatedBy, in.Notes)
		if err := s.promos.Create(ctx, promo); err != nil {
			return nil, s.wrapCreateError(code, err)
		}
		s.logCreated(promo)
		return promo, nil
	}

	promo, err := s.createGenerated(ctx, DefaultPromoPrefix, in.Amount, in.MaxRedemptions, in.PerUserLimit, in.ExpiresAt, in.CreatedBy, in.Notes)
	if err != nil {
		return nil, err
	}
	s.logCreated(promo)
	return promo, nil
}

// GenerateCodes creates a batch of codes sharing amount and limits
func (s *promoService) GenerateCodes(ctx context.Context, in GeneratePromoInput) ([]*models.PromoCode, error) {
	if err := s.validate(in.Amount, in.MaxRedemptions, in.PerUserLimit); err != nil {
		return nil, err
	}
	if in.Count < 1 || in.Count > MaxGenerateCount {
		return nil, ErrInvalidLimits
	}

	prefix := models.NormalizeCode(in.Prefix)
	if prefix == "" {
		prefix = DefaultPromoPrefix
	}

	codes := make([]*models.PromoCode, 0, in.Count)
	for i := 0; i < in.Count; i++ {
		promo, err := s.createGenerated(ctx, prefix, in.Amount, in.MaxRedemptions, in.PerUserLimit, in.ExpiresAt, in.CreatedBy, in.Notes)
		if err != nil {
			return nil, fmt.Errorf("failed after generating %d codes: %w", len(codes), err)
		}
		codes = append(codes, promo)
	}

	log.WithFields(log.Fields{
		"prefix": prefix,
		"count":  len(codes),
		"amount": in.Amount,
	}).Info("Generated promo codes")
	return codes, nil
}

// ListCodes lists codes, optionally only active or inactive ones
func (s *promoService) ListCodes(ctx context.Context, active *bool) ([]*models.PromoCode, error) {
	codes, err := s.promos.List(ctx, active, ListCodesLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list promo codes: %w", err)
	}
	return codes, nil
}

// DisableCode permanently deactivates a code
func (s *promoService) DisableCode(ctx context.Context, code string) (*models.PromoCode, error) {
	code = models.NormalizeCode(code)
	if code == "" {
		return nil, ErrPromoNotFound
	}

	promo, err := s.promos.Disable(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to disable promo code %s: %w", code, err)
	}
	if promo == nil {
		return nil, ErrPromoNotFound
	}

	log.WithField("code", code).Info("Disabled promo code")
	return promo, nil
}

// Redeem validates, reserves and credits a code for an account.
// The redemption row is the reservation, the conditional increment guards the global
// cap and the wallet credit comes last. Each later failure undoes the earlier steps.
func (s *promoService) Redeem(ctx context.Context, username, code string) (*RedeemResult, error) {
	username = models.NormalizeUsername(username)
	if username == "" {
		return nil, ErrInvalidAccount
	}
	code = models.NormalizeCode(code)
	if code == "" {
		return nil, ErrPromoNotFound
	}

	promo, err := s.promos.Get(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get promo code %s: %w", code, err)
	}
	if promo == nil || !promo.Active {
		return nil, ErrPromoNotFound
	}
	if promo.IsExpired(s.now()) {
		return nil, ErrPromoExpired
	}
	if promo.IsDepleted() {
		return nil, ErrPromoDepleted
	}

	prior, err := s.promos.CountRedemptions(ctx, code, username)
	if err != nil {
		return nil, fmt.Errorf("failed to count redemptions of %s: %w", code, err)
	}
	if prior >= promo.PerUserLimit {
		return nil, ErrPerUserLimit
	}

	redemption := &models.PromoRedemption{
		ID:        uuid.NewString(),
		Code:      code,
		Username:  username,
		Seq:       prior + 1,
		Amount:    promo.Amount,
		CreatedAt: s.now().UTC(),
	}
	if err := s.promos.InsertRedemption(ctx, redemption); err != nil {
		if errors.Is(err, ErrAlreadyRedeemed) {
			return nil, ErrAlreadyRedeemed
		}
		return nil, fmt.Errorf("failed to record redemption of %s: %w", code, err)
	}

	incremented, err := s.promos.IncrementRedeemed(ctx, code)
	if err != nil || !incremented {
		s.rollbackRedemption(ctx, redemption, false)
		if err != nil {
			return nil, fmt.Errorf("failed to reserve redemption of %s: %w", code, err)
		}
		return nil, ErrPromoDepleted
	}

	balance, err := s.wallet.Credit(ctx, username, promo.Amount, models.PromoReason(code))
	if err != nil {
		s.rollbackRedemption(ctx, redemption, true)
		log.WithFields(log.Fields{
			"code":     code,
			"username": username,
			"error":    err,
		}).Error("Failed to credit promo redemption")
		return nil, ErrCreditFailed
	}

	log.WithFields(log.Fields{
		"code":     code,
		"username": username,
		"amount":   promo.Amount,
	}).Info("Redeemed promo code")
	s.eventPublisher.Publish(events.PromoRedeemedEvent{
		Code:     code,
		Username: username,
		Amount:   promo.Amount,
		Balance:  balance,
	})

	return &RedeemResult{Code: code, Applied: promo.Amount, Balance: balance}, nil
}

// RedemptionsFor lists the most recent redemptions of an account
func (s *promoService) RedemptionsFor(ctx context.Context, username string) ([]*models.PromoRedemption, error) {
	username = models.NormalizeUsername(username)
	if username == "" {
		return nil, ErrInvalidAccount
	}

	redemptions, err := s.promos.RedemptionsByUser(ctx, username, MyRedemptionsLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list redemptions for %s: %w", username, err)
	}
	return redemptions, nil
}

func (s *promoService) validate(amount int64, maxRedemptions, perUserLimit int) error {
	if !slices.Contains(s.config.AllowedAmounts, amount) {
		return ErrInvalidAmount
	}
	if maxRedemptions < 1 || perUserLimit < 1 {
		return ErrInvalidLimits
	}
	return nil
}

func (s *promoService) newCode(code string, amount int64, maxRedemptions, perUserLimit int, expiresAt *time.Time, createdBy, notes string) *models.PromoCode {
	now := s.now().UTC()
	return &models.PromoCode{
		Code:           code,
		Amount:         amount,
		MaxRedemptions: maxRedemptions,
		PerUserLimit:   perUserLimit,
		Active:         true,
		ExpiresAt:      expiresAt,
		CreatedBy:      createdBy,
		Notes:          strings.TrimSpace(notes),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// createGenerated retries on the unlikely collision of a random suffix
func (s *promoService) createGenerated(ctx context.Context, prefix string, amount int64, maxRedemptions, perUserLimit int, expiresAt *time.Time, createdBy, notes string) (*models.PromoCode, error) {
	var lastErr error
	for attempt := 0; attempt < generateAttempts; attempt++ {
		promo := s.newCode(GenerateCode(prefix, amount), amount, maxRedemptions, perUserLimit, expiresAt, createdBy, notes)
		err := s.promos.Create(ctx, promo)
		if err == nil {
			return promo, nil
		}
		if !errors.Is(err, ErrDuplicateCode) {
			return nil, s.wrapCreateError(promo.Code, err)
		}
		lastErr = err
	}
	return nil, lastErr
}

func (s *promoService) wrapCreateError(code string, err error) error {
	if errors.Is(err, ErrDuplicateCode) {
		return ErrDuplicateCode
	}
	return fmt.Errorf("failed to create promo code %s: %w", code, err)
}

func (s *promoService) logCreated(promo *models.PromoCode) {
	log.WithFields(log.Fields{
		"code":           promo.Code,
		"amount":         promo.Amount,
		"maxRedemptions": promo.MaxRedemptions,
		"perUserLimit":   promo.PerUserLimit,
		"createdBy":      promo.CreatedBy,
	}).Info("Created promo code")
}

// rollbackRedemption undoes a reservation. Failures are only logged.
func (s *promoService) rollbackRedemption(ctx context.Context, redemption *models.PromoRedemption, decrement bool) {
	if decrement {
		if err := s.promos.DecrementRedeemed(ctx, redemption.Code); err != nil {
			log.WithFields(log.Fields{
				"code":  redemption.Code,
				"error": err,
			}).Error("Failed to roll back redeemed count")
		}
	}
	if err := s.promos.DeleteRedemption(ctx, redemption.ID); err != nil {
		log.WithFields(log.Fields{
			"code":         redemption.Code,
			"redemptionId": redemption.ID,
			"error":        err,
		}).Error("Failed to roll back redemption")
	}
}

// GenerateCode builds a code of the form PREFIX-AMOUNT-XXXXXX with a random hex suffix
func GenerateCode(prefix string, amount int64) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("%s-%d-%s", prefix, amount, suffix)
}
