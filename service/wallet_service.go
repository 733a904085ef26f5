package service

import (
	"context"
	"fmt"
	"time"

	"lbx/events"
	"lbx/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultLedgerLimit is the number of entries returned when no limit is given
	DefaultLedgerLimit = 50
	// MaxLedgerLimit caps a single ledger read
	MaxLedgerLimit = 500
	// CapWindow is the rolling lookback used for cap-limited credits
	CapWindow = 24 * time.Hour
)

// WalletConfig holds the wallet settings consumed by the service
type WalletConfig struct {
	// SignupBonus is the one-time credit amount, 0 disables granting
	SignupBonus int64
}

// walletService implements the WalletService interface
type walletService struct {
	accounts       AccountRepository
	eventPublisher EventPublisher
	config         WalletConfig
	now            func() time.Time
}

// NewWalletService creates a new wallet service
func NewWalletService(accounts AccountRepository, eventPublisher EventPublisher, config WalletConfig) WalletService {
	return &walletService{
		accounts:       accounts,
		eventPublisher: eventPublisher,
		config:         config,
		now:            time.Now,
	}
}

// GetBalance returns the account balance, creating the account if needed
func (s *walletService) GetBalance(ctx context.Context, username string) (int64, error) {
	username = models.NormalizeUsername(username)
	if username == "" {
		return 0, ErrInvalidAccount
	}

	account, err := s.accounts.GetOrCreate(ctx, username)
	if err != nil {
		return 0, fmt.Errorf("failed to get account %s: %w", username, err)
	}
	return account.Balance, nil
}

// Adjust applies a signed delta under the given policy and returns the new balance
func (s *walletService) Adjust(ctx context.Context, username string, delta int64, reason string, policy BalancePolicy) (int64, error) {
	username = models.NormalizeUsername(username)
	if username == "" {
		return 0, ErrInvalidAccount
	}
	if delta == 0 {
		return s.GetBalance(ctx, username)
	}

	entry := models.LedgerEntry{
		Timestamp: s.now().UTC(),
		Delta:     delta,
		Reason:    reason,
		Ref:       uuid.NewString(),
	}

	account, err := s.accounts.ApplyDelta(ctx, username, entry, policy == RequireNonNegative)
	if err != nil {
		if _, ok := AsError(err); ok {
			return 0, err
		}
		return 0, fmt.Errorf("failed to apply delta for %s: %w", username, err)
	}

	s.recordBalanceChange(account, entry)
	return account.Balance, nil
}

// Credit adds a positive amount unconditionally
func (s *walletService) Credit(ctx context.Context, username string, amount int64, reason string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	return s.Adjust(ctx, username, amount, reason, AllowNegative)
}

// Debit subtracts a positive amount, failing with ErrInsufficientFunds
func (s *walletService) Debit(ctx context.Context, username string, amount int64, reason string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	return s.Adjust(ctx, username, -amount, reason, RequireNonNegative)
}

// GrantSignupBonusIfNeeded credits the configured bonus at most once per account
func (s *walletService) GrantSignupBonusIfNeeded(ctx context.Context, username string) (*SignupBonusResult, error) {
	username = models.NormalizeUsername(username)
	if username == "" {
		return nil, ErrInvalidAccount
	}

	if s.config.SignupBonus <= 0 {
		balance, err := s.GetBalance(ctx, username)
		if err != nil {
			return nil, err
		}
		return &SignupBonusResult{Granted: false, Balance: balance}, nil
	}

	entry := models.LedgerEntry{
		Timestamp: s.now().UTC(),
		Delta:     s.config.SignupBonus,
		Reason:    models.ReasonSignupBonus,
		Ref:       uuid.NewString(),
	}

	account, granted, err := s.accounts.GrantSignupBonus(ctx, username, entry)
	if err != nil {
		return nil, fmt.Errorf("failed to grant signup bonus to %s: %w", username, err)
	}

	if granted {
		log.WithFields(log.Fields{
			"username": username,
			"amount":   entry.Delta,
			"balance":  account.Balance,
		}).Info("Granted signup bonus")
		s.recordBalanceChange(account, entry)
		s.eventPublisher.Publish(events.SignupBonusGrantedEvent{
			Username: username,
			Amount:   entry.Delta,
			Balance:  account.Balance,
		})
	}

	return &SignupBonusResult{Granted: granted, Balance: account.Balance}, nil
}

// SumCreditedInWindow sums ledger deltas since windowStart matching reasonPrefix
func (s *walletService) SumCreditedInWindow(ctx context.Context, username string, windowStart time.Time, reasonPrefix string) (int64, error) {
	username = models.NormalizeUsername(username)
	if username == "" {
		return 0, ErrInvalidAccount
	}

	sum, err := s.accounts.SumDeltasSince(ctx, username, windowStart, reasonPrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to sum ledger window for %s: %w", username, err)
	}
	return sum, nil
}

// ApplyWithCap credits as much of requested as fits under the rolling window cap.
// The window covers every reason sharing the class of reason, so all "EVENT:" credits
// count against one cap.
func (s *walletService) ApplyWithCap(ctx context.Context, username string, requested, capPerWindow int64, reason string) (*CapResult, error) {
	username = models.NormalizeUsername(username)
	if username == "" {
		return nil, ErrInvalidAccount
	}

	used, err := s.SumCreditedInWindow(ctx, username, s.now().Add(-CapWindow), models.ReasonClass(reason))
	if err != nil {
		return nil, err
	}

	give := min(capPerWindow-used, requested)
	if give < 0 {
		give = 0
	}
	result := &CapResult{
		Applied: give,
		Capped:  give < requested,
		Used:    used,
		Cap:     capPerWindow,
	}

	if give == 0 {
		balance, err := s.GetBalance(ctx, username)
		if err != nil {
			return nil, err
		}
		result.Balance = balance
		return result, nil
	}

	balance, err := s.Adjust(ctx, username, give, reason, AllowNegative)
	if err != nil {
		return nil, err
	}
	result.Balance = balance
	result.Used = used + give
	return result, nil
}

// Ledger returns the most recent ledger entries of an account
func (s *walletService) Ledger(ctx context.Context, username string, limit int) ([]*models.LedgerEntry, error) {
	username = models.NormalizeUsername(username)
	if username == "" {
		return nil, ErrInvalidAccount
	}
	if limit <= 0 {
		limit = DefaultLedgerLimit
	}
	if limit > MaxLedgerLimit {
		limit = MaxLedgerLimit
	}

	entries, err := s.accounts.Ledger(ctx, username, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger for %s: %w", username, err)
	}
	return entries, nil
}

// recordBalanceChange emits the balance change event for an applied ledger entry.
// All balance mutations go through here.
func (s *walletService) recordBalanceChange(account *models.Account, entry models.LedgerEntry) {
	s.eventPublisher.Publish(events.BalanceChangeEvent{
		Username:     account.Username,
		OldBalance:   account.Balance - entry.Delta,
		NewBalance:   account.Balance,
		ChangeAmount: entry.Delta,
		Reason:       entry.Reason,
		Ref:          entry.Ref,
	})
}
