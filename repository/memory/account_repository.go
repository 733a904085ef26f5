package memory

import (
	"context"
	"strings"
	"time"

	"lbx/models"
	"lbx/service"
)

// AccountRepository implements service.AccountRepository on a Store
type AccountRepository struct {
	store *Store
}

var _ service.AccountRepository = (*AccountRepository)(nil)

// NewAccountRepository creates a new account repository
func NewAccountRepository(store *Store) *AccountRepository {
	return &AccountRepository{store: store}
}

// account returns the record for username, creating it when absent. Callers hold mu.
func (r *AccountRepository) account(username string) *accountRecord {
	s := r.store
	rec, ok := s.state.Accounts[username]
	if !ok {
		now := s.now().UTC()
		rec = &accountRecord{Account: models.Account{
			Username:  username,
			CreatedAt: now,
			UpdatedAt: now,
		}}
		s.state.Accounts[username] = rec
		s.changed()
	}
	return rec
}

func (r *AccountRepository) appendEntry(rec *accountRecord, entry models.LedgerEntry) {
	rec.Balance += entry.Delta
	rec.UpdatedAt = r.store.now().UTC()

	entry.ID = int64(len(rec.Ledger) + 1)
	entry.Username = rec.Username
	entry.BalanceAfter = rec.Balance
	rec.Ledger = append(rec.Ledger, entry)
}

// GetOrCreate returns the account, creating it with a zero balance if absent
func (r *AccountRepository) GetOrCreate(ctx context.Context, username string) (*models.Account, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	account := r.account(username).Account
	return &account, nil
}

// ApplyDelta adds the entry delta and appends the entry
func (r *AccountRepository) ApplyDelta(ctx context.Context, username string, entry models.LedgerEntry, requireNonNegative bool) (*models.Account, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	rec := r.account(username)
	if requireNonNegative && rec.Balance+entry.Delta < 0 {
		return nil, service.ErrInsufficientFunds
	}

	r.appendEntry(rec, entry)
	r.store.changed()

	account := rec.Account
	return &account, nil
}

// GrantSignupBonus applies the bonus entry once per account
func (r *AccountRepository) GrantSignupBonus(ctx context.Context, username string, entry models.LedgerEntry) (*models.Account, bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	rec := r.account(username)
	if rec.SignupBonusGrantedAt != nil {
		account := rec.Account
		return &account, false, nil
	}

	grantedAt := entry.Timestamp
	rec.SignupBonusGrantedAt = &grantedAt
	r.appendEntry(rec, entry)
	r.store.changed()

	account := rec.Account
	return &account, true, nil
}

// Ledger returns up to limit entries, most recent first
func (r *AccountRepository) Ledger(ctx context.Context, username string, limit int) ([]*models.LedgerEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	rec, ok := r.store.state.Accounts[username]
	if !ok {
		return []*models.LedgerEntry{}, nil
	}

	entries := make([]*models.LedgerEntry, 0, min(limit, len(rec.Ledger)))
	for i := len(rec.Ledger) - 1; i >= 0 && len(entries) < limit; i-- {
		entry := rec.Ledger[i]
		entries = append(entries, &entry)
	}
	return entries, nil
}

// SumDeltasSince sums deltas at or after since whose reason starts with reasonPrefix
func (r *AccountRepository) SumDeltasSince(ctx context.Context, username string, since time.Time, reasonPrefix string) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	rec, ok := r.store.state.Accounts[username]
	if !ok {
		return 0, nil
	}

	var sum int64
	for _, entry := range rec.Ledger {
		if !entry.Timestamp.Before(since) && strings.HasPrefix(entry.Reason, reasonPrefix) {
			sum += entry.Delta
		}
	}
	return sum, nil
}
