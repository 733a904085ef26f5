package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lbx/database"
	"lbx/models"
	"lbx/service"

	"github.com/jackc/pgx/v5"
)

const accountColumns = `username, balance, signup_bonus_granted_at, created_at, updated_at`

// AccountRepository implements the AccountRepository interface
type AccountRepository struct {
	db *database.DB
}

var _ service.AccountRepository = (*AccountRepository)(nil)

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var account models.Account
	err := row.Scan(
		&account.Username,
		&account.Balance,
		&account.SignupBonusGrantedAt,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func ensureAccount(ctx context.Context, q queryable, username string) error {
	query := `INSERT INTO accounts (username) VALUES ($1) ON CONFLICT (username) DO NOTHING`
	if _, err := q.Exec(ctx, query, username); err != nil {
		return fmt.Errorf("failed to create account %s: %w", username, err)
	}
	return nil
}

func getAccount(ctx context.Context, q queryable, username string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1`
	account, err := scanAccount(q.QueryRow(ctx, query, username))
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", username, err)
	}
	return account, nil
}

// GetOrCreate returns the account, creating it with a zero balance if absent
func (r *AccountRepository) GetOrCreate(ctx context.Context, username string) (*models.Account, error) {
	if err := ensureAccount(ctx, r.db.Pool, username); err != nil {
		return nil, err
	}
	return getAccount(ctx, r.db.Pool, username)
}

// ApplyDelta updates the balance and appends the ledger entry in one transaction.
// The non-negative guard is part of the UPDATE so concurrent debits cannot overdraw.
func (r *AccountRepository) ApplyDelta(ctx context.Context, username string, entry models.LedgerEntry, requireNonNegative bool) (*models.Account, error) {
	var account *models.Account
	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if err := ensureAccount(ctx, tx, username); err != nil {
			return err
		}

		query := `
			UPDATE accounts
			SET balance = balance + $2, updated_at = NOW()
			WHERE username = $1 AND ($3 = FALSE OR balance + $2 >= 0)
			RETURNING ` + accountColumns

		updated, err := scanAccount(tx.QueryRow(ctx, query, username, entry.Delta, requireNonNegative))
		if errors.Is(err, pgx.ErrNoRows) {
			return service.ErrInsufficientFunds
		}
		if err != nil {
			return fmt.Errorf("failed to update balance for %s: %w", username, err)
		}

		entry.Username = username
		entry.BalanceAfter = updated.Balance
		if err := newLedgerRepositoryWithTx(tx).append(ctx, &entry); err != nil {
			return err
		}

		account = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// GrantSignupBonus applies the bonus entry only while signup_bonus_granted_at is unset
func (r *AccountRepository) GrantSignupBonus(ctx context.Context, username string, entry models.LedgerEntry) (*models.Account, bool, error) {
	var account *models.Account
	granted := false
	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if err := ensureAccount(ctx, tx, username); err != nil {
			return err
		}

		query := `
			UPDATE accounts
			SET balance = balance + $2, signup_bonus_granted_at = $3, updated_at = NOW()
			WHERE username = $1 AND signup_bonus_granted_at IS NULL
			RETURNING ` + accountColumns

		updated, err := scanAccount(tx.QueryRow(ctx, query, username, entry.Delta, entry.Timestamp))
		if errors.Is(err, pgx.ErrNoRows) {
			current, err := getAccount(ctx, tx, username)
			if err != nil {
				return err
			}
			account = current
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to grant signup bonus to %s: %w", username, err)
		}

		entry.Username = username
		entry.BalanceAfter = updated.Balance
		if err := newLedgerRepositoryWithTx(tx).append(ctx, &entry); err != nil {
			return err
		}

		account = updated
		granted = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return account, granted, nil
}

// Ledger returns up to limit entries, most recent first
func (r *AccountRepository) Ledger(ctx context.Context, username string, limit int) ([]*models.LedgerEntry, error) {
	return newLedgerRepositoryWithTx(r.db.Pool).byUser(ctx, username, limit)
}

// SumDeltasSince sums deltas at or after since whose reason starts with reasonPrefix
func (r *AccountRepository) SumDeltasSince(ctx context.Context, username string, since time.Time, reasonPrefix string) (int64, error) {
	return newLedgerRepositoryWithTx(r.db.Pool).sumSince(ctx, username, since, reasonPrefix)
}
