package repository

import (
	"context"
	"fmt"
	"time"

	"lbx/models"
)

// ledgerRepository reads and appends ledger entries. Appends only happen inside
// the account transactions of AccountRepository.
type ledgerRepository struct {
	q queryable
}

func newLedgerRepositoryWithTx(tx queryable) *ledgerRepository {
	return &ledgerRepository{q: tx}
}

// append inserts an entry, filling in its ID
func (r *ledgerRepository) append(ctx context.Context, entry *models.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries (username, ts, delta, reason, ref, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.q.QueryRow(ctx, query,
		entry.Username,
		entry.Timestamp,
		entry.Delta,
		entry.Reason,
		entry.Ref,
		entry.BalanceAfter,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry for %s: %w", entry.Username, err)
	}
	return nil
}

// byUser returns up to limit entries in reverse append order. Timestamps are stamped
// before the account lock is taken, so only the id follows the order of application.
func (r *ledgerRepository) byUser(ctx context.Context, username string, limit int) ([]*models.LedgerEntry, error) {
	query := `
		SELECT id, username, ts, delta, reason, ref, balance_after
		FROM ledger_entries
		WHERE username = $1
		ORDER BY id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, username, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger for %s: %w", username, err)
	}
	defer rows.Close()

	entries := make([]*models.LedgerEntry, 0)
	for rows.Next() {
		var entry models.LedgerEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.Username,
			&entry.Timestamp,
			&entry.Delta,
			&entry.Reason,
			&entry.Ref,
			&entry.BalanceAfter,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger rows: %w", err)
	}
	return entries, nil
}

// sumSince sums deltas at or after since whose reason starts with reasonPrefix
func (r *ledgerRepository) sumSince(ctx context.Context, username string, since time.Time, reasonPrefix string) (int64, error) {
	query := `
		SELECT COALESCE(SUM(delta), 0)::BIGINT
		FROM ledger_entries
		WHERE username = $1 AND ts >= $2 AND starts_with(reason, $3)
	`

	var sum int64
	if err := r.q.QueryRow(ctx, query, username, since, reasonPrefix).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to sum ledger window for %s: %w", username, err)
	}
	return sum, nil
}
