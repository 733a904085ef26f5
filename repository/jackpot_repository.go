package repository

import (
	"context"
	"fmt"
	"time"

	"lbx/database"
	"lbx/models"
	"lbx/service"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const jackpotColumns = `month, override_start, extra, updated_at`

// JackpotRepository implements the JackpotRepository interface
type JackpotRepository struct {
	q queryable
}

var _ service.JackpotRepository = (*JackpotRepository)(nil)

// NewJackpotRepository creates a new jackpot repository
func NewJackpotRepository(db *database.DB) *JackpotRepository {
	return &JackpotRepository{q: db.Pool}
}

func scanJackpotPeriod(row pgx.Row) (*models.JackpotPeriod, error) {
	var period models.JackpotPeriod
	if err := row.Scan(&period.Month, &period.OverrideStart, &period.Extra, &period.UpdatedAt); err != nil {
		return nil, err
	}
	return &period, nil
}

// GetOrCreate returns the period for month, creating an empty one if absent
func (r *JackpotRepository) GetOrCreate(ctx context.Context, month string) (*models.JackpotPeriod, error) {
	if _, err := r.q.Exec(ctx, `INSERT INTO jackpot_periods (month) VALUES ($1) ON CONFLICT (month) DO NOTHING`, month); err != nil {
		return nil, fmt.Errorf("failed to create jackpot period %s: %w", month, err)
	}

	period, err := scanJackpotPeriod(r.q.QueryRow(ctx, `SELECT `+jackpotColumns+` FROM jackpot_periods WHERE month = $1`, month))
	if err != nil {
		return nil, fmt.Errorf("failed to get jackpot period %s: %w", month, err)
	}
	return period, nil
}

// AddExtra adds delta to the extra; the clamp at zero happens inside the upsert
func (r *JackpotRepository) AddExtra(ctx context.Context, month string, delta decimal.Decimal) (*models.JackpotPeriod, error) {
	query := `
		INSERT INTO jackpot_periods (month, extra)
		VALUES ($1, GREATEST(0, $2::numeric))
		ON CONFLICT (month) DO UPDATE
		SET extra = GREATEST(0, jackpot_periods.extra + $2::numeric), updated_at = NOW()
		RETURNING ` + jackpotColumns

	period, err := scanJackpotPeriod(r.q.QueryRow(ctx, query, month, delta))
	if err != nil {
		return nil, fmt.Errorf("failed to add to jackpot period %s: %w", month, err)
	}
	return period, nil
}

// Reset sets the override start to at and clears the extra
func (r *JackpotRepository) Reset(ctx context.Context, month string, at time.Time) (*models.JackpotPeriod, error) {
	query := `
		INSERT INTO jackpot_periods (month, override_start, extra)
		VALUES ($1, $2, 0)
		ON CONFLICT (month) DO UPDATE
		SET override_start = EXCLUDED.override_start, extra = 0, updated_at = NOW()
		RETURNING ` + jackpotColumns

	period, err := scanJackpotPeriod(r.q.QueryRow(ctx, query, month, at))
	if err != nil {
		return nil, fmt.Errorf("failed to reset jackpot period %s: %w", month, err)
	}
	return period, nil
}
