package repository

import (
	"context"
	"errors"
	"fmt"

	"lbx/database"
	"lbx/models"
	"lbx/service"

	"github.com/jackc/pgx/v5"
)

const promoColumns = `code, amount, max_redemptions, per_user_limit, redeemed_count, active, expires_at, created_by, notes, created_at, updated_at`

const redemptionColumns = `id, code, username, seq, amount, created_at`

// PromoRepository implements the PromoRepository interface
type PromoRepository struct {
	q queryable
}

var _ service.PromoRepository = (*PromoRepository)(nil)

// NewPromoRepository creates a new promo repository
func NewPromoRepository(db *database.DB) *PromoRepository {
	return &PromoRepository{q: db.Pool}
}

func scanPromoCode(row pgx.Row) (*models.PromoCode, error) {
	var promo models.PromoCode
	err := row.Scan(
		&promo.Code,
		&promo.Amount,
		&promo.MaxRedemptions,
		&promo.PerUserLimit,
		&promo.RedeemedCount,
		&promo.Active,
		&promo.ExpiresAt,
		&promo.CreatedBy,
		&promo.Notes,
		&promo.CreatedAt,
		&promo.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &promo, nil
}

func scanRedemption(row pgx.Row) (*models.PromoRedemption, error) {
	var redemption models.PromoRedemption
	err := row.Scan(
		&redemption.ID,
		&redemption.Code,
		&redemption.Username,
		&redemption.Seq,
		&redemption.Amount,
		&redemption.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &redemption, nil
}

// Create inserts a new code
func (r *PromoRepository) Create(ctx context.Context, code *models.PromoCode) error {
	query := `
		INSERT INTO promo_codes (code, amount, max_redemptions, per_user_limit, active, expires_at, created_by, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		code.Code,
		code.Amount,
		code.MaxRedemptions,
		code.PerUserLimit,
		code.Active,
		code.ExpiresAt,
		code.CreatedBy,
		code.Notes,
		code.CreatedAt,
	).Scan(&code.CreatedAt, &code.UpdatedAt)
	if isUniqueViolation(err) {
		return service.ErrDuplicateCode
	}
	if err != nil {
		return fmt.Errorf("failed to create promo code %s: %w", code.Code, err)
	}
	return nil
}

// Get retrieves a code, returning nil if not found
func (r *PromoRepository) Get(ctx context.Context, code string) (*models.PromoCode, error) {
	promo, err := scanPromoCode(r.q.QueryRow(ctx, `SELECT `+promoColumns+` FROM promo_codes WHERE code = $1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get promo code %s: %w", code, err)
	}
	return promo, nil
}

// List returns codes newest first, optionally filtered by active state
func (r *PromoRepository) List(ctx context.Context, active *bool, limit int) ([]*models.PromoCode, error) {
	query := `
		SELECT ` + promoColumns + `
		FROM promo_codes
		WHERE ($1::boolean IS NULL OR active = $1::boolean)
		ORDER BY created_at DESC, code
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, active, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list promo codes: %w", err)
	}
	defer rows.Close()

	codes := make([]*models.PromoCode, 0)
	for rows.Next() {
		promo, err := scanPromoCode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan promo code: %w", err)
		}
		codes = append(codes, promo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate promo codes: %w", err)
	}
	return codes, nil
}

// Disable marks a code inactive, returning nil if not found
func (r *PromoRepository) Disable(ctx context.Context, code string) (*models.PromoCode, error) {
	query := `UPDATE promo_codes SET active = FALSE, updated_at = NOW() WHERE code = $1 RETURNING ` + promoColumns
	promo, err := scanPromoCode(r.q.QueryRow(ctx, query, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to disable promo code %s: %w", code, err)
	}
	return promo, nil
}

// CountRedemptions counts redemptions of code by username
func (r *PromoRepository) CountRedemptions(ctx context.Context, code, username string) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM promo_redemptions WHERE code = $1 AND username = $2`, code, username).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count redemptions of %s by %s: %w", code, username, err)
	}
	return count, nil
}

// InsertRedemption records a redemption; the (code, username, seq) unique key rejects duplicates
func (r *PromoRepository) InsertRedemption(ctx context.Context, redemption *models.PromoRedemption) error {
	query := `INSERT INTO promo_redemptions (` + redemptionColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.q.Exec(ctx, query,
		redemption.ID,
		redemption.Code,
		redemption.Username,
		redemption.Seq,
		redemption.Amount,
		redemption.CreatedAt,
	)
	if isUniqueViolation(err) {
		return service.ErrAlreadyRedeemed
	}
	if err != nil {
		return fmt.Errorf("failed to insert redemption of %s: %w", redemption.Code, err)
	}
	return nil
}

// DeleteRedemption removes a redemption by ID
func (r *PromoRepository) DeleteRedemption(ctx context.Context, id string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM promo_redemptions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete redemption %s: %w", id, err)
	}
	return nil
}

// IncrementRedeemed increments the count only while it is below the maximum
func (r *PromoRepository) IncrementRedeemed(ctx context.Context, code string) (bool, error) {
	query := `
		UPDATE promo_codes
		SET redeemed_count = redeemed_count + 1, updated_at = NOW()
		WHERE code = $1 AND redeemed_count < max_redemptions
	`

	tag, err := r.q.Exec(ctx, query, code)
	if err != nil {
		return false, fmt.Errorf("failed to increment redeemed count of %s: %w", code, err)
	}
	return tag.RowsAffected() == 1, nil
}

// DecrementRedeemed undoes one increment, never going below zero
func (r *PromoRepository) DecrementRedeemed(ctx context.Context, code string) error {
	query := `
		UPDATE promo_codes
		SET redeemed_count = GREATEST(0, redeemed_count - 1), updated_at = NOW()
		WHERE code = $1
	`

	if _, err := r.q.Exec(ctx, query, code); err != nil {
		return fmt.Errorf("failed to decrement redeemed count of %s: %w", code, err)
	}
	return nil
}

// RedemptionsByUser returns the most recent redemptions of an account
func (r *PromoRepository) RedemptionsByUser(ctx context.Context, username string, limit int) ([]*models.PromoRedemption, error) {
	query := `
		SELECT ` + redemptionColumns + `
		FROM promo_redemptions
		WHERE username = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, username, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query redemptions of %s: %w", username, err)
	}
	defer rows.Close()

	redemptions := make([]*models.PromoRedemption, 0)
	for rows.Next() {
		redemption, err := scanRedemption(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan redemption: %w", err)
		}
		redemptions = append(redemptions, redemption)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate redemptions: %w", err)
	}
	return redemptions, nil
}
