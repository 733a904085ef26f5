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

const rechargeOrderColumns = `id, username, amount, usd, asset, address, ref, txid, status, note, created_at, decided_at, decided_by`

// RechargeOrderRepository implements the RechargeOrderRepository interface
type RechargeOrderRepository struct {
	q queryable
}

var _ service.RechargeOrderRepository = (*RechargeOrderRepository)(nil)

// NewRechargeOrderRepository creates a new recharge order repository
func NewRechargeOrderRepository(db *database.DB) *RechargeOrderRepository {
	return &RechargeOrderRepository{q: db.Pool}
}

func scanRechargeOrder(row pgx.Row) (*models.RechargeOrder, error) {
	var order models.RechargeOrder
	err := row.Scan(
		&order.ID,
		&order.Username,
		&order.Amount,
		&order.USD,
		&order.Asset,
		&order.Address,
		&order.Ref,
		&order.TxID,
		&order.Status,
		&order.Note,
		&order.CreatedAt,
		&order.DecidedAt,
		&order.DecidedBy,
	)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Create inserts a new order
func (r *RechargeOrderRepository) Create(ctx context.Context, order *models.RechargeOrder) error {
	query := `
		INSERT INTO recharge_orders (` + rechargeOrderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.q.Exec(ctx, query,
		order.ID,
		order.Username,
		order.Amount,
		order.USD,
		order.Asset,
		order.Address,
		order.Ref,
		order.TxID,
		string(order.Status),
		order.Note,
		order.CreatedAt,
		order.DecidedAt,
		order.DecidedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to create recharge order %s: %w", order.ID, err)
	}
	return nil
}

// Get retrieves an order, returning nil if not found
func (r *RechargeOrderRepository) Get(ctx context.Context, id string) (*models.RechargeOrder, error) {
	order, err := scanRechargeOrder(r.q.QueryRow(ctx, `SELECT `+rechargeOrderColumns+` FROM recharge_orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recharge order %s: %w", id, err)
	}
	return order, nil
}

// List returns orders newest first; empty status or username match all
func (r *RechargeOrderRepository) List(ctx context.Context, status models.OrderStatus, username string, limit int) ([]*models.RechargeOrder, error) {
	query := `
		SELECT ` + rechargeOrderColumns + `
		FROM recharge_orders
		WHERE ($1::text = '' OR status = $1::text) AND ($2::text = '' OR username = $2::text)
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`

	rows, err := r.q.Query(ctx, query, string(status), username, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recharge orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*models.RechargeOrder, 0)
	for rows.Next() {
		order, err := scanRechargeOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recharge order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recharge orders: %w", err)
	}
	return orders, nil
}

// SumAmountsSince sums the amounts of matching orders created at or after since
func (r *RechargeOrderRepository) SumAmountsSince(ctx context.Context, username string, since time.Time, statuses []models.OrderStatus) (int64, error) {
	names := make([]string, len(statuses))
	for i, status := range statuses {
		names[i] = string(status)
	}

	query := `
		SELECT COALESCE(SUM(amount), 0)::BIGINT
		FROM recharge_orders
		WHERE username = $1 AND created_at >= $2 AND status = ANY($3)
	`
	var total int64
	if err := r.q.QueryRow(ctx, query, username, since, names).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum recharge orders for %s: %w", username, err)
	}
	return total, nil
}

// Decide applies decision when the order is still in status from. The status
// condition rides on the update, so concurrent deciders see at most one winner.
func (r *RechargeOrderRepository) Decide(ctx context.Context, id string, from models.OrderStatus, decision models.OrderDecision) (*models.RechargeOrder, error) {
	var decidedAt *time.Time
	if !decision.At.IsZero() {
		decidedAt = &decision.At
	}

	query := `
		UPDATE recharge_orders
		SET status = $3, decided_by = $4, note = $5, decided_at = $6
		WHERE id = $1 AND status = $2
		RETURNING ` + rechargeOrderColumns

	order, err := scanRechargeOrder(r.q.QueryRow(ctx, query,
		id,
		string(from),
		string(decision.Status),
		decision.By,
		decision.Note,
		decidedAt,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decide recharge order %s: %w", id, err)
	}
	return order, nil
}
