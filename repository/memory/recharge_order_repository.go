package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"lbx/models"
	"lbx/service"
)

// RechargeOrderRepository implements service.RechargeOrderRepository on a Store
type RechargeOrderRepository struct {
	store *Store
}

var _ service.RechargeOrderRepository = (*RechargeOrderRepository)(nil)

// NewRechargeOrderRepository creates a new recharge order repository
func NewRechargeOrderRepository(store *Store) *RechargeOrderRepository {
	return &RechargeOrderRepository{store: store}
}

func copyOrder(order *models.RechargeOrder) *models.RechargeOrder {
	out := *order
	if order.DecidedAt != nil {
		at := *order.DecidedAt
		out.DecidedAt = &at
	}
	return &out
}

// Create inserts a new order
func (r *RechargeOrderRepository) Create(ctx context.Context, order *models.RechargeOrder) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.state.Orders[order.ID]; exists {
		return fmt.Errorf("recharge order %s already exists", order.ID)
	}
	r.store.state.Orders[order.ID] = copyOrder(order)
	r.store.changed()
	return nil
}

// Get retrieves an order, returning nil if not found
func (r *RechargeOrderRepository) Get(ctx context.Context, id string) (*models.RechargeOrder, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	order, ok := r.store.state.Orders[id]
	if !ok {
		return nil, nil
	}
	return copyOrder(order), nil
}

// List returns orders newest first
func (r *RechargeOrderRepository) List(ctx context.Context, status models.OrderStatus, username string, limit int) ([]*models.RechargeOrder, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	orders := make([]*models.RechargeOrder, 0)
	for _, order := range r.store.state.Orders {
		if status != "" && order.Status != status {
			continue
		}
		if username != "" && order.Username != username {
			continue
		}
		orders = append(orders, copyOrder(order))
	}

	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

// SumAmountsSince sums the amounts of matching orders created at or after since
func (r *RechargeOrderRepository) SumAmountsSince(ctx context.Context, username string, since time.Time, statuses []models.OrderStatus) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var total int64
	for _, order := range r.store.state.Orders {
		if order.Username != username || order.CreatedAt.Before(since) {
			continue
		}
		if slices.Contains(statuses, order.Status) {
			total += order.Amount
		}
	}
	return total, nil
}

// Decide applies decision when the order is still in status from
func (r *RechargeOrderRepository) Decide(ctx context.Context, id string, from models.OrderStatus, decision models.OrderDecision) (*models.RechargeOrder, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	order, ok := r.store.state.Orders[id]
	if !ok || order.Status != from {
		return nil, nil
	}

	order.Status = decision.Status
	order.DecidedBy = decision.By
	order.Note = decision.Note
	order.DecidedAt = nil
	if !decision.At.IsZero() {
		at := decision.At
		order.DecidedAt = &at
	}
	r.store.changed()
	return copyOrder(order), nil
}
