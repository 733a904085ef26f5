package service

import (
	"context"
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
	// ListOrdersLimit caps an order listing
	ListOrdersLimit = 1000
	// DefaultRechargeCapPerDay limits package purchases per account over the rolling window
	DefaultRechargeCapPerDay = 30
	// DecidedByAdmin is recorded when an order is decided without a named admin
	DecidedByAdmin = "ADMIN"
)

// DefaultRechargePackages are the LBX amounts a viewer may order when none are configured
var DefaultRechargePackages = []int64{5, 10, 15, 20, 25, 30}

// RechargeConfig holds the recharge settings consumed by the service
type RechargeConfig struct {
	Packages  []int64
	CapPerDay int64
}

// rechargeService implements the RechargeService interface
type rechargeService struct {
	orders         RechargeOrderRepository
	wallet         WalletService
	eventPublisher EventPublisher
	config         RechargeConfig
	now            func() time.Time
}

// NewRechargeService creates a new recharge service
func NewRechargeService(orders RechargeOrderRepository, wallet WalletService, eventPublisher EventPublisher, config RechargeConfig) RechargeService {
	if len(config.Packages) == 0 {
		config.Packages = DefaultRechargePackages
	}
	if config.CapPerDay <= 0 {
		config.CapPerDay = DefaultRechargeCapPerDay
	}
	return &rechargeService{
		orders:         orders,
		wallet:         wallet,
		eventPublisher: eventPublisher,
		config:         config,
		now:            time.Now,
	}
}

// Place records a pending order. Pending and approved orders both count against the cap.
func (s *rechargeService) Place(ctx context.Context, in PlaceOrderInput) (*models.RechargeOrder, error) {
	username := models.NormalizeUsername(in.Username)
	if username == "" {
		return nil, ErrInvalidAccount
	}
	if !slices.Contains(s.config.Packages, in.Amount) {
		return nil, ErrInvalidPackage
	}
	asset := strings.TrimSpace(in.Asset)
	if asset == "" {
		return nil, ErrAssetRequired
	}
	if in.USD.IsNegative() {
		return nil, ErrInvalidAmount
	}

	now := s.now().UTC()
	if err := s.checkCap(ctx, username, in.Amount, now, models.OrderPending, models.OrderApproved); err != nil {
		return nil, err
	}

	order := &models.RechargeOrder{
		ID:        NewOrderID(),
		Username:  username,
		Amount:    in.Amount,
		USD:       in.USD,
		Asset:     asset,
		Address:   strings.TrimSpace(in.Address),
		Ref:       strings.TrimSpace(in.Ref),
		TxID:      strings.TrimSpace(in.TxID),
		Status:    models.OrderPending,
		CreatedAt: now,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create recharge order for %s: %w", username, err)
	}

	log.WithFields(log.Fields{
		"orderId":  order.ID,
		"username": username,
		"amount":   order.Amount,
		"asset":    order.Asset,
	}).Info("Placed recharge order")
	s.publish(order)
	return order, nil
}

// List returns orders newest first
func (s *rechargeService) List(ctx context.Context, status models.OrderStatus, username string) ([]*models.RechargeOrder, error) {
	orders, err := s.orders.List(ctx, status, models.NormalizeUsername(username), ListOrdersLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recharge orders: %w", err)
	}
	return orders, nil
}

// Approve claims the pending order, then credits the wallet. A failed credit returns
// the order to pending.
func (s *rechargeService) Approve(ctx context.Context, in DecideOrderInput) (*ApproveResult, error) {
	order, err := s.pendingOrder(ctx, in.ID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if !in.Force {
		if err := s.checkCap(ctx, order.Username, order.Amount, now, models.OrderApproved); err != nil {
			return nil, err
		}
	}

	approved, err := s.orders.Decide(ctx, order.ID, models.OrderPending, models.OrderDecision{
		Status: models.OrderApproved,
		By:     decidedBy(in.By),
		Note:   strings.TrimSpace(in.Note),
		At:     now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to approve recharge order %s: %w", order.ID, err)
	}
	if approved == nil {
		return nil, ErrOrderNotPending
	}

	balance, err := s.wallet.Credit(ctx, approved.Username, approved.Amount, models.RechargeReason(approved.ID))
	if err != nil {
		log.WithFields(log.Fields{
			"orderId":  approved.ID,
			"username": approved.Username,
			"error":    err,
		}).Error("Failed to credit recharge order")
		if _, revertErr := s.orders.Decide(context.WithoutCancel(ctx), approved.ID, models.OrderApproved, models.OrderDecision{
			Status: models.OrderPending,
			Note:   order.Note,
		}); revertErr != nil {
			log.WithFields(log.Fields{
				"orderId": approved.ID,
				"error":   revertErr,
			}).Error("Failed to return recharge order to pending")
		}
		return nil, ErrCreditFailed
	}

	log.WithFields(log.Fields{
		"orderId":  approved.ID,
		"username": approved.Username,
		"amount":   approved.Amount,
		"by":       approved.DecidedBy,
		"forced":   in.Force,
	}).Info("Approved recharge order")
	s.publish(approved)
	return &ApproveResult{Order: approved, Balance: balance}, nil
}

// Reject marks a pending order rejected
func (s *rechargeService) Reject(ctx context.Context, in DecideOrderInput) (*models.RechargeOrder, error) {
	order, err := s.pendingOrder(ctx, in.ID)
	if err != nil {
		return nil, err
	}

	rejected, err := s.orders.Decide(ctx, order.ID, models.OrderPending, models.OrderDecision{
		Status: models.OrderRejected,
		By:     decidedBy(in.By),
		Note:   strings.TrimSpace(in.Note),
		At:     s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reject recharge order %s: %w", order.ID, err)
	}
	if rejected == nil {
		return nil, ErrOrderNotPending
	}

	log.WithFields(log.Fields{
		"orderId":  rejected.ID,
		"username": rejected.Username,
		"by":       rejected.DecidedBy,
	}).Info("Rejected recharge order")
	s.publish(rejected)
	return rejected, nil
}

func (s *rechargeService) pendingOrder(ctx context.Context, id string) (*models.RechargeOrder, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrOrderNotFound
	}
	order, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get recharge order %s: %w", id, err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.Status != models.OrderPending {
		return nil, ErrOrderNotPending
	}
	return order, nil
}

// checkCap fails when amount on top of the account's orders in the window would pass the cap
func (s *rechargeService) checkCap(ctx context.Context, username string, amount int64, now time.Time, statuses ...models.OrderStatus) error {
	used, err := s.orders.SumAmountsSince(ctx, username, now.Add(-CapWindow), statuses)
	if err != nil {
		return fmt.Errorf("failed to sum recharge orders for %s: %w", username, err)
	}
	if used+amount > s.config.CapPerDay {
		return fmt.Errorf("%w: used %d, requested %d, cap %d", ErrDailyCapExceeded, used, amount, s.config.CapPerDay)
	}
	return nil
}

func (s *rechargeService) publish(order *models.RechargeOrder) {
	s.eventPublisher.Publish(events.RechargeOrderEvent{
		OrderID:  order.ID,
		Username: order.Username,
		Amount:   order.Amount,
		Status:   string(order.Status),
	})
}

func decidedBy(by string) string {
	if by = strings.TrimSpace(by); by != "" {
		return by
	}
	return DecidedByAdmin
}

// NewOrderID returns a short random order identifier such as ORD-1A2B3C4D
func NewOrderID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ORD-" + strings.ToUpper(id[:8])
}
