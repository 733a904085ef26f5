package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"lbx/events"
	"lbx/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	pendingAndApproved = []models.OrderStatus{models.OrderPending, models.OrderApproved}
	approvedOnly       = []models.OrderStatus{models.OrderApproved}
)

func newTestRechargeService() (*rechargeService, *MockRechargeOrderRepository, *MockWalletService, *MockEventPublisher) {
	orders := new(MockRechargeOrderRepository)
	wallet := new(MockWalletService)
	publisher := new(MockEventPublisher)
	svc := NewRechargeService(orders, wallet, publisher, RechargeConfig{}).(*rechargeService)
	svc.now = func() time.Time { return testNow }
	return svc, orders, wallet, publisher
}

func pendingOrder(id string, amount int64) *models.RechargeOrder {
	return &models.RechargeOrder{
		ID:        id,
		Username:  "ALICE",
		Amount:    amount,
		Asset:     "USDT",
		Status:    models.OrderPending,
		CreatedAt: testNow.Add(-time.Hour),
	}
}

func TestRechargeService_Place(t *testing.T) {
	ctx := context.Background()

	t.Run("records pending order", func(t *testing.T) {
		svc, orders, _, publisher := newTestRechargeService()
		orders.On("SumAmountsSince", ctx, "ALICE", testNow.Add(-CapWindow), pendingAndApproved).Return(int64(10), nil)
		orders.On("Create", ctx, mock.MatchedBy(func(o *models.RechargeOrder) bool {
			return o.Username == "ALICE" && o.Amount == 20 && o.Status == models.OrderPending && o.Asset == "USDT" && o.CreatedAt.Equal(testNow)
		})).Return(nil)
		publisher.On("Publish", mock.MatchedBy(func(e events.RechargeOrderEvent) bool {
			return e.Status == "pending" && e.Amount == 20
		})).Return()

		order, err := svc.Place(ctx, PlaceOrderInput{Username: " alice ", Amount: 20, USD: decimal.NewFromInt(20), Asset: " USDT "})

		require.NoError(t, err)
		assert.Regexp(t, `^ORD-[0-9A-F]{8}$`, order.ID)
		orders.AssertExpectations(t)
		publisher.AssertExpectations(t)
	})

	t.Run("cap counts pending orders", func(t *testing.T) {
		svc, orders, _, _ := newTestRechargeService()
		orders.On("SumAmountsSince", ctx, "ALICE", testNow.Add(-CapWindow), pendingAndApproved).Return(int64(25), nil)

		_, err := svc.Place(ctx, PlaceOrderInput{Username: "alice", Amount: 10, Asset: "USDT"})

		assert.ErrorIs(t, err, ErrDailyCapExceeded)
		orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	invalid := []struct {
		name string
		in   PlaceOrderInput
		want error
	}{
		{"missing account", PlaceOrderInput{Amount: 10, Asset: "USDT"}, ErrInvalidAccount},
		{"unknown package", PlaceOrderInput{Username: "alice", Amount: 7, Asset: "USDT"}, ErrInvalidPackage},
		{"missing asset", PlaceOrderInput{Username: "alice", Amount: 10, Asset: " "}, ErrAssetRequired},
		{"negative usd", PlaceOrderInput{Username: "alice", Amount: 10, Asset: "USDT", USD: decimal.NewFromInt(-1)}, ErrInvalidAmount},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			svc, orders, _, _ := newTestRechargeService()

			_, err := svc.Place(ctx, tt.in)

			assert.ErrorIs(t, err, tt.want)
			orders.AssertNotCalled(t, "SumAmountsSince", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestRechargeService_Approve(t *testing.T) {
	ctx := context.Background()

	t.Run("credits wallet with recharge reason", func(t *testing.T) {
		svc, orders, wallet, publisher := newTestRechargeService()
		order := pendingOrder("ORD-1", 10)
		approved := *order
		approved.Status = models.OrderApproved
		approved.DecidedBy = "ADMIN"

		orders.On("Get", ctx, "ORD-1").Return(order, nil)
		orders.On("SumAmountsSince", ctx, "ALICE", testNow.Add(-CapWindow), approvedOnly).Return(int64(20), nil)
		orders.On("Decide", ctx, "ORD-1", models.OrderPending, models.OrderDecision{
			Status: models.OrderApproved, By: "ADMIN", Note: "paid", At: testNow,
		}).Return(&approved, nil)
		wallet.On("Credit", ctx, "ALICE", int64(10), "RECHARGE:CRYPTO #ORD-1").Return(int64(60), nil)
		publisher.On("Publish", events.RechargeOrderEvent{OrderID: "ORD-1", Username: "ALICE", Amount: 10, Status: "approved"}).Return()

		result, err := svc.Approve(ctx, DecideOrderInput{ID: "ORD-1", Note: " paid "})

		require.NoError(t, err)
		assert.Equal(t, int64(60), result.Balance)
		assert.Equal(t, models.OrderApproved, result.Order.Status)
		orders.AssertExpectations(t)
		wallet.AssertExpectations(t)
		publisher.AssertExpectations(t)
	})

	t.Run("cap rechecked against approved orders", func(t *testing.T) {
		svc, orders, wallet, _ := newTestRechargeService()
		orders.On("Get", ctx, "ORD-1").Return(pendingOrder("ORD-1", 15), nil)
		orders.On("SumAmountsSince", ctx, "ALICE", testNow.Add(-CapWindow), approvedOnly).Return(int64(20), nil)

		_, err := svc.Approve(ctx, DecideOrderInput{ID: "ORD-1"})

		assert.ErrorIs(t, err, ErrDailyCapExceeded)
		orders.AssertNotCalled(t, "Decide", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		wallet.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("force skips the cap", func(t *testing.T) {
		svc, orders, wallet, publisher := newTestRechargeService()
		order := pendingOrder("ORD-1", 15)
		approved := *order
		approved.Status = models.OrderApproved

		orders.On("Get", ctx, "ORD-1").Return(order, nil)
		orders.On("Decide", ctx, "ORD-1", models.OrderPending, mock.Anything).Return(&approved, nil)
		wallet.On("Credit", ctx, "ALICE", int64(15), "RECHARGE:CRYPTO #ORD-1").Return(int64(15), nil)
		publisher.On("Publish", mock.Anything).Return()

		_, err := svc.Approve(ctx, DecideOrderInput{ID: "ORD-1", By: "boss", Force: true})

		require.NoError(t, err)
		orders.AssertNotCalled(t, "SumAmountsSince", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("credit failure returns order to pending", func(t *testing.T) {
		svc, orders, wallet, publisher := newTestRechargeService()
		order := pendingOrder("ORD-1", 10)
		approved := *order
		approved.Status = models.OrderApproved

		orders.On("Get", ctx, "ORD-1").Return(order, nil)
		orders.On("SumAmountsSince", ctx, "ALICE", mock.Anything, approvedOnly).Return(int64(0), nil)
		orders.On("Decide", ctx, "ORD-1", models.OrderPending, mock.Anything).Return(&approved, nil)
		orders.On("Decide", mock.Anything, "ORD-1", models.OrderApproved, models.OrderDecision{Status: models.OrderPending}).Return(order, nil)
		wallet.On("Credit", ctx, "ALICE", int64(10), "RECHARGE:CRYPTO #ORD-1").Return(int64(0), errors.New("db down"))

		_, err := svc.Approve(ctx, DecideOrderInput{ID: "ORD-1"})

		assert.ErrorIs(t, err, ErrCreditFailed)
		orders.AssertExpectations(t)
		publisher.AssertNotCalled(t, "Publish", mock.Anything)
	})

	t.Run("lost race is not pending", func(t *testing.T) {
		svc, orders, wallet, _ := newTestRechargeService()
		orders.On("Get", ctx, "ORD-1").Return(pendingOrder("ORD-1", 10), nil)
		orders.On("SumAmountsSince", ctx, "ALICE", mock.Anything, approvedOnly).Return(int64(0), nil)
		orders.On("Decide", ctx, "ORD-1", models.OrderPending, mock.Anything).Return(nil, nil)

		_, err := svc.Approve(ctx, DecideOrderInput{ID: "ORD-1"})

		assert.ErrorIs(t, err, ErrOrderNotPending)
		wallet.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown and decided orders", func(t *testing.T) {
		svc, orders, _, _ := newTestRechargeService()
		rejected := pendingOrder("ORD-2", 10)
		rejected.Status = models.OrderRejected
		orders.On("Get", ctx, "ORD-X").Return(nil, nil)
		orders.On("Get", ctx, "ORD-2").Return(rejected, nil)

		_, err := svc.Approve(ctx, DecideOrderInput{ID: "ORD-X"})
		assert.ErrorIs(t, err, ErrOrderNotFound)

		_, err = svc.Approve(ctx, DecideOrderInput{ID: "ORD-2"})
		assert.ErrorIs(t, err, ErrOrderNotPending)
	})
}

func TestRechargeService_Reject(t *testing.T) {
	ctx := context.Background()
	svc, orders, wallet, publisher := newTestRechargeService()
	order := pendingOrder("ORD-1", 10)
	rejected := *order
	rejected.Status = models.OrderRejected
	rejected.DecidedBy = "ADMIN"

	orders.On("Get", ctx, "ORD-1").Return(order, nil)
	orders.On("Decide", ctx, "ORD-1", models.OrderPending, models.OrderDecision{
		Status: models.OrderRejected, By: "ADMIN", Note: "no payment", At: testNow,
	}).Return(&rejected, nil)
	publisher.On("Publish", mock.MatchedBy(func(e events.RechargeOrderEvent) bool {
		return e.Status == "rejected"
	})).Return()

	got, err := svc.Reject(ctx, DecideOrderInput{ID: "ORD-1", Note: "no payment"})

	require.NoError(t, err)
	assert.Equal(t, models.OrderRejected, got.Status)
	wallet.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	publisher.AssertExpectations(t)
}

func TestRechargeService_List(t *testing.T) {
	ctx := context.Background()
	svc, orders, _, _ := newTestRechargeService()
	orders.On("List", ctx, models.OrderPending, "ALICE", ListOrdersLimit).Return([]*models.RechargeOrder{pendingOrder("ORD-1", 10)}, nil)

	got, err := svc.List(ctx, models.OrderPending, "alice")

	require.NoError(t, err)
	assert.Len(t, got, 1)
	orders.AssertExpectations(t)
}

func TestNewOrderID(t *testing.T) {
	a, b := NewOrderID(), NewOrderID()
	assert.Regexp(t, `^ORD-[0-9A-F]{8}$`, a)
	assert.NotEqual(t, a, b)
}
