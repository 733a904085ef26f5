package service

import (
	"context"
	"time"

	"lbx/events"
	"lbx/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockAccountRepository is a mock implementation of AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) GetOrCreate(ctx context.Context, username string) (*models.Account, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) ApplyDelta(ctx context.Context, username string, entry models.LedgerEntry, requireNonNegative bool) (*models.Account, error) {
	args := m.Called(ctx, username, entry, requireNonNegative)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) GrantSignupBonus(ctx context.Context, username string, entry models.LedgerEntry) (*models.Account, bool, error) {
	args := m.Called(ctx, username, entry)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Account), args.Bool(1), args.Error(2)
}

func (m *MockAccountRepository) Ledger(ctx context.Context, username string, limit int) ([]*models.LedgerEntry, error) {
	args := m.Called(ctx, username, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.LedgerEntry), args.Error(1)
}

func (m *MockAccountRepository) SumDeltasSince(ctx context.Context, username string, since time.Time, reasonPrefix string) (int64, error) {
	args := m.Called(ctx, username, since, reasonPrefix)
	return args.Get(0).(int64), args.Error(1)
}

// MockJackpotRepository is a mock implementation of JackpotRepository
type MockJackpotRepository struct {
	mock.Mock
}

func (m *MockJackpotRepository) GetOrCreate(ctx context.Context, month string) (*models.JackpotPeriod, error) {
	args := m.Called(ctx, month)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.JackpotPeriod), args.Error(1)
}

func (m *MockJackpotRepository) AddExtra(ctx context.Context, month string, delta decimal.Decimal) (*models.JackpotPeriod, error) {
	args := m.Called(ctx, month, delta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.JackpotPeriod), args.Error(1)
}

func (m *MockJackpotRepository) Reset(ctx context.Context, month string, at time.Time) (*models.JackpotPeriod, error) {
	args := m.Called(ctx, month, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.JackpotPeriod), args.Error(1)
}

// MockPromoRepository is a mock implementation of PromoRepository
type MockPromoRepository struct {
	mock.Mock
}

func (m *MockPromoRepository) Create(ctx context.Context, code *models.PromoCode) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *MockPromoRepository) Get(ctx context.Context, code string) (*models.PromoCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PromoCode), args.Error(1)
}

func (m *MockPromoRepository) List(ctx context.Context, active *bool, limit int) ([]*models.PromoCode, error) {
	args := m.Called(ctx, active, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PromoCode), args.Error(1)
}

func (m *MockPromoRepository) Disable(ctx context.Context, code string) (*models.PromoCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PromoCode), args.Error(1)
}

func (m *MockPromoRepository) CountRedemptions(ctx context.Context, code, username string) (int, error) {
	args := m.Called(ctx, code, username)
	return args.Int(0), args.Error(1)
}

func (m *MockPromoRepository) InsertRedemption(ctx context.Context, redemption *models.PromoRedemption) error {
	args := m.Called(ctx, redemption)
	return args.Error(0)
}

func (m *MockPromoRepository) DeleteRedemption(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPromoRepository) IncrementRedeemed(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *MockPromoRepository) DecrementRedeemed(ctx context.Context, code string) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *MockPromoRepository) RedemptionsByUser(ctx context.Context, username string, limit int) ([]*models.PromoRedemption, error) {
	args := m.Called(ctx, username, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PromoRedemption), args.Error(1)
}

// MockStreamEventRepository is a mock implementation of StreamEventRepository
type MockStreamEventRepository struct {
	mock.Mock
}

func (m *MockStreamEventRepository) Record(ctx context.Context, event *models.StreamEvent) (*models.StreamEvent, bool, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.StreamEvent), args.Bool(1), args.Error(2)
}

func (m *MockStreamEventRepository) Claim(ctx context.Context, provider, eventID string, at time.Time) (bool, error) {
	args := m.Called(ctx, provider, eventID, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockStreamEventRepository) Release(ctx context.Context, provider, eventID string) error {
	args := m.Called(ctx, provider, eventID)
	return args.Error(0)
}

func (m *MockStreamEventRepository) Recent(ctx context.Context, limit int) ([]*models.StreamEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.StreamEvent), args.Error(1)
}

// MockEventRulesRepository is a mock implementation of EventRulesRepository
type MockEventRulesRepository struct {
	mock.Mock
}

func (m *MockEventRulesRepository) Get(ctx context.Context) (*models.EventRules, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EventRules), args.Error(1)
}

func (m *MockEventRulesRepository) Save(ctx context.Context, rules *models.EventRules) error {
	args := m.Called(ctx, rules)
	return args.Error(0)
}

// MockRechargeOrderRepository is a mock implementation of RechargeOrderRepository
type MockRechargeOrderRepository struct {
	mock.Mock
}

func (m *MockRechargeOrderRepository) Create(ctx context.Context, order *models.RechargeOrder) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockRechargeOrderRepository) Get(ctx context.Context, id string) (*models.RechargeOrder, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RechargeOrder), args.Error(1)
}

func (m *MockRechargeOrderRepository) List(ctx context.Context, status models.OrderStatus, username string, limit int) ([]*models.RechargeOrder, error) {
	args := m.Called(ctx, status, username, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RechargeOrder), args.Error(1)
}

func (m *MockRechargeOrderRepository) SumAmountsSince(ctx context.Context, username string, since time.Time, statuses []models.OrderStatus) (int64, error) {
	args := m.Called(ctx, username, since, statuses)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRechargeOrderRepository) Decide(ctx context.Context, id string, from models.OrderStatus, decision models.OrderDecision) (*models.RechargeOrder, error) {
	args := m.Called(ctx, id, from, decision)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RechargeOrder), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// MockWalletService is a mock implementation of WalletService
type MockWalletService struct {
	mock.Mock
}

func (m *MockWalletService) GetBalance(ctx context.Context, username string) (int64, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockWalletService) Adjust(ctx context.Context, username string, delta int64, reason string, policy BalancePolicy) (int64, error) {
	args := m.Called(ctx, username, delta, reason, policy)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockWalletService) Credit(ctx context.Context, username string, amount int64, reason string) (int64, error) {
	args := m.Called(ctx, username, amount, reason)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockWalletService) Debit(ctx context.Context, username string, amount int64, reason string) (int64, error) {
	args := m.Called(ctx, username, amount, reason)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockWalletService) GrantSignupBonusIfNeeded(ctx context.Context, username string) (*SignupBonusResult, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SignupBonusResult), args.Error(1)
}

func (m *MockWalletService) SumCreditedInWindow(ctx context.Context, username string, windowStart time.Time, reasonPrefix string) (int64, error) {
	args := m.Called(ctx, username, windowStart, reasonPrefix)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockWalletService) ApplyWithCap(ctx context.Context, username string, requested, capPerWindow int64, reason string) (*CapResult, error) {
	args := m.Called(ctx, username, requested, capPerWindow, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CapResult), args.Error(1)
}

func (m *MockWalletService) Ledger(ctx context.Context, username string, limit int) ([]*models.LedgerEntry, error) {
	args := m.Called(ctx, username, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.LedgerEntry), args.Error(1)
}

// MockJackpotService is a mock implementation of JackpotService
type MockJackpotService struct {
	mock.Mock
}

func (m *MockJackpotService) Read(ctx context.Context, now time.Time) (*models.JackpotReading, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.JackpotReading), args.Error(1)
}

func (m *MockJackpotService) Contribute(ctx context.Context, amount decimal.Decimal) (*models.JackpotReading, error) {
	args := m.Called(ctx, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.JackpotReading), args.Error(1)
}

func (m *MockJackpotService) Adjust(ctx context.Context, delta decimal.Decimal, reason string) (*models.JackpotReading, error) {
	args := m.Called(ctx, delta, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.JackpotReading), args.Error(1)
}

func (m *MockJackpotService) Reset(ctx context.Context) (*models.JackpotReading, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.JackpotReading), args.Error(1)
}

func (m *MockJackpotService) Debug(ctx context.Context, now time.Time) (*JackpotDebug, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*JackpotDebug), args.Error(1)
}
