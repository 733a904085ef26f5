package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"lbx/events"
	"lbx/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestWalletService(bonus int64) (*walletService, *MockAccountRepository, *MockEventPublisher) {
	accounts := new(MockAccountRepository)
	publisher := new(MockEventPublisher)
	svc := NewWalletService(accounts, publisher, WalletConfig{SignupBonus: bonus}).(*walletService)
	svc.now = func() time.Time { return time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC) }
	return svc, accounts, publisher
}

func TestWalletService_GetBalance(t *testing.T) {
	ctx := context.Background()

	t.Run("normalizes username", func(t *testing.T) {
		svc, accounts, _ := newTestWalletService(0)
		accounts.On("GetOrCreate", ctx, "ALICE").Return(&models.Account{Username: "ALICE", Balance: 42}, nil)

		balance, err := svc.GetBalance(ctx, "  alice ")

		require.NoError(t, err)
		assert.Equal(t, int64(42), balance)
		accounts.AssertExpectations(t)
	})

	t.Run("empty username", func(t *testing.T) {
		svc, accounts, _ := newTestWalletService(0)

		_, err := svc.GetBalance(ctx, "   ")

		assert.ErrorIs(t, err, ErrInvalidAccount)
		accounts.AssertNotCalled(t, "GetOrCreate")
	})

	t.Run("repository failure is wrapped", func(t *testing.T) {
		svc, accounts, _ := newTestWalletService(0)
		accounts.On("GetOrCreate", ctx, "ALICE").Return(nil, errors.New("connection reset"))

		_, err := svc.GetBalance(ctx, "alice")

		require.Error(t, err)
		_, isBusiness := AsError(err)
		assert.False(t, isBusiness)
		assert.Contains(t, err.Error(), "connection reset")
	})
}

func TestWalletService_Adjust(t *testing.T) {
	ctx := context.Background()

	t.Run("applies delta and publishes balance change", func(t *testing.T) {
		svc, accounts, publisher := newTestWalletService(0)

		accounts.On("ApplyDelta", ctx, "BOB", mock.MatchedBy(func(e models.LedgerEntry) bool {
			return e.Delta == 25 && e.Reason == models.ReasonAdminAdjust && e.Ref != "" && !e.Timestamp.IsZero()
		}), false).Return(&models.Account{Username: "BOB", Balance: 125}, nil)
		publisher.On("Publish", mock.MatchedBy(func(e events.BalanceChangeEvent) bool {
			return e.Username == "BOB" && e.OldBalance == 100 && e.NewBalance == 125 && e.ChangeAmount == 25
		})).Return()

		balance, err := svc.Adjust(ctx, "bob", 25, models.ReasonAdminAdjust, AllowNegative)

		require.NoError(t, err)
		assert.Equal(t, int64(125), balance)
		accounts.AssertExpectations(t)
		publisher.AssertExpectations(t)
	})

	t.Run("zero delta is a no-op", func(t *testing.T) {
		svc, accounts, publisher := newTestWalletService(0)
		accounts.On("GetOrCreate", ctx, "BOB").Return(&models.Account{Username: "BOB", Balance: 7}, nil)

		balance, err := svc.Adjust(ctx, "bob", 0, "noop", AllowNegative)

		require.NoError(t, err)
		assert.Equal(t, int64(7), balance)
		accounts.AssertNotCalled(t, "ApplyDelta")
		publisher.AssertNotCalled(t, "Publish")
	})

	t.Run("insufficient funds passes through unwrapped", func(t *testing.T) {
		svc, accounts, publisher := newTestWalletService(0)
		accounts.On("ApplyDelta", ctx, "BOB", mock.Anything, true).Return(nil, ErrInsufficientFunds)

		_, err := svc.Adjust(ctx, "bob", -500, models.ReasonSpend, RequireNonNegative)

		assert.Equal(t, ErrInsufficientFunds, err)
		publisher.AssertNotCalled(t, "Publish")
	})
}

func TestWalletService_CreditDebit(t *testing.T) {
	ctx := context.Background()

	t.Run("credit rejects non-positive amounts", func(t *testing.T) {
		svc, accounts, _ := newTestWalletService(0)

		_, err := svc.Credit(ctx, "bob", 0, "x")
		assert.ErrorIs(t, err, ErrInvalidAmount)
		_, err = svc.Credit(ctx, "bob", -5, "x")
		assert.ErrorIs(t, err, ErrInvalidAmount)

		accounts.AssertNotCalled(t, "ApplyDelta")
	})

	t.Run("debit enforces non-negative balance", func(t *testing.T) {
		svc, accounts, publisher := newTestWalletService(0)
		accounts.On("ApplyDelta", ctx, "BOB", mock.MatchedBy(func(e models.LedgerEntry) bool {
			return e.Delta == -20
		}), true).Return(&models.Account{Username: "BOB", Balance: 30}, nil)
		publisher.On("Publish", mock.Anything).Return()

		balance, err := svc.Debit(ctx, "bob", 20, models.ReasonSpend)

		require.NoError(t, err)
		assert.Equal(t, int64(30), balance)
		accounts.AssertExpectations(t)
	})
}

func TestWalletService_GrantSignupBonusIfNeeded(t *testing.T) {
	ctx := context.Background()

	t.Run("first grant", func(t *testing.T) {
		svc, accounts, publisher := newTestWalletService(50)
		accounts.On("GrantSignupBonus", ctx, "ALICE", mock.MatchedBy(func(e models.LedgerEntry) bool {
			return e.Delta == 50 && e.Reason == models.ReasonSignupBonus
		})).Return(&models.Account{Username: "ALICE", Balance: 50}, true, nil)
		publisher.On("Publish", mock.AnythingOfType("events.BalanceChangeEvent")).Return().Once()
		publisher.On("Publish", events.SignupBonusGrantedEvent{Username: "ALICE", Amount: 50, Balance: 50}).Return().Once()

		result, err := svc.GrantSignupBonusIfNeeded(ctx, "alice")

		require.NoError(t, err)
		assert.Equal(t, &SignupBonusResult{Granted: true, Balance: 50}, result)
		publisher.AssertExpectations(t)
	})

	t.Run("already granted", func(t *testing.T) {
		svc, accounts, publisher := newTestWalletService(50)
		accounts.On("GrantSignupBonus", ctx, "ALICE", mock.Anything).Return(&models.Account{Username: "ALICE", Balance: 80}, false, nil)

		result, err := svc.GrantSignupBonusIfNeeded(ctx, "alice")

		require.NoError(t, err)
		assert.Equal(t, &SignupBonusResult{Granted: false, Balance: 80}, result)
		publisher.AssertNotCalled(t, "Publish")
	})

	t.Run("zero bonus disables granting", func(t *testing.T) {
		svc, accounts, _ := newTestWalletService(0)
		accounts.On("GetOrCreate", ctx, "ALICE").Return(&models.Account{Username: "ALICE", Balance: 3}, nil)

		result, err := svc.GrantSignupBonusIfNeeded(ctx, "alice")

		require.NoError(t, err)
		assert.Equal(t, &SignupBonusResult{Granted: false, Balance: 3}, result)
		accounts.AssertNotCalled(t, "GrantSignupBonus")
	})
}

func TestWalletService_ApplyWithCap(t *testing.T) {
	ctx := context.Background()
	windowStart := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

	t.Run("truncates to remaining room", func(t *testing.T) {
		svc, accounts, publisher := newTestWalletService(0)
		accounts.On("SumDeltasSince", ctx, "CAROL", windowStart, "EVENT:").Return(int64(90), nil)
		accounts.On("ApplyDelta", ctx, "CAROL", mock.MatchedBy(func(e models.LedgerEntry) bool {
			return e.Delta == 10 && e.Reason == "EVENT:X"
		}), false).Return(&models.Account{Username: "CAROL", Balance: 110}, nil)
		publisher.On("Publish", mock.Anything).Return()

		result, err := svc.ApplyWithCap(ctx, "carol", 50, 100, "EVENT:X")

		require.NoError(t, err)
		assert.Equal(t, int64(10), result.Applied)
		assert.True(t, result.Capped)
		assert.Equal(t, int64(100), result.Used)
		assert.Equal(t, int64(110), result.Balance)
	})

	t.Run("fully capped applies nothing", func(t *testing.T) {
		svc, accounts, _ := newTestWalletService(0)
		accounts.On("SumDeltasSince", ctx, "CAROL", windowStart, "EVENT:").Return(int64(120), nil)
		accounts.On("GetOrCreate", ctx, "CAROL").Return(&models.Account{Username: "CAROL", Balance: 120}, nil)

		result, err := svc.ApplyWithCap(ctx, "carol", 10, 100, "EVENT:SUB_NEW")

		require.NoError(t, err)
		assert.Equal(t, int64(0), result.Applied)
		assert.True(t, result.Capped)
		accounts.AssertNotCalled(t, "ApplyDelta")
	})

	t.Run("under cap applies in full", func(t *testing.T) {
		svc, accounts, publisher := newTestWalletService(0)
		accounts.On("SumDeltasSince", ctx, "CAROL", windowStart, "EVENT:").Return(int64(0), nil)
		accounts.On("ApplyDelta", ctx, "CAROL", mock.Anything, false).Return(&models.Account{Username: "CAROL", Balance: 10}, nil)
		publisher.On("Publish", mock.Anything).Return()

		result, err := svc.ApplyWithCap(ctx, "carol", 10, 100, "EVENT:SUB_NEW")

		require.NoError(t, err)
		assert.Equal(t, int64(10), result.Applied)
		assert.False(t, result.Capped)
	})
}

func TestWalletService_Ledger_ClampsLimit(t *testing.T) {
	ctx := context.Background()
	svc, accounts, _ := newTestWalletService(0)

	accounts.On("Ledger", ctx, "ALICE", DefaultLedgerLimit).Return([]*models.LedgerEntry{}, nil).Once()
	accounts.On("Ledger", ctx, "ALICE", MaxLedgerLimit).Return([]*models.LedgerEntry{}, nil).Once()

	_, err := svc.Ledger(ctx, "alice", 0)
	require.NoError(t, err)
	_, err = svc.Ledger(ctx, "alice", 10000)
	require.NoError(t, err)

	accounts.AssertExpectations(t)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		value   float64
		want    int64
		wantErr bool
	}{
		{"whole positive", 20, 20, false},
		{"whole negative", -20, -20, false},
		{"zero", 0, 0, false},
		{"fraction", 1.5, 0, true},
		{"too large", 1e19, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.value)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
