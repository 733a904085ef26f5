package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"lbx/events"
	"lbx/models"
	"lbx/repository/memory"
	"lbx/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServices struct {
	store    *memory.Store
	wallet   service.WalletService
	jackpot  service.JackpotService
	promos   service.PromoService
	stream   service.StreamEventService
	recharge service.RechargeService
	bus      *events.Bus
}

func newTestServices(t *testing.T, signupBonus int64) *testServices {
	t.Helper()

	store, err := memory.NewStore(memory.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	bus := events.NewBus()
	wallet := service.NewWalletService(memory.NewAccountRepository(store), bus, service.WalletConfig{SignupBonus: signupBonus})
	jackpot := service.NewJackpotService(memory.NewJackpotRepository(store), bus, service.JackpotConfig{
		BaseFloor: decimal.NewFromInt(150),
		Location:  time.UTC,
	})
	promos := service.NewPromoService(memory.NewPromoRepository(store), wallet, bus, service.PromoConfig{})
	stream := service.NewStreamEventService(memory.NewStreamEventRepository(store), memory.NewEventRulesRepository(store), wallet, jackpot, bus, service.DefaultEventRules())
	recharge := service.NewRechargeService(memory.NewRechargeOrderRepository(store), wallet, bus, service.RechargeConfig{})

	return &testServices{
		store:    store,
		wallet:   wallet,
		jackpot:  jackpot,
		promos:   promos,
		stream:   stream,
		recharge: recharge,
		bus:      bus,
	}
}

// slowStreamEvents delays Record the way a database round trip would
type slowStreamEvents struct {
	*memory.StreamEventRepository
	delay time.Duration
}

func (r slowStreamEvents) Record(ctx context.Context, event *models.StreamEvent) (*models.StreamEvent, bool, error) {
	stored, created, err := r.StreamEventRepository.Record(ctx, event)
	time.Sleep(r.delay)
	return stored, created, err
}

func TestScenario_AliceSignupAndSpend(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t, 50)

	balance, err := svc.wallet.GetBalance(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	result, err := svc.wallet.GrantSignupBonusIfNeeded(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, &service.SignupBonusResult{Granted: true, Balance: 50}, result)

	result, err = svc.wallet.GrantSignupBonusIfNeeded(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, &service.SignupBonusResult{Granted: false, Balance: 50}, result)

	balance, err = svc.wallet.Adjust(ctx, "ALICE", -20, models.ReasonSpend, service.RequireNonNegative)
	require.NoError(t, err)
	assert.Equal(t, int64(30), balance)

	ledger, err := svc.wallet.Ledger(ctx, "ALICE", 0)
	require.NoError(t, err)
	require.Len(t, ledger, 2)
	assert.Equal(t, int64(-20), ledger[0].Delta)
	assert.Equal(t, models.ReasonSpend, ledger[0].Reason)
	assert.Equal(t, int64(50), ledger[1].Delta)
	assert.Equal(t, models.ReasonSignupBonus, ledger[1].Reason)
}

func TestScenario_ConcurrentSignupBonus(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t, 50)

	var wg sync.WaitGroup
	results := make([]*service.SignupBonusResult, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := svc.wallet.GrantSignupBonusIfNeeded(ctx, "ALICE")
			assert.NoError(t, err)
			results[i] = result
		}(i)
	}
	wg.Wait()

	granted := 0
	for _, r := range results {
		require.NotNil(t, r)
		if r.Granted {
			granted++
		}
	}
	assert.Equal(t, 1, granted)

	balance, err := svc.wallet.GetBalance(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)
}

func TestScenario_LedgerConsistency(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t, 25)

	_, err := svc.wallet.GrantSignupBonusIfNeeded(ctx, "DAVE")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%3 == 0 {
				_, _ = svc.wallet.Debit(ctx, "DAVE", 7, models.ReasonSpend)
				return
			}
			_, err := svc.wallet.Credit(ctx, "DAVE", int64(i), models.ReasonAdminAdjust)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	balance, err := svc.wallet.GetBalance(ctx, "DAVE")
	require.NoError(t, err)
	ledger, err := svc.wallet.Ledger(ctx, "DAVE", service.MaxLedgerLimit)
	require.NoError(t, err)

	var sum int64
	for _, entry := range ledger {
		sum += entry.Delta
	}
	assert.Equal(t, balance, sum)
	assert.GreaterOrEqual(t, balance, int64(0))
	assert.Equal(t, balance, ledger[0].BalanceAfter)
}

func TestScenario_DebitCannotOverdraw(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t, 10)

	_, err := svc.wallet.GrantSignupBonusIfNeeded(ctx, "EVE")
	require.NoError(t, err)

	_, err = svc.wallet.Debit(ctx, "EVE", 11, models.ReasonSpend)
	assert.ErrorIs(t, err, service.ErrInsufficientFunds)

	balance, err := svc.wallet.Adjust(ctx, "EVE", -15, models.ReasonAdminAdjust, service.AllowNegative)
	require.NoError(t, err)
	assert.Equal(t, int64(-5), balance)
}

func TestScenario_CapEnforcement(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t, 0)

	first, err := svc.wallet.ApplyWithCap(ctx, "CAROL", 90, 100, "EVENT:SUB_NEW")
	require.NoError(t, err)
	assert.Equal(t, int64(90), first.Applied)
	assert.False(t, first.Capped)

	second, err := svc.wallet.ApplyWithCap(ctx, "CAROL", 50, 100, "EVENT:SUB_GIFT")
	require.NoError(t, err)
	assert.Equal(t, int64(10), second.Applied)
	assert.True(t, second.Capped)

	third, err := svc.wallet.ApplyWithCap(ctx, "CAROL", 5, 100, "EVENT:SUB_RENEW")
	require.NoError(t, err)
	assert.Equal(t, int64(0), third.Applied)
	assert.True(t, third.Capped)

	// Other reason classes have their own window
	other, err := svc.wallet.ApplyWithCap(ctx, "CAROL", 5, 100, "promo:X")
	require.NoError(t, err)
	assert.Equal(t, int64(5), other.Applied)

	balance, err := svc.wallet.GetBalance(ctx, "CAROL")
	require.NoError(t, err)
	assert.Equal(t, int64(105), balance)
}

func TestScenario_PromoSingleUse(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t, 0)

	promo, err := svc.promos.CreateCode(ctx, service.CreatePromoInput{Code: "WELCOME", Amount: 10, MaxRedemptions: 100, PerUserLimit: 1})
	require.NoError(t, err)

	result, err := svc.promos.Redeem(ctx, "alice", promo.Code)
	require.NoError(t, err)
	assert.Equal(t, int64(10), result.Balance)

	_, err = svc.promos.Redeem(ctx, "ALICE", "welcome")
	assert.ErrorIs(t, err, service.ErrPerUserLimit)

	balance, err := svc.wallet.GetBalance(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)

	redemptions, err := svc.promos.RedemptionsFor(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, redemptions, 1)
}

func TestScenario_PromoDepletionRace(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t, 0)

	_, err := svc.promos.CreateCode(ctx, service.CreatePromoInput{Code: "LAST", Amount: 30, MaxRedemptions: 1, PerUserLimit: 1})
	require.NoError(t, err)

	users := []string{"ALICE", "BOB"}
	errs := make([]error, len(users))
	var wg sync.WaitGroup
	for i, user := range users {
		wg.Add(1)
		go func(i int, user string) {
			defer wg.Done()
			_, errs[i] = svc.promos.Redeem(ctx, user, "LAST")
		}(i, user)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, service.ErrPromoDepleted)
	}
	assert.Equal(t, 1, successes)

	var total int64
	for _, user := range users {
		balance, err := svc.wallet.GetBalance(ctx, user)
		require.NoError(t, err)
		total += balance
	}
	assert.Equal(t, int64(30), total)

	codes, err := svc.promos.ListCodes(ctx, nil)
	require.NoError(t, err)
	require.Len(t, codes, 1)
	assert.Equal(t, 1, codes[0].RedeemedCount)
}

func TestScenario_DisabledPromoIsNotFound(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t, 0)

	_, err := svc.promos.CreateCode(ctx, service.CreatePromoInput{Code: "GONE", Amount: 5, MaxRedemptions: 10, PerUserLimit: 1})
	require.NoError(t, err)
	_, err = svc.promos.DisableCode(ctx, "gone")
	require.NoError(t, err)

	_, err = svc.promos.Redeem(ctx, "ALICE", "GONE")
	assert.ErrorIs(t, err, service.ErrPromoNotFound)
}

func TestScenario_JackpotContributeAndReset(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t, 0)

	reading, err := svc.jackpot.Contribute(ctx, decimal.NewFromInt(40))
	require.NoError(t, err)
	assert.True(t, reading.Extra.Equal(decimal.NewFromInt(40)))

	_, err = svc.jackpot.Reset(ctx)
	require.NoError(t, err)

	reading, err = svc.jackpot.Read(ctx, time.Now())
	require.NoError(t, err)
	assert.True(t, reading.Extra.IsZero())
	assert.True(t, reading.Base.LessThan(decimal.RequireFromString("0.01")), "got %s", reading.Base)
}

func TestScenario_ConcurrentDuplicateDeliveryCreditsOnce(t *testing.T) {
	ctx := context.Background()
	base := newTestServices(t, 0)
	stream := service.NewStreamEventService(
		slowStreamEvents{StreamEventRepository: memory.NewStreamEventRepository(base.store), delay: 20 * time.Millisecond},
		memory.NewEventRulesRepository(base.store),
		base.wallet, base.jackpot, base.bus, service.DefaultEventRules(),
	)

	const deliveries = 4
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		idempotent int
	)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := stream.Ingest(ctx, service.IngestEventInput{Provider: "kick", EventID: "dup-1", Type: models.StreamEventSubNew, Username: "alice"})
			if !assert.NoError(t, err) {
				return
			}
			if result.Idempotent {
				mu.Lock()
				idempotent++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, deliveries-1, idempotent)

	balance, err := base.wallet.GetBalance(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)

	reading, err := base.jackpot.Read(ctx, time.Now())
	require.NoError(t, err)
	assert.True(t, reading.Extra.Equal(decimal.RequireFromString("2.5")), "got %s", reading.Extra)
}

func TestScenario_UpdatedRulesApplyToNextEvent(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t, 0)

	subNew, capPerDay := int64(40), int64(50)
	_, err := svc.stream.UpdateRules(ctx, service.EventRulesPatch{SubNew: &subNew, CapPerDay: &capPerDay, UpdatedBy: "admin"})
	require.NoError(t, err)

	for _, id := range []string{"s-1", "s-2"} {
		_, err := svc.stream.Ingest(ctx, service.IngestEventInput{Provider: "kick", EventID: id, Type: models.StreamEventSubNew, Username: "gina"})
		require.NoError(t, err)
	}

	balance, err := svc.wallet.GetBalance(ctx, "GINA")
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)
}

func TestScenario_RechargeOrderLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t, 0)

	first, err := svc.recharge.Place(ctx, service.PlaceOrderInput{Username: "hank", Amount: 20, Asset: "USDT"})
	require.NoError(t, err)
	second, err := svc.recharge.Place(ctx, service.PlaceOrderInput{Username: "hank", Amount: 10, Asset: "BTC"})
	require.NoError(t, err)

	// pending orders count against the cap when placing
	_, err = svc.recharge.Place(ctx, service.PlaceOrderInput{Username: "hank", Amount: 5, Asset: "USDT"})
	assert.ErrorIs(t, err, service.ErrDailyCapExceeded)

	approved, err := svc.recharge.Approve(ctx, service.DecideOrderInput{ID: first.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(20), approved.Balance)

	_, err = svc.recharge.Approve(ctx, service.DecideOrderInput{ID: first.ID})
	assert.ErrorIs(t, err, service.ErrOrderNotPending)

	rejected, err := svc.recharge.Reject(ctx, service.DecideOrderInput{ID: second.ID, Note: "unpaid"})
	require.NoError(t, err)
	assert.Equal(t, models.OrderRejected, rejected.Status)

	ledger, err := svc.wallet.Ledger(ctx, "HANK", 10)
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.Equal(t, models.RechargeReason(first.ID), ledger[0].Reason)

	pending, err := svc.recharge.List(ctx, models.OrderPending, "")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestScenario_StreamEventsAreIdempotentAndCapped(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t, 0)

	var applied sync.WaitGroup
	applied.Add(1)
	var once sync.Once
	svc.bus.Subscribe(events.EventTypeStreamEventApplied, func(ctx context.Context, event events.Event) {
		once.Do(applied.Done)
	})

	first, err := svc.stream.Ingest(ctx, service.IngestEventInput{Provider: "kick", EventID: "sub-1", Type: models.StreamEventSubNew, Username: "frank"})
	require.NoError(t, err)
	assert.False(t, first.Idempotent)

	again, err := svc.stream.Ingest(ctx, service.IngestEventInput{Provider: "kick", EventID: "sub-1", Type: models.StreamEventSubNew, Username: "frank"})
	require.NoError(t, err)
	assert.True(t, again.Idempotent)

	// 10 from the sub plus 45 gifted subs at 2 each, capped at 100 in total
	_, err = svc.stream.Ingest(ctx, service.IngestEventInput{Provider: "kick", EventID: "gift-1", Type: models.StreamEventSubGift, Username: "frank", Quantity: 45})
	require.NoError(t, err)

	balance, err := svc.wallet.GetBalance(ctx, "FRANK")
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)

	reading, err := svc.jackpot.Read(ctx, time.Now())
	require.NoError(t, err)
	assert.True(t, reading.Extra.Equal(decimal.RequireFromString("115")), "got %s", reading.Extra)

	recent, err := svc.stream.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	applied.Wait()
}
