package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishDeliversToSubscribers(t *testing.T) {
	bus := NewBus()

	received := make(chan BalanceChangeEvent, 1)
	bus.Subscribe(EventTypeBalanceChange, func(ctx context.Context, event Event) {
		if balanceEvent, ok := event.(BalanceChangeEvent); ok {
			received <- balanceEvent
		} else {
			t.Errorf("Expected BalanceChangeEvent, got %T", event)
		}
	})

	sent := BalanceChangeEvent{
		Username:     "ALICE",
		OldBalance:   0,
		NewBalance:   50,
		ChangeAmount: 50,
		Reason:       "signup_bonus",
	}
	bus.Publish(sent)

	select {
	case got := <-received:
		assert.Equal(t, sent, got)
	case <-time.After(2 * time.Second):
		t.Fatal("Event was not received within timeout")
	}
}

func TestBus_OnlyMatchingTypeReceives(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	var types []EventType
	var wg sync.WaitGroup
	wg.Add(1)

	bus.Subscribe(EventTypePromoRedeemed, func(ctx context.Context, event Event) {
		defer wg.Done()
		mu.Lock()
		types = append(types, event.Type())
		mu.Unlock()
	})
	bus.Subscribe(EventTypeJackpotChanged, func(ctx context.Context, event Event) {
		t.Errorf("jackpot handler should not receive %s", event.Type())
	})

	bus.Publish(PromoRedeemedEvent{Code: "L3Z-5-ABCDEF", Username: "BOB", Amount: 5, Balance: 5})
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []EventType{EventTypePromoRedeemed}, types)
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus()

	var wg sync.WaitGroup
	wg.Add(len(AllEventTypes))
	bus.SubscribeAll(func(ctx context.Context, event Event) {
		wg.Done()
	})

	bus.Publish(BalanceChangeEvent{})
	bus.Publish(SignupBonusGrantedEvent{})
	bus.Publish(JackpotChangedEvent{})
	bus.Publish(PromoRedeemedEvent{})
	bus.Publish(StreamEventAppliedEvent{})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("not every event type was delivered")
	}
}

func TestBus_HandlerPanicIsRecovered(t *testing.T) {
	bus := NewBus()

	delivered := make(chan struct{}, 1)
	bus.Subscribe(EventTypeBalanceChange, func(ctx context.Context, event Event) {
		panic("boom")
	})
	bus.Subscribe(EventTypeBalanceChange, func(ctx context.Context, event Event) {
		delivered <- struct{}{}
	})

	require.NotPanics(t, func() {
		bus.Emit(context.Background(), BalanceChangeEvent{Username: "ALICE"})
	})

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("second handler did not run after first panicked")
	}
}
