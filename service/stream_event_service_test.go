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

func newTestStreamEventService() (*streamEventService, *MockStreamEventRepository, *MockWalletService, *MockJackpotService, *MockEventPublisher) {
	svc, repo, _, wallet, jackpot, publisher := newTestStreamEventServiceWithRules()
	svc.rules.(*MockEventRulesRepository).On("Get", mock.Anything).Return(nil, nil)
	return svc, repo, wallet, jackpot, publisher
}

func newTestStreamEventServiceWithRules() (*streamEventService, *MockStreamEventRepository, *MockEventRulesRepository, *MockWalletService, *MockJackpotService, *MockEventPublisher) {
	repo := new(MockStreamEventRepository)
	rules := new(MockEventRulesRepository)
	wallet := new(MockWalletService)
	jackpot := new(MockJackpotService)
	publisher := new(MockEventPublisher)
	svc := NewStreamEventService(repo, rules, wallet, jackpot, publisher, DefaultEventRules()).(*streamEventService)
	svc.now = func() time.Time { return testNow }
	return svc, repo, rules, wallet, jackpot, publisher
}

func TestStreamEventService_Ingest_SubNew(t *testing.T) {
	ctx := context.Background()
	svc, repo, wallet, jackpot, publisher := newTestStreamEventService()

	stored := &models.StreamEvent{Provider: "kick", EventID: "e1", Type: models.StreamEventSubNew, Username: "ALICE"}
	repo.On("Record", ctx, mock.MatchedBy(func(e *models.StreamEvent) bool {
		return e.Provider == "kick" && e.EventID == "e1" && e.Type == models.StreamEventSubNew && e.Username == "ALICE" && e.ReceivedAt.Equal(testNow)
	})).Return(stored, true, nil)
	wallet.On("ApplyWithCap", ctx, "ALICE", int64(10), int64(100), "EVENT:SUB_NEW").
		Return(&CapResult{Applied: 10, Used: 10, Cap: 100, Balance: 10}, nil)
	jackpot.On("Contribute", ctx, mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.RequireFromString("2.5"))
	})).Return(&models.JackpotReading{Month: "2025-06"}, nil)
	repo.On("Claim", ctx, "kick", "e1", testNow).Return(true, nil)
	publisher.On("Publish", events.StreamEventAppliedEvent{Provider: "kick", EventID: "e1", Kind: "SUB_NEW", Credited: 10}).Return()

	result, err := svc.Ingest(ctx, IngestEventInput{Provider: "kick", EventID: " e1 ", Type: "sub_new", Username: "alice"})

	require.NoError(t, err)
	assert.False(t, result.Idempotent)
	require.Len(t, result.Credits, 1)
	assert.Equal(t, "ALICE", result.Credits[0].Username)
	assert.Equal(t, int64(10), result.Credits[0].Applied)
	assert.NotNil(t, result.Jackpot)
	repo.AssertExpectations(t)
	wallet.AssertExpectations(t)
	jackpot.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestStreamEventService_Ingest_SubGift(t *testing.T) {
	ctx := context.Background()
	svc, repo, wallet, jackpot, publisher := newTestStreamEventService()

	stored := &models.StreamEvent{
		Provider:   "kick",
		EventID:    "g1",
		Type:       models.StreamEventSubGift,
		Username:   "GIFTER",
		Recipients: []string{"R1", "R2", "R3"},
	}
	repo.On("Record", ctx, mock.Anything).Return(stored, true, nil)
	wallet.On("ApplyWithCap", ctx, "GIFTER", int64(2), int64(100), "EVENT:SUB_GIFT_GIFTER").
		Return(&CapResult{Applied: 2, Cap: 100}, nil)
	for _, r := range []string{"R1", "R2", "R3"} {
		wallet.On("ApplyWithCap", ctx, r, int64(3), int64(100), "EVENT:SUB_GIFT_RECIPIENT").
			Return(&CapResult{Applied: 3, Cap: 100}, nil)
	}
	jackpot.On("Contribute", ctx, mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.RequireFromString("2.5"))
	})).Return(&models.JackpotReading{}, nil)
	repo.On("Claim", ctx, "kick", "g1", testNow).Return(true, nil)
	publisher.On("Publish", mock.MatchedBy(func(e events.StreamEventAppliedEvent) bool {
		return e.Credited == 11
	})).Return()

	result, err := svc.Ingest(ctx, IngestEventInput{
		Provider:   "kick",
		EventID:    "g1",
		Type:       models.StreamEventSubGift,
		Username:   "gifter",
		Recipients: []string{"r1", "r2", "r3"},
	})

	require.NoError(t, err)
	assert.Len(t, result.Credits, 4)
	wallet.AssertExpectations(t)
	jackpot.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestStreamEventService_Ingest_GiftQuantityScalesGifterAndJackpot(t *testing.T) {
	ctx := context.Background()
	svc, repo, wallet, jackpot, publisher := newTestStreamEventService()

	stored := &models.StreamEvent{Provider: "generic", EventID: "g2", Type: models.StreamEventSubGift, Username: "GIFTER", Quantity: 5}
	repo.On("Record", ctx, mock.Anything).Return(stored, true, nil)
	wallet.On("ApplyWithCap", ctx, "GIFTER", int64(10), int64(100), "EVENT:SUB_GIFT_GIFTER").Return(&CapResult{Applied: 10}, nil)
	jackpot.On("Contribute", ctx, mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.RequireFromString("12.5"))
	})).Return(&models.JackpotReading{}, nil)
	repo.On("Claim", ctx, "generic", "g2", testNow).Return(true, nil)
	publisher.On("Publish", mock.Anything).Return()

	_, err := svc.Ingest(ctx, IngestEventInput{EventID: "g2", Type: models.StreamEventSubGift, Username: "gifter", Quantity: 5})

	require.NoError(t, err)
	wallet.AssertExpectations(t)
	jackpot.AssertExpectations(t)
}

func TestStreamEventService_Ingest_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc, repo, wallet, jackpot, publisher := newTestStreamEventService()

	repo.On("Record", ctx, mock.Anything).Return(&models.StreamEvent{Provider: "kick", EventID: "e1", Applied: true}, false, nil)

	result, err := svc.Ingest(ctx, IngestEventInput{Provider: "kick", EventID: "e1", Type: models.StreamEventSubNew, Username: "alice"})

	require.NoError(t, err)
	assert.True(t, result.Idempotent)
	wallet.AssertNotCalled(t, "ApplyWithCap")
	jackpot.AssertNotCalled(t, "Contribute")
	publisher.AssertNotCalled(t, "Publish")
}

func TestStreamEventService_Ingest_ResumesUnappliedEvent(t *testing.T) {
	ctx := context.Background()
	svc, repo, wallet, jackpot, publisher := newTestStreamEventService()

	stored := &models.StreamEvent{Provider: "kick", EventID: "e1", Type: models.StreamEventSubRenew, Username: "ALICE"}
	repo.On("Record", ctx, mock.Anything).Return(stored, false, nil)
	wallet.On("ApplyWithCap", ctx, "ALICE", int64(5), int64(100), "EVENT:SUB_RENEW").Return(&CapResult{Applied: 5}, nil)
	jackpot.On("Contribute", ctx, mock.Anything).Return(&models.JackpotReading{}, nil)
	repo.On("Claim", ctx, "kick", "e1", testNow).Return(true, nil)
	publisher.On("Publish", mock.Anything).Return()

	result, err := svc.Ingest(ctx, IngestEventInput{Provider: "kick", EventID: "e1", Type: models.StreamEventSubRenew, Username: "alice"})

	require.NoError(t, err)
	assert.False(t, result.Idempotent)
	wallet.AssertExpectations(t)
}

func TestStreamEventService_Ingest_UnknownTypeIsRecordedOnly(t *testing.T) {
	ctx := context.Background()
	svc, repo, wallet, jackpot, publisher := newTestStreamEventService()

	stored := &models.StreamEvent{Provider: "kick", EventID: "f1", Type: "FOLLOW", Username: "ALICE"}
	repo.On("Record", ctx, mock.Anything).Return(stored, true, nil)
	repo.On("Claim", ctx, "kick", "f1", testNow).Return(true, nil)
	publisher.On("Publish", mock.MatchedBy(func(e events.StreamEventAppliedEvent) bool {
		return e.Credited == 0
	})).Return()

	result, err := svc.Ingest(ctx, IngestEventInput{Provider: "kick", EventID: "f1", Type: "follow", Username: "alice"})

	require.NoError(t, err)
	assert.Empty(t, result.Credits)
	assert.Nil(t, result.Jackpot)
	wallet.AssertNotCalled(t, "ApplyWithCap")
	jackpot.AssertNotCalled(t, "Contribute")
}

func TestStreamEventService_Ingest_Validation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		in   IngestEventInput
	}{
		{"missing event id", IngestEventInput{Type: models.StreamEventSubNew, Username: "alice"}},
		{"blank event id", IngestEventInput{EventID: "  ", Type: models.StreamEventSubNew}},
		{"missing type", IngestEventInput{EventID: "e1", Username: "alice"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _, _, _ := newTestStreamEventService()

			_, err := svc.Ingest(ctx, tt.in)

			assert.ErrorIs(t, err, ErrInvalidEvent)
			repo.AssertNotCalled(t, "Record")
		})
	}
}

func TestStreamEventService_Ingest_CreditFailureReleasesClaim(t *testing.T) {
	ctx := context.Background()
	svc, repo, wallet, jackpot, publisher := newTestStreamEventService()

	stored := &models.StreamEvent{Provider: "kick", EventID: "e1", Type: models.StreamEventSubNew, Username: "ALICE"}
	repo.On("Record", ctx, mock.Anything).Return(stored, true, nil)
	repo.On("Claim", ctx, "kick", "e1", testNow).Return(true, nil)
	repo.On("Release", mock.Anything, "kick", "e1").Return(nil)
	wallet.On("ApplyWithCap", ctx, "ALICE", int64(10), int64(100), "EVENT:SUB_NEW").Return(nil, errors.New("db down"))

	_, err := svc.Ingest(ctx, IngestEventInput{Provider: "kick", EventID: "e1", Type: models.StreamEventSubNew, Username: "alice"})

	require.Error(t, err)
	repo.AssertCalled(t, "Release", mock.Anything, "kick", "e1")
	jackpot.AssertNotCalled(t, "Contribute")
	publisher.AssertNotCalled(t, "Publish")
}

func TestStreamEventService_Ingest_LostClaimIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, repo, wallet, jackpot, publisher := newTestStreamEventService()

	stored := &models.StreamEvent{Provider: "kick", EventID: "e1", Type: models.StreamEventSubNew, Username: "ALICE"}
	repo.On("Record", ctx, mock.Anything).Return(stored, false, nil)
	repo.On("Claim", ctx, "kick", "e1", testNow).Return(false, nil)

	result, err := svc.Ingest(ctx, IngestEventInput{Provider: "kick", EventID: "e1", Type: models.StreamEventSubNew, Username: "alice"})

	require.NoError(t, err)
	assert.True(t, result.Idempotent)
	wallet.AssertNotCalled(t, "ApplyWithCap")
	jackpot.AssertNotCalled(t, "Contribute")
	publisher.AssertNotCalled(t, "Publish")
}

func TestStreamEventService_Ingest_UsesStoredRules(t *testing.T) {
	ctx := context.Background()
	svc, repo, rules, wallet, jackpot, publisher := newTestStreamEventServiceWithRules()

	stored := DefaultEventRules()
	stored.SubNew = 25
	stored.CapPerDay = 40
	stored.JackpotPerSub = decimal.Zero
	rules.On("Get", ctx).Return(&stored, nil)

	event := &models.StreamEvent{Provider: "kick", EventID: "e9", Type: models.StreamEventSubNew, Username: "ALICE"}
	repo.On("Record", ctx, mock.Anything).Return(event, true, nil)
	repo.On("Claim", ctx, "kick", "e9", testNow).Return(true, nil)
	wallet.On("ApplyWithCap", ctx, "ALICE", int64(25), int64(40), "EVENT:SUB_NEW").Return(&CapResult{Applied: 25}, nil)
	publisher.On("Publish", mock.Anything).Return()

	result, err := svc.Ingest(ctx, IngestEventInput{Provider: "kick", EventID: "e9", Type: models.StreamEventSubNew, Username: "alice"})

	require.NoError(t, err)
	assert.Nil(t, result.Jackpot)
	wallet.AssertExpectations(t)
	jackpot.AssertNotCalled(t, "Contribute")
}

func TestStreamEventService_Rules(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults until saved", func(t *testing.T) {
		svc, _, rules, _, _, _ := newTestStreamEventServiceWithRules()
		rules.On("Get", ctx).Return(nil, nil)

		got, err := svc.Rules(ctx)

		require.NoError(t, err)
		assert.Equal(t, int64(10), got.SubNew)
		assert.Equal(t, int64(100), got.CapPerDay)
		assert.Nil(t, got.UpdatedAt)
	})

	t.Run("update merges patch", func(t *testing.T) {
		svc, _, rules, _, _, publisher := newTestStreamEventServiceWithRules()
		rules.On("Get", ctx).Return(nil, nil)
		rules.On("Save", ctx, mock.MatchedBy(func(r *models.EventRules) bool {
			return r.SubNew == 12 && r.SubRenew == 5 && r.CapPerDay == 60 && r.UpdatedBy == "admin"
		})).Return(nil)
		publisher.On("Publish", events.EventRulesUpdatedEvent{UpdatedBy: "admin", CapPerDay: 60}).Return()

		subNew, capPerDay := int64(12), int64(60)
		got, err := svc.UpdateRules(ctx, EventRulesPatch{SubNew: &subNew, CapPerDay: &capPerDay, UpdatedBy: "admin"})

		require.NoError(t, err)
		assert.Equal(t, int64(12), got.SubNew)
		assert.True(t, got.JackpotPerSub.Equal(decimal.RequireFromString("2.5")))
		require.NotNil(t, got.UpdatedAt)
		assert.True(t, got.UpdatedAt.Equal(testNow))
		rules.AssertExpectations(t)
		publisher.AssertExpectations(t)
	})

	invalid := []struct {
		name  string
		patch func() EventRulesPatch
	}{
		{"negative reward", func() EventRulesPatch { v := int64(-1); return EventRulesPatch{SubRenew: &v} }},
		{"zero cap", func() EventRulesPatch { v := int64(0); return EventRulesPatch{CapPerDay: &v} }},
		{"negative jackpot", func() EventRulesPatch { v := decimal.NewFromInt(-1); return EventRulesPatch{JackpotPerSub: &v} }},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, rules, _, _, _ := newTestStreamEventServiceWithRules()
			rules.On("Get", ctx).Return(nil, nil)

			_, err := svc.UpdateRules(ctx, tt.patch())

			assert.ErrorIs(t, err, ErrInvalidRules)
			rules.AssertNotCalled(t, "Save")
		})
	}
}

func TestStreamEventService_Recent(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, _, _ := newTestStreamEventService()
	repo.On("Recent", ctx, DefaultLedgerLimit).Return([]*models.StreamEvent{}, nil)

	got, err := svc.Recent(ctx, 0)

	require.NoError(t, err)
	assert.Empty(t, got)
	repo.AssertExpectations(t)
}
