package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lbx/events"
	"lbx/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Reason suffixes of the two credits a gift produces
const (
	GifterReasonSuffix    = "_GIFTER"
	RecipientReasonSuffix = "_RECIPIENT"
)

// DefaultEventRules returns the standard reward table
func DefaultEventRules() models.EventRules {
	return models.EventRules{
		SubNew:           10,
		SubRenew:         5,
		SubGiftGifterPer: 2,
		SubGiftRecipient: 3,
		CapPerDay:        100,
		JackpotPerSub:    decimal.RequireFromString("2.50"),
	}
}

// streamEventService implements the StreamEventService interface
type streamEventService struct {
	streamEvents   StreamEventRepository
	rules          EventRulesRepository
	wallet         WalletService
	jackpot        JackpotService
	eventPublisher EventPublisher
	defaults       models.EventRules
	now            func() time.Time
}

// NewStreamEventService creates a new stream event service. defaults apply until
// an admin saves a reward table.
func NewStreamEventService(streamEvents StreamEventRepository, rules EventRulesRepository, wallet WalletService, jackpot JackpotService, eventPublisher EventPublisher, defaults models.EventRules) StreamEventService {
	return &streamEventService{
		streamEvents:   streamEvents,
		rules:          rules,
		wallet:         wallet,
		jackpot:        jackpot,
		eventPublisher: eventPublisher,
		defaults:       defaults,
		now:            time.Now,
	}
}

type plannedCredit struct {
	username string
	amount   int64
	reason   string
}

// Ingest records the event once and applies its wallet and jackpot rewards.
// Only the delivery that claims the event applies it. Credits to different accounts
// are independent operations, and a failure part way leaves earlier credits applied
// and releases the claim so a redelivery can finish.
func (s *streamEventService) Ingest(ctx context.Context, in IngestEventInput) (*IngestResult, error) {
	in.EventID = strings.TrimSpace(in.EventID)
	in.Type = models.StreamEventType(strings.ToUpper(strings.TrimSpace(string(in.Type))))
	if in.EventID == "" || in.Type == "" {
		return nil, ErrInvalidEvent
	}
	if in.Provider == "" {
		in.Provider = "generic"
	}

	now := s.now().UTC()
	if in.OccurredAt.IsZero() {
		in.OccurredAt = now
	}

	stored, created, err := s.streamEvents.Record(ctx, &models.StreamEvent{
		Provider:   in.Provider,
		EventID:    in.EventID,
		Type:       in.Type,
		Username:   models.NormalizeUsername(in.Username),
		Quantity:   in.Quantity,
		Recipients: normalizeUsernames(in.Recipients),
		OccurredAt: in.OccurredAt,
		ReceivedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record event %s/%s: %w", in.Provider, in.EventID, err)
	}
	if !created && stored.Applied {
		return &IngestResult{Idempotent: true}, nil
	}

	claimed, err := s.streamEvents.Claim(ctx, stored.Provider, stored.EventID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to claim event %s: %w", stored.EventID, err)
	}
	if !claimed {
		return &IngestResult{Idempotent: true}, nil
	}

	result, credited, err := s.apply(ctx, stored)
	if err != nil {
		s.release(ctx, stored)
		return nil, err
	}

	log.WithFields(log.Fields{
		"provider": stored.Provider,
		"eventId":  stored.EventID,
		"type":     stored.Type,
		"credited": credited,
	}).Info("Applied stream event")
	s.eventPublisher.Publish(events.StreamEventAppliedEvent{
		Provider: stored.Provider,
		EventID:  stored.EventID,
		Kind:     string(stored.Type),
		Credited: credited,
	})

	return result, nil
}

func (s *streamEventService) apply(ctx context.Context, event *models.StreamEvent) (*IngestResult, int64, error) {
	rules, err := s.Rules(ctx)
	if err != nil {
		return nil, 0, err
	}
	credits, contribution := plan(event, rules)

	result := &IngestResult{Credits: make([]CreditOutcome, 0, len(credits))}
	var credited int64
	for _, credit := range credits {
		outcome, err := s.wallet.ApplyWithCap(ctx, credit.username, credit.amount, rules.CapPerDay, credit.reason)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to credit %s for event %s: %w", credit.username, event.EventID, err)
		}
		credited += outcome.Applied
		result.Credits = append(result.Credits, CreditOutcome{
			Username:  credit.username,
			Reason:    credit.reason,
			CapResult: outcome,
		})
	}

	if contribution.IsPositive() {
		reading, err := s.jackpot.Contribute(ctx, contribution)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to contribute jackpot for event %s: %w", event.EventID, err)
		}
		result.Jackpot = reading
	}
	return result, credited, nil
}

func (s *streamEventService) release(ctx context.Context, event *models.StreamEvent) {
	if err := s.streamEvents.Release(context.WithoutCancel(ctx), event.Provider, event.EventID); err != nil {
		log.WithFields(log.Fields{
			"provider": event.Provider,
			"eventId":  event.EventID,
			"error":    err,
		}).Error("Failed to release stream event claim")
	}
}

// Rules returns the stored reward table or the defaults
func (s *streamEventService) Rules(ctx context.Context) (*models.EventRules, error) {
	stored, err := s.rules.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load event rules: %w", err)
	}
	if stored == nil {
		defaults := s.defaults
		return &defaults, nil
	}
	return stored, nil
}

// UpdateRules merges patch into the current reward table
func (s *streamEventService) UpdateRules(ctx context.Context, patch EventRulesPatch) (*models.EventRules, error) {
	current, err := s.Rules(ctx)
	if err != nil {
		return nil, err
	}

	next := *current
	setIfPresent(&next.SubNew, patch.SubNew)
	setIfPresent(&next.SubRenew, patch.SubRenew)
	setIfPresent(&next.SubGiftGifterPer, patch.SubGiftGifterPer)
	setIfPresent(&next.SubGiftRecipient, patch.SubGiftRecipient)
	setIfPresent(&next.CapPerDay, patch.CapPerDay)
	if patch.JackpotPerSub != nil {
		next.JackpotPerSub = *patch.JackpotPerSub
	}
	if err := validateRules(&next); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	next.UpdatedBy = patch.UpdatedBy
	next.UpdatedAt = &now
	if err := s.rules.Save(ctx, &next); err != nil {
		return nil, fmt.Errorf("failed to save event rules: %w", err)
	}

	log.WithFields(log.Fields{
		"updatedBy": next.UpdatedBy,
		"capPerDay": next.CapPerDay,
		"subNew":    next.SubNew,
		"subRenew":  next.SubRenew,
	}).Info("Updated event rules")
	s.eventPublisher.Publish(events.EventRulesUpdatedEvent{
		UpdatedBy: next.UpdatedBy,
		CapPerDay: next.CapPerDay,
	})
	return &next, nil
}

func setIfPresent(dst *int64, value *int64) {
	if value != nil {
		*dst = *value
	}
}

func validateRules(rules *models.EventRules) error {
	if rules.SubNew < 0 || rules.SubRenew < 0 || rules.SubGiftGifterPer < 0 || rules.SubGiftRecipient < 0 {
		return ErrInvalidRules
	}
	if rules.CapPerDay < 1 || rules.JackpotPerSub.IsNegative() {
		return ErrInvalidRules
	}
	return nil
}

// Recent lists recently ingested events
func (s *streamEventService) Recent(ctx context.Context, limit int) ([]*models.StreamEvent, error) {
	if limit <= 0 || limit > MaxLedgerLimit {
		limit = DefaultLedgerLimit
	}
	recent, err := s.streamEvents.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent events: %w", err)
	}
	return recent, nil
}

// plan maps an event to its credits and jackpot contribution. Unknown types yield nothing.
func plan(event *models.StreamEvent, rules *models.EventRules) ([]plannedCredit, decimal.Decimal) {
	quantity := max(1, event.Quantity)

	var credits []plannedCredit
	add := func(username string, amount int64, reason string) {
		if username != "" && amount > 0 {
			credits = append(credits, plannedCredit{username: username, amount: amount, reason: reason})
		}
	}

	switch event.Type {
	case models.StreamEventSubNew:
		add(event.Username, rules.SubNew, models.EventReason(string(event.Type)))
		return credits, rules.JackpotPerSub
	case models.StreamEventSubRenew:
		add(event.Username, rules.SubRenew, models.EventReason(string(event.Type)))
		return credits, rules.JackpotPerSub
	case models.StreamEventSubGift:
		add(event.Username, rules.SubGiftGifterPer*int64(quantity), models.EventReason(string(event.Type)+GifterReasonSuffix))
		for _, recipient := range event.Recipients {
			add(recipient, rules.SubGiftRecipient, models.EventReason(string(event.Type)+RecipientReasonSuffix))
		}
		return credits, rules.JackpotPerSub.Mul(decimal.NewFromInt(int64(quantity)))
	default:
		return nil, decimal.Zero
	}
}

func normalizeUsernames(usernames []string) []string {
	out := make([]string, 0, len(usernames))
	for _, username := range usernames {
		if normalized := models.NormalizeUsername(username); normalized != "" {
			out = append(out, normalized)
		}
	}
	return out
}
