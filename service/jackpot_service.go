package service

import (
	"context"
	"fmt"
	"time"

	"lbx/events"
	"lbx/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// JackpotConfig holds the jackpot settings consumed by the service
type JackpotConfig struct {
	// BaseFloor is the base value reached at the end of a full period
	BaseFloor decimal.Decimal
	// Location is the reference timezone for month boundaries
	Location *time.Location
}

// jackpotService implements the JackpotService interface
type jackpotService struct {
	jackpots       JackpotRepository
	eventPublisher EventPublisher
	config         JackpotConfig
	now            func() time.Time
}

// NewJackpotService creates a new jackpot service
func NewJackpotService(jackpots JackpotRepository, eventPublisher EventPublisher, config JackpotConfig) JackpotService {
	if config.Location == nil {
		config.Location = time.UTC
	}
	return &jackpotService{
		jackpots:       jackpots,
		eventPublisher: eventPublisher,
		config:         config,
		now:            time.Now,
	}
}

// Read computes the current period's value at now
func (s *jackpotService) Read(ctx context.Context, now time.Time) (*models.JackpotReading, error) {
	period, err := s.jackpots.GetOrCreate(ctx, MonthKey(now, s.config.Location))
	if err != nil {
		return nil, fmt.Errorf("failed to load jackpot period: %w", err)
	}
	return s.compute(period, now), nil
}

// Contribute adds a positive amount to the current period's extra
func (s *jackpotService) Contribute(ctx context.Context, amount decimal.Decimal) (*models.JackpotReading, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	return s.addExtra(ctx, amount, events.JackpotChangeContribute)
}

// Adjust applies a signed non-zero admin delta to the extra, clamped at zero
func (s *jackpotService) Adjust(ctx context.Context, delta decimal.Decimal, reason string) (*models.JackpotReading, error) {
	if delta.IsZero() {
		return nil, ErrInvalidAmount
	}

	reading, err := s.addExtra(ctx, delta, events.JackpotChangeAdjust)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"month":  reading.Month,
		"delta":  delta.String(),
		"reason": reason,
		"extra":  reading.Extra.String(),
	}).Info("Adjusted jackpot")
	return reading, nil
}

// Reset restarts proration from now and clears the extra
func (s *jackpotService) Reset(ctx context.Context) (*models.JackpotReading, error) {
	now := s.now()
	month := MonthKey(now, s.config.Location)

	period, err := s.jackpots.Reset(ctx, month, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to reset jackpot period %s: %w", month, err)
	}

	reading := s.compute(period, now)
	log.WithField("month", month).Info("Reset jackpot")
	s.publish(events.JackpotChangeReset, decimal.Zero, reading)
	return reading, nil
}

// Debug returns the raw current period alongside its reading at now
func (s *jackpotService) Debug(ctx context.Context, now time.Time) (*JackpotDebug, error) {
	period, err := s.jackpots.GetOrCreate(ctx, MonthKey(now, s.config.Location))
	if err != nil {
		return nil, fmt.Errorf("failed to load jackpot period: %w", err)
	}
	return &JackpotDebug{
		Now:     now,
		Period:  period,
		Reading: s.compute(period, now),
	}, nil
}

func (s *jackpotService) addExtra(ctx context.Context, delta decimal.Decimal, change events.JackpotChange) (*models.JackpotReading, error) {
	now := s.now()
	month := MonthKey(now, s.config.Location)

	period, err := s.jackpots.AddExtra(ctx, month, delta)
	if err != nil {
		return nil, fmt.Errorf("failed to update jackpot period %s: %w", month, err)
	}

	reading := s.compute(period, now)
	s.publish(change, delta, reading)
	return reading, nil
}

// compute prorates the base floor over the elapsed fraction of the period.
// An override start before the calendar month start is ignored.
func (s *jackpotService) compute(period *models.JackpotPeriod, now time.Time) *models.JackpotReading {
	monthStart, periodEnd := MonthBounds(now, s.config.Location)

	periodStart := monthStart
	if period.OverrideStart != nil && period.OverrideStart.After(monthStart) {
		periodStart = period.OverrideStart.In(s.config.Location)
	}

	base := ProratedBase(s.config.BaseFloor, periodStart, periodEnd, now)
	extra := decimal.Max(decimal.Zero, period.Extra)

	return &models.JackpotReading{
		Month:       period.Month,
		Value:       base.Add(extra),
		Base:        base,
		Extra:       extra,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	}
}

func (s *jackpotService) publish(change events.JackpotChange, amount decimal.Decimal, reading *models.JackpotReading) {
	s.eventPublisher.Publish(events.JackpotChangedEvent{
		Month:  reading.Month,
		Change: change,
		Amount: amount,
		Extra:  reading.Extra,
		Value:  reading.Value,
	})
}

// ProratedBase scales floor by the elapsed fraction of [start, end), clamped to [0, 1]
func ProratedBase(floor decimal.Decimal, start, end, now time.Time) decimal.Decimal {
	total := end.Sub(start)
	if total <= 0 {
		return floor
	}

	fraction := decimal.NewFromInt(int64(now.Sub(start))).Div(decimal.NewFromInt(int64(total)))
	if fraction.IsNegative() {
		fraction = decimal.Zero
	}
	if fraction.GreaterThan(decimal.NewFromInt(1)) {
		fraction = decimal.NewFromInt(1)
	}
	return floor.Mul(fraction)
}
