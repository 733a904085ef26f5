package memory

import (
	"context"
	"time"

	"lbx/models"
	"lbx/service"

	"github.com/shopspring/decimal"
)

// JackpotRepository implements service.JackpotRepository on a Store
type JackpotRepository struct {
	store *Store
}

var _ service.JackpotRepository = (*JackpotRepository)(nil)

// NewJackpotRepository creates a new jackpot repository
func NewJackpotRepository(store *Store) *JackpotRepository {
	return &JackpotRepository{store: store}
}

func (r *JackpotRepository) period(month string) *models.JackpotPeriod {
	s := r.store
	period, ok := s.state.Jackpots[month]
	if !ok {
		period = &models.JackpotPeriod{
			Month:     month,
			Extra:     decimal.Zero,
			UpdatedAt: s.now().UTC(),
		}
		s.state.Jackpots[month] = period
		s.changed()
	}
	return period
}

// GetOrCreate returns the period for month, creating an empty one if absent
func (r *JackpotRepository) GetOrCreate(ctx context.Context, month string) (*models.JackpotPeriod, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	period := *r.period(month)
	return &period, nil
}

// AddExtra adds delta to the extra, clamped at zero
func (r *JackpotRepository) AddExtra(ctx context.Context, month string, delta decimal.Decimal) (*models.JackpotPeriod, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	period := r.period(month)
	period.Extra = decimal.Max(decimal.Zero, period.Extra.Add(delta))
	period.UpdatedAt = r.store.now().UTC()
	r.store.changed()

	out := *period
	return &out, nil
}

// Reset restarts the period at the given instant with no extra
func (r *JackpotRepository) Reset(ctx context.Context, month string, at time.Time) (*models.JackpotPeriod, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	period := r.period(month)
	start := at
	period.OverrideStart = &start
	period.Extra = decimal.Zero
	period.UpdatedAt = r.store.now().UTC()
	r.store.changed()

	out := *period
	return &out, nil
}
