package memory

import (
	"context"
	"sort"

	"lbx/models"
	"lbx/service"
)

// PromoRepository implements service.PromoRepository on a Store
type PromoRepository struct {
	store *Store
}

var _ service.PromoRepository = (*PromoRepository)(nil)

// NewPromoRepository creates a new promo repository
func NewPromoRepository(store *Store) *PromoRepository {
	return &PromoRepository{store: store}
}

// Create inserts a new code
func (r *PromoRepository) Create(ctx context.Context, code *models.PromoCode) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.state.Promos[code.Code]; exists {
		return service.ErrDuplicateCode
	}

	stored := *code
	r.store.state.Promos[code.Code] = &stored
	r.store.changed()
	return nil
}

// Get retrieves a code, returning nil if not found
func (r *PromoRepository) Get(ctx context.Context, code string) (*models.PromoCode, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	promo, ok := r.store.state.Promos[code]
	if !ok {
		return nil, nil
	}
	out := *promo
	return &out, nil
}

// List returns codes newest first, optionally filtered by active state
func (r *PromoRepository) List(ctx context.Context, active *bool, limit int) ([]*models.PromoCode, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	codes := make([]*models.PromoCode, 0, len(r.store.state.Promos))
	for _, promo := range r.store.state.Promos {
		if active != nil && promo.Active != *active {
			continue
		}
		out := *promo
		codes = append(codes, &out)
	}

	sort.Slice(codes, func(i, j int) bool {
		if codes[i].CreatedAt.Equal(codes[j].CreatedAt) {
			return codes[i].Code < codes[j].Code
		}
		return codes[i].CreatedAt.After(codes[j].CreatedAt)
	})
	if limit > 0 && len(codes) > limit {
		codes = codes[:limit]
	}
	return codes, nil
}

// Disable marks a code inactive, returning nil if not found
func (r *PromoRepository) Disable(ctx context.Context, code string) (*models.PromoCode, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	promo, ok := r.store.state.Promos[code]
	if !ok {
		return nil, nil
	}
	promo.Active = false
	promo.UpdatedAt = r.store.now().UTC()
	r.store.changed()

	out := *promo
	return &out, nil
}

// CountRedemptions counts redemptions of code by username
func (r *PromoRepository) CountRedemptions(ctx context.Context, code, username string) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	count := 0
	for _, redemption := range r.store.state.Redemptions {
		if redemption.Code == code && redemption.Username == username {
			count++
		}
	}
	return count, nil
}

// InsertRedemption records a redemption, unique per code, username and seq
func (r *PromoRepository) InsertRedemption(ctx context.Context, redemption *models.PromoRedemption) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	key := redemptionKey(redemption.Code, redemption.Username, redemption.Seq)
	if _, exists := r.store.redemptionKeys[key]; exists {
		return service.ErrAlreadyRedeemed
	}

	stored := *redemption
	r.store.state.Redemptions[redemption.ID] = &stored
	r.store.redemptionKeys[key] = redemption.ID
	r.store.changed()
	return nil
}

// DeleteRedemption removes a redemption by ID
func (r *PromoRepository) DeleteRedemption(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	redemption, ok := r.store.state.Redemptions[id]
	if !ok {
		return nil
	}
	delete(r.store.redemptionKeys, redemptionKey(redemption.Code, redemption.Username, redemption.Seq))
	delete(r.store.state.Redemptions, id)
	r.store.changed()
	return nil
}

// IncrementRedeemed increments the redeemed count while it is below the maximum
func (r *PromoRepository) IncrementRedeemed(ctx context.Context, code string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	promo, ok := r.store.state.Promos[code]
	if !ok || promo.RedeemedCount >= promo.MaxRedemptions {
		return false, nil
	}
	promo.RedeemedCount++
	promo.UpdatedAt = r.store.now().UTC()
	r.store.changed()
	return true, nil
}

// DecrementRedeemed undoes one increment, never going below zero
func (r *PromoRepository) DecrementRedeemed(ctx context.Context, code string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	promo, ok := r.store.state.Promos[code]
	if !ok || promo.RedeemedCount == 0 {
		return nil
	}
	promo.RedeemedCount--
	promo.UpdatedAt = r.store.now().UTC()
	r.store.changed()
	return nil
}

// RedemptionsByUser returns the most recent redemptions of an account
func (r *PromoRepository) RedemptionsByUser(ctx context.Context, username string, limit int) ([]*models.PromoRedemption, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	redemptions := make([]*models.PromoRedemption, 0)
	for _, redemption := range r.store.state.Redemptions {
		if redemption.Username == username {
			out := *redemption
			redemptions = append(redemptions, &out)
		}
	}

	sort.Slice(redemptions, func(i, j int) bool {
		if redemptions[i].CreatedAt.Equal(redemptions[j].CreatedAt) {
			return redemptions[i].ID < redemptions[j].ID
		}
		return redemptions[i].CreatedAt.After(redemptions[j].CreatedAt)
	})
	if limit > 0 && len(redemptions) > limit {
		redemptions = redemptions[:limit]
	}
	return redemptions, nil
}
