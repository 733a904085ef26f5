package memory

import (
	"context"

	"lbx/models"
	"lbx/service"
)

// EventRulesRepository implements service.EventRulesRepository on a Store
type EventRulesRepository struct {
	store *Store
}

var _ service.EventRulesRepository = (*EventRulesRepository)(nil)

// NewEventRulesRepository creates a new event rules repository
func NewEventRulesRepository(store *Store) *EventRulesRepository {
	return &EventRulesRepository{store: store}
}

// Get returns the stored rules, or nil when none were saved
func (r *EventRulesRepository) Get(ctx context.Context) (*models.EventRules, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if r.store.state.Rules == nil {
		return nil, nil
	}
	out := *r.store.state.Rules
	return &out, nil
}

// Save replaces the stored rules
func (r *EventRulesRepository) Save(ctx context.Context, rules *models.EventRules) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	stored := *rules
	r.store.state.Rules = &stored
	r.store.changed()
	return nil
}
