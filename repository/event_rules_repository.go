package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"lbx/database"
	"lbx/models"
	"lbx/service"

	"github.com/jackc/pgx/v5"
)

const eventRulesKey = "main"

// EventRulesRepository implements the EventRulesRepository interface
type EventRulesRepository struct {
	q queryable
}

var _ service.EventRulesRepository = (*EventRulesRepository)(nil)

// NewEventRulesRepository creates a new event rules repository
func NewEventRulesRepository(db *database.DB) *EventRulesRepository {
	return &EventRulesRepository{q: db.Pool}
}

// Get returns the stored rules, or nil when none were saved
func (r *EventRulesRepository) Get(ctx context.Context) (*models.EventRules, error) {
	var raw []byte
	err := r.q.QueryRow(ctx, `SELECT rules FROM event_rules WHERE key = $1`, eventRulesKey).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event rules: %w", err)
	}

	var rules models.EventRules
	if err := json.Unmarshal(raw, &rules); err != nil {
		return nil, fmt.Errorf("failed to decode event rules: %w", err)
	}
	return &rules, nil
}

// Save replaces the stored rules
func (r *EventRulesRepository) Save(ctx context.Context, rules *models.EventRules) error {
	raw, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("failed to encode event rules: %w", err)
	}

	query := `
		INSERT INTO event_rules (key, rules, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE
		SET rules = EXCLUDED.rules, updated_at = NOW()
	`
	if _, err := r.q.Exec(ctx, query, eventRulesKey, raw); err != nil {
		return fmt.Errorf("failed to save event rules: %w", err)
	}
	return nil
}
