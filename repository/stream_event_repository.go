package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lbx/database"
	"lbx/models"
	"lbx/service"

	"github.com/jackc/pgx/v5"
)

const streamEventColumns = `provider, event_id, type, username, quantity, recipients, occurred_at, received_at, applied, applied_at`

// StreamEventRepository implements the StreamEventRepository interface
type StreamEventRepository struct {
	q queryable
}

var _ service.StreamEventRepository = (*StreamEventRepository)(nil)

// NewStreamEventRepository creates a new stream event repository
func NewStreamEventRepository(db *database.DB) *StreamEventRepository {
	return &StreamEventRepository{q: db.Pool}
}

func scanStreamEvent(row pgx.Row) (*models.StreamEvent, error) {
	var event models.StreamEvent
	err := row.Scan(
		&event.Provider,
		&event.EventID,
		&event.Type,
		&event.Username,
		&event.Quantity,
		&event.Recipients,
		&event.OccurredAt,
		&event.ReceivedAt,
		&event.Applied,
		&event.AppliedAt,
	)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// Record stores the event unless (provider, event_id) already exists
func (r *StreamEventRepository) Record(ctx context.Context, event *models.StreamEvent) (*models.StreamEvent, bool, error) {
	recipients := event.Recipients
	if recipients == nil {
		recipients = []string{}
	}

	query := `
		INSERT INTO stream_events (provider, event_id, type, username, quantity, recipients, occurred_at, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (provider, event_id) DO NOTHING
		RETURNING ` + streamEventColumns

	stored, err := scanStreamEvent(r.q.QueryRow(ctx, query,
		event.Provider,
		event.EventID,
		string(event.Type),
		event.Username,
		event.Quantity,
		recipients,
		event.OccurredAt,
		event.ReceivedAt,
	))
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to record event %s/%s: %w", event.Provider, event.EventID, err)
	}

	existing, err := scanStreamEvent(r.q.QueryRow(ctx,
		`SELECT `+streamEventColumns+` FROM stream_events WHERE provider = $1 AND event_id = $2`,
		event.Provider, event.EventID,
	))
	if err != nil {
		return nil, false, fmt.Errorf("failed to load event %s/%s: %w", event.Provider, event.EventID, err)
	}
	return existing, false, nil
}

// Claim flips applied from false to true. Only the caller whose update matched gets true.
func (r *StreamEventRepository) Claim(ctx context.Context, provider, eventID string, at time.Time) (bool, error) {
	query := `
		UPDATE stream_events SET applied = TRUE, applied_at = $3
		WHERE provider = $1 AND event_id = $2 AND applied = FALSE
	`
	tag, err := r.q.Exec(ctx, query, provider, eventID, at)
	if err != nil {
		return false, fmt.Errorf("failed to claim event %s/%s: %w", provider, eventID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Release returns a claimed event to the unapplied state
func (r *StreamEventRepository) Release(ctx context.Context, provider, eventID string) error {
	query := `UPDATE stream_events SET applied = FALSE, applied_at = NULL WHERE provider = $1 AND event_id = $2`
	if _, err := r.q.Exec(ctx, query, provider, eventID); err != nil {
		return fmt.Errorf("failed to release event %s/%s: %w", provider, eventID, err)
	}
	return nil
}

// Recent returns the most recently received events
func (r *StreamEventRepository) Recent(ctx context.Context, limit int) ([]*models.StreamEvent, error) {
	query := `
		SELECT ` + streamEventColumns + `
		FROM stream_events
		ORDER BY received_at DESC, event_id DESC
		LIMIT $1
	`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent events: %w", err)
	}
	defer rows.Close()

	recent := make([]*models.StreamEvent, 0)
	for rows.Next() {
		event, err := scanStreamEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		recent = append(recent, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return recent, nil
}
