package memory

import (
	"context"
	"sort"
	"time"

	"lbx/models"
	"lbx/service"
)

// StreamEventRepository implements service.StreamEventRepository on a Store
type StreamEventRepository struct {
	store *Store
}

var _ service.StreamEventRepository = (*StreamEventRepository)(nil)

// NewStreamEventRepository creates a new stream event repository
func NewStreamEventRepository(store *Store) *StreamEventRepository {
	return &StreamEventRepository{store: store}
}

func copyStreamEvent(event *models.StreamEvent) *models.StreamEvent {
	out := *event
	out.Recipients = append([]string(nil), event.Recipients...)
	return &out
}

// Record stores the event if it is new
func (r *StreamEventRepository) Record(ctx context.Context, event *models.StreamEvent) (*models.StreamEvent, bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	key := streamEventKey(event.Provider, event.EventID)
	if existing, ok := r.store.state.StreamEvents[key]; ok {
		return copyStreamEvent(existing), false, nil
	}

	stored := copyStreamEvent(event)
	stored.Applied = false
	stored.AppliedAt = nil
	r.store.state.StreamEvents[key] = stored
	r.store.changed()
	return copyStreamEvent(stored), true, nil
}

// Claim flips the event to applied, returning false when it is missing or already applied
func (r *StreamEventRepository) Claim(ctx context.Context, provider, eventID string, at time.Time) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	event, ok := r.store.state.StreamEvents[streamEventKey(provider, eventID)]
	if !ok || event.Applied {
		return false, nil
	}
	appliedAt := at
	event.Applied = true
	event.AppliedAt = &appliedAt
	r.store.changed()
	return true, nil
}

// Release returns a claimed event to the unapplied state
func (r *StreamEventRepository) Release(ctx context.Context, provider, eventID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	event, ok := r.store.state.StreamEvents[streamEventKey(provider, eventID)]
	if !ok {
		return nil
	}
	event.Applied = false
	event.AppliedAt = nil
	r.store.changed()
	return nil
}

// Recent returns the most recently received events
func (r *StreamEventRepository) Recent(ctx context.Context, limit int) ([]*models.StreamEvent, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	recent := make([]*models.StreamEvent, 0, len(r.store.state.StreamEvents))
	for _, event := range r.store.state.StreamEvents {
		recent = append(recent, copyStreamEvent(event))
	}

	sort.Slice(recent, func(i, j int) bool {
		if recent[i].ReceivedAt.Equal(recent[j].ReceivedAt) {
			return recent[i].EventID > recent[j].EventID
		}
		return recent[i].ReceivedAt.After(recent[j].ReceivedAt)
	})
	if limit > 0 && len(recent) > limit {
		recent = recent[:limit]
	}
	return recent, nil
}
