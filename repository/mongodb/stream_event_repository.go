package mongodb

import (
	"context"
	"fmt"
	"time"

	"lbx/models"
	"lbx/service"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// StreamEventRepository implements the StreamEventRepository interface
type StreamEventRepository struct {
	collection *mongo.Collection
}

var _ service.StreamEventRepository = (*StreamEventRepository)(nil)

// NewStreamEventRepository creates a new stream event repository
func NewStreamEventRepository(db *mongo.Database) *StreamEventRepository {
	return &StreamEventRepository{collection: db.Collection(StreamEventsCollection)}
}

// Record inserts the event keyed by provider and event id, returning the stored
// document when it already exists
func (r *StreamEventRepository) Record(ctx context.Context, event *models.StreamEvent) (*models.StreamEvent, bool, error) {
	doc := newStreamEventDoc(event)
	_, err := r.collection.InsertOne(ctx, doc)
	if err == nil {
		return doc.toModel(), true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return nil, false, fmt.Errorf("failed to record event %s/%s: %w", event.Provider, event.EventID, err)
	}

	var existing streamEventDoc
	if err := r.collection.FindOne(ctx, bson.M{"_id": doc.Key}).Decode(&existing); err != nil {
		return nil, false, fmt.Errorf("failed to load event %s/%s: %w", event.Provider, event.EventID, err)
	}
	return existing.toModel(), false, nil
}

// Claim flips applied from false to true. Only the caller whose filter matched gets true.
func (r *StreamEventRepository) Claim(ctx context.Context, provider, eventID string, at time.Time) (bool, error) {
	filter := bson.M{
		"_id":     streamEventKey{Provider: provider, EventID: eventID},
		"applied": false,
	}
	update := bson.M{"$set": bson.M{"applied": true, "appliedAt": at}}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to claim event %s/%s: %w", provider, eventID, err)
	}
	return result.ModifiedCount == 1, nil
}

// Release returns a claimed event to the unapplied state
func (r *StreamEventRepository) Release(ctx context.Context, provider, eventID string) error {
	filter := bson.M{"_id": streamEventKey{Provider: provider, EventID: eventID}}
	update := bson.M{
		"$set":   bson.M{"applied": false},
		"$unset": bson.M{"appliedAt": ""},
	}
	if _, err := r.collection.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to release event %s/%s: %w", provider, eventID, err)
	}
	return nil
}

// Recent returns the most recently received events
func (r *StreamEventRepository) Recent(ctx context.Context, limit int) ([]*models.StreamEvent, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "receivedAt", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent events: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []streamEventDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}

	recent := make([]*models.StreamEvent, 0, len(docs))
	for i := range docs {
		recent = append(recent, docs[i].toModel())
	}
	return recent, nil
}
