package mongodb

import (
	"context"
	"errors"
	"fmt"

	"lbx/models"
	"lbx/service"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const eventRulesID = "main"

// EventRulesRepository implements the EventRulesRepository interface
type EventRulesRepository struct {
	collection *mongo.Collection
}

var _ service.EventRulesRepository = (*EventRulesRepository)(nil)

// NewEventRulesRepository creates a new event rules repository
func NewEventRulesRepository(db *mongo.Database) *EventRulesRepository {
	return &EventRulesRepository{collection: db.Collection(EventRulesCollection)}
}

// Get returns the stored rules, or nil when none were saved
func (r *EventRulesRepository) Get(ctx context.Context) (*models.EventRules, error) {
	var doc eventRulesDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": eventRulesID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event rules: %w", err)
	}
	return doc.toModel()
}

// Save replaces the stored rules
func (r *EventRulesRepository) Save(ctx context.Context, rules *models.EventRules) error {
	doc, err := newEventRulesDoc(eventRulesID, rules)
	if err != nil {
		return err
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"_id": eventRulesID}, doc, opts); err != nil {
		return fmt.Errorf("failed to save event rules: %w", err)
	}
	return nil
}
