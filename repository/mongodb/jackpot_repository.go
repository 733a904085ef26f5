package mongodb

import (
	"context"
	"fmt"
	"time"

	"lbx/models"
	"lbx/service"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// JackpotRepository implements the JackpotRepository interface
type JackpotRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

var _ service.JackpotRepository = (*JackpotRepository)(nil)

// NewJackpotRepository creates a new jackpot repository
func NewJackpotRepository(db *mongo.Database) *JackpotRepository {
	return &JackpotRepository{
		collection: db.Collection(JackpotPeriodsCollection),
		now:        time.Now,
	}
}

func (r *JackpotRepository) upsert(ctx context.Context, month string, update interface{}) (*models.JackpotPeriod, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc jackpotDoc
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": month}, update, opts).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to update jackpot period %s: %w", month, err)
	}
	return doc.toModel()
}

// GetOrCreate returns the period for month, creating an empty one if absent
func (r *JackpotRepository) GetOrCreate(ctx context.Context, month string) (*models.JackpotPeriod, error) {
	zero, err := toDecimal128(decimal.Zero)
	if err != nil {
		return nil, err
	}
	return r.upsert(ctx, month, bson.M{"$setOnInsert": bson.M{
		"extra":     zero,
		"updatedAt": r.now().UTC(),
	}})
}

// AddExtra adds delta to the stored extra. The zero clamp is evaluated by the server
// inside the same update.
func (r *JackpotRepository) AddExtra(ctx context.Context, month string, delta decimal.Decimal) (*models.JackpotPeriod, error) {
	zero, err := toDecimal128(decimal.Zero)
	if err != nil {
		return nil, err
	}
	amount, err := toDecimal128(delta)
	if err != nil {
		return nil, err
	}

	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"extra": bson.M{"$max": bson.A{
				zero,
				bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$extra", zero}}, amount}},
			}},
			"updatedAt": r.now().UTC(),
		}}},
	}
	return r.upsert(ctx, month, pipeline)
}

// Reset sets the override start and clears the extra
func (r *JackpotRepository) Reset(ctx context.Context, month string, at time.Time) (*models.JackpotPeriod, error) {
	zero, err := toDecimal128(decimal.Zero)
	if err != nil {
		return nil, err
	}
	return r.upsert(ctx, month, bson.M{"$set": bson.M{
		"overrideStart": at,
		"extra":         zero,
		"updatedAt":     r.now().UTC(),
	}})
}
