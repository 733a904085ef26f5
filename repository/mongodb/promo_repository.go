package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lbx/models"
	"lbx/service"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PromoRepository implements the PromoRepository interface
type PromoRepository struct {
	codes       *mongo.Collection
	redemptions *mongo.Collection
	now         func() time.Time
}

var _ service.PromoRepository = (*PromoRepository)(nil)

// NewPromoRepository creates a new promo repository
func NewPromoRepository(db *mongo.Database) *PromoRepository {
	return &PromoRepository{
		codes:       db.Collection(PromoCodesCollection),
		redemptions: db.Collection(PromoRedemptionsCollection),
		now:         time.Now,
	}
}

// Create inserts a new code
func (r *PromoRepository) Create(ctx context.Context, code *models.PromoCode) error {
	if _, err := r.codes.InsertOne(ctx, newPromoDoc(code)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return service.ErrDuplicateCode
		}
		return fmt.Errorf("failed to create promo code %s: %w", code.Code, err)
	}
	return nil
}

// Get retrieves a code, returning nil if not found
func (r *PromoRepository) Get(ctx context.Context, code string) (*models.PromoCode, error) {
	var doc promoDoc
	err := r.codes.FindOne(ctx, bson.M{"_id": code}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get promo code %s: %w", code, err)
	}
	return doc.toModel(), nil
}

// List returns codes newest first, optionally filtered by active state
func (r *PromoRepository) List(ctx context.Context, active *bool, limit int) ([]*models.PromoCode, error) {
	filter := bson.M{}
	if active != nil {
		filter["active"] = *active
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.codes.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list promo codes: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []promoDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode promo codes: %w", err)
	}

	codes := make([]*models.PromoCode, 0, len(docs))
	for i := range docs {
		codes = append(codes, docs[i].toModel())
	}
	return codes, nil
}

// Disable marks a code inactive, returning nil if not found
func (r *PromoRepository) Disable(ctx context.Context, code string) (*models.PromoCode, error) {
	update := bson.M{"$set": bson.M{"active": false, "updatedAt": r.now().UTC()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc promoDoc
	err := r.codes.FindOneAndUpdate(ctx, bson.M{"_id": code}, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to disable promo code %s: %w", code, err)
	}
	return doc.toModel(), nil
}

// CountRedemptions counts redemptions of code by username
func (r *PromoRepository) CountRedemptions(ctx context.Context, code, username string) (int, error) {
	count, err := r.redemptions.CountDocuments(ctx, bson.M{"code": code, "username": username})
	if err != nil {
		return 0, fmt.Errorf("failed to count redemptions of %s by %s: %w", code, username, err)
	}
	return int(count), nil
}

// InsertRedemption records a redemption. The unique index on
// (code, username, seq) rejects a second insert of the same slot.
func (r *PromoRepository) InsertRedemption(ctx context.Context, redemption *models.PromoRedemption) error {
	doc := redemptionDoc{
		ID:        redemption.ID,
		Code:      redemption.Code,
		Username:  redemption.Username,
		Seq:       redemption.Seq,
		Amount:    redemption.Amount,
		CreatedAt: redemption.CreatedAt,
	}
	if _, err := r.redemptions.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return service.ErrAlreadyRedeemed
		}
		return fmt.Errorf("failed to insert redemption of %s: %w", redemption.Code, err)
	}
	return nil
}

// DeleteRedemption removes a redemption by ID
func (r *PromoRepository) DeleteRedemption(ctx context.Context, id string) error {
	if _, err := r.redemptions.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to delete redemption %s: %w", id, err)
	}
	return nil
}

// IncrementRedeemed increments the count only while it is below the maximum
func (r *PromoRepository) IncrementRedeemed(ctx context.Context, code string) (bool, error) {
	filter := bson.M{
		"_id":   code,
		"$expr": bson.M{"$lt": bson.A{"$redeemedCount", "$maxRedemptions"}},
	}
	update := bson.M{
		"$inc": bson.M{"redeemedCount": 1},
		"$set": bson.M{"updatedAt": r.now().UTC()},
	}

	result, err := r.codes.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to increment redemptions of %s: %w", code, err)
	}
	return result.ModifiedCount == 1, nil
}

// DecrementRedeemed undoes one increment, never going below zero
func (r *PromoRepository) DecrementRedeemed(ctx context.Context, code string) error {
	filter := bson.M{"_id": code, "redeemedCount": bson.M{"$gt": 0}}
	update := bson.M{
		"$inc": bson.M{"redeemedCount": -1},
		"$set": bson.M{"updatedAt": r.now().UTC()},
	}
	if _, err := r.codes.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to decrement redemptions of %s: %w", code, err)
	}
	return nil
}

// RedemptionsByUser returns the most recent redemptions of an account
func (r *PromoRepository) RedemptionsByUser(ctx context.Context, username string, limit int) ([]*models.PromoRedemption, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.redemptions.Find(ctx, bson.M{"username": username}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list redemptions of %s: %w", username, err)
	}
	defer cursor.Close(ctx)

	var docs []redemptionDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode redemptions of %s: %w", username, err)
	}

	redemptions := make([]*models.PromoRedemption, 0, len(docs))
	for i := range docs {
		redemptions = append(redemptions, docs[i].toModel())
	}
	return redemptions, nil
}
