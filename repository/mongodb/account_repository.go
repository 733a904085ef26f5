package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"lbx/models"
	"lbx/service"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AccountRepository implements the AccountRepository interface
type AccountRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

var _ service.AccountRepository = (*AccountRepository)(nil)

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *mongo.Database) *AccountRepository {
	return &AccountRepository{
		collection: db.Collection(WalletsCollection),
		now:        time.Now,
	}
}

func (r *AccountRepository) ensure(ctx context.Context, username string) error {
	now := r.now().UTC()
	update := bson.M{"$setOnInsert": bson.M{
		"balance":   int64(0),
		"seq":       int64(0),
		"ledger":    bson.A{},
		"createdAt": now,
		"updatedAt": now,
	}}

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": username}, update, options.Update().SetUpsert(true))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("failed to create wallet %s: %w", username, err)
	}
	return nil
}

// applyPipeline bumps the balance and sequence, then appends the entry stamped with
// the updated values. Both stages run inside one document update.
func applyPipeline(entry models.LedgerEntry, now time.Time, extra bson.M) mongo.Pipeline {
	set := bson.M{
		"balance":   bson.M{"$add": bson.A{"$balance", entry.Delta}},
		"seq":       bson.M{"$add": bson.A{"$seq", int64(1)}},
		"updatedAt": now,
	}
	for k, v := range extra {
		set[k] = v
	}

	appended := bson.M{
		"id":           "$seq",
		"ts":           entry.Timestamp,
		"delta":        entry.Delta,
		"reason":       bson.M{"$literal": entry.Reason},
		"ref":          bson.M{"$literal": entry.Ref},
		"balanceAfter": "$balance",
	}

	return mongo.Pipeline{
		{{Key: "$set", Value: set}},
		{{Key: "$set", Value: bson.M{
			"ledger": bson.M{"$concatArrays": bson.A{
				bson.M{"$ifNull": bson.A{"$ledger", bson.A{}}},
				bson.A{appended},
			}},
		}}},
	}
}

func (r *AccountRepository) update(ctx context.Context, filter bson.M, pipeline mongo.Pipeline) (*walletDoc, error) {
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"ledger": 0})

	var doc walletDoc
	if err := r.collection.FindOneAndUpdate(ctx, filter, pipeline, opts).Decode(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *AccountRepository) get(ctx context.Context, username string) (*models.Account, error) {
	var doc walletDoc
	opts := options.FindOne().SetProjection(bson.M{"ledger": 0})
	if err := r.collection.FindOne(ctx, bson.M{"_id": username}, opts).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to get wallet %s: %w", username, err)
	}
	return doc.toModel(), nil
}

// GetOrCreate returns the account, creating it with a zero balance if absent
func (r *AccountRepository) GetOrCreate(ctx context.Context, username string) (*models.Account, error) {
	if err := r.ensure(ctx, username); err != nil {
		return nil, err
	}
	return r.get(ctx, username)
}

// ApplyDelta updates the balance and appends the entry in one document update.
// The non-negative guard is part of the filter.
func (r *AccountRepository) ApplyDelta(ctx context.Context, username string, entry models.LedgerEntry, requireNonNegative bool) (*models.Account, error) {
	if err := r.ensure(ctx, username); err != nil {
		return nil, err
	}

	filter := bson.M{"_id": username}
	if requireNonNegative {
		filter["balance"] = bson.M{"$gte": -entry.Delta}
	}

	doc, err := r.update(ctx, filter, applyPipeline(entry, r.now().UTC(), nil))
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, service.ErrInsufficientFunds
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update balance for %s: %w", username, err)
	}
	return doc.toModel(), nil
}

// GrantSignupBonus applies the bonus entry only while signupBonusGrantedAt is unset
func (r *AccountRepository) GrantSignupBonus(ctx context.Context, username string, entry models.LedgerEntry) (*models.Account, bool, error) {
	if err := r.ensure(ctx, username); err != nil {
		return nil, false, err
	}

	filter := bson.M{"_id": username, "signupBonusGrantedAt": nil}
	pipeline := applyPipeline(entry, r.now().UTC(), bson.M{"signupBonusGrantedAt": entry.Timestamp})

	doc, err := r.update(ctx, filter, pipeline)
	if errors.Is(err, mongo.ErrNoDocuments) {
		account, err := r.get(ctx, username)
		if err != nil {
			return nil, false, err
		}
		return account, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to grant signup bonus to %s: %w", username, err)
	}
	return doc.toModel(), true, nil
}

// Ledger returns up to limit entries, most recent first
func (r *AccountRepository) Ledger(ctx context.Context, username string, limit int) ([]*models.LedgerEntry, error) {
	opts := options.FindOne().SetProjection(bson.M{"ledger": bson.M{"$slice": -limit}})

	var doc walletDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": username}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return []*models.LedgerEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger for %s: %w", username, err)
	}

	entries := make([]*models.LedgerEntry, 0, len(doc.Ledger))
	for i := len(doc.Ledger) - 1; i >= 0; i-- {
		entries = append(entries, doc.Ledger[i].toModel(username))
	}
	return entries, nil
}

// SumDeltasSince sums deltas of entries at or after since whose reason starts with reasonPrefix
func (r *AccountRepository) SumDeltasSince(ctx context.Context, username string, since time.Time, reasonPrefix string) (int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": username}}},
		{{Key: "$unwind", Value: "$ledger"}},
		{{Key: "$match", Value: bson.M{
			"ledger.ts":     bson.M{"$gte": since},
			"ledger.reason": bson.M{"$regex": "^" + regexp.QuoteMeta(reasonPrefix)},
		}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$ledger.delta"}}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("failed to sum ledger for %s: %w", username, err)
	}
	defer cursor.Close(ctx)

	var result []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &result); err != nil {
		return 0, fmt.Errorf("failed to decode ledger sum for %s: %w", username, err)
	}
	if len(result) == 0 {
		return 0, nil
	}
	return result[0].Total, nil
}
