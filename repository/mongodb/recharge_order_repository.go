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

// RechargeOrderRepository implements the RechargeOrderRepository interface
type RechargeOrderRepository struct {
	collection *mongo.Collection
}

var _ service.RechargeOrderRepository = (*RechargeOrderRepository)(nil)

// NewRechargeOrderRepository creates a new recharge order repository
func NewRechargeOrderRepository(db *mongo.Database) *RechargeOrderRepository {
	return &RechargeOrderRepository{collection: db.Collection(RechargeOrdersCollection)}
}

// Create inserts a new order
func (r *RechargeOrderRepository) Create(ctx context.Context, order *models.RechargeOrder) error {
	doc, err := newRechargeOrderDoc(order)
	if err != nil {
		return err
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create recharge order %s: %w", order.ID, err)
	}
	return nil
}

// Get retrieves an order, returning nil if not found
func (r *RechargeOrderRepository) Get(ctx context.Context, id string) (*models.RechargeOrder, error) {
	var doc rechargeOrderDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recharge order %s: %w", id, err)
	}
	return doc.toModel()
}

// List returns orders newest first; empty status or username match all
func (r *RechargeOrderRepository) List(ctx context.Context, status models.OrderStatus, username string, limit int) ([]*models.RechargeOrder, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = string(status)
	}
	if username != "" {
		filter["username"] = username
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query recharge orders: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []rechargeOrderDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode recharge orders: %w", err)
	}

	orders := make([]*models.RechargeOrder, 0, len(docs))
	for i := range docs {
		order, err := docs[i].toModel()
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// SumAmountsSince sums the amounts of matching orders created at or after since
func (r *RechargeOrderRepository) SumAmountsSince(ctx context.Context, username string, since time.Time, statuses []models.OrderStatus) (int64, error) {
	names := make([]string, len(statuses))
	for i, status := range statuses {
		names[i] = string(status)
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"username":  username,
			"createdAt": bson.M{"$gte": since},
			"status":    bson.M{"$in": names},
		}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$amount"}}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("failed to sum recharge orders for %s: %w", username, err)
	}
	defer cursor.Close(ctx)

	var result []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &result); err != nil {
		return 0, fmt.Errorf("failed to decode recharge sum for %s: %w", username, err)
	}
	if len(result) == 0 {
		return 0, nil
	}
	return result[0].Total, nil
}

// Decide applies decision when the order is still in status from
func (r *RechargeOrderRepository) Decide(ctx context.Context, id string, from models.OrderStatus, decision models.OrderDecision) (*models.RechargeOrder, error) {
	set := bson.M{
		"status":    string(decision.Status),
		"decidedBy": decision.By,
		"note":      decision.Note,
	}
	update := bson.M{"$set": set}
	if decision.At.IsZero() {
		update["$unset"] = bson.M{"decidedAt": ""}
	} else {
		set["decidedAt"] = decision.At
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc rechargeOrderDoc
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id, "status": string(from)}, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decide recharge order %s: %w", id, err)
	}
	return doc.toModel()
}
