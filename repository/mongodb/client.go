// Package mongodb implements the repositories on MongoDB. Each wallet is one
// document carrying its embedded ledger so balance and ledger change together.
package mongodb

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names
const (
	WalletsCollection          = "wallets"
	JackpotPeriodsCollection   = "jackpot_periods"
	PromoCodesCollection       = "promo_codes"
	PromoRedemptionsCollection = "promo_redemptions"
	StreamEventsCollection     = "stream_events"
	EventRulesCollection       = "event_rules"
	RechargeOrdersCollection   = "recharge_orders"
)

// Client represents a MongoDB client bound to one database
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewClient connects to uri and pings the server within connectTimeout
func NewClient(ctx context.Context, uri, database string, connectTimeout time.Duration) (*Client, error) {
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}

	clientOptions := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(connectTimeout).
		SetServerSelectionTimeout(connectTimeout).
		SetAppName("lbx")

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	log.WithField("database", database).Info("Connected to MongoDB")

	return &Client{
		client: client,
		db:     client.Database(database),
	}, nil
}

// Database returns the bound database
func (c *Client) Database() *mongo.Database {
	return c.db
}

// Disconnect disconnects from MongoDB
func (c *Client) Disconnect(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// EnsureIndexes creates the unique and lookup indexes the repositories rely on
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		PromoCodesCollection: {
			{Keys: bson.D{{Key: "active", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		PromoRedemptionsCollection: {
			{
				Keys:    bson.D{{Key: "code", Value: 1}, {Key: "username", Value: 1}, {Key: "seq", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("code_username_seq_unique"),
			},
			{Keys: bson.D{{Key: "username", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		StreamEventsCollection: {
			{Keys: bson.D{{Key: "receivedAt", Value: -1}}},
		},
		RechargeOrdersCollection: {
			{Keys: bson.D{{Key: "username", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
	}

	for collection, specs := range indexes {
		if _, err := db.Collection(collection).Indexes().CreateMany(ctx, specs); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", collection, err)
		}
	}
	return nil
}
