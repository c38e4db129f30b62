package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB wraps the MongoDB client and database
type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// Connect establishes a connection to MongoDB
func Connect(ctx context.Context, uri, dbName string) (*MongoDB, error) {
	clientOptions := options.Client().ApplyURI(uri)

	// Set connection timeout
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(dbName)

	mongoDB := &MongoDB{
		Client:   client,
		Database: db,
	}

	// Create indexes
	if err := mongoDB.CreateIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return mongoDB, nil
}

// CreateIndexes creates all necessary indexes for the application
func (m *MongoDB) CreateIndexes(ctx context.Context) error {
	// Index on giftcards.giver for per-giver listings and refund lookups
	giftCards := m.Database.Collection("giftcards")
	giverIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "giver", Value: 1}},
		Options: options.Index().SetName("giftcard_giver_index"),
	}
	if _, err := giftCards.Indexes().CreateOne(ctx, giverIndex); err != nil {
		return fmt.Errorf("failed to create giver index: %w", err)
	}

	// Index on giftcards.expires_at for expiry sweeps by external tooling
	expiryIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetName("giftcard_expiry_index"),
	}
	if _, err := giftCards.Indexes().CreateOne(ctx, expiryIndex); err != nil {
		return fmt.Errorf("failed to create expiry index: %w", err)
	}

	// Index on merchants.name for registry lookups by name
	merchants := m.Database.Collection("merchants")
	merchantNameIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetName("merchant_name_index"),
	}
	if _, err := merchants.Indexes().CreateOne(ctx, merchantNameIndex); err != nil {
		return fmt.Errorf("failed to create merchant name index: %w", err)
	}

	return nil
}

// Disconnect closes the MongoDB connection
func (m *MongoDB) Disconnect(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}
