package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/FlemingJohn/FlexiGift/internal/model"
)

// mongodbMerchantRepository implements MerchantRepository using MongoDB
type mongodbMerchantRepository struct {
	collection *mongo.Collection
	counters   *mongo.Collection
}

// NewMerchantRepository creates a new MongoDB-based merchant repository
func NewMerchantRepository(db *mongo.Database) MerchantRepository {
	return &mongodbMerchantRepository{
		collection: db.Collection("merchants"),
		counters:   db.Collection("counters"),
	}
}

// NextID allocates the next merchant id via an atomic counter increment
func (r *mongodbMerchantRepository) NextID(ctx context.Context) (int64, error) {
	return nextCounter(ctx, r.counters, "merchants")
}

// Create stores a new merchant entry
func (r *mongodbMerchantRepository) Create(ctx context.Context, merchant *model.Merchant) error {
	_, err := r.collection.InsertOne(ctx, merchant)
	return err
}

// GetByID retrieves a merchant by id, returning (nil, nil) when unknown
func (r *mongodbMerchantRepository) GetByID(ctx context.Context, id int64) (*model.Merchant, error) {
	var merchant model.Merchant
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&merchant)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}

	return &merchant, nil
}
