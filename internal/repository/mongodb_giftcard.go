package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/FlemingJohn/FlexiGift/internal/model"
	apperrors "github.com/FlemingJohn/FlexiGift/pkg/errors"
)

// mongodbGiftCardRepository implements GiftCardRepository using MongoDB
type mongodbGiftCardRepository struct {
	collection *mongo.Collection
	counters   *mongo.Collection
}

// NewGiftCardRepository creates a new MongoDB-based gift card repository
func NewGiftCardRepository(db *mongo.Database) GiftCardRepository {
	return &mongodbGiftCardRepository{
		collection: db.Collection("giftcards"),
		counters:   db.Collection("counters"),
	}
}

// NextID allocates the next gift card id via an atomic counter increment
func (r *mongodbGiftCardRepository) NextID(ctx context.Context) (int64, error) {
	return nextCounter(ctx, r.counters, "giftcards")
}

// Create stores a new gift card record
func (r *mongodbGiftCardRepository) Create(ctx context.Context, card *model.GiftCard) error {
	_, err := r.collection.InsertOne(ctx, card)
	return err
}

// GetByID retrieves a gift card by its id
func (r *mongodbGiftCardRepository) GetByID(ctx context.Context, id int64) (*model.GiftCard, error) {
	var card model.GiftCard
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&card)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.ErrGiftCardNotFound
		}
		return nil, err
	}

	return &card, nil
}

// ApplyRedemption atomically decrements the remaining balance and flips
// is_active when the balance hits zero, in a single guarded update
func (r *mongodbGiftCardRepository) ApplyRedemption(ctx context.Context, id int64, amount int64) (int64, error) {
	update := mongo.Pipeline{
		bson.D{{Key: "$set", Value: bson.M{
			"remaining_balance": bson.M{"$subtract": bson.A{"$remaining_balance", amount}},
		}}},
		bson.D{{Key: "$set", Value: bson.M{
			"is_active": bson.M{"$gt": bson.A{"$remaining_balance", 0}},
		}}},
	}

	result := r.collection.FindOneAndUpdate(
		ctx,
		bson.M{
			"_id":               id,
			"is_active":         true,
			"remaining_balance": bson.M{"$gte": amount}, // only update if balance covers the amount
		},
		update,
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetUpsert(false),
	)

	if result.Err() != nil {
		if result.Err() == mongo.ErrNoDocuments {
			return 0, apperrors.ErrInsufficientBalance
		}
		return 0, result.Err()
	}

	var card model.GiftCard
	if err := result.Decode(&card); err != nil {
		return 0, err
	}

	return card.RemainingBalance, nil
}

// ApplyRefund zeroes the balance and deactivates the card, returning the
// balance held before the update
func (r *mongodbGiftCardRepository) ApplyRefund(ctx context.Context, id int64) (int64, error) {
	result := r.collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"remaining_balance": int64(0), "is_active": false}},
		options.FindOneAndUpdate().
			SetReturnDocument(options.Before).
			SetUpsert(false),
	)

	if result.Err() != nil {
		if result.Err() == mongo.ErrNoDocuments {
			return 0, apperrors.ErrGiftCardNotFound
		}
		return 0, result.Err()
	}

	var card model.GiftCard
	if err := result.Decode(&card); err != nil {
		return 0, err
	}

	return card.RemainingBalance, nil
}

// nextCounter atomically increments and returns the named sequence.
// The first allocated value is 1.
func nextCounter(ctx context.Context, counters *mongo.Collection, name string) (int64, error) {
	result := counters.FindOneAndUpdate(
		ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetUpsert(true),
	)
	if result.Err() != nil {
		return 0, result.Err()
	}

	var doc struct {
		Seq int64 `bson:"seq"`
	}
	if err := result.Decode(&doc); err != nil {
		return 0, err
	}

	return doc.Seq, nil
}
