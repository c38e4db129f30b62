package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/FlemingJohn/FlexiGift/internal/model"
	apperrors "github.com/FlemingJohn/FlexiGift/pkg/errors"
)

const stateDocID = "ledger"

// mongodbStateRepository implements StateRepository using a singleton document
type mongodbStateRepository struct {
	collection *mongo.Collection
}

// NewStateRepository creates a new MongoDB-based state repository
func NewStateRepository(db *mongo.Database) StateRepository {
	return &mongodbStateRepository{
		collection: db.Collection("state"),
	}
}

// Initialize stores the ledger state exactly once. The fixed document id
// turns a second initialization into a duplicate key error.
func (r *mongodbStateRepository) Initialize(ctx context.Context, state *model.LedgerState) error {
	state.ID = stateDocID
	_, err := r.collection.InsertOne(ctx, state)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.ErrAlreadyInitialized
		}
		return err
	}

	return nil
}

// Get retrieves the ledger state
func (r *mongodbStateRepository) Get(ctx context.Context) (*model.LedgerState, error) {
	var state model.LedgerState
	err := r.collection.FindOne(ctx, bson.M{"_id": stateDocID}).Decode(&state)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.ErrNotInitialized
		}
		return nil, err
	}

	return &state, nil
}

// SetPaused flips the operational gate
func (r *mongodbStateRepository) SetPaused(ctx context.Context, paused bool) error {
	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": stateDocID},
		bson.M{"$set": bson.M{"paused": paused}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return apperrors.ErrNotInitialized
	}

	return nil
}
