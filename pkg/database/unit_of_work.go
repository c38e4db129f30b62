package database

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
)

// TxRunner executes a function atomically: if the function returns an error,
// none of the storage writes it performed become visible.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// UnitOfWork manages MongoDB transactions
type UnitOfWork struct {
	client *mongo.Client
}

// NewUnitOfWork creates a new Unit of Work instance
func NewUnitOfWork(client *mongo.Client) *UnitOfWork {
	return &UnitOfWork{
		client: client,
	}
}

// WithTransaction executes a function within a MongoDB transaction.
// The session context is passed through as a plain context.Context so
// repositories stay unaware of the transaction machinery.
func (uow *UnitOfWork) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := uow.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	// Use session.WithTransaction which handles transaction lifecycle automatically
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})

	return err
}
