package repository

import (
	"context"

	"github.com/FlemingJohn/FlexiGift/internal/model"
)

// MerchantRepository defines the interface for merchant registry operations
type MerchantRepository interface {
	// NextID allocates the next monotonic merchant id, starting at 1
	NextID(ctx context.Context) (int64, error)

	// Create stores a new merchant entry. Names are not required to be
	// unique.
	Create(ctx context.Context, merchant *model.Merchant) error

	// GetByID retrieves a merchant by id. Returns (nil, nil) when the id
	// is unknown, mirroring the optional-name lookup contract.
	GetByID(ctx context.Context, id int64) (*model.Merchant, error)
}
