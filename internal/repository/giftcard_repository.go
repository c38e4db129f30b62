package repository

import (
	"context"

	"github.com/FlemingJohn/FlexiGift/internal/model"
)

// GiftCardRepository defines the interface for gift card data operations.
// The ledger service is the only writer.
type GiftCardRepository interface {
	// NextID allocates the next monotonic gift card id. Ids start at 1 and
	// are never reused.
	NextID(ctx context.Context) (int64, error)

	// Create stores a new gift card record
	Create(ctx context.Context, card *model.GiftCard) error

	// GetByID retrieves a gift card by its id.
	// Returns ErrGiftCardNotFound when absent.
	GetByID(ctx context.Context, id int64) (*model.GiftCard, error)

	// ApplyRedemption atomically decrements the remaining balance of an
	// active card and deactivates it when the balance reaches zero.
	// Returns the new remaining balance, or ErrInsufficientBalance when
	// the guarded update matched no document.
	ApplyRedemption(ctx context.Context, id int64, amount int64) (int64, error)

	// ApplyRefund zeroes the remaining balance and deactivates the card,
	// returning the balance held before the refund.
	ApplyRefund(ctx context.Context, id int64) (int64, error)
}
