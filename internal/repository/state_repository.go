package repository

import (
	"context"

	"github.com/FlemingJohn/FlexiGift/internal/model"
)

// StateRepository defines the interface for the singleton ledger state:
// owner, backing asset and pause flag.
type StateRepository interface {
	// Initialize stores the ledger state exactly once.
	// Returns ErrAlreadyInitialized on any subsequent call.
	Initialize(ctx context.Context, state *model.LedgerState) error

	// Get retrieves the ledger state.
	// Returns ErrNotInitialized when Initialize has never run.
	Get(ctx context.Context) (*model.LedgerState, error)

	// SetPaused flips the operational gate
	SetPaused(ctx context.Context, paused bool) error
}
