package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlemingJohn/FlexiGift/internal/model"
	apperrors "github.com/FlemingJohn/FlexiGift/pkg/errors"
)

func seedCard(t *testing.T, repo GiftCardRepository, balance int64) int64 {
	t.Helper()
	ctx := context.Background()

	id, err := repo.NextID(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, &model.GiftCard{
		ID:               id,
		Giver:            "alice",
		Amount:           balance,
		RemainingBalance: balance,
		ExpiresAt:        time.Now().Add(24 * time.Hour),
		IsActive:         true,
		CreatedAt:        time.Now(),
		AllowedMerchants: []int64{1},
	}))
	return id
}

func TestMemoryApplyRedemption(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryBackend().GiftCards()
	id := seedCard(t, repo, 100)

	remaining, err := repo.ApplyRedemption(ctx, id, 60)
	require.NoError(t, err)
	assert.Equal(t, int64(40), remaining)

	card, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, card.IsActive)

	// exceeding the balance fails the guarded update
	_, err = repo.ApplyRedemption(ctx, id, 41)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientBalance)

	// draining the balance deactivates the card in the same update
	remaining, err = repo.ApplyRedemption(ctx, id, 40)
	require.NoError(t, err)
	assert.Zero(t, remaining)

	card, err = repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, card.IsActive)

	_, err = repo.ApplyRedemption(ctx, id, 1)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientBalance)
}

func TestMemoryApplyRefund(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryBackend().GiftCards()
	id := seedCard(t, repo, 75)

	previous, err := repo.ApplyRefund(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(75), previous)

	// refunds are idempotent at the storage level
	previous, err = repo.ApplyRefund(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, previous)

	_, err = repo.ApplyRefund(ctx, 42)
	assert.ErrorIs(t, err, apperrors.ErrGiftCardNotFound)
}

func TestMemoryTransactionRollback(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	repo := backend.GiftCards()
	id := seedCard(t, repo, 100)

	boom := errors.New("boom")
	err := backend.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := repo.ApplyRedemption(ctx, id, 30); err != nil {
			return err
		}
		if _, err := repo.NextID(ctx); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	// both the decrement and the id allocation were rolled back
	card, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(100), card.RemainingBalance)

	next, err := repo.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, id+1, next)
}

func TestMemoryStateInitializeOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryBackend().State()

	_, err := repo.Get(ctx)
	assert.ErrorIs(t, err, apperrors.ErrNotInitialized)
	assert.ErrorIs(t, repo.SetPaused(ctx, true), apperrors.ErrNotInitialized)

	require.NoError(t, repo.Initialize(ctx, &model.LedgerState{Owner: "owner", Asset: "USDC"}))
	err = repo.Initialize(ctx, &model.LedgerState{Owner: "mallory", Asset: "USDC"})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyInitialized)

	require.NoError(t, repo.SetPaused(ctx, true))
	state, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.True(t, state.Paused)
	assert.Equal(t, "owner", state.Owner)
}

func TestMemoryMerchants(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryBackend().Merchants()

	id, err := repo.NextID(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, &model.Merchant{ID: id, Name: "Acme", CreatedAt: time.Now()}))

	merchant, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, merchant)
	assert.Equal(t, "Acme", merchant.Name)

	merchant, err = repo.GetByID(ctx, 99)
	require.NoError(t, err)
	assert.Nil(t, merchant)
}
