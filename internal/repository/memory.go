package repository

import (
	"context"
	"sync"

	"github.com/FlemingJohn/FlexiGift/internal/model"
	apperrors "github.com/FlemingJohn/FlexiGift/pkg/errors"
)

// MemoryBackend holds all ledger state in process memory and doubles as a
// transaction runner: mutations inside WithTransaction are rolled back on
// error via a snapshot, giving the same all-or-nothing contract as the
// MongoDB unit of work. Used in tests and for single-process deployments.
type MemoryBackend struct {
	mu          sync.Mutex
	txMu        sync.Mutex
	cards       map[int64]model.GiftCard
	merchants   map[int64]model.Merchant
	state       *model.LedgerState
	cardSeq     int64
	merchantSeq int64
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		cards:     make(map[int64]model.GiftCard),
		merchants: make(map[int64]model.Merchant),
	}
}

// GiftCards returns the gift card repository view of the backend
func (b *MemoryBackend) GiftCards() GiftCardRepository { return &memoryGiftCardRepository{b} }

// Merchants returns the merchant repository view of the backend
func (b *MemoryBackend) Merchants() MerchantRepository { return &memoryMerchantRepository{b} }

// State returns the ledger state repository view of the backend
func (b *MemoryBackend) State() StateRepository { return &memoryStateRepository{b} }

type memorySnapshot struct {
	cards       map[int64]model.GiftCard
	merchants   map[int64]model.Merchant
	state       *model.LedgerState
	cardSeq     int64
	merchantSeq int64
}

// WithTransaction runs fn and restores the pre-call snapshot when it fails.
// Transactions are serialized, matching the single-writer execution model.
func (b *MemoryBackend) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	b.txMu.Lock()
	defer b.txMu.Unlock()

	snap := b.snapshot()
	if err := fn(ctx); err != nil {
		b.restore(snap)
		return err
	}

	return nil
}

func (b *MemoryBackend) snapshot() memorySnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := memorySnapshot{
		cards:       make(map[int64]model.GiftCard, len(b.cards)),
		merchants:   make(map[int64]model.Merchant, len(b.merchants)),
		cardSeq:     b.cardSeq,
		merchantSeq: b.merchantSeq,
	}
	for id, card := range b.cards {
		snap.cards[id] = card
	}
	for id, merchant := range b.merchants {
		snap.merchants[id] = merchant
	}
	if b.state != nil {
		stateCopy := *b.state
		snap.state = &stateCopy
	}

	return snap
}

func (b *MemoryBackend) restore(snap memorySnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.cards = snap.cards
	b.merchants = snap.merchants
	b.state = snap.state
	b.cardSeq = snap.cardSeq
	b.merchantSeq = snap.merchantSeq
}

// memoryGiftCardRepository implements GiftCardRepository over MemoryBackend
type memoryGiftCardRepository struct {
	backend *MemoryBackend
}

func (r *memoryGiftCardRepository) NextID(ctx context.Context) (int64, error) {
	r.backend.mu.Lock()
	defer r.backend.mu.Unlock()

	r.backend.cardSeq++
	return r.backend.cardSeq, nil
}

func (r *memoryGiftCardRepository) Create(ctx context.Context, card *model.GiftCard) error {
	r.backend.mu.Lock()
	defer r.backend.mu.Unlock()

	r.backend.cards[card.ID] = *card
	return nil
}

func (r *memoryGiftCardRepository) GetByID(ctx context.Context, id int64) (*model.GiftCard, error) {
	r.backend.mu.Lock()
	defer r.backend.mu.Unlock()

	card, ok := r.backend.cards[id]
	if !ok {
		return nil, apperrors.ErrGiftCardNotFound
	}

	cardCopy := card
	cardCopy.AllowedMerchants = append([]int64(nil), card.AllowedMerchants...)
	return &cardCopy, nil
}

func (r *memoryGiftCardRepository) ApplyRedemption(ctx context.Context, id int64, amount int64) (int64, error) {
	r.backend.mu.Lock()
	defer r.backend.mu.Unlock()

	card, ok := r.backend.cards[id]
	if !ok || !card.IsActive || card.RemainingBalance < amount {
		return 0, apperrors.ErrInsufficientBalance
	}

	card.RemainingBalance -= amount
	if card.RemainingBalance == 0 {
		card.IsActive = false
	}
	r.backend.cards[id] = card

	return card.RemainingBalance, nil
}

func (r *memoryGiftCardRepository) ApplyRefund(ctx context.Context, id int64) (int64, error) {
	r.backend.mu.Lock()
	defer r.backend.mu.Unlock()

	card, ok := r.backend.cards[id]
	if !ok {
		return 0, apperrors.ErrGiftCardNotFound
	}

	previous := card.RemainingBalance
	card.RemainingBalance = 0
	card.IsActive = false
	r.backend.cards[id] = card

	return previous, nil
}

// memoryMerchantRepository implements MerchantRepository over MemoryBackend
type memoryMerchantRepository struct {
	backend *MemoryBackend
}

func (r *memoryMerchantRepository) NextID(ctx context.Context) (int64, error) {
	r.backend.mu.Lock()
	defer r.backend.mu.Unlock()

	r.backend.merchantSeq++
	return r.backend.merchantSeq, nil
}

func (r *memoryMerchantRepository) Create(ctx context.Context, merchant *model.Merchant) error {
	r.backend.mu.Lock()
	defer r.backend.mu.Unlock()

	r.backend.merchants[merchant.ID] = *merchant
	return nil
}

func (r *memoryMerchantRepository) GetByID(ctx context.Context, id int64) (*model.Merchant, error) {
	r.backend.mu.Lock()
	defer r.backend.mu.Unlock()

	merchant, ok := r.backend.merchants[id]
	if !ok {
		return nil, nil
	}

	merchantCopy := merchant
	return &merchantCopy, nil
}

// memoryStateRepository implements StateRepository over MemoryBackend
type memoryStateRepository struct {
	backend *MemoryBackend
}

func (r *memoryStateRepository) Initialize(ctx context.Context, state *model.LedgerState) error {
	r.backend.mu.Lock()
	defer r.backend.mu.Unlock()

	if r.backend.state != nil {
		return apperrors.ErrAlreadyInitialized
	}

	state.ID = stateDocID
	stateCopy := *state
	r.backend.state = &stateCopy
	return nil
}

func (r *memoryStateRepository) Get(ctx context.Context) (*model.LedgerState, error) {
	r.backend.mu.Lock()
	defer r.backend.mu.Unlock()

	if r.backend.state == nil {
		return nil, apperrors.ErrNotInitialized
	}

	stateCopy := *r.backend.state
	return &stateCopy, nil
}

func (r *memoryStateRepository) SetPaused(ctx context.Context, paused bool) error {
	r.backend.mu.Lock()
	defer r.backend.mu.Unlock()

	if r.backend.state == nil {
		return apperrors.ErrNotInitialized
	}

	r.backend.state.Paused = paused
	return nil
}
