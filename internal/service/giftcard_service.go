package service

import (
	"context"
	"fmt"
	"time"

	"github.com/FlemingJohn/FlexiGift/internal/events"
	"github.com/FlemingJohn/FlexiGift/internal/model"
	"github.com/FlemingJohn/FlexiGift/internal/repository"
	"github.com/FlemingJohn/FlexiGift/pkg/database"
	apperrors "github.com/FlemingJohn/FlexiGift/pkg/errors"
	"github.com/FlemingJohn/FlexiGift/pkg/logger"
)

// GiftCardService is the ledger engine: it creates gift cards, applies
// redemptions and refunds, and enforces every lifecycle invariant. Mutations
// run inside the transaction runner so a value-transfer failure leaves no
// trace in storage.
type GiftCardService struct {
	cards     repository.GiftCardRepository
	merchants repository.MerchantRepository
	state     repository.StateRepository
	tx        database.TxRunner
	transfer  ValueTransfer
	publisher events.Publisher
	log       *logger.Logger
	nowFn     func() time.Time
}

// NewGiftCardService creates a new gift card service
func NewGiftCardService(
	cards repository.GiftCardRepository,
	merchants repository.MerchantRepository,
	state repository.StateRepository,
	tx database.TxRunner,
	transfer ValueTransfer,
	publisher events.Publisher,
	log *logger.Logger,
) *GiftCardService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &GiftCardService{
		cards:     cards,
		merchants: merchants,
		state:     state,
		tx:        tx,
		transfer:  transfer,
		publisher: publisher,
		log:       log,
		nowFn:     time.Now,
	}
}

// SetNowFunc overrides the time source. Intended for tests that need
// deterministic timestamps.
func (s *GiftCardService) SetNowFunc(now func() time.Time) {
	if now == nil {
		s.nowFn = time.Now
		return
	}
	s.nowFn = now
}

func (s *GiftCardService) now() time.Time {
	return s.nowFn()
}

// Initialize sets the registry owner and backing asset exactly once.
// The caller becomes the owner.
func (s *GiftCardService) Initialize(ctx context.Context, req *model.InitializeRequest) error {
	state := &model.LedgerState{
		Owner:         req.Caller,
		Asset:         req.Asset,
		Paused:        false,
		InitializedAt: s.now(),
	}
	if err := s.state.Initialize(ctx, state); err != nil {
		return err
	}

	s.log.Info("ledger initialized", "owner", req.Caller, "asset", req.Asset)
	return nil
}

// CreateGiftCard locks the caller's value into a new gift card with an
// immutable merchant allowlist and expiry.
func (s *GiftCardService) CreateGiftCard(ctx context.Context, req *model.CreateGiftCardRequest) (int64, error) {
	state, err := s.state.Get(ctx)
	if err != nil {
		return 0, err
	}
	if state.Paused {
		return 0, apperrors.ErrPaused
	}

	if req.Amount <= 0 {
		return 0, apperrors.ErrInvalidAmount
	}
	if req.ExpiryDays <= 0 {
		return 0, apperrors.ErrInvalidExpiry
	}
	if len(req.Message) > model.MaxMessageLength {
		return 0, apperrors.ErrMessageTooLong
	}

	now := s.now()
	card := &model.GiftCard{
		Giver:            req.Caller,
		Amount:           req.Amount,
		RemainingBalance: req.Amount,
		ExpiresAt:        now.Add(time.Duration(req.ExpiryDays) * 24 * time.Hour),
		IsActive:         true,
		CreatedAt:        now,
		Message:          req.Message,
		AllowedMerchants: append([]int64(nil), req.MerchantIDs...),
	}

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		id, err := s.cards.NextID(ctx)
		if err != nil {
			return err
		}
		card.ID = id

		if err := s.transfer.Deposit(ctx, req.Caller, req.Amount); err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrTransferFailed, err)
		}

		return s.cards.Create(ctx, card)
	})
	if err != nil {
		return 0, err
	}

	s.publish(ctx, events.TypeGiftCardCreated, events.GiftCardCreated{
		GiftCardID: card.ID,
		Giver:      card.Giver,
		Amount:     card.Amount,
		ExpiresAt:  card.ExpiresAt,
		Message:    card.Message,
	})

	s.log.Info("gift card created",
		"gift_card_id", card.ID, "giver", card.Giver,
		"amount", card.Amount, "expires_at", card.ExpiresAt)
	return card.ID, nil
}

// Redeem spends part of a gift card's balance at an allowed merchant and
// pays the amount out to the caller. The precondition checks run in a fixed
// order so the externally observed failure reason is deterministic.
func (s *GiftCardService) Redeem(ctx context.Context, id int64, req *model.RedeemRequest) (int64, error) {
	state, err := s.state.Get(ctx)
	if err != nil {
		return 0, err
	}
	if state.Paused {
		return 0, apperrors.ErrPaused
	}
	if req.Amount < 0 {
		return 0, apperrors.ErrInvalidAmount
	}

	card, err := s.cards.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if !card.IsActive {
		return 0, apperrors.ErrGiftCardInactive
	}
	if s.now().After(card.ExpiresAt) {
		return 0, apperrors.ErrGiftCardExpired
	}
	if req.Amount > card.RemainingBalance {
		return 0, apperrors.ErrInsufficientBalance
	}
	if !card.AllowsMerchant(req.MerchantID) {
		return 0, apperrors.ErrMerchantNotAllowed
	}

	var remaining int64
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		remaining, err = s.cards.ApplyRedemption(ctx, id, req.Amount)
		if err != nil {
			return err
		}

		if err := s.transfer.Payout(ctx, req.Caller, req.Amount); err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrTransferFailed, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.publish(ctx, events.TypeGiftCardRedeemed, events.GiftCardRedeemed{
		GiftCardID:       id,
		Recipient:        req.Caller,
		Amount:           req.Amount,
		RemainingBalance: remaining,
	})

	s.log.Info("gift card redeemed",
		"gift_card_id", id, "recipient", req.Caller,
		"amount", req.Amount, "remaining_balance", remaining)
	return remaining, nil
}

// Refund returns the unredeemed balance to the giver once the card is
// strictly past expiry. Refunding an already inactive card succeeds with a
// zero amount. Refunds work even while the ledger is paused so givers can
// always reclaim their funds.
func (s *GiftCardService) Refund(ctx context.Context, id int64, req *model.RefundRequest) (int64, error) {
	card, err := s.cards.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if !isGiver(card, req.Caller) {
		return 0, apperrors.ErrUnauthorized
	}
	if !s.now().After(card.ExpiresAt) {
		return 0, apperrors.ErrInvalidExpiry
	}

	var refunded int64
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		refunded, err = s.cards.ApplyRefund(ctx, id)
		if err != nil {
			return err
		}

		if refunded == 0 {
			return nil
		}
		if err := s.transfer.Payout(ctx, card.Giver, refunded); err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrTransferFailed, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.publish(ctx, events.TypeGiftCardRefunded, events.GiftCardRefunded{
		GiftCardID:   id,
		Giver:        card.Giver,
		RefundAmount: refunded,
	})

	s.log.Info("gift card refunded",
		"gift_card_id", id, "giver", card.Giver, "refund_amount", refunded)
	return refunded, nil
}

// GetGiftCard retrieves a gift card by id
func (s *GiftCardService) GetGiftCard(ctx context.Context, id int64) (*model.GiftCard, error) {
	return s.cards.GetByID(ctx, id)
}

// AddMerchant registers a merchant. Only the registry owner may call this.
func (s *GiftCardService) AddMerchant(ctx context.Context, req *model.AddMerchantRequest) (int64, error) {
	state, err := s.state.Get(ctx)
	if err != nil {
		return 0, err
	}
	if !isOwner(state, req.Caller) {
		return 0, apperrors.ErrUnauthorized
	}

	merchant := &model.Merchant{
		Name:      req.Name,
		CreatedAt: s.now(),
	}
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		id, err := s.merchants.NextID(ctx)
		if err != nil {
			return err
		}
		merchant.ID = id
		return s.merchants.Create(ctx, merchant)
	})
	if err != nil {
		return 0, err
	}

	s.publish(ctx, events.TypeMerchantAdded, events.MerchantAdded{
		MerchantID: merchant.ID,
		Name:       merchant.Name,
	})

	s.log.Info("merchant added", "merchant_id", merchant.ID, "name", merchant.Name)
	return merchant.ID, nil
}

// GetMerchantName looks up a merchant name. The second return value reports
// whether the id is known.
func (s *GiftCardService) GetMerchantName(ctx context.Context, id int64) (string, bool, error) {
	merchant, err := s.merchants.GetByID(ctx, id)
	if err != nil {
		return "", false, err
	}
	if merchant == nil {
		return "", false, nil
	}
	return merchant.Name, true, nil
}

// Pause closes the operational gate. Owner only.
func (s *GiftCardService) Pause(ctx context.Context, caller string) error {
	return s.setPaused(ctx, caller, true)
}

// Unpause reopens the operational gate. Owner only.
func (s *GiftCardService) Unpause(ctx context.Context, caller string) error {
	return s.setPaused(ctx, caller, false)
}

func (s *GiftCardService) setPaused(ctx context.Context, caller string, paused bool) error {
	state, err := s.state.Get(ctx)
	if err != nil {
		return err
	}
	if !isOwner(state, caller) {
		return apperrors.ErrUnauthorized
	}

	if err := s.state.SetPaused(ctx, paused); err != nil {
		return err
	}

	s.log.Info("operational gate toggled", "paused", paused)
	return nil
}

// publish delivers an event after a committed mutation. Delivery failures
// are logged, not surfaced: the state change already happened.
func (s *GiftCardService) publish(ctx context.Context, eventType string, data interface{}) {
	evt := events.Event{Type: eventType, At: s.now(), Data: data}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.Error("failed to publish event", "type", eventType, "error", err)
	}
}
