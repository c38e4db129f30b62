package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlemingJohn/FlexiGift/internal/events"
	"github.com/FlemingJohn/FlexiGift/internal/model"
	"github.com/FlemingJohn/FlexiGift/internal/repository"
	apperrors "github.com/FlemingJohn/FlexiGift/pkg/errors"
)

const (
	testOwner = "owner"
	testGiver = "alice"
	testUser  = "bob"
)

var baseTime = time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	svc       *GiftCardService
	backend   *repository.MemoryBackend
	transfer  *CustodyTransfer
	publisher *events.MemoryPublisher
	clock     *testClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	backend := repository.NewMemoryBackend()
	transfer := NewCustodyTransfer("USDC")
	publisher := &events.MemoryPublisher{}
	clock := &testClock{now: baseTime}

	svc := NewGiftCardService(
		backend.GiftCards(), backend.Merchants(), backend.State(),
		backend, transfer, publisher, nil,
	)
	svc.SetNowFunc(clock.Now)

	require.NoError(t, svc.Initialize(context.Background(), &model.InitializeRequest{
		Caller: testOwner,
		Asset:  "USDC",
	}))

	return &fixture{
		svc:       svc,
		backend:   backend,
		transfer:  transfer,
		publisher: publisher,
		clock:     clock,
	}
}

func (f *fixture) createCard(t *testing.T, amount, expiryDays int64, merchants []int64) int64 {
	t.Helper()
	id, err := f.svc.CreateGiftCard(context.Background(), &model.CreateGiftCardRequest{
		Caller:      testGiver,
		Amount:      amount,
		ExpiryDays:  expiryDays,
		MerchantIDs: merchants,
		Message:     "happy birthday",
	})
	require.NoError(t, err)
	return id
}

func TestInitialize(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// fixture already initialized once
	err := f.svc.Initialize(ctx, &model.InitializeRequest{Caller: "mallory", Asset: "USDC"})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyInitialized)
}

func TestOperationsBeforeInitialize(t *testing.T) {
	ctx := context.Background()
	backend := repository.NewMemoryBackend()
	svc := NewGiftCardService(
		backend.GiftCards(), backend.Merchants(), backend.State(),
		backend, NewCustodyTransfer("USDC"), nil, nil,
	)

	_, err := svc.CreateGiftCard(ctx, &model.CreateGiftCardRequest{Caller: testGiver, Amount: 100, ExpiryDays: 1})
	assert.ErrorIs(t, err, apperrors.ErrNotInitialized)

	_, err = svc.AddMerchant(ctx, &model.AddMerchantRequest{Caller: testOwner, Name: "Acme"})
	assert.ErrorIs(t, err, apperrors.ErrNotInitialized)
}

func TestCreateGiftCard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.svc.CreateGiftCard(ctx, &model.CreateGiftCardRequest{
		Caller:      testGiver,
		Amount:      100,
		ExpiryDays:  30,
		MerchantIDs: []int64{1},
		Message:     "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	card, err := f.svc.GetGiftCard(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, testGiver, card.Giver)
	assert.Equal(t, int64(100), card.Amount)
	assert.Equal(t, int64(100), card.RemainingBalance)
	assert.True(t, card.IsActive)
	assert.Equal(t, baseTime, card.CreatedAt)
	assert.Equal(t, baseTime.Add(30*24*time.Hour), card.ExpiresAt)
	assert.Equal(t, "hi", card.Message)
	assert.Equal(t, []int64{1}, card.AllowedMerchants)

	// value moved into custody
	assert.Equal(t, int64(100), f.transfer.CustodyBalance())

	evts := f.publisher.Events()
	require.Len(t, evts, 1)
	assert.Equal(t, events.TypeGiftCardCreated, evts[0].Type)
	created := evts[0].Data.(events.GiftCardCreated)
	assert.Equal(t, int64(1), created.GiftCardID)
	assert.Equal(t, int64(100), created.Amount)
}

func TestCreateGiftCardIDsAreMonotonic(t *testing.T) {
	f := newFixture(t)

	first := f.createCard(t, 10, 1, nil)
	second := f.createCard(t, 20, 1, nil)
	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(2), second)
}

func TestCreateGiftCardValidation(t *testing.T) {
	ctx := context.Background()

	tooLong := make([]byte, model.MaxMessageLength+1)
	for i := range tooLong {
		tooLong[i] = 'a'
	}

	tests := []struct {
		name string
		req  model.CreateGiftCardRequest
		want error
	}{
		{"zero amount", model.CreateGiftCardRequest{Caller: testGiver, Amount: 0, ExpiryDays: 30}, apperrors.ErrInvalidAmount},
		{"negative amount", model.CreateGiftCardRequest{Caller: testGiver, Amount: -5, ExpiryDays: 30}, apperrors.ErrInvalidAmount},
		{"zero expiry", model.CreateGiftCardRequest{Caller: testGiver, Amount: 100, ExpiryDays: 0}, apperrors.ErrInvalidExpiry},
		{"message too long", model.CreateGiftCardRequest{Caller: testGiver, Amount: 100, ExpiryDays: 30, Message: string(tooLong)}, apperrors.ErrMessageTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.CreateGiftCard(ctx, &tt.req)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, f.publisher.Events())
			assert.Zero(t, f.transfer.CustodyBalance())
		})
	}
}

func TestRedeemLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id := f.createCard(t, 100, 30, []int64{1})

	f.clock.Advance(1000 * time.Second)
	remaining, err := f.svc.Redeem(ctx, id, &model.RedeemRequest{Caller: testUser, Amount: 40, MerchantID: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(60), remaining)

	card, err := f.svc.GetGiftCard(ctx, id)
	require.NoError(t, err)
	assert.True(t, card.IsActive)
	assert.Equal(t, int64(60), card.RemainingBalance)

	f.clock.Advance(1000 * time.Second)
	remaining, err = f.svc.Redeem(ctx, id, &model.RedeemRequest{Caller: testUser, Amount: 60, MerchantID: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(0), remaining)

	// draining the balance deactivates the card for good
	card, err = f.svc.GetGiftCard(ctx, id)
	require.NoError(t, err)
	assert.False(t, card.IsActive)

	f.clock.Advance(1000 * time.Second)
	_, err = f.svc.Redeem(ctx, id, &model.RedeemRequest{Caller: testUser, Amount: 1, MerchantID: 1})
	assert.ErrorIs(t, err, apperrors.ErrGiftCardInactive)

	// full amount paid out to the recipient, custody drained
	assert.Equal(t, int64(100), f.transfer.PaidOut(testUser))
	assert.Zero(t, f.transfer.CustodyBalance())

	evts := f.publisher.Events()
	require.Len(t, evts, 3) // created + two redemptions
	redeemed := evts[2].Data.(events.GiftCardRedeemed)
	assert.Equal(t, testUser, redeemed.Recipient)
	assert.Equal(t, int64(60), redeemed.Amount)
	assert.Equal(t, int64(0), redeemed.RemainingBalance)
}

func TestRedeemFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id := f.createCard(t, 100, 30, []int64{1, 2})

	_, err := f.svc.Redeem(ctx, 99, &model.RedeemRequest{Caller: testUser, Amount: 10, MerchantID: 1})
	assert.ErrorIs(t, err, apperrors.ErrGiftCardNotFound)

	_, err = f.svc.Redeem(ctx, id, &model.RedeemRequest{Caller: testUser, Amount: 101, MerchantID: 1})
	assert.ErrorIs(t, err, apperrors.ErrInsufficientBalance)

	// a negative amount can never grow the balance back
	_, err = f.svc.Redeem(ctx, id, &model.RedeemRequest{Caller: testUser, Amount: -10, MerchantID: 1})
	assert.ErrorIs(t, err, apperrors.ErrInvalidAmount)

	_, err = f.svc.Redeem(ctx, id, &model.RedeemRequest{Caller: testUser, Amount: 10, MerchantID: 3})
	assert.ErrorIs(t, err, apperrors.ErrMerchantNotAllowed)

	// balance check is ordered before the merchant check
	_, err = f.svc.Redeem(ctx, id, &model.RedeemRequest{Caller: testUser, Amount: 101, MerchantID: 3})
	assert.ErrorIs(t, err, apperrors.ErrInsufficientBalance)

	// nothing succeeded, balance untouched
	card, err := f.svc.GetGiftCard(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(100), card.RemainingBalance)
}

func TestRedeemEmptyAllowlistRejectsEveryMerchant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id := f.createCard(t, 100, 30, nil)

	_, err := f.svc.Redeem(ctx, id, &model.RedeemRequest{Caller: testUser, Amount: 10, MerchantID: 1})
	assert.ErrorIs(t, err, apperrors.ErrMerchantNotAllowed)
}

func TestRedeemExpiryBoundary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id := f.createCard(t, 50, 1, []int64{1})

	// exactly at expiry: still redeemable
	f.clock.Advance(24 * time.Hour)
	remaining, err := f.svc.Redeem(ctx, id, &model.RedeemRequest{Caller: testUser, Amount: 10, MerchantID: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(40), remaining)

	// one second past expiry: rejected regardless of balance
	f.clock.Advance(time.Second)
	_, err = f.svc.Redeem(ctx, id, &model.RedeemRequest{Caller: testUser, Amount: 10, MerchantID: 1})
	assert.ErrorIs(t, err, apperrors.ErrGiftCardExpired)
}

func TestRefund(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id := f.createCard(t, 50, 1, []int64{1})

	// not refundable before or exactly at expiry
	_, err := f.svc.Refund(ctx, id, &model.RefundRequest{Caller: testGiver})
	assert.ErrorIs(t, err, apperrors.ErrInvalidExpiry)

	f.clock.Advance(24 * time.Hour)
	_, err = f.svc.Refund(ctx, id, &model.RefundRequest{Caller: testGiver})
	assert.ErrorIs(t, err, apperrors.ErrInvalidExpiry)

	f.clock.Advance(time.Second)

	// only the giver may refund
	_, err = f.svc.Refund(ctx, id, &model.RefundRequest{Caller: testUser})
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	amount, err := f.svc.Refund(ctx, id, &model.RefundRequest{Caller: testGiver})
	require.NoError(t, err)
	assert.Equal(t, int64(50), amount)

	card, err := f.svc.GetGiftCard(ctx, id)
	require.NoError(t, err)
	assert.False(t, card.IsActive)
	assert.Zero(t, card.RemainingBalance)
	assert.Equal(t, int64(50), f.transfer.PaidOut(testGiver))

	// refunding again succeeds with a zero amount
	amount, err = f.svc.Refund(ctx, id, &model.RefundRequest{Caller: testGiver})
	require.NoError(t, err)
	assert.Zero(t, amount)
	assert.Equal(t, int64(50), f.transfer.PaidOut(testGiver))

	_, err = f.svc.Refund(ctx, 99, &model.RefundRequest{Caller: testGiver})
	assert.ErrorIs(t, err, apperrors.ErrGiftCardNotFound)
}

func TestPauseGate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	cardID := f.createCard(t, 50, 1, []int64{1})

	assert.ErrorIs(t, f.svc.Pause(ctx, testUser), apperrors.ErrUnauthorized)
	require.NoError(t, f.svc.Pause(ctx, testOwner))

	_, err := f.svc.CreateGiftCard(ctx, &model.CreateGiftCardRequest{Caller: testGiver, Amount: 10, ExpiryDays: 1})
	assert.ErrorIs(t, err, apperrors.ErrPaused)

	_, err = f.svc.Redeem(ctx, cardID, &model.RedeemRequest{Caller: testUser, Amount: 10, MerchantID: 1})
	assert.ErrorIs(t, err, apperrors.ErrPaused)

	// the pause check comes before the existence check
	_, err = f.svc.Redeem(ctx, 99, &model.RedeemRequest{Caller: testUser, Amount: 10, MerchantID: 1})
	assert.ErrorIs(t, err, apperrors.ErrPaused)

	// givers can still reclaim funds while paused
	f.clock.Advance(24*time.Hour + time.Second)
	amount, err := f.svc.Refund(ctx, cardID, &model.RefundRequest{Caller: testGiver})
	require.NoError(t, err)
	assert.Equal(t, int64(50), amount)

	assert.ErrorIs(t, f.svc.Unpause(ctx, testUser), apperrors.ErrUnauthorized)
	require.NoError(t, f.svc.Unpause(ctx, testOwner))

	_, err = f.svc.CreateGiftCard(ctx, &model.CreateGiftCardRequest{Caller: testGiver, Amount: 10, ExpiryDays: 1})
	require.NoError(t, err)
}

func TestMerchantRegistry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.AddMerchant(ctx, &model.AddMerchantRequest{Caller: testUser, Name: "Acme"})
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	first, err := f.svc.AddMerchant(ctx, &model.AddMerchantRequest{Caller: testOwner, Name: "Acme"})
	require.NoError(t, err)
	second, err := f.svc.AddMerchant(ctx, &model.AddMerchantRequest{Caller: testOwner, Name: "Globex"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(2), second)

	name, found, err := f.svc.GetMerchantName(ctx, first)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Acme", name)

	_, found, err = f.svc.GetMerchantName(ctx, 42)
	require.NoError(t, err)
	assert.False(t, found)

	evts := f.publisher.Events()
	require.Len(t, evts, 2)
	added := evts[0].Data.(events.MerchantAdded)
	assert.Equal(t, int64(1), added.MerchantID)
	assert.Equal(t, "Acme", added.Name)
}

// failingTransfer rejects deposits and payouts on demand.
type failingTransfer struct {
	failDeposit bool
	failPayout  bool
}

func (f *failingTransfer) Deposit(ctx context.Context, from string, amount int64) error {
	if f.failDeposit {
		return errors.New("deposit declined")
	}
	return nil
}

func (f *failingTransfer) Payout(ctx context.Context, to string, amount int64) error {
	if f.failPayout {
		return errors.New("payout declined")
	}
	return nil
}

func TestTransferFailureLeavesNoTrace(t *testing.T) {
	ctx := context.Background()

	backend := repository.NewMemoryBackend()
	transfer := &failingTransfer{}
	publisher := &events.MemoryPublisher{}
	svc := NewGiftCardService(
		backend.GiftCards(), backend.Merchants(), backend.State(),
		backend, transfer, publisher, nil,
	)
	clock := &testClock{now: baseTime}
	svc.SetNowFunc(clock.Now)

	require.NoError(t, svc.Initialize(ctx, &model.InitializeRequest{Caller: testOwner, Asset: "USDC"}))

	transfer.failDeposit = true
	_, err := svc.CreateGiftCard(ctx, &model.CreateGiftCardRequest{
		Caller: testGiver, Amount: 100, ExpiryDays: 30, MerchantIDs: []int64{1},
	})
	assert.ErrorIs(t, err, apperrors.ErrTransferFailed)
	_, err = svc.GetGiftCard(ctx, 1)
	assert.ErrorIs(t, err, apperrors.ErrGiftCardNotFound)
	assert.Empty(t, publisher.Events())

	transfer.failDeposit = false
	id, err := svc.CreateGiftCard(ctx, &model.CreateGiftCardRequest{
		Caller: testGiver, Amount: 100, ExpiryDays: 30, MerchantIDs: []int64{1},
	})
	require.NoError(t, err)

	transfer.failPayout = true
	_, err = svc.Redeem(ctx, id, &model.RedeemRequest{Caller: testUser, Amount: 40, MerchantID: 1})
	assert.ErrorIs(t, err, apperrors.ErrTransferFailed)

	// the guarded decrement was rolled back with the transaction
	card, err := svc.GetGiftCard(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(100), card.RemainingBalance)
	assert.True(t, card.IsActive)

	clock.Advance(31 * 24 * time.Hour)
	_, err = svc.Refund(ctx, id, &model.RefundRequest{Caller: testGiver})
	assert.ErrorIs(t, err, apperrors.ErrTransferFailed)

	card, err = svc.GetGiftCard(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(100), card.RemainingBalance)
	assert.True(t, card.IsActive)
}
