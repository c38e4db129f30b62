package events

import (
	"context"
	"sync"
	"time"
)

// Event types emitted by the ledger engine.
const (
	TypeGiftCardCreated  = "giftcard.created"
	TypeGiftCardRedeemed = "giftcard.redeemed"
	TypeGiftCardRefunded = "giftcard.refunded"
	TypeMerchantAdded    = "merchant.added"
)

// Event is the envelope published for every successful state change.
type Event struct {
	Type string      `json:"type"`
	At   time.Time   `json:"at"`
	Data interface{} `json:"data"`
}

// GiftCardCreated is the payload for TypeGiftCardCreated.
type GiftCardCreated struct {
	GiftCardID int64     `json:"gift_card_id"`
	Giver      string    `json:"giver"`
	Amount     int64     `json:"amount"`
	ExpiresAt  time.Time `json:"expires_at"`
	Message    string    `json:"message"`
}

// GiftCardRedeemed is the payload for TypeGiftCardRedeemed.
type GiftCardRedeemed struct {
	GiftCardID       int64  `json:"gift_card_id"`
	Recipient        string `json:"recipient"`
	Amount           int64  `json:"amount"`
	RemainingBalance int64  `json:"remaining_balance"`
}

// GiftCardRefunded is the payload for TypeGiftCardRefunded.
type GiftCardRefunded struct {
	GiftCardID   int64  `json:"gift_card_id"`
	Giver        string `json:"giver"`
	RefundAmount int64  `json:"refund_amount"`
}

// MerchantAdded is the payload for TypeMerchantAdded.
type MerchantAdded struct {
	MerchantID int64  `json:"merchant_id"`
	Name       string `json:"name"`
}

// Publisher delivers domain events to external subscribers. Publishing
// happens only after the storage mutation committed; a publish failure is
// logged by the caller, never rolled back.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// NoopPublisher discards every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }

// MemoryPublisher records events in memory. Used in tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *MemoryPublisher) Publish(_ context.Context, evt Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

// Events returns a copy of everything published so far.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}
