package model

import "time"

// MaxMessageLength bounds the free-text annotation on a gift card.
const MaxMessageLength = 280

// GiftCard represents a prepaid gift card in the ledger
type GiftCard struct {
	ID               int64     `bson:"_id" json:"id"`
	Giver            string    `bson:"giver" json:"giver"`
	Amount           int64     `bson:"amount" json:"amount"`                       // in cents
	RemainingBalance int64     `bson:"remaining_balance" json:"remaining_balance"` // in cents
	ExpiresAt        time.Time `bson:"expires_at" json:"expires_at"`
	IsActive         bool      `bson:"is_active" json:"is_active"`
	CreatedAt        time.Time `bson:"created_at" json:"created_at"`
	Message          string    `bson:"message" json:"message"`
	AllowedMerchants []int64   `bson:"allowed_merchants" json:"allowed_merchants"`
}

// AllowsMerchant reports whether the merchant is in the card's allowlist.
// An empty allowlist permits no merchant at all.
func (g *GiftCard) AllowsMerchant(merchantID int64) bool {
	for _, id := range g.AllowedMerchants {
		if id == merchantID {
			return true
		}
	}
	return false
}

// Merchant represents a registry entry a gift card can be redeemed against
type Merchant struct {
	ID        int64     `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// LedgerState holds the process-wide ledger configuration set by initialize:
// the registry owner, the backing asset and the pause flag.
type LedgerState struct {
	ID            string    `bson:"_id" json:"-"`
	Owner         string    `bson:"owner" json:"owner"`
	Asset         string    `bson:"asset" json:"asset"`
	Paused        bool      `bson:"paused" json:"paused"`
	InitializedAt time.Time `bson:"initialized_at" json:"initialized_at"`
}

// InitializeRequest represents the one-time ledger initialization call
type InitializeRequest struct {
	Caller string `json:"caller" binding:"required"`
	Asset  string `json:"asset" binding:"required"`
}

// CreateGiftCardRequest represents the request to create a gift card
type CreateGiftCardRequest struct {
	Caller      string  `json:"caller" binding:"required"`
	Amount      int64   `json:"amount"`      // in cents
	ExpiryDays  int64   `json:"expiry_days"` // days until expiry
	MerchantIDs []int64 `json:"merchant_ids"`
	Message     string  `json:"message"`
}

// CreateGiftCardResponse carries the id of a freshly created gift card
type CreateGiftCardResponse struct {
	GiftCardID int64 `json:"gift_card_id"`
}

// RedeemRequest represents a partial redemption against an allowed merchant
type RedeemRequest struct {
	Caller     string `json:"caller" binding:"required"`
	Amount     int64  `json:"amount"`
	MerchantID int64  `json:"merchant_id"`
}

// RedeemResponse carries the balance left after a redemption
type RedeemResponse struct {
	RemainingBalance int64 `json:"remaining_balance"`
}

// RefundRequest represents the giver reclaiming unused balance after expiry
type RefundRequest struct {
	Caller string `json:"caller" binding:"required"`
}

// RefundResponse carries the amount returned to the giver
type RefundResponse struct {
	RefundAmount int64 `json:"refund_amount"`
}

// AddMerchantRequest represents the owner adding a merchant to the registry
type AddMerchantRequest struct {
	Caller string `json:"caller" binding:"required"`
	Name   string `json:"name" binding:"required"`
}

// AddMerchantResponse carries the id assigned to a new merchant
type AddMerchantResponse struct {
	MerchantID int64 `json:"merchant_id"`
}

// PauseRequest represents the owner toggling the operational gate
type PauseRequest struct {
	Caller string `json:"caller" binding:"required"`
}
