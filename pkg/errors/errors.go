package errors

import "errors"

// Domain errors for the gift card ledger. Every operation either completes
// fully or surfaces one of these with no state change; none are retryable.
var (
	ErrUnauthorized        = errors.New("caller is not authorized")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrInvalidExpiry       = errors.New("invalid expiry")
	ErrGiftCardNotFound    = errors.New("gift card not found")
	ErrGiftCardExpired     = errors.New("gift card expired")
	ErrGiftCardInactive    = errors.New("gift card inactive")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrMerchantNotAllowed  = errors.New("merchant not allowed for this gift card")
	ErrMessageTooLong      = errors.New("message exceeds 280 characters")
	ErrPaused              = errors.New("ledger is paused")
	ErrTransferFailed      = errors.New("value transfer failed")

	ErrNotInitialized     = errors.New("ledger not initialized")
	ErrAlreadyInitialized = errors.New("ledger already initialized")
)
