package service

import (
	"context"
	"fmt"
	"sync"
)

// ValueTransfer moves backing value in and out of ledger custody. Deposit is
// called when a gift card is created, Payout when value leaves the ledger on
// redemption or refund. A failure aborts the surrounding operation.
type ValueTransfer interface {
	Deposit(ctx context.Context, from string, amount int64) error
	Payout(ctx context.Context, to string, amount int64) error
}

// CustodyTransfer is an in-process implementation of ValueTransfer that
// tracks the custody balance of the backing asset. Deposits add to custody;
// payouts fail when they would overdraw it, which keeps the ledger honest:
// value can never leave that was not locked in first.
type CustodyTransfer struct {
	mu      sync.Mutex
	asset   string
	custody int64
	paidOut map[string]int64
}

// NewCustodyTransfer creates a custody tracker for the given asset
func NewCustodyTransfer(asset string) *CustodyTransfer {
	return &CustodyTransfer{
		asset:   asset,
		paidOut: make(map[string]int64),
	}
}

func (t *CustodyTransfer) Deposit(ctx context.Context, from string, amount int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if amount < 0 {
		return fmt.Errorf("negative deposit of %s: %d", t.asset, amount)
	}
	t.custody += amount
	return nil
}

func (t *CustodyTransfer) Payout(ctx context.Context, to string, amount int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if amount < 0 {
		return fmt.Errorf("negative payout of %s: %d", t.asset, amount)
	}
	if amount > t.custody {
		return fmt.Errorf("custody holds %d, cannot pay out %d", t.custody, amount)
	}
	t.custody -= amount
	t.paidOut[to] += amount
	return nil
}

// CustodyBalance returns the value currently locked in the ledger.
func (t *CustodyTransfer) CustodyBalance() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.custody
}

// PaidOut returns the total value paid out to the given party so far.
func (t *CustodyTransfer) PaidOut(to string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paidOut[to]
}
