// Package credit maintains the per-account credit balance as a fold over
// signed credit-adjustment touches. The balance is never stored directly.
package credit

import (
	"context"

	"git.home.luguber.info/inful/applianced/internal/ledger"
)

// Ledger adjusts and reads account credit through the touch ledger.
type Ledger struct {
	store *ledger.Store
}

// New creates a credit ledger backed by the given store.
func New(store *ledger.Store) *Ledger {
	return &Ledger{store: store}
}

// Adjust appends a credit touch (delta may be negative) and returns the new
// balance. No overdraft floor is enforced here; that policy belongs to the
// adapter.
func (l *Ledger) Adjust(ctx context.Context, accountID, delta int64) (int64, error) {
	if _, err := l.store.Append(ctx, accountID, ledger.CreditAdjustment{Delta: delta}); err != nil {
		return 0, err
	}
	return l.Balance(ctx, accountID)
}

// Balance sums all credit deltas for the account. A fresh account has a
// balance of zero; that is not an error.
func (l *Ledger) Balance(ctx context.Context, accountID int64) (int64, error) {
	return l.store.SumCreditDeltas(ctx, accountID)
}

// History returns the account's credit touches, newest first, for audit
// display. Order does not affect the balance; it is retained for audit.
func (l *Ledger) History(ctx context.Context, accountID int64) ([]ledger.Touch, error) {
	return l.store.History(ctx, accountID, ledger.KindCredit)
}
