package credit

import (
	"testing"

	"git.home.luguber.info/inful/applianced/internal/ledger"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	store, err := ledger.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return New(store)
}

func TestFreshAccountBalanceIsZero(t *testing.T) {
	l := newTestLedger(t)
	balance, err := l.Balance(t.Context(), 1)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 0 {
		t.Errorf("expected 0 for fresh account, got %d", balance)
	}
}

func TestAdjustReturnsRunningBalance(t *testing.T) {
	l := newTestLedger(t)
	ctx := t.Context()

	balance, err := l.Adjust(ctx, 1, 100)
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if balance != 100 {
		t.Errorf("expected 100, got %d", balance)
	}

	balance, err = l.Adjust(ctx, 1, -30)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if balance != 70 {
		t.Errorf("expected 70, got %d", balance)
	}
}

func TestBalanceIsSumInAnyOrder(t *testing.T) {
	// The same multiset of deltas yields the same balance regardless of the
	// order the adjustments were applied in.
	deltas := []int64{50, -20, 13, -1, 8}
	want := int64(0)
	for _, d := range deltas {
		want += d
	}

	forward := newTestLedger(t)
	for _, d := range deltas {
		if _, err := forward.Adjust(t.Context(), 1, d); err != nil {
			t.Fatal(err)
		}
	}
	backward := newTestLedger(t)
	for i := len(deltas) - 1; i >= 0; i-- {
		if _, err := backward.Adjust(t.Context(), 1, deltas[i]); err != nil {
			t.Fatal(err)
		}
	}

	for name, l := range map[string]*Ledger{"forward": forward, "backward": backward} {
		got, err := l.Balance(t.Context(), 1)
		if err != nil {
			t.Fatalf("%s balance: %v", name, err)
		}
		if got != want {
			t.Errorf("%s: expected %d, got %d", name, want, got)
		}
	}
}

func TestOverdraftIsAllowed(t *testing.T) {
	l := newTestLedger(t)
	balance, err := l.Adjust(t.Context(), 1, -500)
	if err != nil {
		t.Fatalf("overdraft adjust: %v", err)
	}
	if balance != -500 {
		t.Errorf("expected -500, got %d", balance)
	}
}

func TestAccountsDoNotShareBalances(t *testing.T) {
	l := newTestLedger(t)
	ctx := t.Context()

	if _, err := l.Adjust(ctx, 1, 100); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Adjust(ctx, 2, 9); err != nil {
		t.Fatal(err)
	}
	balance, err := l.Balance(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if balance != 9 {
		t.Errorf("expected 9 for account 2, got %d", balance)
	}
}

func TestHistoryRetainsAdjustmentsNewestFirst(t *testing.T) {
	l := newTestLedger(t)
	ctx := t.Context()

	_, _ = l.Adjust(ctx, 1, 10)
	_, _ = l.Adjust(ctx, 1, -4)

	touches, err := l.History(ctx, 1)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(touches) != 2 {
		t.Fatalf("expected 2 touches, got %d", len(touches))
	}
	if touches[0].Payload.(ledger.CreditAdjustment).Delta != -4 {
		t.Errorf("expected newest first, got %+v", touches[0].Payload)
	}
}
