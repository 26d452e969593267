package directory

import (
	"errors"
	"testing"

	"git.home.luguber.info/inful/applianced/internal/ledger"
	"git.home.luguber.info/inful/applianced/internal/registry"
)

var stateList = []string{"Starting", "Stopping", "Started", "Stopped", "Preparing", "Boosting"}

func newTestDirectory(t *testing.T) *Directory {
	t.Helper()
	store, err := ledger.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	reg := registry.New(store)
	if err := reg.Register(t.Context(), stateList); err != nil {
		t.Fatalf("register states: %v", err)
	}
	return New(store, reg)
}

func TestCreateAndResolveName(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := t.Context()

	id, err := dir.Create(ctx, "getname", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	resolved, err := dir.IDForName(ctx, "getname")
	if err != nil {
		t.Fatalf("id for name: %v", err)
	}
	if resolved != id {
		t.Errorf("expected id %d, got %d", id, resolved)
	}
}

func TestDuplicateNameLeavesDirectoryUnchanged(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := t.Context()

	id, err := dir.Create(ctx, "web-01", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := dir.Create(ctx, "web-01", "other"); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
	// The original record still resolves to the original id.
	resolved, err := dir.IDForName(ctx, "web-01")
	if err != nil {
		t.Fatalf("id for name after duplicate: %v", err)
	}
	if resolved != id {
		t.Errorf("directory changed by failed create: %d != %d", resolved, id)
	}
}

func TestFreshApplianceReportsSentinelState(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := t.Context()

	id, err := dir.Create(ctx, "fresh", "")
	if err != nil {
		t.Fatal(err)
	}
	state, err := dir.CurrentState(ctx, id)
	if err != nil {
		t.Fatalf("current state: %v", err)
	}
	if state != StateNotInitialised {
		t.Errorf("expected sentinel %q, got %q", StateNotInitialised, state)
	}
}

func TestSetStateAndReadBack(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := t.Context()

	id, err := dir.Create(ctx, "teststarted", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := dir.SetState(ctx, id, "Started"); err != nil {
		t.Fatalf("set state: %v", err)
	}
	state, err := dir.CurrentState(ctx, id)
	if err != nil {
		t.Fatalf("current state: %v", err)
	}
	if state != "Started" {
		t.Errorf("expected Started, got %q", state)
	}
}

func TestAnyRegisteredStateApplies(t *testing.T) {
	// The ledger does not validate transition legality: every registered
	// state applies to every appliance, including re-application.
	dir := newTestDirectory(t)
	ctx := t.Context()

	id, err := dir.Create(ctx, "loose", "")
	if err != nil {
		t.Fatal(err)
	}
	for _, state := range []string{"Stopped", "Boosting", "Stopped", "Stopped", "Preparing"} {
		if _, err := dir.SetState(ctx, id, state); err != nil {
			t.Fatalf("set state %q: %v", state, err)
		}
		got, err := dir.CurrentState(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if got != state {
			t.Errorf("expected %q, got %q", state, got)
		}
	}
}

func TestSetStateRejectsUnregisteredName(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := t.Context()

	id, err := dir.Create(ctx, "strict", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := dir.SetState(ctx, id, "Restart"); !errors.Is(err, registry.ErrUnknownState) {
		t.Fatalf("expected ErrUnknownState, got %v", err)
	}
}

func TestDetailsDefaultsUUIDToName(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := t.Context()

	id, err := dir.Create(ctx, "returndetails", "")
	if err != nil {
		t.Fatal(err)
	}
	details, err := dir.Details(ctx, id)
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	if details.ID != id {
		t.Errorf("expected id %d, got %d", id, details.ID)
	}
	if details.State != StateNotInitialised {
		t.Errorf("expected sentinel state, got %q", details.State)
	}
	if details.UUID != "returndetails" {
		t.Errorf("empty uuid should default to name, got %q", details.UUID)
	}
}

func TestDetailsKeepsSuppliedUUID(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := t.Context()

	id, err := dir.Create(ctx, "named", "5f8c2a")
	if err != nil {
		t.Fatal(err)
	}
	details, err := dir.Details(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if details.UUID != "5f8c2a" {
		t.Errorf("expected supplied uuid, got %q", details.UUID)
	}
}

func TestDetailsUnknownAppliance(t *testing.T) {
	dir := newTestDirectory(t)
	if _, err := dir.Details(t.Context(), 404); !errors.Is(err, ErrApplianceNotFound) {
		t.Fatalf("expected ErrApplianceNotFound, got %v", err)
	}
}

func TestListByStateTracksLatestOnly(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := t.Context()

	a, _ := dir.Create(ctx, "a", "")
	b, _ := dir.Create(ctx, "b", "")
	c, _ := dir.Create(ctx, "c", "")

	_, _ = dir.SetState(ctx, a, "Started")
	_, _ = dir.SetState(ctx, b, "Started")
	_, _ = dir.SetState(ctx, b, "Stopped") // b moved on
	_, _ = dir.SetState(ctx, c, "Stopped")

	started, err := dir.ListByState(ctx, "Started")
	if err != nil {
		t.Fatalf("list by state: %v", err)
	}
	if !started.Has(a) || started.Has(b) || started.Has(c) {
		t.Errorf("unexpected Started set: %v", started)
	}

	stopped, err := dir.ListByState(ctx, "Stopped")
	if err != nil {
		t.Fatal(err)
	}
	if !stopped.Has(b) || !stopped.Has(c) || stopped.Has(a) {
		t.Errorf("unexpected Stopped set: %v", stopped)
	}
}

func TestListByOwnerFollowsTransfer(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := t.Context()

	a, _ := dir.Create(ctx, "a", "")
	b, _ := dir.Create(ctx, "b", "")

	_, _ = dir.GrantOwnership(ctx, a, 10)
	_, _ = dir.GrantOwnership(ctx, b, 10)
	_, _ = dir.GrantOwnership(ctx, a, 20) // a transferred to account 20

	mine, err := dir.ListByOwner(ctx, 10)
	if err != nil {
		t.Fatalf("list by owner: %v", err)
	}
	if mine.Has(a) || !mine.Has(b) {
		t.Errorf("unexpected owner set for 10: %v", mine)
	}

	owner, err := dir.CurrentOwner(ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	if owner != 20 {
		t.Errorf("expected current owner 20, got %d", owner)
	}
}

func TestDeleteAndUpdateAreNotImplemented(t *testing.T) {
	dir := newTestDirectory(t)
	if err := dir.Delete(t.Context(), 1); !errors.Is(err, ErrNotImplemented) {
		t.Errorf("delete: expected ErrNotImplemented, got %v", err)
	}
	if err := dir.Update(t.Context(), 1); !errors.Is(err, ErrNotImplemented) {
		t.Errorf("update: expected ErrNotImplemented, got %v", err)
	}
}

func TestHistoryRequiresKnownAppliance(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := t.Context()

	if _, err := dir.History(ctx, 999, ledger.KindState); !errors.Is(err, ErrApplianceNotFound) {
		t.Fatalf("expected ErrApplianceNotFound, got %v", err)
	}

	id, _ := dir.Create(ctx, "logged", "")
	_, _ = dir.SetState(ctx, id, "Started")
	_, _ = dir.SetState(ctx, id, "Stopped")

	touches, err := dir.History(ctx, id, ledger.KindState)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(touches) != 2 {
		t.Fatalf("expected 2 touches, got %d", len(touches))
	}
	if touches[0].Sequence <= touches[1].Sequence {
		t.Error("history must be newest first")
	}
}
