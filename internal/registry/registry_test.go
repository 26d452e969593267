package registry

import (
	"errors"
	"testing"

	"git.home.luguber.info/inful/applianced/internal/ledger"
)

var stateList = []string{"Starting", "Stopping", "Started", "Stopped", "Preparing", "Boosting"}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	store, err := ledger.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return New(store)
}

func TestRegisterAssignsSequentialIDs(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := t.Context()

	if err := reg.Register(ctx, stateList); err != nil {
		t.Fatalf("register: %v", err)
	}

	for i, name := range stateList {
		id, err := reg.Resolve(ctx, name)
		if err != nil {
			t.Fatalf("resolve %q: %v", name, err)
		}
		if id != int64(i+1) {
			t.Errorf("state %q: expected id %d, got %d", name, i+1, id)
		}
	}
}

func TestNameOfIsInverseOfResolve(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := t.Context()

	if err := reg.Register(ctx, stateList); err != nil {
		t.Fatalf("register: %v", err)
	}

	name, err := reg.NameOf(ctx, 3)
	if err != nil {
		t.Fatalf("name of 3: %v", err)
	}
	if name != "Started" {
		t.Errorf("expected Started for id 3, got %q", name)
	}
}

func TestRegisterRejectsDuplicateNames(t *testing.T) {
	reg := newTestRegistry(t)
	err := reg.Register(t.Context(), []string{"Started", "Stopped", "Started"})
	if !errors.Is(err, ErrDuplicateState) {
		t.Fatalf("expected ErrDuplicateState, got %v", err)
	}
}

func TestRegisterRejectsSecondCall(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := t.Context()

	if err := reg.Register(ctx, stateList); err != nil {
		t.Fatalf("first register: %v", err)
	}
	err := reg.Register(ctx, []string{"Other"})
	if !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestResolveUnknownState(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := t.Context()

	if err := reg.Register(ctx, stateList); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := reg.Resolve(ctx, "Restart"); !errors.Is(err, ErrUnknownState) {
		t.Fatalf("expected ErrUnknownState, got %v", err)
	}
	if _, err := reg.NameOf(ctx, 99); !errors.Is(err, ErrUnknownState) {
		t.Fatalf("expected ErrUnknownState for unknown id, got %v", err)
	}
}

func TestInitialized(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := t.Context()

	ok, err := reg.Initialized(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("fresh registry should not report initialized")
	}
	if err := reg.Register(ctx, stateList); err != nil {
		t.Fatal(err)
	}
	ok, err = reg.Initialized(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("populated registry should report initialized")
	}
}
