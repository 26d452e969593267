package jobs

import (
	"errors"
	"testing"

	"git.home.luguber.info/inful/applianced/internal/config"
	"git.home.luguber.info/inful/applianced/internal/directory"
	"git.home.luguber.info/inful/applianced/internal/ledger"
	"git.home.luguber.info/inful/applianced/internal/registry"
)

func newTestTracker(t *testing.T) (*Tracker, *directory.Directory) {
	t.Helper()
	store, err := ledger.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	reg := registry.New(store)
	if err := reg.Register(t.Context(), config.DefaultStates); err != nil {
		t.Fatalf("register states: %v", err)
	}
	dir := directory.New(store, reg)
	return New(dir), dir
}

func TestBeginReturnsApplianceAsJobID(t *testing.T) {
	tracker, dir := newTestTracker(t)
	ctx := t.Context()

	id, err := dir.Create(ctx, "vm-01", "")
	if err != nil {
		t.Fatal(err)
	}
	jobID, err := tracker.Begin(ctx, id, OperationStart)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if jobID != id {
		t.Errorf("expected job id %d, got %d", id, jobID)
	}
	state, err := dir.CurrentState(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if state != "pre-start" {
		t.Errorf("expected pre-start after begin, got %q", state)
	}
}

func TestStartChainCompletesAtStarted(t *testing.T) {
	tracker, dir := newTestTracker(t)
	ctx := t.Context()

	id, _ := dir.Create(ctx, "vm-01", "")
	jobID, err := tracker.Begin(ctx, id, OperationStart)
	if err != nil {
		t.Fatal(err)
	}

	for _, phase := range []string{"start", "started"} {
		if err := tracker.Advance(ctx, id, phase); err != nil {
			t.Fatalf("advance to %q: %v", phase, err)
		}
	}

	status, err := tracker.Status(ctx, jobID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Phase != "started" {
		t.Errorf("expected phase started, got %q", status.Phase)
	}
	if !status.Complete {
		t.Error("job should be complete at terminal phase")
	}
}

func TestStopChainMidwayIsIncomplete(t *testing.T) {
	tracker, dir := newTestTracker(t)
	ctx := t.Context()

	id, _ := dir.Create(ctx, "vm-01", "")
	if _, err := tracker.Begin(ctx, id, OperationStop); err != nil {
		t.Fatal(err)
	}
	if err := tracker.Advance(ctx, id, "stop"); err != nil {
		t.Fatal(err)
	}

	status, err := tracker.Status(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if status.Phase != "stop" || status.Complete {
		t.Errorf("expected incomplete stop phase, got %+v", status)
	}
}

func TestStatusWithoutHistory(t *testing.T) {
	tracker, dir := newTestTracker(t)
	ctx := t.Context()

	id, _ := dir.Create(ctx, "untouched", "")
	status, err := tracker.Status(ctx, id)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Phase != directory.StateNotInitialised {
		t.Errorf("expected sentinel phase, got %q", status.Phase)
	}
	if status.Complete {
		t.Error("job with no history cannot be complete")
	}
}

func TestPhaseOrderIsNotEnforced(t *testing.T) {
	// Sequencing is the caller's job; the tracker accepts any chain phase
	// at any time.
	tracker, dir := newTestTracker(t)
	ctx := t.Context()

	id, _ := dir.Create(ctx, "vm-01", "")
	if err := tracker.Advance(ctx, id, "stopped"); err != nil {
		t.Fatalf("advance straight to terminal: %v", err)
	}
	status, err := tracker.Status(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !status.Complete {
		t.Error("terminal phase must read complete regardless of history")
	}
}

func TestRepeatedBeginAppendsAnotherPending(t *testing.T) {
	tracker, dir := newTestTracker(t)
	ctx := t.Context()

	id, _ := dir.Create(ctx, "vm-01", "")
	if _, err := tracker.Begin(ctx, id, OperationStart); err != nil {
		t.Fatal(err)
	}
	if err := tracker.Advance(ctx, id, "started"); err != nil {
		t.Fatal(err)
	}
	if _, err := tracker.Begin(ctx, id, OperationStart); err != nil {
		t.Fatalf("second begin: %v", err)
	}

	status, err := tracker.Status(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if status.Phase != "pre-start" || status.Complete {
		t.Errorf("expected fresh pending phase, got %+v", status)
	}

	touches, err := dir.History(ctx, id, ledger.KindState)
	if err != nil {
		t.Fatal(err)
	}
	if len(touches) != 3 {
		t.Errorf("expected 3 state touches, got %d", len(touches))
	}
}

func TestBeginRejectsUnknownOperation(t *testing.T) {
	tracker, dir := newTestTracker(t)
	ctx := t.Context()

	id, _ := dir.Create(ctx, "vm-01", "")
	if _, err := tracker.Begin(ctx, id, Operation("RESTART")); !errors.Is(err, ErrUnknownOperation) {
		t.Fatalf("expected ErrUnknownOperation, got %v", err)
	}
}

func TestAdvanceRejectsNonChainState(t *testing.T) {
	tracker, dir := newTestTracker(t)
	ctx := t.Context()

	id, _ := dir.Create(ctx, "vm-01", "")
	// "Boosting" is a registered machine state but not a job chain phase.
	if err := tracker.Advance(ctx, id, "Boosting"); !errors.Is(err, ErrUnknownPhase) {
		t.Fatalf("expected ErrUnknownPhase, got %v", err)
	}
}
