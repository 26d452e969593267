// Package jobs models in-flight start/stop operations as chains of state
// touches. A job is not a table row: it is a view over the appliance's
// state history, identified by the appliance id.
package jobs

import (
	"context"

	"git.home.luguber.info/inful/applianced/internal/directory"
	derrors "git.home.luguber.info/inful/applianced/internal/foundation/errors"
)

// Operation selects which phase chain a job walks.
type Operation string

const (
	OperationStart Operation = "START"
	OperationStop  Operation = "STOP"
)

// Phase chains. Each chain is a pending -> in-progress -> done progression;
// the last entry is the terminal phase.
var (
	startChain = []string{"pre-start", "start", "started"}
	stopChain  = []string{"pre-stop", "stop", "stopped"}
)

var (
	// ErrUnknownOperation indicates an operation outside START/STOP.
	ErrUnknownOperation = derrors.ValidationError("unknown job operation").Build()

	// ErrUnknownPhase indicates a phase name that belongs to neither chain.
	ErrUnknownPhase = derrors.ValidationError("phase is not part of a job chain").Build()
)

// Status reports where an appliance's job chain currently stands. Phase is
// the name of the latest state touch; Complete is true iff that phase is a
// chain's terminal phase.
type Status struct {
	ApplianceID int64  `json:"artifact_id"`
	Phase       string `json:"state"`
	Complete    bool   `json:"complete"`
}

// Tracker begins, advances and reports job chains.
type Tracker struct {
	dir *directory.Directory
}

// New creates a tracker over the given appliance directory.
func New(dir *directory.Directory) *Tracker {
	return &Tracker{dir: dir}
}

// Begin appends the pending phase of the chosen chain and returns the job id,
// which is the appliance id: at most one job per chain per appliance is
// tracked, and a repeated begin simply appends another pending touch.
func (t *Tracker) Begin(ctx context.Context, applianceID int64, op Operation) (int64, error) {
	chain, err := chainFor(op)
	if err != nil {
		return 0, err
	}
	if _, err := t.dir.SetState(ctx, applianceID, chain[0]); err != nil {
		return 0, err
	}
	return applianceID, nil
}

// Advance appends the named phase touch. Phase ordering is the caller's
// responsibility; only membership in a chain is checked here.
func (t *Tracker) Advance(ctx context.Context, applianceID int64, phase string) error {
	if !isChainPhase(phase) {
		return ErrUnknownPhase.WithContext("phase", phase)
	}
	_, err := t.dir.SetState(ctx, applianceID, phase)
	return err
}

// Status derives the job's progress from the appliance's latest state touch.
// An appliance with no state history reports the uninitialised sentinel and
// is never complete.
func (t *Tracker) Status(ctx context.Context, jobID int64) (Status, error) {
	state, err := t.dir.CurrentState(ctx, jobID)
	if err != nil {
		return Status{}, err
	}
	return Status{
		ApplianceID: jobID,
		Phase:       state,
		Complete:    isTerminal(state),
	}, nil
}

func chainFor(op Operation) ([]string, error) {
	switch op {
	case OperationStart:
		return startChain, nil
	case OperationStop:
		return stopChain, nil
	default:
		return nil, ErrUnknownOperation.WithContext("operation", string(op))
	}
}

func isChainPhase(phase string) bool {
	for _, chain := range [][]string{startChain, stopChain} {
		for _, p := range chain {
			if p == phase {
				return true
			}
		}
	}
	return false
}

func isTerminal(phase string) bool {
	return phase == startChain[len(startChain)-1] || phase == stopChain[len(stopChain)-1]
}
