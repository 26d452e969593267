// Package registry assigns and resolves stable integer identifiers for the
// configured, ordered set of lifecycle state names.
package registry

import (
	"context"

	derrors "git.home.luguber.info/inful/applianced/internal/foundation/errors"
	"git.home.luguber.info/inful/applianced/internal/ledger"
)

var (
	// ErrDuplicateState indicates a name repeats within a registration list.
	ErrDuplicateState = derrors.ValidationError("duplicate state name in registration list").Build()

	// ErrAlreadyInitialized indicates Register was called on a non-empty
	// registry. Tests reset by rebuilding storage between runs.
	ErrAlreadyInitialized = derrors.ConflictError("state registry already initialised").Build()

	// ErrUnknownState indicates a name or id that was never registered.
	ErrUnknownState = derrors.NotFoundError("unknown state").Build()
)

// Registry resolves state names to ids and back. States are immutable once
// registered: never deleted, never renumbered.
type Registry struct {
	store *ledger.Store
}

// New creates a registry backed by the given ledger store.
func New(store *ledger.Store) *Registry {
	return &Registry{store: store}
}

// Register assigns identifiers 1..N to names in list order. It fails on
// duplicate names within the input and when the registry is already populated.
func (r *Registry) Register(ctx context.Context, names []string) error {
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			return ErrDuplicateState.WithContext("state", name)
		}
		seen[name] = struct{}{}
	}

	count, err := r.store.StateCount(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrAlreadyInitialized
	}

	for i, name := range names {
		if err := r.store.RegisterState(ctx, int64(i+1), name); err != nil {
			return derrors.WrapError(err, derrors.CategoryStorage, "register state").
				WithContext("state", name).Build()
		}
	}
	return nil
}

// Initialized reports whether the registry holds any states.
func (r *Registry) Initialized(ctx context.Context) (bool, error) {
	count, err := r.store.StateCount(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Resolve returns the id assigned to a state name.
func (r *Registry) Resolve(ctx context.Context, name string) (int64, error) {
	id, found, err := r.store.StateIDByName(ctx, name)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, ErrUnknownState.WithContext("state", name)
	}
	return id, nil
}

// NameOf returns the name for a state id.
func (r *Registry) NameOf(ctx context.Context, id int64) (string, error) {
	name, found, err := r.store.StateNameByID(ctx, id)
	if err != nil {
		return "", err
	}
	if !found {
		return "", ErrUnknownState.WithContext("state_id", id)
	}
	return name, nil
}
