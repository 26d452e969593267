// Package directory creates appliances, resolves names to identifiers, and
// serves the ledger-derived views of current state and ownership.
package directory

import (
	"context"
	"errors"

	derrors "git.home.luguber.info/inful/applianced/internal/foundation/errors"
	"git.home.luguber.info/inful/applianced/internal/ledger"
	"git.home.luguber.info/inful/applianced/internal/registry"
	"git.home.luguber.info/inful/applianced/internal/util/sets"
)

// StateNotInitialised is the distinguished state reported for an appliance
// that has no state touches yet. It is a defined sentinel, not an error.
const StateNotInitialised = "Not yet initialised"

var (
	// ErrDuplicateName indicates the appliance name is already registered.
	ErrDuplicateName = derrors.ConflictError("appliance name already registered").Build()

	// ErrApplianceNotFound indicates the referenced appliance has no record.
	ErrApplianceNotFound = derrors.NotFoundError("unknown appliance").Build()

	// ErrNotImplemented is returned by the intentionally unimplemented
	// update and delete operations.
	ErrNotImplemented = derrors.NotImplementedError("appliance update and delete are not implemented").Build()
)

// Details is the plain record handed to the adapter for serialization.
type Details struct {
	ID    int64  `json:"artifact_id"`
	Name  string `json:"artifact_name"`
	UUID  string `json:"artifact_uuid"`
	State string `json:"state"`
}

// Directory provides appliance creation and ledger-derived lookups.
type Directory struct {
	store    *ledger.Store
	registry *registry.Registry
}

// New creates a directory backed by the given store and state registry.
func New(store *ledger.Store, reg *registry.Registry) *Directory {
	return &Directory{store: store, registry: reg}
}

// Create registers a new appliance and returns its surrogate id. It appends
// no touch: a created appliance starts with zero history. An empty uuid
// defaults to the appliance name.
func (d *Directory) Create(ctx context.Context, name, uuid string) (int64, error) {
	if name == "" {
		return 0, derrors.ValidationError("appliance name cannot be empty").Build()
	}
	if uuid == "" {
		uuid = name
	}
	id, err := d.store.InsertAppliance(ctx, name, uuid)
	if err != nil {
		if ledger.IsUniqueViolation(err) {
			return 0, ErrDuplicateName.WithContext("name", name)
		}
		return 0, derrors.WrapError(err, derrors.CategoryStorage, "create appliance").Build()
	}
	return id, nil
}

// IDForName resolves an appliance name to its id.
func (d *Directory) IDForName(ctx context.Context, name string) (int64, error) {
	a, found, err := d.store.ApplianceByName(ctx, name)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, ErrApplianceNotFound.WithContext("name", name)
	}
	return a.ID, nil
}

// CurrentState derives the appliance's state from its latest state touch,
// or returns StateNotInitialised when it has none.
func (d *Directory) CurrentState(ctx context.Context, applianceID int64) (string, error) {
	touch, err := d.store.Latest(ctx, applianceID, ledger.KindState)
	if errors.Is(err, ledger.ErrNoTouches) {
		return StateNotInitialised, nil
	}
	if err != nil {
		return "", err
	}
	change, ok := touch.Payload.(ledger.StateChange)
	if !ok {
		return "", derrors.InternalError("state touch carries non-state payload").
			WithContext("sequence", touch.Sequence).Build()
	}
	return d.registry.NameOf(ctx, change.StateID)
}

// SetState resolves the state name and appends a state touch. Any registered
// state may be applied to any appliance at any time; transition legality is
// the caller's concern, not the ledger's.
func (d *Directory) SetState(ctx context.Context, applianceID int64, state string) (int64, error) {
	stateID, err := d.registry.Resolve(ctx, state)
	if err != nil {
		return 0, err
	}
	return d.store.Append(ctx, applianceID, ledger.StateChange{StateID: stateID})
}

// GrantOwnership appends an ownership touch transferring the appliance to the
// given account. Prior grants remain in history.
func (d *Directory) GrantOwnership(ctx context.Context, applianceID, accountID int64) (int64, error) {
	return d.store.Append(ctx, applianceID, ledger.OwnershipChange{OwnerID: accountID})
}

// CurrentOwner derives the owning account from the latest ownership touch.
func (d *Directory) CurrentOwner(ctx context.Context, applianceID int64) (int64, error) {
	touch, err := d.store.Latest(ctx, applianceID, ledger.KindOwnership)
	if err != nil {
		return 0, err
	}
	change, ok := touch.Payload.(ledger.OwnershipChange)
	if !ok {
		return 0, derrors.InternalError("ownership touch carries non-ownership payload").
			WithContext("sequence", touch.Sequence).Build()
	}
	return change.OwnerID, nil
}

// ListByOwner returns the set of appliances whose latest ownership touch
// references the account.
func (d *Directory) ListByOwner(ctx context.Context, accountID int64) (sets.Set[int64], error) {
	ids, err := d.store.TargetsByLatestOwner(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return sets.New(ids...), nil
}

// ListByState returns the set of appliances whose latest state touch matches
// the named state.
func (d *Directory) ListByState(ctx context.Context, state string) (sets.Set[int64], error) {
	stateID, err := d.registry.Resolve(ctx, state)
	if err != nil {
		return nil, err
	}
	ids, err := d.store.TargetsByLatestState(ctx, stateID)
	if err != nil {
		return nil, err
	}
	return sets.New(ids...), nil
}

// Details returns the appliance record plus its derived current state.
func (d *Directory) Details(ctx context.Context, applianceID int64) (Details, error) {
	a, found, err := d.store.ApplianceByID(ctx, applianceID)
	if err != nil {
		return Details{}, err
	}
	if !found {
		return Details{}, ErrApplianceNotFound.WithContext("appliance_id", applianceID)
	}
	state, err := d.CurrentState(ctx, applianceID)
	if err != nil {
		return Details{}, err
	}
	return Details{ID: a.ID, Name: a.Name, UUID: a.UUID, State: state}, nil
}

// StateName resolves a registered state id to its name.
func (d *Directory) StateName(ctx context.Context, stateID int64) (string, error) {
	return d.registry.NameOf(ctx, stateID)
}

// Delete is intentionally unimplemented: appliances are never physically
// deleted. Surfaced to the adapter as a 501-class outcome.
func (d *Directory) Delete(context.Context, int64) error {
	return ErrNotImplemented
}

// Update is intentionally unimplemented.
func (d *Directory) Update(context.Context, int64) error {
	return ErrNotImplemented
}

// History returns the appliance's touch history of one kind, newest first.
func (d *Directory) History(ctx context.Context, applianceID int64, kind ledger.Kind) ([]ledger.Touch, error) {
	if _, found, err := d.store.ApplianceByID(ctx, applianceID); err != nil {
		return nil, err
	} else if !found {
		return nil, ErrApplianceNotFound.WithContext("appliance_id", applianceID)
	}
	return d.store.History(ctx, applianceID, kind)
}
