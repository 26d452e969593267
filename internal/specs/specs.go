// Package specs maintains the versioned cores/RAM specification history per
// appliance, queried by latest or N-versions-back.
package specs

import (
	"context"

	derrors "git.home.luguber.info/inful/applianced/internal/foundation/errors"
	"git.home.luguber.info/inful/applianced/internal/ledger"
)

// ErrInvalidSpecification indicates a non-positive cores or RAM value.
var ErrInvalidSpecification = derrors.ValidationError("specification fields must be positive").Build()

// Specification is one cores/RAM record.
type Specification struct {
	Cores int64 `json:"cores"`
	RAM   int64 `json:"ram"`
}

// History records and reads specification versions through the touch ledger.
type History struct {
	store *ledger.Store
}

// New creates a specification history backed by the given store.
func New(store *ledger.Store) *History {
	return &History{store: store}
}

// Add appends a specification touch and returns the assigned sequence.
func (h *History) Add(ctx context.Context, applianceID, cores, ram int64) (int64, error) {
	if cores <= 0 {
		return 0, ErrInvalidSpecification.WithContext("cores", cores)
	}
	if ram <= 0 {
		return 0, ErrInvalidSpecification.WithContext("ram", ram)
	}
	return h.store.Append(ctx, applianceID, ledger.SpecificationChange{Cores: cores, RAM: ram})
}

// Latest returns the most recent specification for the appliance.
func (h *History) Latest(ctx context.Context, applianceID int64) (Specification, error) {
	return h.nthBack(ctx, applianceID, 0)
}

// Previous returns the specification n versions before the latest; n=1 is the
// record immediately preceding the latest.
func (h *History) Previous(ctx context.Context, applianceID int64, n int) (Specification, error) {
	return h.nthBack(ctx, applianceID, n)
}

func (h *History) nthBack(ctx context.Context, applianceID int64, n int) (Specification, error) {
	touch, err := h.store.NthBack(ctx, applianceID, ledger.KindSpecification, n)
	if err != nil {
		return Specification{}, err
	}
	change, ok := touch.Payload.(ledger.SpecificationChange)
	if !ok {
		return Specification{}, derrors.InternalError("specification touch carries unexpected payload").
			WithContext("sequence", touch.Sequence).Build()
	}
	return Specification{Cores: change.Cores, RAM: change.RAM}, nil
}
