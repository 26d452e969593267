// Package ledger implements the append-only touch ledger: the single source
// of truth for appliance state, specification, ownership and account credit
// history. Touches are never updated or deleted; their sequence number is the
// only ordering authority (timestamps are advisory).
package ledger

import "time"

// Kind tags the payload variant carried by a touch.
type Kind string

const (
	KindState         Kind = "state"
	KindSpecification Kind = "specification"
	KindOwnership     Kind = "ownership"
	KindCredit        Kind = "credit"
	KindPassword      Kind = "password"
)

// Payload is the closed set of touch payload shapes. Consumers switch on the
// concrete type; adding a variant requires updating every switch.
type Payload interface {
	Kind() Kind
}

// StateChange records a lifecycle state transition by registry id.
type StateChange struct {
	StateID int64
}

// SpecificationChange records a new cores/RAM specification version.
type SpecificationChange struct {
	Cores int64
	RAM   int64
}

// OwnershipChange records an ownership grant or transfer to an account.
type OwnershipChange struct {
	OwnerID int64
}

// CreditAdjustment records a signed credit delta against an account.
type CreditAdjustment struct {
	Delta int64
}

// PasswordChange records a new password hash for an account.
type PasswordChange struct {
	Hash string
}

func (StateChange) Kind() Kind         { return KindState }
func (SpecificationChange) Kind() Kind { return KindSpecification }
func (OwnershipChange) Kind() Kind     { return KindOwnership }
func (CreditAdjustment) Kind() Kind    { return KindCredit }
func (PasswordChange) Kind() Kind      { return KindPassword }

// Touch is one immutable, sequenced event against an appliance or account.
type Touch struct {
	Sequence  int64
	TargetID  int64
	Kind      Kind
	CreatedAt time.Time
	Payload   Payload
}

// Appliance is the directory record for a managed compute appliance.
// The owning account is not a field here: ownership is ledger history.
type Appliance struct {
	ID   int64
	Name string
	UUID string
}

// Account is the directory record for an account holder.
type Account struct {
	ID       int64
	Type     string
	Handle   string
	Name     string
	Username string
}
