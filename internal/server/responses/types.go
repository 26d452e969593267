// Package responses defines the JSON response shapes of the HTTP API.
package responses

// UserResponse is the account record decorated with the derived credit
// balance.
type UserResponse struct {
	ActorID  int64  `json:"actor_id"`
	Type     string `json:"type"`
	Handle   string `json:"handle"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Credits  int64  `json:"credits"`
}

// CreditResponse reports the outcome of a credit adjustment.
type CreditResponse struct {
	ActorID       int64 `json:"actor_id"`
	CreditChange  int64 `json:"credit_change"`
	CreditBalance int64 `json:"credit_balance"`
}

// BalanceResponse reports a bare credit balance.
type BalanceResponse struct {
	CreditBalance int64 `json:"credit_balance"`
}

// ServerResponse is the appliance record plus its derived current state.
type ServerResponse struct {
	ArtifactID   int64  `json:"artifact_id"`
	ArtifactName string `json:"artifact_name"`
	ArtifactUUID string `json:"artifact_uuid"`
	State        string `json:"state"`
}

// CreatedResponse reports the id assigned to a newly created record.
type CreatedResponse struct {
	ID int64 `json:"id"`
}

// ProgressResponse reports where a job chain currently stands.
type ProgressResponse struct {
	ArtifactID int64  `json:"artifact_id"`
	State      string `json:"state"`
	Complete   bool   `json:"complete"`
}

// SpecificationResponse is one cores/RAM record.
type SpecificationResponse struct {
	Cores int64 `json:"cores"`
	RAM   int64 `json:"ram"`
}

// TouchResponse is one ledger entry in a history listing. Payload fields are
// set per kind; password touches expose no payload.
type TouchResponse struct {
	Sequence  int64  `json:"sequence"`
	TargetID  int64  `json:"target_id"`
	Kind      string `json:"kind"`
	CreatedAt int64  `json:"created_at"`
	State     string `json:"state,omitempty"`
	Cores     int64  `json:"cores,omitempty"`
	RAM       int64  `json:"ram,omitempty"`
	OwnerID   int64  `json:"owner_id,omitempty"`
	Delta     int64  `json:"delta,omitempty"`
}

// SequenceResponse reports the sequence assigned to an appended touch.
type SequenceResponse struct {
	Sequence int64 `json:"sequence"`
}
