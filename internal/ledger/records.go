package ledger

import (
	"context"
	"database/sql"

	derrors "git.home.luguber.info/inful/applianced/internal/foundation/errors"
)

// Row-level access for the directory tables the ledger owns. These helpers
// report "not found" via a boolean rather than an error; domain classification
// belongs to the component packages.

// RegisterState inserts a state with an explicit id. The registry assigns ids
// 1..N in registration order.
func (s *Store) RegisterState(ctx context.Context, id int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `INSERT INTO states (id, name) VALUES (?, ?)`, id, name)
	return err
}

// StateCount returns the number of registered states.
func (s *Store) StateCount(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM states`).Scan(&n); err != nil {
		return 0, derrors.WrapError(err, derrors.CategoryStorage, "count states").Build()
	}
	return n, nil
}

// StateIDByName resolves a state name to its id.
func (s *Store) StateIDByName(ctx context.Context, name string) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM states WHERE name = ?`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, derrors.WrapError(err, derrors.CategoryStorage, "query state by name").Build()
	}
	return id, true, nil
}

// StateNameByID resolves a state id to its name.
func (s *Store) StateNameByID(ctx context.Context, id int64) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM states WHERE id = ?`, id).Scan(&name)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, derrors.WrapError(err, derrors.CategoryStorage, "query state by id").Build()
	}
	return name, true, nil
}

// InsertAppliance creates an appliance record and returns its surrogate id.
// A duplicate name surfaces as a UNIQUE violation (see IsUniqueViolation).
func (s *Store) InsertAppliance(ctx context.Context, name, uuid string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `INSERT INTO appliances (name, uuid) VALUES (?, ?)`, name, uuid)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ApplianceByName looks up an appliance by its external name.
func (s *Store) ApplianceByName(ctx context.Context, name string) (Appliance, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var a Appliance
	err := s.db.QueryRowContext(ctx, `SELECT id, name, uuid FROM appliances WHERE name = ?`, name).
		Scan(&a.ID, &a.Name, &a.UUID)
	if err == sql.ErrNoRows {
		return Appliance{}, false, nil
	}
	if err != nil {
		return Appliance{}, false, derrors.WrapError(err, derrors.CategoryStorage, "query appliance by name").Build()
	}
	return a, true, nil
}

// ApplianceByID looks up an appliance by its surrogate id.
func (s *Store) ApplianceByID(ctx context.Context, id int64) (Appliance, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var a Appliance
	err := s.db.QueryRowContext(ctx, `SELECT id, name, uuid FROM appliances WHERE id = ?`, id).
		Scan(&a.ID, &a.Name, &a.UUID)
	if err == sql.ErrNoRows {
		return Appliance{}, false, nil
	}
	if err != nil {
		return Appliance{}, false, derrors.WrapError(err, derrors.CategoryStorage, "query appliance by id").Build()
	}
	return a, true, nil
}

// InsertAccount creates an account record and returns its id.
func (s *Store) InsertAccount(ctx context.Context, typ, handle, name, username string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (type, handle, name, username) VALUES (?, ?, ?, ?)`,
		typ, handle, name, username)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// AccountByID looks up an account by id.
func (s *Store) AccountByID(ctx context.Context, id int64) (Account, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var a Account
	err := s.db.QueryRowContext(ctx,
		`SELECT id, type, handle, name, username FROM accounts WHERE id = ?`, id).
		Scan(&a.ID, &a.Type, &a.Handle, &a.Name, &a.Username)
	if err == sql.ErrNoRows {
		return Account{}, false, nil
	}
	if err != nil {
		return Account{}, false, derrors.WrapError(err, derrors.CategoryStorage, "query account by id").Build()
	}
	return a, true, nil
}

// SumCreditDeltas computes the running balance for an account. An account
// with no credit touches sums to zero; that is a valid balance, not an error.
func (s *Store) SumCreditDeltas(ctx context.Context, accountID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sum int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(delta), 0) FROM touches WHERE target_id = ? AND kind = ?`,
		accountID, string(KindCredit)).Scan(&sum)
	if err != nil {
		return 0, derrors.WrapError(err, derrors.CategoryStorage, "sum credit deltas").Build()
	}
	return sum, nil
}

// TargetsByLatestState returns the ids of appliances whose highest-sequence
// state touch references stateID. Only the latest touch per appliance counts.
func (s *Store) TargetsByLatestState(ctx context.Context, stateID int64) ([]int64, error) {
	return s.targetsByLatest(ctx, KindState, "state_id", stateID)
}

// TargetsByLatestOwner returns the ids of appliances whose highest-sequence
// ownership touch references ownerID.
func (s *Store) TargetsByLatestOwner(ctx context.Context, ownerID int64) ([]int64, error) {
	return s.targetsByLatest(ctx, KindOwnership, "owner_id", ownerID)
}

func (s *Store) targetsByLatest(ctx context.Context, kind Kind, column string, value int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// column is one of two trusted constants, never caller input.
	query := `SELECT t.target_id
		 FROM touches t
		 JOIN (SELECT target_id, MAX(sequence) AS seq FROM touches WHERE kind = ? GROUP BY target_id) latest
		   ON t.sequence = latest.seq
		 WHERE t.` + column + ` = ?`

	rows, err := s.db.QueryContext(ctx, query, string(kind), value)
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryStorage, "query latest touches").Build()
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, derrors.WrapError(err, derrors.CategoryStorage, "scan target id").Build()
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryStorage, "iterate target ids").Build()
	}
	return ids, nil
}
