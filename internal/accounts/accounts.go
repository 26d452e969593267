// Package accounts manages account records and credentials. Passwords are
// never stored in the account row: each change is a password touch carrying a
// bcrypt hash, and verification always reads the latest one.
package accounts

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	derrors "git.home.luguber.info/inful/applianced/internal/foundation/errors"
	"git.home.luguber.info/inful/applianced/internal/ledger"
)

var (
	// ErrAccountNotFound indicates the referenced account has no record.
	ErrAccountNotFound = derrors.NotFoundError("unknown account").Build()

	// ErrDuplicateUsername indicates the username is already taken.
	ErrDuplicateUsername = derrors.ConflictError("username already registered").Build()

	// ErrNotImplemented is returned by the intentionally unimplemented
	// update and delete operations.
	ErrNotImplemented = derrors.NotImplementedError("account update and delete are not implemented").Build()
)

// Directory provides account creation, lookup and credential checks.
type Directory struct {
	store *ledger.Store
}

// New creates an account directory backed by the given store.
func New(store *ledger.Store) *Directory {
	return &Directory{store: store}
}

// Create registers a new account and returns its id.
func (d *Directory) Create(ctx context.Context, typ, handle, name, username string) (int64, error) {
	if username == "" {
		return 0, derrors.ValidationError("username cannot be empty").Build()
	}
	id, err := d.store.InsertAccount(ctx, typ, handle, name, username)
	if err != nil {
		if ledger.IsUniqueViolation(err) {
			return 0, ErrDuplicateUsername.WithContext("username", username)
		}
		return 0, derrors.WrapError(err, derrors.CategoryStorage, "create account").Build()
	}
	return id, nil
}

// Exists reports whether an account record exists for the id.
func (d *Directory) Exists(ctx context.Context, accountID int64) (bool, error) {
	_, found, err := d.store.AccountByID(ctx, accountID)
	return found, err
}

// Details returns the account record.
func (d *Directory) Details(ctx context.Context, accountID int64) (ledger.Account, error) {
	a, found, err := d.store.AccountByID(ctx, accountID)
	if err != nil {
		return ledger.Account{}, err
	}
	if !found {
		return ledger.Account{}, ErrAccountNotFound.WithContext("account_id", accountID)
	}
	return a, nil
}

// SetPassword hashes the password with bcrypt and appends a password touch.
// Earlier hashes stay in history but never match again.
func (d *Directory) SetPassword(ctx context.Context, accountID int64, password string) error {
	if password == "" {
		return derrors.ValidationError("password cannot be empty").Build()
	}
	if ok, err := d.Exists(ctx, accountID); err != nil {
		return err
	} else if !ok {
		return ErrAccountNotFound.WithContext("account_id", accountID)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return derrors.WrapError(err, derrors.CategoryInternal, "hash password").Build()
	}
	_, err = d.store.Append(ctx, accountID, ledger.PasswordChange{Hash: string(hash)})
	return err
}

// CheckPassword verifies the password against the latest password touch. An
// account that never had a password set matches nothing.
func (d *Directory) CheckPassword(ctx context.Context, accountID int64, password string) (bool, error) {
	touch, err := d.store.Latest(ctx, accountID, ledger.KindPassword)
	if errors.Is(err, ledger.ErrNoTouches) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	change, ok := touch.Payload.(ledger.PasswordChange)
	if !ok {
		return false, derrors.InternalError("password touch carries unexpected payload").
			WithContext("sequence", touch.Sequence).Build()
	}
	return bcrypt.CompareHashAndPassword([]byte(change.Hash), []byte(password)) == nil, nil
}

// Delete is intentionally unimplemented: accounts are never physically
// deleted.
func (d *Directory) Delete(context.Context, int64) error {
	return ErrNotImplemented
}

// Update is intentionally unimplemented.
func (d *Directory) Update(context.Context, int64) error {
	return ErrNotImplemented
}
