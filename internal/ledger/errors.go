package ledger

import (
	"strings"

	derrors "git.home.luguber.info/inful/applianced/internal/foundation/errors"
)

var (
	// ErrNoTouches indicates the target has no touches of the requested kind
	// at all. Higher layers translate this into their own sentinel values
	// (e.g. the "Not yet initialised" state) rather than an error.
	ErrNoTouches = derrors.NotFoundError("no touches recorded for target").Build()

	// ErrInsufficientHistory indicates the target has some touches of the
	// requested kind, but fewer than the requested depth. Deliberately
	// distinct from ErrNoTouches.
	ErrInsufficientHistory = derrors.HistoryError("not enough touch history for requested depth").Build()

	// ErrSequenceConflict indicates appends could not acquire the sequence
	// counter within the bounded retry budget.
	ErrSequenceConflict = derrors.ConcurrencyError("sequence assignment conflict").Build()
)

// isBusy reports whether err is transient SQLite write contention. modernc
// surfaces these as SQLITE_BUSY/SQLITE_LOCKED codes in the error text.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED") ||
		strings.Contains(msg, "database is locked")
}

// IsUniqueViolation reports whether err is a UNIQUE constraint failure, used
// by the directories to map duplicate names onto conflict errors.
func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
