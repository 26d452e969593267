package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	derrors "git.home.luguber.info/inful/applianced/internal/foundation/errors"
	"git.home.luguber.info/inful/applianced/internal/logfields"
	"git.home.luguber.info/inful/applianced/internal/metrics"
	"git.home.luguber.info/inful/applianced/internal/observability"
	"git.home.luguber.info/inful/applianced/internal/retry"
)

// TouchPublisher receives every successfully appended touch. Implementations
// must not block the append path; a nil publisher disables publishing.
type TouchPublisher interface {
	PublishTouch(ctx context.Context, t Touch)
}

// Store is the SQLite-backed touch ledger plus the directory tables it owns
// (states, appliances, accounts). The AUTOINCREMENT primary key on the
// touches table is the global sequence source: it gives a total order across
// all targets, not per-target counters.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	policy retry.Policy
	rec    metrics.Recorder
	pub    TouchPublisher
}

// Option customises a Store.
type Option func(*Store)

// WithRetryPolicy sets the backoff policy for transient append contention.
func WithRetryPolicy(p retry.Policy) Option {
	return func(s *Store) { s.policy = p }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Store) { s.rec = r }
}

// WithPublisher sets the touch event publisher.
func WithPublisher(p TouchPublisher) Option {
	return func(s *Store) { s.pub = p }
}

// Open creates a ledger store at the given path. Use ":memory:" for an
// in-memory database (tests), or a file path for persistent storage.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryStorage, "open ledger database").Build()
	}
	// A single connection keeps :memory: databases coherent and serializes
	// sequence assignment at the pool level.
	db.SetMaxOpenConns(1)

	store := &Store{
		db:     db,
		policy: retry.DefaultPolicy(),
		rec:    metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(store)
	}

	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, derrors.WrapError(err, derrors.CategoryStorage, "initialize ledger schema").Build()
	}
	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS states (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	);
	CREATE TABLE IF NOT EXISTS appliances (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		uuid TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL,
		handle TEXT NOT NULL,
		name TEXT NOT NULL,
		username TEXT NOT NULL UNIQUE
	);
	CREATE TABLE IF NOT EXISTS touches (
		sequence INTEGER PRIMARY KEY AUTOINCREMENT,
		target_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		state_id INTEGER,
		cores INTEGER,
		ram INTEGER,
		owner_id INTEGER,
		delta INTEGER,
		password_hash TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_touches_target_kind ON touches(target_id, kind);
	CREATE INDEX IF NOT EXISTS idx_touches_kind ON touches(kind);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append atomically assigns the next sequence number and durably persists the
// touch, returning the assigned sequence. Transient contention is retried
// with bounded backoff; exhaustion surfaces ErrSequenceConflict.
func (s *Store) Append(ctx context.Context, targetID int64, p Payload) (int64, error) {
	kind := string(p.Kind())
	start := time.Now()
	ctx = observability.WithTouchKind(ctx, kind)

	var seq int64
	var createdAt time.Time
	err := s.appendWithRetry(ctx, kind, func() error {
		var ierr error
		seq, createdAt, ierr = s.appendOnce(ctx, targetID, p)
		return ierr
	})

	if err != nil {
		s.rec.IncAppendResult(kind, metrics.ResultFailed)
		observability.ErrorContext(ctx, "touch append failed", logfields.Error(err))
		if isBusy(err) {
			return 0, ErrSequenceConflict.WithContext("target_id", targetID)
		}
		return 0, derrors.WrapError(err, derrors.CategoryStorage, "append touch").
			WithContext("target_id", targetID).
			WithContext("kind", kind).
			Build()
	}

	s.rec.IncAppendResult(kind, metrics.ResultSuccess)
	s.rec.ObserveAppendDuration(kind, time.Since(start))
	observability.DebugContext(ctx, "touch appended", logfields.Sequence(seq))

	if s.pub != nil {
		s.pub.PublishTouch(ctx, Touch{
			Sequence:  seq,
			TargetID:  targetID,
			Kind:      p.Kind(),
			CreatedAt: createdAt,
			Payload:   p,
		})
	}
	return seq, nil
}

// appendWithRetry runs op under the store's backoff policy. The retry counter
// counts retry attempts actually made; a busy result that exhausts the budget
// adds nothing on its own.
func (s *Store) appendWithRetry(ctx context.Context, kind string, op func() error) error {
	attempt := 0
	return s.policy.Do(ctx, func() error {
		attempt++
		if attempt > 1 {
			s.rec.IncAppendRetry(kind)
		}
		return op()
	}, isBusy)
}

func (s *Store) appendOnce(ctx context.Context, targetID int64, p Payload) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stateID, cores, ram, ownerID, delta sql.NullInt64
	var hash sql.NullString
	switch v := p.(type) {
	case StateChange:
		stateID = sql.NullInt64{Int64: v.StateID, Valid: true}
	case SpecificationChange:
		cores = sql.NullInt64{Int64: v.Cores, Valid: true}
		ram = sql.NullInt64{Int64: v.RAM, Valid: true}
	case OwnershipChange:
		ownerID = sql.NullInt64{Int64: v.OwnerID, Valid: true}
	case CreditAdjustment:
		delta = sql.NullInt64{Int64: v.Delta, Valid: true}
	case PasswordChange:
		hash = sql.NullString{String: v.Hash, Valid: true}
	default:
		return 0, time.Time{}, fmt.Errorf("unsupported touch payload %T", p)
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO touches (target_id, kind, created_at, state_id, cores, ram, owner_id, delta, password_hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		targetID, string(p.Kind()), now.Unix(), stateID, cores, ram, ownerID, delta, hash,
	)
	if err != nil {
		return 0, time.Time{}, err
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, time.Time{}, err
	}
	return seq, now, nil
}

// Latest returns the highest-sequence touch of the given kind for the target,
// or ErrNoTouches.
func (s *Store) Latest(ctx context.Context, targetID int64, kind Kind) (Touch, error) {
	return s.NthBack(ctx, targetID, kind, 0)
}

// NthBack returns the touch n positions before the latest (n=0 is latest).
// Returns ErrNoTouches when the target has no touches of this kind at all,
// and ErrInsufficientHistory when it has some but fewer than n+1.
func (s *Store) NthBack(ctx context.Context, targetID int64, kind Kind, n int) (Touch, error) {
	if n < 0 {
		return Touch{}, derrors.ValidationError("history depth cannot be negative").
			WithContext("n", n).Build()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		touchColumns+` FROM touches WHERE target_id = ? AND kind = ?
		 ORDER BY sequence DESC LIMIT 1 OFFSET ?`,
		targetID, string(kind), n,
	)
	t, err := scanTouch(row)
	if err == nil {
		return t, nil
	}
	if err != sql.ErrNoRows {
		return Touch{}, derrors.WrapError(err, derrors.CategoryStorage, "query touch").Build()
	}

	var count int
	if cerr := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM touches WHERE target_id = ? AND kind = ?`,
		targetID, string(kind),
	).Scan(&count); cerr != nil {
		return Touch{}, derrors.WrapError(cerr, derrors.CategoryStorage, "count touches").Build()
	}
	if count == 0 {
		return Touch{}, ErrNoTouches.WithContext("target_id", targetID).WithContext("kind", string(kind))
	}
	return Touch{}, ErrInsufficientHistory.
		WithContext("target_id", targetID).
		WithContext("kind", string(kind)).
		WithContext("requested_depth", n).
		WithContext("available", count)
}

// History returns all touches of the given kind for the target, ordered by
// descending sequence. Each call re-reads current ledger state; it is a
// snapshot, not a live stream. An empty history is not an error.
func (s *Store) History(ctx context.Context, targetID int64, kind Kind) ([]Touch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		touchColumns+` FROM touches WHERE target_id = ? AND kind = ? ORDER BY sequence DESC`,
		targetID, string(kind),
	)
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryStorage, "query touch history").Build()
	}
	defer rows.Close()

	var touches []Touch
	for rows.Next() {
		t, err := scanTouch(rows)
		if err != nil {
			return nil, derrors.WrapError(err, derrors.CategoryStorage, "scan touch row").Build()
		}
		touches = append(touches, t)
	}
	if err := rows.Err(); err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryStorage, "iterate touch rows").Build()
	}
	return touches, nil
}

const touchColumns = `SELECT sequence, target_id, kind, created_at, state_id, cores, ram, owner_id, delta, password_hash`

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTouch(row scanner) (Touch, error) {
	var t Touch
	var kind string
	var createdAt int64
	var stateID, cores, ram, ownerID, delta sql.NullInt64
	var hash sql.NullString

	if err := row.Scan(&t.Sequence, &t.TargetID, &kind, &createdAt, &stateID, &cores, &ram, &ownerID, &delta, &hash); err != nil {
		return Touch{}, err
	}
	t.Kind = Kind(kind)
	t.CreatedAt = time.Unix(createdAt, 0)

	switch t.Kind {
	case KindState:
		t.Payload = StateChange{StateID: stateID.Int64}
	case KindSpecification:
		t.Payload = SpecificationChange{Cores: cores.Int64, RAM: ram.Int64}
	case KindOwnership:
		t.Payload = OwnershipChange{OwnerID: ownerID.Int64}
	case KindCredit:
		t.Payload = CreditAdjustment{Delta: delta.Int64}
	case KindPassword:
		t.Payload = PasswordChange{Hash: hash.String}
	default:
		return Touch{}, fmt.Errorf("unknown touch kind %q at sequence %d", kind, t.Sequence)
	}
	return t, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
