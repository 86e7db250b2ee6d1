// Package sqlite implements the trip-planning store on SQLite.
//
// The database is opened in WAL mode with foreign keys enforced and every
// write transaction started IMMEDIATE, so a writer holds the database write
// lock from BEGIN and concurrent writers queue on busy_timeout instead of
// failing at COMMIT. Plan version numbers and chat sequence numbers are
// allocated under a per-key lock (see internal/keylock) inside such a
// transaction; unique indexes are the storage backstop.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mesh-intelligence/tripstate/internal/keylock"
	"github.com/mesh-intelligence/tripstate/internal/metrics"
	"github.com/mesh-intelligence/tripstate/pkg/types"
)

// DBFile is the database file name inside the data directory.
const DBFile = "tripstate.db"

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var _ types.Store = (*Backend)(nil)

// Backend implements types.Store on a SQLite database file.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB

	locks   *keylock.Keyed
	logger  *zap.Logger
	metrics *metrics.Recorder
	now     func() time.Time

	lockOpts []keylock.Option
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the backend logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithLocker adds a distributed locker under the per-key locks, for
// deployments where several processes share one database.
func WithLocker(l keylock.Locker) Option {
	return func(b *Backend) { b.lockOpts = append(b.lockOpts, keylock.WithLocker(l)) }
}

// WithLockTTL sets the distributed lock TTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(b *Backend) { b.lockOpts = append(b.lockOpts, keylock.WithTTL(ttl)) }
}

// WithRecorder records operation counts and latencies.
func WithRecorder(r *metrics.Recorder) Option {
	return func(b *Backend) { b.metrics = r }
}

// NewBackend creates a detached backend. Call Attach before use.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{
		logger: zap.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(b)
	}
	b.locks = keylock.New(append(b.lockOpts, keylock.WithLogger(b.logger))...)
	return b
}

// Attach opens (or creates) the database in config.DataDir and applies the
// schema. Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, DBFile)
	db, err := sql.Open("sqlite", dsn(dbPath, config.GetBusyTimeout()))
	if err != nil {
		return fmt.Errorf("opening %s: %w", dbPath, err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return fmt.Errorf("applying schema: %w", err)
	}

	b.db = db
	b.config = config
	b.attached = true
	b.logger.Debug("store attached", zap.String("path", dbPath))
	return nil
}

// Detach closes the database. Idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	b.db = nil
	b.attached = false
	return nil
}

func dsn(path string, busy time.Duration) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

// guard holds the attach lock for the duration of one operation so Detach
// cannot close the database underneath it. Internal helpers never call
// guard themselves.
func (b *Backend) guard() (func(), error) {
	b.mu.RLock()
	if !b.attached {
		b.mu.RUnlock()
		return nil, types.ErrStoreDetached
	}
	return b.mu.RUnlock, nil
}

// observe records an operation outcome. errp is read after the operation
// returns.
func (b *Backend) observe(op string, start time.Time, errp *error) {
	err := *errp
	b.metrics.Observe(op, start, err)
	if errors.Is(err, types.ErrConcurrencyConflict) {
		b.logger.Warn("concurrency conflict", zap.String("op", op), zap.Error(err))
	}
}

// inTx runs fn in one transaction, committing if fn returns nil. Transactions
// begin IMMEDIATE, so read-only callers also see a single snapshot that no
// writer can change between their statements.
func (b *Backend) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating UUID v7: %w", err)
	}
	return id.String(), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

func formatDate(t time.Time) string {
	return t.Format(types.DateLayout)
}

// nullJSON stores an absent blob as NULL.
func nullJSON(raw []byte) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}

func rawJSON(ns sql.NullString) []byte {
	if !ns.Valid {
		return nil
	}
	return []byte(ns.String)
}

func sqliteCode(err error) int {
	var se *sqlitedrv.Error
	if errors.As(err, &se) {
		return se.Code()
	}
	return 0
}

func isUniqueViolation(err error) bool {
	switch sqliteCode(err) {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	return sqliteCode(err) == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}

func rowsAffected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected: %w", err)
	}
	return n, nil
}

func count(ctx context.Context, q querier, query string, args ...any) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting: %w", err)
	}
	return n, nil
}
