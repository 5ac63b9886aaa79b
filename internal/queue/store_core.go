package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/ngrok/sqlmw"
	"modernc.org/sqlite"

	"cubby/internal/config"
	"cubby/internal/metrics"
)

// Store manages job and asset persistence.
type Store struct {
	db     *sql.DB
	driver string
	now    func() time.Time
	pinned func() time.Time
	logger *slog.Logger
}

// Option customizes Open.
type Option func(*Store)

// WithLogger routes migration output to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

const (
	sqliteDriverName   = "cubby-sqlite"
	postgresDriverName = "cubby-pgx"

	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	timeLayout = "2006-01-02T15:04:05.000000Z"
)

var registerDrivers sync.Once

func ensureDrivers() {
	registerDrivers.Do(func() {
		sql.Register(sqliteDriverName, sqlmw.Driver(&sqlite.Driver{}, &metrics.StoreInterceptor{}))
		sql.Register(postgresDriverName, sqlmw.Driver(stdlib.GetDefaultDriver(), &metrics.StoreInterceptor{}))
	})
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// rebind rewrites `?` placeholders as `$n` for postgres. Question marks
// inside single-quoted literals are left alone.
func rebind(driver, query string) string {
	if driver != config.DriverPostgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inLiteral := false
	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case ch == '\'':
			inLiteral = !inLiteral
			b.WriteByte(ch)
		case ch == '?' && !inLiteral:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

func (s *Store) q(query string) string {
	return rebind(s.driver, query)
}

func (s *Store) timestamp() string {
	return formatTime(s.now())
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, s.q(query), args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Store) execAffected(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// withTx runs fn inside a transaction, retrying the whole unit when SQLite
// reports the database as busy.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

// Open connects to the configured database and applies pending migrations.
func Open(cfg *config.Config, opts ...Option) (*Store, error) {
	return OpenContext(context.Background(), cfg, opts...)
}

// OpenContext is Open with a caller supplied context for migrations.
func OpenContext(ctx context.Context, cfg *config.Config, opts ...Option) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("open store: config required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	ensureDrivers()

	var (
		db  *sql.DB
		err error
	)
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		db, err = sql.Open(postgresDriverName, cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres db: %w", err)
		}
	default:
		db, err = sql.Open(sqliteDriverName, sqliteDSN(cfg.Database.Path))
		if err != nil {
			return nil, fmt.Errorf("open sqlite db: %w", err)
		}
	}
	if cfg.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}

	store := &Store{db: db, driver: cfg.Database.Driver, now: func() time.Time { return time.Now().UTC() }}
	if store.driver == "" {
		store.driver = config.DriverSQLite
	}
	for _, opt := range opts {
		opt(store)
	}
	if err := store.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect %s: %w", store.driver, err)
	}
	if err := store.migrate(ctx, cfg); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// sqliteDSN applies the pragmas on every pooled connection rather than only
// the first one.
func sqliteDSN(path string) string {
	pragmas := []string{
		"journal_mode(WAL)",
		"foreign_keys(1)",
		"busy_timeout(5000)",
	}
	values := url.Values{}
	for _, pragma := range pragmas {
		values.Add("_pragma", pragma)
	}
	return "file:" + path + "?" + values.Encode()
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("store not open")
	}
	return s.db.PingContext(ensureContext(ctx))
}

// Driver reports the active backend name.
func (s *Store) Driver() string {
	return s.driver
}

// SetClock overrides the time source, heartbeats included. Tests use it to
// age heartbeats. A nil clock restores the defaults.
func (s *Store) SetClock(now func() time.Time) {
	if now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
		s.pinned = nil
		return
	}
	s.now = func() time.Time { return now().UTC() }
	s.pinned = s.now
}

// heartbeatTime reads the database clock. Heartbeats and stale cutoffs both
// come from it so workers on different hosts agree on staleness.
func (s *Store) heartbeatTime(ctx context.Context) (time.Time, error) {
	if s.pinned != nil {
		return s.pinned(), nil
	}
	query := `SELECT strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`
	if s.driver == config.DriverPostgres {
		query = `SELECT to_char(clock_timestamp() AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS.US"Z"')`
	}
	var raw string
	if err := s.db.QueryRowContext(ensureContext(ctx), query).Scan(&raw); err != nil {
		return time.Time{}, fmt.Errorf("read database clock: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse database clock %q: %w", raw, err)
	}
	return ts.UTC(), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw sql.NullString) time.Time {
	if !raw.Valid || raw.String == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(timeLayout, raw.String); err == nil {
		return ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, raw.String); err == nil {
		return ts
	}
	return time.Time{}
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func makePlaceholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
