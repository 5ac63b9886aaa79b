package queue

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/pressly/goose/v3"

	"cubby/internal/config"
	"cubby/internal/logging"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// migrationAdvisoryKey serializes postgres migrations across workers.
const migrationAdvisoryKey int64 = 0x63756262

// goose keeps its dialect, filesystem and logger in package globals.
var gooseMu sync.Mutex

func (s *Store) migrate(ctx context.Context, cfg *config.Config) error {
	unlock, err := s.lockMigrations(ctx, cfg)
	if err != nil {
		return err
	}
	defer unlock()

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrationFS)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(logging.NewGooseLogger(loggerOrNop(s.logger)))

	dialect := "sqlite3"
	if s.driver == config.DriverPostgres {
		dialect = "postgres"
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// lockMigrations takes a flock next to the sqlite file, or a session level
// advisory lock on postgres, so concurrently starting workers migrate once.
func (s *Store) lockMigrations(ctx context.Context, cfg *config.Config) (func(), error) {
	if s.driver == config.DriverPostgres {
		conn, err := s.db.Conn(ctx)
		if err != nil {
			return nil, fmt.Errorf("migration lock conn: %w", err)
		}
		if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", migrationAdvisoryKey); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("migration advisory lock: %w", err)
		}
		return func() {
			_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", migrationAdvisoryKey)
			_ = conn.Close()
		}, nil
	}

	lock := flock.New(filepath.Clean(cfg.Database.Path) + ".migrate.lock")
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("migration file lock: %w", err)
	}
	return func() { _ = lock.Unlock() }, nil
}

func loggerOrNop(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return logging.NewNop()
	}
	return logger
}

// SchemaVersion returns the applied goose version.
func (s *Store) SchemaVersion(ctx context.Context) (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	dialect := "sqlite3"
	if s.driver == config.DriverPostgres {
		dialect = "postgres"
	}
	if err := goose.SetDialect(dialect); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, s.db)
}
