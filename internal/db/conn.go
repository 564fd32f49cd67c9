package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/abdulachik/sonetobot/internal/db/migrations"
	_ "modernc.org/sqlite"
)

// busyTimeoutMillis bounds how long a writer waits on a lock held by another
// process, such as a `sonetobot post` run against the database of a live
// `serve`.
const busyTimeoutMillis = 5000

// Store wraps the database connection and provides access to queries.
type Store struct {
	*sql.DB
	*Queries
}

// NewStore opens the poem database at dbPath, creating its directory.
func NewStore(ctx context.Context, dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// The scheduler and the HTTP handlers write through this single connection.
	sqlDB.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeoutMillis),
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.ExecContext(ctx, pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("exec %q: %w", pragma, err)
		}
	}

	return &Store{DB: sqlDB, Queries: New(sqlDB)}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.DB.Close()
}

// MigrationStatus lists migration files by state, each in name order.
type MigrationStatus struct {
	Applied []string
	Pending []string
	// Unknown versions are recorded in schema_migrations but have no file.
	Unknown []string
}

// Migrate applies the embedded poem store schema.
func (s *Store) Migrate(ctx context.Context) (*MigrationStatus, error) {
	return s.MigrateFS(ctx, migrations.FS)
}

// MigrateFS applies every pending .sql file at the root of fsys, each in its
// own transaction. The returned status has Pending holding what this call
// applied.
func (s *Store) MigrateFS(ctx context.Context, fsys fs.FS) (*MigrationStatus, error) {
	status, err := s.MigrationStatusFS(ctx, fsys)
	if err != nil {
		return nil, err
	}

	for _, file := range status.Pending {
		if err := s.applyMigration(ctx, fsys, file); err != nil {
			return nil, err
		}
		slog.Info("migration applied", "file", file)
	}

	if len(status.Unknown) > 0 {
		slog.Warn("database has migrations this build does not know", "versions", status.Unknown)
	}
	return status, nil
}

// MigrationStatus reports the state of the embedded schema without changing
// anything.
func (s *Store) MigrationStatus(ctx context.Context) (*MigrationStatus, error) {
	return s.MigrationStatusFS(ctx, migrations.FS)
}

// MigrationStatusFS compares the .sql files in fsys with schema_migrations.
func (s *Store) MigrationStatusFS(ctx context.Context, fsys fs.FS) (*MigrationStatus, error) {
	applied, err := s.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	files, err := migrationFiles(fsys)
	if err != nil {
		return nil, err
	}

	var status MigrationStatus
	for _, file := range files {
		if applied[file] {
			status.Applied = append(status.Applied, file)
			delete(applied, file)
			continue
		}
		status.Pending = append(status.Pending, file)
	}
	for version := range applied {
		status.Unknown = append(status.Unknown, version)
	}
	slices.Sort(status.Unknown)

	return &status, nil
}

func (s *Store) appliedVersions(ctx context.Context) (map[string]bool, error) {
	_, err := s.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("create migrations table: %w", err)
	}

	rows, err := s.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan migration: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate migrations: %w", err)
	}
	return applied, nil
}

func migrationFiles(fsys fs.FS) ([]string, error) {
	files, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	slices.Sort(files)
	return files, nil
}

func (s *Store) applyMigration(ctx context.Context, fsys fs.FS, file string) error {
	content, err := fs.ReadFile(fsys, file)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", file, err)
	}

	up := extractUpMigration(string(content))
	if up == "" {
		return fmt.Errorf("migration %s: no statements", file)
	}

	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, up); err != nil {
		return fmt.Errorf("execute migration %s: %w", file, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", file); err != nil {
		return fmt.Errorf("record migration %s: %w", file, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", file, err)
	}
	return nil
}

const (
	upMarker   = "-- +migrate Up"
	downMarker = "-- +migrate Down"
)

// extractUpMigration returns the statements between the Up and Down markers.
// A file without markers is used whole.
func extractUpMigration(content string) string {
	up, _, _ := strings.Cut(content, downMarker)
	up = strings.TrimSpace(up)
	up = strings.TrimPrefix(up, upMarker)
	return strings.TrimSpace(up)
}
