package repository

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	_ "github.com/lib/pq" // registers the "postgres" database/sql driver
	"github.com/pressly/goose/v3"

	"github.com/vestibule/vestibule/internal/migrations"
)

// Migrator applies the bundled schema migrations to one database.
type Migrator struct {
	provider *goose.Provider
	db       *sql.DB
	owned    bool
}

// NewPostgresMigrator opens a database/sql handle for databaseURL and
// prepares the PostgreSQL migrations. Close releases the handle.
func NewPostgresMigrator(databaseURL string) (*Migrator, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres for migrations: %w", err)
	}

	m, err := newMigrator(goose.DialectPostgres, db, migrations.Postgres())
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	m.owned = true

	return m, nil
}

// OpenSQLiteMigrator opens the database file at path without migrating it.
// Close releases the handle.
func OpenSQLiteMigrator(ctx context.Context, path string) (*Migrator, error) {
	db, err := openSQLiteDB(ctx, path)
	if err != nil {
		return nil, err
	}

	m, err := NewSQLiteMigrator(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	m.owned = true

	return m, nil
}

// NewSQLiteMigrator prepares the SQLite migrations on an open handle.
// The caller keeps ownership of db.
func NewSQLiteMigrator(db *sql.DB) (*Migrator, error) {
	return newMigrator(goose.DialectSQLite3, db, migrations.SQLite())
}

func newMigrator(dialect goose.Dialect, db *sql.DB, fsys fs.FS) (*Migrator, error) {
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("create migration provider: %w", err)
	}
	return &Migrator{provider: provider, db: db}, nil
}

// Up applies all pending migrations and returns the resulting version.
func (m *Migrator) Up(ctx context.Context) (int64, error) {
	if _, err := m.provider.Up(ctx); err != nil {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}
	return m.Version(ctx)
}

// Down rolls back the most recent migration and returns the resulting version.
func (m *Migrator) Down(ctx context.Context) (int64, error) {
	if _, err := m.provider.Down(ctx); err != nil {
		return 0, fmt.Errorf("roll back migration: %w", err)
	}
	return m.Version(ctx)
}

// Reset rolls back every applied migration.
func (m *Migrator) Reset(ctx context.Context) error {
	if _, err := m.provider.DownTo(ctx, 0); err != nil {
		return fmt.Errorf("roll back migrations: %w", err)
	}
	return nil
}

// Version returns the current schema version.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	version, err := m.provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// MigrationStatus describes one bundled migration.
type MigrationStatus struct {
	Version int64
	Source  string
	Applied bool
}

// Status lists the bundled migrations and whether each is applied.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("read migration status: %w", err)
	}

	result := make([]MigrationStatus, 0, len(statuses))
	for _, s := range statuses {
		result = append(result, MigrationStatus{
			Version: s.Source.Version,
			Source:  s.Source.Path,
			Applied: s.State == goose.StateApplied,
		})
	}
	return result, nil
}

// Close releases the database handle when the migrator opened it.
func (m *Migrator) Close() error {
	if !m.owned {
		return nil
	}
	return m.db.Close()
}
