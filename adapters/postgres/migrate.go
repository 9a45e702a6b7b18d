package postgres

import (
	"context"
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"datanomics/internal"

	"github.com/jmoiron/sqlx"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrationFile is one embedded schema migration
type MigrationFile struct {
	Version string
	Name    string
	SQL     []byte
}

// MigrationStatus reports whether a migration has been applied
type MigrationStatus struct {
	Version string
	Name    string
	Applied bool
}

// Migrator applies the embedded migrations
type Migrator struct {
	db     *sqlx.DB
	logger *internal.Logger
}

// NewMigrator creates a new migrator
func NewMigrator(db *sqlx.DB, logger *internal.Logger) *Migrator {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Migrator{db: db, logger: logger.With("Migrator")}
}

const createMigrationsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		checksum TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

// Up executes all pending migrations
func (m *Migrator) Up(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, createMigrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}
	files, err := loadMigrations()
	if err != nil {
		return err
	}
	for _, file := range files {
		if applied[file.Version] {
			continue
		}
		if err := m.apply(ctx, file); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file.Version, err)
		}
		m.logger.Info("applied migration %s_%s", file.Version, file.Name)
	}
	return nil
}

// Status lists every embedded migration and whether it is applied
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	if _, err := m.db.ExecContext(ctx, createMigrationsTable); err != nil {
		return nil, fmt.Errorf("failed to ensure migrations table: %w", err)
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	files, err := loadMigrations()
	if err != nil {
		return nil, err
	}
	out := make([]MigrationStatus, len(files))
	for i, f := range files {
		out[i] = MigrationStatus{Version: f.Version, Name: f.Name, Applied: applied[f.Version]}
	}
	return out, nil
}

func (m *Migrator) applied(ctx context.Context) (map[string]bool, error) {
	var versions []string
	if err := m.db.SelectContext(ctx, &versions, "SELECT version FROM schema_migrations"); err != nil {
		return nil, err
	}
	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}

func (m *Migrator) apply(ctx context.Context, file MigrationFile) error {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(file.SQL)); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, checksum) VALUES ($1, $2)",
		file.Version, checksum(file.SQL)); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}

func checksum(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

// loadMigrations reads migrations named like 001_session_cache.sql, sorted by version
func loadMigrations() ([]MigrationFile, error) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}
	var files []MigrationFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		parts := strings.SplitN(strings.TrimSuffix(e.Name(), ".sql"), "_", 2)
		if len(parts) < 2 {
			continue
		}
		data, err := migrationFiles.ReadFile(path.Join("migrations", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", e.Name(), err)
		}
		files = append(files, MigrationFile{Version: parts[0], Name: parts[1], SQL: data})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Version < files[j].Version })
	return files, nil
}
