package catalogue

import (
	"context"
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
)

//go:embed migrations
var migrationFS embed.FS

// MigrationFile is one embedded schema change
type MigrationFile struct {
	Version string
	Path    string
}

// MigrationStatus reports whether a migration has been applied
type MigrationStatus struct {
	Version string
	Applied bool
}

// Migrator applies the embedded catalogue schema for one SQL dialect
type Migrator struct {
	db      *sqlx.DB
	dialect string
}

// NewMigrator creates a migrator for the given driver name ("sqlite3" or "postgres")
func NewMigrator(db *sqlx.DB, driver string) *Migrator {
	dialect := "sqlite"
	if driver == driverPostgres {
		dialect = "postgres"
	}
	return &Migrator{db: db, dialect: dialect}
}

// Up executes all pending migrations
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}

	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	files, err := m.migrationFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to find migration files: %w", err)
	}

	var ran []string
	for _, file := range files {
		if applied[file.Version] {
			continue
		}
		if err := m.apply(ctx, file); err != nil {
			return ran, fmt.Errorf("failed to apply migration %s: %w", file.Version, err)
		}
		ran = append(ran, file.Version)
	}
	return ran, nil
}

// Status lists every embedded migration with its applied state
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}
	files, err := m.migrationFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to find migration files: %w", err)
	}
	out := make([]MigrationStatus, len(files))
	for i, f := range files {
		out[i] = MigrationStatus{Version: f.Version, Applied: applied[f.Version]}
	}
	return out, nil
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			checksum TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

func (m *Migrator) appliedMigrations(ctx context.Context) (map[string]bool, error) {
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

// migrationFiles lists files named like 001_compounds.sql in version order
func (m *Migrator) migrationFiles() ([]MigrationFile, error) {
	dir := path.Join("migrations", m.dialect)
	entries, err := fs.ReadDir(migrationFS, dir)
	if err != nil {
		return nil, err
	}

	var files []MigrationFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		parts := strings.SplitN(e.Name(), "_", 2)
		if len(parts) < 2 {
			continue
		}
		files = append(files, MigrationFile{Version: parts[0], Path: path.Join(dir, e.Name())})
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].Version < files[j].Version
	})
	return files, nil
}

func (m *Migrator) apply(ctx context.Context, file MigrationFile) error {
	body, err := migrationFS.ReadFile(file.Path)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range splitStatements(string(body)) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute migration SQL: %w", err)
		}
	}

	checksum := fmt.Sprintf("%x", sha256.Sum256(body))
	_, err = tx.ExecContext(ctx, tx.Rebind("INSERT INTO schema_migrations (version, checksum) VALUES (?, ?)"), file.Version, checksum)
	if err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}

func splitStatements(sql string) []string {
	var out []string
	for _, s := range strings.Split(sql, ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
