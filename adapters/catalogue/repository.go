// Package catalogue stores reference compounds in SQL and matches measured
// features against them by m/z, retention time and ionisation.
package catalogue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"metaboqc/domain/compound"
	"metaboqc/domain/core"
	"metaboqc/internal"
	apperrors "metaboqc/internal/errors"
	"metaboqc/ports"
)

const (
	driverSQLite   = "sqlite3"
	driverPostgres = "postgres"
)

// compoundRow is the stored form of a compound; retention time is optional.
type compoundRow struct {
	ID            int64           `db:"id"`
	Name          string          `db:"name"`
	Formula       string          `db:"formula"`
	Adduct        string          `db:"adduct"`
	MZ            float64         `db:"mz"`
	RetentionTime sql.NullFloat64 `db:"retention_time"`
	Ionisation    string          `db:"ionisation"`
	Source        string          `db:"source"`
}

func toRow(c compound.Compound) compoundRow {
	r := compoundRow{
		ID:         c.ID,
		Name:       c.Name,
		Formula:    c.Formula,
		Adduct:     c.Adduct,
		MZ:         c.MZ,
		Ionisation: string(c.Ionisation),
		Source:     c.Source,
	}
	if !math.IsNaN(c.RetentionTime) && !math.IsInf(c.RetentionTime, 0) {
		r.RetentionTime = sql.NullFloat64{Float64: c.RetentionTime, Valid: true}
	}
	return r
}

func (r compoundRow) compound() compound.Compound {
	c := compound.Compound{
		ID:            r.ID,
		Name:          r.Name,
		Formula:       r.Formula,
		Adduct:        r.Adduct,
		MZ:            r.MZ,
		RetentionTime: math.NaN(),
		Ionisation:    compound.Ionisation(r.Ionisation),
		Source:        r.Source,
	}
	if r.RetentionTime.Valid {
		c.RetentionTime = r.RetentionTime.Float64
	}
	return c
}

// Repository implements ports.CompoundCatalogue over sqlite or PostgreSQL
type Repository struct {
	db     *sqlx.DB
	driver string
	logger *internal.Logger
}

var _ ports.CompoundCatalogue = (*Repository)(nil)

// ParseDSN picks the driver from the DSN scheme. postgres:// and
// postgresql:// select PostgreSQL; sqlite:// or a bare path select sqlite.
func ParseDSN(dsn string) (driver, source string) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return driverPostgres, dsn
	case strings.HasPrefix(dsn, "sqlite3://"):
		return driverSQLite, strings.TrimPrefix(dsn, "sqlite3://")
	case strings.HasPrefix(dsn, "sqlite://"):
		return driverSQLite, strings.TrimPrefix(dsn, "sqlite://")
	default:
		return driverSQLite, dsn
	}
}

// Open connects to the catalogue and applies pending migrations
func Open(ctx context.Context, dsn string) (*Repository, error) {
	if dsn == "" {
		return nil, core.NewConfigurationError("catalogue DSN", "empty")
	}
	driver, source := ParseDSN(dsn)
	db, err := sqlx.ConnectContext(ctx, driver, source)
	if err != nil {
		return nil, apperrors.Wrap(describe(err), "failed to connect to catalogue")
	}
	if driver == driverSQLite {
		db.SetMaxOpenConns(1)
	}

	repo := NewRepository(db, driver)
	ran, err := NewMigrator(db, driver).Up(ctx)
	if err != nil {
		db.Close()
		return nil, describe(err)
	}
	for _, v := range ran {
		repo.logger.Info("Applied catalogue migration: %s", v)
	}
	return repo, nil
}

// NewRepository wraps an open connection
func NewRepository(db *sqlx.DB, driver string) *Repository {
	return &Repository{db: db, driver: driver, logger: internal.DefaultLogger.With("Catalogue")}
}

// Migrations lists the catalogue schema migrations and whether each is applied.
func (r *Repository) Migrations(ctx context.Context) ([]MigrationStatus, error) {
	return NewMigrator(r.db, r.driver).Status(ctx)
}

// Close releases the connection pool
func (r *Repository) Close() error {
	return r.db.Close()
}

// Lookup returns compounds within the ppm and retention-time tolerance of q,
// best match first. Compounds without a retention time match any RT.
func (r *Repository) Lookup(ctx context.Context, q compound.Query) ([]compound.Match, error) {
	if !(q.MZ > 0) || math.IsInf(q.MZ, 0) {
		return nil, core.NewPreconditionError("Lookup", fmt.Sprintf("m/z must be positive, got %v", q.MZ))
	}
	if !(q.PPM > 0) {
		return nil, core.NewConfigurationError("ppm tolerance", "must be positive")
	}

	lo, hi := q.MZBounds()
	query := `
		SELECT id, name, formula, adduct, mz, retention_time, ionisation, source
		FROM compounds
		WHERE mz BETWEEN ? AND ?`
	args := []any{lo, hi}
	if q.Ionisation != compound.AnyMode {
		query += ` AND ionisation IN (?, '')`
		args = append(args, string(q.Ionisation))
	}

	var rows []compoundRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, apperrors.Wrap(describe(err), "catalogue lookup failed")
	}

	matches := make([]compound.Match, 0, len(rows))
	for _, row := range rows {
		m := compound.NewMatch(row.compound(), q)
		if !math.IsNaN(m.RTError) && q.RTWindow > 0 && math.Abs(m.RTError) > q.RTWindow {
			continue
		}
		matches = append(matches, m)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		si, sj := matches[i].Score(q), matches[j].Score(q)
		if si != sj {
			return si < sj
		}
		return matches[i].Name < matches[j].Name
	})
	return matches, nil
}

// Import inserts compounds in one transaction. Entries already present
// (same name, adduct and ionisation) are skipped; the count of new rows is
// returned.
func (r *Repository) Import(ctx context.Context, compounds []compound.Compound) (int, error) {
	for i, c := range compounds {
		if strings.TrimSpace(c.Name) == "" {
			return 0, core.NewSchemaError("name", fmt.Sprintf("entry %d: empty", i+1))
		}
		if !(c.MZ > 0) || math.IsInf(c.MZ, 0) {
			return 0, core.NewSchemaError("mz", fmt.Sprintf("entry %d (%s): must be positive", i+1, c.Name))
		}
	}

	start := time.Now()
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, apperrors.Wrap(describe(err), "failed to begin transaction")
	}
	defer tx.Rollback()

	inserted := 0
	for _, c := range compounds {
		res, err := tx.NamedExecContext(ctx, `
			INSERT INTO compounds (name, formula, adduct, mz, retention_time, ionisation, source)
			VALUES (:name, :formula, :adduct, :mz, :retention_time, :ionisation, :source)
			ON CONFLICT (name, adduct, ionisation) DO NOTHING
		`, toRow(c))
		if err != nil {
			return 0, apperrors.Wrapf(describe(err), "failed to insert %s", c.Name)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, describe(err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, apperrors.Wrap(describe(err), "failed to commit import")
	}
	r.logger.Info("Imported %d of %d compounds in %.2fms", inserted, len(compounds), float64(time.Since(start).Nanoseconds())/1e6)
	return inserted, nil
}

// Count returns the number of stored compounds
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM compounds"); err != nil {
		return 0, describe(err)
	}
	return n, nil
}

// Get returns one compound by id
func (r *Repository) Get(ctx context.Context, id int64) (compound.Compound, error) {
	var row compoundRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`
		SELECT id, name, formula, adduct, mz, retention_time, ionisation, source
		FROM compounds
		WHERE id = ?
	`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return compound.Compound{}, fmt.Errorf("compound %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return compound.Compound{}, describe(err)
	}
	return row.compound(), nil
}

// describe tags driver errors as database errors, adding the PostgreSQL
// error code when there is one
func describe(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		err = fmt.Errorf("postgres %s (%s): %w", pqErr.Message, pqErr.Code, err)
	}
	return apperrors.WithCode(apperrors.CodeDatabaseError, err)
}
