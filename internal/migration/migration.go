package migration

import (
	"context"
	"fmt"
	"time"

	"bracketlab/internal"
	"bracketlab/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// Migration is one schema change. Statements run in order inside a transaction.
type Migration struct {
	Version    int
	Name       string
	Statements func(dialect Dialect) []string
}

// Dialect captures the column types that differ between postgres and sqlite
type Dialect struct {
	Name   string
	Float  string
	JSON   string
	Serial string
}

var (
	Postgres = Dialect{Name: "postgres", Float: "DOUBLE PRECISION", JSON: "JSONB", Serial: "BIGSERIAL PRIMARY KEY"}
	SQLite   = Dialect{Name: "sqlite", Float: "REAL", JSON: "TEXT", Serial: "INTEGER PRIMARY KEY AUTOINCREMENT"}
)

// DialectFor picks the dialect from an sqlx driver name
func DialectFor(driverName string) Dialect {
	if driverName == "postgres" || driverName == "pgx" {
		return Postgres
	}
	return SQLite
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	migrations []Migration
	logger     *internal.Logger
}

// NewRunner creates a runner over the built-in migrations
func NewRunner(logger *internal.Logger) *MigrationRunner {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &MigrationRunner{migrations: migrations, logger: logger}
}

// Version returns the newest schema version this runner knows about
func (r *MigrationRunner) Version() string {
	if len(r.migrations) == 0 {
		return "0"
	}
	return fmt.Sprintf("%d", r.migrations[len(r.migrations)-1].Version)
}

// Run applies every migration not yet recorded in schema_migrations, oldest first
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createVersionTable(ctx, db); err != nil {
		return errors.WithCode(errors.CodeDatabaseError, errors.Wrap(err, "failed to create schema_migrations table"))
	}

	applied, err := r.Applied(ctx, db)
	if err != nil {
		return err
	}
	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	dialect := DialectFor(db.DriverName())
	for _, m := range r.migrations {
		if done[m.Version] {
			continue
		}
		if err := r.apply(ctx, db, dialect, m); err != nil {
			return errors.WithCode(errors.CodeDatabaseError, errors.Wrapf(err, "migration %03d_%s failed", m.Version, m.Name))
		}
		r.logger.Info("Applied migration %03d_%s", m.Version, m.Name)
	}
	return nil
}

// Applied lists the recorded migration versions in ascending order
func (r *MigrationRunner) Applied(ctx context.Context, db *sqlx.DB) ([]int, error) {
	var versions []int
	if err := db.SelectContext(ctx, &versions, `SELECT version FROM schema_migrations ORDER BY version`); err != nil {
		return nil, errors.WithCode(errors.CodeDatabaseError, errors.Wrap(err, "failed to read schema_migrations"))
	}
	return versions, nil
}

func (r *MigrationRunner) createVersionTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) apply(ctx context.Context, db *sqlx.DB, dialect Dialect, m Migration) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range m.Statements(dialect) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`),
		m.Version, m.Name, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return tx.Commit()
}

var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_runs",
		Statements: func(d Dialect) []string {
			return []string{
				fmt.Sprintf(`
					CREATE TABLE IF NOT EXISTS runs (
						id TEXT PRIMARY KEY,
						created_at TEXT NOT NULL,
						source TEXT NOT NULL,
						train_games INTEGER NOT NULL,
						test_games INTEGER NOT NULL,
						cutoff TEXT NOT NULL,
						criterion TEXT NOT NULL,
						fingerprint TEXT NOT NULL,
						report %s NOT NULL
					)
				`, d.JSON),
				`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
			}
		},
	},
	{
		Version: 2,
		Name:    "create_model_metrics",
		Statements: func(d Dialect) []string {
			return []string{
				fmt.Sprintf(`
					CREATE TABLE IF NOT EXISTS model_metrics (
						id %s,
						run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
						feature_set TEXT NOT NULL,
						kind TEXT NOT NULL,
						metric TEXT NOT NULL,
						value %s
					)
				`, d.Serial, d.Float),
				`CREATE INDEX IF NOT EXISTS idx_model_metrics_run ON model_metrics(run_id)`,
				`CREATE INDEX IF NOT EXISTS idx_model_metrics_lookup ON model_metrics(kind, feature_set, metric)`,
			}
		},
	},
}
