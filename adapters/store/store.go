// Package store persists run reports in postgres or sqlite through sqlx.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"bracketlab/domain/core"
	"bracketlab/domain/run"
	"bracketlab/internal"
	"bracketlab/internal/errors"
	"bracketlab/internal/migration"
	"bracketlab/ports"

	_ "github.com/glebarez/go-sqlite"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

var (
	_ ports.RunRepository       = (*Store)(nil)
	_ ports.MetricHistoryReader = (*Store)(nil)
)

// timeLayout keeps stored timestamps lexically ordered
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is a RunRepository on sqlx
type Store struct {
	db     *sqlx.DB
	logger *internal.Logger
}

// Driver maps a DSN to a database/sql driver name and data source
func Driver(dsn string) (driver, source string) {
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return "postgres", dsn
	case strings.HasPrefix(lower, "sqlite://"):
		return "sqlite", dsn[len("sqlite://"):]
	default:
		return "sqlite", dsn
	}
}

// Open connects to the DSN and applies migrations
func Open(ctx context.Context, dsn string, logger *internal.Logger) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.ConfigInvalid("database DSN is empty")
	}
	driver, source := Driver(dsn)
	if driver == "sqlite" {
		source = withForeignKeys(source)
	}
	db, err := sqlx.ConnectContext(ctx, driver, source)
	if err != nil {
		return nil, errors.WithCode(errors.CodeDatabaseError, errors.Wrapf(err, "failed to connect to %s database", driver))
	}
	if driver == "sqlite" {
		// an in-memory database lives and dies with its connection
		db.SetMaxOpenConns(1)
	}

	s := New(db, logger)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection without migrating
func New(db *sqlx.DB, logger *internal.Logger) *Store {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Store{db: db, logger: logger}
}

func withForeignKeys(source string) string {
	sep := "?"
	if strings.Contains(source, "?") {
		sep = "&"
	}
	return source + sep + "_pragma=foreign_keys(1)"
}

// Migrate brings the schema up to date
func (s *Store) Migrate(ctx context.Context) error {
	return migration.NewRunner(s.logger).Run(ctx, s.db)
}

// Close releases the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.WithCode(errors.CodeDatabaseError, errors.Wrap(err, "database unreachable"))
	}
	return nil
}

// Save writes the report and its flattened metrics in one transaction
func (s *Store) Save(ctx context.Context, r *run.Report) error {
	if r == nil || r.ID == "" {
		return errors.InvalidInput("report has no ID")
	}
	body, err := json.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "failed to encode report")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return s.dbError(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO runs (id, created_at, source, train_games, test_games, cutoff, criterion, fingerprint, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), r.ID.String(), r.CreatedAt.UTC().Format(timeLayout), r.Dataset.Source, r.Dataset.TrainGames,
		r.Dataset.TestGames, r.Dataset.Cutoff.UTC().Format(timeLayout), r.Manifest.Criterion,
		r.Manifest.Fingerprint, string(body))
	if err != nil {
		return s.dbError(err, fmt.Sprintf("failed to insert run %s", r.ID))
	}

	insertMetric := tx.Rebind(`
		INSERT INTO model_metrics (run_id, feature_set, kind, metric, value)
		VALUES (?, ?, ?, ?, ?)
	`)
	for _, m := range r.Models {
		for _, metric := range m.Metrics() {
			if _, err := tx.ExecContext(ctx, insertMetric, r.ID.String(), m.FeatureSet, m.Kind, metric.Name, metric.Value.Ptr()); err != nil {
				return s.dbError(err, fmt.Sprintf("failed to insert %s metric %s", m.Name(), metric.Name))
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return s.dbError(err, "failed to commit run")
	}
	s.logger.Debug("Saved run %s with %d models", r.ID, len(r.Models))
	return nil
}

// Get loads a stored report
func (s *Store) Get(ctx context.Context, id core.RunID) (*run.Report, error) {
	var body string
	err := s.db.GetContext(ctx, &body, s.db.Rebind(`SELECT report FROM runs WHERE id = ?`), id.String())
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.WithCode(errors.CodeNotFound, core.NewNotFoundError("run", id.String()))
	}
	if err != nil {
		return nil, s.dbError(err, fmt.Sprintf("failed to load run %s", id))
	}

	var r run.Report
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return nil, errors.Wrapf(err, "stored run %s is not valid JSON", id)
	}
	return &r, nil
}

type summaryRow struct {
	ID          string `db:"id"`
	CreatedAt   string `db:"created_at"`
	Source      string `db:"source"`
	TrainGames  int    `db:"train_games"`
	TestGames   int    `db:"test_games"`
	Criterion   string `db:"criterion"`
	Fingerprint string `db:"fingerprint"`
}

// List returns run summaries, most recent first. A limit of zero or less lists all.
func (s *Store) List(ctx context.Context, limit int) ([]run.Summary, error) {
	query := `
		SELECT id, created_at, source, train_games, test_games, criterion, fingerprint
		FROM runs
		ORDER BY created_at DESC, id DESC
	`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows []summaryRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, s.dbError(err, "failed to list runs")
	}

	out := make([]run.Summary, 0, len(rows))
	for _, row := range rows {
		created, err := time.Parse(timeLayout, row.CreatedAt)
		if err != nil {
			s.logger.Warn("Run %s has unreadable created_at %q", row.ID, row.CreatedAt)
		}
		out = append(out, run.Summary{
			ID:          core.RunID(row.ID),
			CreatedAt:   created,
			Source:      row.Source,
			TrainGames:  row.TrainGames,
			TestGames:   row.TestGames,
			Criterion:   row.Criterion,
			Fingerprint: row.Fingerprint,
		})
	}
	return out, nil
}

type metricRow struct {
	RunID     string          `db:"run_id"`
	CreatedAt string          `db:"created_at"`
	Value     sql.NullFloat64 `db:"value"`
}

// MetricHistory returns one model metric across runs, most recent first
func (s *Store) MetricHistory(ctx context.Context, kind, featureSet, metric string, limit int) ([]run.MetricPoint, error) {
	query := `
		SELECT m.run_id, r.created_at, m.value
		FROM model_metrics m
		JOIN runs r ON r.id = m.run_id
		WHERE m.kind = ? AND m.feature_set = ? AND m.metric = ?
		ORDER BY r.created_at DESC, m.run_id DESC
	`
	args := []interface{}{kind, featureSet, metric}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows []metricRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, s.dbError(err, "failed to read metric history")
	}

	out := make([]run.MetricPoint, 0, len(rows))
	for _, row := range rows {
		created, _ := time.Parse(timeLayout, row.CreatedAt)
		value := run.NA
		if row.Value.Valid {
			value = run.Float(row.Value.Float64)
		}
		out = append(out, run.MetricPoint{RunID: core.RunID(row.RunID), CreatedAt: created, Value: value})
	}
	return out, nil
}

func (s *Store) dbError(err error, message string) error {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errors.WithCode(errors.CodeDatabaseError, errors.Wrap(err, message))
}

// SchemaVersions lists the applied migration versions
func (s *Store) SchemaVersions(ctx context.Context) ([]int, error) {
	return migration.NewRunner(s.logger).Applied(ctx, s.db)
}
