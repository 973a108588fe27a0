// Package runstore records evaluation runs in a SQLite database so scores
// from repeated pipeline runs can be compared later.
package runstore

import (
	"context"
	"database/sql"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/YuminosukeSato/molpipe/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	created_at  TEXT NOT NULL,
	model       TEXT NOT NULL,
	backend     TEXT NOT NULL,
	task_type   TEXT NOT NULL,
	split       TEXT NOT NULL,
	saved_model TEXT NOT NULL,
	saved_data  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS scores (
	run_id  TEXT NOT NULL REFERENCES runs(id),
	task    TEXT NOT NULL,
	metric  TEXT NOT NULL,
	value   REAL,
	samples INTEGER NOT NULL,
	PRIMARY KEY (run_id, task, metric)
);
CREATE INDEX IF NOT EXISTS runs_model ON runs(model, created_at);
`

// Score is one (task, metric) result. An undefined metric is NaN and is
// stored as NULL.
type Score struct {
	Task    string
	Metric  string
	Value   float64
	Samples int
}

// Run is one evaluation of a model artifact on a split bundle.
type Run struct {
	ID         string
	CreatedAt  time.Time
	Model      string
	Backend    string
	TaskType   string
	Split      string
	SavedModel string
	SavedData  string
	Scores     []Score
}

type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.NewValidationError("registry", "database path is required", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "create %s", filepath.Dir(path))
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping sqlite")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "apply run store schema")
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts r and its scores in one transaction. An empty ID is
// replaced by a new UUID and a zero CreatedAt by the current time.
func (s *Store) Record(ctx context.Context, r *Run) (err error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, model, backend, task_type, split, saved_model, saved_data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CreatedAt.Format(time.RFC3339Nano), r.Model, r.Backend, r.TaskType, r.Split, r.SavedModel, r.SavedData)
	if err != nil {
		return errors.Wrapf(err, "insert run %s", r.ID)
	}
	for _, sc := range r.Scores {
		v := sql.NullFloat64{Float64: sc.Value, Valid: !math.IsNaN(sc.Value)}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO scores (run_id, task, metric, value, samples) VALUES (?, ?, ?, ?, ?)`,
			r.ID, sc.Task, sc.Metric, v, sc.Samples); err != nil {
			return errors.Wrapf(err, "insert score %s/%s", sc.Task, sc.Metric)
		}
	}
	return errors.Wrap(tx.Commit(), "commit")
}

// Runs lists runs oldest first, optionally filtered by model name, with
// their scores.
func (s *Store) Runs(ctx context.Context, model string) ([]Run, error) {
	q := `SELECT id, created_at, model, backend, task_type, split, saved_model, saved_data FROM runs`
	var args []any
	if model != "" {
		q += ` WHERE model = ?`
		args = append(args, model)
	}
	q += ` ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var created string
		if err := rows.Scan(&r.ID, &created, &r.Model, &r.Backend, &r.TaskType, &r.Split, &r.SavedModel, &r.SavedData); err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, errors.Wrapf(err, "run %s created_at", r.ID)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate runs")
	}
	for i := range runs {
		if runs[i].Scores, err = s.scores(ctx, runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *Store) scores(ctx context.Context, runID string) ([]Score, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT task, metric, value, samples FROM scores WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "query scores")
	}
	defer rows.Close()
	var out []Score
	for rows.Next() {
		var sc Score
		var v sql.NullFloat64
		if err := rows.Scan(&sc.Task, &sc.Metric, &v, &sc.Samples); err != nil {
			return nil, errors.Wrap(err, "scan score")
		}
		sc.Value = math.NaN()
		if v.Valid {
			sc.Value = v.Float64
		}
		out = append(out, sc)
	}
	return out, errors.Wrap(rows.Err(), "iterate scores")
}
