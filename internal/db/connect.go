package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:examstack.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/examstack?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	if err := ensureSchema(ctx, db, driver); err != nil {
		return nil, err
	}
	return db, nil
}

func ensureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  pass_hash TEXT NOT NULL,
  role TEXT NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS exams (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  pass_mark REAL NOT NULL DEFAULT 0,
  result_release TEXT NOT NULL DEFAULT 'DELAYED',
  scheduled_release_at INTEGER,
  published INTEGER NOT NULL DEFAULT 0,
  questions_json TEXT NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS submissions (
  id TEXT PRIMARY KEY,
  exam_id TEXT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL,
  score REAL NOT NULL DEFAULT 0,
  max_score REAL NOT NULL DEFAULT 0,
  graded INTEGER NOT NULL DEFAULT 0,
  results_released INTEGER NOT NULL DEFAULT 0,
  answers_json TEXT NOT NULL,
  draft_json TEXT NOT NULL,
  results_json TEXT NOT NULL,
  snapshot_json TEXT NOT NULL,
  started_at INTEGER NOT NULL,
  submitted_at INTEGER,
  time_spent_ms INTEGER NOT NULL DEFAULT 0
);

-- At most one active attempt per (exam, candidate).
CREATE UNIQUE INDEX IF NOT EXISTS submissions_active_attempt
  ON submissions(exam_id, user_id) WHERE status = 'UNGRADED';

CREATE INDEX IF NOT EXISTS submissions_exam ON submissions(exam_id);
CREATE INDEX IF NOT EXISTS submissions_user ON submissions(user_id);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  pass_hash TEXT NOT NULL,
  role TEXT NOT NULL,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS exams (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  pass_mark DOUBLE PRECISION NOT NULL DEFAULT 0,
  result_release TEXT NOT NULL DEFAULT 'DELAYED',
  scheduled_release_at BIGINT,
  published INTEGER NOT NULL DEFAULT 0,
  questions_json TEXT NOT NULL,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS submissions (
  id TEXT PRIMARY KEY,
  exam_id TEXT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL,
  score DOUBLE PRECISION NOT NULL DEFAULT 0,
  max_score DOUBLE PRECISION NOT NULL DEFAULT 0,
  graded INTEGER NOT NULL DEFAULT 0,
  results_released INTEGER NOT NULL DEFAULT 0,
  answers_json TEXT NOT NULL,
  draft_json TEXT NOT NULL,
  results_json TEXT NOT NULL,
  snapshot_json TEXT NOT NULL,
  started_at BIGINT NOT NULL,
  submitted_at BIGINT,
  time_spent_ms BIGINT NOT NULL DEFAULT 0
);

CREATE UNIQUE INDEX IF NOT EXISTS submissions_active_attempt
  ON submissions(exam_id, user_id) WHERE status = 'UNGRADED';

CREATE INDEX IF NOT EXISTS submissions_exam ON submissions(exam_id);
CREATE INDEX IF NOT EXISTS submissions_user ON submissions(user_id);
`
