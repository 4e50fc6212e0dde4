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

// DBTX is the subset of *sql.DB / *sql.Tx the engine reads and writes
// through, so the same query helpers run inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:mocktest.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/mocktest?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// One pooled connection: concurrent writers queue on the pool
		// instead of racing into SQLITE_LOCKED under shared cache.
		db.SetMaxOpenConns(1)
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

CREATE TABLE IF NOT EXISTS mock_tests (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  total_questions INTEGER NOT NULL DEFAULT 0, -- derived, recomputed per generation
  total_marks REAL NOT NULL DEFAULT 0,        -- derived, recomputed per generation
  config_json TEXT NOT NULL DEFAULT '',       -- cached snapshot, replaced wholesale
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS mock_test_tabs (
  id TEXT PRIMARY KEY,
  mock_test_id TEXT NOT NULL REFERENCES mock_tests(id) ON DELETE CASCADE,
  name TEXT NOT NULL,
  selection_mode TEXT NOT NULL DEFAULT 'auto', -- auto|manual
  total_questions INTEGER NOT NULL DEFAULT 0,  -- authored cap, never derived
  time_limit_minutes INTEGER NOT NULL DEFAULT 0,
  ord INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS distribution_rules (
  id TEXT PRIMARY KEY,
  tab_id TEXT NOT NULL REFERENCES mock_test_tabs(id) ON DELETE CASCADE,
  pool TEXT NOT NULL,
  subject TEXT NOT NULL DEFAULT '',
  chapter TEXT NOT NULL DEFAULT '',
  sub_chapter TEXT NOT NULL DEFAULT '',
  section TEXT NOT NULL DEFAULT '',
  question_type TEXT NOT NULL DEFAULT '',
  difficulty TEXT NOT NULL DEFAULT '',
  cnt INTEGER,
  percentage REAL,
  selected_json TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS mock_test_questions (
  id TEXT PRIMARY KEY,
  mock_test_id TEXT NOT NULL REFERENCES mock_tests(id) ON DELETE CASCADE,
  tab_id TEXT NOT NULL REFERENCES mock_test_tabs(id) ON DELETE CASCADE,
  pool TEXT NOT NULL DEFAULT '', -- '' on legacy rows; snapshot probe disambiguates
  question_id INTEGER NOT NULL,
  marks REAL NOT NULL DEFAULT 1,
  negative_marks REAL NOT NULL DEFAULT 0,
  ord INTEGER NOT NULL DEFAULT 0,
  added_manually INTEGER NOT NULL DEFAULT 0
);

CREATE UNIQUE INDEX IF NOT EXISTS mock_test_questions_link
  ON mock_test_questions (tab_id, pool, question_id);

CREATE TABLE IF NOT EXISTS event_log (
  seq INTEGER PRIMARY KEY AUTOINCREMENT, -- BIGSERIAL in Postgres
  typ TEXT NOT NULL,                     -- e.g. mock.generated
  key TEXT NOT NULL,                     -- natural key: mock test / tab id
  data TEXT NOT NULL,                    -- JSON payload
  created_at INTEGER NOT NULL
);

-- Question banks. Owned by the ingestion pipeline; the engine only reads.
-- Schemas are intentionally dissimilar.
CREATE TABLE IF NOT EXISTS polity (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  question TEXT NOT NULL,
  option_1 TEXT NOT NULL DEFAULT '',
  option_2 TEXT NOT NULL DEFAULT '',
  option_3 TEXT NOT NULL DEFAULT '',
  option_4 TEXT NOT NULL DEFAULT '',
  answer TEXT NOT NULL DEFAULT '',
  solution TEXT NOT NULL DEFAULT '',
  chapter TEXT NOT NULL DEFAULT '',
  sub_chapter TEXT NOT NULL DEFAULT '',
  difficulty TEXT NOT NULL DEFAULT '',
  external_key TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS current_affairs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  question TEXT NOT NULL,
  option_1 TEXT NOT NULL DEFAULT '',
  option_2 TEXT NOT NULL DEFAULT '',
  option_3 TEXT NOT NULL DEFAULT '',
  option_4 TEXT NOT NULL DEFAULT '',
  answer TEXT NOT NULL DEFAULT '',
  solution TEXT NOT NULL DEFAULT '',
  question_type TEXT NOT NULL DEFAULT '',
  external_key TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS quantitative_aptitude (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  question TEXT NOT NULL,
  question_part TEXT NOT NULL DEFAULT '',
  option_1 TEXT NOT NULL DEFAULT '',
  option_2 TEXT NOT NULL DEFAULT '',
  option_3 TEXT NOT NULL DEFAULT '',
  option_4 TEXT NOT NULL DEFAULT '',
  option_5 TEXT NOT NULL DEFAULT '',
  option_1_image TEXT NOT NULL DEFAULT '',
  option_2_image TEXT NOT NULL DEFAULT '',
  option_3_image TEXT NOT NULL DEFAULT '',
  option_4_image TEXT NOT NULL DEFAULT '',
  option_5_image TEXT NOT NULL DEFAULT '',
  answer TEXT NOT NULL DEFAULT '',
  solution TEXT NOT NULL DEFAULT '',
  solution_image TEXT NOT NULL DEFAULT '',
  shortcut TEXT NOT NULL DEFAULT '',
  shortcut_image TEXT NOT NULL DEFAULT '',
  subject TEXT NOT NULL DEFAULT '',
  chapter TEXT NOT NULL DEFAULT '',
  sub_chapter TEXT NOT NULL DEFAULT '',
  section TEXT NOT NULL DEFAULT '',
  difficulty TEXT NOT NULL DEFAULT '',
  question_type TEXT NOT NULL DEFAULT '',
  time_seconds INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS static_gk (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  question TEXT NOT NULL,
  option_1 TEXT NOT NULL DEFAULT '',
  option_2 TEXT NOT NULL DEFAULT '',
  option_3 TEXT NOT NULL DEFAULT '',
  option_4 TEXT NOT NULL DEFAULT '',
  answer TEXT NOT NULL DEFAULT '',
  subject TEXT NOT NULL DEFAULT '',
  chapter TEXT NOT NULL DEFAULT ''
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS mock_tests (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  total_questions INTEGER NOT NULL DEFAULT 0,
  total_marks DOUBLE PRECISION NOT NULL DEFAULT 0,
  config_json TEXT NOT NULL DEFAULT '',
  created_at BIGINT NOT NULL,
  updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS mock_test_tabs (
  id TEXT PRIMARY KEY,
  mock_test_id TEXT NOT NULL REFERENCES mock_tests(id) ON DELETE CASCADE,
  name TEXT NOT NULL,
  selection_mode TEXT NOT NULL DEFAULT 'auto',
  total_questions INTEGER NOT NULL DEFAULT 0,
  time_limit_minutes INTEGER NOT NULL DEFAULT 0,
  ord INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS distribution_rules (
  id TEXT PRIMARY KEY,
  tab_id TEXT NOT NULL REFERENCES mock_test_tabs(id) ON DELETE CASCADE,
  pool TEXT NOT NULL,
  subject TEXT NOT NULL DEFAULT '',
  chapter TEXT NOT NULL DEFAULT '',
  sub_chapter TEXT NOT NULL DEFAULT '',
  section TEXT NOT NULL DEFAULT '',
  question_type TEXT NOT NULL DEFAULT '',
  difficulty TEXT NOT NULL DEFAULT '',
  cnt INTEGER,
  percentage DOUBLE PRECISION,
  selected_json TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS mock_test_questions (
  id TEXT PRIMARY KEY,
  mock_test_id TEXT NOT NULL REFERENCES mock_tests(id) ON DELETE CASCADE,
  tab_id TEXT NOT NULL REFERENCES mock_test_tabs(id) ON DELETE CASCADE,
  pool TEXT NOT NULL DEFAULT '',
  question_id BIGINT NOT NULL,
  marks DOUBLE PRECISION NOT NULL DEFAULT 1,
  negative_marks DOUBLE PRECISION NOT NULL DEFAULT 0,
  ord INTEGER NOT NULL DEFAULT 0,
  added_manually BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE UNIQUE INDEX IF NOT EXISTS mock_test_questions_link
  ON mock_test_questions (tab_id, pool, question_id);

CREATE TABLE IF NOT EXISTS event_log (
  seq BIGSERIAL PRIMARY KEY,
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS polity (
  id BIGSERIAL PRIMARY KEY,
  question TEXT NOT NULL,
  option_1 TEXT NOT NULL DEFAULT '',
  option_2 TEXT NOT NULL DEFAULT '',
  option_3 TEXT NOT NULL DEFAULT '',
  option_4 TEXT NOT NULL DEFAULT '',
  answer TEXT NOT NULL DEFAULT '',
  solution TEXT NOT NULL DEFAULT '',
  chapter TEXT NOT NULL DEFAULT '',
  sub_chapter TEXT NOT NULL DEFAULT '',
  difficulty TEXT NOT NULL DEFAULT '',
  external_key TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS current_affairs (
  id BIGSERIAL PRIMARY KEY,
  question TEXT NOT NULL,
  option_1 TEXT NOT NULL DEFAULT '',
  option_2 TEXT NOT NULL DEFAULT '',
  option_3 TEXT NOT NULL DEFAULT '',
  option_4 TEXT NOT NULL DEFAULT '',
  answer TEXT NOT NULL DEFAULT '',
  solution TEXT NOT NULL DEFAULT '',
  question_type TEXT NOT NULL DEFAULT '',
  external_key TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS quantitative_aptitude (
  id BIGSERIAL PRIMARY KEY,
  question TEXT NOT NULL,
  question_part TEXT NOT NULL DEFAULT '',
  option_1 TEXT NOT NULL DEFAULT '',
  option_2 TEXT NOT NULL DEFAULT '',
  option_3 TEXT NOT NULL DEFAULT '',
  option_4 TEXT NOT NULL DEFAULT '',
  option_5 TEXT NOT NULL DEFAULT '',
  option_1_image TEXT NOT NULL DEFAULT '',
  option_2_image TEXT NOT NULL DEFAULT '',
  option_3_image TEXT NOT NULL DEFAULT '',
  option_4_image TEXT NOT NULL DEFAULT '',
  option_5_image TEXT NOT NULL DEFAULT '',
  answer TEXT NOT NULL DEFAULT '',
  solution TEXT NOT NULL DEFAULT '',
  solution_image TEXT NOT NULL DEFAULT '',
  shortcut TEXT NOT NULL DEFAULT '',
  shortcut_image TEXT NOT NULL DEFAULT '',
  subject TEXT NOT NULL DEFAULT '',
  chapter TEXT NOT NULL DEFAULT '',
  sub_chapter TEXT NOT NULL DEFAULT '',
  section TEXT NOT NULL DEFAULT '',
  difficulty TEXT NOT NULL DEFAULT '',
  question_type TEXT NOT NULL DEFAULT '',
  time_seconds INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS static_gk (
  id BIGSERIAL PRIMARY KEY,
  question TEXT NOT NULL,
  option_1 TEXT NOT NULL DEFAULT '',
  option_2 TEXT NOT NULL DEFAULT '',
  option_3 TEXT NOT NULL DEFAULT '',
  option_4 TEXT NOT NULL DEFAULT '',
  answer TEXT NOT NULL DEFAULT '',
  subject TEXT NOT NULL DEFAULT '',
  chapter TEXT NOT NULL DEFAULT ''
);
`
