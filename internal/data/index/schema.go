package index

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is the newest migration this build knows how to apply.
const SchemaVersion = 1

type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  root TEXT NOT NULL DEFAULT '',
  started_at_utc TEXT NOT NULL,
  finished_at_utc TEXT NOT NULL DEFAULT '',
  file_count INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS files (
  path TEXT PRIMARY KEY,
  run_id TEXT NOT NULL DEFAULT '',
  sha256 TEXT NOT NULL,
  indexed_at_utc TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS functions (
  path TEXT NOT NULL REFERENCES files(path) ON DELETE CASCADE,
  seq INTEGER NOT NULL,
  qualified_name TEXT NOT NULL,
  parameters TEXT NOT NULL,
  start_line INTEGER NOT NULL,
  end_line INTEGER NOT NULL,
  doc_comment TEXT,
  decorators TEXT NOT NULL,
  snippet TEXT NOT NULL,
  is_async INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (path, seq)
);
CREATE TABLE IF NOT EXISTS classes (
  path TEXT NOT NULL REFERENCES files(path) ON DELETE CASCADE,
  seq INTEGER NOT NULL,
  qualified_name TEXT NOT NULL,
  base_types TEXT NOT NULL,
  start_line INTEGER NOT NULL,
  end_line INTEGER NOT NULL,
  doc_comment TEXT,
  decorators TEXT NOT NULL,
  snippet TEXT NOT NULL,
  PRIMARY KEY (path, seq)
);
CREATE TABLE IF NOT EXISTS imports (
  path TEXT NOT NULL REFERENCES files(path) ON DELETE CASCADE,
  seq INTEGER NOT NULL,
  kind TEXT NOT NULL,
  source_module TEXT,
  imported_name TEXT NOT NULL,
  alias TEXT,
  relative_depth INTEGER NOT NULL DEFAULT 0,
  start_line INTEGER NOT NULL,
  end_line INTEGER NOT NULL,
  PRIMARY KEY (path, seq)
);
CREATE TABLE IF NOT EXISTS calls (
  path TEXT NOT NULL REFERENCES files(path) ON DELETE CASCADE,
  seq INTEGER NOT NULL,
  caller TEXT NOT NULL,
  callee TEXT NOT NULL,
  start_line INTEGER NOT NULL,
  end_line INTEGER NOT NULL,
  PRIMARY KEY (path, seq)
);
CREATE INDEX IF NOT EXISTS idx_functions_qualified_name ON functions(qualified_name);
CREATE INDEX IF NOT EXISTS idx_classes_qualified_name ON classes(qualified_name);
CREATE INDEX IF NOT EXISTS idx_calls_callee ON calls(callee);
CREATE INDEX IF NOT EXISTS idx_calls_caller ON calls(caller);
CREATE INDEX IF NOT EXISTS idx_imports_source_module ON imports(source_module);
`,
	},
}

func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at_utc TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
);
`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema_migrations version: %w", err)
	}
	if current > SchemaVersion {
		return fmt.Errorf("schema version %d is newer than supported version %d", current, SchemaVersion)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations(version) VALUES (?)`, m.version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
	}
	return nil
}
