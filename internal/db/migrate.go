package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// Migrate runs all schema migrations.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			// Tolerate "duplicate column name" errors from ALTER TABLE
			// since the migration system re-runs all statements.
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS generations (
		id              TEXT PRIMARY KEY,
		outcome         TEXT NOT NULL
		                CHECK(outcome IN ('success','configuration','input','empty_response',
		                                  'malformed_json','schema_validation','cancelled','transport')),
		model           TEXT NOT NULL DEFAULT '',
		latency_ms      INTEGER NOT NULL DEFAULT 0 CHECK(latency_ms >= 0),
		prompt_chars    INTEGER NOT NULL DEFAULT 0,
		component_count INTEGER NOT NULL DEFAULT 0,
		error_count     INTEGER NOT NULL DEFAULT 0,
		error           TEXT NOT NULL DEFAULT '',
		created_at      TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_generations_created ON generations(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_generations_outcome ON generations(outcome)`,

	`ALTER TABLE generations ADD COLUMN warning_count INTEGER NOT NULL DEFAULT 0`,
}
