package db

import (
	"database/sql"
	"fmt"
)

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: index used by the per-user borrow listing.
	`CREATE INDEX IF NOT EXISTS idx_borrows_user ON borrows(user_id, created_at)`,
	// Migration 2: expired revocations are pruned by expiry.
	`CREATE INDEX IF NOT EXISTS idx_revoked_tokens_expires ON revoked_tokens(expires_at)`,
}

// addedColumns are columns introduced after a table's first release. SQLite
// has no ADD COLUMN IF NOT EXISTS, so each one is checked before it is added.
var addedColumns = []struct {
	table, column, decl string
}{
	{"otps", "attempts", "INTEGER NOT NULL DEFAULT 0"},
}

// Migrate ensures the schema and runs the database migrations.
func Migrate(db *sql.DB) error {
	if err := EnsureSchema(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	for _, c := range addedColumns {
		var n int
		err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, c.table, c.column).Scan(&n)
		if err != nil {
			return fmt.Errorf("inspecting %s.%s: %w", c.table, c.column, err)
		}
		if n > 0 {
			continue
		}
		if _, err := db.Exec(`ALTER TABLE ` + c.table + ` ADD COLUMN ` + c.column + ` ` + c.decl); err != nil {
			return fmt.Errorf("adding column %s.%s: %w", c.table, c.column, err)
		}
	}

	return nil
}
