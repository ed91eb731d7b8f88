package store

import (
	"database/sql"
	"fmt"
)

// Migration is a single idempotent schema change, run in order on every
// Open. Mirrors the teacher's migrationsList idiom: migrations are data,
// applied once and recorded in schema_migrations, so a fresh database and
// an upgraded old one converge on the same shape.
type Migration struct {
	Name string
	Func func(*sql.DB) error
}

var migrationsList = []Migration{
	{"add_worker_error_column", migrateWorkerErrorColumn},
	{"add_agent_capabilities_index", migrateAgentCapabilitiesIndex},
}

func migrateWorkerErrorColumn(db *sql.DB) error {
	if hasColumn(db, "sessions", "worker_error") {
		return nil
	}
	_, err := db.Exec(`ALTER TABLE sessions ADD COLUMN worker_error TEXT DEFAULT ''`)
	return err
}

func migrateAgentCapabilitiesIndex(db *sql.DB) error {
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_agents_last_seen ON agents(last_seen)`)
	return err
}

func hasColumn(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid        int
			name       string
			ctype      string
			notnull    int
			dfltValue  any
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &primaryKey); err != nil {
			return false
		}
		if name == column {
			return true
		}
	}
	return false
}

// runMigrations applies pending migrations, recording each in
// schema_migrations so re-opening the database never re-runs one. All
// migration functions must themselves be idempotent (defense in depth),
// since schema_migrations was only added after the first few migrations.
func runMigrations(db *sql.DB) error {
	applied := map[string]bool{}
	rows, err := db.Query(`SELECT name FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("reading schema_migrations: %w", err)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return err
		}
		applied[name] = true
	}
	rows.Close()

	for _, m := range migrationsList {
		if applied[m.Name] {
			continue
		}
		if err := m.Func(db); err != nil {
			return fmt.Errorf("migration %s: %w", m.Name, err)
		}
		if _, err := db.Exec(`INSERT OR IGNORE INTO schema_migrations(name) VALUES (?)`, m.Name); err != nil {
			return fmt.Errorf("recording migration %s: %w", m.Name, err)
		}
	}
	return nil
}

// ListMigrations returns metadata about every registered migration, applied
// or not, for the doctor-style CLI command to report.
func ListMigrations() []string {
	names := make([]string, len(migrationsList))
	for i, m := range migrationsList {
		names[i] = m.Name
	}
	return names
}
