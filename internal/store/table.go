package store

import (
	"database/sql"
	"fmt"
)

func Migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}
	if v >= 1 {
		return tx.Commit()
	}

	// ---- Schema v1: tables ----

	stmts := []string{`
CREATE TABLE IF NOT EXISTS leads (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  dedupe_key TEXT NOT NULL,
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  source TEXT NOT NULL,
  source_url TEXT NOT NULL DEFAULT '',
  location TEXT NOT NULL,
  posted_at TEXT NOT NULL,
  budget_range TEXT NOT NULL DEFAULT '',
  category TEXT NOT NULL,
  contact_method TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'new',
  saved INTEGER NOT NULL DEFAULT 0,
  first_seen_at TEXT NOT NULL,
  last_seen_at TEXT NOT NULL,
  seen_count INTEGER NOT NULL DEFAULT 1,
  status_changed_at TEXT NOT NULL
);`, `
CREATE TABLE IF NOT EXISTS lead_status_history (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  lead_id INTEGER NOT NULL REFERENCES leads(id),
  from_status TEXT NOT NULL,
  to_status TEXT NOT NULL,
  reason TEXT NOT NULL DEFAULT '',
  at TEXT NOT NULL
);`, `
CREATE TABLE IF NOT EXISTS meta (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL
);`,

		// ---- Schema v1: indexes ----

		`CREATE UNIQUE INDEX IF NOT EXISTS idx_leads_dedupe_key ON leads(dedupe_key);`,
		`CREATE INDEX IF NOT EXISTS idx_leads_source ON leads(source);`,
		`CREATE INDEX IF NOT EXISTS idx_leads_category ON leads(category);`,
		`CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);`,
		`CREATE INDEX IF NOT EXISTS idx_history_lead ON lead_status_history(lead_id, id);`,
	}
	for _, s := range stmts {
		if _, err := tx.Exec(s); err != nil {
			return err
		}
	}

	if !columnExists(tx, "leads", "seen_count") {
		return fmt.Errorf("leads table predates schema v1; remove the database file")
	}

	// Mark schema v1
	if _, err := tx.Exec(`PRAGMA user_version = 1;`); err != nil {
		return err
	}
	return tx.Commit()
}

func columnExists(q interface {
	QueryRow(query string, args ...any) *sql.Row
}, table, col string) bool {
	query := fmt.Sprintf(`
SELECT 1
FROM pragma_table_info('%s')
WHERE name = ?
LIMIT 1;
`, table)

	var one int
	err := q.QueryRow(query, col).Scan(&one)
	return err == nil
}
