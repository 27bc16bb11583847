package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "messages: conversational input that triggers analysis",
		SQL: `
CREATE TABLE messages (
    id            TEXT PRIMARY KEY,
    role          TEXT NOT NULL CHECK (role IN ('user', 'assistant', 'system')),
    content       TEXT NOT NULL,
    created_at    INTEGER NOT NULL,
    processed_at  INTEGER
);

CREATE INDEX idx_messages_created   ON messages(created_at);
CREATE INDEX idx_messages_processed ON messages(processed_at);
`,
	},
	{
		Version:     2,
		Description: "raw_values: one resolved value per day per category",
		SQL: `
CREATE TABLE raw_values (
    day       TEXT NOT NULL,
    category  TEXT NOT NULL,
    value     REAL NOT NULL,
    PRIMARY KEY (day, category)
);
`,
	},
	{
		Version:     3,
		Description: "score_snapshots: per-day display score, priority and category scores",
		SQL: `
CREATE TABLE score_snapshots (
    day            TEXT PRIMARY KEY,
    display_score  INTEGER NOT NULL,
    priority       TEXT NOT NULL,
    computed_at    INTEGER NOT NULL
);

CREATE TABLE category_scores (
    day       TEXT NOT NULL,
    category  TEXT NOT NULL,
    score     REAL NOT NULL,
    PRIMARY KEY (day, category),
    FOREIGN KEY (day) REFERENCES score_snapshots(day) ON DELETE CASCADE
);
`,
	},
}

func (db *DB) migrate() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
