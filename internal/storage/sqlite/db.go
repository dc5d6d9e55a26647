// Package sqlite is the durable backend for feedback and the composition
// audit log.
package sqlite

import (
	"database/sql"
	"encoding/json"

	_ "github.com/mattn/go-sqlite3"
)

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS feedback_entries (
		id                       TEXT PRIMARY KEY,
		position                 INTEGER NOT NULL,
		created_at               DATETIME NOT NULL,
		input_hash               TEXT DEFAULT '',
		scenario_context         TEXT DEFAULT '{}',
		generated_output_snippet TEXT DEFAULT '',
		user_feedback            TEXT NOT NULL,
		applied_rules            TEXT DEFAULT '[]',
		priority                 TEXT NOT NULL,
		active                   INTEGER NOT NULL DEFAULT 1,
		applies_to_scenarios     TEXT DEFAULT '[]'
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_position ON feedback_entries(position);

	CREATE TABLE IF NOT EXISTS global_overrides (
		id       TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		rule     TEXT NOT NULL,
		priority TEXT NOT NULL,
		active   INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS audit_log (
		id             TEXT PRIMARY KEY,
		logged_at      DATETIME NOT NULL,
		inputs_hash    TEXT DEFAULT '',
		customer_notes TEXT DEFAULT '',
		materials      TEXT DEFAULT '[]',
		options        TEXT DEFAULT '[]',
		region         TEXT DEFAULT '',
		snippets_used  TEXT DEFAULT '[]',
		feedback_used  INTEGER NOT NULL DEFAULT 0,
		feedback_ids   TEXT DEFAULT '[]',
		fallback_used  INTEGER NOT NULL DEFAULT 0,
		provider       TEXT DEFAULT '',
		output_preview TEXT DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_audit_logged_at ON audit_log(logged_at);
	`
	_, err = db.Exec(schema)
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func encodeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeList(raw string) ([]string, error) {
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}
