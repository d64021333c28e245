package migrations

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Run creates the document tables backing each collection. Records are
// stored as JSON documents keyed by id so both storage backends share one
// record shape.
func Run(db *sqlx.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS staff (
			id  TEXT PRIMARY KEY,
			doc TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS inventory (
			id  TEXT PRIMARY KEY,
			doc TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS patients (
			id  TEXT PRIMARY KEY,
			doc TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS fiscal (
			id  TEXT PRIMARY KEY,
			doc TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS purchases (
			id  TEXT PRIMARY KEY,
			doc TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS auth_events (
			id  TEXT PRIMARY KEY,
			doc TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS pharmacy (
			id  INTEGER PRIMARY KEY CHECK (id = 1),
			doc TEXT NOT NULL
		);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
