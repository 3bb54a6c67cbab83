package db

import (
	_ "modernc.org/sqlite"
)

// schemas holds the migration statements per driver.
var schemas = map[string][]string{}

func init() {
	schemas[DriverSQLite] = []string{
		`CREATE TABLE IF NOT EXISTS order_transitions (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id   TEXT NOT NULL,
			ticker     TEXT NOT NULL,
			side       TEXT NOT NULL,
			from_state TEXT NOT NULL,
			to_state   TEXT NOT NULL,
			reason     TEXT NOT NULL DEFAULT '',
			price      TEXT NOT NULL,
			error      TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS order_transitions_order_id ON order_transitions (order_id)`,
	}
}
