package db

import (
	"fmt"
	"os"

	_ "github.com/lib/pq" // PostgreSQL driver
)

func init() {
	schemas[DriverPostgres] = []string{
		`CREATE TABLE IF NOT EXISTS order_transitions (
			id         BIGSERIAL PRIMARY KEY,
			order_id   UUID NOT NULL,
			ticker     VARCHAR(16) NOT NULL,
			side       VARCHAR(4) NOT NULL,
			from_state VARCHAR(16) NOT NULL,
			to_state   VARCHAR(16) NOT NULL,
			reason     VARCHAR(32) NOT NULL DEFAULT '',
			price      TEXT NOT NULL,
			error      TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS order_transitions_order_id ON order_transitions (order_id)`,
	}
}

// PostgresDSNFromEnv builds a connection string from DB_* variables.
func PostgresDSNFromEnv() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_PORT", "5433"),
		getEnv("DB_USER", "trader"),
		getEnv("DB_PASSWORD", "trading123"),
		getEnv("DB_NAME", "trading_db"),
		getEnv("DB_SSLMODE", "disable"),
	)
}

// Helper function to get environment variable with default
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
