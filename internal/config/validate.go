package config

import (
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/atharvakonge/paper-brokerage/internal/db"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	switch c.Server.GinMode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.gin_mode %q must be debug, release or test", c.Server.GinMode)
	}

	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be positive")
	}
	if c.Cache.QuoteTTL <= 0 {
		return errors.New("cache.quote_ttl must be positive")
	}

	if c.Orders.Workers < 1 {
		return errors.New("orders.workers must be >= 1")
	}
	if c.Orders.HistorySize < 1 {
		return errors.New("orders.history_size must be >= 1")
	}

	if _, err := cron.ParseStandard(c.Refresh.Cron); err != nil {
		return fmt.Errorf("refresh.cron %q is invalid: %w", c.Refresh.Cron, err)
	}

	switch c.Journal.Driver {
	case db.DriverNone:
	case db.DriverPostgres, db.DriverSQLite:
		if c.Journal.DSN == "" {
			return fmt.Errorf("journal.dsn is required for driver %q", c.Journal.Driver)
		}
	default:
		return fmt.Errorf("journal.driver %q is not supported", c.Journal.Driver)
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level %q is invalid", c.Log.Level)
	}

	return nil
}
