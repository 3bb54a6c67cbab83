package config

import (
	"time"

	"github.com/atharvakonge/paper-brokerage/internal/db"
)

// Default values for optional configuration fields.
const (
	DefaultPort          = "8080"
	DefaultGinMode       = "debug"
	DefaultAPITimeout    = 10 * time.Second
	DefaultQuoteTTL      = 60 * time.Second
	DefaultWorkers       = 5
	DefaultHistorySize   = 100
	DefaultRefreshCron   = "@every 30s"
	DefaultJournal       = db.DriverNone
	DefaultLogLevel      = "info"
	DefaultSQLiteJournal = "data/journal.db"
)

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = DefaultPort
	}
	if c.Server.GinMode == "" {
		c.Server.GinMode = DefaultGinMode
	}

	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.Cache.QuoteTTL == 0 {
		c.Cache.QuoteTTL = DefaultQuoteTTL
	}
	if c.Orders.Workers == 0 {
		c.Orders.Workers = DefaultWorkers
	}
	if c.Orders.HistorySize == 0 {
		c.Orders.HistorySize = DefaultHistorySize
	}
	if c.Refresh.Cron == "" {
		c.Refresh.Cron = DefaultRefreshCron
	}

	if c.Journal.Driver == "" {
		c.Journal.Driver = DefaultJournal
	}
	if c.Journal.DSN == "" {
		switch c.Journal.Driver {
		case db.DriverPostgres:
			c.Journal.DSN = db.PostgresDSNFromEnv()
		case db.DriverSQLite:
			c.Journal.DSN = DefaultSQLiteJournal
		}
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}
