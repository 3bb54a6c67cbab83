// Package config loads the server configuration from an optional YAML file,
// a .env file and environment variables, in increasing order of precedence.
package config

import "time"

// Config is the root configuration of the brokerage server.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	API     APIConfig     `yaml:"api"`
	Cache   CacheConfig   `yaml:"cache"`
	Orders  OrdersConfig  `yaml:"orders"`
	Refresh RefreshConfig `yaml:"refresh"`
	Journal JournalConfig `yaml:"journal"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port    string `yaml:"port"`
	GinMode string `yaml:"gin_mode"`
}

// APIConfig points at the remote price and ledger service.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// CacheConfig controls how long a cached quote may price an order.
type CacheConfig struct {
	QuoteTTL time.Duration `yaml:"quote_ttl"`
}

// OrdersConfig sizes the order worker pool.
type OrdersConfig struct {
	Workers     int `yaml:"workers"`
	HistorySize int `yaml:"history_size"`
}

// RefreshConfig schedules the periodic background refresh.
type RefreshConfig struct {
	Cron string `yaml:"cron"` // standard cron or @every descriptor
}

// JournalConfig selects where order transitions are persisted.
type JournalConfig struct {
	Driver string `yaml:"driver"` // none, sqlite or postgres
	DSN    string `yaml:"dsn"`
}

// LogConfig controls zerolog output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}
