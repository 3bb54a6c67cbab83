// Package db persists the order journal: one row per order state transition.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Supported journal drivers.
const (
	DriverNone     = "none"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Transition is one recorded step of an order's saga.
type Transition struct {
	OrderID uuid.UUID       `json:"order_id"`
	Ticker  string          `json:"ticker"`
	Side    string          `json:"side"`
	From    string          `json:"from"`
	To      string          `json:"to"`
	Reason  string          `json:"reason,omitempty"`
	Price   decimal.Decimal `json:"price"`
	Error   string          `json:"error,omitempty"`
	At      time.Time       `json:"at"`
}

// Journal records order transitions.
type Journal interface {
	RecordTransition(ctx context.Context, t Transition) error
	Recent(ctx context.Context, limit int) ([]Transition, error)
	Close() error
}

// SQLJournal stores transitions through database/sql.
type SQLJournal struct {
	db     *sql.DB
	driver string
	mu     sync.Mutex
}

// Open connects to the journal database and creates the table if needed.
func Open(driver, dsn string) (*SQLJournal, error) {
	schema, ok := schemas[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported journal driver %q", driver)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err = conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	if driver == DriverSQLite {
		// SQLite allows a single writer.
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(25)
		conn.SetMaxIdleConns(5)
		conn.SetConnMaxLifetime(5 * time.Minute)
	}

	j := &SQLJournal{db: conn, driver: driver}
	for _, stmt := range schema {
		if _, err := conn.Exec(stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("migrate journal: %w", err)
		}
	}
	return j, nil
}

// RecordTransition appends one transition.
func (j *SQLJournal) RecordTransition(ctx context.Context, t Transition) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.ExecContext(ctx, `
        INSERT INTO order_transitions (order_id, ticker, side, from_state, to_state, reason, price, error, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, t.OrderID.String(), t.Ticker, t.Side, t.From, t.To, t.Reason, t.Price.String(), t.Error, t.At.UnixMicro())
	if err != nil {
		return fmt.Errorf("record transition: %w", err)
	}
	return nil
}

// Recent returns the latest transitions, newest first.
func (j *SQLJournal) Recent(ctx context.Context, limit int) ([]Transition, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, `
        SELECT order_id, ticker, side, from_state, to_state, reason, price, error, created_at
        FROM order_transitions
        ORDER BY id DESC
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	out := make([]Transition, 0, limit)
	for rows.Next() {
		var (
			t       Transition
			orderID string
			price   string
			at      int64
		)
		if err := rows.Scan(&orderID, &t.Ticker, &t.Side, &t.From, &t.To, &t.Reason, &price, &t.Error, &at); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		if t.OrderID, err = uuid.Parse(orderID); err != nil {
			return nil, fmt.Errorf("parse order id: %w", err)
		}
		if t.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse price: %w", err)
		}
		t.At = time.UnixMicro(at).UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (j *SQLJournal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// NoopJournal discards transitions. Used when no journal database is configured.
type NoopJournal struct{}

func NewNoopJournal() *NoopJournal { return &NoopJournal{} }

func (NoopJournal) RecordTransition(context.Context, Transition) error { return nil }
func (NoopJournal) Recent(context.Context, int) ([]Transition, error) { return nil, nil }
func (NoopJournal) Close() error { return nil }
