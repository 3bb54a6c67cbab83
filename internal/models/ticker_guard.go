package models

import (
	"sync"
)

// TickerGuard tracks which tickers have an order in flight.
// Unlike a mutex it never blocks: a busy ticker is reported to the caller.
type TickerGuard struct {
	mu     sync.Mutex
	active map[string]struct{}
}

// NewTickerGuard creates an empty guard
func NewTickerGuard() *TickerGuard {
	return &TickerGuard{
		active: make(map[string]struct{}),
	}
}

// TryAcquire marks ticker busy. It returns false if it already was.
func (g *TickerGuard) TryAcquire(ticker string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.active[ticker]; busy {
		return false
	}
	g.active[ticker] = struct{}{}
	return true
}

// Release frees ticker for the next order.
func (g *TickerGuard) Release(ticker string) {
	g.mu.Lock()
	delete(g.active, ticker)
	g.mu.Unlock()
}

// Busy reports whether ticker has an order in flight.
func (g *TickerGuard) Busy(ticker string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.active[ticker]
	return busy
}
