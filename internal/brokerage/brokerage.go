// Package brokerage is the public boundary of the client core.
//
// Callers read through Get and the valuation helpers, trigger background
// refreshes with EnsureFresh, and change ledger state only through
// SubmitOrder and the watchlist calls. The store is never handed out for
// direct writes.
package brokerage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/atharvakonge/paper-brokerage/internal/db"
	"github.com/atharvakonge/paper-brokerage/internal/fetch"
	"github.com/atharvakonge/paper-brokerage/internal/models"
	"github.com/atharvakonge/paper-brokerage/internal/order"
	"github.com/atharvakonge/paper-brokerage/internal/store"
	"github.com/atharvakonge/paper-brokerage/internal/valuation"
)

// ErrEmptyTicker is returned for calls that need a ticker and got none.
var ErrEmptyTicker = errors.New("ticker is required")

// API is everything the core needs from the price service.
type API interface {
	fetch.API
	order.Ledger
	AddToWatchlist(ctx context.Context, ticker string) error
	RemoveFromWatchlist(ctx context.Context, ticker string) error
}

// Options configures a Brokerage. Zero values fall back to package defaults.
type Options struct {
	Logger       zerolog.Logger
	Journal      db.Journal
	ErrorSink    fetch.ErrorSink
	OnTransition order.TransitionHook
	Workers      int
	QuoteTTL     time.Duration
	Timeout      time.Duration
	HistorySize  int
	Clock        func() time.Time
}

// Brokerage ties the store, the fetch orchestrator and the order
// coordinator together.
type Brokerage struct {
	api     API
	store   *store.Store
	fetcher *fetch.Orchestrator
	orders  *order.Coordinator
	journal db.Journal
	logger  zerolog.Logger
	timeout time.Duration
	now     func() time.Time
}

// New builds a Brokerage on top of api. Call Start before submitting orders.
func New(api API, opts Options) *Brokerage {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Journal == nil {
		opts.Journal = db.NewNoopJournal()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = fetch.DefaultTimeout
	}

	st := store.New(store.WithClock(opts.Clock))
	fetcher := fetch.New(api, st,
		fetch.WithLogger(opts.Logger.With().Str("component", "fetch").Logger()),
		fetch.WithErrorSink(opts.ErrorSink),
		fetch.WithTimeout(opts.Timeout),
	)
	orders := order.New(api, fetcher, st,
		order.WithLogger(opts.Logger.With().Str("component", "order").Logger()),
		order.WithJournal(opts.Journal),
		order.WithTransitionHook(opts.OnTransition),
		order.WithWorkers(opts.Workers),
		order.WithQuoteTTL(opts.QuoteTTL),
		order.WithCallTimeout(opts.Timeout),
		order.WithHistorySize(opts.HistorySize),
		order.WithClock(opts.Clock),
	)

	return &Brokerage{
		api:     api,
		store:   st,
		fetcher: fetcher,
		orders:  orders,
		journal: opts.Journal,
		logger:  opts.Logger,
		timeout: opts.Timeout,
		now:     opts.Clock,
	}
}

// Start launches the order workers.
func (b *Brokerage) Start() {
	b.orders.Start()
}

// Stop waits for running orders to finish.
func (b *Brokerage) Stop() {
	b.orders.Stop()
}

// EnsureFresh refreshes (kind, key) in the background. See fetch.Orchestrator.
func (b *Brokerage) EnsureFresh(kind store.Kind, key string) {
	b.fetcher.EnsureFresh(kind, key)
}

// EnsureFreshPeriod refreshes one period of a ticker's series in the background.
func (b *Brokerage) EnsureFreshPeriod(ticker string, period models.Period) {
	b.fetcher.EnsureFreshPeriod(ticker, period)
}

// RefreshAll starts a refresh of the account, the portfolio, the watchlist
// and every quote the client currently cares about.
func (b *Brokerage) RefreshAll() {
	b.fetcher.EnsureFresh(store.KindAccount, "")
	b.fetcher.EnsureFresh(store.KindHolding, "")
	b.fetcher.EnsureFresh(store.KindWatchlist, "")
	b.fetcher.EnsureFreshAll(store.KindQuote, b.trackedTickers())
}

// Refresh fetches (kind, key) and waits for the result.
func (b *Brokerage) Refresh(ctx context.Context, kind store.Kind, key string) error {
	return b.fetcher.Refresh(ctx, kind, key)
}

// Get returns the cached entity for (kind, key). It never fetches.
func (b *Brokerage) Get(kind store.Kind, key string) (any, bool) {
	return b.store.Get(kind, key)
}

// Snapshot returns a consistent copy of everything cached.
func (b *Brokerage) Snapshot() store.Snapshot {
	return b.store.Snapshot()
}

// Subscribe streams store changes. Call the returned func to stop.
func (b *Brokerage) Subscribe(buffer int) (<-chan store.Change, func()) {
	return b.store.Subscribe(buffer)
}

// SubmitOrder trades one share of ticker.
func (b *Brokerage) SubmitOrder(ctx context.Context, ticker string, side models.Side) order.Result {
	return b.orders.Submit(ctx, ticker, side)
}

// OrderInFlight reports whether ticker has an order running.
func (b *Brokerage) OrderInFlight(ticker string) bool {
	return b.orders.InFlight(ticker)
}

// Orders returns recently finished orders, newest first.
func (b *Brokerage) Orders(limit int) []order.Order {
	return b.orders.History(limit)
}

// JournalEntries reads recent transitions back from the order journal.
func (b *Brokerage) JournalEntries(ctx context.Context, limit int) ([]db.Transition, error) {
	entries, err := b.journal.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("read order journal: %w", err)
	}
	return entries, nil
}

// Valuation values the holding for ticker from cached data.
func (b *Brokerage) Valuation(ticker string) (valuation.Snapshot, bool) {
	return valuation.ForTicker(b.store.Snapshot(), ticker)
}

// PortfolioSummary values every holding plus cash from cached data.
func (b *Brokerage) PortfolioSummary() valuation.Summary {
	return valuation.Summarize(b.store.Snapshot())
}

// Watchlist returns the cached watchlist.
func (b *Brokerage) Watchlist() []models.WatchlistEntry {
	return b.store.Watchlist()
}

// AddToWatchlist asks the service to watch ticker, then re-reads the
// watchlist so the store reflects what the server stored.
func (b *Brokerage) AddToWatchlist(ctx context.Context, ticker string) error {
	ticker = models.NormalizeTicker(ticker)
	if ticker == "" {
		return ErrEmptyTicker
	}

	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	if err := b.api.AddToWatchlist(callCtx, ticker); err != nil {
		return err
	}

	b.fetcher.EnsureFresh(store.KindQuote, ticker)
	if err := b.fetcher.Refresh(ctx, store.KindWatchlist, ""); err != nil {
		b.logger.Warn().Err(err).Str("ticker", ticker).Msg("watchlist refresh after add failed")
	}
	return nil
}

// RemoveFromWatchlist drops ticker from the watchlist once the service
// has confirmed the delete.
func (b *Brokerage) RemoveFromWatchlist(ctx context.Context, ticker string) error {
	ticker = models.NormalizeTicker(ticker)
	if ticker == "" {
		return ErrEmptyTicker
	}

	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	if err := b.api.RemoveFromWatchlist(callCtx, ticker); err != nil {
		return err
	}
	return b.store.Remove(store.KindWatchlist, ticker)
}

// trackedTickers lists every ticker that is held or watched.
func (b *Brokerage) trackedTickers() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, h := range b.store.Holdings() {
		if _, ok := seen[h.Ticker]; !ok {
			seen[h.Ticker] = struct{}{}
			out = append(out, h.Ticker)
		}
	}
	for _, w := range b.store.Watchlist() {
		if _, ok := seen[w.Ticker]; !ok {
			seen[w.Ticker] = struct{}{}
			out = append(out, w.Ticker)
		}
	}
	return out
}
