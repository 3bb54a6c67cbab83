// Package fetch keeps the store filled from the price service.
//
// Every refresh is keyed by (kind, key) and coalesced: while a fetch for a
// key is running, further requests for it join that fetch instead of
// issuing another HTTP call. Reload is the exception: it always sends a new
// request, and an older answer that lands after a newer one is dropped.
// Failed fetches leave the store untouched and are reported to the error
// sink. Nothing is retried automatically.
package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/atharvakonge/paper-brokerage/internal/models"
	"github.com/atharvakonge/paper-brokerage/internal/store"
)

// DefaultTimeout bounds one fetch when the caller did not configure one.
const DefaultTimeout = 10 * time.Second

// API is the read side of the price service.
type API interface {
	GetQuote(ctx context.Context, ticker string) (models.Quote, error)
	GetQuotePeriod(ctx context.Context, ticker string, period models.Period) (models.Quote, error)
	GetPortfolio(ctx context.Context) ([]models.Holding, error)
	GetBalance(ctx context.Context) (models.UserAccount, error)
	GetWatchlist(ctx context.Context) ([]models.WatchlistEntry, error)
}

// ErrorSink receives fetch failures, once per failed HTTP call.
type ErrorSink func(kind store.Kind, key string, err error)

// Orchestrator runs coalesced fetches and writes results into the store.
type Orchestrator struct {
	api     API
	store   *store.Store
	sink    ErrorSink
	logger  zerolog.Logger
	timeout time.Duration

	group singleflight.Group

	mu     sync.Mutex
	seq    uint64
	active map[string]int

	// applied is the sequence number of the newest fetch written per target.
	commitMu sync.Mutex
	applied  map[string]uint64
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithErrorSink sets where fetch failures are reported.
func WithErrorSink(sink ErrorSink) Option {
	return func(o *Orchestrator) {
		o.sink = sink
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithTimeout bounds each fetch; expiry counts as a network error.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// New creates an Orchestrator writing into st.
func New(api API, st *store.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		api:     api,
		store:   st,
		logger:  zerolog.Nop(),
		timeout: DefaultTimeout,
		active:  make(map[string]int),
		applied: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// EnsureFresh starts a background refresh of (kind, key) unless one is
// already running, and returns immediately. The fetch runs to completion
// even if nobody is interested in the result anymore.
func (o *Orchestrator) EnsureFresh(kind store.Kind, key string) {
	o.start(newTarget(kind, key, ""))
}

// EnsureFreshPeriod is EnsureFresh for one period of a quote's series.
func (o *Orchestrator) EnsureFreshPeriod(ticker string, period models.Period) {
	o.start(newTarget(store.KindQuote, ticker, period))
}

// EnsureFreshAll calls EnsureFresh for every key.
func (o *Orchestrator) EnsureFreshAll(kind store.Kind, keys []string) {
	for _, k := range keys {
		o.EnsureFresh(kind, k)
	}
}

// Refresh fetches (kind, key), joining a running fetch if there is one, and
// waits for the result. Cancelling ctx stops the wait, not the fetch.
func (o *Orchestrator) Refresh(ctx context.Context, kind store.Kind, key string) error {
	ch := o.start(newTarget(kind, key, ""))
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reload is Refresh without joining: it always issues a new request, so the
// answer reflects server state from after the call. A fetch that was already
// running still completes, but its answer is dropped if it lands after ours.
func (o *Orchestrator) Reload(ctx context.Context, kind store.Kind, key string) error {
	ch := o.restart(newTarget(kind, key, ""))
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RefreshPeriod is Refresh for one period of a quote's series.
func (o *Orchestrator) RefreshPeriod(ctx context.Context, ticker string, period models.Period) error {
	ch := o.start(newTarget(store.KindQuote, ticker, period))
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InFlight reports whether a fetch for (kind, key) is running.
func (o *Orchestrator) InFlight(kind store.Kind, key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active[newTarget(kind, key, "").id()] > 0
}

// restart detaches any running fetch for t so the next call starts a new one.
func (o *Orchestrator) restart(t target) <-chan singleflight.Result {
	o.group.Forget(t.id())
	return o.start(t)
}

func (o *Orchestrator) start(t target) <-chan singleflight.Result {
	id := t.id()
	// DoChan registers the call before returning, so a second call made
	// right after this one always joins it.
	return o.group.DoChan(id, func() (any, error) {
		o.mu.Lock()
		o.seq++
		seq := o.seq
		o.active[id]++
		o.mu.Unlock()
		defer func() {
			o.mu.Lock()
			o.active[id]--
			if o.active[id] == 0 {
				delete(o.active, id)
			}
			o.mu.Unlock()
		}()

		return nil, o.run(t, seq)
	})
}

func (o *Orchestrator) run(t target, seq uint64) error {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	start := time.Now()
	err := o.fetch(ctx, t, seq)

	var evt *zerolog.Event
	if err != nil {
		evt = o.logger.Warn().Err(err)
	} else {
		evt = o.logger.Debug()
	}
	evt.Str("kind", string(t.kind)).
		Str("key", t.key).
		Str("period", string(t.period)).
		Dur("elapsed", time.Since(start)).
		Msg("fetch completed")

	if err != nil && o.sink != nil {
		o.sink(t.kind, t.key, err)
	}
	return err
}

// commit runs write unless a fetch for the same target that started later
// has already been written. It reports whether write ran.
func (o *Orchestrator) commit(t target, seq uint64, write func()) bool {
	id := t.id()
	o.commitMu.Lock()
	defer o.commitMu.Unlock()
	if seq < o.applied[id] {
		o.logger.Debug().Str("kind", string(t.kind)).Str("key", t.key).Msg("dropped superseded fetch")
		return false
	}
	o.applied[id] = seq
	write()
	return true
}

// fetch performs one HTTP call and writes the answer. On error nothing is written.
func (o *Orchestrator) fetch(ctx context.Context, t target, seq uint64) error {
	switch t.kind {
	case store.KindQuote:
		if t.period != "" {
			q, err := o.api.GetQuotePeriod(ctx, t.key, t.period)
			if err != nil {
				return err
			}
			if q.Ticker == "" {
				q.Ticker = t.key
			}
			o.commit(t, seq, func() { o.store.MergeQuotePeriod(q, t.period) })
			return nil
		}
		q, err := o.api.GetQuote(ctx, t.key)
		if err != nil {
			return err
		}
		if q.Ticker == "" {
			q.Ticker = t.key
		}
		o.commit(t, seq, func() { o.store.UpsertQuote(q) })

	case store.KindHolding:
		holdings, err := o.api.GetPortfolio(ctx)
		if err != nil {
			return err
		}
		o.commit(t, seq, func() { o.store.ReplaceHoldings(holdings) })

	case store.KindAccount:
		acct, err := o.api.GetBalance(ctx)
		if err != nil {
			return err
		}
		o.commit(t, seq, func() { o.store.SetAccount(acct) })

	case store.KindWatchlist:
		entries, err := o.api.GetWatchlist(ctx)
		if err != nil {
			return err
		}
		o.commit(t, seq, func() { o.store.ReplaceWatchlist(entries) })

	default:
		return &UnknownKindError{Kind: t.kind}
	}
	return nil
}
