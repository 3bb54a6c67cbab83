package order

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/atharvakonge/paper-brokerage/internal/fetch"
	"github.com/atharvakonge/paper-brokerage/internal/models"
	"github.com/atharvakonge/paper-brokerage/internal/store"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// fakeLedger plays the price service: it keeps the server-side truth and
// serves both the read and the write endpoints.
type fakeLedger struct {
	mu       sync.Mutex
	cash     decimal.Decimal
	holdings map[string]models.Holding
	prices   map[string]decimal.Decimal

	holdingErr error
	balanceErr error

	// AdjustHolding for blockTicker signals entered and waits for release.
	blockTicker string
	entered     chan struct{}
	release     chan struct{}

	// The next GetPortfolio after holdNextPortfolio reads its answer, closes
	// portfolioRead and waits for portfolioGate.
	portfolioRead chan struct{}
	portfolioGate chan struct{}

	holdingCalls atomic.Int32
	balanceCalls atomic.Int32
	reads        atomic.Int32
}

func newFakeLedger(cash string) *fakeLedger {
	return &fakeLedger{
		cash:     dec(cash),
		holdings: make(map[string]models.Holding),
		prices:   make(map[string]decimal.Decimal),
	}
}

func (f *fakeLedger) calls() int32 {
	return f.holdingCalls.Load() + f.balanceCalls.Load() + f.reads.Load()
}

func (f *fakeLedger) AdjustHolding(ctx context.Context, ticker string, side models.Side, price decimal.Decimal) (models.Holding, error) {
	f.holdingCalls.Add(1)
	if ticker == f.blockTicker && f.release != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	if f.holdingErr != nil {
		return models.Holding{}, f.holdingErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	h := f.holdings[ticker]
	h.Ticker = ticker
	if side == models.SideSell {
		if h.ShareCount == 0 {
			return models.Holding{}, errors.New("no shares to sell")
		}
		h.ShareCount--
	} else {
		h.ShareCount++
	}
	h.Basis = price
	f.holdings[ticker] = h
	return h, nil
}

func (f *fakeLedger) AdjustBalance(ctx context.Context, amount decimal.Decimal, operator string) (models.UserAccount, error) {
	f.balanceCalls.Add(1)
	if f.balanceErr != nil {
		return models.UserAccount{}, f.balanceErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if operator == "subtract" {
		f.cash = f.cash.Sub(amount)
	} else {
		f.cash = f.cash.Add(amount)
	}
	return models.UserAccount{ID: 1, CashBalance: f.cash}, nil
}

func (f *fakeLedger) GetQuote(ctx context.Context, ticker string) (models.Quote, error) {
	f.reads.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.prices[ticker]
	if !ok {
		return models.Quote{}, errors.New("unknown ticker")
	}
	return models.Quote{Ticker: ticker, CurrentPrice: decimal.NewNullDecimal(p)}, nil
}

func (f *fakeLedger) GetQuotePeriod(ctx context.Context, ticker string, period models.Period) (models.Quote, error) {
	return f.GetQuote(ctx, ticker)
}

// holdNextPortfolio makes the next portfolio read answer with the holdings
// as they are now but not return until release is called.
func (f *fakeLedger) holdNextPortfolio() (read <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.portfolioRead = make(chan struct{})
	f.portfolioGate = make(chan struct{})
	gate := f.portfolioGate
	return f.portfolioRead, func() { close(gate) }
}

func (f *fakeLedger) GetPortfolio(ctx context.Context) ([]models.Holding, error) {
	f.reads.Add(1)
	f.mu.Lock()
	out := make([]models.Holding, 0, len(f.holdings))
	for _, h := range f.holdings {
		out = append(out, h)
	}
	read, gate := f.portfolioRead, f.portfolioGate
	f.portfolioRead, f.portfolioGate = nil, nil
	f.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	if gate != nil {
		close(read)
		<-gate
	}
	return out, nil
}

func (f *fakeLedger) GetBalance(ctx context.Context) (models.UserAccount, error) {
	f.reads.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return models.UserAccount{ID: 1, CashBalance: f.cash}, nil
}

func (f *fakeLedger) GetWatchlist(ctx context.Context) ([]models.WatchlistEntry, error) {
	f.reads.Add(1)
	return nil, nil
}

// harness wires a coordinator to a fake ledger through the real store and
// fetch orchestrator.
type harness struct {
	c       *Coordinator
	store   *store.Store
	fetcher *fetch.Orchestrator
	ledger  *fakeLedger
}

func newHarness(t testing.TB, ledger *fakeLedger, opts ...Option) *harness {
	t.Helper()
	return newHarnessWithStore(t, ledger, store.New(), opts...)
}

func newHarnessWithStore(t testing.TB, ledger *fakeLedger, st *store.Store, opts ...Option) *harness {
	t.Helper()
	fetcher := fetch.New(ledger, st)
	c := New(ledger, fetcher, st, opts...)
	c.Start()
	t.Cleanup(c.Stop)
	return &harness{c: c, store: st, fetcher: fetcher, ledger: ledger}
}

// seedQuote puts a fresh quote in both the store and the server.
func (h *harness) seedQuote(ticker, price string) {
	h.ledger.mu.Lock()
	h.ledger.prices[ticker] = dec(price)
	h.ledger.mu.Unlock()
	h.store.UpsertQuote(models.Quote{Ticker: ticker, CurrentPrice: decimal.NewNullDecimal(dec(price))})
}

// seedHolding puts a holding in both the store and the server.
func (h *harness) seedHolding(ticker string, shares int, basis string) {
	hold := models.Holding{Ticker: ticker, ShareCount: shares, Basis: dec(basis)}
	h.ledger.mu.Lock()
	h.ledger.holdings[ticker] = hold
	h.ledger.mu.Unlock()
	h.store.UpsertHolding(hold)
}

func (h *harness) seedCash(cash string) {
	h.store.SetAccount(models.UserAccount{ID: 1, CashBalance: dec(cash)})
}

func states(ts []Transition) []State {
	out := make([]State, len(ts))
	for i, t := range ts {
		out[i] = t.To
	}
	return out
}
