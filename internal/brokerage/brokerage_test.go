package brokerage

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atharvakonge/paper-brokerage/internal/api"
	"github.com/atharvakonge/paper-brokerage/internal/models"
	"github.com/atharvakonge/paper-brokerage/internal/order"
	"github.com/atharvakonge/paper-brokerage/internal/store"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// priceService is an in-memory stand-in for the remote price and ledger API.
type priceService struct {
	mu        sync.Mutex
	cash      decimal.Decimal
	prices    map[string]decimal.Decimal
	holdings  map[string]models.Holding
	watchlist map[string]bool
	failPaths map[string]int

	requests atomic.Int32
}

func newPriceService(t *testing.T) (*priceService, *httptest.Server) {
	t.Helper()
	ps := &priceService{
		cash:      dec("100.00"),
		prices:    map[string]decimal.Decimal{"AAPL": dec("50.00"), "MSFT": dec("20.00")},
		holdings:  map[string]models.Holding{},
		watchlist: map[string]bool{},
		failPaths: map[string]int{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /quote/{ticker}", ps.quote)
	mux.HandleFunc("GET /portfolio", ps.portfolio)
	mux.HandleFunc("POST /portfolio/{ticker}/{op}", ps.adjustHolding)
	mux.HandleFunc("GET /balance", ps.balance)
	mux.HandleFunc("POST /balance/{amount}/{op}", ps.adjustBalance)
	mux.HandleFunc("GET /watchlist", ps.getWatchlist)
	mux.HandleFunc("POST /watchlist/{ticker}", ps.addWatch)
	mux.HandleFunc("DELETE /watchlist/{ticker}", ps.removeWatch)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ps.requests.Add(1)
		ps.mu.Lock()
		status := ps.failPaths[r.Method+" "+r.URL.Path]
		ps.mu.Unlock()
		if status != 0 {
			writeJSON(w, status, map[string]string{"error": "injected failure"})
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return ps, srv
}

func (ps *priceService) fail(method, path string, status int) {
	ps.mu.Lock()
	ps.failPaths[method+" "+path] = status
	ps.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (ps *priceService) quote(w http.ResponseWriter, r *http.Request) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ticker := r.PathValue("ticker")
	price, ok := ps.prices[ticker]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Stock not found"})
		return
	}
	body := map[string]any{
		"ticker":       ticker,
		"shortName":    ticker + " Inc.",
		"currentPrice": price,
	}
	switch r.URL.Query().Get("period") {
	case "":
		body["dailyPrices"] = []decimal.Decimal{price, price, price}
		body["weeklyPrices"] = []decimal.Decimal{price, price, price, price, price}
	case "yearly":
		body["yearlyPrices"] = []decimal.Decimal{price, price}
	}
	writeJSON(w, http.StatusOK, map[string]any{"stock": body})
}

func (ps *priceService) portfolio(w http.ResponseWriter, r *http.Request) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	out := []models.Holding{}
	for _, h := range ps.holdings {
		out = append(out, h)
	}
	writeJSON(w, http.StatusOK, map[string]any{"portfolio": out})
}

func (ps *priceService) adjustHolding(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Price decimal.Decimal `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ticker := r.PathValue("ticker")
	h := ps.holdings[ticker]
	h.Ticker = ticker
	if r.PathValue("op") == "subtract" {
		if h.ShareCount == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no shares"})
			return
		}
		h.ShareCount--
	} else {
		h.ShareCount++
	}
	h.Basis = req.Price
	ps.holdings[ticker] = h
	writeJSON(w, http.StatusOK, h)
}

func (ps *priceService) balance(w http.ResponseWriter, r *http.Request) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"user": models.UserAccount{ID: 1, Username: "demo", CashBalance: ps.cash}})
}

func (ps *priceService) adjustBalance(w http.ResponseWriter, r *http.Request) {
	amount, err := decimal.NewFromString(r.PathValue("amount"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad amount"})
		return
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if r.PathValue("op") == "subtract" {
		ps.cash = ps.cash.Sub(amount)
	} else {
		ps.cash = ps.cash.Add(amount)
	}
	writeJSON(w, http.StatusOK, models.UserAccount{ID: 1, Username: "demo", CashBalance: ps.cash})
}

func (ps *priceService) getWatchlist(w http.ResponseWriter, r *http.Request) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	out := []models.WatchlistEntry{}
	for t := range ps.watchlist {
		out = append(out, models.WatchlistEntry{Ticker: t})
	}
	writeJSON(w, http.StatusOK, out)
}

func (ps *priceService) addWatch(w http.ResponseWriter, r *http.Request) {
	ps.mu.Lock()
	ps.watchlist[r.PathValue("ticker")] = true
	ps.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]string{"message": "added"})
}

func (ps *priceService) removeWatch(w http.ResponseWriter, r *http.Request) {
	ps.mu.Lock()
	delete(ps.watchlist, r.PathValue("ticker"))
	ps.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "removed"})
}

var testNow = time.Date(2026, 10, 16, 15, 0, 0, 0, time.UTC)

func newBrokerage(t *testing.T, baseURL string) *Brokerage {
	t.Helper()
	b := New(api.NewClient(baseURL), Options{
		Clock: func() time.Time { return testNow },
	})
	b.Start()
	t.Cleanup(b.Stop)
	return b
}

func TestBuyThenValue(t *testing.T) {
	_, srv := newPriceService(t)
	b := newBrokerage(t, srv.URL)
	ctx := context.Background()

	for _, step := range []struct {
		kind store.Kind
		key  string
	}{
		{store.KindAccount, ""},
		{store.KindQuote, "AAPL"},
		{store.KindHolding, ""},
	} {
		if err := b.Refresh(ctx, step.kind, step.key); err != nil {
			t.Fatalf("Refresh %s failed: %v", step.kind, err)
		}
	}

	res := b.SubmitOrder(ctx, "AAPL", models.SideBuy)
	if !res.Success {
		t.Fatalf("Expected buy to succeed, got %v", res.Err)
	}

	v, ok := b.Valuation("AAPL")
	if !ok {
		t.Fatal("Expected valuation for AAPL")
	}
	if v.ShareCount != 1 || !v.MarketValue.Equal(dec("50")) || !v.ReturnPercent.IsZero() {
		t.Errorf("Unexpected valuation %+v", v)
	}

	sum := b.PortfolioSummary()
	if !sum.CashBalance.Equal(dec("50")) {
		t.Errorf("Expected cash 50, got %s", sum.CashBalance)
	}
	if !sum.AccountValue.Equal(dec("100")) {
		t.Errorf("Expected account value 100, got %s", sum.AccountValue)
	}
	if got := b.Orders(0); len(got) != 1 || got[0].State != order.StateIdle {
		t.Errorf("Expected one finished order in history, got %+v", got)
	}
}

func TestSubmitOrder_BalanceFailureReconciles(t *testing.T) {
	ps, srv := newPriceService(t)
	b := newBrokerage(t, srv.URL)
	ctx := context.Background()
	_ = b.Refresh(ctx, store.KindAccount, "")
	_ = b.Refresh(ctx, store.KindQuote, "AAPL")

	ps.fail(http.MethodPost, "/balance/50.00/subtract", http.StatusBadGateway)

	res := b.SubmitOrder(ctx, "AAPL", models.SideBuy)
	if res.Reason() != order.ReasonBalanceUpdateFailed {
		t.Fatalf("Expected BalanceUpdateFailed, got %s (%v)", res.Reason(), res.Err)
	}
	var apiErr *api.APIError
	if !errors.As(res.Err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway {
		t.Errorf("Expected wrapped 502 APIError, got %v", res.Err)
	}
	if !api.IsNetworkError(res.Err) {
		t.Error("Expected partial failure to classify as a network error")
	}

	got, ok := b.Get(store.KindHolding, "AAPL")
	if !ok || got.(models.Holding).ShareCount != 1 {
		t.Errorf("Expected server holding to persist, got %+v", got)
	}
	acct, _ := b.Get(store.KindAccount, "")
	if !acct.(models.UserAccount).CashBalance.Equal(dec("100")) {
		t.Errorf("Expected cash to stay at the server's 100, got %s", acct.(models.UserAccount).CashBalance)
	}
}

func TestChart(t *testing.T) {
	_, srv := newPriceService(t)
	b := newBrokerage(t, srv.URL)

	if _, ok := b.Chart("AAPL", models.PeriodDaily); ok {
		t.Fatal("Expected no chart before any fetch")
	}

	if err := b.Refresh(context.Background(), store.KindQuote, "AAPL"); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if err := b.fetcher.RefreshPeriod(context.Background(), "AAPL", models.PeriodYearly); err != nil {
		t.Fatalf("RefreshPeriod failed: %v", err)
	}

	tests := []struct {
		period models.Period
		labels []string
	}{
		{models.PeriodDaily, []string{"9:30 AM", "12:45 PM", "4:00 PM"}},
		{models.PeriodWeekly, []string{"Mon", "Tue", "Wed", "Thu", "Fri"}},
		{models.PeriodYearly, []string{"Sep", "Oct"}},
		{models.PeriodAllTime, []string{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			c, ok := b.Chart("AAPL", tt.period)
			if !ok {
				t.Fatal("Expected chart")
			}
			if len(c.Labels) != len(c.Prices) {
				t.Errorf("Expected one label per price, got %d labels for %d prices", len(c.Labels), len(c.Prices))
			}
			for i := range tt.labels {
				if i >= len(c.Labels) || c.Labels[i] != tt.labels[i] {
					t.Errorf("Expected labels %v, got %v", tt.labels, c.Labels)
					break
				}
			}
		})
	}
}

func TestWatchlist(t *testing.T) {
	ps, srv := newPriceService(t)
	b := newBrokerage(t, srv.URL)
	ctx := context.Background()

	if err := b.AddToWatchlist(ctx, "msft"); err != nil {
		t.Fatalf("AddToWatchlist failed: %v", err)
	}
	if got := b.Watchlist(); len(got) != 1 || got[0].Ticker != "MSFT" {
		t.Fatalf("Expected [MSFT], got %v", got)
	}

	ps.fail(http.MethodDelete, "/watchlist/MSFT", http.StatusInternalServerError)
	if err := b.RemoveFromWatchlist(ctx, "MSFT"); err == nil {
		t.Fatal("Expected remove to fail")
	}
	if len(b.Watchlist()) != 1 {
		t.Error("Failed delete must leave the entry in place")
	}

	ps.fail(http.MethodDelete, "/watchlist/MSFT", 0)
	if err := b.RemoveFromWatchlist(ctx, "MSFT"); err != nil {
		t.Fatalf("RemoveFromWatchlist failed: %v", err)
	}
	if len(b.Watchlist()) != 0 {
		t.Error("Expected watchlist empty after confirmed delete")
	}

	if err := b.AddToWatchlist(ctx, "  "); !errors.Is(err, ErrEmptyTicker) {
		t.Errorf("Expected ErrEmptyTicker, got %v", err)
	}
}

func TestSubscribe(t *testing.T) {
	_, srv := newPriceService(t)
	b := newBrokerage(t, srv.URL)

	ch, cancel := b.Subscribe(8)
	defer cancel()

	if err := b.Refresh(context.Background(), store.KindAccount, ""); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	select {
	case c := <-ch:
		if c.Kind != store.KindAccount {
			t.Errorf("Expected account change, got %+v", c)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected a change event")
	}
}

func TestRefreshAll_FailuresReachErrorSink(t *testing.T) {
	ps, srv := newPriceService(t)
	ps.fail(http.MethodGet, "/balance", http.StatusServiceUnavailable)

	var mu sync.Mutex
	failed := map[store.Kind]int{}
	b := New(api.NewClient(srv.URL), Options{
		ErrorSink: func(kind store.Kind, key string, err error) {
			mu.Lock()
			failed[kind]++
			mu.Unlock()
		},
	})

	b.RefreshAll()
	ctx := context.Background()
	if err := b.Refresh(ctx, store.KindAccount, ""); err == nil {
		t.Fatal("Expected balance refresh to fail")
	}
	_ = b.Refresh(ctx, store.KindHolding, "")
	_ = b.Refresh(ctx, store.KindWatchlist, "")

	if _, ok := b.Get(store.KindAccount, ""); ok {
		t.Error("Failed fetch must not write the account")
	}
	mu.Lock()
	defer mu.Unlock()
	if failed[store.KindAccount] == 0 {
		t.Error("Expected account failure in the error sink")
	}
	if failed[store.KindHolding] != 0 {
		t.Error("Portfolio fetch should not have failed")
	}
}
