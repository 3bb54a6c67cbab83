package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/atharvakonge/paper-brokerage/internal/api"
	"github.com/atharvakonge/paper-brokerage/internal/brokerage"
	"github.com/atharvakonge/paper-brokerage/internal/db"
	"github.com/atharvakonge/paper-brokerage/internal/models"
	"github.com/atharvakonge/paper-brokerage/internal/order"
	"github.com/atharvakonge/paper-brokerage/internal/store"
	"github.com/atharvakonge/paper-brokerage/internal/valuation"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeCore records refresh requests and answers from canned data.
type fakeCore struct {
	mu        sync.Mutex
	refreshed []string

	charts     map[string]brokerage.Chart
	valuations map[string]valuation.Snapshot
	entities   map[string]any
	result     order.Result
	submitted  []models.OrderRequest
	orders     []order.Order
	journal    []db.Transition
	journalErr error
	watchlist  []models.WatchlistEntry
	watchErr   error
	changes    chan store.Change
}

func newFakeCore() *fakeCore {
	return &fakeCore{
		charts:     map[string]brokerage.Chart{},
		valuations: map[string]valuation.Snapshot{},
		entities:   map[string]any{},
		changes:    make(chan store.Change, 8),
	}
}

func (f *fakeCore) note(s string) {
	f.mu.Lock()
	f.refreshed = append(f.refreshed, s)
	f.mu.Unlock()
}

func (f *fakeCore) EnsureFresh(kind store.Kind, key string) { f.note(string(kind) + ":" + key) }
func (f *fakeCore) EnsureFreshPeriod(ticker string, period models.Period) {
	f.note("quote:" + ticker + ":" + string(period))
}
func (f *fakeCore) RefreshAll() { f.note("all") }

func (f *fakeCore) Get(kind store.Kind, key string) (any, bool) {
	e, ok := f.entities[string(kind)+":"+key]
	return e, ok
}

func (f *fakeCore) Chart(ticker string, period models.Period) (brokerage.Chart, bool) {
	c, ok := f.charts[ticker]
	c.Period = period
	return c, ok
}

func (f *fakeCore) SubmitOrder(ctx context.Context, ticker string, side models.Side) order.Result {
	f.submitted = append(f.submitted, models.OrderRequest{Ticker: ticker, Side: side})
	return f.result
}

func (f *fakeCore) Orders(limit int) []order.Order {
	if limit < len(f.orders) {
		return f.orders[:limit]
	}
	return f.orders
}

func (f *fakeCore) JournalEntries(ctx context.Context, limit int) ([]db.Transition, error) {
	return f.journal, f.journalErr
}

func (f *fakeCore) Valuation(ticker string) (valuation.Snapshot, bool) {
	v, ok := f.valuations[ticker]
	return v, ok
}

func (f *fakeCore) PortfolioSummary() valuation.Summary {
	return valuation.Summary{CashBalance: decimal.NewFromInt(100), CashKnown: true}
}

func (f *fakeCore) Watchlist() []models.WatchlistEntry { return f.watchlist }

func (f *fakeCore) AddToWatchlist(ctx context.Context, ticker string) error {
	if f.watchErr != nil {
		return f.watchErr
	}
	if ticker == "" {
		return brokerage.ErrEmptyTicker
	}
	f.watchlist = append(f.watchlist, models.WatchlistEntry{Ticker: ticker})
	return nil
}

func (f *fakeCore) RemoveFromWatchlist(ctx context.Context, ticker string) error {
	if f.watchErr != nil {
		return f.watchErr
	}
	f.watchlist = nil
	return nil
}

func (f *fakeCore) Subscribe(buffer int) (<-chan store.Change, func()) {
	return f.changes, func() {}
}

func setupRouter(core Core) *gin.Engine {
	r := gin.New()
	New(core, zerolog.Nop()).Register(r)
	return r
}

func perform(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	w := perform(setupRouter(newFakeCore()), http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestGetQuote(t *testing.T) {
	core := newFakeCore()
	core.charts["AAPL"] = brokerage.Chart{
		Quote: models.Quote{
			Ticker: "AAPL",
			Series: map[models.Period][]decimal.Decimal{models.PeriodDaily: {decimal.NewFromInt(1)}},
		},
		Labels: []string{"9:30 AM"},
	}
	r := setupRouter(core)

	t.Run("cached", func(t *testing.T) {
		w := perform(r, http.MethodGet, "/api/quotes/aapl", "")
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}
		body := decodeBody(t, w)
		if labels, _ := body["labels"].([]any); len(labels) != 1 {
			t.Errorf("Expected one label, got %v", body["labels"])
		}
	})

	t.Run("missing period triggers period fetch", func(t *testing.T) {
		w := perform(r, http.MethodGet, "/api/quotes/AAPL?period=weeklyPrices", "")
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}
		core.mu.Lock()
		defer core.mu.Unlock()
		last := core.refreshed[len(core.refreshed)-1]
		if last != "quote:AAPL:weekly" {
			t.Errorf("Expected weekly period refresh, got %q", last)
		}
	})

	t.Run("not cached yet", func(t *testing.T) {
		w := perform(r, http.MethodGet, "/api/quotes/MSFT", "")
		if w.Code != http.StatusAccepted {
			t.Errorf("Expected 202, got %d", w.Code)
		}
	})

	t.Run("unknown period", func(t *testing.T) {
		w := perform(r, http.MethodGet, "/api/quotes/AAPL?period=decade", "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", w.Code)
		}
	})
}

func TestGetEntity(t *testing.T) {
	core := newFakeCore()
	core.entities["account:"] = models.UserAccount{CashBalance: decimal.NewFromInt(5)}
	r := setupRouter(core)

	if w := perform(r, http.MethodGet, "/api/entities/account", ""); w.Code != http.StatusOK {
		t.Errorf("Expected 200 for cached account, got %d", w.Code)
	}
	if w := perform(r, http.MethodGet, "/api/entities/holding/AAPL", ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for absent holding, got %d", w.Code)
	}
	if w := perform(r, http.MethodGet, "/api/entities/bond/X", ""); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown kind, got %d", w.Code)
	}
}

func TestSubmitOrder(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		result order.Result
		status int
		reason string
	}{
		{
			name:   "success",
			body:   `{"ticker":"AAPL","side":"buy"}`,
			result: order.Result{Success: true, Order: order.Order{State: order.StateIdle}},
			status: http.StatusOK,
		},
		{
			name:   "insufficient funds",
			body:   `{"ticker":"AAPL","side":"buy"}`,
			result: rejected(order.ReasonInsufficientFunds, nil),
			status: http.StatusBadRequest,
			reason: "InsufficientFunds",
		},
		{
			name:   "in flight",
			body:   `{"ticker":"AAPL","side":"sell"}`,
			result: rejected(order.ReasonOrderInFlight, nil),
			status: http.StatusConflict,
			reason: "OrderInFlight",
		},
		{
			name:   "partial failure",
			body:   `{"ticker":"AAPL","side":"buy"}`,
			result: rejected(order.ReasonBalanceUpdateFailed, &api.APIError{StatusCode: 500, Message: "boom"}),
			status: http.StatusBadGateway,
			reason: "BalanceUpdateFailed",
		},
		{
			name:   "stopped",
			body:   `{"ticker":"AAPL","side":"buy"}`,
			result: order.Result{Err: order.ErrStopped},
			status: http.StatusServiceUnavailable,
		},
		{
			name:   "bad side",
			body:   `{"ticker":"AAPL","side":"short"}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "missing ticker",
			body:   `{"side":"buy"}`,
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core := newFakeCore()
			core.result = tt.result
			w := perform(setupRouter(core), http.MethodPost, "/api/orders", tt.body)

			if w.Code != tt.status {
				t.Fatalf("Expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			if tt.reason != "" {
				if got := decodeBody(t, w)["reason"]; got != tt.reason {
					t.Errorf("Expected reason %s, got %v", tt.reason, got)
				}
			}
		})
	}
}

func rejected(reason order.Reason, cause error) order.Result {
	err := &order.RejectionError{Reason: reason, Err: cause}
	return order.Result{
		Order: order.Order{State: order.StateRejected, Reason: reason},
		Err:   err,
	}
}

func TestGetOrders(t *testing.T) {
	core := newFakeCore()
	core.orders = []order.Order{{Ticker: "AAPL"}, {Ticker: "MSFT"}}
	core.journal = []db.Transition{{Ticker: "AAPL", To: "Idle"}}
	r := setupRouter(core)

	body := decodeBody(t, perform(r, http.MethodGet, "/api/orders?limit=1", ""))
	if body["count"] != float64(1) {
		t.Errorf("Expected count 1, got %v", body["count"])
	}

	body = decodeBody(t, perform(r, http.MethodGet, "/api/orders?source=journal", ""))
	if body["count"] != float64(1) {
		t.Errorf("Expected 1 journal entry, got %v", body["count"])
	}

	core.journalErr = errors.New("disk full")
	if w := perform(r, http.MethodGet, "/api/orders?source=journal", ""); w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", w.Code)
	}
}

func TestPortfolioAndValuation(t *testing.T) {
	core := newFakeCore()
	core.valuations["AAPL"] = valuation.Snapshot{Ticker: "AAPL", ShareCount: 1}
	r := setupRouter(core)

	if w := perform(r, http.MethodGet, "/api/portfolio", ""); w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	core.mu.Lock()
	if len(core.refreshed) == 0 || core.refreshed[0] != "all" {
		t.Errorf("Expected portfolio request to refresh everything, got %v", core.refreshed)
	}
	core.mu.Unlock()

	if w := perform(r, http.MethodGet, "/api/valuation/aapl", ""); w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	if w := perform(r, http.MethodGet, "/api/valuation/TSLA", ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestWatchlist(t *testing.T) {
	core := newFakeCore()
	r := setupRouter(core)

	if w := perform(r, http.MethodPost, "/api/watchlist/msft", ""); w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", w.Code)
	}
	body := decodeBody(t, perform(r, http.MethodGet, "/api/watchlist", ""))
	if body["count"] != float64(1) {
		t.Errorf("Expected 1 entry, got %v", body["count"])
	}
	if w := perform(r, http.MethodDelete, "/api/watchlist/MSFT", ""); w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}

	core.watchErr = &api.APIError{StatusCode: http.StatusNotFound, Message: "Stock not found"}
	if w := perform(r, http.MethodPost, "/api/watchlist/ZZZZ", ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected upstream 404 to pass through, got %d", w.Code)
	}
	core.watchErr = errors.New("connection refused")
	if w := perform(r, http.MethodDelete, "/api/watchlist/MSFT", ""); w.Code != http.StatusBadGateway {
		t.Errorf("Expected 502, got %d", w.Code)
	}
}

func TestHandleUpdates(t *testing.T) {
	core := newFakeCore()
	srv := httptest.NewServer(setupRouter(core))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/updates"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	core.changes <- store.Change{Kind: store.KindHolding, Key: "AAPL"}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var u Update
	if err := conn.ReadJSON(&u); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if u.Kind != store.KindHolding || u.Key != "AAPL" {
		t.Errorf("Expected holding AAPL update, got %+v", u)
	}
}
