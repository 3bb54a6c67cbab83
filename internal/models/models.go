package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Period identifies one chart time range of a quote's price series.
type Period string

const (
	PeriodDaily    Period = "daily"
	PeriodWeekly   Period = "weekly"
	PeriodOneMonth Period = "oneMonth"
	PeriodYearly   Period = "yearly"
	PeriodAllTime  Period = "allTime"
)

// Periods lists every period in display order (1D, 1W, 1M, 1Y, ALL).
var Periods = []Period{PeriodDaily, PeriodWeekly, PeriodOneMonth, PeriodYearly, PeriodAllTime}

// ParsePeriod accepts both the short name ("weekly") and the wire key ("weeklyPrices").
func ParsePeriod(s string) (Period, bool) {
	s = strings.TrimSuffix(s, "Prices")
	for _, p := range Periods {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

// WireKey is the JSON field the price service uses for this period's series.
func (p Period) WireKey() string {
	return string(p) + "Prices"
}

// Quote represents a ticker's latest price and its chart series
type Quote struct {
	Ticker       string                       `json:"ticker"`
	ShortName    string                       `json:"shortName"`
	CurrentPrice decimal.NullDecimal          `json:"currentPrice"`
	PercentText  string                       `json:"percentText"`
	LogoURL      string                       `json:"logoUrl"`
	LogoFallback string                       `json:"logoFallback"`
	Series       map[Period][]decimal.Decimal `json:"series"`
	FetchedAt    time.Time                    `json:"fetchedAt"`
}

// Price returns the current price when the quote carries a usable one.
func (q Quote) Price() (decimal.Decimal, bool) {
	if !q.CurrentPrice.Valid || !q.CurrentPrice.Decimal.IsPositive() {
		return decimal.Zero, false
	}
	return q.CurrentPrice.Decimal, true
}

// Clone returns a copy that shares no series slices with q.
func (q Quote) Clone() Quote {
	c := q
	if q.Series != nil {
		c.Series = make(map[Period][]decimal.Decimal, len(q.Series))
		for p, s := range q.Series {
			c.Series[p] = append([]decimal.Decimal(nil), s...)
		}
	}
	return c
}

// Holding represents the shares of one ticker owned by the user
type Holding struct {
	Ticker     string          `json:"ticker"`
	ShareCount int             `json:"share_count"`
	Basis      decimal.Decimal `json:"basis"` // price of the most recent executed trade
}

// WatchlistEntry marks a ticker as watched.
type WatchlistEntry struct {
	Ticker string `json:"ticker"`
}

// UserAccount carries the authoritative cash balance.
type UserAccount struct {
	ID          int             `json:"id,omitempty"`
	Username    string          `json:"username,omitempty"`
	CashBalance decimal.Decimal `json:"cash_balance"`
}

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// HoldingOperator is the path segment of the holding adjustment call.
func (s Side) HoldingOperator() string {
	if s == SideSell {
		return "subtract"
	}
	return "add"
}

// BalanceOperator is the path segment of the balance adjustment call.
// Buying spends cash, selling returns it.
func (s Side) BalanceOperator() string {
	if s == SideSell {
		return "add"
	}
	return "subtract"
}

// OrderRequest - what the UI sends to trade one share
type OrderRequest struct {
	Ticker string `json:"ticker" binding:"required"`
	Side   Side   `json:"side" binding:"required,oneof=buy sell"`
}

// NormalizeTicker upper-cases and trims a ticker symbol.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}
