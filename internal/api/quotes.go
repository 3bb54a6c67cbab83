package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/atharvakonge/paper-brokerage/internal/models"
)

// quoteWire is the quote as the price service sends it: one *Prices key per period.
type quoteWire struct {
	Ticker         string              `json:"ticker"`
	ShortName      string              `json:"shortName"`
	CurrentPrice   decimal.NullDecimal `json:"currentPrice"`
	PercentText    string              `json:"percentText"`
	LogoURL        string              `json:"logoUrl"`
	LogoFallback   string              `json:"logoFallback"`
	DailyPrices    []decimal.Decimal   `json:"dailyPrices"`
	WeeklyPrices   []decimal.Decimal   `json:"weeklyPrices"`
	OneMonthPrices []decimal.Decimal   `json:"oneMonthPrices"`
	YearlyPrices   []decimal.Decimal   `json:"yearlyPrices"`
	AllTimePrices  []decimal.Decimal   `json:"allTimePrices"`
}

func (w quoteWire) toModel() models.Quote {
	q := models.Quote{
		Ticker:       models.NormalizeTicker(w.Ticker),
		ShortName:    w.ShortName,
		CurrentPrice: w.CurrentPrice,
		PercentText:  w.PercentText,
		LogoURL:      w.LogoURL,
		LogoFallback: w.LogoFallback,
		Series:       make(map[models.Period][]decimal.Decimal),
	}
	// A nil slice means the key was absent; an empty array is a real (empty) series.
	for p, s := range map[models.Period][]decimal.Decimal{
		models.PeriodDaily:    w.DailyPrices,
		models.PeriodWeekly:   w.WeeklyPrices,
		models.PeriodOneMonth: w.OneMonthPrices,
		models.PeriodYearly:   w.YearlyPrices,
		models.PeriodAllTime:  w.AllTimePrices,
	} {
		if s != nil {
			q.Series[p] = s
		}
	}
	return q
}

// decodeQuote accepts a bare quote or one wrapped as {"stock": {...}}.
func decodeQuote(body []byte) (models.Quote, error) {
	var wrapped struct {
		Stock json.RawMessage `json:"stock"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return models.Quote{}, fmt.Errorf("decode quote: %w", err)
	}
	if len(wrapped.Stock) > 0 && string(wrapped.Stock) != "null" {
		body = wrapped.Stock
	}

	var w quoteWire
	if err := json.Unmarshal(body, &w); err != nil {
		return models.Quote{}, fmt.Errorf("decode quote: %w", err)
	}
	return w.toModel(), nil
}

// GetQuote fetches the full quote for a ticker, every period included.
func (c *Client) GetQuote(ctx context.Context, ticker string) (models.Quote, error) {
	return c.getQuote(ctx, ticker, nil)
}

// GetQuotePeriod fetches a quote scoped to one period. The returned record is
// partial: only that period's series is meaningful.
func (c *Client) GetQuotePeriod(ctx context.Context, ticker string, period models.Period) (models.Quote, error) {
	return c.getQuote(ctx, ticker, url.Values{"period": {string(period)}})
}

func (c *Client) getQuote(ctx context.Context, ticker string, query url.Values) (models.Quote, error) {
	ticker = models.NormalizeTicker(ticker)
	body, err := c.get(ctx, "/quote/"+url.PathEscape(ticker), query)
	if err != nil {
		return models.Quote{}, fmt.Errorf("get quote %s: %w", ticker, err)
	}

	q, err := decodeQuote(body)
	if err != nil {
		return models.Quote{}, fmt.Errorf("get quote %s: %w", ticker, err)
	}
	if q.Ticker == "" {
		q.Ticker = ticker
	}
	return q, nil
}
