package brokerage

import (
	"github.com/shopspring/decimal"

	"github.com/atharvakonge/paper-brokerage/internal/models"
	"github.com/atharvakonge/paper-brokerage/internal/valuation"
)

// Chart is a quote with one period's series and its display labels.
type Chart struct {
	Quote  models.Quote      `json:"quote"`
	Period models.Period     `json:"period"`
	Prices []decimal.Decimal `json:"prices"`
	Labels []string          `json:"labels"`
}

// Chart returns the cached quote for ticker with labels for period. Labels
// depend on today's date, so they are built on every call.
func (b *Brokerage) Chart(ticker string, period models.Period) (Chart, bool) {
	q, ok := b.store.Quote(ticker)
	if !ok {
		return Chart{}, false
	}
	prices := q.Series[period]
	if prices == nil {
		prices = []decimal.Decimal{}
	}
	return Chart{
		Quote:  q,
		Period: period,
		Prices: prices,
		Labels: valuation.Labels(period, len(prices), b.now()),
	}, true
}
