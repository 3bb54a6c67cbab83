package valuation

import (
	"github.com/shopspring/decimal"

	"github.com/atharvakonge/paper-brokerage/internal/models"
	"github.com/atharvakonge/paper-brokerage/internal/store"
)

// Snapshot values one holding.
type Snapshot struct {
	Ticker        string          `json:"ticker"`
	ShareCount    int             `json:"share_count"`
	Basis         decimal.Decimal `json:"basis"`
	Price         decimal.Decimal `json:"price"`
	PriceSource   PriceSource     `json:"price_source"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	MarketValue   decimal.Decimal `json:"market_value"`
	GainLoss      decimal.Decimal `json:"gain_loss"`
	ReturnPercent decimal.Decimal `json:"return_percent"`
	Display       Display         `json:"display"`
}

// Display holds the formatted strings shown next to a valuation.
type Display struct {
	Price         string `json:"price"`
	TotalCost     string `json:"total_cost"`
	MarketValue   string `json:"market_value"`
	GainLoss      string `json:"gain_loss"`
	ReturnPercent string `json:"return_percent"`
}

// Summary aggregates every holding with the cash balance.
type Summary struct {
	Holdings      []Snapshot      `json:"holdings"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	MarketValue   decimal.Decimal `json:"market_value"`
	GainLoss      decimal.Decimal `json:"gain_loss"`
	ReturnPercent decimal.Decimal `json:"return_percent"`
	CashBalance   decimal.Decimal `json:"cash_balance"`
	CashKnown     bool            `json:"cash_known"`
	AccountValue  decimal.Decimal `json:"account_value"`
	Display       SummaryDisplay  `json:"display"`
}

// SummaryDisplay holds the formatted aggregate strings.
type SummaryDisplay struct {
	MarketValue   string `json:"market_value"`
	GainLoss      string `json:"gain_loss"`
	ReturnPercent string `json:"return_percent"`
	CashBalance   string `json:"cash_balance"`
	AccountValue  string `json:"account_value"`
	BuyingPower   string `json:"buying_power"`
}

// Value computes the snapshot of one holding.
func Value(h models.Holding, q *models.Quote) Snapshot {
	price, source := Price(h, q)
	s := Snapshot{
		Ticker:        h.Ticker,
		ShareCount:    h.ShareCount,
		Basis:         h.Basis,
		Price:         price,
		PriceSource:   source,
		TotalCost:     TotalCost(h),
		MarketValue:   MarketValue(h, q),
		GainLoss:      GainLoss(h, q),
		ReturnPercent: ReturnPercent(h, q),
	}
	s.Display = Display{
		Price:         FormatUSD(s.Price),
		TotalCost:     FormatUSD(s.TotalCost),
		MarketValue:   FormatUSD(s.MarketValue),
		GainLoss:      FormatUSD(s.GainLoss),
		ReturnPercent: FormatPercent(s.ReturnPercent),
	}
	return s
}

// ForTicker values the snapshot's holding for ticker, if there is one.
func ForTicker(snap store.Snapshot, ticker string) (Snapshot, bool) {
	h, ok := snap.Holding(ticker)
	if !ok {
		return Snapshot{}, false
	}
	return Value(h, quoteFor(snap, h.Ticker)), true
}

// Summarize values every holding with shares and totals them.
func Summarize(snap store.Snapshot) Summary {
	sum := Summary{
		Holdings:    make([]Snapshot, 0, len(snap.Holdings)),
		TotalCost:   decimal.Zero,
		MarketValue: decimal.Zero,
	}
	for _, h := range snap.Holdings {
		if h.ShareCount <= 0 {
			continue
		}
		v := Value(h, quoteFor(snap, h.Ticker))
		sum.Holdings = append(sum.Holdings, v)
		sum.TotalCost = sum.TotalCost.Add(v.TotalCost)
		sum.MarketValue = sum.MarketValue.Add(v.MarketValue)
	}
	sum.GainLoss = sum.MarketValue.Sub(sum.TotalCost)
	sum.ReturnPercent = percent(sum.GainLoss, sum.TotalCost)

	if snap.Account != nil {
		sum.CashBalance = snap.Account.CashBalance
		sum.CashKnown = true
	}
	sum.AccountValue = sum.CashBalance.Add(sum.MarketValue)

	sum.Display = SummaryDisplay{
		MarketValue:   FormatUSD(sum.MarketValue),
		GainLoss:      FormatUSD(sum.GainLoss),
		ReturnPercent: FormatPercent(sum.ReturnPercent),
		CashBalance:   FormatUSD(sum.CashBalance),
		AccountValue:  FormatUSD(sum.AccountValue),
		BuyingPower:   FormatUSD(sum.CashBalance) + " buying power available",
	}
	return sum
}

// AggregatePortfolioValue is the sum of every holding's market value.
func AggregatePortfolioValue(snap store.Snapshot) decimal.Decimal {
	total := decimal.Zero
	for _, h := range snap.Holdings {
		total = total.Add(MarketValue(h, quoteFor(snap, h.Ticker)))
	}
	return total
}

func quoteFor(snap store.Snapshot, ticker string) *models.Quote {
	q, ok := snap.Quotes[ticker]
	if !ok {
		return nil
	}
	return &q
}
