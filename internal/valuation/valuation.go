// Package valuation derives cost basis, market value and returns from a
// store snapshot. Everything here is pure: no I/O, no clock except where a
// caller passes one in.
package valuation

import (
	"github.com/shopspring/decimal"

	"github.com/atharvakonge/paper-brokerage/internal/models"
)

var hundred = decimal.NewFromInt(100)

// PriceSource tells where a valuation's price came from.
type PriceSource string

const (
	SourceQuote PriceSource = "quote"
	SourceBasis PriceSource = "basis"
)

// TotalCost is basis times share count.
func TotalCost(h models.Holding) decimal.Decimal {
	return h.Basis.Mul(decimal.NewFromInt(int64(h.ShareCount)))
}

// Price is the quote's current price, or the holding's basis when the quote
// is missing or carries no price.
func Price(h models.Holding, q *models.Quote) (decimal.Decimal, PriceSource) {
	if q != nil {
		if p, ok := q.Price(); ok {
			return p, SourceQuote
		}
	}
	return h.Basis, SourceBasis
}

// MarketValue is price times share count.
func MarketValue(h models.Holding, q *models.Quote) decimal.Decimal {
	p, _ := Price(h, q)
	return p.Mul(decimal.NewFromInt(int64(h.ShareCount)))
}

// GainLoss is market value minus total cost.
func GainLoss(h models.Holding, q *models.Quote) decimal.Decimal {
	return MarketValue(h, q).Sub(TotalCost(h))
}

// ReturnPercent is gain over cost in percent; 0 when cost is not positive.
func ReturnPercent(h models.Holding, q *models.Quote) decimal.Decimal {
	return percent(GainLoss(h, q), TotalCost(h))
}

func percent(gain, cost decimal.Decimal) decimal.Decimal {
	if !cost.IsPositive() {
		return decimal.Zero
	}
	return gain.Div(cost).Mul(hundred)
}
