package order

import (
	"github.com/shopspring/decimal"

	"github.com/atharvakonge/paper-brokerage/internal/models"
)

// ResolvePrice picks the transaction price for ticker: a fresh cached quote
// first, then the holding's basis. Prices are rounded to whole cents, the
// unit the balance endpoint moves, so the holding call, the cash check and
// the debit all use one amount. ok is false if neither source gives a
// positive price after rounding.
func (c *Coordinator) ResolvePrice(ticker string) (price decimal.Decimal, source PriceSource, ok bool) {
	ticker = models.NormalizeTicker(ticker)
	if q, fresh := c.store.FreshQuote(ticker, c.quoteTTL); fresh {
		if p, valid := q.Price(); valid {
			if p = toCents(p); p.IsPositive() {
				return p, PriceFromQuote, true
			}
		}
	}
	if h, held := c.store.Holding(ticker); held {
		if p := toCents(h.Basis); p.IsPositive() {
			return p, PriceFromBasis, true
		}
	}
	return decimal.Zero, "", false
}

func toCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// validate checks an order against the store. It never calls the network.
func (c *Coordinator) validate(ticker string, side models.Side) (decimal.Decimal, PriceSource, error) {
	switch side {
	case models.SideBuy:
		price, source, ok := c.ResolvePrice(ticker)
		if !ok {
			return decimal.Zero, "", reject(ReasonPriceUnavailable, nil)
		}
		// No account loaded yet means no known cash.
		acct, _ := c.store.Account()
		if acct.CashBalance.LessThan(price) {
			return decimal.Zero, "", reject(ReasonInsufficientFunds, nil)
		}
		return price, source, nil

	case models.SideSell:
		h, ok := c.store.Holding(ticker)
		if !ok || h.ShareCount <= 0 {
			return decimal.Zero, "", reject(ReasonNoShares, nil)
		}
		price, source, ok := c.ResolvePrice(ticker)
		if !ok {
			return decimal.Zero, "", reject(ReasonPriceUnavailable, nil)
		}
		return price, source, nil
	}
	return decimal.Zero, "", ErrInvalidSide
}
