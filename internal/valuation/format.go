package valuation

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// FormatUSD renders an amount as dollars and cents, e.g. "$1,234.56".
func FormatUSD(amount decimal.Decimal) string {
	cents := amount.Shift(2).Round(0).IntPart()
	return money.New(cents, money.USD).Display()
}

// FormatPercent renders a percentage with an explicit sign, e.g. "+1.25%".
func FormatPercent(p decimal.Decimal) string {
	s := p.StringFixed(2) + "%"
	if p.Round(2).IsPositive() {
		return "+" + s
	}
	return s
}
