package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/atharvakonge/paper-brokerage/internal/models"
)

// ErrUnexpectedShape is returned when a collection response matches none of
// the known layouts.
var ErrUnexpectedShape = errors.New("unexpected response shape")

// decodeHoldings normalizes the portfolio response. Accepted layouts:
// a bare array, {"portfolio": [...]}, or a single holding object.
func decodeHoldings(body []byte) ([]models.Holding, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return []models.Holding{}, nil
	}

	switch body[0] {
	case '[':
		var holdings []models.Holding
		if err := json.Unmarshal(body, &holdings); err != nil {
			return nil, fmt.Errorf("decode holdings: %w", err)
		}
		return normalizeHoldings(holdings), nil

	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, fmt.Errorf("decode holdings: %w", err)
		}
		if inner, ok := fields["portfolio"]; ok {
			return decodeHoldings(inner)
		}
		if _, ok := fields["ticker"]; ok {
			var h models.Holding
			if err := json.Unmarshal(body, &h); err != nil {
				return nil, fmt.Errorf("decode holding: %w", err)
			}
			return normalizeHoldings([]models.Holding{h}), nil
		}
	}

	return nil, fmt.Errorf("decode holdings: %w", ErrUnexpectedShape)
}

func normalizeHoldings(holdings []models.Holding) []models.Holding {
	out := make([]models.Holding, 0, len(holdings))
	for _, h := range holdings {
		h.Ticker = models.NormalizeTicker(h.Ticker)
		if h.Ticker == "" {
			continue
		}
		out = append(out, h)
	}
	return out
}

// GetPortfolio fetches every holding of the current user.
func (c *Client) GetPortfolio(ctx context.Context) ([]models.Holding, error) {
	body, err := c.get(ctx, "/portfolio", nil)
	if err != nil {
		return nil, fmt.Errorf("get portfolio: %w", err)
	}
	holdings, err := decodeHoldings(body)
	if err != nil {
		return nil, fmt.Errorf("get portfolio: %w", err)
	}
	return holdings, nil
}

// AdjustHolding buys (add) or sells (subtract) one share at price and
// returns the holding as the ledger recorded it.
func (c *Client) AdjustHolding(ctx context.Context, ticker string, side models.Side, price decimal.Decimal) (models.Holding, error) {
	ticker = models.NormalizeTicker(ticker)
	path := "/portfolio/" + url.PathEscape(ticker) + "/" + side.HoldingOperator()
	payload := map[string]json.Number{"price": json.Number(price.String())}

	var h models.Holding
	if err := c.post(ctx, path, payload, &h); err != nil {
		return models.Holding{}, fmt.Errorf("adjust holding %s: %w", ticker, err)
	}
	h.Ticker = models.NormalizeTicker(h.Ticker)
	if h.Ticker == "" {
		h.Ticker = ticker
	}
	return h, nil
}
