package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/atharvakonge/paper-brokerage/internal/models"
)

// decodeWatchlist accepts a bare array or {"watchlist": [...]}.
func decodeWatchlist(body []byte) ([]models.WatchlistEntry, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return []models.WatchlistEntry{}, nil
	}
	if body[0] == '{' {
		var wrapped struct {
			Watchlist json.RawMessage `json:"watchlist"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, err
		}
		if len(wrapped.Watchlist) == 0 {
			return nil, ErrUnexpectedShape
		}
		return decodeWatchlist(wrapped.Watchlist)
	}

	var entries []models.WatchlistEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, err
	}
	out := entries[:0]
	for _, e := range entries {
		e.Ticker = models.NormalizeTicker(e.Ticker)
		if e.Ticker != "" {
			out = append(out, e)
		}
	}
	return out, nil
}

// GetWatchlist fetches the watched tickers.
func (c *Client) GetWatchlist(ctx context.Context) ([]models.WatchlistEntry, error) {
	body, err := c.get(ctx, "/watchlist", nil)
	if err != nil {
		return nil, fmt.Errorf("get watchlist: %w", err)
	}
	entries, err := decodeWatchlist(body)
	if err != nil {
		return nil, fmt.Errorf("get watchlist: %w", err)
	}
	return entries, nil
}

// AddToWatchlist asks the service to watch ticker.
func (c *Client) AddToWatchlist(ctx context.Context, ticker string) error {
	ticker = models.NormalizeTicker(ticker)
	if err := c.post(ctx, "/watchlist/"+url.PathEscape(ticker), nil, nil); err != nil {
		return fmt.Errorf("add %s to watchlist: %w", ticker, err)
	}
	return nil
}

// RemoveFromWatchlist asks the service to stop watching ticker. A nil error
// is the authoritative delete confirmation.
func (c *Client) RemoveFromWatchlist(ctx context.Context, ticker string) error {
	ticker = models.NormalizeTicker(ticker)
	if _, err := c.doRequest(ctx, http.MethodDelete, "/watchlist/"+url.PathEscape(ticker), nil, nil); err != nil {
		return fmt.Errorf("remove %s from watchlist: %w", ticker, err)
	}
	return nil
}
