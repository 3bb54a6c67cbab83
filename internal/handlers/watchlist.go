package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/atharvakonge/paper-brokerage/internal/brokerage"
	"github.com/atharvakonge/paper-brokerage/internal/models"
	"github.com/atharvakonge/paper-brokerage/internal/store"
)

// GetWatchlist handles GET /api/watchlist
func (h *Handler) GetWatchlist(c *gin.Context) {
	h.core.EnsureFresh(store.KindWatchlist, "")

	entries := h.core.Watchlist()
	c.JSON(http.StatusOK, gin.H{
		"watchlist": entries,
		"count":     len(entries),
	})
}

// AddToWatchlist handles POST /api/watchlist/:ticker
func (h *Handler) AddToWatchlist(c *gin.Context) {
	ticker := models.NormalizeTicker(c.Param("ticker"))
	if err := h.core.AddToWatchlist(c.Request.Context(), ticker); err != nil {
		h.watchlistError(c, ticker, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":   ticker + " added to watchlist",
		"watchlist": h.core.Watchlist(),
	})
}

// RemoveFromWatchlist handles DELETE /api/watchlist/:ticker
func (h *Handler) RemoveFromWatchlist(c *gin.Context) {
	ticker := models.NormalizeTicker(c.Param("ticker"))
	if err := h.core.RemoveFromWatchlist(c.Request.Context(), ticker); err != nil {
		h.watchlistError(c, ticker, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   ticker + " removed from watchlist",
		"watchlist": h.core.Watchlist(),
	})
}

func (h *Handler) watchlistError(c *gin.Context, ticker string, err error) {
	if errors.Is(err, brokerage.ErrEmptyTicker) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.logger.Warn().Err(err).Str("ticker", ticker).Msg("watchlist update failed")
	c.JSON(upstreamStatus(err), gin.H{"error": err.Error()})
}
