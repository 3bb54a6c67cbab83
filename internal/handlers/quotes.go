package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/atharvakonge/paper-brokerage/internal/models"
	"github.com/atharvakonge/paper-brokerage/internal/store"
)

// GetQuote handles GET /api/quotes/:ticker?period=daily
//
// It answers from the cache and always starts a refresh. A ticker that was
// never fetched gets 202 so the UI can retry.
func (h *Handler) GetQuote(c *gin.Context) {
	ticker := models.NormalizeTicker(c.Param("ticker"))
	period := models.PeriodDaily
	if p := c.Query("period"); p != "" {
		var ok bool
		if period, ok = models.ParsePeriod(p); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown period " + p})
			return
		}
	}

	h.core.EnsureFresh(store.KindQuote, ticker)

	chart, ok := h.core.Chart(ticker, period)
	if !ok {
		c.JSON(http.StatusAccepted, gin.H{"status": "pending", "ticker": ticker})
		return
	}
	if _, has := chart.Quote.Series[period]; !has {
		h.core.EnsureFreshPeriod(ticker, period)
	}
	c.JSON(http.StatusOK, chart)
}

// GetEntity handles GET /api/entities/:kind/:key
func (h *Handler) GetEntity(c *gin.Context) {
	kind, err := store.ParseKind(c.Param("kind"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	key := c.Param("key")

	h.core.EnsureFresh(kind, key)

	entity, ok := h.core.Get(kind, key)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not cached yet", "kind": kind, "key": key})
		return
	}
	c.JSON(http.StatusOK, gin.H{"kind": kind, "key": key, "entity": entity})
}

// GetPortfolio handles GET /api/portfolio
func (h *Handler) GetPortfolio(c *gin.Context) {
	h.core.RefreshAll()
	c.JSON(http.StatusOK, h.core.PortfolioSummary())
}

// GetValuation handles GET /api/valuation/:ticker
func (h *Handler) GetValuation(c *gin.Context) {
	ticker := models.NormalizeTicker(c.Param("ticker"))
	h.core.EnsureFresh(store.KindQuote, ticker)

	v, ok := h.core.Valuation(ticker)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "You don't own this stock"})
		return
	}
	c.JSON(http.StatusOK, v)
}
