// Package handlers exposes the brokerage core to the browser over gin.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/atharvakonge/paper-brokerage/internal/api"
	"github.com/atharvakonge/paper-brokerage/internal/brokerage"
	"github.com/atharvakonge/paper-brokerage/internal/db"
	"github.com/atharvakonge/paper-brokerage/internal/models"
	"github.com/atharvakonge/paper-brokerage/internal/order"
	"github.com/atharvakonge/paper-brokerage/internal/store"
	"github.com/atharvakonge/paper-brokerage/internal/valuation"
)

// Core is the part of the brokerage the HTTP layer talks to.
type Core interface {
	EnsureFresh(kind store.Kind, key string)
	EnsureFreshPeriod(ticker string, period models.Period)
	RefreshAll()
	Get(kind store.Kind, key string) (any, bool)
	Chart(ticker string, period models.Period) (brokerage.Chart, bool)
	SubmitOrder(ctx context.Context, ticker string, side models.Side) order.Result
	Orders(limit int) []order.Order
	JournalEntries(ctx context.Context, limit int) ([]db.Transition, error)
	Valuation(ticker string) (valuation.Snapshot, bool)
	PortfolioSummary() valuation.Summary
	Watchlist() []models.WatchlistEntry
	AddToWatchlist(ctx context.Context, ticker string) error
	RemoveFromWatchlist(ctx context.Context, ticker string) error
	Subscribe(buffer int) (<-chan store.Change, func())
}

// Handler serves the REST and websocket endpoints.
type Handler struct {
	core   Core
	logger zerolog.Logger
}

// New creates a Handler for core.
func New(core Core, logger zerolog.Logger) *Handler {
	return &Handler{core: core, logger: logger}
}

// Register mounts every route on r.
func (h *Handler) Register(r *gin.Engine) {
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/quotes/:ticker", h.GetQuote)
		apiGroup.GET("/entities/:kind", h.GetEntity)
		apiGroup.GET("/entities/:kind/:key", h.GetEntity)
		apiGroup.GET("/portfolio", h.GetPortfolio)
		apiGroup.GET("/valuation/:ticker", h.GetValuation)

		apiGroup.POST("/orders", h.SubmitOrder)
		apiGroup.GET("/orders", h.GetOrders)

		apiGroup.GET("/watchlist", h.GetWatchlist)
		apiGroup.POST("/watchlist/:ticker", h.AddToWatchlist)
		apiGroup.DELETE("/watchlist/:ticker", h.RemoveFromWatchlist)
	}

	r.GET("/ws/updates", h.HandleUpdates)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
}

// RequestLogger logs one line per request.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Int("bytes", c.Writer.Size()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	}
}

// upstreamStatus maps an error from the price service to a response code.
func upstreamStatus(err error) int {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) && apiErr.IsNotFound() {
		return http.StatusNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func queryLimit(c *gin.Context, def int) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
