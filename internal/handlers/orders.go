package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/atharvakonge/paper-brokerage/internal/models"
	"github.com/atharvakonge/paper-brokerage/internal/order"
)

const defaultHistoryLimit = 50

// SubmitOrder handles POST /api/orders
func (h *Handler) SubmitOrder(c *gin.Context) {
	var req models.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res := h.core.SubmitOrder(c.Request.Context(), req.Ticker, req.Side)
	if res.Success {
		c.JSON(http.StatusOK, gin.H{
			"message": "Order executed successfully",
			"order":   res.Order,
		})
		return
	}

	c.JSON(orderStatus(res), gin.H{
		"error":  errorText(res.Err),
		"reason": res.Reason(),
		"order":  res.Order,
	})
}

// orderStatus picks the response code for a failed order. A partial
// failure still returns the reconciled order so the UI can re-render it.
func orderStatus(res order.Result) int {
	switch {
	case res.Reason() == order.ReasonOrderInFlight:
		return http.StatusConflict
	case res.Reason().IsValidation(), errors.Is(res.Err, order.ErrInvalidSide):
		return http.StatusBadRequest
	case errors.Is(res.Err, order.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(res.Err, context.Canceled), errors.Is(res.Err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// GetOrders handles GET /api/orders?limit=50[&source=journal]
func (h *Handler) GetOrders(c *gin.Context) {
	limit := queryLimit(c, defaultHistoryLimit)

	if c.Query("source") == "journal" {
		entries, err := h.core.JournalEntries(c.Request.Context(), limit)
		if err != nil {
			h.logger.Error().Err(err).Msg("failed to read order journal")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order journal"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"transitions": entries,
			"count":       len(entries),
		})
		return
	}

	orders := h.core.Orders(limit)
	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"count":  len(orders),
	})
}
