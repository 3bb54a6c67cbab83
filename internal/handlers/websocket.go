package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/atharvakonge/paper-brokerage/internal/store"
)

const (
	updateBuffer = 64
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

// Update is one cache change pushed to websocket clients.
type Update struct {
	Kind      store.Kind `json:"kind"`
	Key       string     `json:"key"`
	Removed   bool       `json:"removed,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the UI may be served from another origin in development
	},
}

// HandleUpdates handles GET /ws/updates. Every committed store change is
// sent as an Update; clients re-read the entity over REST.
func (h *Handler) HandleUpdates(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	changes, cancel := h.core.Subscribe(updateBuffer)
	defer cancel()

	h.logger.Info().Str("remote", c.Request.RemoteAddr).Msg("websocket client connected")
	defer h.logger.Info().Str("remote", c.Request.RemoteAddr).Msg("websocket client disconnected")

	// The client never sends anything we act on; reading only detects close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return

		case change, ok := <-changes:
			if !ok {
				return
			}
			update := Update{
				Kind:      change.Kind,
				Key:       change.Key,
				Removed:   change.Removed,
				Timestamp: time.Now(),
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(update); err != nil {
				h.logger.Debug().Err(err).Msg("websocket write failed")
				return
			}

		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
