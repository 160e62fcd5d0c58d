package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Upgrader for HTTP -> WebSocket. The ESP32 firmware and the panels are served from
// different origins, so any origin is accepted.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// upgrade switches the request to a websocket; on failure the upgrader already
// wrote the HTTP error.
func (h *Handler) upgrade(c *gin.Context, logKey string) (*websocket.Conn, bool) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw(logKey, "err", err)
		}
		return nil, false
	}
	return conn, true
}

// wsDevice is the endpoint the lamp firmware connects to.
func (h *Handler) wsDevice(c *gin.Context) {
	conn, ok := h.upgrade(c, "ws_device_upgrade_failed")
	if !ok {
		return
	}
	h.hub.ServeDevice(c.Request.Context(), conn)
}

// wsClient is the endpoint control panels connect to.
func (h *Handler) wsClient(c *gin.Context) {
	conn, ok := h.upgrade(c, "ws_client_upgrade_failed")
	if !ok {
		return
	}
	h.hub.ServeClient(c.Request.Context(), conn)
}

// wsAdmin streams relay log lines.
func (h *Handler) wsAdmin(c *gin.Context) {
	conn, ok := h.upgrade(c, "ws_admin_upgrade_failed")
	if !ok {
		return
	}
	h.hub.ServeAdmin(conn)
}
