// internal/handlers/websocket/websocket.go
package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ordering-service/internal/domain/session"
	"ordering-service/internal/pkg/response"
	ws "ordering-service/internal/websocket"
)

type SessionSource interface {
	GetSession(ctx context.Context) *session.Session
}

type WebSocketHandler struct {
	hub      *ws.Hub
	sessions SessionSource
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWebSocketHandler accepts connections from allowedOrigins and from
// clients that send no Origin header, such as the native UI shell.
func NewWebSocketHandler(hub *ws.Hub, sessions SessionSource, allowedOrigins []string, logger *zap.Logger) *WebSocketHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return &WebSocketHandler{
		hub:      hub,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[origin]
			},
		},
		logger: logger,
	}
}

// HandleConnection upgrades to the auth state stream. The first message is
// "connected" carrying the current session.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	if !h.upgrader.CheckOrigin(c.Request) {
		h.logger.Warn("websocket origin rejected", zap.String("origin", c.GetHeader("Origin")))
		response.Error(c, http.StatusForbidden, "origin not allowed", ws.ErrOriginNotAllowed)
		return
	}

	greeting := ws.SessionPayload(h.sessions.GetSession(c.Request.Context()))

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed",
			zap.Error(err),
			zap.String("ip", c.ClientIP()),
		)
		return
	}

	client := ws.NewClient(h.hub, conn, c.ClientIP(), greeting)
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}

// GetStats returns WebSocket connection statistics
func (h *WebSocketHandler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{
		"total_connections": h.hub.TotalClients(),
		"timestamp":         time.Now(),
	}

	response.Success(c, http.StatusOK, "WebSocket stats", stats)
}
