// internal/websocket/hub.go
package websocket

import (
	"context"
	"sync"

	"go.uber.org/zap"

	wstypes "ordering-service/internal/domain/websocket"
)

// Hub fans auth state events out to every UI connection on this device.
type Hub struct {
	clients map[*Client]bool
	mu      sync.RWMutex

	Register   chan *Client
	unregister chan *Client
	broadcast  chan *wstypes.WSMessage

	handlerRegistry *HandlerRegistry
	logger          *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:         make(map[*Client]bool),
		Register:        make(chan *Client),
		unregister:      make(chan *Client, 16),
		broadcast:       make(chan *wstypes.WSMessage, 256),
		handlerRegistry: NewHandlerRegistry(),
		logger:          logger,
	}
}

// RegisterHandler registers a message handler
func (h *Hub) RegisterHandler(handler MessageHandler) {
	h.handlerRegistry.Register(handler)
}

// HandleClientMessage processes a message from a client using registered handlers
func (h *Hub) HandleClientMessage(ctx context.Context, client *Client, msg *wstypes.WSMessage) (bool, error) {
	handler, exists := h.handlerRegistry.GetHandler(msg.Type)
	if !exists {
		return false, nil
	}
	return true, handler.HandleMessage(ctx, client, msg)
}

// Publish queues msg for every connected client. It never blocks: when the
// queue is full the event is dropped and the UI re-reads the session on its
// next request.
func (h *Hub) Publish(msg *wstypes.WSMessage) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("auth event dropped, broadcast queue full", zap.String("type", string(msg.Type)))
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.broadcastMessage(msg)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("ui client connected", zap.String("remote", client.remote), zap.Int("total", total))
	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeConnected, client.greeting))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	total := len(h.clients)
	h.mu.Unlock()

	if ok {
		client.Close()
		h.logger.Info("ui client disconnected", zap.String("remote", client.remote), zap.Int("total", total))
	}
}

func (h *Hub) broadcastMessage(msg *wstypes.WSMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		client.SendMessage(msg)
	}
}

func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		client.SendMessage(wstypes.NewMessage(wstypes.EventTypeDisconnected, map[string]interface{}{
			"reason": "shutdown",
		}))
		client.Close()
	}
	h.clients = make(map[*Client]bool)
}
