// internal/websocket/handler.go
package websocket

import (
	"context"

	"ordering-service/internal/domain/session"
	wstypes "ordering-service/internal/domain/websocket"
)

// MessageHandler answers client requests of the event types it supports.
type MessageHandler interface {
	HandleMessage(ctx context.Context, client *Client, msg *wstypes.WSMessage) error
	SupportedEvents() []wstypes.EventType
}

// HandlerRegistry manages all message handlers
type HandlerRegistry struct {
	handlers map[wstypes.EventType]MessageHandler
}

func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		handlers: make(map[wstypes.EventType]MessageHandler),
	}
}

// Register registers a handler for its supported events
func (r *HandlerRegistry) Register(handler MessageHandler) {
	for _, eventType := range handler.SupportedEvents() {
		r.handlers[eventType] = handler
	}
}

// GetHandler returns the handler for a given event type
func (r *HandlerRegistry) GetHandler(eventType wstypes.EventType) (MessageHandler, bool) {
	handler, exists := r.handlers[eventType]
	return handler, exists
}

// SessionSource is the part of the session resolver the stream reads.
type SessionSource interface {
	GetSession(ctx context.Context) *session.Session
}

// SessionHandler answers "session" requests with the current session view.
type SessionHandler struct {
	sessions SessionSource
}

func NewSessionHandler(sessions SessionSource) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) SupportedEvents() []wstypes.EventType {
	return []wstypes.EventType{wstypes.EventTypeSession}
}

func (h *SessionHandler) HandleMessage(ctx context.Context, client *Client, _ *wstypes.WSMessage) error {
	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeSession, SessionPayload(h.sessions.GetSession(ctx))))
	return nil
}

// SessionPayload is the data of connected and session events. It is nil
// when nobody is signed in.
func SessionPayload(s *session.Session) *session.View {
	if s == nil {
		return nil
	}
	v := s.View()
	return &v
}
