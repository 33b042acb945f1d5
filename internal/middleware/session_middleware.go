// internal/middleware/session_middleware.go
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"ordering-service/internal/domain/session"
	"ordering-service/internal/pkg/response"
)

const sessionKey = "session"

type SessionSource interface {
	GetSession(ctx context.Context) *session.Session
	IsAdmin(ctx context.Context) bool
}

type SessionMiddleware struct {
	sessions SessionSource
}

func NewSessionMiddleware(sessions SessionSource) *SessionMiddleware {
	return &SessionMiddleware{sessions: sessions}
}

// RequireSession rejects the request unless the device has a session.
func (m *SessionMiddleware) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := m.sessions.GetSession(c.Request.Context())
		if s == nil {
			response.Unauthorized(c, "Please sign in to continue.")
			return
		}
		c.Set(sessionKey, s)
		c.Next()
	}
}

// RequireAdmin must be used after RequireSession.
func (m *SessionMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.sessions.IsAdmin(c.Request.Context()) {
			response.Forbidden(c, "You do not have permission to do that.")
			return
		}
		c.Next()
	}
}

// GetSession returns the session set by RequireSession.
func GetSession(c *gin.Context) (*session.Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil, false
	}
	s, ok := v.(*session.Session)
	return s, ok && s != nil
}
