package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"ordering-service/internal/domain/customer"
	"ordering-service/internal/domain/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSessions struct {
	s     *session.Session
	admin bool
}

func (f *fakeSessions) GetSession(context.Context) *session.Session { return f.s }
func (f *fakeSessions) IsAdmin(context.Context) bool              { return f.admin }

type httpRecord struct {
	route  string
	status int
}

type fakeRecorder struct {
	requests []httpRecord
	panics   []string
}

func (f *fakeRecorder) RecordLoginAttempt(string, string)   {}
func (f *fakeRecorder) RecordSessionResolution(string)      {}
func (f *fakeRecorder) CacheLookup(string, bool)            {}
func (f *fakeRecorder) RecordLogoutStepFailure(string)      {}
func (f *fakeRecorder) RecordHTTPRequest(_ string, route string, status int, _ time.Duration) {
	f.requests = append(f.requests, httpRecord{route: route, status: status})
}
func (f *fakeRecorder) RecordPanic(route string) { f.panics = append(f.panics, route) }

func serve(r *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware([]string{"http://localhost:5173"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodGet, "/x", map[string]string{"Origin": "http://localhost:5173"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	w = serve(r, http.MethodGet, "/x", map[string]string{"Origin": "https://evil.example.com"})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(r, http.MethodOptions, "/x", map[string]string{"Origin": "http://localhost:5173"})
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestSessionMiddleware(t *testing.T) {
	sessions := &fakeSessions{}
	m := NewSessionMiddleware(sessions)

	r := gin.New()
	r.GET("/me", m.RequireSession(), func(c *gin.Context) {
		s, ok := GetSession(c)
		assert.True(t, ok)
		c.String(http.StatusOK, s.ID())
	})
	r.GET("/admin", m.RequireSession(), m.RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/me", nil).Code)

	sessions.s = session.FromCustomer(&customer.Customer{ID: "c-1", Email: "c@example.com"})
	w := serve(r, http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "c-1", w.Body.String())

	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/admin", nil).Code)
	sessions.admin = true
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/admin", nil).Code)
}

func TestLoggingAndRecovery(t *testing.T) {
	rec := &fakeRecorder{}
	r := gin.New()
	r.Use(LoggingMiddleware(zap.NewNop(), rec), RecoveryMiddleware(zap.NewNop(), rec))
	r.GET("/items/:id", func(c *gin.Context) { panic("boom") })

	w := serve(r, http.MethodGet, "/items/42", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	serve(r, http.MethodGet, "/nowhere", nil)

	assert.Equal(t, []httpRecord{
		{route: "/items/:id", status: http.StatusInternalServerError},
		{route: "unmatched", status: http.StatusNotFound},
	}, rec.requests)
	assert.Equal(t, []string{"/items/:id"}, rec.panics)
}

func TestRecovery_LogsRouteAndStack(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	rec := &fakeRecorder{}
	r := gin.New()
	r.Use(RecoveryMiddleware(zap.New(core), rec))
	r.POST("/orders", func(c *gin.Context) { panic("nil order") })

	w := serve(r, http.MethodPost, "/orders", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "POST", fields["method"])
	assert.Equal(t, "/orders", fields["route"])
	assert.Equal(t, "nil order", fields["panic"])
	assert.NotEmpty(t, fields["stack"])
}

func TestRecovery_KeepsPartialResponse(t *testing.T) {
	rec := &fakeRecorder{}
	r := gin.New()
	r.Use(RecoveryMiddleware(zap.NewNop(), rec))
	r.GET("/stream", func(c *gin.Context) {
		c.String(http.StatusOK, "partial")
		panic("stream broke")
	})

	w := serve(r, http.MethodGet, "/stream", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "partial", w.Body.String())
	assert.Equal(t, []string{"/stream"}, rec.panics)
}
