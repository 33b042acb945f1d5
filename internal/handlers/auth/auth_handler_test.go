package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ordering-service/internal/domain/admin"
	domain "ordering-service/internal/domain/auth"
	"ordering-service/internal/domain/session"
	xerrors "ordering-service/internal/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeVerifier struct {
	loginFunc    func(ctx context.Context, req *domain.PasswordLoginRequest) (*session.Session, error)
	requestFunc  func(ctx context.Context, contact string) error
	status       domain.ResendStatus
	inputFunc    func(ctx context.Context, req *domain.CodeInputRequest) (*domain.CodeInputResult, error)
	exchangeFunc func(ctx context.Context, link string) (*domain.LinkResult, error)
}

func (f *fakeVerifier) LoginWithPassword(ctx context.Context, req *domain.PasswordLoginRequest) (*session.Session, error) {
	return f.loginFunc(ctx, req)
}

func (f *fakeVerifier) RequestCode(ctx context.Context, contact string) error {
	return f.requestFunc(ctx, contact)
}

func (f *fakeVerifier) ResendStatus(context.Context, string) (domain.ResendStatus, error) {
	return f.status, nil
}

func (f *fakeVerifier) VerifyCode(context.Context, *domain.VerifyCodeRequest) (*session.Session, error) {
	return nil, errors.New("not used")
}

func (f *fakeVerifier) SubmitCodeInput(ctx context.Context, req *domain.CodeInputRequest) (*domain.CodeInputResult, error) {
	return f.inputFunc(ctx, req)
}

func (f *fakeVerifier) ExchangeLink(ctx context.Context, link string) (*domain.LinkResult, error) {
	return f.exchangeFunc(ctx, link)
}

func (f *fakeVerifier) CompletePasswordReset(context.Context, string) error { return nil }

func (f *fakeVerifier) StartCustomerRegistration(context.Context, *domain.CustomerRegistrationRequest) (*session.Session, error) {
	return nil, nil
}

func (f *fakeVerifier) PendingRegistration(context.Context) (*domain.PendingRegistration, error) {
	return nil, nil
}

func (f *fakeVerifier) CompleteCustomerRegistration(context.Context, string) (*session.Session, error) {
	return nil, errors.New("not used")
}

func (f *fakeVerifier) AbandonRegistration(context.Context) error { return nil }

type fakeSessions struct {
	current   *session.Session
	logoutErr error
	logouts   int
}

func (f *fakeSessions) GetSession(context.Context) *session.Session { return f.current }

func (f *fakeSessions) LastKnownSession(context.Context) (*session.Session, error) {
	return f.current, nil
}

func (f *fakeSessions) Logout(context.Context) error {
	f.logouts++
	return f.logoutErr
}

type envelope struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message"`
	Data     json.RawMessage `json:"data"`
	Error    string          `json:"error"`
	Terminal bool            `json:"terminal"`
}

func setup(v *fakeVerifier, s *fakeSessions) *gin.Engine {
	h := NewAuthHandler(v, s, zap.NewNop())
	r := gin.New()
	r.GET("/auth/session", h.GetSession)
	r.POST("/auth/logout", h.Logout)
	r.POST("/auth/login/password", h.LoginWithPassword)
	r.POST("/auth/code/request", h.RequestCode)
	r.POST("/auth/code/input", h.SubmitCodeInput)
	r.GET("/auth/callback", h.Callback)
	r.POST("/auth/register/customer", h.StartCustomerRegistration)
	r.GET("/auth/register/customer", h.GetPendingRegistration)
	return r
}

func do(t *testing.T, r *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func adminSession() *session.Session {
	return session.FromAdmin(&admin.Administrator{ID: "a-1", Name: "Rui", Email: "rui@example.com", Role: admin.RoleAdmin})
}

func TestLoginWithPassword(t *testing.T) {
	v := &fakeVerifier{loginFunc: func(_ context.Context, req *domain.PasswordLoginRequest) (*session.Session, error) {
		if req.Password != "right" {
			return nil, xerrors.ErrInvalidCredentials
		}
		return adminSession(), nil
	}}
	r := setup(v, &fakeSessions{})

	w, env := do(t, r, http.MethodPost, "/auth/login/password", map[string]string{
		"email": "rui@example.com", "password": "right", "portal": "admin",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"role":"admin"`)

	w, env = do(t, r, http.MethodPost, "/auth/login/password", map[string]string{
		"email": "rui@example.com", "password": "wrong", "portal": "admin",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid_credentials", env.Error)
	assert.Equal(t, xerrors.UserMessage(xerrors.ErrInvalidCredentials), env.Message)

	w, env = do(t, r, http.MethodPost, "/auth/login/password", map[string]string{
		"email": "rui@example.com", "password": "right", "portal": "kitchen",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_input", env.Error)
}

func TestRequestCode_RateLimitedCarriesRetry(t *testing.T) {
	v := &fakeVerifier{
		requestFunc: func(context.Context, string) error { return xerrors.ErrRateLimited },
		status:      domain.ResendStatus{CanResend: false, RetryInSeconds: 42},
	}
	r := setup(v, &fakeSessions{})

	w, env := do(t, r, http.MethodPost, "/auth/code/request", map[string]string{"contact": "ana@example.com"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"can_resend":false,"retry_in_seconds":42}`, string(env.Data))
}

func TestSubmitCodeInput(t *testing.T) {
	v := &fakeVerifier{inputFunc: func(_ context.Context, req *domain.CodeInputRequest) (*domain.CodeInputResult, error) {
		if req.Text == "hello" {
			return &domain.CodeInputResult{}, xerrors.ErrLinkMalformed
		}
		return &domain.CodeInputResult{Code: "AB12CD", Triggered: false}, nil
	}}
	r := setup(v, &fakeSessions{})

	w, env := do(t, r, http.MethodPost, "/auth/code/input", map[string]string{
		"contact": "ana@example.com", "text": "hello", "portal": "customer",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "link_malformed", env.Error)

	w, env = do(t, r, http.MethodPost, "/auth/code/input", map[string]string{
		"contact": "ana@example.com", "text": "AB12CD", "portal": "customer",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"code":"AB12CD","triggered":false}`, string(env.Data))
}

func TestCallback_PassesFullURL(t *testing.T) {
	var got string
	v := &fakeVerifier{exchangeFunc: func(_ context.Context, link string) (*domain.LinkResult, error) {
		got = link
		return &domain.LinkResult{Recovery: true}, nil
	}}
	r := setup(v, &fakeSessions{})

	w, env := do(t, r, http.MethodGet, "/auth/callback?code=abc&type=recovery", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/auth/callback?code=abc&type=recovery", got)
	assert.JSONEq(t, `{"recovery":true}`, string(env.Data))
}

func TestGetSession_SignedOut(t *testing.T) {
	r := setup(&fakeVerifier{}, &fakeSessions{})

	w, env := do(t, r, http.MethodGet, "/auth/session", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"session":null}`, string(env.Data))
}

func TestLogout_ReportsLocalFailure(t *testing.T) {
	s := &fakeSessions{logoutErr: xerrors.Transient(errors.New("database is locked"))}
	r := setup(&fakeVerifier{}, s)

	w, env := do(t, r, http.MethodPost, "/auth/logout", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "transient", env.Error)
	assert.Equal(t, 1, s.logouts)
}

func TestCustomerRegistration_NeedsContact(t *testing.T) {
	r := setup(&fakeVerifier{}, &fakeSessions{})

	w, _ := do(t, r, http.MethodPost, "/auth/register/customer", map[string]string{
		"name": "Ana", "password": "password1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, http.MethodPost, "/auth/register/customer", map[string]string{
		"name": "Ana", "phone": "+351900000000", "password": "password1",
	})
	assert.Equal(t, http.StatusAccepted, w.Code)

	w, _ = do(t, r, http.MethodGet, "/auth/register/customer", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
