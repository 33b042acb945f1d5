// internal/handlers/auth/auth_handler.go
package auth

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	domain "ordering-service/internal/domain/auth"
	"ordering-service/internal/domain/session"
	"ordering-service/internal/pkg/response"
)

// Verifier is the credential verifier the handler drives.
type Verifier interface {
	LoginWithPassword(ctx context.Context, req *domain.PasswordLoginRequest) (*session.Session, error)
	RequestCode(ctx context.Context, contact string) error
	ResendStatus(ctx context.Context, contact string) (domain.ResendStatus, error)
	VerifyCode(ctx context.Context, req *domain.VerifyCodeRequest) (*session.Session, error)
	SubmitCodeInput(ctx context.Context, req *domain.CodeInputRequest) (*domain.CodeInputResult, error)
	ExchangeLink(ctx context.Context, link string) (*domain.LinkResult, error)
	CompletePasswordReset(ctx context.Context, newPassword string) error

	StartCustomerRegistration(ctx context.Context, req *domain.CustomerRegistrationRequest) (*session.Session, error)
	PendingRegistration(ctx context.Context) (*domain.PendingRegistration, error)
	CompleteCustomerRegistration(ctx context.Context, code string) (*session.Session, error)
	AbandonRegistration(ctx context.Context) error
}

// Sessions is the session resolver.
type Sessions interface {
	GetSession(ctx context.Context) *session.Session
	LastKnownSession(ctx context.Context) (*session.Session, error)
	Logout(ctx context.Context) error
}

type AuthHandler struct {
	verifier Verifier
	sessions Sessions
	logger   *zap.Logger
}

func NewAuthHandler(verifier Verifier, sessions Sessions, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		verifier: verifier,
		sessions: sessions,
		logger:   logger,
	}
}

// sessionData is the payload of every response that may carry a session.
type sessionData struct {
	Session *session.View `json:"session"`
}

func viewOf(s *session.Session) sessionData {
	if s == nil {
		return sessionData{}
	}
	v := s.View()
	return sessionData{Session: &v}
}

// ========== Session ==========

// GetSession returns the current session, or null when signed out.
func (h *AuthHandler) GetSession(c *gin.Context) {
	response.Success(c, http.StatusOK, "session", viewOf(h.sessions.GetSession(c.Request.Context())))
}

// GetLastKnownSession returns the persisted session for offline display.
func (h *AuthHandler) GetLastKnownSession(c *gin.Context) {
	s, err := h.sessions.LastKnownSession(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, "last known session", viewOf(s))
}

// Logout always ends the local session. A non-nil error means some local
// state could not be removed.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.sessions.Logout(c.Request.Context()); err != nil {
		h.logger.Error("logout left local state behind", zap.Error(err))
		response.Fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, "logged out", nil)
}

// ========== Password ==========

func (h *AuthHandler) LoginWithPassword(c *gin.Context) {
	var req domain.PasswordLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	s, err := h.verifier.LoginWithPassword(c.Request.Context(), &req)
	if err != nil {
		h.logger.Info("password login failed", zap.String("portal", string(req.Portal)), zap.Error(err))
		response.Fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, "login successful", viewOf(s))
}

// ========== One-time code ==========

func (h *AuthHandler) RequestCode(c *gin.Context) {
	var req domain.RequestCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	if err := h.verifier.RequestCode(c.Request.Context(), req.Contact); err != nil {
		status, statusErr := h.verifier.ResendStatus(c.Request.Context(), req.Contact)
		if statusErr != nil {
			response.Fail(c, err)
			return
		}
		response.Fail(c, err, status)
		return
	}
	response.Success(c, http.StatusOK, "code sent", nil)
}

func (h *AuthHandler) ResendStatus(c *gin.Context) {
	contact := c.Query("contact")
	if contact == "" {
		response.ValidationError(c, "contact is required", nil)
		return
	}

	status, err := h.verifier.ResendStatus(c.Request.Context(), contact)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, "resend status", status)
}

func (h *AuthHandler) VerifyCode(c *gin.Context) {
	var req domain.VerifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	s, err := h.verifier.VerifyCode(c.Request.Context(), &req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, "login successful", viewOf(s))
}

// SubmitCodeInput receives the code field on every change.
func (h *AuthHandler) SubmitCodeInput(c *gin.Context) {
	var req domain.CodeInputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	res, err := h.verifier.SubmitCodeInput(c.Request.Context(), &req)
	if err != nil {
		response.Fail(c, err, res)
		return
	}

	payload := gin.H{"code": res.Code, "triggered": res.Triggered}
	if res.Session != nil {
		payload["session"] = viewOf(res.Session).Session
	}
	response.Success(c, http.StatusOK, "code input", payload)
}

// ========== Magic link ==========

func (h *AuthHandler) ExchangeLink(c *gin.Context) {
	var req domain.ExchangeLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}
	h.exchange(c, req.Link)
}

// Callback is the redirect target of magic links opened on this device.
func (h *AuthHandler) Callback(c *gin.Context) {
	h.exchange(c, c.Request.URL.String())
}

func (h *AuthHandler) exchange(c *gin.Context, link string) {
	res, err := h.verifier.ExchangeLink(c.Request.Context(), link)
	if err != nil {
		response.Fail(c, err)
		return
	}
	if res.Recovery {
		response.Success(c, http.StatusOK, "set a new password", gin.H{"recovery": true})
		return
	}
	response.Success(c, http.StatusOK, "login successful", viewOf(res.Session))
}

func (h *AuthHandler) CompletePasswordReset(c *gin.Context) {
	var req domain.CompletePasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	if err := h.verifier.CompletePasswordReset(c.Request.Context(), req.NewPassword); err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, "password updated", nil)
}

// ========== Customer registration ==========

func (h *AuthHandler) StartCustomerRegistration(c *gin.Context) {
	var req domain.CustomerRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}
	if req.Contact() == "" {
		response.ValidationError(c, "email or phone is required", nil)
		return
	}

	s, err := h.verifier.StartCustomerRegistration(c.Request.Context(), &req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	if s != nil {
		response.Success(c, http.StatusCreated, "registration successful", viewOf(s))
		return
	}
	response.Success(c, http.StatusAccepted, "confirmation code sent", gin.H{"contact": req.Contact()})
}

func (h *AuthHandler) GetPendingRegistration(c *gin.Context) {
	pending, err := h.verifier.PendingRegistration(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}
	if pending == nil {
		response.NotFound(c, "no registration in progress")
		return
	}
	response.Success(c, http.StatusOK, "pending registration", pending)
}

func (h *AuthHandler) CompleteCustomerRegistration(c *gin.Context) {
	var req domain.CompleteRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	s, err := h.verifier.CompleteCustomerRegistration(c.Request.Context(), req.Code)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, "registration successful", viewOf(s))
}

func (h *AuthHandler) AbandonRegistration(c *gin.Context) {
	if err := h.verifier.AbandonRegistration(c.Request.Context()); err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, "registration abandoned", nil)
}
