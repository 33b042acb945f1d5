// internal/handlers/invitation/invitation_handler.go
package invitation

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ordering-service/internal/domain/admin"
	"ordering-service/internal/domain/session"
	"ordering-service/internal/pkg/response"
)

type Manager interface {
	IsAdminSetupComplete(ctx context.Context) (bool, error)
	CreateInvitation(ctx context.Context, email string) (*admin.IssuedInvitation, error)
	ListInvitations(ctx context.Context) ([]admin.Invitation, error)
	RevokeInvitation(ctx context.Context, id string) error
	IsUserInvited(ctx context.Context, email string) (bool, error)
	ValidateInvitation(ctx context.Context, email, token string) error
	RegisterAdmin(ctx context.Context, req *admin.RegisterRequest) (*session.Session, error)
}

type InvitationHandler struct {
	manager Manager
	logger  *zap.Logger
}

func NewInvitationHandler(manager Manager, logger *zap.Logger) *InvitationHandler {
	return &InvitationHandler{manager: manager, logger: logger}
}

// SetupStatus tells the registration screen whether to bootstrap.
func (h *InvitationHandler) SetupStatus(c *gin.Context) {
	done, err := h.manager.IsAdminSetupComplete(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, "setup status", admin.SetupStatus{SetupComplete: done})
}

func (h *InvitationHandler) Register(c *gin.Context) {
	var req admin.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	s, err := h.manager.RegisterAdmin(c.Request.Context(), &req)
	if err != nil {
		h.logger.Info("administrator registration failed", zap.Error(err))
		response.Fail(c, err)
		return
	}
	if s == nil {
		response.Success(c, http.StatusAccepted, "confirm your email to finish", gin.H{"session": nil})
		return
	}
	v := s.View()
	response.Success(c, http.StatusCreated, "registration successful", gin.H{"session": v})
}

func (h *InvitationHandler) IsInvited(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		response.ValidationError(c, "email is required", nil)
		return
	}

	invited, err := h.manager.IsUserInvited(c.Request.Context(), email)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, "invitation status", gin.H{"invited": invited})
}

func (h *InvitationHandler) Validate(c *gin.Context) {
	var req admin.ValidateInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	if err := h.manager.ValidateInvitation(c.Request.Context(), req.Email, req.Token); err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, "invitation is valid", nil)
}

// ========== Administrator only ==========

func (h *InvitationHandler) Create(c *gin.Context) {
	var req admin.CreateInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	issued, err := h.manager.CreateInvitation(c.Request.Context(), req.Email)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, "invitation created", issued)
}

func (h *InvitationHandler) List(c *gin.Context) {
	list, err := h.manager.ListInvitations(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, "invitations", list)
}

func (h *InvitationHandler) Revoke(c *gin.Context) {
	if err := h.manager.RevokeInvitation(c.Request.Context(), c.Param("id")); err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, "invitation revoked", nil)
}
