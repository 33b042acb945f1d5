// Package invitation gates administrator registration. The first
// administrator bootstraps the system; every later one needs an invitation
// that can be redeemed exactly once.
package invitation

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"ordering-service/internal/domain/admin"
	"ordering-service/internal/domain/identity"
	"ordering-service/internal/domain/session"
	xerrors "ordering-service/internal/pkg/errors"
	"ordering-service/internal/pkg/kvstore"
)

const (
	DefaultTTL = 7 * 24 * time.Hour
	tokenBytes = 32
)

// Sessions is the part of the session resolver the manager needs.
type Sessions interface {
	GetSession(ctx context.Context) *session.Session
	Adopt(ctx context.Context, s *session.Session) error
}

// Sender delivers the plaintext token to the invitee.
type Sender interface {
	SendInvitation(ctx context.Context, email, token string, expiresAt time.Time) error
}

type Manager struct {
	admins      admin.Repository
	invitations admin.InvitationRepository
	provider    identity.Provider
	sessions    Sessions
	store       *kvstore.Store
	sender      Sender
	ttl         time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

func NewManager(
	admins admin.Repository,
	invitations admin.InvitationRepository,
	provider identity.Provider,
	sessions Sessions,
	store *kvstore.Store,
	sender Sender,
	ttl time.Duration,
	logger *zap.Logger,
) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		admins:      admins,
		invitations: invitations,
		provider:    provider,
		sessions:    sessions,
		store:       store,
		sender:      sender,
		ttl:         ttl,
		logger:      logger,
		now:         time.Now,
	}
}

// IsAdminSetupComplete reports whether an active administrator exists.
// Once true it stays true on this device.
func (m *Manager) IsAdminSetupComplete(ctx context.Context) (bool, error) {
	var done bool
	found, err := m.store.Get(ctx, kvstore.KeyAdminSetupComplete, &done)
	if err != nil {
		m.logger.Warn("failed to read setup flag", zap.Error(err))
	} else if found && done {
		return true, nil
	}

	n, err := m.admins.CountActive(ctx)
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	m.markSetupComplete(ctx)
	return true, nil
}

// CreateInvitation issues an invitation for email. The plaintext token is
// returned once and never stored.
func (m *Manager) CreateInvitation(ctx context.Context, email string) (*admin.IssuedInvitation, error) {
	caller, err := m.requireAdmin(ctx)
	if err != nil {
		return nil, err
	}

	email = admin.NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", xerrors.ErrInvalidInput)
	}

	existing, err := m.admins.FindByEmail(ctx, email)
	switch {
	case err == nil && existing.Active():
		return nil, fmt.Errorf("%w: %s is already an administrator", xerrors.ErrConflict, email)
	case err != nil && !errors.Is(err, xerrors.ErrNotFound):
		return nil, err
	}

	token, hash, err := newToken()
	if err != nil {
		return nil, err
	}

	now := m.now()
	placeholder := &admin.Administrator{
		ID:        ulid.Make().String(),
		Email:     email,
		Role:      admin.RoleInvited,
		CreatedAt: now,
		UpdatedAt: now,
	}
	inv := &admin.Invitation{
		ID:              ulid.Make().String(),
		Email:           email,
		TokenHash:       hash,
		AdministratorID: placeholder.ID,
		CreatedBy:       caller.ID(),
		ExpiresAt:       now.Add(m.ttl),
		CreatedAt:       now,
	}
	if err := m.invitations.Create(ctx, inv, placeholder); err != nil {
		return nil, err
	}

	m.logger.Info("invitation created",
		zap.String("invitation_id", inv.ID),
		zap.String("email", email),
		zap.String("created_by", inv.CreatedBy),
	)

	if m.sender != nil {
		if err := m.sender.SendInvitation(ctx, email, token, inv.ExpiresAt); err != nil {
			m.logger.Warn("failed to deliver invitation", zap.String("invitation_id", inv.ID), zap.Error(err))
		}
	}

	return &admin.IssuedInvitation{Invitation: *inv, Token: token}, nil
}

// ListInvitations returns the unused invitations.
func (m *Manager) ListInvitations(ctx context.Context) ([]admin.Invitation, error) {
	if _, err := m.requireAdmin(ctx); err != nil {
		return nil, err
	}
	return m.invitations.ListPending(ctx)
}

func (m *Manager) RevokeInvitation(ctx context.Context, id string) error {
	if _, err := m.requireAdmin(ctx); err != nil {
		return err
	}
	if err := m.invitations.Revoke(ctx, id); err != nil {
		return err
	}
	m.logger.Info("invitation revoked", zap.String("invitation_id", id))
	return nil
}

// IsUserInvited reports whether email holds a pending, unexpired invitation.
func (m *Manager) IsUserInvited(ctx context.Context, email string) (bool, error) {
	_, err := m.pendingInvitation(ctx, email)
	if errors.Is(err, xerrors.ErrNotInvited) {
		return false, nil
	}
	return err == nil, err
}

// ValidateInvitation checks token against the pending invitation for email.
func (m *Manager) ValidateInvitation(ctx context.Context, email, token string) error {
	inv, err := m.pendingInvitation(ctx, email)
	if err != nil {
		return err
	}
	return checkToken(inv, token)
}

// RegisterAdmin creates the provider identity and the administrator row.
// Without an active administrator it bootstraps the first one; otherwise
// the email must hold a pending invitation.
func (m *Manager) RegisterAdmin(ctx context.Context, req *admin.RegisterRequest) (*session.Session, error) {
	email := admin.NormalizeEmail(req.Email)

	setupComplete, err := m.IsAdminSetupComplete(ctx)
	if err != nil {
		return nil, err
	}

	var inv *admin.Invitation
	if setupComplete {
		inv, err = m.pendingInvitation(ctx, email)
		if err != nil {
			return nil, err
		}
		if req.Token != "" {
			if err := checkToken(inv, req.Token); err != nil {
				return nil, err
			}
		}
	}

	res, err := m.provider.SignUp(ctx, identity.SignUpRequest{
		Email:    email,
		Phone:    req.Phone,
		Password: req.Password,
		Data:     map[string]any{"name": req.Name},
	})
	if err != nil {
		return nil, err
	}

	now := m.now()
	row := &admin.Administrator{
		ID:        res.Identity.UserID,
		Name:      req.Name,
		Email:     email,
		Phone:     req.Phone,
		Role:      admin.RoleAdmin,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var created *admin.Administrator
	if inv == nil {
		created, err = m.admins.CreateBootstrap(ctx, row)
		if errors.Is(err, xerrors.ErrSetupAlreadyComplete) {
			m.markSetupComplete(ctx)
		}
	} else {
		created, err = m.redeem(ctx, inv, &res.Identity, row)
	}
	if err != nil {
		m.reverseSignUp(ctx, res)
		return nil, err
	}

	m.markSetupComplete(ctx)
	m.logger.Info("administrator registered",
		zap.String("administrator_id", created.ID),
		zap.Bool("bootstrap", inv == nil),
	)

	if !res.HasSession {
		return nil, nil
	}
	sess := session.FromAdmin(created).FillContact(res.Identity.Email, res.Identity.Phone)
	if err := m.sessions.Adopt(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (m *Manager) redeem(ctx context.Context, inv *admin.Invitation, id *identity.Identity, row *admin.Administrator) (*admin.Administrator, error) {
	if id.Email != "" && !inv.IssuedFor(id.Email) {
		return nil, fmt.Errorf("%w: registered email does not match the invitation", xerrors.ErrNotInvited)
	}
	return m.invitations.Redeem(ctx, inv.ID, row)
}

func (m *Manager) pendingInvitation(ctx context.Context, email string) (*admin.Invitation, error) {
	inv, err := m.invitations.FindPendingByEmail(ctx, admin.NormalizeEmail(email))
	if errors.Is(err, xerrors.ErrNotFound) {
		return nil, xerrors.ErrNotInvited
	}
	if err != nil {
		return nil, err
	}
	if !inv.Pending(m.now()) {
		return nil, xerrors.ErrNotInvited
	}
	return inv, nil
}

func (m *Manager) requireAdmin(ctx context.Context) (*session.Session, error) {
	s := m.sessions.GetSession(ctx)
	if !s.IsAdmin() {
		return nil, xerrors.ErrForbidden
	}
	return s, nil
}

func (m *Manager) markSetupComplete(ctx context.Context) {
	if err := m.store.Set(ctx, kvstore.KeyAdminSetupComplete, true); err != nil {
		m.logger.Warn("failed to persist setup flag", zap.Error(err))
	}
}

// reverseSignUp drops the provider session of a registration that did not
// produce an administrator row.
func (m *Manager) reverseSignUp(ctx context.Context, res *identity.SignUpResult) {
	if !res.HasSession {
		return
	}
	if err := m.provider.SignOut(ctx); err != nil {
		m.logger.Warn("failed to reverse provider sign-up", zap.Error(err))
	}
}

func newToken() (token, hash string, err error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate token: %w", err)
	}
	token = base64.RawURLEncoding.EncodeToString(buf)

	h, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", "", fmt.Errorf("hash token: %w", err)
	}
	return token, string(h), nil
}

func checkToken(inv *admin.Invitation, token string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(inv.TokenHash), []byte(token)); err != nil {
		return fmt.Errorf("%w: invitation token does not match", xerrors.ErrNotInvited)
	}
	return nil
}
