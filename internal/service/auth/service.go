// Package auth verifies credentials. It runs the password, one-time code
// and magic link flows and hands the resulting session to the resolver.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"ordering-service/internal/domain/admin"
	domain "ordering-service/internal/domain/auth"
	"ordering-service/internal/domain/customer"
	"ordering-service/internal/domain/identity"
	"ordering-service/internal/domain/session"
	wsdomain "ordering-service/internal/domain/websocket"
	"ordering-service/internal/metrics"
	xerrors "ordering-service/internal/pkg/errors"
	"ordering-service/internal/pkg/kvstore"
)

// Sessions is the part of the session resolver the verifier needs.
type Sessions interface {
	Lookup(ctx context.Context, id *identity.Identity) (*session.Session, error)
	Adopt(ctx context.Context, s *session.Session) error
}

type EventPublisher interface {
	Publish(msg *wsdomain.WSMessage)
}

type Service struct {
	provider  identity.Provider
	admins    admin.Repository
	customers customer.Repository
	sessions  Sessions
	store     *kvstore.Store
	cooldown  *Cooldown
	events    EventPublisher
	metrics   metrics.Recorder
	logger    *zap.Logger
	now       func() time.Time

	mu      sync.Mutex
	entries map[string]*CodeEntry
}

func NewService(
	provider identity.Provider,
	admins admin.Repository,
	customers customer.Repository,
	sessions Sessions,
	store *kvstore.Store,
	cooldown *Cooldown,
	events EventPublisher,
	recorder metrics.Recorder,
	logger *zap.Logger,
) *Service {
	return &Service{
		provider:  provider,
		admins:    admins,
		customers: customers,
		sessions:  sessions,
		store:     store,
		cooldown:  cooldown,
		events:    events,
		metrics:   recorder,
		logger:    logger,
		now:       time.Now,
		entries:   make(map[string]*CodeEntry),
	}
}

// ========== Password ==========

// LoginWithPassword signs in and requires a row in the portal's table.
func (s *Service) LoginWithPassword(ctx context.Context, req *domain.PasswordLoginRequest) (*session.Session, error) {
	id, err := s.provider.SignInWithPassword(ctx, normalizeContact(req.Email), req.Password)
	if err != nil {
		s.record("password", err)
		return nil, err
	}

	sess, err := s.completeLogin(ctx, id, req.Portal)
	s.record("password", err)
	return sess, err
}

// ========== One-time code ==========

// RequestCode sends a code to an existing identity. Calls inside the resend
// window fail with ErrRateLimited and never reach the provider.
func (s *Service) RequestCode(ctx context.Context, contact string) error {
	contact = normalizeContact(contact)
	if contact == "" {
		return fmt.Errorf("%w: contact is required", xerrors.ErrInvalidInput)
	}

	status, err := s.cooldown.Status(ctx, contact)
	if err != nil {
		return err
	}
	if !status.CanResend {
		return fmt.Errorf("%w: retry in %ds", xerrors.ErrRateLimited, status.RetryInSeconds)
	}

	if err := s.provider.RequestOneTimeCode(ctx, contact, identity.CodeOptions{CreateIfMissing: false}); err != nil {
		s.logger.Info("code request rejected", zap.String("channel", string(identity.ChannelFor(contact))), zap.Error(err))
		return err
	}
	if err := s.cooldown.MarkSent(ctx, contact); err != nil {
		s.logger.Warn("failed to record code send time", zap.Error(err))
	}
	s.dropEntry(contact)
	return nil
}

func (s *Service) ResendStatus(ctx context.Context, contact string) (domain.ResendStatus, error) {
	return s.cooldown.Status(ctx, normalizeContact(contact))
}

// VerifyCode exchanges a code and resolves the role for the portal.
func (s *Service) VerifyCode(ctx context.Context, req *domain.VerifyCodeRequest) (*session.Session, error) {
	contact := normalizeContact(req.Contact)
	id, err := s.provider.VerifyOneTimeCode(ctx, contact, strings.TrimSpace(req.Code), identity.ChannelFor(contact))
	if err != nil {
		s.record("code", err)
		return nil, err
	}

	sess, err := s.completeLogin(ctx, id, req.Portal)
	s.record("code", err)
	if err == nil {
		if err := s.cooldown.Reset(ctx, contact); err != nil {
			s.logger.Warn("failed to reset resend window", zap.Error(err))
		}
		s.dropEntry(contact)
	}
	return sess, err
}

// SubmitCodeInput handles the code field. A pasted link or typed code is
// reduced to a code and verified automatically the first time it appears.
func (s *Service) SubmitCodeInput(ctx context.Context, req *domain.CodeInputRequest) (*domain.CodeInputResult, error) {
	contact := normalizeContact(req.Contact)
	code, trigger, err := s.entryFor(contact).Observe(req.Text)
	if err != nil {
		return &domain.CodeInputResult{}, err
	}
	if !trigger {
		return &domain.CodeInputResult{Code: code}, nil
	}

	sess, err := s.VerifyCode(ctx, &domain.VerifyCodeRequest{Contact: contact, Code: code, Portal: req.Portal})
	if err != nil {
		return &domain.CodeInputResult{Code: code, Triggered: true}, err
	}
	return &domain.CodeInputResult{Code: code, Triggered: true, Session: sess}, nil
}

// ========== Magic link ==========

// ExchangeLink completes a magic link. Recovery links stop before role
// resolution; the user sets a new password first.
func (s *Service) ExchangeLink(ctx context.Context, link string) (*domain.LinkResult, error) {
	params, err := linkParams(link)
	if err != nil {
		s.record("link", err)
		return nil, err
	}
	if desc := params.Get("error_description"); desc != "" {
		err := fmt.Errorf("%w: %s", xerrors.ErrCodeExpiredOrInvalid, desc)
		s.record("link", err)
		return nil, err
	}

	id, err := s.provider.ExchangeLinkCode(ctx, params.Get("code"))
	if err != nil {
		s.record("link", err)
		return nil, err
	}

	if params.Get("type") == "recovery" {
		s.publish(wsdomain.EventTypePasswordRecovery, wsdomain.AuthStateData{UserID: id.UserID})
		s.record("link", nil)
		return &domain.LinkResult{Recovery: true}, nil
	}

	sess, err := s.sessions.Lookup(ctx, id)
	if err == nil && sess == nil {
		err = xerrors.ErrNotRegistered
	}
	if err == nil {
		err = s.sessions.Adopt(ctx, sess)
	}
	if err != nil {
		s.reverseSignIn(ctx)
		s.record("link", err)
		return nil, err
	}
	s.record("link", nil)
	return &domain.LinkResult{Session: sess}, nil
}

// CompletePasswordReset sets the new password after a recovery link.
func (s *Service) CompletePasswordReset(ctx context.Context, newPassword string) error {
	if err := s.provider.UpdatePassword(ctx, newPassword); err != nil {
		return err
	}
	s.publish(wsdomain.EventTypeUserUpdated, wsdomain.AuthStateData{})
	return nil
}

// ========== Helpers ==========

// completeLogin finds the row for the portal and adopts the session. Any
// failure signs the provider back out: a verified credential without a
// business row is not a session.
func (s *Service) completeLogin(ctx context.Context, id *identity.Identity, portal domain.Portal) (*session.Session, error) {
	sess, err := s.sessionForPortal(ctx, id, portal)
	if err == nil {
		err = s.sessions.Adopt(ctx, sess)
	}
	if err != nil {
		s.reverseSignIn(ctx)
		return nil, err
	}
	return sess, nil
}

func (s *Service) sessionForPortal(ctx context.Context, id *identity.Identity, portal domain.Portal) (*session.Session, error) {
	switch portal {
	case domain.PortalAdmin:
		a, err := s.admins.FindByID(ctx, id.UserID)
		if errors.Is(err, xerrors.ErrNotFound) || (err == nil && !a.Active()) {
			return nil, xerrors.ErrNotRegistered
		}
		if err != nil {
			return nil, err
		}
		return session.FromAdmin(a).FillContact(id.Email, id.Phone), nil

	case domain.PortalCustomer:
		c, err := s.customers.FindByID(ctx, id.UserID)
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil, xerrors.ErrNotRegistered
		}
		if err != nil {
			return nil, err
		}
		return session.FromCustomer(c).FillContact(id.Email, id.Phone), nil
	}
	return nil, fmt.Errorf("%w: unknown portal %q", xerrors.ErrInvalidInput, portal)
}

func (s *Service) reverseSignIn(ctx context.Context) {
	if err := s.provider.SignOut(ctx); err != nil {
		s.logger.Warn("failed to reverse provider sign-in", zap.Error(err))
	}
}

func (s *Service) entryFor(contact string) *CodeEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[contact]
	if !ok {
		e = &CodeEntry{}
		s.entries[contact] = e
	}
	return e
}

// dropEntry forgets what was typed for contact, so the next code triggers
// again.
func (s *Service) dropEntry(contact string) {
	s.mu.Lock()
	delete(s.entries, contact)
	s.mu.Unlock()
}

func (s *Service) publish(event wsdomain.EventType, data wsdomain.AuthStateData) {
	if s.events != nil {
		s.events.Publish(wsdomain.NewMessage(event, data))
	}
}

func (s *Service) record(flow string, err error) {
	s.metrics.RecordLoginAttempt(flow, outcome(err))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, xerrors.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, xerrors.ErrNotRegistered):
		return "not_registered"
	case errors.Is(err, xerrors.ErrCodeExpiredOrInvalid):
		return "code_invalid"
	case errors.Is(err, xerrors.ErrLinkMalformed):
		return "link_malformed"
	case errors.Is(err, xerrors.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, xerrors.ErrTransientStore):
		return "transient"
	default:
		return "error"
	}
}

// linkParams merges the query and fragment parameters of a magic link.
func linkParams(link string) (url.Values, error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", xerrors.ErrLinkMalformed, err)
	}
	params := u.Query()
	if u.Fragment != "" {
		fragment, err := url.ParseQuery(u.Fragment)
		if err == nil {
			for k, vs := range fragment {
				for _, v := range vs {
					params.Add(k, v)
				}
			}
		}
	}
	if params.Get("code") == "" && params.Get("error_description") == "" {
		return nil, xerrors.ErrLinkMalformed
	}
	return params, nil
}

func normalizeContact(contact string) string {
	contact = strings.TrimSpace(contact)
	if identity.ChannelFor(contact) == identity.ChannelEmail {
		return strings.ToLower(contact)
	}
	return contact
}
