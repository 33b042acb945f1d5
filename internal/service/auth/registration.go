package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	domain "ordering-service/internal/domain/auth"
	"ordering-service/internal/domain/customer"
	"ordering-service/internal/domain/identity"
	"ordering-service/internal/domain/session"
	xerrors "ordering-service/internal/pkg/errors"
	"ordering-service/internal/pkg/kvstore"
)

// StartCustomerRegistration signs the contact up and keeps the form on the
// device until the code is verified. It returns a session right away only
// when the provider does not require confirmation.
func (s *Service) StartCustomerRegistration(ctx context.Context, req *domain.CustomerRegistrationRequest) (*session.Session, error) {
	email := normalizeContact(req.Email)
	if email == "" && req.Phone == "" {
		return nil, fmt.Errorf("%w: email or phone is required", xerrors.ErrInvalidInput)
	}

	res, err := s.provider.SignUp(ctx, identity.SignUpRequest{
		Email:    email,
		Phone:    req.Phone,
		Password: req.Password,
		Data:     map[string]any{"name": req.Name},
	})
	if err != nil {
		return nil, err
	}

	pending := &domain.PendingRegistration{
		UserID:    res.Identity.UserID,
		Name:      req.Name,
		Email:     email,
		Phone:     req.Phone,
		Address:   req.Address,
		StartedAt: s.now(),
	}

	if res.HasSession {
		return s.finishRegistration(ctx, pending, &res.Identity)
	}

	if err := s.store.Set(ctx, kvstore.KeyPendingRegistration, pending); err != nil {
		return nil, xerrors.Transient(err)
	}
	if err := s.cooldown.MarkSent(ctx, pending.Contact()); err != nil {
		s.logger.Warn("failed to record code send time", zap.Error(err))
	}
	return nil, nil
}

// PendingRegistration returns the form of a registration in progress.
func (s *Service) PendingRegistration(ctx context.Context) (*domain.PendingRegistration, error) {
	var pending domain.PendingRegistration
	found, err := s.store.Get(ctx, kvstore.KeyPendingRegistration, &pending)
	if err != nil {
		return nil, xerrors.Transient(err)
	}
	if !found {
		return nil, nil
	}
	return &pending, nil
}

// CompleteCustomerRegistration verifies the code, creates the customer row
// and signs the new customer in.
func (s *Service) CompleteCustomerRegistration(ctx context.Context, code string) (*session.Session, error) {
	pending, err := s.PendingRegistration(ctx)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		return nil, fmt.Errorf("%w: no registration in progress", xerrors.ErrInvalidInput)
	}

	contact := pending.Contact()
	id, err := s.provider.VerifyOneTimeCode(ctx, contact, code, identity.ChannelFor(contact))
	if err != nil {
		s.record("registration", err)
		return nil, err
	}
	return s.finishRegistration(ctx, pending, id)
}

// AbandonRegistration drops the stored form.
func (s *Service) AbandonRegistration(ctx context.Context) error {
	if err := s.store.Remove(ctx, kvstore.KeyPendingRegistration); err != nil {
		return xerrors.Transient(err)
	}
	return nil
}

func (s *Service) finishRegistration(ctx context.Context, pending *domain.PendingRegistration, id *identity.Identity) (*session.Session, error) {
	row := &customer.Customer{
		ID:      id.UserID,
		Name:    pending.Name,
		Email:   pending.Email,
		Phone:   pending.Phone,
		Address: pending.Address,
	}
	created, err := s.customers.Create(ctx, row)
	if errors.Is(err, xerrors.ErrConflict) {
		// the row survived an earlier attempt that failed after the insert
		created, err = s.customers.FindByID(ctx, id.UserID)
	}
	if err != nil {
		s.record("registration", err)
		s.reverseSignIn(ctx)
		return nil, err
	}

	if err := s.store.Remove(ctx, kvstore.KeyPendingRegistration); err != nil {
		s.logger.Warn("failed to remove pending registration", zap.Error(err))
	}

	sess := session.FromCustomer(created).FillContact(id.Email, id.Phone)
	if err := s.sessions.Adopt(ctx, sess); err != nil {
		s.record("registration", err)
		return nil, err
	}
	s.record("registration", nil)
	return sess, nil
}
