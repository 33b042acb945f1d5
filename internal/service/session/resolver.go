// Package session owns the device's single resolved session: which identity
// is signed in and whether it is an administrator or a customer.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"ordering-service/internal/domain/admin"
	"ordering-service/internal/domain/customer"
	"ordering-service/internal/domain/identity"
	"ordering-service/internal/domain/session"
	wsdomain "ordering-service/internal/domain/websocket"
	"ordering-service/internal/metrics"
	"ordering-service/internal/pkg/cache"
	xerrors "ordering-service/internal/pkg/errors"
	"ordering-service/internal/pkg/kvstore"
)

// EventPublisher delivers auth state changes to the UI.
type EventPublisher interface {
	Publish(msg *wsdomain.WSMessage)
}

// sessionLoader is implemented by providers that keep their tokens in the
// device store. Logout loads them before the store is purged.
type sessionLoader interface {
	LoadSession(ctx context.Context) error
}

type Resolver struct {
	provider  identity.Provider
	admins    admin.Repository
	customers customer.Repository
	store     *kvstore.Store
	dataCache *cache.DataCache
	events    EventPublisher
	metrics   metrics.Recorder
	logger    *zap.Logger

	group singleflight.Group

	mu   sync.RWMutex
	slot *session.Session
	// generation changes whenever the slot is cleared, so a resolution that
	// started before a logout cannot repopulate the slot afterwards.
	generation uint64
}

func NewResolver(
	provider identity.Provider,
	admins admin.Repository,
	customers customer.Repository,
	store *kvstore.Store,
	dataCache *cache.DataCache,
	events EventPublisher,
	recorder metrics.Recorder,
	logger *zap.Logger,
) *Resolver {
	return &Resolver{
		provider:  provider,
		admins:    admins,
		customers: customers,
		store:     store,
		dataCache: dataCache,
		events:    events,
		metrics:   recorder,
		logger:    logger,
	}
}

// GetSession returns the cached session or resolves it from the provider
// and the row store. Every failure resolves to nil. The result is a copy;
// changing it does not change the resolved session.
func (r *Resolver) GetSession(ctx context.Context) *session.Session {
	if s := r.cached(); s != nil {
		r.metrics.RecordSessionResolution("cached")
		return s.Clone()
	}

	// Callers share one resolution, so one caller's cancellation must not
	// fail it for the others.
	shared := context.WithoutCancel(ctx)
	v, _, _ := r.group.Do("resolve", func() (interface{}, error) {
		return r.resolve(shared), nil
	})
	s, _ := v.(*session.Session)
	return s.Clone()
}

func (r *Resolver) IsAuthenticated(ctx context.Context) bool {
	return r.GetSession(ctx) != nil
}

// IsAdmin asks the row store's privilege function first and falls back to a
// full resolution when that call fails.
func (r *Resolver) IsAdmin(ctx context.Context) bool {
	if s := r.cached(); s != nil {
		return s.IsAdmin()
	}

	id, err := r.provider.CurrentIdentity(ctx)
	if err != nil {
		r.logger.Warn("failed to read current identity", zap.Error(err))
		return false
	}
	if id == nil {
		return false
	}

	ok, err := r.admins.IsAdmin(ctx, id.UserID)
	if err == nil {
		return ok
	}
	r.logger.Warn("privilege check failed, resolving session", zap.String("user_id", id.UserID), zap.Error(err))
	return r.GetSession(ctx).IsAdmin()
}

// Lookup maps a verified identity to a session. It returns nil without error
// when the identity is in neither table.
func (r *Resolver) Lookup(ctx context.Context, id *identity.Identity) (*session.Session, error) {
	a, err := r.admins.FindByID(ctx, id.UserID)
	switch {
	case err == nil && a.Active():
		return complete(session.FromAdmin(a), id)
	case err != nil && !errors.Is(err, xerrors.ErrNotFound):
		return nil, fmt.Errorf("administrator lookup: %w", err)
	}

	c, err := r.customers.FindByID(ctx, id.UserID)
	switch {
	case err == nil:
		return complete(session.FromCustomer(c), id)
	case errors.Is(err, xerrors.ErrNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("customer lookup: %w", err)
	}
}

// Adopt makes s the current session after an explicit login.
func (r *Resolver) Adopt(ctx context.Context, s *session.Session) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("%w: %w", xerrors.ErrInvalidInput, err)
	}

	r.mu.Lock()
	previous := r.slot
	r.slot = s.Clone()
	r.mu.Unlock()

	if previous != nil && !previous.SameUser(s) {
		// another identity on the same device must not see the previous rows
		r.dataCache.ClearAll()
	}
	r.persist(ctx, s)
	r.publish(wsdomain.EventTypeSignedIn, s)
	return nil
}

// Clear empties the in-memory slot. The persisted copy is kept for display.
func (r *Resolver) Clear() {
	r.mu.Lock()
	r.slot = nil
	r.generation++
	r.mu.Unlock()
}

// LastKnownSession returns the persisted copy of the last session, which
// survives restarts and is only meant for display while offline.
func (r *Resolver) LastKnownSession(ctx context.Context) (*session.Session, error) {
	var s session.Session
	found, err := r.store.Get(ctx, kvstore.KeyUserSession, &s)
	if err != nil {
		return nil, xerrors.Transient(err)
	}
	if !found {
		return nil, nil
	}
	return &s, nil
}

type cleanupStep struct {
	name  string
	local bool
	run   func(ctx context.Context) error
}

// Logout runs the cleanup steps in order. A failing step never undoes the
// ones before it and never stops the ones after it. Only local failures
// are returned; a failed remote sign-out is logged.
func (r *Resolver) Logout(ctx context.Context) error {
	if loader, ok := r.provider.(sessionLoader); ok {
		if err := loader.LoadSession(ctx); err != nil {
			r.logger.Warn("failed to load provider session before logout", zap.Error(err))
		}
	}

	steps := []cleanupStep{
		{name: "session_slot", local: true, run: func(context.Context) error {
			r.Clear()
			return nil
		}},
		{name: "data_cache", local: true, run: func(context.Context) error {
			r.dataCache.ClearAll()
			return nil
		}},
		{name: "persisted_auth_keys", local: true, run: func(ctx context.Context) error {
			_, err := r.store.PurgePrefix(ctx, kvstore.AuthPrefix)
			return err
		}},
		{name: "provider_sign_out", run: r.provider.SignOut},
	}

	var localErrs []error
	for _, step := range steps {
		err := step.run(ctx)
		if err == nil {
			continue
		}
		r.metrics.RecordLogoutStepFailure(step.name)
		r.logger.Warn("logout step failed", zap.String("step", step.name), zap.Error(err))
		if step.local {
			localErrs = append(localErrs, fmt.Errorf("%s: %w", step.name, err))
		}
	}

	r.publish(wsdomain.EventTypeSignedOut, nil)
	return errors.Join(localErrs...)
}

func (r *Resolver) cached() *session.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.slot
}

func (r *Resolver) resolve(ctx context.Context) *session.Session {
	r.mu.RLock()
	gen := r.generation
	r.mu.RUnlock()

	id, err := r.provider.CurrentIdentity(ctx)
	if err != nil {
		r.failClosed("identity", err)
		return nil
	}
	if id == nil {
		r.metrics.RecordSessionResolution("anonymous")
		return nil
	}

	s, err := r.Lookup(ctx, id)
	if err != nil {
		r.failClosed("lookup", err, zap.String("user_id", id.UserID))
		return nil
	}
	if s == nil {
		r.metrics.RecordSessionResolution("unregistered")
		r.logger.Info("identity has no administrator or customer row", zap.String("user_id", id.UserID))
		return nil
	}

	r.mu.Lock()
	switch {
	case r.generation != gen:
		r.mu.Unlock()
		return nil
	case r.slot != nil && r.slot.SameUser(s):
		s = r.slot
		r.mu.Unlock()
		return s
	}
	r.slot = s
	r.mu.Unlock()

	r.metrics.RecordSessionResolution(string(s.Role()))
	r.persist(ctx, s)
	return s
}

func (r *Resolver) failClosed(stage string, err error, fields ...zap.Field) {
	r.Clear()
	r.metrics.RecordSessionResolution("error")
	r.logger.Error("session resolution failed", append(fields, zap.String("stage", stage), zap.Error(err))...)
}

func (r *Resolver) persist(ctx context.Context, s *session.Session) {
	if err := r.store.Set(ctx, kvstore.KeyUserSession, s); err != nil {
		r.logger.Warn("failed to persist session", zap.Error(err))
	}
}

func (r *Resolver) publish(event wsdomain.EventType, s *session.Session) {
	if r.events == nil {
		return
	}
	data := wsdomain.AuthStateData{}
	if s != nil {
		data.UserID = s.ID()
		data.Role = string(s.Role())
	}
	r.events.Publish(wsdomain.NewMessage(event, data))
}

// complete fills contact details the row lacks from the verified identity.
func complete(s *session.Session, id *identity.Identity) (*session.Session, error) {
	if err := s.FillContact(id.Email, id.Phone).Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
