package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"ordering-service/internal/domain/admin"
	"ordering-service/internal/domain/customer"
	"ordering-service/internal/domain/identity"
	wsdomain "ordering-service/internal/domain/websocket"
	xerrors "ordering-service/internal/pkg/errors"
)

type mockProvider struct {
	currentIdentityFunc func(ctx context.Context) (*identity.Identity, error)
	signOutFunc         func(ctx context.Context) error

	mu           sync.Mutex
	signOutCalls int
}

func (m *mockProvider) SignInWithPassword(context.Context, string, string) (*identity.Identity, error) {
	return nil, errors.New("not used")
}

func (m *mockProvider) SignUp(context.Context, identity.SignUpRequest) (*identity.SignUpResult, error) {
	return nil, errors.New("not used")
}

func (m *mockProvider) RequestOneTimeCode(context.Context, string, identity.CodeOptions) error {
	return errors.New("not used")
}

func (m *mockProvider) VerifyOneTimeCode(context.Context, string, string, identity.Channel) (*identity.Identity, error) {
	return nil, errors.New("not used")
}

func (m *mockProvider) ExchangeLinkCode(context.Context, string) (*identity.Identity, error) {
	return nil, errors.New("not used")
}

func (m *mockProvider) UpdatePassword(context.Context, string) error {
	return errors.New("not used")
}

func (m *mockProvider) SignOut(ctx context.Context) error {
	m.mu.Lock()
	m.signOutCalls++
	m.mu.Unlock()
	if m.signOutFunc != nil {
		return m.signOutFunc(ctx)
	}
	return nil
}

func (m *mockProvider) CurrentIdentity(ctx context.Context) (*identity.Identity, error) {
	if m.currentIdentityFunc != nil {
		return m.currentIdentityFunc(ctx)
	}
	return nil, nil
}

type mockAdminRepo struct {
	findByIDFunc func(ctx context.Context, id string) (*admin.Administrator, error)
	isAdminFunc  func(ctx context.Context, id string) (bool, error)

	mu            sync.Mutex
	findByIDCalls int
}

func (m *mockAdminRepo) FindByID(ctx context.Context, id string) (*admin.Administrator, error) {
	m.mu.Lock()
	m.findByIDCalls++
	m.mu.Unlock()
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, xerrors.ErrNotFound
}

func (m *mockAdminRepo) FindByEmail(context.Context, string) (*admin.Administrator, error) {
	return nil, xerrors.ErrNotFound
}

func (m *mockAdminRepo) CountActive(context.Context) (int, error) { return 0, nil }

func (m *mockAdminRepo) CreateBootstrap(context.Context, *admin.Administrator) (*admin.Administrator, error) {
	return nil, errors.New("not used")
}

func (m *mockAdminRepo) IsAdmin(ctx context.Context, id string) (bool, error) {
	if m.isAdminFunc != nil {
		return m.isAdminFunc(ctx, id)
	}
	return false, errors.New("privilege function unavailable")
}

func (m *mockAdminRepo) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findByIDCalls
}

type mockCustomerRepo struct {
	findByIDFunc func(ctx context.Context, id string) (*customer.Customer, error)
}

func (m *mockCustomerRepo) FindByID(ctx context.Context, id string) (*customer.Customer, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, xerrors.ErrNotFound
}

func (m *mockCustomerRepo) Create(context.Context, *customer.Customer) (*customer.Customer, error) {
	return nil, errors.New("not used")
}

func (m *mockCustomerRepo) Update(context.Context, *customer.Customer) (*customer.Customer, error) {
	return nil, errors.New("not used")
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []wsdomain.EventType
}

func (p *recordingPublisher) Publish(msg *wsdomain.WSMessage) {
	p.mu.Lock()
	p.events = append(p.events, msg.Type)
	p.mu.Unlock()
}

// memBackend is an in-memory kvstore.Backend.
type memBackend struct {
	mu      sync.Mutex
	data    map[string][]byte
	keysErr error
}

func newMemBackend() *memBackend {
	return &memBackend{data: make(map[string][]byte)}
}

func (b *memBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[key]
	return v, ok, nil
}

func (b *memBackend) Set(_ context.Context, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = value
	return nil
}

func (b *memBackend) Delete(_ context.Context, keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range keys {
		delete(b.data, k)
	}
	return nil
}

func (b *memBackend) Keys(_ context.Context, prefix string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.keysErr != nil {
		return nil, b.keysErr
	}
	var keys []string
	for k := range b.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// loadingProvider keeps its tokens in the device store and reads them back
// on LoadSession.
type loadingProvider struct {
	*mockProvider
	loadSessionFunc func(ctx context.Context) error
}

func (p *loadingProvider) LoadSession(ctx context.Context) error {
	return p.loadSessionFunc(ctx)
}
