package auth

import (
	"context"
	"errors"
	"strings"
	"sync"

	"ordering-service/internal/domain/admin"
	"ordering-service/internal/domain/customer"
	"ordering-service/internal/domain/identity"
	"ordering-service/internal/domain/session"
	wsdomain "ordering-service/internal/domain/websocket"
	xerrors "ordering-service/internal/pkg/errors"
)

type mockProvider struct {
	signInFunc      func(ctx context.Context, email, password string) (*identity.Identity, error)
	signUpFunc      func(ctx context.Context, req identity.SignUpRequest) (*identity.SignUpResult, error)
	requestCodeFunc func(ctx context.Context, contact string, opts identity.CodeOptions) error
	verifyCodeFunc  func(ctx context.Context, contact, code string, channel identity.Channel) (*identity.Identity, error)
	exchangeFunc    func(ctx context.Context, code string) (*identity.Identity, error)
	updatePassFunc  func(ctx context.Context, pw string) error

	mu               sync.Mutex
	requestCodeCalls int
	verifyCodeCalls  int
	signOutCalls     int
}

func (m *mockProvider) SignInWithPassword(ctx context.Context, email, password string) (*identity.Identity, error) {
	if m.signInFunc != nil {
		return m.signInFunc(ctx, email, password)
	}
	return nil, xerrors.ErrInvalidCredentials
}

func (m *mockProvider) SignUp(ctx context.Context, req identity.SignUpRequest) (*identity.SignUpResult, error) {
	if m.signUpFunc != nil {
		return m.signUpFunc(ctx, req)
	}
	return nil, errors.New("not used")
}

func (m *mockProvider) RequestOneTimeCode(ctx context.Context, contact string, opts identity.CodeOptions) error {
	m.mu.Lock()
	m.requestCodeCalls++
	m.mu.Unlock()
	if m.requestCodeFunc != nil {
		return m.requestCodeFunc(ctx, contact, opts)
	}
	return nil
}

func (m *mockProvider) VerifyOneTimeCode(ctx context.Context, contact, code string, channel identity.Channel) (*identity.Identity, error) {
	m.mu.Lock()
	m.verifyCodeCalls++
	m.mu.Unlock()
	if m.verifyCodeFunc != nil {
		return m.verifyCodeFunc(ctx, contact, code, channel)
	}
	return nil, xerrors.ErrCodeExpiredOrInvalid
}

func (m *mockProvider) ExchangeLinkCode(ctx context.Context, code string) (*identity.Identity, error) {
	if m.exchangeFunc != nil {
		return m.exchangeFunc(ctx, code)
	}
	return nil, xerrors.ErrCodeExpiredOrInvalid
}

func (m *mockProvider) UpdatePassword(ctx context.Context, pw string) error {
	if m.updatePassFunc != nil {
		return m.updatePassFunc(ctx, pw)
	}
	return nil
}

func (m *mockProvider) SignOut(context.Context) error {
	m.mu.Lock()
	m.signOutCalls++
	m.mu.Unlock()
	return nil
}

func (m *mockProvider) CurrentIdentity(context.Context) (*identity.Identity, error) {
	return nil, nil
}

func (m *mockProvider) counts() (request, verify, signOut int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCodeCalls, m.verifyCodeCalls, m.signOutCalls
}

type mockAdminRepo struct {
	findByIDFunc func(ctx context.Context, id string) (*admin.Administrator, error)
}

func (m *mockAdminRepo) FindByID(ctx context.Context, id string) (*admin.Administrator, error) {
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

func (m *mockAdminRepo) IsAdmin(context.Context, string) (bool, error) { return false, nil }

type mockCustomerRepo struct {
	findByIDFunc func(ctx context.Context, id string) (*customer.Customer, error)
	createFunc   func(ctx context.Context, c *customer.Customer) (*customer.Customer, error)
}

func (m *mockCustomerRepo) FindByID(ctx context.Context, id string) (*customer.Customer, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, xerrors.ErrNotFound
}

func (m *mockCustomerRepo) Create(ctx context.Context, c *customer.Customer) (*customer.Customer, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, c)
	}
	return c, nil
}

func (m *mockCustomerRepo) Update(context.Context, *customer.Customer) (*customer.Customer, error) {
	return nil, errors.New("not used")
}

type mockSessions struct {
	lookupFunc func(ctx context.Context, id *identity.Identity) (*session.Session, error)
	adoptErr   error

	mu      sync.Mutex
	adopted []*session.Session
	lookups int
}

func (m *mockSessions) Lookup(ctx context.Context, id *identity.Identity) (*session.Session, error) {
	m.mu.Lock()
	m.lookups++
	m.mu.Unlock()
	if m.lookupFunc != nil {
		return m.lookupFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockSessions) Adopt(_ context.Context, s *session.Session) error {
	if m.adoptErr != nil {
		return m.adoptErr
	}
	m.mu.Lock()
	m.adopted = append(m.adopted, s)
	m.mu.Unlock()
	return nil
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

type memBackend struct {
	mu   sync.Mutex
	data map[string][]byte
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
	var keys []string
	for k := range b.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}
