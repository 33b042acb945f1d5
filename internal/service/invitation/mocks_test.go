package invitation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"ordering-service/internal/domain/admin"
	"ordering-service/internal/domain/identity"
	"ordering-service/internal/domain/session"
	xerrors "ordering-service/internal/pkg/errors"
)

// memAdmins keeps administrators and invitations in memory. It implements
// both repositories so redemption can flip the placeholder row.
type memAdmins struct {
	mu          sync.Mutex
	rows        map[string]*admin.Administrator
	invitations map[string]*admin.Invitation
	countErr    error
	now         func() time.Time
}

func newMemAdmins(now func() time.Time) *memAdmins {
	return &memAdmins{
		rows:        make(map[string]*admin.Administrator),
		invitations: make(map[string]*admin.Invitation),
		now:         now,
	}
}

func (m *memAdmins) FindByID(_ context.Context, id string) (*admin.Administrator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memAdmins) FindByEmail(_ context.Context, email string) (*admin.Administrator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.rows {
		if strings.EqualFold(a.Email, email) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (m *memAdmins) CountActive(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return 0, m.countErr
	}
	n := 0
	for _, a := range m.rows {
		if a.Active() {
			n++
		}
	}
	return n, nil
}

func (m *memAdmins) CreateBootstrap(_ context.Context, a *admin.Administrator) (*admin.Administrator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Active() {
			return nil, xerrors.ErrSetupAlreadyComplete
		}
	}
	cp := *a
	m.rows[a.ID] = &cp
	return a, nil
}

func (m *memAdmins) IsAdmin(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	return ok && a.Active(), nil
}

func (m *memAdmins) Create(_ context.Context, inv *admin.Invitation, placeholder *admin.Administrator) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cpInv, cpRow := *inv, *placeholder
	m.invitations[inv.ID] = &cpInv
	m.rows[placeholder.ID] = &cpRow
	return nil
}

func (m *memAdmins) FindPendingByEmail(_ context.Context, email string) (*admin.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invitations {
		if inv.IssuedFor(email) && inv.Pending(m.now()) {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (m *memAdmins) ListPending(context.Context) ([]admin.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []admin.Invitation
	for _, inv := range m.invitations {
		if inv.UsedAt == nil {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (m *memAdmins) Redeem(_ context.Context, invitationID string, a *admin.Administrator) (*admin.Administrator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invitations[invitationID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	if inv.UsedAt != nil {
		return nil, xerrors.ErrInvitationAlreadyUsed
	}
	used := m.now()
	inv.UsedAt = &used
	delete(m.rows, inv.AdministratorID)
	cp := *a
	m.rows[a.ID] = &cp
	return a, nil
}

func (m *memAdmins) Revoke(_ context.Context, invitationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invitations[invitationID]
	if !ok || inv.UsedAt != nil {
		return xerrors.ErrNotFound
	}
	delete(m.rows, inv.AdministratorID)
	delete(m.invitations, invitationID)
	return nil
}

type mockProvider struct {
	signUpFunc func(ctx context.Context, req identity.SignUpRequest) (*identity.SignUpResult, error)

	mu           sync.Mutex
	signUpCalls  int
	signOutCalls int
}

func (m *mockProvider) SignInWithPassword(context.Context, string, string) (*identity.Identity, error) {
	return nil, errors.New("not used")
}

func (m *mockProvider) SignUp(ctx context.Context, req identity.SignUpRequest) (*identity.SignUpResult, error) {
	m.mu.Lock()
	m.signUpCalls++
	m.mu.Unlock()
	if m.signUpFunc != nil {
		return m.signUpFunc(ctx, req)
	}
	return &identity.SignUpResult{
		Identity:   identity.Identity{UserID: "uid-" + req.Email, Email: req.Email},
		HasSession: true,
	}, nil
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

func (m *mockProvider) UpdatePassword(context.Context, string) error { return errors.New("not used") }

func (m *mockProvider) SignOut(context.Context) error {
	m.mu.Lock()
	m.signOutCalls++
	m.mu.Unlock()
	return nil
}

func (m *mockProvider) CurrentIdentity(context.Context) (*identity.Identity, error) { return nil, nil }

type mockSessions struct {
	current *session.Session

	mu      sync.Mutex
	adopted []*session.Session
}

func (m *mockSessions) GetSession(context.Context) *session.Session { return m.current }

func (m *mockSessions) Adopt(_ context.Context, s *session.Session) error {
	m.mu.Lock()
	m.adopted = append(m.adopted, s)
	m.mu.Unlock()
	return nil
}

type sentInvitation struct {
	email string
	token string
}

type mockSender struct {
	err  error
	sent []sentInvitation
}

func (m *mockSender) SendInvitation(_ context.Context, email, token string, _ time.Time) error {
	m.sent = append(m.sent, sentInvitation{email: email, token: token})
	return m.err
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
