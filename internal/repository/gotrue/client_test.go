package gotrue

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"ordering-service/internal/domain/identity"
	xerrors "ordering-service/internal/pkg/errors"
	"ordering-service/internal/pkg/jwt"
	"ordering-service/internal/pkg/kvstore"
)

const testSecret = "test-secret"

func accessToken(t *testing.T, sub, email string, exp time.Time) string {
	t.Helper()
	claims := &jwt.Claims{
		Email: email,
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   sub,
			Audience:  []string{"authenticated"},
			ExpiresAt: gojwt.NewNumericDate(exp),
		},
	}
	s, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func newStore(t *testing.T) *kvstore.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	backend, err := kvstore.NewSQLiteBackend(context.Background(), db)
	require.NoError(t, err)
	return kvstore.New(backend)
}

func newClient(t *testing.T, handler http.HandlerFunc) (*Client, *kvstore.Store) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	store := newStore(t)
	c, err := New(Config{URL: srv.URL, AnonKey: "anon", JWTSecret: testSecret}, store, zap.NewNop())
	require.NoError(t, err)
	return c, store
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestSignInWithPassword_PersistsSession(t *testing.T) {
	token := accessToken(t, "user-1", "ana@example.com", time.Now().Add(time.Hour))
	c, store := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "anon", r.Header.Get("apikey"))
		writeJSON(w, http.StatusOK, Session{AccessToken: token, RefreshToken: "r1", User: &User{ID: "user-1", Email: "ana@example.com"}})
	})

	id, err := c.SignInWithPassword(context.Background(), "ana@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.UserID)

	var persisted Session
	found, err := store.Get(context.Background(), kvstore.KeyProviderSession, &persisted)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "r1", persisted.RefreshToken)

	current, err := c.CurrentIdentity(context.Background())
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "user-1", current.UserID)
}

func TestSignInWithPassword_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   map[string]any
		want   error
	}{
		{"bad password", http.StatusBadRequest, map[string]any{"error_code": "invalid_credentials", "msg": "Invalid login credentials"}, xerrors.ErrInvalidCredentials},
		{"legacy shape", http.StatusBadRequest, map[string]any{"error": "invalid_grant", "error_description": "Invalid login credentials"}, xerrors.ErrInvalidCredentials},
		{"server down", http.StatusBadGateway, map[string]any{"message": "upstream"}, xerrors.ErrTransientStore},
		{"throttled", http.StatusTooManyRequests, map[string]any{"msg": "slow down"}, xerrors.ErrRateLimited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			_, err := c.SignInWithPassword(context.Background(), "ana@example.com", "pw")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRequestOneTimeCode_NeverCreatesIdentity(t *testing.T) {
	var got otpBody
	c, store := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, map[string]any{})
	})

	err := c.RequestOneTimeCode(context.Background(), "ana@example.com", identity.CodeOptions{})
	require.NoError(t, err)
	assert.False(t, got.CreateUser)
	assert.Equal(t, "ana@example.com", got.Email)
	assert.Equal(t, "s256", got.CodeChallengeMethod)
	assert.NotEmpty(t, got.CodeChallenge)

	var verifier string
	found, err := store.Get(context.Background(), kvstore.KeyPKCEVerifier, &verifier)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestRequestOneTimeCode_RedirectOnlyForEmail(t *testing.T) {
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Query().Get("redirect_to"))
		writeJSON(w, http.StatusOK, map[string]any{})
	}))
	t.Cleanup(srv.Close)
	c, err := New(Config{URL: srv.URL, AnonKey: "anon", RedirectURL: "http://127.0.0.1:8080/auth/callback"}, newStore(t), zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, c.RequestOneTimeCode(context.Background(), "ana@example.com", identity.CodeOptions{}))
	require.NoError(t, c.RequestOneTimeCode(context.Background(), "+351900000000", identity.CodeOptions{}))

	assert.Equal(t, []string{"http://127.0.0.1:8080/auth/callback", ""}, queries)
}

func TestRequestOneTimeCode_UnknownContact(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error_code": "otp_disabled", "msg": "Signups not allowed for otp"})
	})

	err := c.RequestOneTimeCode(context.Background(), "+351911111111", identity.CodeOptions{})
	assert.ErrorIs(t, err, xerrors.ErrNotRegistered)
}

func TestVerifyOneTimeCode_Expired(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/verify", r.URL.Path)
		writeJSON(w, http.StatusForbidden, map[string]any{"error_code": "otp_expired", "msg": "Token has expired or is invalid"})
	})

	_, err := c.VerifyOneTimeCode(context.Background(), "ana@example.com", "123456", identity.ChannelEmail)
	assert.ErrorIs(t, err, xerrors.ErrCodeExpiredOrInvalid)
}

func TestExchangeLinkCode_UsesStoredVerifier(t *testing.T) {
	token := accessToken(t, "user-3", "rui@example.com", time.Now().Add(time.Hour))
	c, store := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		var grant pkceGrant
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&grant))
		assert.Equal(t, "pkce", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "link-code", grant.AuthCode)
		assert.Equal(t, "stored-verifier", grant.CodeVerifier)
		writeJSON(w, http.StatusOK, Session{AccessToken: token, RefreshToken: "r3"})
	})
	require.NoError(t, store.Set(context.Background(), kvstore.KeyPKCEVerifier, "stored-verifier"))

	id, err := c.ExchangeLinkCode(context.Background(), "link-code")
	require.NoError(t, err)
	assert.Equal(t, "user-3", id.UserID)
	assert.Equal(t, "rui@example.com", id.Email)

	keys, err := store.Keys(context.Background(), kvstore.KeyPKCEVerifier)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestExchangeLinkCode_WithoutVerifier(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("provider must not be called")
	})

	_, err := c.ExchangeLinkCode(context.Background(), "link-code")
	assert.ErrorIs(t, err, xerrors.ErrCodeExpiredOrInvalid)
}

func TestCurrentIdentity_RefreshesExpiredToken(t *testing.T) {
	fresh := accessToken(t, "user-1", "ana@example.com", time.Now().Add(time.Hour))
	calls := 0
	c, store := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "refresh_token", r.URL.Query().Get("grant_type"))
		writeJSON(w, http.StatusOK, Session{AccessToken: fresh, RefreshToken: "r2"})
	})
	stale := Session{AccessToken: accessToken(t, "user-1", "ana@example.com", time.Now().Add(-time.Hour)), RefreshToken: "r1"}
	require.NoError(t, store.Set(context.Background(), kvstore.KeyProviderSession, stale))

	id, err := c.CurrentIdentity(context.Background())
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "user-1", id.UserID)
	assert.Equal(t, 1, calls)
}

func TestCurrentIdentity_RevokedRefreshToken(t *testing.T) {
	c, store := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error_code": "refresh_token_not_found", "msg": "Invalid Refresh Token"})
	})
	stale := Session{AccessToken: accessToken(t, "user-1", "", time.Now().Add(-time.Hour)), RefreshToken: "gone"}
	require.NoError(t, store.Set(context.Background(), kvstore.KeyProviderSession, stale))

	id, err := c.CurrentIdentity(context.Background())
	require.NoError(t, err)
	assert.Nil(t, id)
}

func TestCurrentIdentity_NobodySignedIn(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("provider must not be called")
	})

	id, err := c.CurrentIdentity(context.Background())
	require.NoError(t, err)
	assert.Nil(t, id)
}

func TestSignOut_ClearsLocalTokensWhenRemoteFails(t *testing.T) {
	token := accessToken(t, "user-1", "ana@example.com", time.Now().Add(time.Hour))
	c, store := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/v1/logout" {
			assert.Equal(t, "Bearer "+token, r.Header.Get("Authorization"))
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"message": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, Session{AccessToken: token, RefreshToken: "r1"})
	})
	_, err := c.SignInWithPassword(context.Background(), "ana@example.com", "pw")
	require.NoError(t, err)

	err = c.SignOut(context.Background())
	assert.ErrorIs(t, err, xerrors.ErrTransientStore)

	id, err := c.CurrentIdentity(context.Background())
	require.NoError(t, err)
	assert.Nil(t, id)

	keys, err := store.Keys(context.Background(), kvstore.AuthPrefix)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestSignUp_PendingConfirmation(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/signup", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{"id": "user-9", "email": "new@example.com"})
	})

	res, err := c.SignUp(context.Background(), identity.SignUpRequest{Email: "new@example.com", Password: "longpassword"})
	require.NoError(t, err)
	assert.False(t, res.HasSession)
	assert.Equal(t, "user-9", res.Identity.UserID)
}

func TestSignOut_AfterRestartRevokesPersistedSession(t *testing.T) {
	ctx := context.Background()
	token := accessToken(t, "user-1", "ana@example.com", time.Now().Add(time.Hour))
	logouts := 0
	c, store := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/logout", r.URL.Path)
		assert.Equal(t, "Bearer "+token, r.Header.Get("Authorization"))
		logouts++
		w.WriteHeader(http.StatusNoContent)
	})
	require.NoError(t, store.Set(ctx, kvstore.KeyProviderSession, Session{AccessToken: token, RefreshToken: "r1"}))

	require.NoError(t, c.SignOut(ctx))
	assert.Equal(t, 1, logouts)
}

func TestSignOut_LoadedSessionSurvivesStorePurge(t *testing.T) {
	ctx := context.Background()
	token := accessToken(t, "user-1", "ana@example.com", time.Now().Add(time.Hour))
	logouts := 0
	c, store := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		logouts++
		w.WriteHeader(http.StatusNoContent)
	})
	require.NoError(t, store.Set(ctx, kvstore.KeyProviderSession, Session{AccessToken: token, RefreshToken: "r1"}))

	require.NoError(t, c.LoadSession(ctx))
	_, err := store.PurgePrefix(ctx, kvstore.AuthPrefix)
	require.NoError(t, err)

	require.NoError(t, c.SignOut(ctx))
	assert.Equal(t, 1, logouts)
}
