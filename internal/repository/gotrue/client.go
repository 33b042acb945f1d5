// Package gotrue is the identity provider client. It speaks the GoTrue
// (Supabase Auth) REST API and keeps the provider token pair on the device.
package gotrue

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"ordering-service/internal/domain/identity"
	xerrors "ordering-service/internal/pkg/errors"
	"ordering-service/internal/pkg/jwt"
	"ordering-service/internal/pkg/kvstore"
)

type Config struct {
	URL       string
	AnonKey   string
	JWTSecret string
	Timeout   time.Duration
	// RedirectURL is where email links send the user back to.
	RedirectURL string
}

type Client struct {
	authURL    string
	anonKey    string
	redirectTo string
	httpClient *http.Client
	store      *kvstore.Store
	verifier   *jwt.Verifier
	logger     *zap.Logger

	mu      sync.Mutex
	session *Session
	loaded  bool
}

var _ identity.Provider = (*Client)(nil)

func New(cfg Config, store *kvstore.Store, logger *zap.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("auth URL is required")
	}
	if cfg.AnonKey == "" {
		return nil, fmt.Errorf("anon key is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		authURL:    strings.TrimRight(cfg.URL, "/") + "/auth/v1",
		anonKey:    cfg.AnonKey,
		redirectTo: cfg.RedirectURL,
		httpClient: &http.Client{Timeout: timeout},
		store:      store,
		verifier:   jwt.NewVerifier(cfg.JWTSecret, "authenticated"),
		logger:     logger,
	}, nil
}

// SignInWithPassword authenticates a user with email/password.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*identity.Identity, error) {
	var s Session
	err := c.request(ctx, http.MethodPost, "/token?grant_type=password", passwordGrant{Email: email, Password: password}, "", &s)
	if err != nil {
		return nil, classify(err, xerrors.ErrInvalidCredentials)
	}
	return c.adopt(ctx, &s)
}

// SignUp creates a new identity. The contact must usually be confirmed with
// a one-time code before a session exists.
func (c *Client) SignUp(ctx context.Context, req identity.SignUpRequest) (*identity.SignUpResult, error) {
	var resp signUpResponse
	body := signUpBody{Email: req.Email, Phone: req.Phone, Password: req.Password, Data: req.Data}
	if err := c.request(ctx, http.MethodPost, "/signup", body, "", &resp); err != nil {
		return nil, classify(err, xerrors.ErrInvalidInput)
	}

	if resp.AccessToken != "" {
		id, err := c.adopt(ctx, &resp.Session)
		if err != nil {
			return nil, err
		}
		return &identity.SignUpResult{Identity: *id, HasSession: true}, nil
	}
	return &identity.SignUpResult{
		Identity: identity.Identity{UserID: resp.ID, Email: resp.Email, Phone: resp.Phone},
	}, nil
}

// RequestOneTimeCode asks the provider to send a code. Emails also carry a
// magic link, so a PKCE verifier is stored for the later code exchange.
func (c *Client) RequestOneTimeCode(ctx context.Context, contact string, opts identity.CodeOptions) error {
	path := "/otp"
	body := otpBody{CreateUser: opts.CreateIfMissing}
	if identity.ChannelFor(contact) == identity.ChannelEmail {
		if c.redirectTo != "" {
			path += "?redirect_to=" + url.QueryEscape(c.redirectTo)
		}
		body.Email = contact
		challenge, err := c.newPKCEChallenge(ctx)
		if err != nil {
			return err
		}
		body.CodeChallenge = challenge
		body.CodeChallengeMethod = "s256"
	} else {
		body.Phone = contact
	}

	if err := c.request(ctx, http.MethodPost, path, body, "", nil); err != nil {
		return classify(err, xerrors.ErrInvalidInput)
	}
	return nil
}

// VerifyOneTimeCode exchanges a code for a session.
func (c *Client) VerifyOneTimeCode(ctx context.Context, contact, code string, channel identity.Channel) (*identity.Identity, error) {
	body := verifyBody{Type: string(channel), Token: code}
	if channel == identity.ChannelEmail {
		body.Email = contact
	} else {
		body.Phone = contact
	}

	var s Session
	if err := c.request(ctx, http.MethodPost, "/verify", body, "", &s); err != nil {
		return nil, classify(err, xerrors.ErrCodeExpiredOrInvalid)
	}
	return c.adopt(ctx, &s)
}

// ExchangeLinkCode trades the code of a magic link for a session using the
// stored PKCE verifier.
func (c *Client) ExchangeLinkCode(ctx context.Context, code string) (*identity.Identity, error) {
	var verifier string
	found, err := c.store.Get(ctx, kvstore.KeyPKCEVerifier, &verifier)
	if err != nil {
		return nil, xerrors.Transient(err)
	}
	if !found {
		return nil, fmt.Errorf("%w: no code verifier on this device", xerrors.ErrCodeExpiredOrInvalid)
	}

	var s Session
	if err := c.request(ctx, http.MethodPost, "/token?grant_type=pkce", pkceGrant{AuthCode: code, CodeVerifier: verifier}, "", &s); err != nil {
		return nil, classify(err, xerrors.ErrCodeExpiredOrInvalid)
	}
	if err := c.store.Remove(ctx, kvstore.KeyPKCEVerifier); err != nil {
		c.logger.Warn("failed to remove code verifier", zap.Error(err))
	}
	return c.adopt(ctx, &s)
}

// UpdatePassword sets a new password for the signed-in user.
func (c *Client) UpdatePassword(ctx context.Context, newPassword string) error {
	s, err := c.freshSession(ctx)
	if err != nil {
		return err
	}
	if s == nil {
		return xerrors.ErrSessionExpired
	}
	if err := c.request(ctx, http.MethodPut, "/user", updateUserBody{Password: newPassword}, s.AccessToken, nil); err != nil {
		return classify(err, xerrors.ErrInvalidInput)
	}
	return nil
}

// SignOut revokes the session remotely. Local tokens are dropped even when
// the remote call fails.
func (c *Client) SignOut(ctx context.Context) error {
	if _, err := c.current(ctx); err != nil {
		c.logger.Warn("failed to load provider session before sign-out", zap.Error(err))
	}

	c.mu.Lock()
	s := c.session
	c.session = nil
	c.loaded = true
	c.mu.Unlock()

	if err := c.store.Remove(ctx, kvstore.KeyProviderSession, kvstore.KeyPKCEVerifier); err != nil {
		c.logger.Warn("failed to remove provider session", zap.Error(err))
	}

	if s == nil || s.AccessToken == "" {
		return nil
	}
	if err := c.request(ctx, http.MethodPost, "/logout", nil, s.AccessToken, nil); err != nil {
		return classify(err, nil)
	}
	return nil
}

// LoadSession reads the persisted token pair into memory so a later SignOut
// can revoke it even after the device store was purged.
func (c *Client) LoadSession(ctx context.Context) error {
	_, err := c.current(ctx)
	return err
}

// CurrentIdentity returns the signed-in identity, refreshing an expired
// access token first. It returns nil when nobody is signed in.
func (c *Client) CurrentIdentity(ctx context.Context) (*identity.Identity, error) {
	s, err := c.freshSession(ctx)
	if err != nil || s == nil {
		return nil, err
	}
	return c.identityOf(s)
}

func (c *Client) freshSession(ctx context.Context) (*Session, error) {
	s, err := c.current(ctx)
	if err != nil || s == nil {
		return nil, err
	}
	if !c.verifier.Expired(s.AccessToken) {
		return s, nil
	}
	if s.RefreshToken == "" {
		c.forget(ctx)
		return nil, nil
	}

	var refreshed Session
	err = c.request(ctx, http.MethodPost, "/token?grant_type=refresh_token", refreshGrant{RefreshToken: s.RefreshToken}, "", &refreshed)
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests {
			c.logger.Info("provider session could not be refreshed", zap.Error(err))
			c.forget(ctx)
			return nil, nil
		}
		return nil, classify(err, nil)
	}
	if _, err := c.adopt(ctx, &refreshed); err != nil {
		return nil, err
	}
	return &refreshed, nil
}

func (c *Client) current(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		var s Session
		found, err := c.store.Get(ctx, kvstore.KeyProviderSession, &s)
		if err != nil {
			return nil, xerrors.Transient(err)
		}
		if found && s.AccessToken != "" {
			c.session = &s
		}
		c.loaded = true
	}
	return c.session, nil
}

// adopt keeps s as the current provider session.
func (c *Client) adopt(ctx context.Context, s *Session) (*identity.Identity, error) {
	id, err := c.identityOf(s)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.session = s
	c.loaded = true
	c.mu.Unlock()

	if err := c.store.Set(ctx, kvstore.KeyProviderSession, s); err != nil {
		c.logger.Warn("failed to persist provider session", zap.Error(err))
	}
	return id, nil
}

func (c *Client) forget(ctx context.Context) {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	if err := c.store.Remove(ctx, kvstore.KeyProviderSession); err != nil {
		c.logger.Warn("failed to remove provider session", zap.Error(err))
	}
}

func (c *Client) identityOf(s *Session) (*identity.Identity, error) {
	if s.User != nil && s.User.ID != "" {
		return &identity.Identity{UserID: s.User.ID, Email: s.User.Email, Phone: s.User.Phone}, nil
	}
	claims, err := c.verifier.Verify(s.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", xerrors.ErrSessionExpired, err)
	}
	return &identity.Identity{UserID: claims.UserID(), Email: claims.Email, Phone: claims.Phone}, nil
}

func (c *Client) newPKCEChallenge(ctx context.Context) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate code verifier: %w", err)
	}
	verifier := base64.RawURLEncoding.EncodeToString(buf)
	if err := c.store.Set(ctx, kvstore.KeyPKCEVerifier, verifier); err != nil {
		return "", xerrors.Transient(err)
	}
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}

// request performs one call. Provider failures come back as *Error and
// network failures as transient errors.
func (c *Client) request(ctx context.Context, method, path string, in any, accessToken string, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.authURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return xerrors.Transient(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return xerrors.Transient(fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode >= 400 {
		return parseError(respBody, resp.StatusCode)
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func parseError(body []byte, statusCode int) error {
	var errResp struct {
		ErrorCode        string `json:"error_code"`
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil {
		return &Error{Message: string(body), StatusCode: statusCode}
	}

	msg := errResp.Msg
	for _, alt := range []string{errResp.Message, errResp.ErrorDescription, errResp.Error} {
		if msg == "" {
			msg = alt
		}
	}
	return &Error{ErrorCode: errResp.ErrorCode, Message: msg, StatusCode: statusCode}
}

// classify maps a provider error onto the failure taxonomy. clientErr is
// the meaning of a 4xx for the calling flow.
func classify(err error, clientErr error) error {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.StatusCode >= 500:
		return xerrors.Transient(apiErr)
	case apiErr.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", xerrors.ErrRateLimited, apiErr)
	case apiErr.signupsDisabled():
		return fmt.Errorf("%w: %w", xerrors.ErrNotRegistered, apiErr)
	case clientErr != nil:
		return fmt.Errorf("%w: %w", clientErr, apiErr)
	default:
		return apiErr
	}
}
