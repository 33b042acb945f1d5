package gotrue

import (
	"strings"
	"time"
)

// User is the provider's user object.
type User struct {
	ID               string         `json:"id"`
	Aud              string         `json:"aud,omitempty"`
	Role             string         `json:"role,omitempty"`
	Email            string         `json:"email,omitempty"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	Phone            string         `json:"phone,omitempty"`
	PhoneConfirmedAt *time.Time     `json:"phone_confirmed_at,omitempty"`
	UserMetadata     map[string]any `json:"user_metadata,omitempty"`
}

// Session is the token pair returned by the token and verify endpoints. It
// is persisted as is under the provider session key.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user,omitempty"`
}

// signUpResponse is a Session when the provider confirms immediately and a
// bare User when the contact must be confirmed first.
type signUpResponse struct {
	Session
	ID    string `json:"id"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type passwordGrant struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshGrant struct {
	RefreshToken string `json:"refresh_token"`
}

type pkceGrant struct {
	AuthCode     string `json:"auth_code"`
	CodeVerifier string `json:"code_verifier"`
}

type signUpBody struct {
	Email               string         `json:"email,omitempty"`
	Phone               string         `json:"phone,omitempty"`
	Password            string         `json:"password"`
	Data                map[string]any `json:"data,omitempty"`
	CodeChallenge       string         `json:"code_challenge,omitempty"`
	CodeChallengeMethod string         `json:"code_challenge_method,omitempty"`
}

type otpBody struct {
	Email               string `json:"email,omitempty"`
	Phone               string `json:"phone,omitempty"`
	CreateUser          bool   `json:"create_user"`
	CodeChallenge       string `json:"code_challenge,omitempty"`
	CodeChallengeMethod string `json:"code_challenge_method,omitempty"`
}

type verifyBody struct {
	Type  string `json:"type"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	Token string `json:"token"`
}

type updateUserBody struct {
	Password string `json:"password"`
}

// Error is a provider error response.
type Error struct {
	ErrorCode  string `json:"error_code,omitempty"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
}

func (e *Error) Error() string {
	if e.ErrorCode != "" {
		return e.ErrorCode + ": " + e.Message
	}
	return e.Message
}

func (e *Error) signupsDisabled() bool {
	switch e.ErrorCode {
	case "otp_disabled", "signup_disabled", "user_not_found":
		return true
	}
	return strings.Contains(strings.ToLower(e.Message), "signups not allowed")
}
