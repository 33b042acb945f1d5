// Package identity describes the external identity provider the engine
// signs users in with. It knows nothing about business roles.
package identity

import (
	"context"
	"strings"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// ChannelFor picks the delivery channel from the shape of contact.
func ChannelFor(contact string) Channel {
	if strings.Contains(contact, "@") {
		return ChannelEmail
	}
	return ChannelSMS
}

// Identity is a verified provider user.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Phone  string `json:"phone,omitempty"`
}

type CodeOptions struct {
	// CreateIfMissing lets the provider create a new identity for an unknown
	// contact. Login flows always pass false.
	CreateIfMissing bool
}

type SignUpRequest struct {
	Email    string
	Phone    string
	Password string
	Data     map[string]any
}

// SignUpResult holds the new identity. HasSession is false when the
// provider still requires the contact to be confirmed.
type SignUpResult struct {
	Identity   Identity
	HasSession bool
}

type Provider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Identity, error)
	SignUp(ctx context.Context, req SignUpRequest) (*SignUpResult, error)
	RequestOneTimeCode(ctx context.Context, contact string, opts CodeOptions) error
	VerifyOneTimeCode(ctx context.Context, contact, code string, channel Channel) (*Identity, error)
	ExchangeLinkCode(ctx context.Context, code string) (*Identity, error)
	UpdatePassword(ctx context.Context, newPassword string) error
	SignOut(ctx context.Context) error
	// CurrentIdentity returns nil without error when nobody is signed in.
	CurrentIdentity(ctx context.Context) (*Identity, error)
}
