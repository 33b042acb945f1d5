// internal/domain/auth/dto.go
package auth

import "ordering-service/internal/domain/session"

// Portal is the login screen the request came from. It decides which table
// the verified identity must be found in.
type Portal string

const (
	PortalCustomer Portal = "customer"
	PortalAdmin    Portal = "admin"
)

func (p Portal) Valid() bool {
	return p == PortalCustomer || p == PortalAdmin
}

// PasswordLoginRequest for email + password login
type PasswordLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Portal   Portal `json:"portal" binding:"required,oneof=customer admin"`
}

type RequestCodeRequest struct {
	Contact string `json:"contact" binding:"required"`
}

type VerifyCodeRequest struct {
	Contact string `json:"contact" binding:"required"`
	Code    string `json:"code" binding:"required,len=6"`
	Portal  Portal `json:"portal" binding:"required,oneof=customer admin"`
}

// CodeInputRequest carries whatever is currently typed or pasted in the code
// field.
type CodeInputRequest struct {
	Contact string `json:"contact" binding:"required"`
	Text    string `json:"text"`
	Portal  Portal `json:"portal" binding:"required,oneof=customer admin"`
}

type CodeInputResult struct {
	Code      string           `json:"code,omitempty"`
	Triggered bool             `json:"triggered"`
	Session   *session.Session `json:"-"`
}

type ExchangeLinkRequest struct {
	Link string `json:"link" binding:"required"`
}

// LinkResult is the outcome of a magic link. Recovery links do not resolve a
// session; the user must set a new password first.
type LinkResult struct {
	Session  *session.Session `json:"-"`
	Recovery bool             `json:"recovery"`
}

type CompletePasswordResetRequest struct {
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

// ResendStatus drives the resend button of the code screen.
type ResendStatus struct {
	CanResend      bool `json:"can_resend"`
	RetryInSeconds int  `json:"retry_in_seconds"`
}

// CustomerRegistrationRequest is the sign-up form. Either email or phone
// receives the confirmation code.
type CustomerRegistrationRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"omitempty,email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Password string `json:"password" binding:"required,min=8"`
}

// Contact is where the confirmation code goes.
func (r CustomerRegistrationRequest) Contact() string {
	if r.Email != "" {
		return r.Email
	}
	return r.Phone
}

type CompleteRegistrationRequest struct {
	Code string `json:"code" binding:"required"`
}
