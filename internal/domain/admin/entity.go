// internal/domain/admin/entity.go
package admin

import (
	"strings"
	"time"
)

type Role string

const (
	RoleInvited Role = "invited"
	RoleAdmin   Role = "admin"
)

// Administrator is a row of the administrators table. A row with RoleInvited
// is a placeholder created ahead of the user's credentials and never backs a
// session.
type Administrator struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Phone     string    `json:"phone,omitempty" db:"phone"`
	Role      Role      `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

func (a *Administrator) Active() bool {
	return a != nil && a.Role == RoleAdmin
}

// Invitation grants one email the right to register as an administrator.
type Invitation struct {
	ID              string     `json:"id" db:"id"`
	Email           string     `json:"email" db:"email"`
	TokenHash       string     `json:"-" db:"token_hash"`
	AdministratorID string     `json:"administrator_id" db:"administrator_id"`
	CreatedBy       string     `json:"created_by" db:"created_by"`
	ExpiresAt       time.Time  `json:"expires_at" db:"expires_at"`
	UsedAt          *time.Time `json:"used_at,omitempty" db:"used_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

// Pending reports whether the invitation is unused and unexpired at now.
func (i *Invitation) Pending(now time.Time) bool {
	return i.UsedAt == nil && now.Before(i.ExpiresAt)
}

// IssuedFor compares emails case-insensitively.
func (i *Invitation) IssuedFor(email string) bool {
	return NormalizeEmail(i.Email) == NormalizeEmail(email)
}

// IssuedInvitation carries the plaintext token, which exists only at creation.
type IssuedInvitation struct {
	Invitation
	Token string `json:"token"`
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
