// Package session defines the resolved, role-tagged identity of the device
// user.
package session

import (
	"errors"

	"ordering-service/internal/domain/admin"
	"ordering-service/internal/domain/customer"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

type AdminProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type CustomerProfile struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// Session holds exactly one of Admin or Customer. The role is never stored;
// it follows from which profile is present.
type Session struct {
	Admin    *AdminProfile    `json:"admin,omitempty"`
	Customer *CustomerProfile `json:"customer,omitempty"`
}

var (
	ErrNoProfile      = errors.New("session has no profile")
	ErrTwoProfiles    = errors.New("session has both admin and customer profiles")
	ErrMissingID      = errors.New("session has no user id")
	ErrMissingContact = errors.New("session needs an email or a phone")
)

func FromAdmin(a *admin.Administrator) *Session {
	return &Session{Admin: &AdminProfile{
		ID:    a.ID,
		Name:  a.Name,
		Email: a.Email,
		Phone: a.Phone,
	}}
}

func FromCustomer(c *customer.Customer) *Session {
	return &Session{Customer: &CustomerProfile{
		ID:      c.ID,
		Name:    c.Name,
		Email:   c.Email,
		Phone:   c.Phone,
		Address: c.Address,
	}}
}

func (s *Session) Role() Role {
	if s.Admin != nil {
		return RoleAdmin
	}
	return RoleCustomer
}

func (s *Session) IsAdmin() bool { return s != nil && s.Admin != nil }

func (s *Session) ID() string {
	if s.Admin != nil {
		return s.Admin.ID
	}
	if s.Customer != nil {
		return s.Customer.ID
	}
	return ""
}

func (s *Session) DisplayName() string {
	if s.Admin != nil {
		return s.Admin.Name
	}
	if s.Customer != nil {
		return s.Customer.Name
	}
	return ""
}

func (s *Session) Email() string {
	if s.Admin != nil {
		return s.Admin.Email
	}
	if s.Customer != nil {
		return s.Customer.Email
	}
	return ""
}

func (s *Session) Phone() string {
	if s.Admin != nil {
		return s.Admin.Phone
	}
	if s.Customer != nil {
		return s.Customer.Phone
	}
	return ""
}

// Clone returns a deep copy. It returns nil for a nil session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := &Session{}
	if s.Admin != nil {
		a := *s.Admin
		out.Admin = &a
	}
	if s.Customer != nil {
		c := *s.Customer
		out.Customer = &c
	}
	return out
}

// FillContact sets the email and phone the profile lacks.
func (s *Session) FillContact(email, phone string) *Session {
	switch {
	case s.Admin != nil:
		if s.Admin.Email == "" {
			s.Admin.Email = email
		}
		if s.Admin.Phone == "" {
			s.Admin.Phone = phone
		}
	case s.Customer != nil:
		if s.Customer.Email == "" {
			s.Customer.Email = email
		}
		if s.Customer.Phone == "" {
			s.Customer.Phone = phone
		}
	}
	return s
}

// Validate checks the union and contact invariants.
func (s *Session) Validate() error {
	switch {
	case s.Admin == nil && s.Customer == nil:
		return ErrNoProfile
	case s.Admin != nil && s.Customer != nil:
		return ErrTwoProfiles
	case s.ID() == "":
		return ErrMissingID
	case s.Email() == "" && s.Phone() == "":
		return ErrMissingContact
	}
	return nil
}

// SameUser reports whether both sessions belong to the same id and role.
func (s *Session) SameUser(other *Session) bool {
	if s == nil || other == nil {
		return false
	}
	return s.ID() == other.ID() && s.Role() == other.Role()
}

// View is the flat shape handed to the UI.
type View struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Role        Role   `json:"role"`
}

func (s *Session) View() View {
	return View{
		ID:          s.ID(),
		DisplayName: s.DisplayName(),
		Email:       s.Email(),
		Phone:       s.Phone(),
		Role:        s.Role(),
	}
}
