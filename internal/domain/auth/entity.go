// internal/domain/auth/entity.go
package auth

import "time"

// PendingRegistration is kept on the device between the code request and
// its verification. The password is never persisted.
type PendingRegistration struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

func (p *PendingRegistration) Contact() string {
	if p.Email != "" {
		return p.Email
	}
	return p.Phone
}
