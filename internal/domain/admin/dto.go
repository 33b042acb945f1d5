package admin

// CreateInvitationRequest is sent by an administrator inviting a new one.
type CreateInvitationRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// RegisterRequest completes administrator registration. Token is only
// checked when it is supplied.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
	Phone    string `json:"phone"`
	Token    string `json:"token,omitempty"`
}

type ValidateInvitationRequest struct {
	Email string `json:"email" binding:"required,email"`
	Token string `json:"token" binding:"required"`
}

// SetupStatus tells the registration screen which flow to show.
type SetupStatus struct {
	SetupComplete bool `json:"setup_complete"`
}
