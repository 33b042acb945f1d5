// internal/domain/admin/repository.go
package admin

import "context"

type Repository interface {
	FindByID(ctx context.Context, id string) (*Administrator, error)
	FindByEmail(ctx context.Context, email string) (*Administrator, error)
	CountActive(ctx context.Context) (int, error)

	// CreateBootstrap inserts the first administrator. It fails with
	// ErrSetupAlreadyComplete when an active administrator already exists.
	CreateBootstrap(ctx context.Context, a *Administrator) (*Administrator, error)

	// IsAdmin is the single round-trip privilege check.
	IsAdmin(ctx context.Context, id string) (bool, error)
}

type InvitationRepository interface {
	// Create stores the invitation together with its placeholder row.
	Create(ctx context.Context, inv *Invitation, placeholder *Administrator) error
	FindPendingByEmail(ctx context.Context, email string) (*Invitation, error)
	ListPending(ctx context.Context) ([]Invitation, error)

	// Redeem consumes the invitation and turns its placeholder into a, keyed
	// by a.ID. A second call for the same invitation fails with
	// ErrInvitationAlreadyUsed.
	Redeem(ctx context.Context, invitationID string, a *Administrator) (*Administrator, error)

	// Revoke deletes an unused invitation and its placeholder.
	Revoke(ctx context.Context, invitationID string) error
}
