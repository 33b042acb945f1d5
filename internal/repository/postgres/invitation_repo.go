// internal/repository/postgres/invitation_repo.go
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ordering-service/internal/domain/admin"
	xerrors "ordering-service/internal/pkg/errors"
)

type InvitationRepository struct {
	db *pgxpool.Pool
}

func NewInvitationRepository(db *pgxpool.Pool) *InvitationRepository {
	return &InvitationRepository{db: db}
}

const invitationColumns = `id, email, token_hash, administrator_id, created_by, expires_at, used_at, created_at`

func scanInvitation(row pgx.Row) (*admin.Invitation, error) {
	var inv admin.Invitation
	err := row.Scan(&inv.ID, &inv.Email, &inv.TokenHash, &inv.AdministratorID,
		&inv.CreatedBy, &inv.ExpiresAt, &inv.UsedAt, &inv.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// Create stores the placeholder row and its invitation. Earlier unredeemed
// invitations for the same email are superseded.
func (r *InvitationRepository) Create(ctx context.Context, inv *admin.Invitation, placeholder *admin.Administrator) error {
	return withTx(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`DELETE FROM administrators WHERE lower(email) = lower($1) AND role = 'invited'`,
			placeholder.Email)
		if err != nil {
			return queryError(err, "failed to supersede invitations")
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO administrators (id, name, email, phone, role)
			VALUES ($1, $2, $3, $4, 'invited')
			RETURNING created_at, updated_at`,
			placeholder.ID, placeholder.Name, placeholder.Email, placeholder.Phone,
		).Scan(&placeholder.CreatedAt, &placeholder.UpdatedAt)
		if err != nil {
			return queryError(err, "failed to create placeholder administrator")
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO admin_invitations (id, email, token_hash, administrator_id, created_by, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at`,
			inv.ID, inv.Email, inv.TokenHash, placeholder.ID, inv.CreatedBy, inv.ExpiresAt,
		).Scan(&inv.CreatedAt)
		if err != nil {
			return queryError(err, "failed to create invitation")
		}
		inv.AdministratorID = placeholder.ID
		return nil
	})
}

// FindPendingByEmail returns the newest unused, unexpired invitation.
func (r *InvitationRepository) FindPendingByEmail(ctx context.Context, email string) (*admin.Invitation, error) {
	query := `
		SELECT ` + invitationColumns + `
		FROM admin_invitations
		WHERE lower(email) = lower($1) AND used_at IS NULL AND expires_at > now()
		ORDER BY created_at DESC
		LIMIT 1`

	inv, err := scanInvitation(r.db.QueryRow(ctx, query, email))
	if err != nil {
		return nil, queryError(err, "failed to find invitation")
	}
	return inv, nil
}

func (r *InvitationRepository) ListPending(ctx context.Context) ([]admin.Invitation, error) {
	query := `
		SELECT ` + invitationColumns + `
		FROM admin_invitations
		WHERE used_at IS NULL AND expires_at > now()
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, queryError(err, "failed to list invitations")
	}
	defer rows.Close()

	var invitations []admin.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, queryError(err, "failed to scan invitation")
		}
		invitations = append(invitations, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError(err, "failed to list invitations")
	}
	return invitations, nil
}

// Redeem marks the invitation used and turns its placeholder into an active
// administrator keyed by a.ID. Only one caller can win the conditional
// update; the others see ErrInvitationAlreadyUsed.
func (r *InvitationRepository) Redeem(ctx context.Context, invitationID string, a *admin.Administrator) (*admin.Administrator, error) {
	var redeemed *admin.Administrator
	err := withTx(ctx, r.db, func(tx pgx.Tx) error {
		var placeholderID string
		err := tx.QueryRow(ctx, `
			UPDATE admin_invitations
			SET used_at = now()
			WHERE id = $1 AND used_at IS NULL AND expires_at > now()
			RETURNING administrator_id`,
			invitationID,
		).Scan(&placeholderID)
		if err != nil {
			err = queryError(err, "failed to consume invitation")
			if xerrors.Is(err, xerrors.ErrNotFound) {
				return xerrors.ErrInvitationAlreadyUsed
			}
			return err
		}

		row := tx.QueryRow(ctx, `
			UPDATE administrators
			SET id = $2, name = $3, phone = $4, role = 'admin', updated_at = now()
			WHERE id = $1 AND role = 'invited'
			RETURNING `+adminColumns,
			placeholderID, a.ID, a.Name, a.Phone,
		)
		redeemed, err = scanAdmin(row)
		if err != nil {
			err = queryError(err, "failed to activate administrator")
			if xerrors.Is(err, xerrors.ErrNotFound) {
				return fmt.Errorf("placeholder %s already active: %w", placeholderID, xerrors.ErrInvitationAlreadyUsed)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return redeemed, nil
}

// Revoke deletes the placeholder; the invitation goes with it.
func (r *InvitationRepository) Revoke(ctx context.Context, invitationID string) error {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM administrators
		WHERE role = 'invited'
		  AND id = (SELECT administrator_id FROM admin_invitations WHERE id = $1 AND used_at IS NULL)`,
		invitationID)
	if err != nil {
		return queryError(err, "failed to revoke invitation")
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}
