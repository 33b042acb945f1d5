// internal/repository/postgres/admin_repo.go
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ordering-service/internal/domain/admin"
	xerrors "ordering-service/internal/pkg/errors"
)

type AdminRepository struct {
	db *pgxpool.Pool
}

func NewAdminRepository(db *pgxpool.Pool) *AdminRepository {
	return &AdminRepository{db: db}
}

const adminColumns = `id, name, email, phone, role, created_at, updated_at`

func scanAdmin(row pgx.Row) (*admin.Administrator, error) {
	var a admin.Administrator
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.Phone, &a.Role, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// FindByID retrieves an administrator row of any role.
func (r *AdminRepository) FindByID(ctx context.Context, id string) (*admin.Administrator, error) {
	query := `SELECT ` + adminColumns + ` FROM administrators WHERE id = $1`

	a, err := scanAdmin(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, queryError(err, "failed to find administrator")
	}
	return a, nil
}

// FindByEmail compares emails case-insensitively.
func (r *AdminRepository) FindByEmail(ctx context.Context, email string) (*admin.Administrator, error) {
	query := `SELECT ` + adminColumns + ` FROM administrators WHERE lower(email) = lower($1)`

	a, err := scanAdmin(r.db.QueryRow(ctx, query, email))
	if err != nil {
		return nil, queryError(err, "failed to find administrator")
	}
	return a, nil
}

func (r *AdminRepository) CountActive(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM administrators WHERE role = 'admin'`).Scan(&n)
	if err != nil {
		return 0, queryError(err, "failed to count administrators")
	}
	return n, nil
}

// CreateBootstrap inserts the row only while no active administrator
// exists, so two racing first registrations cannot both succeed.
func (r *AdminRepository) CreateBootstrap(ctx context.Context, a *admin.Administrator) (*admin.Administrator, error) {
	query := `
		INSERT INTO administrators (id, name, email, phone, role)
		SELECT $1, $2, $3, $4, 'admin'
		WHERE NOT EXISTS (SELECT 1 FROM administrators WHERE role = 'admin')
		RETURNING ` + adminColumns

	created, err := scanAdmin(r.db.QueryRow(ctx, query, a.ID, a.Name, a.Email, a.Phone))
	if err != nil {
		err = queryError(err, "failed to create administrator")
		if xerrors.Is(err, xerrors.ErrNotFound) {
			return nil, xerrors.ErrSetupAlreadyComplete
		}
		return nil, err
	}
	return created, nil
}

// IsAdmin calls the is_admin privilege function.
func (r *AdminRepository) IsAdmin(ctx context.Context, id string) (bool, error) {
	var ok bool
	if err := r.db.QueryRow(ctx, `SELECT is_admin($1)`, id).Scan(&ok); err != nil {
		return false, queryError(err, "failed to check privileges")
	}
	return ok, nil
}
