// internal/repository/postgres/customer_repo.go
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ordering-service/internal/domain/customer"
)

type CustomerRepository struct {
	db *pgxpool.Pool
}

func NewCustomerRepository(db *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{db: db}
}

const customerColumns = `id, name, email, phone, address, created_at, updated_at`

func scanCustomer(row pgx.Row) (*customer.Customer, error) {
	var c customer.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CustomerRepository) FindByID(ctx context.Context, id string) (*customer.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`

	c, err := scanCustomer(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, queryError(err, "failed to find customer")
	}
	return c, nil
}

func (r *CustomerRepository) Create(ctx context.Context, c *customer.Customer) (*customer.Customer, error) {
	query := `
		INSERT INTO customers (id, name, email, phone, address)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + customerColumns

	created, err := scanCustomer(r.db.QueryRow(ctx, query, c.ID, c.Name, c.Email, c.Phone, c.Address))
	if err != nil {
		return nil, queryError(err, "failed to create customer")
	}
	return created, nil
}

func (r *CustomerRepository) Update(ctx context.Context, c *customer.Customer) (*customer.Customer, error) {
	query := `
		UPDATE customers
		SET name = $2, email = $3, phone = $4, address = $5, updated_at = now()
		WHERE id = $1
		RETURNING ` + customerColumns

	updated, err := scanCustomer(r.db.QueryRow(ctx, query, c.ID, c.Name, c.Email, c.Phone, c.Address))
	if err != nil {
		return nil, queryError(err, "failed to update customer")
	}
	return updated, nil
}
