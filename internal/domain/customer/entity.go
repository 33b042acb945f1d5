// internal/domain/customer/entity.go
package customer

import (
	"context"
	"time"
)

// Customer is keyed by the identity provider user id.
type Customer struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email,omitempty" db:"email"`
	Phone     string    `json:"phone,omitempty" db:"phone"`
	Address   string    `json:"address,omitempty" db:"address"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Repository interface {
	FindByID(ctx context.Context, id string) (*Customer, error)
	Create(ctx context.Context, c *Customer) (*Customer, error)
	// Update returns the row as stored.
	Update(ctx context.Context, c *Customer) (*Customer, error)
}
