// internal/domain/catalog/entity.go
package catalog

import (
	"context"
	"time"
)

type Item struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`
	PriceCents  int64     `json:"price_cents" db:"price_cents"`
	Available   bool      `json:"available" db:"available"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type OrderLine struct {
	ItemID         string `json:"item_id"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type Order struct {
	ID         string      `json:"id" db:"id"`
	CustomerID string      `json:"customer_id" db:"customer_id"`
	Lines      []OrderLine `json:"lines" db:"lines"`
	TotalCents int64       `json:"total_cents" db:"total_cents"`
	Status     string      `json:"status" db:"status"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
}

const OrderStatusPlaced = "placed"

type Repository interface {
	FindItem(ctx context.Context, id string) (*Item, error)
	UpdateItem(ctx context.Context, item *Item) (*Item, error)
	RecentOrders(ctx context.Context, limit int) ([]Order, error)
	CreateOrder(ctx context.Context, o *Order) (*Order, error)
}
