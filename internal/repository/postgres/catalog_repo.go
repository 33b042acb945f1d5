// internal/repository/postgres/catalog_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ordering-service/internal/domain/catalog"
)

type CatalogRepository struct {
	db *pgxpool.Pool
}

func NewCatalogRepository(db *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{db: db}
}

const (
	itemColumns  = `id, name, description, price_cents, available, updated_at`
	orderColumns = `id, customer_id, lines, total_cents, status, created_at`
)

func scanItem(row pgx.Row) (*catalog.Item, error) {
	var it catalog.Item
	err := row.Scan(&it.ID, &it.Name, &it.Description, &it.PriceCents, &it.Available, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func scanOrder(row pgx.Row) (*catalog.Order, error) {
	var (
		o     catalog.Order
		lines []byte
	)
	err := row.Scan(&o.ID, &o.CustomerID, &lines, &o.TotalCents, &o.Status, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(lines, &o.Lines); err != nil {
		return nil, fmt.Errorf("decode order lines: %w", err)
	}
	return &o, nil
}

func (r *CatalogRepository) FindItem(ctx context.Context, id string) (*catalog.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`

	it, err := scanItem(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, queryError(err, "failed to find item")
	}
	return it, nil
}

func (r *CatalogRepository) UpdateItem(ctx context.Context, item *catalog.Item) (*catalog.Item, error) {
	query := `
		UPDATE items
		SET name = $2, description = $3, price_cents = $4, available = $5, updated_at = now()
		WHERE id = $1
		RETURNING ` + itemColumns

	it, err := scanItem(r.db.QueryRow(ctx, query, item.ID, item.Name, item.Description, item.PriceCents, item.Available))
	if err != nil {
		return nil, queryError(err, "failed to update item")
	}
	return it, nil
}

func (r *CatalogRepository) RecentOrders(ctx context.Context, limit int) ([]catalog.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, queryError(err, "failed to list orders")
	}
	defer rows.Close()

	orders := make([]catalog.Order, 0, limit)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, queryError(err, "failed to scan order")
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError(err, "failed to list orders")
	}
	return orders, nil
}

func (r *CatalogRepository) CreateOrder(ctx context.Context, o *catalog.Order) (*catalog.Order, error) {
	lines, err := json.Marshal(o.Lines)
	if err != nil {
		return nil, fmt.Errorf("encode order lines: %w", err)
	}

	query := `
		INSERT INTO orders (id, customer_id, lines, total_cents, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + orderColumns

	created, err := scanOrder(r.db.QueryRow(ctx, query, o.ID, o.CustomerID, lines, o.TotalCents, o.Status))
	if err != nil {
		return nil, queryError(err, "failed to create order")
	}
	return created, nil
}
