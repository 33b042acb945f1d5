// Package catalog serves items, customers and orders through the data
// cache. Reads are read-through; writes replace the cached row with the one
// the row store returned.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"ordering-service/internal/domain/catalog"
	"ordering-service/internal/domain/customer"
	"ordering-service/internal/domain/session"
	"ordering-service/internal/pkg/cache"
	xerrors "ordering-service/internal/pkg/errors"
)

const DefaultRecentOrdersLimit = 20

type Sessions interface {
	GetSession(ctx context.Context) *session.Session
}

type Service struct {
	repo      catalog.Repository
	customers customer.Repository
	sessions  Sessions
	cache     *cache.DataCache
	limit     int
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(
	repo catalog.Repository,
	customers customer.Repository,
	sessions Sessions,
	dataCache *cache.DataCache,
	recentLimit int,
	logger *zap.Logger,
) *Service {
	if recentLimit <= 0 {
		recentLimit = DefaultRecentOrdersLimit
	}
	return &Service{
		repo:      repo,
		customers: customers,
		sessions:  sessions,
		cache:     dataCache,
		limit:     recentLimit,
		logger:    logger,
		now:       time.Now,
	}
}

// ========== Items ==========

func (s *Service) GetItem(ctx context.Context, id string) (*catalog.Item, error) {
	if _, err := s.requireSession(ctx); err != nil {
		return nil, err
	}
	return s.item(ctx, id)
}

func (s *Service) item(ctx context.Context, id string) (*catalog.Item, error) {
	return s.cache.Items.GetOrLoad(ctx, id, func(ctx context.Context) (*catalog.Item, error) {
		return s.repo.FindItem(ctx, id)
	})
}

// UpdateItem is restricted to administrators.
func (s *Service) UpdateItem(ctx context.Context, id string, req *catalog.UpdateItemRequest) (*catalog.Item, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}

	item, err := s.repo.FindItem(ctx, id)
	if err != nil {
		return nil, err
	}
	req.Apply(item)

	updated, err := s.repo.UpdateItem(ctx, item)
	if err != nil {
		s.cache.Items.Delete(id)
		return nil, err
	}
	s.cache.Items.Set(id, updated)
	return updated, nil
}

// ========== Customers ==========

// GetCustomer returns a customer row. Customers may only read their own.
func (s *Service) GetCustomer(ctx context.Context, id string) (*customer.Customer, error) {
	if err := s.requireSelfOrAdmin(ctx, id); err != nil {
		return nil, err
	}
	return s.cache.Customers.GetOrLoad(ctx, id, func(ctx context.Context) (*customer.Customer, error) {
		return s.customers.FindByID(ctx, id)
	})
}

func (s *Service) UpdateCustomer(ctx context.Context, id string, req *customer.UpdateCustomerRequest) (*customer.Customer, error) {
	if err := s.requireSelfOrAdmin(ctx, id); err != nil {
		return nil, err
	}

	c, err := s.customers.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	req.Apply(c)

	updated, err := s.customers.Update(ctx, c)
	if err != nil {
		s.cache.Customers.Delete(id)
		return nil, err
	}
	s.cache.Customers.Set(id, updated)
	// the dashboard list shows customer names
	s.cache.RecentOrders.Delete(cache.RecentOrdersKey)
	return updated, nil
}

// ========== Orders ==========

// RecentOrders lists the newest orders for the admin dashboard.
func (s *Service) RecentOrders(ctx context.Context) ([]catalog.Order, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.cache.RecentOrders.GetOrLoad(ctx, cache.RecentOrdersKey, func(ctx context.Context) ([]catalog.Order, error) {
		return s.repo.RecentOrders(ctx, s.limit)
	})
}

// CreateOrder places an order priced from the current items. Customers may
// only order for themselves.
func (s *Service) CreateOrder(ctx context.Context, req *catalog.CreateOrderRequest) (*catalog.Order, error) {
	if err := s.requireSelfOrAdmin(ctx, req.CustomerID); err != nil {
		return nil, err
	}
	if len(req.Lines) == 0 {
		return nil, fmt.Errorf("%w: order has no lines", xerrors.ErrInvalidInput)
	}

	lines := make([]catalog.OrderLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		if l.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be positive", xerrors.ErrInvalidInput)
		}
		item, err := s.item(ctx, l.ItemID)
		if err != nil {
			return nil, err
		}
		if !item.Available {
			return nil, fmt.Errorf("%w: item %s is not available", xerrors.ErrInvalidInput, item.ID)
		}
		lines = append(lines, catalog.OrderLine{ItemID: item.ID, Quantity: l.Quantity, UnitPriceCents: item.PriceCents})
	}

	order := &catalog.Order{
		ID:         ulid.Make().String(),
		CustomerID: req.CustomerID,
		Lines:      lines,
		TotalCents: catalog.Total(lines),
		Status:     catalog.OrderStatusPlaced,
		CreatedAt:  s.now(),
	}
	created, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return nil, err
	}
	s.cache.RecentOrders.Delete(cache.RecentOrdersKey)

	s.logger.Info("order placed",
		zap.String("order_id", created.ID),
		zap.String("customer_id", created.CustomerID),
		zap.Int64("total_cents", created.TotalCents),
	)
	return created, nil
}

// ========== Access ==========

func (s *Service) requireSession(ctx context.Context) (*session.Session, error) {
	sess := s.sessions.GetSession(ctx)
	if sess == nil {
		return nil, xerrors.ErrUnauthorized
	}
	return sess, nil
}

func (s *Service) requireAdmin(ctx context.Context) (*session.Session, error) {
	sess, err := s.requireSession(ctx)
	if err != nil {
		return nil, err
	}
	if !sess.IsAdmin() {
		return nil, xerrors.ErrForbidden
	}
	return sess, nil
}

func (s *Service) requireSelfOrAdmin(ctx context.Context, customerID string) error {
	sess, err := s.requireSession(ctx)
	if err != nil {
		return err
	}
	if sess.IsAdmin() || sess.ID() == customerID {
		return nil
	}
	return xerrors.ErrForbidden
}
