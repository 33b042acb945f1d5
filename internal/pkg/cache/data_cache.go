package cache

import (
	"time"

	"ordering-service/internal/domain/catalog"
	"ordering-service/internal/domain/customer"
)

const DefaultTTL = 5 * time.Minute

// RecentOrdersKey is the single key of the recent orders list.
const RecentOrdersKey = "recent"

// DataCache groups the row caches that must be emptied together on logout.
type DataCache struct {
	Items        *TTL[string, *catalog.Item]
	Customers    *TTL[string, *customer.Customer]
	RecentOrders *TTL[string, []catalog.Order]
}

func NewDataCache(ttl time.Duration, now Clock, recorder Recorder) *DataCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &DataCache{
		Items:        NewTTL[string, *catalog.Item]("items", ttl, now, recorder),
		Customers:    NewTTL[string, *customer.Customer]("customers", ttl, now, recorder),
		RecentOrders: NewTTL[string, []catalog.Order]("recent_orders", ttl, now, recorder),
	}
}

// ClearAll empties every cache.
func (d *DataCache) ClearAll() {
	d.Items.Clear()
	d.Customers.Clear()
	d.RecentOrders.Clear()
}

// Len is the total number of stored entries.
func (d *DataCache) Len() int {
	return d.Items.Len() + d.Customers.Len() + d.RecentOrders.Len()
}
