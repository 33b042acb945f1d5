package catalog

type UpdateItemRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	PriceCents  *int64  `json:"price_cents" binding:"omitempty,min=0"`
	Available   *bool   `json:"available"`
}

func (r UpdateItemRequest) Apply(item *Item) {
	if r.Name != nil {
		item.Name = *r.Name
	}
	if r.Description != nil {
		item.Description = *r.Description
	}
	if r.PriceCents != nil {
		item.PriceCents = *r.PriceCents
	}
	if r.Available != nil {
		item.Available = *r.Available
	}
}

type CreateOrderRequest struct {
	CustomerID string      `json:"customer_id" binding:"required"`
	Lines      []OrderLine `json:"lines" binding:"required,min=1"`
}

// Total sums the order lines.
func Total(lines []OrderLine) int64 {
	var total int64
	for _, l := range lines {
		total += int64(l.Quantity) * l.UnitPriceCents
	}
	return total
}
