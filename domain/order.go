package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPaid   OrderStatus = "PAID"
	OrderStatusFailed OrderStatus = "FAILED"
)

type OrderLine struct {
	SKU         string          `json:"sku"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int32           `json:"quantity"`
}

type Order struct {
	ID         uuid.UUID       `json:"id"`
	SagaID     uuid.UUID       `json:"saga_id"`
	CustomerID string          `json:"customer_id"`
	Status     OrderStatus     `json:"status"`
	Total      decimal.Decimal `json:"total"`
	Currency   string          `json:"currency"`
	Lines      []OrderLine     `json:"lines"`
	CreatedAt  time.Time       `json:"created_at"`
}

// OrderFromCart snapshots cart lines into order lines. The total is taken
// from the caller, not recomputed, so it always matches the amount charged.
func OrderFromCart(sagaID uuid.UUID, cart *Cart, total decimal.Decimal, currency string) *Order {
	lines := make([]OrderLine, len(cart.Lines))
	for i, l := range cart.Lines {
		lines[i] = OrderLine{
			SKU:         l.SKU,
			ProductName: l.ProductName,
			UnitPrice:   l.UnitPrice,
			Quantity:    l.Quantity,
		}
	}
	return &Order{
		ID:         uuid.New(),
		SagaID:     sagaID,
		CustomerID: cart.CustomerID,
		Status:     OrderStatusPaid,
		Total:      total,
		Currency:   currency,
		Lines:      lines,
	}
}
