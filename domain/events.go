package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const EventTypeOrderCreated = "order.created"

// OrderCreatedEvent is the outbox payload published after a saga completes.
type OrderCreatedEvent struct {
	SagaID      string          `json:"saga_id"`
	OrderID     string          `json:"order_id"`
	CustomerID  string          `json:"customer_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Currency    string          `json:"currency"`
	Lines       []OrderLine     `json:"lines"`
	CompletedAt time.Time       `json:"completed_at"`
}
