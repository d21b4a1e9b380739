package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is an immutable snapshot of a product at the time it was added:
// the unit price does not change while the line sits in an open cart.
type CartLine struct {
	SKU         string          `json:"sku" bson:"sku"`
	ProductName string          `json:"product_name" bson:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price" bson:"unit_price"`
	Quantity    int32           `json:"quantity" bson:"quantity"`
	AddedAt     time.Time       `json:"added_at" bson:"added_at"`
}

// Subtotal returns unit price multiplied by quantity.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt32(l.Quantity))
}

type Cart struct {
	CustomerID string     `json:"customer_id" bson:"customer_id"`
	Lines      []CartLine `json:"lines" bson:"lines"`
	CreatedAt  time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" bson:"updated_at"`
}

// Add merges a line into the cart. Duplicate SKUs are disallowed as
// separate lines: adding an existing SKU increments its quantity and
// keeps the price captured by the first add.
func (c *Cart) Add(line CartLine) error {
	if line.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	for i := range c.Lines {
		if c.Lines[i].SKU == line.SKU {
			c.Lines[i].Quantity += line.Quantity
			return nil
		}
	}
	c.Lines = append(c.Lines, line)
	return nil
}

// Remove deletes the line with the given SKU, if present.
func (c *Cart) Remove(sku string) {
	for i, l := range c.Lines {
		if l.SKU == sku {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return
		}
	}
}

func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// Total sums the line subtotals. The saga computes this once from the
// snapshot taken at checkout start and reuses it for payment and order.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}
