package cart

import (
	"context"

	"github.com/fjod/go_checkout/domain"
)

// Repository persists carts. GetCart returns domain.ErrCartNotFound when the
// customer has no cart document.
type Repository interface {
	GetCart(ctx context.Context, customerID string) (*domain.Cart, error)
	AddLine(ctx context.Context, customerID string, line domain.CartLine) error
	RemoveLine(ctx context.Context, customerID string, sku string) error
	DeleteCart(ctx context.Context, customerID string) error
}
