package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_checkout/domain"
)

// loadCart fetches the customer's cart snapshot. A missing cart and an empty
// cart both reject the checkout before any saga state is written.
func (o *Orchestrator) loadCart(ctx context.Context, customerID string) (*domain.Cart, error) {
	start := time.Now()
	defer o.metrics.observeStep("load_cart", start)

	storeCtx, cancel := context.WithTimeout(ctx, o.cfg.StoreTimeout)
	defer cancel()

	cart, err := o.carts.GetCart(storeCtx, customerID)
	if errors.Is(err, domain.ErrCartNotFound) {
		return nil, domain.ErrEmptyCart
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load cart: %v", ErrInternal, err)
	}
	if cart.IsEmpty() {
		return nil, domain.ErrEmptyCart
	}
	return cart, nil
}
