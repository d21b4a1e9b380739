package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_checkout/domain"
	"github.com/fjod/go_checkout/internal/repository"
)

// createOrder writes the order record from the cart snapshot taken at the
// start of the saga. The order total is the amount already charged, never
// recomputed from live cart contents.
func (o *Orchestrator) createOrder(ctx context.Context, state *domain.SagaState, cart *domain.Cart) (*domain.Order, error) {
	start := time.Now()
	defer o.metrics.observeStep("create_order", start)

	order := domain.OrderFromCart(state.SagaID, cart, state.Total, state.Currency)

	var orderID string
	err := retryTransport(ctx, o.cfg.TransportRetries, o.cfg.RetryBaseDelay, "create order", func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, o.cfg.StoreTimeout)
		defer cancel()
		id, err := o.orders.CreateOrder(callCtx, order)
		if errors.Is(err, repository.ErrDuplicateSaga) {
			// an earlier attempt committed before its response was lost
			orderID = order.ID.String()
			return nil
		}
		if err != nil {
			return err
		}
		orderID = id
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if err := o.state.SetOrder(ctx, state.SagaID, orderID); err != nil {
		state.OrderID = orderID
		state.Step = domain.SagaStepOrderCreated
		return nil, err
	}

	state.OrderID = orderID
	state.Step = domain.SagaStepOrderCreated
	return order, nil
}
