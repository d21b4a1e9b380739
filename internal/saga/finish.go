package saga

import (
	"context"
	"log"
	"time"

	"github.com/fjod/go_checkout/domain"
)

// finish clears the cart and marks the saga completed, enqueueing the
// order-created event in the same transaction. Both are best-effort: the
// customer has paid and has an order, so failures here are logged and the
// checkout still reports success.
func (o *Orchestrator) finish(ctx context.Context, state *domain.SagaState, order *domain.Order) {
	start := time.Now()
	defer o.metrics.observeStep("finish", start)

	clearCtx, cancel := context.WithTimeout(ctx, o.cfg.StoreTimeout)
	defer cancel()
	if err := o.carts.ClearCart(clearCtx, state.CustomerID); err != nil {
		// the step stays ORDER_CREATED so the missed clear is visible in the
		// durable record; the cart store TTL removes the cart eventually
		log.Printf("saga %s: failed to clear cart for customer %s: %v", state.SagaID, state.CustomerID, err)
	} else {
		log.Printf("saga %s: %s -> %s", state.SagaID, state.Step, domain.SagaStepCartCleared)
		state.Step = domain.SagaStepCartCleared
	}

	event := &domain.OrderCreatedEvent{
		SagaID:      state.SagaID.String(),
		OrderID:     state.OrderID,
		CustomerID:  state.CustomerID,
		TotalAmount: state.Total,
		Currency:    state.Currency,
		Lines:       order.Lines,
		CompletedAt: time.Now().UTC(),
	}

	// completion must survive caller cancellation once payment and order
	// exist, so the store call runs on a detached context
	completeCtx, cancelComplete := context.WithTimeout(context.Background(), o.cfg.StoreTimeout)
	defer cancelComplete()
	if err := o.state.CompleteSaga(completeCtx, state.SagaID, state.Step, event); err != nil {
		// the publisher's recovery sweep picks this saga up later
		log.Printf("saga %s: failed to mark completed: %v", state.SagaID, err)
		return
	}
	state.Outcome = domain.SagaOutcomeCompleted
}
