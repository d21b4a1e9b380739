package saga

import (
	"context"
	"time"

	"github.com/fjod/go_checkout/domain"
	"github.com/fjod/go_checkout/internal/inventory"
)

// reserveInventory places one batched reservation for every cart line. The
// reservation either covers the whole cart or nothing is held. Transport
// failures are retried; out-of-stock and unknown-SKU answers are final.
func (o *Orchestrator) reserveInventory(ctx context.Context, state *domain.SagaState, cart *domain.Cart) error {
	start := time.Now()
	defer o.metrics.observeStep("reserve_inventory", start)

	items := make([]inventory.ReserveItem, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		items = append(items, inventory.ReserveItem{SKU: line.SKU, Quantity: line.Quantity})
	}

	var reservationID string
	err := retryTransport(ctx, o.cfg.TransportRetries, o.cfg.RetryBaseDelay, "reserve inventory", func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, o.cfg.InventoryTimeout)
		defer cancel()
		id, err := o.inventory.Reserve(callCtx, state.IdempotencyKey, items)
		if err != nil {
			return err
		}
		reservationID = id
		return nil
	})
	if err != nil {
		return err
	}

	if err := o.state.SetReservation(ctx, state.SagaID, reservationID); err != nil {
		// the hold exists but was not recorded; release it before failing
		state.ReservationID = reservationID
		state.Step = domain.SagaStepInventoryReserved
		return err
	}

	state.ReservationID = reservationID
	state.Step = domain.SagaStepInventoryReserved
	return nil
}
