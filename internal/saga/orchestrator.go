package saga

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/fjod/go_checkout/domain"
	"github.com/fjod/go_checkout/internal/idempotency"
	"github.com/fjod/go_checkout/internal/repository"
)

var (
	// ErrInternal is returned when a transport or store failure terminates
	// the saga; compensations have run (or been escalated) by then.
	ErrInternal = errors.New("internal checkout failure")

	errIllegalTransition = errors.New("illegal transition of saga step")
)

// Checkout runs the full saga for one customer. It is the only operation the
// orchestrator exposes. Outcomes are typed: domain.ErrCheckoutInProgress,
// domain.ErrEmptyCart, *domain.OutOfStockError, *domain.UnknownSKUError,
// *domain.PaymentDeclinedError, or ErrInternal.
func (o *Orchestrator) Checkout(ctx context.Context, customerID, paymentToken string) (*Result, error) {
	if !o.locks.TryAcquire(customerID) {
		o.metrics.countOutcome("in_progress")
		return nil, domain.ErrCheckoutInProgress
	}
	defer o.locks.Release(customerID)

	// step 1: load cart, fail fast if empty
	cart, err := o.loadCart(ctx, customerID)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyCart) {
			o.metrics.countOutcome("empty_cart")
		} else {
			o.metrics.countOutcome("internal_error")
		}
		return nil, err
	}

	// the total is computed once from this snapshot and reused unchanged
	// by payment and order creation
	total := cart.Total()
	key := idempotency.DeriveKey(customerID, cart.Lines)

	if result, err := o.replayByKey(ctx, key); result != nil || err != nil {
		return result, err
	}

	state := domain.NewSagaState(customerID, key)
	state.Currency = o.cfg.Currency
	state.Total = total
	log.Printf("saga %s started for customer %s, key %s, total %s %s",
		state.SagaID, customerID, key, total, state.Currency)

	if err := o.state.CreateSaga(ctx, state); err != nil {
		o.metrics.countOutcome("internal_error")
		return nil, fmt.Errorf("%w: create saga: %v", ErrInternal, err)
	}
	if err := o.advance(ctx, state, domain.SagaStepCartLoaded); err != nil {
		o.metrics.countOutcome("internal_error")
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	// step 2: reserve inventory; nothing to compensate unless the hold was
	// placed but could not be recorded
	if err := o.reserveInventory(ctx, state, cart); err != nil {
		if state.ReservationID != "" {
			return nil, o.failCompensating(state, err)
		}
		return nil, o.failTerminal(state, err)
	}

	// step 3: charge payment; release the reservation on failure
	if err := o.chargePayment(ctx, state, paymentToken); err != nil {
		return nil, o.failCompensating(state, err)
	}

	// step 4: create order; refund and release on failure
	order, err := o.createOrder(ctx, state, cart)
	if err != nil {
		return nil, o.failCompensating(state, err)
	}

	// steps 5 and 6 are best-effort: the saga still reports success
	o.finish(ctx, state, order)

	o.metrics.countOutcome("completed")
	log.Printf("saga %s completed: order %s, total %s %s",
		state.SagaID, state.OrderID, total, state.Currency)
	return &Result{
		OrderID:  state.OrderID,
		Status:   order.Status,
		Total:    total,
		Currency: state.Currency,
	}, nil
}

// replayByKey recognizes a retried checkout with an unchanged cart. A
// completed saga returns its original result instead of charging again; an
// in-flight one reports checkout-in-progress; a failed one starts over.
func (o *Orchestrator) replayByKey(ctx context.Context, key string) (*Result, error) {
	existing, err := o.state.GetSagaByKey(ctx, key)
	if errors.Is(err, repository.ErrSagaNotFound) {
		return nil, nil
	}
	if err != nil {
		o.metrics.countOutcome("internal_error")
		return nil, fmt.Errorf("%w: lookup saga by key: %v", ErrInternal, err)
	}

	switch existing.Outcome {
	case domain.SagaOutcomeCompleted:
		log.Printf("saga %s replayed from idempotency key, order %s", existing.SagaID, existing.OrderID)
		o.metrics.countOutcome("replayed")
		return &Result{
			OrderID:  existing.OrderID,
			Status:   domain.OrderStatusPaid,
			Total:    existing.Total,
			Currency: existing.Currency,
		}, nil
	case domain.SagaOutcomeInProgress, domain.SagaOutcomeCompensating:
		// an order-less saga this old was left behind by a crashed process;
		// sagas with an order are finished by the recovery sweep instead
		if existing.OrderID == "" && time.Since(existing.UpdatedAt) > o.cfg.InFlightStaleAfter {
			o.abandonStale(ctx, existing)
			return nil, nil
		}
		o.metrics.countOutcome("in_progress")
		return nil, domain.ErrCheckoutInProgress
	default:
		// Failed or ManualIntervention: a fresh attempt is allowed
		return nil, nil
	}
}

// abandonStale retires an order-less saga abandoned by a crash so its
// idempotency key stops blocking the customer. A saga that recorded a
// reservation or a charge may still hold live side effects, so it escalates
// to manual intervention instead of plain failure.
func (o *Orchestrator) abandonStale(ctx context.Context, stale *domain.SagaState) {
	log.Printf("saga %s: abandoning stale in-flight attempt at %s, last touched %s",
		stale.SagaID, stale.Step, stale.UpdatedAt.Format(time.RFC3339))

	var err error
	if stale.ReservationID != "" || stale.PaymentRef != "" {
		log.Printf("MANUAL INTERVENTION REQUIRED: saga %s abandoned with reservation %q, payment %q",
			stale.SagaID, stale.ReservationID, stale.PaymentRef)
		err = o.state.MarkManualIntervention(ctx, stale.SagaID, "abandoned mid-flight with unconfirmed side effects")
	} else {
		err = o.state.FailSaga(ctx, stale.SagaID, "abandoned after process crash")
	}
	if err != nil {
		log.Printf("saga %s: failed to retire stale attempt: %v", stale.SagaID, err)
	}
}

// advance moves the saga one step forward, persisting and logging the
// transition.
func (o *Orchestrator) advance(ctx context.Context, state *domain.SagaState, to domain.SagaStep) error {
	if !domain.CanTransitionTo(state.Step, to) {
		return fmt.Errorf("%w: %s -> %s", errIllegalTransition, state.Step, to)
	}

	storeCtx, cancel := context.WithTimeout(ctx, o.cfg.StoreTimeout)
	defer cancel()
	if err := o.state.UpdateStep(storeCtx, state.SagaID, to); err != nil {
		return fmt.Errorf("persist step %s: %w", to, err)
	}

	log.Printf("saga %s: %s -> %s", state.SagaID, state.Step, to)
	state.Step = to
	return nil
}

// failTerminal records a failure that needs no compensation (nothing was
// reserved or charged yet) and maps the error for the caller.
func (o *Orchestrator) failTerminal(state *domain.SagaState, cause error) error {
	if err := o.state.FailSaga(context.Background(), state.SagaID, cause.Error()); err != nil {
		log.Printf("saga %s: failed to record terminal failure: %v", state.SagaID, err)
	}
	state.Outcome = domain.SagaOutcomeFailed
	log.Printf("saga %s failed at %s: %v", state.SagaID, state.Step, cause)

	var oos *domain.OutOfStockError
	var unknown *domain.UnknownSKUError
	switch {
	case errors.As(cause, &oos):
		o.metrics.countOutcome("out_of_stock")
		return cause
	case errors.As(cause, &unknown):
		o.metrics.countOutcome("unknown_sku")
		return cause
	default:
		o.metrics.countOutcome("internal_error")
		return fmt.Errorf("%w: %v", ErrInternal, cause)
	}
}

// failCompensating runs compensations for all applied side effects, then
// records the terminal outcome and maps the error for the caller.
func (o *Orchestrator) failCompensating(state *domain.SagaState, cause error) error {
	log.Printf("saga %s compensating after failure at %s: %v", state.SagaID, state.Step, cause)
	escalated := o.compensate(state, cause)

	var declined *domain.PaymentDeclinedError
	switch {
	case escalated:
		o.metrics.countOutcome("manual_intervention")
		return fmt.Errorf("%w: %v", ErrInternal, cause)
	case errors.As(cause, &declined):
		o.metrics.countOutcome("payment_declined")
		return cause
	default:
		o.metrics.countOutcome("internal_error")
		return fmt.Errorf("%w: %v", ErrInternal, cause)
	}
}
