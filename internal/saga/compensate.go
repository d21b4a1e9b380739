package saga

import (
	"context"
	"log"

	"github.com/fjod/go_checkout/domain"
)

// compensate undoes applied side effects in reverse order: refund before
// release. Each compensation is retried with backoff; if any still fails
// after the last attempt the saga is parked for manual intervention and
// compensate reports the escalation. It never honors caller cancellation.
func (o *Orchestrator) compensate(state *domain.SagaState, cause error) (escalated bool) {
	if err := o.state.MarkCompensating(context.Background(), state.SagaID); err != nil {
		log.Printf("saga %s: failed to mark compensating: %v", state.SagaID, err)
	}
	state.Outcome = domain.SagaOutcomeCompensating

	if state.PaymentRef != "" {
		err := retryCompensation(o.cfg.CompensationRetries, o.cfg.RetryBaseDelay, "refund payment", func(ctx context.Context) error {
			callCtx, cancel := context.WithTimeout(ctx, o.cfg.PaymentTimeout)
			defer cancel()
			return o.payments.Refund(callCtx, state.PaymentRef, state.Total)
		})
		if err != nil {
			return o.escalate(state, "refund", err)
		}
		log.Printf("saga %s: refunded %s %s, ref %s", state.SagaID, state.Total, state.Currency, state.PaymentRef)
	}

	if state.ReservationID != "" {
		err := retryCompensation(o.cfg.CompensationRetries, o.cfg.RetryBaseDelay, "release reservation", func(ctx context.Context) error {
			callCtx, cancel := context.WithTimeout(ctx, o.cfg.InventoryTimeout)
			defer cancel()
			return o.inventory.Release(callCtx, state.ReservationID)
		})
		if err != nil {
			return o.escalate(state, "release", err)
		}
		log.Printf("saga %s: released reservation %s", state.SagaID, state.ReservationID)
	}

	if err := o.state.FailSaga(context.Background(), state.SagaID, cause.Error()); err != nil {
		log.Printf("saga %s: failed to record failure: %v", state.SagaID, err)
	}
	state.Outcome = domain.SagaOutcomeFailed
	return false
}

// escalate parks a saga whose compensation could not complete. Money or
// stock is in an inconsistent state until an operator resolves it.
func (o *Orchestrator) escalate(state *domain.SagaState, step string, err error) bool {
	reason := step + " exhausted retries: " + err.Error()
	log.Printf("MANUAL INTERVENTION REQUIRED: saga %s, customer %s, reservation %q, payment %q: %s",
		state.SagaID, state.CustomerID, state.ReservationID, state.PaymentRef, reason)

	if merr := o.state.MarkManualIntervention(context.Background(), state.SagaID, reason); merr != nil {
		log.Printf("saga %s: failed to record manual intervention: %v", state.SagaID, merr)
	}
	state.Outcome = domain.SagaOutcomeManualIntervention
	return true
}
