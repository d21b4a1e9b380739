package saga

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/go_checkout/domain"
	"github.com/fjod/go_checkout/internal/payment"
)

// chargePayment charges the saga total exactly once, keyed by the saga's
// idempotency key so a retried transport call cannot double-charge. A decline
// is a business answer, not a transport failure, and is never retried.
func (o *Orchestrator) chargePayment(ctx context.Context, state *domain.SagaState, token string) error {
	start := time.Now()
	defer o.metrics.observeStep("charge_payment", start)

	req := payment.ChargeRequest{
		Amount:         state.Total,
		Currency:       state.Currency,
		Token:          token,
		IdempotencyKey: state.IdempotencyKey,
	}

	var result payment.ChargeResult
	err := retryTransport(ctx, o.cfg.TransportRetries, o.cfg.RetryBaseDelay, "charge payment", func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, o.cfg.PaymentTimeout)
		defer cancel()
		res, err := o.payments.Charge(callCtx, req)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return fmt.Errorf("charge payment: %w", err)
	}

	if !result.Succeeded {
		return &domain.PaymentDeclinedError{Reason: result.DeclineReason}
	}

	if err := o.state.SetPayment(ctx, state.SagaID, result.ProviderRef); err != nil {
		// the charge went through but was not recorded; refund it
		state.PaymentRef = result.ProviderRef
		state.Step = domain.SagaStepPaymentSettled
		return err
	}

	state.PaymentRef = result.ProviderRef
	state.Step = domain.SagaStepPaymentSettled
	return nil
}
