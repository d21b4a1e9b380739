// Package payment talks to the external payment gateway. A business decline
// (card refused) comes back as a ChargeResult with Succeeded=false and is
// never retried; a transport failure comes back as an error and may be
// retried with the same idempotency key.
package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

type ChargeRequest struct {
	Amount         decimal.Decimal
	Currency       string
	Token          string
	IdempotencyKey string
}

type ChargeResult struct {
	ProviderRef   string
	Succeeded     bool
	DeclineReason string
}

// Client is the collaborator contract consumed by the saga.
//
// Refund is idempotent: refunding an already-refunded reference is a no-op
// success, because compensation may be retried.
type Client interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
	Refund(ctx context.Context, providerRef string, amount decimal.Decimal) error
}
