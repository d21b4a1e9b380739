package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Magic tokens understood by the simulated gateway. Anything else succeeds.
const (
	TokenDeclined    = "tok-declined"
	TokenUnavailable = "tok-unavailable"
)

var errGatewayUnavailable = errors.New("payment gateway unavailable")

// SimulatedGateway is a deterministic in-process Client used by the local
// wiring and tests. It deduplicates charges by idempotency key and keeps a
// refund ledger so refunds are idempotent.
type SimulatedGateway struct {
	mu       sync.Mutex
	charges  map[string]ChargeResult // idempotency key -> result
	refunded map[string]bool         // provider ref -> refunded
}

func NewSimulatedGateway() *SimulatedGateway {
	return &SimulatedGateway{
		charges:  make(map[string]ChargeResult),
		refunded: make(map[string]bool),
	}
}

func (g *SimulatedGateway) Charge(_ context.Context, req ChargeRequest) (ChargeResult, error) {
	if req.Token == TokenUnavailable {
		return ChargeResult{}, errGatewayUnavailable
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if result, seen := g.charges[req.IdempotencyKey]; seen {
		return result, nil
	}

	var result ChargeResult
	if strings.HasPrefix(req.Token, TokenDeclined) {
		result = ChargeResult{Succeeded: false, DeclineReason: "insufficient funds"}
	} else {
		result = ChargeResult{
			ProviderRef: fmt.Sprintf("TXN-%s", uuid.New().String()),
			Succeeded:   true,
		}
	}

	g.charges[req.IdempotencyKey] = result
	return result, nil
}

func (g *SimulatedGateway) Refund(_ context.Context, providerRef string, _ decimal.Decimal) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	// double refund of the same reference is a no-op
	g.refunded[providerRef] = true
	return nil
}

// Refunded reports whether a provider reference has been refunded.
func (g *SimulatedGateway) Refunded(providerRef string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refunded[providerRef]
}
