// Package saga drives a checkout through reservation, payment and order
// creation, compensating completed steps in reverse order when a later step
// fails. At most one saga runs per customer at a time.
package saga

import (
	"context"
	"time"

	"github.com/fjod/go_checkout/domain"
	"github.com/fjod/go_checkout/internal/inventory"
	"github.com/fjod/go_checkout/internal/payment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartStore reads and clears the customer's cart.
type CartStore interface {
	GetCart(ctx context.Context, customerID string) (*domain.Cart, error)
	ClearCart(ctx context.Context, customerID string) error
}

// OrderStore persists the final order record.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *domain.Order) (string, error)
}

// StateStore persists saga state so every transition is durable and a
// retried checkout can be recognized by its idempotency key.
type StateStore interface {
	CreateSaga(ctx context.Context, state *domain.SagaState) error
	GetSagaByKey(ctx context.Context, key string) (*domain.SagaState, error)
	UpdateStep(ctx context.Context, sagaID uuid.UUID, step domain.SagaStep) error
	SetReservation(ctx context.Context, sagaID uuid.UUID, reservationID string) error
	SetPayment(ctx context.Context, sagaID uuid.UUID, paymentRef string) error
	SetOrder(ctx context.Context, sagaID uuid.UUID, orderID string) error
	MarkCompensating(ctx context.Context, sagaID uuid.UUID) error
	FailSaga(ctx context.Context, sagaID uuid.UUID, reason string) error
	MarkManualIntervention(ctx context.Context, sagaID uuid.UUID, reason string) error
	CompleteSaga(ctx context.Context, sagaID uuid.UUID, step domain.SagaStep, event *domain.OrderCreatedEvent) error
}

// Result is what the caller gets back from a completed checkout.
type Result struct {
	OrderID  string
	Status   domain.OrderStatus
	Total    decimal.Decimal
	Currency string
}

// Config carries per-collaborator timeouts and retry policy.
type Config struct {
	InventoryTimeout time.Duration
	PaymentTimeout   time.Duration
	StoreTimeout     time.Duration

	// TransportRetries bounds retries of transport failures on forward
	// steps; business failures are never retried.
	TransportRetries int
	// CompensationRetries bounds retries of release/refund before the saga
	// is escalated to manual intervention.
	CompensationRetries int
	// RetryBaseDelay is the first backoff delay; it doubles per attempt.
	RetryBaseDelay time.Duration

	// InFlightStaleAfter bounds how long an order-less in-flight saga keeps
	// blocking its idempotency key. A process crash leaves such sagas behind;
	// past this age a retried checkout retires them and starts over.
	InFlightStaleAfter time.Duration

	Currency string
}

func DefaultConfig() Config {
	return Config{
		InventoryTimeout:    5 * time.Second,
		PaymentTimeout:      30 * time.Second,
		StoreTimeout:        5 * time.Second,
		TransportRetries:    3,
		CompensationRetries: 5,
		RetryBaseDelay:      100 * time.Millisecond,
		InFlightStaleAfter:  5 * time.Minute,
		Currency:            "USD",
	}
}

type Orchestrator struct {
	cfg       Config
	carts     CartStore
	inventory inventory.Client
	payments  payment.Client
	orders    OrderStore
	state     StateStore
	locks     *customerLocks
	metrics   *Metrics
}

func NewOrchestrator(
	cfg Config,
	carts CartStore,
	inv inventory.Client,
	payments payment.Client,
	orders OrderStore,
	state StateStore,
	metrics *Metrics,
) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		carts:     carts,
		inventory: inv,
		payments:  payments,
		orders:    orders,
		state:     state,
		locks:     newCustomerLocks(),
		metrics:   metrics,
	}
}
