package saga

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_checkout/domain"
	"github.com/fjod/go_checkout/internal/inventory"
	"github.com/fjod/go_checkout/internal/payment"
	"github.com/fjod/go_checkout/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type mockCartStore struct {
	mu       sync.Mutex
	cart     *domain.Cart
	getErr   error
	clearErr error
	clears   int
}

func (m *mockCartStore) GetCart(_ context.Context, _ string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.cart == nil {
		return nil, domain.ErrCartNotFound
	}
	return m.cart, nil
}

func (m *mockCartStore) ClearCart(_ context.Context, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clears++
	return m.clearErr
}

func (m *mockCartStore) clearCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clears
}

type mockInventory struct {
	mu              sync.Mutex
	reserveErr      error
	reserves        int
	releases        int
	releaseFailures int
	released        []string
	keys            []string
}

func (m *mockInventory) Reserve(_ context.Context, key string, _ []inventory.ReserveItem) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reserves++
	m.keys = append(m.keys, key)
	if m.reserveErr != nil {
		return "", m.reserveErr
	}
	return fmt.Sprintf("res-%d", m.reserves), nil
}

func (m *mockInventory) Release(_ context.Context, reservationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releases++
	if m.releases <= m.releaseFailures {
		return errors.New("inventory service unavailable")
	}
	m.released = append(m.released, reservationID)
	return nil
}

func (m *mockInventory) counts() (reserves, releases int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reserves, m.releases
}

type mockPayment struct {
	mu             sync.Mutex
	declineReason  string
	chargeFailures int
	chargeDelay    time.Duration
	refundFailures int
	charges        int
	refunds        int
	keys           []string
	refunded       []string
}

func (m *mockPayment) Charge(_ context.Context, req payment.ChargeRequest) (payment.ChargeResult, error) {
	if m.chargeDelay > 0 {
		time.Sleep(m.chargeDelay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.charges++
	m.keys = append(m.keys, req.IdempotencyKey)
	if m.charges <= m.chargeFailures {
		return payment.ChargeResult{}, errors.New("payment gateway unavailable")
	}
	if m.declineReason != "" {
		return payment.ChargeResult{Succeeded: false, DeclineReason: m.declineReason}, nil
	}
	return payment.ChargeResult{ProviderRef: fmt.Sprintf("TXN-%d", m.charges), Succeeded: true}, nil
}

func (m *mockPayment) Refund(_ context.Context, providerRef string, _ decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refunds++
	if m.refunds <= m.refundFailures {
		return errors.New("payment gateway unavailable")
	}
	m.refunded = append(m.refunded, providerRef)
	return nil
}

func (m *mockPayment) counts() (charges, refunds int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.charges, m.refunds
}

type mockOrders struct {
	mu        sync.Mutex
	createErr error
	cancel    context.CancelFunc
	created   []*domain.Order
}

func (m *mockOrders) CreateOrder(_ context.Context, order *domain.Order) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
	}
	if m.createErr != nil {
		return "", m.createErr
	}
	m.created = append(m.created, order)
	return order.ID.String(), nil
}

func (m *mockOrders) orders() []*domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created
}

type mockState struct {
	mu          sync.Mutex
	sagas       map[uuid.UUID]*domain.SagaState
	byKey       map[string]*domain.SagaState
	completeErr error
	events      []*domain.OrderCreatedEvent
	manual      int
}

func newMockState() *mockState {
	return &mockState{
		sagas: make(map[uuid.UUID]*domain.SagaState),
		byKey: make(map[string]*domain.SagaState),
	}
}

func (m *mockState) seed(state *domain.SagaState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sagas[state.SagaID] = state
	m.byKey[state.IdempotencyKey] = state
}

func (m *mockState) CreateSaga(_ context.Context, state *domain.SagaState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *state
	m.sagas[state.SagaID] = &cp
	m.byKey[state.IdempotencyKey] = &cp
	return nil
}

func (m *mockState) GetSagaByKey(_ context.Context, key string) (*domain.SagaState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.byKey[key]
	if !ok {
		return nil, repository.ErrSagaNotFound
	}
	cp := *state
	return &cp, nil
}

func (m *mockState) get(sagaID uuid.UUID) *domain.SagaState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sagas[sagaID]
}

func (m *mockState) find(fn func(*domain.SagaState) bool) *domain.SagaState {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sagas {
		if fn(s) {
			return s
		}
	}
	return nil
}

func (m *mockState) with(sagaID uuid.UUID, fn func(*domain.SagaState)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.sagas[sagaID]
	if !ok {
		return repository.ErrSagaNotFound
	}
	fn(state)
	return nil
}

func (m *mockState) UpdateStep(_ context.Context, sagaID uuid.UUID, step domain.SagaStep) error {
	return m.with(sagaID, func(s *domain.SagaState) { s.Step = step })
}

func (m *mockState) SetReservation(_ context.Context, sagaID uuid.UUID, reservationID string) error {
	return m.with(sagaID, func(s *domain.SagaState) {
		s.ReservationID = reservationID
		s.Step = domain.SagaStepInventoryReserved
	})
}

func (m *mockState) SetPayment(_ context.Context, sagaID uuid.UUID, paymentRef string) error {
	return m.with(sagaID, func(s *domain.SagaState) {
		s.PaymentRef = paymentRef
		s.Step = domain.SagaStepPaymentSettled
	})
}

func (m *mockState) SetOrder(_ context.Context, sagaID uuid.UUID, orderID string) error {
	return m.with(sagaID, func(s *domain.SagaState) {
		s.OrderID = orderID
		s.Step = domain.SagaStepOrderCreated
	})
}

func (m *mockState) MarkCompensating(_ context.Context, sagaID uuid.UUID) error {
	return m.with(sagaID, func(s *domain.SagaState) { s.Outcome = domain.SagaOutcomeCompensating })
}

func (m *mockState) FailSaga(_ context.Context, sagaID uuid.UUID, reason string) error {
	return m.with(sagaID, func(s *domain.SagaState) {
		s.Outcome = domain.SagaOutcomeFailed
		s.FailureReason = reason
	})
}

func (m *mockState) MarkManualIntervention(_ context.Context, sagaID uuid.UUID, reason string) error {
	err := m.with(sagaID, func(s *domain.SagaState) {
		s.Outcome = domain.SagaOutcomeManualIntervention
		s.FailureReason = reason
	})
	m.mu.Lock()
	m.manual++
	m.mu.Unlock()
	return err
}

func (m *mockState) CompleteSaga(_ context.Context, sagaID uuid.UUID, step domain.SagaStep, event *domain.OrderCreatedEvent) error {
	if m.completeErr != nil {
		return m.completeErr
	}
	err := m.with(sagaID, func(s *domain.SagaState) {
		s.Outcome = domain.SagaOutcomeCompleted
		s.Step = step
	})
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	return nil
}
