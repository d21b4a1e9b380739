package repository

import (
	"context"
	"testing"
	"time"

	"github.com/fjod/go_checkout/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) (*Repository, func()) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	creds := &Credentials{
		Host:              host,
		Port:              port.Int(),
		User:              "testuser",
		Password:          "testpass",
		DBName:            "testdb",
		MigrationsDirPath: "./migrations",
	}

	repo, err := NewRepository(creds)
	require.NoError(t, err)

	err = repo.RunMigrations(creds)
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func newState(t *testing.T) *domain.SagaState {
	t.Helper()
	state := domain.NewSagaState("cust-1", uuid.New().String())
	state.Currency = "USD"
	return state
}

func TestGetSagaByKey_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := repo.GetSagaByKey(context.Background(), "nonexistent-key")
	assert.ErrorIs(t, err, ErrSagaNotFound)
}

func TestCreateSaga_And_GetByKey(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	state := newState(t)
	state.Total = decimal.RequireFromString("20.00")
	require.NoError(t, repo.CreateSaga(ctx, state))

	got, err := repo.GetSagaByKey(ctx, state.IdempotencyKey)
	require.NoError(t, err)
	assert.Equal(t, state.SagaID, got.SagaID)
	assert.Equal(t, "cust-1", got.CustomerID)
	assert.Equal(t, domain.SagaStepStarted, got.Step)
	assert.Equal(t, domain.SagaOutcomeInProgress, got.Outcome)
	assert.True(t, got.Total.Equal(decimal.RequireFromString("20.00")))
}

func TestSagaProgression(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	state := newState(t)
	state.Total = decimal.RequireFromString("40.28")
	require.NoError(t, repo.CreateSaga(ctx, state))

	require.NoError(t, repo.UpdateStep(ctx, state.SagaID, domain.SagaStepCartLoaded))
	require.NoError(t, repo.SetReservation(ctx, state.SagaID, "res-1"))
	require.NoError(t, repo.SetPayment(ctx, state.SagaID, "TXN-1"))
	require.NoError(t, repo.SetOrder(ctx, state.SagaID, "order-1"))

	got, err := repo.GetSagaByKey(ctx, state.IdempotencyKey)
	require.NoError(t, err)
	assert.Equal(t, domain.SagaStepOrderCreated, got.Step)
	assert.Equal(t, "res-1", got.ReservationID)
	assert.Equal(t, "TXN-1", got.PaymentRef)
	assert.Equal(t, "order-1", got.OrderID)
	assert.True(t, got.Total.Equal(decimal.RequireFromString("40.28")))
}

func TestFailSaga(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	state := newState(t)
	require.NoError(t, repo.CreateSaga(ctx, state))

	require.NoError(t, repo.MarkCompensating(ctx, state.SagaID))
	require.NoError(t, repo.FailSaga(ctx, state.SagaID, "payment declined: insufficient funds"))

	got, err := repo.GetSagaByKey(ctx, state.IdempotencyKey)
	require.NoError(t, err)
	assert.Equal(t, domain.SagaOutcomeFailed, got.Outcome)
	assert.Equal(t, "payment declined: insufficient funds", got.FailureReason)
}

func TestManualIntervention(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	state := newState(t)
	require.NoError(t, repo.CreateSaga(ctx, state))
	require.NoError(t, repo.MarkManualIntervention(ctx, state.SagaID, "release failed after retries"))

	got, err := repo.GetSagaByKey(ctx, state.IdempotencyKey)
	require.NoError(t, err)
	assert.Equal(t, domain.SagaOutcomeManualIntervention, got.Outcome)
}

func TestUpdateStep_UnknownSaga(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	err := repo.UpdateStep(context.Background(), uuid.New(), domain.SagaStepCartLoaded)
	assert.ErrorIs(t, err, ErrSagaNotFound)
}

func TestCompleteSaga_WritesOutboxEventInSameTx(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	state := newState(t)
	require.NoError(t, repo.CreateSaga(ctx, state))

	event := &domain.OrderCreatedEvent{
		SagaID:      state.SagaID.String(),
		OrderID:     "order-1",
		CustomerID:  "cust-1",
		TotalAmount: decimal.RequireFromString("20.00"),
		Currency:    "USD",
		CompletedAt: time.Now(),
	}
	require.NoError(t, repo.CompleteSaga(ctx, state.SagaID, domain.SagaStepCartCleared, event))

	got, err := repo.GetSagaByKey(ctx, state.IdempotencyKey)
	require.NoError(t, err)
	assert.Equal(t, domain.SagaOutcomeCompleted, got.Outcome)
	assert.Equal(t, domain.SagaStepCartCleared, got.Step)

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, state.SagaID.String(), events[0].AggregateID)
	assert.Equal(t, domain.EventTypeOrderCreated, events[0].EventType)

	require.NoError(t, repo.MarkEventAsProcessed(ctx, events[0].ID))
	events, err = repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestGetStuckSagas(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	stuckState := newState(t)
	require.NoError(t, repo.CreateSaga(ctx, stuckState))
	require.NoError(t, repo.SetReservation(ctx, stuckState.SagaID, "res-1"))
	require.NoError(t, repo.SetPayment(ctx, stuckState.SagaID, "TXN-1"))
	require.NoError(t, repo.SetOrder(ctx, stuckState.SagaID, "order-1"))

	// no order yet, must not be picked up
	freshState := newState(t)
	require.NoError(t, repo.CreateSaga(ctx, freshState))

	time.Sleep(50 * time.Millisecond)

	stuck, err := repo.GetStuckSagas(ctx, 0)
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, stuckState.SagaID, stuck[0].SagaID)
	assert.Equal(t, "order-1", stuck[0].OrderID)
	assert.Equal(t, domain.SagaStepOrderCreated, stuck[0].Step)

	event := &domain.OrderCreatedEvent{
		SagaID:  stuckState.SagaID.String(),
		OrderID: "order-1",
	}
	require.NoError(t, repo.CompleteSaga(ctx, stuckState.SagaID, stuck[0].Step, event))

	// completion keeps the step the saga actually reached
	got, err := repo.GetSagaByKey(ctx, stuckState.IdempotencyKey)
	require.NoError(t, err)
	assert.Equal(t, domain.SagaOutcomeCompleted, got.Outcome)
	assert.Equal(t, domain.SagaStepOrderCreated, got.Step)

	stuck, err = repo.GetStuckSagas(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, stuck)
}

func TestCreateOrder_DuplicateSagaRejected(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	sagaID := uuid.New()
	order := &domain.Order{
		ID:         uuid.New(),
		SagaID:     sagaID,
		CustomerID: "cust-1",
		Status:     domain.OrderStatusPaid,
		Total:      decimal.RequireFromString("20.00"),
		Currency:   "USD",
		Lines: []domain.OrderLine{
			{SKU: "A", ProductName: "product A", UnitPrice: decimal.RequireFromString("10.00"), Quantity: 2},
		},
	}

	id, err := repo.CreateOrder(ctx, order)
	require.NoError(t, err)
	assert.Equal(t, order.ID.String(), id)

	dup := *order
	dup.ID = uuid.New()
	_, err = repo.CreateOrder(ctx, &dup)
	assert.ErrorIs(t, err, ErrDuplicateSaga)

	got, err := repo.GetOrderBySagaID(ctx, sagaID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
	assert.True(t, got.Total.Equal(decimal.RequireFromString("20.00")))
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "A", got.Lines[0].SKU)
}

func TestGetOrderByID_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := repo.GetOrderByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
