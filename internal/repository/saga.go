package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_checkout/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrSagaNotFound = errors.New("saga not found")

// CreateSaga inserts a new saga record in its initial state.
func (r *Repository) CreateSaga(ctx context.Context, state *domain.SagaState) error {
	query := `INSERT INTO saga_states
	          (saga_id, customer_id, idempotency_key, step, outcome, total, currency, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())`

	_, err := r.db.ExecContext(ctx, query,
		state.SagaID,
		state.CustomerID,
		state.IdempotencyKey,
		state.Step.String(),
		state.Outcome.String(),
		state.Total.String(),
		state.Currency)
	if err != nil {
		return fmt.Errorf("insert saga state: %w", err)
	}
	return nil
}

// GetSagaByKey looks up a saga by its derived idempotency key, so a retried
// checkout with an unchanged cart can be detected across restarts.
func (r *Repository) GetSagaByKey(ctx context.Context, key string) (*domain.SagaState, error) {
	query := `SELECT saga_id, customer_id, idempotency_key, step, outcome, total, currency,
	                 COALESCE(reservation_id, ''), COALESCE(payment_ref, ''),
	                 COALESCE(order_id, ''), COALESCE(failure_reason, ''),
	                 created_at, updated_at
	          FROM saga_states WHERE idempotency_key = $1
	          ORDER BY created_at DESC LIMIT 1`

	var state domain.SagaState
	var step, outcome, total string
	err := r.db.QueryRowContext(ctx, query, key).Scan(
		&state.SagaID,
		&state.CustomerID,
		&state.IdempotencyKey,
		&step,
		&outcome,
		&total,
		&state.Currency,
		&state.ReservationID,
		&state.PaymentRef,
		&state.OrderID,
		&state.FailureReason,
		&state.CreatedAt,
		&state.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSagaNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query saga by key: %w", err)
	}

	state.Step = domain.SagaStep(step)
	state.Outcome = domain.SagaOutcome(outcome)
	parsed, err := decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("invalid total %q for saga %s: %w", total, state.SagaID, err)
	}
	state.Total = parsed
	return &state, nil
}

// UpdateStep advances the saga's forward position.
func (r *Repository) UpdateStep(ctx context.Context, sagaID uuid.UUID, step domain.SagaStep) error {
	return r.update(ctx, sagaID,
		`UPDATE saga_states SET step = $2, updated_at = NOW() WHERE saga_id = $1`,
		step.String())
}

func (r *Repository) SetReservation(ctx context.Context, sagaID uuid.UUID, reservationID string) error {
	return r.update(ctx, sagaID,
		`UPDATE saga_states SET reservation_id = $2, step = $3, updated_at = NOW() WHERE saga_id = $1`,
		reservationID, domain.SagaStepInventoryReserved.String())
}

func (r *Repository) SetPayment(ctx context.Context, sagaID uuid.UUID, paymentRef string) error {
	return r.update(ctx, sagaID,
		`UPDATE saga_states SET payment_ref = $2, step = $3, updated_at = NOW() WHERE saga_id = $1`,
		paymentRef, domain.SagaStepPaymentSettled.String())
}

func (r *Repository) SetOrder(ctx context.Context, sagaID uuid.UUID, orderID string) error {
	return r.update(ctx, sagaID,
		`UPDATE saga_states SET order_id = $2, step = $3, updated_at = NOW() WHERE saga_id = $1`,
		orderID, domain.SagaStepOrderCreated.String())
}

func (r *Repository) MarkCompensating(ctx context.Context, sagaID uuid.UUID) error {
	return r.update(ctx, sagaID,
		`UPDATE saga_states SET outcome = $2, updated_at = NOW() WHERE saga_id = $1`,
		domain.SagaOutcomeCompensating.String())
}

// FailSaga records a terminal failure after compensations have run.
func (r *Repository) FailSaga(ctx context.Context, sagaID uuid.UUID, reason string) error {
	return r.update(ctx, sagaID,
		`UPDATE saga_states SET outcome = $2, failure_reason = $3, updated_at = NOW() WHERE saga_id = $1`,
		domain.SagaOutcomeFailed.String(), reason)
}

// MarkManualIntervention records that a compensation could not be completed
// and an operator must act. Never reached silently: the orchestrator logs
// loudly before calling this.
func (r *Repository) MarkManualIntervention(ctx context.Context, sagaID uuid.UUID, reason string) error {
	return r.update(ctx, sagaID,
		`UPDATE saga_states SET outcome = $2, failure_reason = $3, updated_at = NOW() WHERE saga_id = $1`,
		domain.SagaOutcomeManualIntervention.String(), reason)
}

// CompleteSaga marks the saga completed and inserts the outbox event in the
// same transaction, so a completed checkout can never miss its event. The
// step records how far the saga actually got: a failed cart clear leaves it
// at ORDER_CREATED.
func (r *Repository) CompleteSaga(ctx context.Context, sagaID uuid.UUID, step domain.SagaStep, event *domain.OrderCreatedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order created event: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin complete saga tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE saga_states SET outcome = $2, step = $3, updated_at = NOW() WHERE saga_id = $1`,
		sagaID, domain.SagaOutcomeCompleted.String(), step.String())
	if err != nil {
		return fmt.Errorf("complete saga: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrSagaNotFound
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO outbox_events (aggregate_id, event_type, payload, created_at)
		 VALUES ($1, $2, $3, NOW())`,
		sagaID.String(), domain.EventTypeOrderCreated, payload)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}

	return tx.Commit()
}

// GetStuckSagas returns sagas whose order exists but whose completion was
// never recorded, so the recovery sweep can finish them. Only sagas untouched
// for olderThan are returned, to avoid racing a checkout still in flight.
func (r *Repository) GetStuckSagas(ctx context.Context, olderThan time.Duration) ([]*domain.SagaState, error) {
	query := `SELECT saga_id, customer_id, idempotency_key, step, total, currency,
	                 COALESCE(order_id, ''), created_at, updated_at
	          FROM saga_states
	          WHERE outcome = $1 AND order_id IS NOT NULL AND updated_at < NOW() - $2::interval
	          ORDER BY updated_at ASC LIMIT 100`

	interval := fmt.Sprintf("%f seconds", olderThan.Seconds())
	rows, err := r.db.QueryContext(ctx, query, domain.SagaOutcomeInProgress.String(), interval)
	if err != nil {
		return nil, fmt.Errorf("query stuck sagas: %w", err)
	}
	defer rows.Close()

	var stuck []*domain.SagaState
	for rows.Next() {
		var state domain.SagaState
		var step, total string
		if err := rows.Scan(
			&state.SagaID,
			&state.CustomerID,
			&state.IdempotencyKey,
			&step,
			&total,
			&state.Currency,
			&state.OrderID,
			&state.CreatedAt,
			&state.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan stuck saga: %w", err)
		}
		parsed, err := decimal.NewFromString(total)
		if err != nil {
			return nil, fmt.Errorf("invalid total %q for saga %s: %w", total, state.SagaID, err)
		}
		state.Step = domain.SagaStep(step)
		state.Total = parsed
		state.Outcome = domain.SagaOutcomeInProgress
		stuck = append(stuck, &state)
	}
	return stuck, rows.Err()
}

func (r *Repository) update(ctx context.Context, sagaID uuid.UUID, query string, args ...any) error {
	allArgs := append([]any{sagaID}, args...)
	result, err := r.db.ExecContext(ctx, query, allArgs...)
	if err != nil {
		return fmt.Errorf("update saga %s: %w", sagaID, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrSagaNotFound
	}
	return nil
}
