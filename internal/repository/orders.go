package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/go_checkout/domain"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrDuplicateSaga means an order for this saga already exists; the
	// retried create is treated as success by the caller.
	ErrDuplicateSaga = errors.New("order for saga already exists")
)

// CreateOrder persists the order and returns its id. The orders table has a
// unique constraint on saga_id, making the insert idempotent under retry.
func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order) (string, error) {
	linesJSON, err := json.Marshal(order.Lines)
	if err != nil {
		return "", fmt.Errorf("failed to marshal order lines: %w", err)
	}

	query := `INSERT INTO orders (id, saga_id, customer_id, status, total, currency, lines, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`

	_, insertErr := r.db.ExecContext(ctx, query,
		order.ID,
		order.SagaID,
		order.CustomerID,
		order.Status,
		order.Total.String(),
		order.Currency,
		linesJSON)

	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
			return "", ErrDuplicateSaga
		}
		return "", fmt.Errorf("insert order: %w", insertErr)
	}
	return order.ID.String(), nil
}

func (r *Repository) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT id, saga_id, customer_id, status, total, currency, lines, created_at
	          FROM orders WHERE id = $1`

	var order domain.Order
	var total string
	var linesJSON []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.SagaID,
		&order.CustomerID,
		&order.Status,
		&total,
		&order.Currency,
		&linesJSON,
		&order.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}

	parsed, err := decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("invalid total %q for order %s: %w", total, id, err)
	}
	order.Total = parsed

	if err := json.Unmarshal(linesJSON, &order.Lines); err != nil {
		return nil, fmt.Errorf("unmarshal order lines: %w", err)
	}
	return &order, nil
}

// GetOrderBySagaID fetches the order created by a saga, used when a retried
// checkout needs to return the already-created order.
func (r *Repository) GetOrderBySagaID(ctx context.Context, sagaID uuid.UUID) (*domain.Order, error) {
	query := `SELECT id FROM orders WHERE saga_id = $1`

	var id uuid.UUID
	err := r.db.QueryRowContext(ctx, query, sagaID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by saga id: %w", err)
	}
	return r.GetOrderByID(ctx, id)
}
