// Package inventory talks to the external inventory service. Reservation is
// batched: either every line is held or none are, so there is no window
// where some lines are decremented and others are not.
package inventory

import (
	"context"
)

// ReserveItem is one line of a batch reservation request.
type ReserveItem struct {
	SKU      string `json:"sku"`
	Quantity int32  `json:"quantity"`
}

// Client is the collaborator contract consumed by the saga.
//
// Reserve holds stock for all items atomically and returns an opaque
// reservation id. The idempotency key identifies the checkout attempt, so a
// retried reserve whose first response was lost answers with the existing
// hold instead of a second one. Reserve fails with *domain.OutOfStockError or
// *domain.UnknownSKUError for business failures; any other error is a
// transport failure and may be retried by the caller.
//
// Release voids a reservation. It is idempotent: releasing an unknown or
// already-released reservation succeeds, because compensation may be retried.
type Client interface {
	Reserve(ctx context.Context, idempotencyKey string, items []ReserveItem) (string, error)
	Release(ctx context.Context, reservationID string) error
}
