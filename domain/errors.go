package domain

import (
	"errors"
	"fmt"
)

var (
	ErrCartNotFound       = errors.New("cart not found")
	ErrEmptyCart          = errors.New("cart is empty, nothing to checkout")
	ErrInvalidQuantity    = errors.New("quantity must be positive")
	ErrCheckoutInProgress = errors.New("checkout already in progress for this customer")
	ErrOrderNotFound      = errors.New("order not found")
)

// OutOfStockError reports which SKU could not be reserved.
type OutOfStockError struct {
	SKU string
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("insufficient stock for sku %q", e.SKU)
}

// UnknownSKUError reports a SKU the inventory service does not know.
type UnknownSKUError struct {
	SKU string
}

func (e *UnknownSKUError) Error() string {
	return fmt.Sprintf("unknown sku %q", e.SKU)
}

// PaymentDeclinedError is a business decline from the payment gateway.
// It is a normal saga outcome, never retried.
type PaymentDeclinedError struct {
	Reason string
}

func (e *PaymentDeclinedError) Error() string {
	return fmt.Sprintf("payment declined: %s", e.Reason)
}
