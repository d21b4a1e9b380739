package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/go_checkout/domain"
	"github.com/fjod/go_checkout/internal/saga"
)

// CheckoutRunner runs the checkout saga for one customer.
type CheckoutRunner interface {
	Checkout(ctx context.Context, customerID, paymentToken string) (*saga.Result, error)
}

type CheckoutHandler struct {
	checkout CheckoutRunner
	timeout  time.Duration
}

func NewCheckoutHandler(checkout CheckoutRunner, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		timeout:  timeout,
	}
}

type CheckoutRequestDTO struct {
	PaymentToken string `json:"payment_token"`
}

type CheckoutResponseDTO struct {
	OrderID  string `json:"order_id"`
	Status   string `json:"status"`
	Total    string `json:"total"`
	Currency string `json:"currency"`
}

func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	customerID := getCustomerIDFromContext(r.Context())
	if customerID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing customer authentication")
		return
	}

	var req CheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.PaymentToken == "" {
		respondError(w, http.StatusBadRequest, "invalid_payment_token", "payment_token is required")
		return
	}

	result, err := h.checkout.Checkout(ctx, customerID, req.PaymentToken)
	if err != nil {
		handleCheckoutError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, CheckoutResponseDTO{
		OrderID:  result.OrderID,
		Status:   string(result.Status),
		Total:    result.Total.StringFixed(2),
		Currency: result.Currency,
	})
}

func handleCheckoutError(w http.ResponseWriter, err error) {
	var oos *domain.OutOfStockError
	var unknown *domain.UnknownSKUError
	var declined *domain.PaymentDeclinedError

	switch {
	case errors.Is(err, domain.ErrCheckoutInProgress):
		respondError(w, http.StatusConflict, "checkout_in_progress", err.Error())
	case errors.Is(err, domain.ErrEmptyCart):
		respondError(w, http.StatusUnprocessableEntity, "empty_cart", err.Error())
	case errors.As(err, &oos):
		respondError(w, http.StatusConflict, "out_of_stock", oos.Error())
	case errors.As(err, &unknown):
		respondError(w, http.StatusUnprocessableEntity, "unknown_sku", unknown.Error())
	case errors.As(err, &declined):
		respondError(w, http.StatusPaymentRequired, "payment_declined", declined.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "checkout failed")
	}
}
