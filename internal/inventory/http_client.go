package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fjod/go_checkout/domain"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPClient implements Client over the inventory service's JSON API.
// Calls go through a circuit breaker so a dead inventory service fails fast
// instead of stacking up blocked checkouts.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
			Name: "inventory",
		}),
	}
}

// IdempotencyHeader carries the derived checkout key so the inventory
// service can dedupe a retried reserve whose first response was lost.
const IdempotencyHeader = "Idempotency-Key"

type reserveRequest struct {
	Items []ReserveItem `json:"items"`
}

type reserveResponse struct {
	ReservationID string `json:"reservation_id"`
	SKU           string `json:"sku,omitempty"`
}

func (c *HTTPClient) Reserve(ctx context.Context, idempotencyKey string, items []ReserveItem) (string, error) {
	body, err := json.Marshal(reserveRequest{Items: items})
	if err != nil {
		return "", fmt.Errorf("marshal reserve request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/reservations", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build reserve request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set(IdempotencyHeader, idempotencyKey)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		return c.client.Do(req)
	})
	if err != nil {
		return "", fmt.Errorf("reserve call failed: %w", err)
	}
	defer resp.Body.Close()

	var parsed reserveResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil && err != io.EOF {
		return "", fmt.Errorf("decode reserve response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
		return parsed.ReservationID, nil
	case http.StatusConflict:
		return "", &domain.OutOfStockError{SKU: parsed.SKU}
	case http.StatusNotFound:
		return "", &domain.UnknownSKUError{SKU: parsed.SKU}
	default:
		return "", fmt.Errorf("reserve returned status %d", resp.StatusCode)
	}
}

func (c *HTTPClient) Release(ctx context.Context, reservationID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.baseURL+"/reservations/"+reservationID, nil)
	if err != nil {
		return fmt.Errorf("build release request: %w", err)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		return c.client.Do(req)
	})
	if err != nil {
		return fmt.Errorf("release call failed: %w", err)
	}
	defer resp.Body.Close()

	// 404 means the reservation is already gone: release is idempotent
	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK, http.StatusNotFound:
		return nil
	default:
		return fmt.Errorf("release returned status %d", resp.StatusCode)
	}
}
