package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// IdempotencyHeader carries the derived checkout key so the gateway can
// deduplicate retried charges.
const IdempotencyHeader = "Idempotency-Key"

// HTTPClient implements Client over the payment gateway's JSON API.
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
			Name: "payment",
		}),
	}
}

type chargeRequestBody struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Token    string `json:"token"`
}

type chargeResponseBody struct {
	Ref           string `json:"ref"`
	Succeeded     bool   `json:"succeeded"`
	DeclineReason string `json:"decline_reason,omitempty"`
}

func (c *HTTPClient) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	body, err := json.Marshal(chargeRequestBody{
		Amount:   req.Amount.String(),
		Currency: req.Currency,
		Token:    req.Token,
	})
	if err != nil {
		return ChargeResult{}, fmt.Errorf("marshal charge request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/charges", bytes.NewReader(body))
	if err != nil {
		return ChargeResult{}, fmt.Errorf("build charge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(IdempotencyHeader, req.IdempotencyKey)

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		return c.client.Do(httpReq)
	})
	if err != nil {
		return ChargeResult{}, fmt.Errorf("charge call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return ChargeResult{}, fmt.Errorf("charge returned status %d", resp.StatusCode)
	}

	var parsed chargeResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ChargeResult{}, fmt.Errorf("decode charge response: %w", err)
	}

	// a decline is a valid 200 response, not an error
	return ChargeResult{
		ProviderRef:   parsed.Ref,
		Succeeded:     parsed.Succeeded,
		DeclineReason: parsed.DeclineReason,
	}, nil
}

type refundRequestBody struct {
	Ref    string `json:"ref"`
	Amount string `json:"amount"`
}

func (c *HTTPClient) Refund(ctx context.Context, providerRef string, amount decimal.Decimal) error {
	body, err := json.Marshal(refundRequestBody{Ref: providerRef, Amount: amount.String()})
	if err != nil {
		return fmt.Errorf("marshal refund request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/refunds", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build refund request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		return c.client.Do(httpReq)
	})
	if err != nil {
		return fmt.Errorf("refund call failed: %w", err)
	}
	defer resp.Body.Close()

	// 409 means the reference was already refunded: refund is idempotent
	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusConflict:
		return nil
	default:
		return fmt.Errorf("refund returned status %d", resp.StatusCode)
	}
}
