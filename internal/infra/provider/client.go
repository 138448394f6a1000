package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/beligro/smart-carwash-sub000/internal/pkg/config"
	"github.com/beligro/smart-carwash-sub000/internal/pkg/errs"

	"github.com/google/uuid"
)

// Client is the payment-provider boundary. Creation returns the provider's
// payment id plus the redirect URL the customer pays through; settlement comes
// back asynchronously via webhook.
type Client interface {
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResult, error)
	RefundPayment(ctx context.Context, providerID string, amountCents int64) error
}

type CreatePaymentRequest struct {
	PaymentID   uuid.UUID `json:"payment_id"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Description string    `json:"description"`
}

type CreatePaymentResult struct {
	ProviderID  string `json:"provider_id"`
	RedirectURL string `json:"redirect_url"`
}

type refundRequest struct {
	AmountCents int64 `json:"amount_cents"`
}

type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

func NewHTTPClient(cfg config.ProviderConfig, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

func (c *HTTPClient) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResult, error) {
	var result CreatePaymentResult
	if err := c.post(ctx, "/v1/payments", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPClient) RefundPayment(ctx context.Context, providerID string, amountCents int64) error {
	path := fmt.Sprintf("/v1/payments/%s/refunds", providerID)
	return c.post(ctx, path, refundRequest{AmountCents: amountCents}, nil)
}

func (c *HTTPClient) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errs.Wrap(err, "failed to marshal provider request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errs.Wrap(err, "failed to build provider request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("payment provider request failed", "path", path, "error", err)
		return errs.Wrap(err, "payment provider request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		c.logger.Warn("payment provider returned non-success", "path", path, "status", resp.StatusCode)
		return errs.New(fmt.Sprintf("payment provider returned status %d", resp.StatusCode))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errs.Wrap(err, "failed to decode provider response")
		}
	}

	return nil
}
