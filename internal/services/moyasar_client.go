package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Moyasar payment statuses.
const (
	PaymentStatusInitiated  = "initiated"
	PaymentStatusPaid       = "paid"
	PaymentStatusAuthorized = "authorized"
	PaymentStatusCaptured   = "captured"
	PaymentStatusFailed     = "failed"
	PaymentStatusDeclined   = "declined"
	PaymentStatusCancelled  = "cancelled"
	PaymentStatusRefunded   = "refunded"
)

// PaymentSource identifies the instrument charged: a card token or a
// saved payment method id.
type PaymentSource struct {
	Type  string `json:"type"`
	Token string `json:"token,omitempty"`
}

// GatewayPayment is the gateway's view of a charge.
type GatewayPayment struct {
	ID          string            `json:"id"`
	Status      string            `json:"status"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata"`
	Source      struct {
		Type           string `json:"type"`
		TransactionURL string `json:"transaction_url"`
		Message        string `json:"message"`
	} `json:"source"`
}

// CreateChargeRequest is the outbound charge payload.
type CreateChargeRequest struct {
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description"`
	CallbackURL string            `json:"callback_url"`
	WebhookURL  string            `json:"webhook_url,omitempty"`
	Source      PaymentSource     `json:"source"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// PaymentGateway abstracts the payment processor so the payment
// service can be exercised against a fake in tests.
type PaymentGateway interface {
	CreateCharge(ctx context.Context, req CreateChargeRequest, idempotencyKey string) (*GatewayPayment, error)
	GetCharge(ctx context.Context, id string) (*GatewayPayment, error)
	Refund(ctx context.Context, id string) (*GatewayPayment, error)
}

// MoyasarClient talks to the Moyasar REST API using basic auth with
// the merchant secret key.
type MoyasarClient struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

// NewMoyasarClient constructs a MoyasarClient with a bounded timeout.
func NewMoyasarClient(baseURL, secretKey string, timeout time.Duration) *MoyasarClient {
	return &MoyasarClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		client:    &http.Client{Timeout: timeout},
	}
}

// CreateCharge creates a payment with an idempotency key so a retried
// request cannot double-charge.
func (m *MoyasarClient) CreateCharge(ctx context.Context, req CreateChargeRequest, idempotencyKey string) (*GatewayPayment, error) {
	headers := map[string]string{}
	if idempotencyKey != "" {
		headers["Idempotency-Key"] = idempotencyKey
	}
	return m.do(ctx, http.MethodPost, "/payments", req, headers)
}

// GetCharge fetches the authoritative state of a payment.
func (m *MoyasarClient) GetCharge(ctx context.Context, id string) (*GatewayPayment, error) {
	return m.do(ctx, http.MethodGet, "/payments/"+id, nil, nil)
}

// Refund refunds a captured payment in full.
func (m *MoyasarClient) Refund(ctx context.Context, id string) (*GatewayPayment, error) {
	return m.do(ctx, http.MethodPost, "/payments/"+id+"/refund", nil, nil)
}

func (m *MoyasarClient) do(ctx context.Context, method, path string, body any, headers map[string]string) (*GatewayPayment, error) {
	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal moyasar request: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create moyasar request: %w", err)
	}
	req.SetBasicAuth(m.secretKey, "")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute moyasar request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read moyasar response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("moyasar request failed: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var payment GatewayPayment
	if err := json.Unmarshal(respBody, &payment); err != nil {
		return nil, fmt.Errorf("unmarshal moyasar response: %w", err)
	}

	return &payment, nil
}
