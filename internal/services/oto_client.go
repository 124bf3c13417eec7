package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const otoTokenLeeway = 30 * time.Second

// CourierCustomer is the recipient block of a courier order.
type CourierCustomer struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	Country    string `json:"country"`
	City       string `json:"city"`
	Address    string `json:"address"`
	PostalCode string `json:"postcode,omitempty"`
}

// CourierItem is one order line in a courier payload.
type CourierItem struct {
	Name     string  `json:"name"`
	SKU      string  `json:"sku"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// CourierOrderRequest is the payload for creating a courier order.
type CourierOrderRequest struct {
	OrderID          string          `json:"orderId"`
	PickupLocationID string          `json:"pickupLocationCode,omitempty"`
	DeliveryOptionID string          `json:"deliveryOptionId,omitempty"`
	Customer         CourierCustomer `json:"customer"`
	Items            []CourierItem   `json:"items"`
	Amount           float64         `json:"amount"`
	Currency         string          `json:"currency"`
	PackageCount     int             `json:"boxNum"`
	PackageWeight    float64         `json:"weight"`
}

// CourierOrderResult is the courier's acknowledgement.
type CourierOrderResult struct {
	OTOOrderID     string `json:"otoId"`
	TrackingNumber string `json:"trackingNumber"`
	TrackingURL    string `json:"printAWBURL"`
	DeliveryDate   string `json:"estimatedDeliveryDate"`
}

// CourierProductRequest registers a product with the courier.
type CourierProductRequest struct {
	Name      string  `json:"productName"`
	SKU       string  `json:"sku"`
	Price     float64 `json:"price"`
	TaxAmount float64 `json:"taxAmount"`
}

// Courier abstracts the shipping provider so the dispatcher can be
// exercised against a fake in tests.
type Courier interface {
	CreateOrder(ctx context.Context, req CourierOrderRequest) (*CourierOrderResult, error)
	CreateProduct(ctx context.Context, req CourierProductRequest) (string, error)
}

// OTOClient talks to the OTO shipping API. Access tokens are obtained
// through a refresh-token exchange and cached on the client with
// expiry tracking, refreshed under a mutex.
type OTOClient struct {
	baseURL      string
	refreshToken string
	client       *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewOTOClient constructs an OTOClient with a bounded timeout.
func NewOTOClient(baseURL, refreshToken string, timeout time.Duration) *OTOClient {
	return &OTOClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		refreshToken: refreshToken,
		client:       &http.Client{Timeout: timeout},
	}
}

type otoTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// token returns a cached access token, exchanging the refresh token
// for a fresh one when the cache is empty or near expiry.
func (o *OTOClient) token(ctx context.Context, force bool) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !force && o.accessToken != "" && time.Now().Add(otoTokenLeeway).Before(o.tokenExpiry) {
		return o.accessToken, nil
	}

	if o.refreshToken == "" {
		return "", errors.New("OTO refresh token is not configured")
	}

	payload, err := json.Marshal(map[string]string{"refresh_token": o.refreshToken})
	if err != nil {
		return "", fmt.Errorf("marshal oto token payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/rest/v2/refreshToken", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create oto token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute oto token request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read oto token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("oto token request failed: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var tokenResp otoTokenResponse
	if err := json.Unmarshal(respBody, &tokenResp); err != nil {
		return "", fmt.Errorf("unmarshal oto token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", errors.New("oto token response missing access_token")
	}

	o.accessToken = tokenResp.AccessToken
	if tokenResp.ExpiresIn > 0 {
		o.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	} else {
		o.tokenExpiry = time.Now().Add(5 * time.Minute)
	}

	return o.accessToken, nil
}

// CreateOrder creates a courier order and returns the tracking record.
func (o *OTOClient) CreateOrder(ctx context.Context, req CourierOrderRequest) (*CourierOrderResult, error) {
	var result CourierOrderResult
	if err := o.do(ctx, "/rest/v2/createOrder", req, &result); err != nil {
		return nil, err
	}
	if result.TrackingNumber == "" {
		return nil, errors.New("oto createOrder response missing tracking number")
	}
	return &result, nil
}

// CreateProduct registers a product with the courier and returns its id.
func (o *OTOClient) CreateProduct(ctx context.Context, req CourierProductRequest) (string, error) {
	var result struct {
		ID string `json:"id"`
	}
	if err := o.do(ctx, "/rest/v2/createProduct", req, &result); err != nil {
		return "", err
	}
	return result.ID, nil
}

// do posts a JSON payload, retrying once with a fresh token on 401.
func (o *OTOClient) do(ctx context.Context, path string, body, out any) error {
	token, err := o.token(ctx, false)
	if err != nil {
		return err
	}

	status, respBody, err := o.post(ctx, path, body, token)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized {
		if token, err = o.token(ctx, true); err != nil {
			return err
		}
		if status, respBody, err = o.post(ctx, path, body, token); err != nil {
			return err
		}
	}

	if status < 200 || status >= 300 {
		return fmt.Errorf("oto request %s failed: status %d, body: %s", path, status, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("unmarshal oto response: %w", err)
		}
	}

	return nil
}

func (o *OTOClient) post(ctx context.Context, path string, body any, token string) (int, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal oto request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("create oto request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := o.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("execute oto request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read oto response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}
