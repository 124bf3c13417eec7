package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOTOClientTokenCaching(t *testing.T) {
	var tokenCalls, orderCalls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/v2/refreshToken":
			tokenCalls.Add(1)
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "refresh-secret", body["refresh_token"])
			json.NewEncoder(w).Encode(otoTokenResponse{AccessToken: "tok-1", ExpiresIn: 3600})
		case "/rest/v2/createOrder":
			orderCalls.Add(1)
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			json.NewEncoder(w).Encode(CourierOrderResult{
				OTOOrderID:     "oto-1",
				TrackingNumber: "TRK-1",
				TrackingURL:    "https://track/TRK-1",
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewOTOClient(server.URL, "refresh-secret", 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := client.CreateOrder(ctx, CourierOrderRequest{OrderID: "ORD-1"})
		require.NoError(t, err)
		assert.Equal(t, "TRK-1", result.TrackingNumber)
	}

	// one token exchange serves all three calls
	assert.Equal(t, int32(1), tokenCalls.Load())
	assert.Equal(t, int32(3), orderCalls.Load())
}

func TestOTOClientRetriesOnceOn401(t *testing.T) {
	var tokenCalls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/v2/refreshToken":
			n := tokenCalls.Add(1)
			token := "stale"
			if n > 1 {
				token = "fresh"
			}
			json.NewEncoder(w).Encode(otoTokenResponse{AccessToken: token, ExpiresIn: 3600})
		case "/rest/v2/createOrder":
			if r.Header.Get("Authorization") != "Bearer fresh" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(CourierOrderResult{TrackingNumber: "TRK-2"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewOTOClient(server.URL, "refresh-secret", 0)

	result, err := client.CreateOrder(context.Background(), CourierOrderRequest{OrderID: "ORD-2"})
	require.NoError(t, err)
	assert.Equal(t, "TRK-2", result.TrackingNumber)
	assert.Equal(t, int32(2), tokenCalls.Load())
}

func TestOTOClientCreateProduct(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/v2/refreshToken":
			json.NewEncoder(w).Encode(otoTokenResponse{AccessToken: "tok-1", ExpiresIn: 3600})
		case "/rest/v2/createProduct":
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			var req CourierProductRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "Mug", req.Name)
			assert.Equal(t, "SKU-1", req.SKU)
			assert.Equal(t, 50.0, req.Price)
			assert.Equal(t, 7.5, req.TaxAmount)
			w.Write([]byte(`{"id": "prod-9"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewOTOClient(server.URL, "refresh-secret", 0)

	id, err := client.CreateProduct(context.Background(), CourierProductRequest{
		Name:      "Mug",
		SKU:       "SKU-1",
		Price:     50,
		TaxAmount: 7.5,
	})
	require.NoError(t, err)
	assert.Equal(t, "prod-9", id)
}

func TestOTOClientMissingRefreshToken(t *testing.T) {
	client := NewOTOClient("http://localhost:0", "", 0)

	_, err := client.CreateOrder(context.Background(), CourierOrderRequest{})
	assert.Error(t, err)
}

func TestOTOClientMissingTrackingNumber(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/rest/v2/refreshToken" {
			json.NewEncoder(w).Encode(otoTokenResponse{AccessToken: "tok", ExpiresIn: 3600})
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewOTOClient(server.URL, "refresh-secret", 0)

	_, err := client.CreateOrder(context.Background(), CourierOrderRequest{})
	assert.ErrorContains(t, err, "tracking number")
}
