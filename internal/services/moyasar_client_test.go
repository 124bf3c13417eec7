package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoyasarCreateCharge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/payments", r.URL.Path)

		user, _, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "sk_test_123", user)
		assert.Equal(t, "idem-1", r.Header.Get("Idempotency-Key"))

		var req CreateChargeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(13500), req.Amount)
		assert.Equal(t, "SAR", req.Currency)

		json.NewEncoder(w).Encode(GatewayPayment{
			ID:       "pay_1",
			Status:   PaymentStatusInitiated,
			Amount:   req.Amount,
			Currency: req.Currency,
			Metadata: req.Metadata,
		})
	}))
	defer server.Close()

	client := NewMoyasarClient(server.URL, "sk_test_123", 0)

	payment, err := client.CreateCharge(context.Background(), CreateChargeRequest{
		Amount:   13500,
		Currency: "SAR",
		Source:   PaymentSource{Type: "token", Token: "tok_x"},
		Metadata: map[string]string{"order_number": "ORD-1"},
	}, "idem-1")
	require.NoError(t, err)
	assert.Equal(t, "pay_1", payment.ID)
	assert.Equal(t, PaymentStatusInitiated, payment.Status)
	assert.Equal(t, "ORD-1", payment.Metadata["order_number"])
}

func TestMoyasarGetCharge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/payments/pay_1", r.URL.Path)
		json.NewEncoder(w).Encode(GatewayPayment{ID: "pay_1", Status: PaymentStatusPaid})
	}))
	defer server.Close()

	client := NewMoyasarClient(server.URL, "sk_test_123", 0)

	payment, err := client.GetCharge(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusPaid, payment.Status)
}

func TestMoyasarRefund(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/payments/pay_1/refund", r.URL.Path)
		json.NewEncoder(w).Encode(GatewayPayment{ID: "pay_1", Status: PaymentStatusRefunded})
	}))
	defer server.Close()

	client := NewMoyasarClient(server.URL, "sk_test_123", 0)

	payment, err := client.Refund(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusRefunded, payment.Status)
}

func TestMoyasarErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"invalid source"}`))
	}))
	defer server.Close()

	client := NewMoyasarClient(server.URL, "sk_test_123", 0)

	_, err := client.GetCharge(context.Background(), "pay_1")
	assert.ErrorContains(t, err, "status 400")
}
