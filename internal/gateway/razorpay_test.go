package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRazorpayClient_CreateIntent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/orders", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "key_id", user)
		assert.Equal(t, "key_secret", pass)

		var req razorpayOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(8000), req.Amount)
		assert.Equal(t, "INR", req.Currency)
		assert.Equal(t, "CM-20260314092653-ABCDEF", req.Receipt)
		assert.Equal(t, "user-1", req.Notes["user_id"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(razorpayOrder{
			ID:       "order_gw123",
			Amount:   req.Amount,
			Currency: req.Currency,
			Receipt:  req.Receipt,
			Status:   "created",
		})
	}))
	defer srv.Close()

	c := NewRazorpayClient(srv.URL, "key_id", "key_secret")
	id, err := c.CreateIntent(context.Background(), IntentRequest{
		Amount:   8000,
		Currency: "INR",
		Receipt:  "CM-20260314092653-ABCDEF",
		Notes:    map[string]string{"user_id": "user-1"},
	})

	require.NoError(t, err)
	assert.Equal(t, "order_gw123", id)
}

func TestRazorpayClient_CreateIntent_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"amount must be at least 100"}}`))
	}))
	defer srv.Close()

	c := NewRazorpayClient(srv.URL, "key_id", "key_secret")
	_, err := c.CreateIntent(context.Background(), IntentRequest{Amount: 1, Currency: "INR"})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIntentCreation)
	assert.Contains(t, err.Error(), "amount must be at least 100")
}

func TestRazorpayClient_FetchPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/v1/payments/pay_123", r.URL.Path)

		json.NewEncoder(w).Encode(razorpayPayment{
			ID:       "pay_123",
			OrderID:  "order_gw123",
			Status:   "captured",
			Method:   "upi",
			Amount:   8000,
			Currency: "INR",
		})
	}))
	defer srv.Close()

	c := NewRazorpayClient(srv.URL, "key_id", "key_secret")
	state, err := c.FetchPayment(context.Background(), "pay_123")

	require.NoError(t, err)
	assert.Equal(t, "pay_123", state.ID)
	assert.Equal(t, "order_gw123", state.OrderID)
	assert.True(t, state.Captured())
	assert.Equal(t, int64(8000), state.Amount)
}

func TestRazorpayClient_FetchPayment_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"payment not found"}}`))
	}))
	defer srv.Close()

	c := NewRazorpayClient(srv.URL, "key_id", "key_secret")
	_, err := c.FetchPayment(context.Background(), "pay_missing")

	assert.ErrorIs(t, err, ErrPaymentFetch)
}

func TestPaymentState_Captured(t *testing.T) {
	assert.True(t, (&PaymentState{Status: StateCaptured}).Captured())
	assert.True(t, (&PaymentState{Status: StateAuthorized}).Captured())
	assert.False(t, (&PaymentState{Status: StateCreated}).Captured())
	assert.False(t, (&PaymentState{Status: StateFailed}).Captured())
}
