package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripflow/payment-coordinator/internal/application"
	"github.com/tripflow/payment-coordinator/internal/config"
)

func testConfig(baseURL string) config.GatewayConfig {
	return config.GatewayConfig{
		Name:           "mockpay",
		BaseURL:        baseURL,
		MerchantID:     "merchant-1",
		APIKey:         "secret",
		RequestTimeout: 5 * time.Second,
	}
}

func TestHTTPGateway_CreateOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/orders", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req createOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "merchant-1", req.MerchantID)
		assert.Equal(t, int64(5000), req.AmountCents)

		json.NewEncoder(w).Encode(orderResponse{
			OrderID:       "gw-1",
			TransactionID: "gwtxn-1",
			Status:        "SUCCESS",
		})
	}))
	defer server.Close()

	gw := NewHTTPGateway(testConfig(server.URL))

	res, err := gw.CreateOrder(context.Background(), application.CreateOrderRequest{
		MerchantOrderID: "txn-1",
		AmountCents:     5000,
		Currency:        "EGP",
		CustomerID:      "payer-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "gw-1", res.OrderID)
	assert.Equal(t, "SUCCESS", res.Status)
	assert.NotEmpty(t, res.Raw)
}

func TestHTTPGateway_ErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(errorResponse{Err: "INVALID_CURRENCY", Message: "unsupported currency"})
	}))
	defer server.Close()

	gw := NewHTTPGateway(testConfig(server.URL))

	_, err := gw.CreateOrder(context.Background(), application.CreateOrderRequest{MerchantOrderID: "txn-1"})
	gwErr, ok := application.IsGatewayError(err)
	require.True(t, ok)
	assert.Equal(t, "INVALID_CURRENCY", gwErr.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, gwErr.StatusCode)
}

func TestHTTPGateway_NotFoundStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(errorResponse{Err: "NOT_FOUND", Message: "no such order"})
	}))
	defer server.Close()

	gw := NewHTTPGateway(testConfig(server.URL))

	_, err := gw.GetOrderStatus(context.Background(), "gw-missing")
	cls := application.ClassifyError(err)
	assert.Equal(t, application.OutcomeNotFound, cls.Outcome)
}

func TestHTTPGateway_MalformedSuccessBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not json"))
	}))
	defer server.Close()

	gw := NewHTTPGateway(testConfig(server.URL))

	_, err := gw.CreateOrder(context.Background(), application.CreateOrderRequest{MerchantOrderID: "txn-1"})
	require.Error(t, err)

	// A 200 with an unreadable body proves nothing about the charge.
	cls := application.ClassifyError(err)
	assert.Equal(t, application.OutcomeAmbiguous, cls.Outcome)
}

func TestHostedRedirectGateway(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(orderResponse{
			OrderID:    "gw-1",
			Status:     "PENDING",
			PaymentURL: "https://pay.example.com/checkout/gw-1",
		})
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.HostedRedirect = true
	gw := New(cfg)

	res, err := gw.CreateOrder(context.Background(), application.CreateOrderRequest{MerchantOrderID: "txn-1"})
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/checkout/gw-1", res.PaymentURL)

	_, err = gw.GetOrderStatus(context.Background(), "gw-1")
	assert.ErrorIs(t, err, ErrNoStatusAPI)
}

func TestHostedRedirectGateway_MissingPaymentURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(orderResponse{OrderID: "gw-1", Status: "PENDING"})
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.HostedRedirect = true
	gw := New(cfg)

	_, err := gw.CreateOrder(context.Background(), application.CreateOrderRequest{MerchantOrderID: "txn-1"})
	assert.Error(t, err)
}
