package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tripflow/payment-coordinator/internal/application"
	"github.com/tripflow/payment-coordinator/internal/config"
)

// HTTPGateway talks to a provider exposing a synchronous order API:
// create, fetch status, refund.
type HTTPGateway struct {
	name       string
	baseURL    string
	merchantID string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPGateway(cfg config.GatewayConfig) *HTTPGateway {
	return &HTTPGateway{
		name:       cfg.Name,
		baseURL:    cfg.BaseURL,
		merchantID: cfg.MerchantID,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
	}
}

func (g *HTTPGateway) Name() string {
	return g.name
}

func (g *HTTPGateway) CreateOrder(ctx context.Context, req application.CreateOrderRequest) (*application.GatewayResult, error) {
	url := fmt.Sprintf("%s/api/v1/orders", g.baseURL)
	body := createOrderRequest{
		MerchantOrderID: req.MerchantOrderID,
		MerchantID:      g.merchantID,
		AmountCents:     req.AmountCents,
		Currency:        req.Currency,
		CustomerID:      req.CustomerID,
		Description:     req.Description,
	}
	return sendRequest[createOrderRequest](g, ctx, http.MethodPost, url, &body)
}

func (g *HTTPGateway) GetOrderStatus(ctx context.Context, orderID string) (*application.GatewayResult, error) {
	url := fmt.Sprintf("%s/api/v1/orders/%s", g.baseURL, orderID)
	return sendRequest[any](g, ctx, http.MethodGet, url, nil)
}

func (g *HTTPGateway) Refund(ctx context.Context, orderID string, amountCents int64) (*application.GatewayResult, error) {
	url := fmt.Sprintf("%s/api/v1/refunds", g.baseURL)
	body := refundRequest{
		OrderID:     orderID,
		AmountCents: amountCents,
	}
	return sendRequest[refundRequest](g, ctx, http.MethodPost, url, &body)
}

func sendRequest[Req any](g *HTTPGateway, ctx context.Context, method, url string, reqBody *Req) (*application.GatewayResult, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("error marshalling json: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	if reqBody != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var gwErr errorResponse
		if err := json.Unmarshal(raw, &gwErr); err != nil {
			return nil, &application.GatewayError{
				Code:       "UNPARSEABLE_ERROR",
				Message:    string(raw),
				StatusCode: resp.StatusCode,
			}
		}
		return nil, &application.GatewayError{
			Code:       gwErr.Err,
			Message:    gwErr.Message,
			StatusCode: resp.StatusCode,
		}
	}

	var order orderResponse
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, fmt.Errorf("error decoding json response: %w", err)
	}

	return &application.GatewayResult{
		Status:        order.Status,
		OrderID:       order.OrderID,
		TransactionID: order.TransactionID,
		PaymentURL:    order.PaymentURL,
		Raw:           json.RawMessage(raw),
	}, nil
}
