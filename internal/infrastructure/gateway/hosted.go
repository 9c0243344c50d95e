package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/tripflow/payment-coordinator/internal/application"
	"github.com/tripflow/payment-coordinator/internal/config"
)

// ErrNoStatusAPI marks providers that only report outcomes through
// webhooks. Reconciliation treats a poll against such a provider as an
// ambiguous result and keeps waiting.
var ErrNoStatusAPI = errors.New("gateway has no synchronous status API")

// HostedRedirectGateway wraps providers where the payer completes the
// payment on the provider's own page. CreateOrder yields a redirect URL
// and the final outcome arrives over a webhook.
type HostedRedirectGateway struct {
	inner *HTTPGateway
}

func NewHostedRedirectGateway(cfg config.GatewayConfig) *HostedRedirectGateway {
	return &HostedRedirectGateway{inner: NewHTTPGateway(cfg)}
}

func (g *HostedRedirectGateway) Name() string {
	return g.inner.Name()
}

func (g *HostedRedirectGateway) CreateOrder(ctx context.Context, req application.CreateOrderRequest) (*application.GatewayResult, error) {
	res, err := g.inner.CreateOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	if res.PaymentURL == "" {
		return nil, fmt.Errorf("hosted gateway %s returned no payment url", g.Name())
	}
	return res, nil
}

func (g *HostedRedirectGateway) GetOrderStatus(ctx context.Context, orderID string) (*application.GatewayResult, error) {
	return nil, ErrNoStatusAPI
}

func (g *HostedRedirectGateway) Refund(ctx context.Context, orderID string, amountCents int64) (*application.GatewayResult, error) {
	return g.inner.Refund(ctx, orderID, amountCents)
}
