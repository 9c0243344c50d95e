package gateway

import (
	"github.com/tripflow/payment-coordinator/internal/application"
	"github.com/tripflow/payment-coordinator/internal/config"
)

// New resolves the configured provider once at startup. Every record
// created by this process carries the same gateway name.
func New(cfg config.GatewayConfig) application.GatewayAdapter {
	if cfg.HostedRedirect {
		return NewHostedRedirectGateway(cfg)
	}
	return NewHTTPGateway(cfg)
}
