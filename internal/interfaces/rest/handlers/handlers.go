// Package handlers wires the payment coordinator's HTTP surface onto the
// service layer.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/tripflow/payment-coordinator/internal/application/services"
)

type Handlers struct {
	payments *services.PaymentService
	logger   *slog.Logger
}

func NewHandlers(payments *services.PaymentService, logger *slog.Logger) *Handlers {
	return &Handlers{
		payments: payments,
		logger:   logger,
	}
}

// Register attaches all routes to the mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /payments", h.CreatePayment)
	mux.HandleFunc("GET /payments/{id}", h.GetPayment)
	mux.HandleFunc("GET /payments/{id}/transitions", h.GetPaymentTransitions)
	mux.HandleFunc("POST /payments/{id}/process", h.ProcessPayment)
	mux.HandleFunc("POST /payments/{id}/cancel", h.CancelPayment)
	mux.HandleFunc("POST /payments/{id}/refund", h.RefundPayment)
	mux.HandleFunc("POST /webhooks/payment", h.PaymentWebhook)
	mux.HandleFunc("GET /healthz", h.Health)
}
