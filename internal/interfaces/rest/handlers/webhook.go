package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/tripflow/payment-coordinator/internal/application"
	"github.com/tripflow/payment-coordinator/internal/application/services"
	"github.com/tripflow/payment-coordinator/internal/interfaces/rest"
)

type webhookRequest struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// PaymentWebhook ingests a gateway callback. The raw body is kept as the
// audit payload; only order id and status are interpreted here.
func (h *Handlers) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		rest.WriteError(w, application.NewInvalidInputError(err), h.logger)
		return
	}

	var req webhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		rest.WriteError(w, application.NewInvalidInputError(err), h.logger)
		return
	}

	txn, err := h.payments.HandleWebhook(r.Context(), services.WebhookNotification{
		OrderID: req.OrderID,
		Status:  req.Status,
		Payload: json.RawMessage(body),
	})
	if err != nil {
		// A conflict means another worker holds the record. The gateway
		// will redeliver; tell it to try again.
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.SuccessResponse{
		Success: true,
		Data: map[string]string{
			"transaction_id": txn.ID,
			"status":         services.CallerStatus(txn.Status),
		},
	}, h.logger)
}
