package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/tripflow/payment-coordinator/internal/application"
	"github.com/tripflow/payment-coordinator/internal/application/services"
	"github.com/tripflow/payment-coordinator/internal/interfaces/rest"
)

type createPaymentRequest struct {
	TripID         string `json:"trip_id"`
	PayerID        string `json:"payer_id"`
	AmountCents    int64  `json:"amount_cents"`
	Currency       string `json:"currency"`
	Description    string `json:"description"`
	IdempotencyKey string `json:"idempotency_key"`
}

func (h *Handlers) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rest.WriteError(w, application.NewInvalidInputError(err), h.logger)
		return
	}

	txn, err := h.payments.CreatePayment(r.Context(), services.CreatePaymentCommand{
		TripID:         req.TripID,
		PayerID:        req.PayerID,
		AmountCents:    req.AmountCents,
		Currency:       req.Currency,
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.SuccessResponse{
		Success: true,
		Data:    rest.ToPaymentResponse(txn, ""),
	}, h.logger)
}

func (h *Handlers) GetPayment(w http.ResponseWriter, r *http.Request) {
	view, err := h.payments.GetStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.SuccessResponse{
		Success: true,
		Data:    rest.ToPaymentResponse(view.Transaction, ""),
	}, h.logger)
}

func (h *Handlers) GetPaymentTransitions(w http.ResponseWriter, r *http.Request) {
	entries, err := h.payments.GetTransitions(r.Context(), r.PathValue("id"))
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.SuccessResponse{
		Success: true,
		Data:    rest.ToTransitionResponses(entries),
	}, h.logger)
}

func (h *Handlers) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	result, err := h.payments.ProcessPayment(r.Context(), r.PathValue("id"))
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.SuccessResponse{
		Success: true,
		Data:    rest.ToPaymentResponse(result.Transaction, result.PaymentURL),
	}, h.logger)
}

type cancelPaymentRequest struct {
	Actor string `json:"actor"`
}

func (h *Handlers) CancelPayment(w http.ResponseWriter, r *http.Request) {
	// The body is optional; a bare POST cancels as the system actor.
	var req cancelPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req = cancelPaymentRequest{}
	}

	txn, err := h.payments.CancelPayment(r.Context(), services.CancelPaymentCommand{
		TransactionID: r.PathValue("id"),
		Actor:         req.Actor,
	})
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.SuccessResponse{
		Success: true,
		Data:    rest.ToPaymentResponse(txn, ""),
	}, h.logger)
}

type refundPaymentRequest struct {
	Actor string `json:"actor"`
}

func (h *Handlers) RefundPayment(w http.ResponseWriter, r *http.Request) {
	var req refundPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req = refundPaymentRequest{}
	}

	txn, err := h.payments.RefundPayment(r.Context(), services.RefundPaymentCommand{
		TransactionID: r.PathValue("id"),
		Actor:         req.Actor,
	})
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.SuccessResponse{
		Success: true,
		Data:    rest.ToPaymentResponse(txn, ""),
	}, h.logger)
}
