package rest

import (
	"time"

	"github.com/tripflow/payment-coordinator/internal/application/services"
	"github.com/tripflow/payment-coordinator/internal/domain"
)

// PaymentResponse is the caller-facing view of a transaction. Status is the
// collapsed caller status; indeterminate internals never leak out.
type PaymentResponse struct {
	ID           string     `json:"id"`
	TripID       string     `json:"trip_id"`
	PayerID      string     `json:"payer_id"`
	AmountCents  int64      `json:"amount_cents"`
	Currency     string     `json:"currency"`
	Gateway      string     `json:"gateway"`
	Status       string     `json:"status"`
	PaymentURL   string     `json:"payment_url,omitempty"`
	ErrorCode    string     `json:"error_code,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	PaidAt       *time.Time `json:"paid_at,omitempty"`
}

type TransitionResponse struct {
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Trigger    string    `json:"trigger"`
	Actor      string    `json:"actor"`
	OccurredAt time.Time `json:"occurred_at"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

func ToPaymentResponse(txn *domain.Transaction, paymentURL string) PaymentResponse {
	resp := PaymentResponse{
		ID:          txn.ID,
		TripID:      txn.TripID,
		PayerID:     txn.PayerID,
		AmountCents: txn.AmountCents,
		Currency:    txn.Currency,
		Gateway:     txn.Gateway,
		Status:      services.CallerStatus(txn.Status),
		PaymentURL:  paymentURL,
		CreatedAt:   txn.CreatedAt,
		UpdatedAt:   txn.UpdatedAt,
	}

	if txn.Status == domain.StatusFailed {
		if txn.ErrorCode != nil {
			resp.ErrorCode = *txn.ErrorCode
		}
		if txn.ErrorMessage != nil {
			resp.ErrorMessage = *txn.ErrorMessage
		}
	}
	if txn.Status == domain.StatusPaid && txn.GatewayRespondedAt != nil {
		resp.PaidAt = txn.GatewayRespondedAt
	}

	return resp
}

func ToTransitionResponses(entries []domain.TransitionEntry) []TransitionResponse {
	out := make([]TransitionResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, TransitionResponse{
			FromStatus: string(e.FromStatus),
			ToStatus:   string(e.ToStatus),
			Trigger:    e.Trigger,
			Actor:      e.Actor,
			OccurredAt: e.OccurredAt,
		})
	}
	return out
}
