package services

import "encoding/json"

// CreatePaymentCommand opens a payment record for a trip. Amount is in the
// currency's minor unit. IdempotencyKey is optional; when empty one is
// derived from the trip, payer and amount.
type CreatePaymentCommand struct {
	TripID         string
	PayerID        string
	AmountCents    int64
	Currency       string
	Description    string
	IdempotencyKey string
}

// CancelPaymentCommand ends a payment that has no definitive gateway outcome.
type CancelPaymentCommand struct {
	TransactionID string
	Actor         string
}

// RefundPaymentCommand reverses a paid transaction at the gateway.
type RefundPaymentCommand struct {
	TransactionID string
	Actor         string
}

// WebhookNotification is a gateway callback reporting an order's outcome.
type WebhookNotification struct {
	OrderID string
	Status  string
	Payload json.RawMessage
}
