package postgres

import (
	"encoding/json"
	"time"
)

// transactionModel mirrors the payment_transactions row layout.
type transactionModel struct {
	ID                   string
	TripID               string
	PayerID              string
	AmountCents          int64
	Currency             string
	Description          string
	Gateway              string
	IdempotencyKey       string
	GatewayOrderID       *string
	GatewayTransactionID *string

	Status         string
	PreviousStatus *string

	GatewayRequest  []byte
	GatewayResponse []byte
	GatewayError    []byte
	ErrorCode       *string
	ErrorMessage    *string

	ReconciliationAttempts int
	LastReconciliationAt   *time.Time
	NextReconciliationAt   *time.Time

	RetryCount  int
	LastRetryAt *time.Time

	GatewaySentAt      *time.Time
	GatewayRespondedAt *time.Time
	ResponseTimeMs     *int64

	LockToken *string
	LockedBy  *string
	LockedAt  *time.Time

	WebhookReceived   bool
	WebhookReceivedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

type transitionModel struct {
	ID            int64
	TransactionID string
	FromStatus    string
	ToStatus      string
	Trigger       string
	Context       json.RawMessage
	Actor         string
	OccurredAt    time.Time
}
