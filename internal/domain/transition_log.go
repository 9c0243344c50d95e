package domain

import (
	"encoding/json"
	"time"
)

// Trigger labels for transition audit entries.
const (
	TriggerGatewayRequestSent = "gateway_request_sent"
	TriggerGatewayResponse    = "gateway_response"
	TriggerGatewayError       = "gateway_error"
	TriggerReconciliation     = "reconciliation"
	TriggerWebhook            = "webhook"
	TriggerRetryExhausted     = "retry_exhausted"
	TriggerCallerCancel       = "caller_cancel"
	TriggerAdminOverride      = "admin_override"
)

// ActorSystem is the actor recorded for transitions not initiated by an operator.
const ActorSystem = "system"

// TransitionEntry is one row of the append-only audit trail. Entries are
// written once per accepted transition and never updated or read by any
// downstream logic.
type TransitionEntry struct {
	ID            int64
	TransactionID string
	FromStatus    TransactionStatus
	ToStatus      TransactionStatus
	Trigger       string
	Context       json.RawMessage
	Actor         string
	OccurredAt    time.Time
}
