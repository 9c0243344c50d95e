// Package domain encodes the payment transaction aggregate and its state machine.
package domain

import (
	"encoding/json"
	"slices"
	"time"
)

// TransactionStatus represents the current state of a payment transaction in its lifecycle.
type TransactionStatus string

const (
	StatusCreated        TransactionStatus = "created"
	StatusPendingGateway TransactionStatus = "pending_gateway"
	StatusProcessing     TransactionStatus = "processing"
	StatusPaid           TransactionStatus = "paid"
	StatusFailed         TransactionStatus = "failed"
	StatusUnknown        TransactionStatus = "unknown"
	StatusRefunded       TransactionStatus = "refunded"
	StatusCancelled      TransactionStatus = "cancelled"
)

// FinalStatuses have no outbound edges except paid -> refunded.
var FinalStatuses = []TransactionStatus{
	StatusPaid,
	StatusFailed,
	StatusRefunded,
	StatusCancelled,
}

// ReconciliationStatuses are the non-final states a reconciliation pass can resolve.
var ReconciliationStatuses = []TransactionStatus{
	StatusPendingGateway,
	StatusProcessing,
	StatusUnknown,
}

// allowedTransitions is the single source of truth for the state machine.
// unknown is the only non-final state reachable from every other non-final
// state, which is what lets reconciliation recover from any ambiguity.
var allowedTransitions = map[TransactionStatus][]TransactionStatus{
	StatusCreated:        {StatusPendingGateway, StatusCancelled},
	StatusPendingGateway: {StatusProcessing, StatusPaid, StatusFailed, StatusUnknown, StatusCancelled},
	StatusProcessing:     {StatusPaid, StatusFailed, StatusUnknown},
	StatusPaid:           {StatusRefunded},
	StatusUnknown:        {StatusPaid, StatusFailed, StatusProcessing},
	StatusFailed:         {},
	StatusRefunded:       {},
	StatusCancelled:      {},
}

// CanTransition reports whether the state machine allows moving from one
// status to another. Pure table lookup, no side effects.
func CanTransition(from, to TransactionStatus) bool {
	allowed, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(allowed, to)
}

// Transaction is the aggregate root for a single trip payment. Its status
// only ever changes through transition; everything else is set via the
// narrow mutators below.
type Transaction struct {
	ID             string
	TripID         string
	PayerID        string
	AmountCents    int64
	Currency       string
	Description    string
	Gateway        string
	IdempotencyKey string

	GatewayOrderID       *string
	GatewayTransactionID *string

	Status         TransactionStatus
	PreviousStatus *TransactionStatus

	GatewayRequest  json.RawMessage
	GatewayResponse json.RawMessage
	GatewayError    json.RawMessage
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

	pendingTransitions []TransitionEntry
}

func NewTransaction(id, tripID, payerID string, amount Money, gateway, idempotencyKey string) (*Transaction, error) {
	if id == "" {
		return nil, NewMissingRequiredFieldError("transaction ID")
	}
	if tripID == "" {
		return nil, NewMissingRequiredFieldError("trip ID")
	}
	if payerID == "" {
		return nil, NewMissingRequiredFieldError("payer ID")
	}
	if gateway == "" {
		return nil, NewMissingRequiredFieldError("gateway")
	}
	if idempotencyKey == "" {
		return nil, NewMissingRequiredFieldError("idempotency key")
	}

	now := time.Now()
	return &Transaction{
		ID:             id,
		TripID:         tripID,
		PayerID:        payerID,
		AmountCents:    amount.Amount,
		Currency:       amount.Currency,
		Gateway:        gateway,
		IdempotencyKey: idempotencyKey,
		Status:         StatusCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Reconstitute rebuilds an aggregate from its persisted snapshot. Storage
// mappers go through it instead of assembling the struct themselves; the
// row was validated when written, so no checks run here.
func Reconstitute(snapshot Transaction) *Transaction {
	t := snapshot
	t.pendingTransitions = nil
	return &t
}

// transition is the only writer of Status. It validates against the
// transition table and records an audit entry; callers persist the record
// and the drained entries in one storage transaction.
func (t *Transaction) transition(to TransactionStatus, trigger, actor string, context json.RawMessage) error {
	if !CanTransition(t.Status, to) {
		return NewInvalidTransitionError(t.Status, to)
	}

	from := t.Status
	t.PreviousStatus = &from
	t.Status = to
	t.UpdatedAt = time.Now()

	if t.IsFinal() {
		t.NextReconciliationAt = nil
	}

	t.pendingTransitions = append(t.pendingTransitions, TransitionEntry{
		TransactionID: t.ID,
		FromStatus:    from,
		ToStatus:      to,
		Trigger:       trigger,
		Context:       context,
		Actor:         actor,
		OccurredAt:    t.UpdatedAt,
	})

	return nil
}

// TakeTransitions drains audit entries accumulated since the last persist.
func (t *Transaction) TakeTransitions() []TransitionEntry {
	entries := t.pendingTransitions
	t.pendingTransitions = nil
	return entries
}

func (t *Transaction) IsFinal() bool {
	return slices.Contains(FinalStatuses, t.Status)
}

// NeedsReconciliation reports whether a reconciliation pass could still
// resolve this record given the configured attempt cap.
func (t *Transaction) NeedsReconciliation(maxAttempts int) bool {
	return slices.Contains(ReconciliationStatuses, t.Status) &&
		t.ReconciliationAttempts < maxAttempts
}

// MarkPendingGateway records the outgoing request snapshot and transitions
// to pending_gateway. After this point a network failure is no longer safe
// to retry blindly.
func (t *Transaction) MarkPendingGateway(request json.RawMessage) error {
	// A resubmission after a provably-unsent failure is already in
	// pending_gateway; only the first dispatch records the transition.
	if t.Status != StatusPendingGateway {
		if err := t.transition(StatusPendingGateway, TriggerGatewayRequestSent, ActorSystem, request); err != nil {
			return err
		}
	}
	now := time.Now()
	t.GatewayRequest = request
	t.GatewaySentAt = &now
	return nil
}

// RecordGatewayOrder stores the gateway-side identifiers once assigned.
func (t *Transaction) RecordGatewayOrder(orderID, transactionID string) {
	if orderID != "" {
		t.GatewayOrderID = &orderID
	}
	if transactionID != "" {
		t.GatewayTransactionID = &transactionID
	}
	t.UpdatedAt = time.Now()
}

// MarkPaid is the single definitive-success path.
func (t *Transaction) MarkPaid(response json.RawMessage, trigger string) error {
	if err := t.transition(StatusPaid, trigger, ActorSystem, response); err != nil {
		return err
	}
	t.recordResponse(response)
	t.NextReconciliationAt = nil
	return nil
}

// MarkFailed is the single definitive-failure path.
func (t *Transaction) MarkFailed(response json.RawMessage, code, message, trigger string) error {
	if err := t.transition(StatusFailed, trigger, ActorSystem, response); err != nil {
		return err
	}
	t.recordResponse(response)
	t.setError(code, message)
	t.NextReconciliationAt = nil
	return nil
}

// MarkUnknown parks the transaction in the ambiguous state so that
// reconciliation, not a guess, resolves it.
func (t *Transaction) MarkUnknown(errPayload json.RawMessage, code, message string) error {
	if err := t.transition(StatusUnknown, TriggerGatewayError, ActorSystem, errPayload); err != nil {
		return err
	}
	t.GatewayError = errPayload
	t.setError(code, message)
	return nil
}

// MarkProcessing records an in-flight gateway status.
func (t *Transaction) MarkProcessing(response json.RawMessage, trigger string) error {
	if err := t.transition(StatusProcessing, trigger, ActorSystem, response); err != nil {
		return err
	}
	t.recordResponse(response)
	return nil
}

// Cancel ends a transaction that never reached a definitive gateway outcome.
func (t *Transaction) Cancel(trigger, actor string) error {
	if err := t.transition(StatusCancelled, trigger, actor, nil); err != nil {
		return err
	}
	t.NextReconciliationAt = nil
	return nil
}

// MarkRefunded is the sole terminal-to-terminal edge.
func (t *Transaction) MarkRefunded(response json.RawMessage, trigger, actor string) error {
	if err := t.transition(StatusRefunded, trigger, actor, response); err != nil {
		return err
	}
	t.recordResponse(response)
	return nil
}

// MarkWebhookReceived records that a gateway callback arrived; the status
// change itself still goes through the classification path.
func (t *Transaction) MarkWebhookReceived(payload json.RawMessage) {
	now := time.Now()
	t.WebhookReceived = true
	t.WebhookReceivedAt = &now
	if payload != nil {
		t.GatewayResponse = payload
	}
	t.UpdatedAt = now
}

// ScheduleReconciliation bumps the attempt counter and computes the next
// eligible time from the backoff policy. next_reconciliation_at never moves
// backwards while the record is non-final.
func (t *Transaction) ScheduleReconciliation(policy BackoffPolicy) {
	now := time.Now()
	t.ReconciliationAttempts++
	t.LastReconciliationAt = &now

	next := now.Add(policy.Delay(t.ReconciliationAttempts))
	if t.NextReconciliationAt == nil || next.After(*t.NextReconciliationAt) {
		t.NextReconciliationAt = &next
	}
	t.UpdatedAt = now
}

// StopReconciliation clears scheduling once the record is final or the
// attempt cap is reached.
func (t *Transaction) StopReconciliation() {
	t.NextReconciliationAt = nil
	t.UpdatedAt = time.Now()
}

// ScheduleRetry bumps the pre-send retry counter. Only valid while still in
// created, where it is certain no request reached the gateway.
func (t *Transaction) ScheduleRetry() {
	now := time.Now()
	t.RetryCount++
	t.LastRetryAt = &now
	t.UpdatedAt = now
}

func (t *Transaction) recordResponse(response json.RawMessage) {
	now := time.Now()
	if response != nil {
		t.GatewayResponse = response
	}
	t.GatewayRespondedAt = &now
	if t.GatewaySentAt != nil {
		ms := now.Sub(*t.GatewaySentAt).Milliseconds()
		t.ResponseTimeMs = &ms
	}
}

func (t *Transaction) setError(code, message string) {
	if code != "" {
		t.ErrorCode = &code
	}
	if message != "" {
		t.ErrorMessage = &message
	}
}

func (t *Transaction) Amount() Money {
	return Money{Amount: t.AmountCents, Currency: t.Currency}
}
