package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransaction(t *testing.T) *Transaction {
	t.Helper()
	money, err := NewMoney(5000, "EGP")
	require.NoError(t, err)
	txn, err := NewTransaction("txn-1", "trip-1", "payer-1", money, "mockpay", "key-1")
	require.NoError(t, err)
	return txn
}

func TestNewTransaction(t *testing.T) {
	txn := newTestTransaction(t)

	assert.Equal(t, StatusCreated, txn.Status)
	assert.Nil(t, txn.PreviousStatus)
	assert.Equal(t, int64(5000), txn.AmountCents)
	assert.Empty(t, txn.TakeTransitions())
}

func TestNewTransaction_MissingFields(t *testing.T) {
	money, _ := NewMoney(100, "USD")

	_, err := NewTransaction("", "trip-1", "payer-1", money, "mockpay", "key")
	assert.ErrorIs(t, err, ErrMissingRequiredField)

	_, err = NewTransaction("id", "", "payer-1", money, "mockpay", "key")
	assert.ErrorIs(t, err, ErrMissingRequiredField)

	_, err = NewTransaction("id", "trip-1", "payer-1", money, "mockpay", "")
	assert.ErrorIs(t, err, ErrMissingRequiredField)
}

func TestCanTransition_Table(t *testing.T) {
	all := []TransactionStatus{
		StatusCreated, StatusPendingGateway, StatusProcessing, StatusPaid,
		StatusFailed, StatusUnknown, StatusRefunded, StatusCancelled,
	}

	allowed := map[TransactionStatus][]TransactionStatus{
		StatusCreated:        {StatusPendingGateway, StatusCancelled},
		StatusPendingGateway: {StatusProcessing, StatusPaid, StatusFailed, StatusUnknown, StatusCancelled},
		StatusProcessing:     {StatusPaid, StatusFailed, StatusUnknown},
		StatusPaid:           {StatusRefunded},
		StatusUnknown:        {StatusPaid, StatusFailed, StatusProcessing},
		StatusFailed:         {},
		StatusRefunded:       {},
		StatusCancelled:      {},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTransition_TerminalStatesAreImmutable(t *testing.T) {
	for _, final := range []TransactionStatus{StatusFailed, StatusRefunded, StatusCancelled} {
		txn := newTestTransaction(t)
		txn.Status = final

		err := txn.MarkPaid(nil, TriggerGatewayResponse)
		assert.ErrorIs(t, err, ErrInvalidTransition, "from %s", final)
	}

	// paid only admits refunded
	txn := newTestTransaction(t)
	txn.Status = StatusPaid
	assert.ErrorIs(t, txn.MarkFailed(nil, "X", "x", TriggerGatewayResponse), ErrInvalidTransition)
	assert.NoError(t, txn.MarkRefunded(nil, TriggerGatewayResponse, ActorSystem))
}

func TestTransition_RecordsAuditEntries(t *testing.T) {
	txn := newTestTransaction(t)
	request := json.RawMessage(`{"amount_cents":5000}`)

	require.NoError(t, txn.MarkPendingGateway(request))
	require.NoError(t, txn.MarkPaid(json.RawMessage(`{"status":"SUCCESS"}`), TriggerGatewayResponse))

	entries := txn.TakeTransitions()
	require.Len(t, entries, 2)

	assert.Equal(t, StatusCreated, entries[0].FromStatus)
	assert.Equal(t, StatusPendingGateway, entries[0].ToStatus)
	assert.Equal(t, TriggerGatewayRequestSent, entries[0].Trigger)
	assert.Equal(t, ActorSystem, entries[0].Actor)

	assert.Equal(t, StatusPendingGateway, entries[1].FromStatus)
	assert.Equal(t, StatusPaid, entries[1].ToStatus)
	assert.Equal(t, TriggerGatewayResponse, entries[1].Trigger)

	// drained once, gone
	assert.Empty(t, txn.TakeTransitions())

	require.NotNil(t, txn.PreviousStatus)
	assert.Equal(t, StatusPendingGateway, *txn.PreviousStatus)
}

func TestMarkPendingGateway_ResubmissionKeepsSingleEntry(t *testing.T) {
	txn := newTestTransaction(t)

	require.NoError(t, txn.MarkPendingGateway(json.RawMessage(`{"try":1}`)))
	require.NoError(t, txn.MarkPendingGateway(json.RawMessage(`{"try":2}`)))

	entries := txn.TakeTransitions()
	assert.Len(t, entries, 1)
	assert.Equal(t, json.RawMessage(`{"try":2}`), txn.GatewayRequest)
}

func TestMarkUnknown_KeepsReconciliationEligibility(t *testing.T) {
	txn := newTestTransaction(t)
	require.NoError(t, txn.MarkPendingGateway(nil))
	require.NoError(t, txn.MarkUnknown(json.RawMessage(`{"error":"timeout"}`), "GATEWAY_TIMEOUT", "timed out"))

	assert.Equal(t, StatusUnknown, txn.Status)
	assert.True(t, txn.NeedsReconciliation(10))
	require.NotNil(t, txn.ErrorCode)
	assert.Equal(t, "GATEWAY_TIMEOUT", *txn.ErrorCode)
}

func TestFinalTransitionClearsReconciliation(t *testing.T) {
	txn := newTestTransaction(t)
	require.NoError(t, txn.MarkPendingGateway(nil))

	next := time.Now().Add(time.Minute)
	txn.NextReconciliationAt = &next

	require.NoError(t, txn.MarkPaid(nil, TriggerReconciliation))

	assert.Nil(t, txn.NextReconciliationAt)
	assert.False(t, txn.NeedsReconciliation(10))
}

func TestScheduleReconciliation_NeverMovesBackwards(t *testing.T) {
	txn := newTestTransaction(t)
	require.NoError(t, txn.MarkPendingGateway(nil))

	policy := BackoffPolicy{
		Strategy:     BackoffExponential,
		InitialDelay: time.Minute,
		MaxDelay:     time.Hour,
	}

	far := time.Now().Add(48 * time.Hour)
	txn.NextReconciliationAt = &far

	txn.ScheduleReconciliation(policy)

	assert.Equal(t, 1, txn.ReconciliationAttempts)
	assert.Equal(t, far, *txn.NextReconciliationAt)
	require.NotNil(t, txn.LastReconciliationAt)
}

func TestScheduleReconciliation_AdvancesAttempts(t *testing.T) {
	txn := newTestTransaction(t)
	require.NoError(t, txn.MarkPendingGateway(nil))

	policy := BackoffPolicy{
		Strategy:     BackoffExponential,
		InitialDelay: time.Minute,
		MaxDelay:     time.Hour,
	}

	txn.ScheduleReconciliation(policy)
	first := *txn.NextReconciliationAt
	txn.ScheduleReconciliation(policy)

	assert.Equal(t, 2, txn.ReconciliationAttempts)
	assert.True(t, txn.NextReconciliationAt.After(first))
}

func TestNeedsReconciliation_RespectsCap(t *testing.T) {
	txn := newTestTransaction(t)
	require.NoError(t, txn.MarkPendingGateway(nil))

	txn.ReconciliationAttempts = 10
	assert.False(t, txn.NeedsReconciliation(10))
	assert.True(t, txn.NeedsReconciliation(11))
}

func TestCancel_OnlyBeforeDefinitiveOutcome(t *testing.T) {
	txn := newTestTransaction(t)
	require.NoError(t, txn.Cancel(TriggerCallerCancel, "rider-7"))
	assert.Equal(t, StatusCancelled, txn.Status)

	entries := txn.TakeTransitions()
	require.Len(t, entries, 1)
	assert.Equal(t, "rider-7", entries[0].Actor)

	paid := newTestTransaction(t)
	paid.Status = StatusPaid
	assert.ErrorIs(t, paid.Cancel(TriggerCallerCancel, ActorSystem), ErrInvalidTransition)

	processing := newTestTransaction(t)
	processing.Status = StatusProcessing
	assert.ErrorIs(t, processing.Cancel(TriggerCallerCancel, ActorSystem), ErrInvalidTransition)
}

func TestRecordResponse_ComputesLatency(t *testing.T) {
	txn := newTestTransaction(t)
	sent := time.Now().Add(-250 * time.Millisecond)
	require.NoError(t, txn.MarkPendingGateway(nil))
	txn.GatewaySentAt = &sent

	require.NoError(t, txn.MarkPaid(json.RawMessage(`{}`), TriggerGatewayResponse))

	require.NotNil(t, txn.ResponseTimeMs)
	assert.GreaterOrEqual(t, *txn.ResponseTimeMs, int64(250))
}

func TestReconstitute_RebuildsWithoutPendingEntries(t *testing.T) {
	source := newTestTransaction(t)
	require.NoError(t, source.MarkPendingGateway(nil))
	require.NoError(t, source.MarkPaid(json.RawMessage(`{}`), TriggerGatewayResponse))

	// The snapshot carries undrained audit entries; the rebuilt aggregate
	// must not inherit them.
	loaded := Reconstitute(*source)

	assert.Equal(t, StatusPaid, loaded.Status)
	assert.True(t, loaded.IsFinal())
	assert.Empty(t, loaded.TakeTransitions())
	require.Len(t, source.TakeTransitions(), 2)

	// A reloaded aggregate still enforces the transition table.
	assert.ErrorIs(t, loaded.Cancel(TriggerCallerCancel, ActorSystem), ErrInvalidTransition)
	require.NoError(t, loaded.MarkRefunded(nil, TriggerGatewayResponse, "support-1"))
	assert.Len(t, loaded.TakeTransitions(), 1)
}
