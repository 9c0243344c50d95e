package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripflow/payment-coordinator/internal/application"
	"github.com/tripflow/payment-coordinator/internal/application/mocks"
	"github.com/tripflow/payment-coordinator/internal/application/services"
	"github.com/tripflow/payment-coordinator/internal/config"
	"github.com/tripflow/payment-coordinator/internal/domain"
	"github.com/tripflow/payment-coordinator/internal/worker"
)

type reconcilerFixture struct {
	repo       *mocks.MockTransactionRepository
	lock       *mocks.MockTransactionLock
	gateway    *mocks.MockGatewayAdapter
	reconciler *worker.Reconciler
	cfg        config.ReconciliationConfig
}

func newReconcilerFixture() *reconcilerFixture {
	repo := mocks.NewMockTransactionRepository()
	lck := mocks.NewMockTransactionLock()
	gw := mocks.NewMockGatewayAdapter()

	cfg := config.ReconciliationConfig{
		Interval:        30 * time.Second,
		BatchSize:       50,
		MaxAttempts:     10,
		BackoffStrategy: "exponential",
		InitialDelay:    time.Minute,
		MaxDelay:        time.Hour,
		NotFoundGrace:   5 * time.Minute,
		NotFoundMisses:  3,
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := worker.NewReconciler(
		repo,
		lck,
		gw,
		services.NewOutcomeResolver(cfg),
		cfg,
		config.LockingConfig{Driver: "database", Timeout: 10 * time.Second},
		logger,
	)

	return &reconcilerFixture{repo: repo, lock: lck, gateway: gw, reconciler: r, cfg: cfg}
}

func seedUnknownTransaction(t *testing.T, f *reconcilerFixture, id string) *domain.Transaction {
	t.Helper()

	money, err := domain.NewMoney(5000, "EGP")
	require.NoError(t, err)
	txn, err := domain.NewTransaction(id, "trip-"+id, "payer-1", money, "mockpay", "key-"+id)
	require.NoError(t, err)

	require.NoError(t, txn.MarkPendingGateway(json.RawMessage(`{}`)))
	require.NoError(t, txn.MarkUnknown(json.RawMessage(`{"error":"timeout"}`), "GATEWAY_TIMEOUT", "timed out"))
	orderID := "gw-" + id
	txn.RecordGatewayOrder(orderID, "")
	txn.TakeTransitions()

	require.NoError(t, f.repo.Create(context.Background(), txn))
	return txn
}

func TestReconciler_ResolvesUnknownToPaid(t *testing.T) {
	f := newReconcilerFixture()
	txn := seedUnknownTransaction(t, f, "txn-1")

	f.gateway.GetOrderStatusFn = func(ctx context.Context, orderID string) (*application.GatewayResult, error) {
		assert.Equal(t, "gw-txn-1", orderID)
		return &application.GatewayResult{Status: "SUCCESS", OrderID: orderID}, nil
	}

	f.reconciler.RunOnce(context.Background())

	assert.Equal(t, domain.StatusPaid, txn.Status)
	assert.Nil(t, txn.NextReconciliationAt)
	assert.False(t, f.lock.Held(txn.ID))

	entries := f.repo.Transitions(txn.ID)
	require.NotEmpty(t, entries)
	assert.Equal(t, domain.TriggerReconciliation, entries[len(entries)-1].Trigger)
}

func TestReconciler_ResolvesUnknownToFailed(t *testing.T) {
	f := newReconcilerFixture()
	txn := seedUnknownTransaction(t, f, "txn-1")

	f.gateway.GetOrderStatusFn = func(ctx context.Context, orderID string) (*application.GatewayResult, error) {
		return &application.GatewayResult{Status: "DECLINED", OrderID: orderID}, nil
	}

	f.reconciler.RunOnce(context.Background())

	assert.Equal(t, domain.StatusFailed, txn.Status)
	assert.Nil(t, txn.NextReconciliationAt)
}

func TestReconciler_AmbiguousPollSchedulesNextAttempt(t *testing.T) {
	f := newReconcilerFixture()
	txn := seedUnknownTransaction(t, f, "txn-1")

	f.gateway.GetOrderStatusFn = func(ctx context.Context, orderID string) (*application.GatewayResult, error) {
		return nil, &application.GatewayError{Code: "E", Message: "busy", StatusCode: 503}
	}

	f.reconciler.RunOnce(context.Background())

	assert.Equal(t, domain.StatusUnknown, txn.Status)
	assert.Equal(t, 1, txn.ReconciliationAttempts)
	require.NotNil(t, txn.NextReconciliationAt)
	assert.True(t, txn.NextReconciliationAt.After(time.Now()))
}

func TestReconciler_ConnectFailureKeepsStatus(t *testing.T) {
	f := newReconcilerFixture()
	txn := seedUnknownTransaction(t, f, "txn-1")

	f.gateway.GetOrderStatusFn = func(ctx context.Context, orderID string) (*application.GatewayResult, error) {
		return nil, &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	}

	f.reconciler.RunOnce(context.Background())

	assert.Equal(t, domain.StatusUnknown, txn.Status)
	assert.Equal(t, 1, txn.ReconciliationAttempts)
}

func TestReconciler_NotFoundWithinGraceKeepsWaiting(t *testing.T) {
	f := newReconcilerFixture()
	txn := seedUnknownTransaction(t, f, "txn-1")

	f.gateway.GetOrderStatusFn = func(ctx context.Context, orderID string) (*application.GatewayResult, error) {
		return nil, &application.GatewayError{Code: "NOT_FOUND", Message: "no such order", StatusCode: 404}
	}

	f.reconciler.RunOnce(context.Background())

	assert.Equal(t, domain.StatusUnknown, txn.Status)
	assert.Equal(t, 1, txn.ReconciliationAttempts)
}

func TestReconciler_NotFoundPastGraceFails(t *testing.T) {
	f := newReconcilerFixture()
	txn := seedUnknownTransaction(t, f, "txn-1")
	txn.CreatedAt = time.Now().Add(-10 * time.Minute)
	txn.ReconciliationAttempts = 3

	f.gateway.GetOrderStatusFn = func(ctx context.Context, orderID string) (*application.GatewayResult, error) {
		return nil, &application.GatewayError{Code: "NOT_FOUND", Message: "no such order", StatusCode: 404}
	}

	f.reconciler.RunOnce(context.Background())

	assert.Equal(t, domain.StatusFailed, txn.Status)
	assert.Nil(t, txn.NextReconciliationAt)
}

func TestReconciler_EscalatesAtAttemptCap(t *testing.T) {
	f := newReconcilerFixture()
	txn := seedUnknownTransaction(t, f, "txn-1")
	txn.ReconciliationAttempts = 9

	f.gateway.GetOrderStatusFn = func(ctx context.Context, orderID string) (*application.GatewayResult, error) {
		return nil, &application.GatewayError{Code: "E", Message: "busy", StatusCode: 503}
	}

	f.reconciler.RunOnce(context.Background())

	// The tenth attempt exhausts the budget: scheduling stops, the status
	// stays unresolved for a human to pick up.
	assert.Equal(t, domain.StatusUnknown, txn.Status)
	assert.Equal(t, 10, txn.ReconciliationAttempts)
	assert.Nil(t, txn.NextReconciliationAt)
	assert.False(t, txn.NeedsReconciliation(f.cfg.MaxAttempts))
}

func TestReconciler_SkipsLockedRecords(t *testing.T) {
	f := newReconcilerFixture()
	txn := seedUnknownTransaction(t, f, "txn-1")

	_, ok, err := f.lock.Acquire(context.Background(), txn.ID, time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	f.reconciler.RunOnce(context.Background())

	assert.Equal(t, domain.StatusUnknown, txn.Status)
	assert.Zero(t, f.gateway.StatusCalls)
}

func TestReconciler_IgnoresRecordsNotYetDue(t *testing.T) {
	f := newReconcilerFixture()
	txn := seedUnknownTransaction(t, f, "txn-1")
	next := time.Now().Add(time.Hour)
	txn.NextReconciliationAt = &next

	f.reconciler.RunOnce(context.Background())

	assert.Equal(t, domain.StatusUnknown, txn.Status)
	assert.Zero(t, f.gateway.StatusCalls)
}

func TestReconciler_RecordSettledBetweenFetchAndLock(t *testing.T) {
	f := newReconcilerFixture()
	txn := seedUnknownTransaction(t, f, "txn-1")

	// Settle the record after the batch query would have returned it.
	f.repo.FindDueForReconciliationFn = func(ctx context.Context, maxAttempts, limit int) ([]*domain.Transaction, error) {
		require.NoError(t, txn.MarkPaid(nil, domain.TriggerWebhook))
		txn.TakeTransitions()
		return []*domain.Transaction{txn}, nil
	}

	f.reconciler.RunOnce(context.Background())

	assert.Equal(t, domain.StatusPaid, txn.Status)
	assert.Zero(t, f.gateway.StatusCalls)
}
