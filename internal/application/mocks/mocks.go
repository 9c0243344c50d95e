// Package mocks provides in-memory fakes for the application ports. Each
// method can be overridden per test through its *Fn field; without an
// override the fake behaves like a minimal real implementation.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tripflow/payment-coordinator/internal/application"
	"github.com/tripflow/payment-coordinator/internal/domain"
)

// MockTransactionRepository
type MockTransactionRepository struct {
	mu           sync.RWMutex
	transactions map[string]*domain.Transaction
	transitions  map[string][]domain.TransitionEntry

	CreateFn                   func(ctx context.Context, txn *domain.Transaction) error
	UpdateFn                   func(ctx context.Context, txn *domain.Transaction) error
	FindByIDFn                 func(ctx context.Context, id string) (*domain.Transaction, error)
	FindByIdempotencyKeyFn     func(ctx context.Context, key string) (*domain.Transaction, error)
	FindByGatewayOrderIDFn     func(ctx context.Context, orderID string) (*domain.Transaction, error)
	FindDueForReconciliationFn func(ctx context.Context, maxAttempts, limit int) ([]*domain.Transaction, error)
	ListTransitionsFn          func(ctx context.Context, txnID string) ([]domain.TransitionEntry, error)
}

func NewMockTransactionRepository() *MockTransactionRepository {
	return &MockTransactionRepository{
		transactions: make(map[string]*domain.Transaction),
		transitions:  make(map[string][]domain.TransitionEntry),
	}
}

func (m *MockTransactionRepository) Create(ctx context.Context, txn *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateFn != nil {
		return m.CreateFn(ctx, txn)
	}
	m.transactions[txn.ID] = txn
	return nil
}

func (m *MockTransactionRepository) Update(ctx context.Context, txn *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, txn)
	}
	m.transactions[txn.ID] = txn
	m.transitions[txn.ID] = append(m.transitions[txn.ID], txn.TakeTransitions()...)
	return nil
}

func (m *MockTransactionRepository) FindByID(ctx context.Context, id string) (*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindByIDFn != nil {
		return m.FindByIDFn(ctx, id)
	}
	txn, ok := m.transactions[id]
	if !ok {
		return nil, application.ErrNotFound
	}
	return txn, nil
}

func (m *MockTransactionRepository) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindByIdempotencyKeyFn != nil {
		return m.FindByIdempotencyKeyFn(ctx, key)
	}
	for _, txn := range m.transactions {
		if txn.IdempotencyKey == key {
			return txn, nil
		}
	}
	return nil, application.ErrNotFound
}

func (m *MockTransactionRepository) FindByGatewayOrderID(ctx context.Context, orderID string) (*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindByGatewayOrderIDFn != nil {
		return m.FindByGatewayOrderIDFn(ctx, orderID)
	}
	for _, txn := range m.transactions {
		if txn.GatewayOrderID != nil && *txn.GatewayOrderID == orderID {
			return txn, nil
		}
	}
	return nil, application.ErrNotFound
}

func (m *MockTransactionRepository) FindDueForReconciliation(ctx context.Context, maxAttempts, limit int) ([]*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindDueForReconciliationFn != nil {
		return m.FindDueForReconciliationFn(ctx, maxAttempts, limit)
	}
	var due []*domain.Transaction
	now := time.Now()
	for _, txn := range m.transactions {
		if !txn.NeedsReconciliation(maxAttempts) {
			continue
		}
		if txn.NextReconciliationAt != nil && txn.NextReconciliationAt.After(now) {
			continue
		}
		due = append(due, txn)
		if len(due) >= limit {
			break
		}
	}
	return due, nil
}

func (m *MockTransactionRepository) ListTransitions(ctx context.Context, txnID string) ([]domain.TransitionEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ListTransitionsFn != nil {
		return m.ListTransitionsFn(ctx, txnID)
	}
	return m.transitions[txnID], nil
}

// Transitions returns the audit entries persisted for one transaction.
func (m *MockTransactionRepository) Transitions(txnID string) []domain.TransitionEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.transitions[txnID]
}

// MockTransactionLock
type MockTransactionLock struct {
	mu     sync.Mutex
	tokens map[string]string

	AcquireFn func(ctx context.Context, txnID string, timeout time.Duration) (string, bool, error)
	ReleaseFn func(ctx context.Context, txnID, token string) error
}

func NewMockTransactionLock() *MockTransactionLock {
	return &MockTransactionLock{tokens: make(map[string]string)}
}

func (m *MockTransactionLock) Acquire(ctx context.Context, txnID string, timeout time.Duration) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AcquireFn != nil {
		return m.AcquireFn(ctx, txnID, timeout)
	}
	if _, held := m.tokens[txnID]; held {
		return "", false, nil
	}
	token := uuid.New().String()
	m.tokens[txnID] = token
	return token, true, nil
}

func (m *MockTransactionLock) Release(ctx context.Context, txnID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReleaseFn != nil {
		return m.ReleaseFn(ctx, txnID, token)
	}
	if m.tokens[txnID] == token {
		delete(m.tokens, txnID)
	}
	return nil
}

// Held reports whether any token is outstanding for the transaction.
func (m *MockTransactionLock) Held(txnID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, held := m.tokens[txnID]
	return held
}

// MockGatewayAdapter
type MockGatewayAdapter struct {
	NameFn           func() string
	CreateOrderFn    func(ctx context.Context, req application.CreateOrderRequest) (*application.GatewayResult, error)
	GetOrderStatusFn func(ctx context.Context, orderID string) (*application.GatewayResult, error)
	RefundFn         func(ctx context.Context, orderID string, amountCents int64) (*application.GatewayResult, error)

	mu               sync.Mutex
	CreateOrderCalls int
	StatusCalls      int
}

func NewMockGatewayAdapter() *MockGatewayAdapter {
	return &MockGatewayAdapter{}
}

func (m *MockGatewayAdapter) Name() string {
	if m.NameFn != nil {
		return m.NameFn()
	}
	return "mockpay"
}

func (m *MockGatewayAdapter) CreateOrder(ctx context.Context, req application.CreateOrderRequest) (*application.GatewayResult, error) {
	m.mu.Lock()
	m.CreateOrderCalls++
	m.mu.Unlock()
	if m.CreateOrderFn != nil {
		return m.CreateOrderFn(ctx, req)
	}
	return &application.GatewayResult{
		Status:        "SUCCESS",
		OrderID:       "gw-" + req.MerchantOrderID,
		TransactionID: "gwtxn-" + uuid.New().String(),
	}, nil
}

func (m *MockGatewayAdapter) GetOrderStatus(ctx context.Context, orderID string) (*application.GatewayResult, error) {
	m.mu.Lock()
	m.StatusCalls++
	m.mu.Unlock()
	if m.GetOrderStatusFn != nil {
		return m.GetOrderStatusFn(ctx, orderID)
	}
	return &application.GatewayResult{Status: "SUCCESS", OrderID: orderID}, nil
}

func (m *MockGatewayAdapter) Refund(ctx context.Context, orderID string, amountCents int64) (*application.GatewayResult, error) {
	if m.RefundFn != nil {
		return m.RefundFn(ctx, orderID, amountCents)
	}
	return &application.GatewayResult{Status: "SUCCESS", OrderID: orderID}, nil
}
