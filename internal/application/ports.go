// Package application holds the orchestration layer: ports to the outside
// world, the gateway outcome classifier and the service error taxonomy.
package application

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/tripflow/payment-coordinator/internal/domain"
)

// ErrNotFound is returned by repository lookups that match no live record.
var ErrNotFound = errors.New("transaction not found")

// TransactionRepository is the storage port for the Transaction aggregate.
// Update persists the record and appends any pending transition audit
// entries in a single database transaction.
type TransactionRepository interface {
	Create(ctx context.Context, txn *domain.Transaction) error
	Update(ctx context.Context, txn *domain.Transaction) error
	FindByID(ctx context.Context, id string) (*domain.Transaction, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error)
	FindByGatewayOrderID(ctx context.Context, orderID string) (*domain.Transaction, error)
	FindDueForReconciliation(ctx context.Context, maxAttempts, limit int) ([]*domain.Transaction, error)
	ListTransitions(ctx context.Context, txnID string) ([]domain.TransitionEntry, error)
}

// TransactionLock is a lease lock scoped to one transaction record. Acquire
// never waits: callers that lose the race report "already processing" and
// back off. Expiry is computed from the acquisition time, there is no
// heartbeat. Release only clears the lock if the token still matches.
type TransactionLock interface {
	Acquire(ctx context.Context, txnID string, timeout time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, txnID, token string) error
}

// CreateOrderRequest is the payload sent to the gateway to open an order.
type CreateOrderRequest struct {
	MerchantOrderID string `json:"merchant_order_id"`
	AmountCents     int64  `json:"amount_cents"`
	Currency        string `json:"currency"`
	CustomerID      string `json:"customer_id"`
	Description     string `json:"description"`
}

// GatewayResult is the normalized shape of any gateway answer. Status is the
// gateway's own string; the classifier turns it into an outcome.
type GatewayResult struct {
	Status        string
	OrderID       string
	TransactionID string
	PaymentURL    string
	Raw           json.RawMessage
}

// GatewayAdapter talks to one payment provider, selected once at
// construction via configuration.
type GatewayAdapter interface {
	Name() string
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*GatewayResult, error)
	GetOrderStatus(ctx context.Context, orderID string) (*GatewayResult, error)
	Refund(ctx context.Context, orderID string, amountCents int64) (*GatewayResult, error)
}
