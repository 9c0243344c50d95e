package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tripflow/payment-coordinator/internal/infrastructure/persistence"
)

// PostgresLock implements a record-scoped lease using the lock columns on
// payment_transactions. A stale lease (locked_at older than the timeout)
// is stealable, so a crashed holder never wedges a record for good.
type PostgresLock struct {
	db     *persistence.DB
	logger *slog.Logger
}

func NewPostgresLock(db *persistence.DB, logger *slog.Logger) *PostgresLock {
	return &PostgresLock{
		db:     db,
		logger: logger.With("component", "postgres_lock"),
	}
}

func (l *PostgresLock) Acquire(ctx context.Context, txnID string, timeout time.Duration) (string, bool, error) {
	token := uuid.New().String()

	query := `
		UPDATE payment_transactions
		SET lock_token = $1, locked_by = $2, locked_at = NOW()
		WHERE id = $3
		  AND (lock_token IS NULL OR locked_at < NOW() - $4::interval)
	`

	result, err := l.db.Pool.Exec(ctx, query, token, holderIdentity(), txnID, timeout.String())
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire lock for %s: %w", txnID, err)
	}

	if result.RowsAffected() == 0 {
		return "", false, nil
	}

	return token, true, nil
}

func (l *PostgresLock) Release(ctx context.Context, txnID, token string) error {
	query := `
		UPDATE payment_transactions
		SET lock_token = NULL, locked_by = NULL, locked_at = NULL
		WHERE id = $1 AND lock_token = $2
	`

	result, err := l.db.Pool.Exec(ctx, query, txnID, token)
	if err != nil {
		return fmt.Errorf("failed to release lock for %s: %w", txnID, err)
	}

	if result.RowsAffected() == 0 {
		// Lease expired and was taken over. The new holder owns the record
		// now, so there is nothing to release.
		l.logger.Warn("lock already released or stolen",
			"transaction_id", txnID)
	}

	return nil
}
