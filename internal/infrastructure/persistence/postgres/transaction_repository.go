package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/tripflow/payment-coordinator/internal/application"
	"github.com/tripflow/payment-coordinator/internal/domain"
	"github.com/tripflow/payment-coordinator/internal/infrastructure/persistence"
)

const transactionColumns = `
	id, trip_id, payer_id, amount_cents, currency, description, gateway, idempotency_key,
	gateway_order_id, gateway_transaction_id, status, previous_status,
	gateway_request, gateway_response, gateway_error, error_code, error_message,
	reconciliation_attempts, last_reconciliation_at, next_reconciliation_at,
	retry_count, last_retry_at,
	gateway_sent_at, gateway_responded_at, response_time_ms,
	lock_token, locked_by, locked_at,
	webhook_received, webhook_received_at,
	created_at, updated_at, deleted_at`

type TransactionRepository struct {
	db   *persistence.DB
	exec persistence.Executor
}

func NewTransactionRepository(db *persistence.DB) *TransactionRepository {
	return &TransactionRepository{db: db, exec: db.Pool}
}

func (r *TransactionRepository) Create(ctx context.Context, txn *domain.Transaction) error {
	query := `
		INSERT INTO payment_transactions (
			id, trip_id, payer_id, amount_cents, currency, description, gateway,
			idempotency_key, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	m := toDBModel(txn)
	_, err := r.exec.Exec(ctx, query,
		m.ID,
		m.TripID,
		m.PayerID,
		m.AmountCents,
		m.Currency,
		m.Description,
		m.Gateway,
		m.IdempotencyKey,
		m.Status,
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		// Unique violations bubble up so the idempotency guard can resolve
		// them to "found existing".
		if persistence.IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	return nil
}

// Update persists the record and appends any transitions accumulated on it
// in a single database transaction. A status change and its audit entry
// land together or not at all.
func (r *TransactionRepository) Update(ctx context.Context, txn *domain.Transaction) error {
	entries := txn.TakeTransitions()

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := r.updateRow(ctx, tx, txn); err != nil {
		return err
	}

	for _, entry := range entries {
		if err := appendTransition(ctx, tx, entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *TransactionRepository) updateRow(ctx context.Context, tx pgx.Tx, txn *domain.Transaction) error {
	query := `
		UPDATE payment_transactions
		SET gateway_order_id = $1, gateway_transaction_id = $2,
			status = $3, previous_status = $4,
			gateway_request = $5, gateway_response = $6, gateway_error = $7,
			error_code = $8, error_message = $9,
			reconciliation_attempts = $10, last_reconciliation_at = $11, next_reconciliation_at = $12,
			retry_count = $13, last_retry_at = $14,
			gateway_sent_at = $15, gateway_responded_at = $16, response_time_ms = $17,
			webhook_received = $18, webhook_received_at = $19,
			updated_at = $20, deleted_at = $21
		WHERE id = $22
	`

	m := toDBModel(txn)
	result, err := tx.Exec(ctx, query,
		m.GatewayOrderID,
		m.GatewayTransactionID,
		m.Status,
		m.PreviousStatus,
		m.GatewayRequest,
		m.GatewayResponse,
		m.GatewayError,
		m.ErrorCode,
		m.ErrorMessage,
		m.ReconciliationAttempts,
		m.LastReconciliationAt,
		m.NextReconciliationAt,
		m.RetryCount,
		m.LastRetryAt,
		m.GatewaySentAt,
		m.GatewayRespondedAt,
		m.ResponseTimeMs,
		m.WebhookReceived,
		m.WebhookReceivedAt,
		m.UpdatedAt,
		m.DeletedAt,
		m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}

	if result.RowsAffected() == 0 {
		return application.ErrNotFound
	}

	return nil
}

func appendTransition(ctx context.Context, tx pgx.Tx, entry domain.TransitionEntry) error {
	query := `
		INSERT INTO payment_state_transitions (
			transaction_id, from_status, to_status, trigger, context, actor, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := tx.Exec(ctx, query,
		entry.TransactionID,
		string(entry.FromStatus),
		string(entry.ToStatus),
		entry.Trigger,
		[]byte(entry.Context),
		entry.Actor,
		entry.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append state transition: %w", err)
	}

	return nil
}

func (r *TransactionRepository) FindByID(ctx context.Context, id string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM payment_transactions WHERE id = $1 AND deleted_at IS NULL`

	row := r.exec.QueryRow(ctx, query, id)
	return scanTransaction(row)
}

func (r *TransactionRepository) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM payment_transactions WHERE idempotency_key = $1 AND deleted_at IS NULL`

	row := r.exec.QueryRow(ctx, query, key)
	return scanTransaction(row)
}

func (r *TransactionRepository) FindByGatewayOrderID(ctx context.Context, orderID string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM payment_transactions WHERE gateway_order_id = $1 AND deleted_at IS NULL`

	row := r.exec.QueryRow(ctx, query, orderID)
	return scanTransaction(row)
}

// FindDueForReconciliation returns records in a reconciliation-needed state
// whose next-check time has arrived and whose attempt budget is not
// exhausted, oldest eligible first.
func (r *TransactionRepository) FindDueForReconciliation(ctx context.Context, maxAttempts, limit int) ([]*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM payment_transactions
		WHERE status IN ('pending_gateway', 'processing', 'unknown')
		  AND (next_reconciliation_at IS NULL OR next_reconciliation_at <= NOW())
		  AND reconciliation_attempts < $1
		  AND deleted_at IS NULL
		ORDER BY next_reconciliation_at ASC NULLS FIRST, created_at ASC
		LIMIT $2
	`

	rows, err := r.exec.Query(ctx, query, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("query transactions due for reconciliation: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Transaction, error) {
		return scanTransactionRow(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan transactions due for reconciliation: %w", err)
	}

	return results, nil
}

func (r *TransactionRepository) ListTransitions(ctx context.Context, txnID string) ([]domain.TransitionEntry, error) {
	query := `
		SELECT id, transaction_id, from_status, to_status, trigger, context, actor, occurred_at
		FROM payment_state_transitions
		WHERE transaction_id = $1
		ORDER BY occurred_at ASC, id ASC
	`

	rows, err := r.exec.Query(ctx, query, txnID)
	if err != nil {
		return nil, fmt.Errorf("query state transitions: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TransitionEntry, error) {
		var m transitionModel
		err := row.Scan(
			&m.ID, &m.TransactionID, &m.FromStatus, &m.ToStatus,
			&m.Trigger, &m.Context, &m.Actor, &m.OccurredAt,
		)
		return toDomainTransition(m), err
	})
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	txn, err := scanTransactionRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, application.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	return txn, nil
}

func scanTransactionRow(row pgx.Row) (*domain.Transaction, error) {
	var m transactionModel
	err := row.Scan(
		&m.ID, &m.TripID, &m.PayerID, &m.AmountCents, &m.Currency, &m.Description, &m.Gateway, &m.IdempotencyKey,
		&m.GatewayOrderID, &m.GatewayTransactionID, &m.Status, &m.PreviousStatus,
		&m.GatewayRequest, &m.GatewayResponse, &m.GatewayError, &m.ErrorCode, &m.ErrorMessage,
		&m.ReconciliationAttempts, &m.LastReconciliationAt, &m.NextReconciliationAt,
		&m.RetryCount, &m.LastRetryAt,
		&m.GatewaySentAt, &m.GatewayRespondedAt, &m.ResponseTimeMs,
		&m.LockToken, &m.LockedBy, &m.LockedAt,
		&m.WebhookReceived, &m.WebhookReceivedAt,
		&m.CreatedAt, &m.UpdatedAt, &m.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return toDomainModel(m), nil
}
