package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tripflow/payment-coordinator/internal/application"
	"github.com/tripflow/payment-coordinator/internal/application/services"
	"github.com/tripflow/payment-coordinator/internal/config"
	"github.com/tripflow/payment-coordinator/internal/domain"
	"github.com/tripflow/payment-coordinator/internal/infrastructure/gateway"
)

// Reconciler periodically polls the gateway for every record stuck in an
// indeterminate state and applies whatever it learns. It is the only thing
// that moves an unknown transaction, and it never guesses: a record that
// cannot be resolved within the attempt budget is escalated to a human.
type Reconciler struct {
	repo     application.TransactionRepository
	lock     application.TransactionLock
	gw       application.GatewayAdapter
	resolver *services.OutcomeResolver

	interval    time.Duration
	batchSize   int
	maxAttempts int
	lockTimeout time.Duration

	logger *slog.Logger
}

func NewReconciler(
	repo application.TransactionRepository,
	lock application.TransactionLock,
	gw application.GatewayAdapter,
	resolver *services.OutcomeResolver,
	reconCfg config.ReconciliationConfig,
	lockCfg config.LockingConfig,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		repo:        repo,
		lock:        lock,
		gw:          gw,
		resolver:    resolver,
		interval:    reconCfg.Interval,
		batchSize:   reconCfg.BatchSize,
		maxAttempts: reconCfg.MaxAttempts,
		lockTimeout: lockCfg.Timeout,
		logger:      logger,
	}
}

func (r *Reconciler) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("starting reconciliation worker",
		"interval", r.interval,
		"batch_size", r.batchSize,
		"max_attempts", r.maxAttempts)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("stopping reconciliation worker")
			return
		case <-ticker.C:
			r.run(ctx)
		}
	}
}

// RunOnce executes a single reconciliation cycle.
func (r *Reconciler) RunOnce(ctx context.Context) {
	r.run(ctx)
}

func (r *Reconciler) run(ctx context.Context) {
	due, err := r.repo.FindDueForReconciliation(ctx, r.maxAttempts, r.batchSize)
	if err != nil {
		r.logger.Error("failed to fetch transactions due for reconciliation", "error", err)
		return
	}

	if len(due) == 0 {
		return
	}

	r.logger.Info("reconciling transactions", "count", len(due))

	for _, txn := range due {
		if ctx.Err() != nil {
			return
		}
		r.reconcileOne(ctx, txn.ID)
	}
}

func (r *Reconciler) reconcileOne(ctx context.Context, txnID string) {
	token, ok, err := r.lock.Acquire(ctx, txnID, r.lockTimeout)
	if err != nil {
		r.logger.Error("failed to acquire lock for reconciliation", "transaction_id", txnID, "error", err)
		return
	}
	if !ok {
		// Someone else is working this record right now.
		return
	}
	defer func() {
		if err := r.lock.Release(ctx, txnID, token); err != nil {
			r.logger.Error("failed to release reconciliation lock", "transaction_id", txnID, "error", err)
		}
	}()

	// Re-read under the lock; the record may have settled since the batch
	// was fetched.
	txn, err := r.repo.FindByID(ctx, txnID)
	if err != nil {
		r.logger.Error("failed to fetch transaction for reconciliation", "transaction_id", txnID, "error", err)
		return
	}

	if !txn.NeedsReconciliation(r.maxAttempts) {
		return
	}

	fromStatus := txn.Status

	if err := r.poll(ctx, txn); err != nil {
		r.logger.Error("failed to apply reconciliation outcome",
			"transaction_id", txn.ID,
			"status", txn.Status,
			"error", err)
		return
	}

	if !txn.IsFinal() && txn.ReconciliationAttempts >= r.maxAttempts {
		r.escalate(txn)
	}

	if err := r.repo.Update(ctx, txn); err != nil {
		r.logger.Error("failed to persist reconciled transaction", "transaction_id", txn.ID, "error", err)
		return
	}

	if txn.Status != fromStatus {
		r.logger.Info("reconciliation resolved transaction",
			"transaction_id", txn.ID,
			"from", fromStatus,
			"to", txn.Status,
			"attempts", txn.ReconciliationAttempts)
	}
}

func (r *Reconciler) poll(ctx context.Context, txn *domain.Transaction) error {
	// The gateway-side id is preferred, but a record that crashed between
	// persist and dispatch never got one. Fall back to our id, which was
	// sent as the merchant order reference.
	orderRef := txn.ID
	if txn.GatewayOrderID != nil {
		orderRef = *txn.GatewayOrderID
	}

	res, err := r.gw.GetOrderStatus(ctx, orderRef)
	if err != nil {
		if errors.Is(err, gateway.ErrNoStatusAPI) {
			// Webhook-only provider. Nothing to learn by polling; keep the
			// attempt cadence so the escalation cap still applies.
			txn.ScheduleReconciliation(r.resolver.Backoff())
			return nil
		}
		return r.resolver.Apply(txn, application.ClassifyError(err), domain.TriggerReconciliation)
	}

	if res.OrderID != "" && txn.GatewayOrderID == nil {
		txn.RecordGatewayOrder(res.OrderID, res.TransactionID)
	}

	return r.resolver.Apply(txn, application.ClassifyResult(res), domain.TriggerReconciliation)
}

// escalate stops automatic reconciliation for a record that exhausted its
// attempt budget without resolving. From here only an operator moves it.
func (r *Reconciler) escalate(txn *domain.Transaction) {
	txn.StopReconciliation()
	r.logger.Error("transaction could not be reconciled automatically",
		"transaction_id", txn.ID,
		"status", txn.Status,
		"attempts", txn.ReconciliationAttempts,
		"amount_cents", txn.AmountCents,
		"currency", txn.Currency,
		"action", "manual_reconciliation_required")
}
