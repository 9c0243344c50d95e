package services

import (
	"encoding/json"
	"time"

	"github.com/tripflow/payment-coordinator/internal/application"
	"github.com/tripflow/payment-coordinator/internal/config"
	"github.com/tripflow/payment-coordinator/internal/domain"
)

// OutcomeResolver applies a classified gateway answer to a transaction.
// It is the single place where classifications become state transitions,
// shared by the process path, the reconciliation worker and the webhook
// handler. Callers persist the record afterwards.
type OutcomeResolver struct {
	backoff        domain.BackoffPolicy
	notFoundGrace  time.Duration
	notFoundMisses int
}

func NewOutcomeResolver(cfg config.ReconciliationConfig) *OutcomeResolver {
	return &OutcomeResolver{
		backoff: domain.BackoffPolicy{
			Strategy:     domain.BackoffStrategy(cfg.BackoffStrategy),
			InitialDelay: cfg.InitialDelay,
			MaxDelay:     cfg.MaxDelay,
		},
		notFoundGrace:  cfg.NotFoundGrace,
		notFoundMisses: cfg.NotFoundMisses,
	}
}

func (r *OutcomeResolver) Backoff() domain.BackoffPolicy {
	return r.backoff
}

// Apply moves the transaction according to one classification. A final
// record absorbs late signals without changing: the first definitive
// outcome wins.
func (r *OutcomeResolver) Apply(txn *domain.Transaction, cls application.Classification, trigger string) error {
	if txn.IsFinal() {
		return nil
	}

	switch cls.Outcome {
	case application.OutcomePaid:
		return txn.MarkPaid(cls.Raw, trigger)

	case application.OutcomeDeclined:
		return txn.MarkFailed(cls.Raw, cls.Code, cls.Message, trigger)

	case application.OutcomeInFlight:
		if txn.Status != domain.StatusProcessing {
			if err := txn.MarkProcessing(cls.Raw, trigger); err != nil {
				return err
			}
		}
		txn.ScheduleReconciliation(r.backoff)

	case application.OutcomeNotFound:
		// The gateway may simply not have indexed the order yet. Only a
		// record old enough and missed often enough is declared failed.
		if time.Since(txn.CreatedAt) >= r.notFoundGrace && txn.ReconciliationAttempts >= r.notFoundMisses {
			return txn.MarkFailed(r.rawOrNil(cls), cls.Code, "order never registered at gateway", trigger)
		}
		txn.ScheduleReconciliation(r.backoff)

	case application.OutcomeRetrySafe:
		// A connect failure while polling resolves nothing. Try again later.
		txn.ScheduleReconciliation(r.backoff)

	case application.OutcomeAmbiguous:
		if txn.Status != domain.StatusUnknown {
			if err := txn.MarkUnknown(r.rawOrNil(cls), cls.Code, cls.Message); err != nil {
				return err
			}
		}
		txn.ScheduleReconciliation(r.backoff)
	}

	return nil
}

func (r *OutcomeResolver) rawOrNil(cls application.Classification) json.RawMessage {
	if cls.Raw != nil {
		return cls.Raw
	}
	payload, err := json.Marshal(map[string]string{
		"code":    cls.Code,
		"message": cls.Message,
	})
	if err != nil {
		return nil
	}
	return payload
}
