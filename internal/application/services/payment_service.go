package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tripflow/payment-coordinator/internal/application"
	"github.com/tripflow/payment-coordinator/internal/config"
	"github.com/tripflow/payment-coordinator/internal/domain"
)

type PaymentService struct {
	repo     application.TransactionRepository
	lock     application.TransactionLock
	gateway  application.GatewayAdapter
	resolver *OutcomeResolver

	retryMax    int
	retryDelay  time.Duration
	lockTimeout time.Duration

	logger *slog.Logger
}

func NewPaymentService(
	repo application.TransactionRepository,
	lock application.TransactionLock,
	gateway application.GatewayAdapter,
	resolver *OutcomeResolver,
	retryCfg config.RetryConfig,
	lockCfg config.LockingConfig,
	logger *slog.Logger,
) *PaymentService {
	return &PaymentService{
		repo:        repo,
		lock:        lock,
		gateway:     gateway,
		resolver:    resolver,
		retryMax:    retryCfg.MaxAttempts,
		retryDelay:  retryCfg.BaseDelay,
		lockTimeout: lockCfg.Timeout,
		logger:      logger,
	}
}

// CreatePayment opens a payment record, or returns the existing one when the
// same submission was already made. Callers may pin their own idempotency
// key; without one the key is derived from the trip, payer and amount.
func (s *PaymentService) CreatePayment(ctx context.Context, cmd CreatePaymentCommand) (*domain.Transaction, error) {
	money, err := domain.NewMoney(cmd.AmountCents, cmd.Currency)
	if err != nil {
		return nil, application.NewInvalidInputError(err)
	}

	key := cmd.IdempotencyKey
	if key == "" {
		key = domain.DeriveIdempotencyKey(cmd.TripID, cmd.PayerID, money)
	}

	existing, err := s.repo.FindByIdempotencyKey(ctx, key)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, application.ErrNotFound) {
		return nil, application.NewInternalError(err)
	}

	txn, err := domain.NewTransaction(uuid.New().String(), cmd.TripID, cmd.PayerID, money, s.gateway.Name(), key)
	if err != nil {
		return nil, application.NewInvalidInputError(err)
	}
	txn.Description = cmd.Description

	if err := s.repo.Create(ctx, txn); err != nil {
		// Two concurrent submissions raced past the lookup. The loser reads
		// the winner's record.
		existing, findErr := s.repo.FindByIdempotencyKey(ctx, key)
		if findErr == nil {
			return existing, nil
		}
		return nil, application.NewInternalError(err)
	}

	s.logger.Info("payment created",
		"transaction_id", txn.ID,
		"trip_id", txn.TripID,
		"amount_cents", txn.AmountCents,
		"currency", txn.Currency)

	return txn, nil
}

// ProcessResult is the outcome of one processing attempt. PaymentURL is set
// for hosted-redirect gateways where the payer finishes the payment on the
// provider's page.
type ProcessResult struct {
	Transaction *domain.Transaction
	PaymentURL  string
}

// ProcessPayment dispatches the payment to the gateway under the record's
// lock and applies whatever outcome comes back. A definitive decline ends
// the record; anything doubtful parks it for reconciliation instead of
// guessing.
func (s *PaymentService) ProcessPayment(ctx context.Context, txnID string) (*ProcessResult, error) {
	pre, err := s.findTransaction(ctx, txnID)
	if err != nil {
		return nil, err
	}

	// A record that already reached a terminal state is returned as-is.
	// No lock is taken and the gateway is never contacted.
	if pre.IsFinal() {
		s.logger.Info("payment already settled",
			"transaction_id", pre.ID,
			"status", pre.Status)
		return &ProcessResult{Transaction: pre}, nil
	}

	token, ok, err := s.lock.Acquire(ctx, txnID, s.lockTimeout)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	if !ok {
		return nil, application.NewAlreadyProcessingError(txnID)
	}
	defer s.releaseLock(ctx, txnID, token)

	// Re-read under the lock: the pre-check may have raced another worker.
	txn, err := s.findTransaction(ctx, txnID)
	if err != nil {
		return nil, err
	}

	if txn.IsFinal() {
		return &ProcessResult{Transaction: txn}, nil
	}
	if txn.Status != domain.StatusCreated && txn.Status != domain.StatusPendingGateway {
		return nil, application.NewInvalidStateError(
			domain.NewInvalidTransitionError(txn.Status, domain.StatusPendingGateway))
	}

	orderReq := application.CreateOrderRequest{
		MerchantOrderID: txn.ID,
		AmountCents:     txn.AmountCents,
		Currency:        txn.Currency,
		CustomerID:      txn.PayerID,
		Description:     txn.Description,
	}

	snapshot, err := json.Marshal(orderReq)
	if err != nil {
		return nil, application.NewInternalError(err)
	}

	// The transition to pending_gateway is persisted before anything goes
	// out. From here on a failure is only retried when it provably happened
	// before the request reached the wire.
	if err := txn.MarkPendingGateway(snapshot); err != nil {
		return nil, application.NewInvalidStateError(err)
	}
	if err := s.repo.Update(ctx, txn); err != nil {
		return nil, application.NewInternalError(err)
	}

	res, err := s.dispatchWithRetry(ctx, txn, orderReq)
	if err != nil {
		return s.settleDispatchError(ctx, txn, err)
	}

	txn.RecordGatewayOrder(res.OrderID, res.TransactionID)

	cls := application.ClassifyResult(res)
	if err := s.resolver.Apply(txn, cls, domain.TriggerGatewayResponse); err != nil {
		return nil, application.NewInvalidStateError(err)
	}

	if err := s.repo.Update(ctx, txn); err != nil {
		return nil, application.NewInternalError(err)
	}

	s.logger.Info("payment processed",
		"transaction_id", txn.ID,
		"status", txn.Status,
		"outcome", cls.Outcome)

	return &ProcessResult{Transaction: txn, PaymentURL: res.PaymentURL}, nil
}

// dispatchWithRetry sends the order, retrying only failures where the
// request provably never left this process. The retry budget and delay come
// from configuration; delays double per attempt.
func (s *PaymentService) dispatchWithRetry(ctx context.Context, txn *domain.Transaction, req application.CreateOrderRequest) (*application.GatewayResult, error) {
	for {
		res, err := s.gateway.CreateOrder(ctx, req)
		if err == nil {
			return res, nil
		}

		cls := application.ClassifyError(err)
		if cls.Outcome != application.OutcomeRetrySafe || txn.RetryCount >= s.retryMax {
			return nil, err
		}

		txn.ScheduleRetry()
		if uErr := s.repo.Update(ctx, txn); uErr != nil {
			return nil, uErr
		}

		delay := s.retryDelay * time.Duration(int64(1)<<uint(txn.RetryCount-1))
		s.logger.Warn("gateway unreachable, retrying",
			"transaction_id", txn.ID,
			"attempt", txn.RetryCount,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// settleDispatchError turns a classified dispatch failure into the record's
// next state and persists it.
func (s *PaymentService) settleDispatchError(ctx context.Context, txn *domain.Transaction, dispatchErr error) (*ProcessResult, error) {
	cls := application.ClassifyError(dispatchErr)
	payload := s.resolver.rawOrNil(cls)

	var err error
	switch cls.Outcome {
	case application.OutcomeRetrySafe:
		// Budget exhausted and nothing ever reached the gateway.
		err = txn.MarkFailed(payload, cls.Code, cls.Message, domain.TriggerRetryExhausted)
	case application.OutcomeDeclined:
		err = txn.MarkFailed(payload, cls.Code, cls.Message, domain.TriggerGatewayError)
	default:
		err = txn.MarkUnknown(payload, cls.Code, cls.Message)
		if err == nil {
			txn.ScheduleReconciliation(s.resolver.backoff)
		}
	}
	if err != nil {
		return nil, application.NewInvalidStateError(err)
	}

	if err := s.repo.Update(ctx, txn); err != nil {
		return nil, application.NewInternalError(err)
	}

	s.logger.Warn("payment dispatch did not succeed",
		"transaction_id", txn.ID,
		"status", txn.Status,
		"outcome", cls.Outcome,
		"code", cls.Code)

	return &ProcessResult{Transaction: txn}, nil
}

// StatusView is what callers see. CallerStatus collapses every
// indeterminate state into "pending": ambiguity stays inside the
// coordinator.
type StatusView struct {
	Transaction  *domain.Transaction
	CallerStatus string
}

func (s *PaymentService) GetStatus(ctx context.Context, txnID string) (*StatusView, error) {
	txn, err := s.findTransaction(ctx, txnID)
	if err != nil {
		return nil, err
	}
	return &StatusView{Transaction: txn, CallerStatus: CallerStatus(txn.Status)}, nil
}

// CallerStatus maps an internal status to the caller-facing one.
func CallerStatus(status domain.TransactionStatus) string {
	switch status {
	case domain.StatusPendingGateway, domain.StatusProcessing, domain.StatusUnknown:
		return "pending"
	default:
		return string(status)
	}
}

func (s *PaymentService) GetTransitions(ctx context.Context, txnID string) ([]domain.TransitionEntry, error) {
	if _, err := s.findTransaction(ctx, txnID); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListTransitions(ctx, txnID)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	return entries, nil
}

// CancelPayment ends a record that never reached a definitive gateway
// outcome. Once money may have moved, cancellation is refused.
func (s *PaymentService) CancelPayment(ctx context.Context, cmd CancelPaymentCommand) (*domain.Transaction, error) {
	token, ok, err := s.lockFetched(ctx, cmd.TransactionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, application.NewAlreadyProcessingError(cmd.TransactionID)
	}
	defer s.releaseLock(ctx, cmd.TransactionID, token)

	txn, err := s.findTransaction(ctx, cmd.TransactionID)
	if err != nil {
		return nil, err
	}

	actor := cmd.Actor
	if actor == "" {
		actor = domain.ActorSystem
	}

	if err := txn.Cancel(domain.TriggerCallerCancel, actor); err != nil {
		return nil, application.NewInvalidStateError(err)
	}
	if err := s.repo.Update(ctx, txn); err != nil {
		return nil, application.NewInternalError(err)
	}

	s.logger.Info("payment cancelled", "transaction_id", txn.ID, "actor", actor)
	return txn, nil
}

// RefundPayment reverses a paid transaction at the gateway. The record only
// moves to refunded on a definitive gateway answer; a doubtful refund leaves
// it paid and reports an error.
func (s *PaymentService) RefundPayment(ctx context.Context, cmd RefundPaymentCommand) (*domain.Transaction, error) {
	token, ok, err := s.lockFetched(ctx, cmd.TransactionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, application.NewAlreadyProcessingError(cmd.TransactionID)
	}
	defer s.releaseLock(ctx, cmd.TransactionID, token)

	txn, err := s.findTransaction(ctx, cmd.TransactionID)
	if err != nil {
		return nil, err
	}

	if txn.Status != domain.StatusPaid {
		return nil, application.NewInvalidStateError(
			domain.NewInvalidTransitionError(txn.Status, domain.StatusRefunded))
	}
	if txn.GatewayOrderID == nil {
		return nil, application.NewInvalidStateError(
			errors.New("transaction has no gateway order to refund"))
	}

	res, err := s.gateway.Refund(ctx, *txn.GatewayOrderID, txn.AmountCents)
	if err != nil {
		cls := application.ClassifyError(err)
		s.logger.Error("refund did not complete",
			"transaction_id", txn.ID,
			"outcome", cls.Outcome,
			"code", cls.Code,
			"error", err)
		return nil, application.NewInternalError(err)
	}

	actor := cmd.Actor
	if actor == "" {
		actor = domain.ActorSystem
	}

	if err := txn.MarkRefunded(res.Raw, domain.TriggerGatewayResponse, actor); err != nil {
		return nil, application.NewInvalidStateError(err)
	}
	if err := s.repo.Update(ctx, txn); err != nil {
		return nil, application.NewInternalError(err)
	}

	s.logger.Info("payment refunded", "transaction_id", txn.ID, "actor", actor)
	return txn, nil
}

// HandleWebhook applies a gateway callback. This is the only resolution
// path for hosted-redirect providers without a status API.
func (s *PaymentService) HandleWebhook(ctx context.Context, n WebhookNotification) (*domain.Transaction, error) {
	if n.OrderID == "" {
		return nil, application.NewInvalidInputError(errors.New("webhook is missing the order id"))
	}

	pre, err := s.repo.FindByGatewayOrderID(ctx, n.OrderID)
	if err != nil {
		if errors.Is(err, application.ErrNotFound) {
			return nil, application.NewTransactionNotFoundError(n.OrderID)
		}
		return nil, application.NewInternalError(err)
	}

	token, ok, err := s.lock.Acquire(ctx, pre.ID, s.lockTimeout)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	if !ok {
		return nil, application.NewAlreadyProcessingError(pre.ID)
	}
	defer s.releaseLock(ctx, pre.ID, token)

	txn, err := s.findTransaction(ctx, pre.ID)
	if err != nil {
		return nil, err
	}

	txn.MarkWebhookReceived(n.Payload)

	cls := application.ClassifyResult(&application.GatewayResult{Status: n.Status, Raw: n.Payload})
	if err := s.resolver.Apply(txn, cls, domain.TriggerWebhook); err != nil {
		return nil, application.NewInvalidStateError(err)
	}

	if err := s.repo.Update(ctx, txn); err != nil {
		return nil, application.NewInternalError(err)
	}

	s.logger.Info("webhook applied",
		"transaction_id", txn.ID,
		"gateway_status", n.Status,
		"status", txn.Status)

	return txn, nil
}

func (s *PaymentService) findTransaction(ctx context.Context, txnID string) (*domain.Transaction, error) {
	txn, err := s.repo.FindByID(ctx, txnID)
	if err != nil {
		if errors.Is(err, application.ErrNotFound) {
			return nil, application.NewTransactionNotFoundError(txnID)
		}
		return nil, application.NewInternalError(err)
	}
	return txn, nil
}

// lockFetched verifies the record exists before taking its lock, so a
// missing id reports not-found rather than a lock conflict.
func (s *PaymentService) lockFetched(ctx context.Context, txnID string) (string, bool, error) {
	if _, err := s.findTransaction(ctx, txnID); err != nil {
		return "", false, err
	}
	token, ok, err := s.lock.Acquire(ctx, txnID, s.lockTimeout)
	if err != nil {
		return "", false, application.NewInternalError(err)
	}
	return token, ok, nil
}

func (s *PaymentService) releaseLock(ctx context.Context, txnID, token string) {
	if err := s.lock.Release(ctx, txnID, token); err != nil {
		s.logger.Error("failed to release transaction lock",
			"transaction_id", txnID,
			"error", err)
	}
}
