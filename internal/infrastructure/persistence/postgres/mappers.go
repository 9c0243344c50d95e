package postgres

import (
	"github.com/tripflow/payment-coordinator/internal/domain"
)

func toDBModel(t *domain.Transaction) transactionModel {
	m := transactionModel{
		ID:                     t.ID,
		TripID:                 t.TripID,
		PayerID:                t.PayerID,
		AmountCents:            t.AmountCents,
		Currency:               t.Currency,
		Gateway:                t.Gateway,
		Description:            t.Description,
		IdempotencyKey:         t.IdempotencyKey,
		GatewayOrderID:         t.GatewayOrderID,
		GatewayTransactionID:   t.GatewayTransactionID,
		Status:                 string(t.Status),
		GatewayRequest:         t.GatewayRequest,
		GatewayResponse:        t.GatewayResponse,
		GatewayError:           t.GatewayError,
		ErrorCode:              t.ErrorCode,
		ErrorMessage:           t.ErrorMessage,
		ReconciliationAttempts: t.ReconciliationAttempts,
		LastReconciliationAt:   t.LastReconciliationAt,
		NextReconciliationAt:   t.NextReconciliationAt,
		RetryCount:             t.RetryCount,
		LastRetryAt:            t.LastRetryAt,
		GatewaySentAt:          t.GatewaySentAt,
		GatewayRespondedAt:     t.GatewayRespondedAt,
		ResponseTimeMs:         t.ResponseTimeMs,
		LockToken:              t.LockToken,
		LockedBy:               t.LockedBy,
		LockedAt:               t.LockedAt,
		WebhookReceived:        t.WebhookReceived,
		WebhookReceivedAt:      t.WebhookReceivedAt,
		CreatedAt:              t.CreatedAt,
		UpdatedAt:              t.UpdatedAt,
		DeletedAt:              t.DeletedAt,
	}

	if t.PreviousStatus != nil {
		prev := string(*t.PreviousStatus)
		m.PreviousStatus = &prev
	}

	return m
}

func toDomainModel(m transactionModel) *domain.Transaction {
	snapshot := domain.Transaction{
		ID:                     m.ID,
		TripID:                 m.TripID,
		PayerID:                m.PayerID,
		AmountCents:            m.AmountCents,
		Currency:               m.Currency,
		Description:            m.Description,
		Gateway:                m.Gateway,
		IdempotencyKey:         m.IdempotencyKey,
		GatewayOrderID:         m.GatewayOrderID,
		GatewayTransactionID:   m.GatewayTransactionID,
		Status:                 domain.TransactionStatus(m.Status),
		GatewayRequest:         m.GatewayRequest,
		GatewayResponse:        m.GatewayResponse,
		GatewayError:           m.GatewayError,
		ErrorCode:              m.ErrorCode,
		ErrorMessage:           m.ErrorMessage,
		ReconciliationAttempts: m.ReconciliationAttempts,
		LastReconciliationAt:   m.LastReconciliationAt,
		NextReconciliationAt:   m.NextReconciliationAt,
		RetryCount:             m.RetryCount,
		LastRetryAt:            m.LastRetryAt,
		GatewaySentAt:          m.GatewaySentAt,
		GatewayRespondedAt:     m.GatewayRespondedAt,
		ResponseTimeMs:         m.ResponseTimeMs,
		LockToken:              m.LockToken,
		LockedBy:               m.LockedBy,
		LockedAt:               m.LockedAt,
		WebhookReceived:        m.WebhookReceived,
		WebhookReceivedAt:      m.WebhookReceivedAt,
		CreatedAt:              m.CreatedAt,
		UpdatedAt:              m.UpdatedAt,
		DeletedAt:              m.DeletedAt,
	}

	if m.PreviousStatus != nil {
		prev := domain.TransactionStatus(*m.PreviousStatus)
		snapshot.PreviousStatus = &prev
	}

	return domain.Reconstitute(snapshot)
}

func toDomainTransition(m transitionModel) domain.TransitionEntry {
	return domain.TransitionEntry{
		ID:            m.ID,
		TransactionID: m.TransactionID,
		FromStatus:    domain.TransactionStatus(m.FromStatus),
		ToStatus:      domain.TransactionStatus(m.ToStatus),
		Trigger:       m.Trigger,
		Context:       m.Context,
		Actor:         m.Actor,
		OccurredAt:    m.OccurredAt,
	}
}
