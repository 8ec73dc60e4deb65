package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tradepost/marketplace/internal/domain"
	"github.com/tradepost/marketplace/internal/ledger"
	"github.com/tradepost/marketplace/internal/repository"
)

// DisputeService exposes the admin actions on open disputes: refund the
// buyer or resolve in the seller's favor.
type DisputeService struct {
	pool     *pgxpool.Pool
	stripe   StripeGateway
	disputes repository.DisputeRepository
	payments repository.PaymentRepository
	engine   *ledger.Engine
	effects  *SideEffects
	logger   *slog.Logger
}

// NewDisputeService creates a DisputeService.
func NewDisputeService(
	pool *pgxpool.Pool,
	stripe StripeGateway,
	disputes repository.DisputeRepository,
	payments repository.PaymentRepository,
	engine *ledger.Engine,
	effects *SideEffects,
	logger *slog.Logger,
) *DisputeService {
	return &DisputeService{
		pool:     pool,
		stripe:   stripe,
		disputes: disputes,
		payments: payments,
		engine:   engine,
		effects:  effects,
		logger:   logger,
	}
}

func (s *DisputeService) loadOpenDispute(ctx context.Context, disputeID uuid.UUID) (*domain.Dispute, *domain.Payment, error) {
	dispute, err := s.disputes.FindByID(ctx, s.pool, disputeID)
	if err != nil {
		return nil, nil, domain.ErrInternal("find dispute", err)
	}
	if dispute == nil {
		return nil, nil, domain.ErrNotFound("dispute", disputeID.String())
	}
	if dispute.Status != domain.DisputeStatusOpen {
		return nil, nil, domain.ErrConflict("dispute is not open")
	}

	payment, err := s.payments.FindByID(ctx, s.pool, dispute.PaymentID)
	if err != nil {
		return nil, nil, domain.ErrInternal("find payment", err)
	}
	if payment == nil {
		return nil, nil, domain.ErrNotFound("payment", dispute.PaymentID.String())
	}
	return dispute, payment, nil
}

// RefundDispute refunds the disputed payment through the provider and
// records the refund locally. The provider call happens first so a local
// failure never strands money on our side of the books.
func (s *DisputeService) RefundDispute(ctx context.Context, adminID, disputeID uuid.UUID) (*domain.Payment, error) {
	dispute, payment, err := s.loadOpenDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}

	refund, err := s.stripe.CreateRefund(ctx, payment.StripePaymentIntent)
	if err != nil {
		return nil, domain.ErrExternalService("create refund", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	if _, err := s.engine.RecordRefund(ctx, tx, payment, refund.Amount); err != nil {
		return nil, domain.ErrInternal("record refund", err)
	}
	if err := s.disputes.UpdateStatus(ctx, tx, dispute.ID, domain.DisputeStatusResolved, &adminID); err != nil {
		return nil, domain.ErrInternal("update dispute status", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, domain.ErrInternal("commit tx", err)
	}

	auditMeta, _ := json.Marshal(map[string]interface{}{
		"dispute_id":            dispute.ID.String(),
		"stripe_refund_id":      refund.ID,
		"amount_refunded_cents": refund.Amount,
		"admin_id":              adminID.String(),
	})
	s.effects.RecordAudit(ctx, payment.ID, domain.AuditDisputeRefunded, domain.ActorAdmin, auditMeta)

	payloadJSON, _ := json.Marshal(map[string]string{"payment_id": payment.ID.String(), "outcome": "refunded"})
	s.effects.Notify(ctx, payment.BuyerProfileID, "dispute_refunded", payloadJSON)
	s.effects.Notify(ctx, payment.SellerProfileID, "dispute_refunded", payloadJSON)

	s.logger.Info("dispute refunded",
		"dispute_id", dispute.ID, "payment_id", payment.ID, "admin_id", adminID)

	updated, err := s.payments.FindByID(ctx, s.pool, payment.ID)
	if err != nil || updated == nil {
		return payment, nil
	}
	return updated, nil
}

// ResolveDispute closes the dispute in the seller's favor. The payment
// returns to completed and no money moves.
func (s *DisputeService) ResolveDispute(ctx context.Context, adminID, disputeID uuid.UUID) (*domain.Payment, error) {
	dispute, payment, err := s.loadOpenDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	result, err := s.engine.ResolveDispute(ctx, tx, payment, dispute, adminID)
	if err != nil {
		return nil, domain.ErrInternal("resolve dispute", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, domain.ErrInternal("commit tx", err)
	}
	if result.Idempotent {
		return nil, domain.ErrConflict("payment is no longer disputed")
	}

	auditMeta, _ := json.Marshal(map[string]string{
		"dispute_id": dispute.ID.String(),
		"admin_id":   adminID.String(),
	})
	s.effects.RecordAudit(ctx, payment.ID, domain.AuditDisputeResolved, domain.ActorAdmin, auditMeta)

	payloadJSON, _ := json.Marshal(map[string]string{"payment_id": payment.ID.String(), "outcome": "resolved"})
	s.effects.Notify(ctx, payment.BuyerProfileID, "dispute_resolved", payloadJSON)
	s.effects.Notify(ctx, payment.SellerProfileID, "dispute_resolved", payloadJSON)

	s.logger.Info("dispute resolved",
		"dispute_id", dispute.ID, "payment_id", payment.ID, "admin_id", adminID)

	updated, err := s.payments.FindByID(ctx, s.pool, payment.ID)
	if err != nil || updated == nil {
		return payment, nil
	}
	return updated, nil
}
