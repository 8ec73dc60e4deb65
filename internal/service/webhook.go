package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tradepost/marketplace/internal/domain"
	"github.com/tradepost/marketplace/internal/ledger"
	"github.com/tradepost/marketplace/internal/provider"
	"github.com/tradepost/marketplace/internal/repository"
)

// webhookHandler processes one verified, admitted event.
type webhookHandler func(ctx context.Context, event *provider.StripeWebhookEvent) (*domain.HandlerResult, error)

// WebhookService runs the webhook pipeline: verify → dedup → route →
// transition. State transitions are atomic; audit, notifications and
// milestone mirroring are best-effort afterwards.
type WebhookService struct {
	pool         *pgxpool.Pool
	stripe       StripeGateway
	events       repository.WebhookEventRepository
	payments     repository.PaymentRepository
	milestones   repository.MilestoneRepository
	disputes     repository.DisputeRepository
	transactions repository.TransactionRepository
	engine       *ledger.Engine
	effects      *SideEffects
	logger       *slog.Logger
	handlers     map[string]webhookHandler
}

// NewWebhookService creates a WebhookService with its fixed event route table.
func NewWebhookService(
	pool *pgxpool.Pool,
	stripe StripeGateway,
	events repository.WebhookEventRepository,
	payments repository.PaymentRepository,
	milestones repository.MilestoneRepository,
	disputes repository.DisputeRepository,
	transactions repository.TransactionRepository,
	engine *ledger.Engine,
	effects *SideEffects,
	logger *slog.Logger,
) *WebhookService {
	s := &WebhookService{
		pool:         pool,
		stripe:       stripe,
		events:       events,
		payments:     payments,
		milestones:   milestones,
		disputes:     disputes,
		transactions: transactions,
		engine:       engine,
		effects:      effects,
		logger:       logger,
	}
	s.handlers = map[string]webhookHandler{
		"payment_intent.succeeded":      s.handleIntentSucceeded,
		"payment_intent.payment_failed": s.handleIntentFailed,
		"charge.refunded":               s.handleChargeRefunded,
		"transfer.created":              s.handleTransferCreated,
		"transfer.failed":               s.handleTransferFailed,
		"charge.dispute.created":        s.handleDisputeCreated,
		"charge.dispute.closed":         s.handleDisputeClosed,
	}
	return s
}

// HandleStripeWebhook processes one raw webhook delivery.
func (s *WebhookService) HandleStripeWebhook(ctx context.Context, payload []byte, sigHeader string) (*domain.HandlerResult, error) {
	event, err := s.stripe.VerifyWebhookSignature(payload, sigHeader)
	if err != nil {
		s.logger.Error("webhook signature verification failed", "error", err)
		return nil, domain.ErrValidation(fmt.Sprintf("webhook verification failed: %v", err))
	}

	fresh, err := s.events.Admit(ctx, s.pool, event.ID, event.Type, payload)
	if err != nil {
		return nil, domain.ErrInternal("admit webhook event", err)
	}
	if !fresh {
		s.logger.Info("duplicate webhook delivery", "event_id", event.ID, "type", event.Type)
		return domain.Duplicate(), nil
	}

	handler, ok := s.handlers[event.Type]
	if !ok {
		s.logger.Info("unhandled stripe event type", "event_id", event.ID, "type", event.Type)
		result := domain.Ignored(domain.ReasonUnhandledEventType)
		s.finalize(ctx, event.ID, result, nil)
		return result, nil
	}

	result, err := handler(ctx, event)
	s.finalize(ctx, event.ID, result, err)
	if err != nil {
		return nil, err
	}

	s.logger.Info("webhook processed",
		"event_id", event.ID, "type", event.Type,
		"action", result.Action, "reason", result.Reason)
	return result, nil
}

// finalize records the outcome on the admitted row. Best-effort: the
// transition already committed (or already failed) either way.
func (s *WebhookService) finalize(ctx context.Context, eventID string, result *domain.HandlerResult, procErr error) {
	var outcome string
	var errMsg *string
	switch {
	case procErr != nil:
		outcome = "error"
		msg := procErr.Error()
		errMsg = &msg
	case result != nil && result.Reason != "":
		outcome = result.Action + ":" + result.Reason
	case result != nil:
		outcome = result.Action
	default:
		outcome = "error"
	}
	if err := s.events.Finalize(ctx, s.pool, eventID, outcome, errMsg); err != nil {
		s.logger.Error("finalize webhook event", "error", err, "event_id", eventID)
	}
}

func (s *WebhookService) handleIntentSucceeded(ctx context.Context, event *provider.StripeWebhookEvent) (*domain.HandlerResult, error) {
	intent, err := provider.ParsePaymentIntentData(event.Data)
	if err != nil {
		return nil, domain.ErrInternal("parse payment intent", err)
	}

	payment, err := s.payments.FindByStripeIntent(ctx, s.pool, intent.ID)
	if err != nil {
		return nil, domain.ErrInternal("find payment", err)
	}
	if payment == nil {
		// Tolerated: the intent may belong to another system sharing the
		// Stripe account. Stripe gets a 200 either way.
		s.logger.Warn("payment not found for intent", "stripe_payment_intent", intent.ID)
		return domain.Ignored(domain.ReasonPaymentNotFound), nil
	}
	if payment.Status == domain.PaymentStatusCompleted {
		return domain.Ignored(domain.ReasonAlreadyCompleted), nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	result, err := s.engine.SettleSale(ctx, tx, payment)
	if err != nil {
		return nil, domain.ErrInternal("settle sale", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, domain.ErrInternal("commit tx", err)
	}
	if result.Idempotent {
		return domain.Ignored(domain.ReasonAlreadyCompleted), nil
	}

	// Best-effort from here: the settlement is committed.
	if payment.MilestoneID != nil {
		if err := s.milestones.UpdateStatus(ctx, s.pool, *payment.MilestoneID, domain.MilestoneStatusCompleted); err != nil {
			s.logger.Error("mirror milestone completion", "error", err, "milestone_id", *payment.MilestoneID)
		}
	}

	auditMeta, _ := json.Marshal(map[string]string{"event_id": event.ID, "stripe_payment_intent": intent.ID})
	s.effects.RecordAudit(ctx, payment.ID, domain.AuditPaymentCompleted, domain.ActorSystem, auditMeta)
	s.notifyBoth(ctx, payment, "payment_completed", "sale_completed")

	s.logger.Info("payment settled",
		"payment_id", payment.ID, "amount_cents", payment.AmountCents,
		"seller_profile_id", payment.SellerProfileID)
	return domain.Processed(), nil
}

func (s *WebhookService) handleIntentFailed(ctx context.Context, event *provider.StripeWebhookEvent) (*domain.HandlerResult, error) {
	intent, err := provider.ParsePaymentIntentData(event.Data)
	if err != nil {
		return nil, domain.ErrInternal("parse payment intent", err)
	}

	payment, err := s.payments.FindByStripeIntent(ctx, s.pool, intent.ID)
	if err != nil {
		return nil, domain.ErrInternal("find payment", err)
	}
	if payment == nil {
		return domain.Ignored(domain.ReasonPaymentNotFound), nil
	}
	if payment.Status == domain.PaymentStatusFailed {
		return domain.Ignored(domain.ReasonAlreadyFailed), nil
	}

	failureMessage := "payment failed"
	if intent.LastPaymentError != nil {
		failureMessage = intent.LastPaymentError.Message
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	result, err := s.engine.RecordFailure(ctx, tx, payment, failureMessage)
	if err != nil {
		return nil, domain.ErrInternal("record failure", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, domain.ErrInternal("commit tx", err)
	}
	if result.Idempotent {
		return domain.Ignored(domain.ReasonAlreadyFailed), nil
	}

	if payment.MilestoneID != nil {
		if err := s.milestones.UpdateStatus(ctx, s.pool, *payment.MilestoneID, domain.MilestoneStatusFailed); err != nil {
			s.logger.Error("mirror milestone failure", "error", err, "milestone_id", *payment.MilestoneID)
		}
	}

	auditMeta, _ := json.Marshal(map[string]string{"event_id": event.ID, "failure_message": failureMessage})
	s.effects.RecordAudit(ctx, payment.ID, domain.AuditPaymentFailed, domain.ActorSystem, auditMeta)
	payloadJSON, _ := json.Marshal(map[string]string{"payment_id": payment.ID.String(), "reason": failureMessage})
	s.effects.Notify(ctx, payment.BuyerProfileID, "payment_failed", payloadJSON)

	return domain.Processed(), nil
}

func (s *WebhookService) handleChargeRefunded(ctx context.Context, event *provider.StripeWebhookEvent) (*domain.HandlerResult, error) {
	charge, err := provider.ParseChargeData(event.Data)
	if err != nil {
		return nil, domain.ErrInternal("parse charge", err)
	}

	payment, err := s.payments.FindByStripeIntent(ctx, s.pool, charge.PaymentIntent)
	if err != nil {
		return nil, domain.ErrInternal("find payment", err)
	}
	if payment == nil {
		return domain.Ignored(domain.ReasonPaymentNotFound), nil
	}
	if payment.Status == domain.PaymentStatusRefunded {
		return domain.Ignored(domain.ReasonAlreadyRefunded), nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	result, err := s.engine.RecordRefund(ctx, tx, payment, charge.AmountRefunded)
	if err != nil {
		return nil, domain.ErrInternal("record refund", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, domain.ErrInternal("commit tx", err)
	}
	if result.Idempotent {
		return domain.Ignored(domain.ReasonAlreadyRefunded), nil
	}

	auditMeta, _ := json.Marshal(map[string]interface{}{"event_id": event.ID, "amount_refunded_cents": charge.AmountRefunded})
	s.effects.RecordAudit(ctx, payment.ID, domain.AuditChargeRefunded, domain.ActorSystem, auditMeta)
	s.notifyBoth(ctx, payment, "payment_refunded", "sale_refunded")

	return domain.Processed(), nil
}

func (s *WebhookService) handleTransferCreated(ctx context.Context, event *provider.StripeWebhookEvent) (*domain.HandlerResult, error) {
	return s.recordTransfer(ctx, event, domain.TxTransferCreated, domain.AuditTransferCreated)
}

func (s *WebhookService) handleTransferFailed(ctx context.Context, event *provider.StripeWebhookEvent) (*domain.HandlerResult, error) {
	return s.recordTransfer(ctx, event, domain.TxTransferFailed, domain.AuditTransferFailed)
}

// recordTransfer appends a ledger entry for a payout-side transfer
// event. Transfers never change payment status or balances here; the
// payout trail is bookkeeping only.
func (s *WebhookService) recordTransfer(ctx context.Context, event *provider.StripeWebhookEvent, txType domain.TransactionType, auditAction string) (*domain.HandlerResult, error) {
	transfer, err := provider.ParseTransferData(event.Data)
	if err != nil {
		return nil, domain.ErrInternal("parse transfer", err)
	}

	paymentRef, ok := transfer.Metadata["payment_id"]
	if !ok || paymentRef == "" {
		s.logger.Warn("transfer without payment reference", "transfer_id", transfer.ID)
		return domain.Ignored(domain.ReasonNoPaymentReference), nil
	}
	paymentID, err := uuid.Parse(paymentRef)
	if err != nil {
		return domain.Ignored(domain.ReasonNoPaymentReference), nil
	}

	payment, err := s.payments.FindByID(ctx, s.pool, paymentID)
	if err != nil {
		return nil, domain.ErrInternal("find payment", err)
	}
	if payment == nil {
		return domain.Ignored(domain.ReasonPaymentNotFound), nil
	}

	meta, _ := json.Marshal(map[string]string{"transfer_id": transfer.ID, "event_id": event.ID})
	entry := &domain.Transaction{
		ID:          uuid.New(),
		PaymentID:   payment.ID,
		ProfileID:   payment.SellerProfileID,
		Type:        txType,
		AmountCents: transfer.Amount,
		Metadata:    meta,
	}
	if err := s.transactions.Insert(ctx, s.pool, entry); err != nil {
		return nil, domain.ErrInternal("insert transfer entry", err)
	}

	s.effects.RecordAudit(ctx, payment.ID, auditAction, domain.ActorSystem, meta)
	return domain.Processed(), nil
}

func (s *WebhookService) handleDisputeCreated(ctx context.Context, event *provider.StripeWebhookEvent) (*domain.HandlerResult, error) {
	data, err := provider.ParseDisputeData(event.Data)
	if err != nil {
		return nil, domain.ErrInternal("parse dispute", err)
	}

	intentID := data.PaymentIntent
	if intentID == "" {
		// Older dispute payloads only carry the charge; resolve the intent
		// through the provider so a transient failure gets redelivered.
		charge, err := s.stripe.RetrieveCharge(ctx, data.Charge)
		if err != nil {
			return nil, domain.ErrExternalService("retrieve charge for dispute", err)
		}
		intentID = charge.PaymentIntent
	}

	payment, err := s.payments.FindByStripeIntent(ctx, s.pool, intentID)
	if err != nil {
		return nil, domain.ErrInternal("find payment", err)
	}
	if payment == nil {
		return domain.Ignored(domain.ReasonPaymentNotFound), nil
	}

	existing, err := s.disputes.FindByStripeDisputeID(ctx, s.pool, data.ID)
	if err != nil {
		return nil, domain.ErrInternal("find dispute", err)
	}
	if existing != nil {
		return domain.Ignored(domain.ReasonDisputeAlreadyRecorded), nil
	}

	dispute := &domain.Dispute{
		ID:              uuid.New(),
		PaymentID:       payment.ID,
		StripeDisputeID: data.ID,
		Reason:          data.Reason,
		AmountCents:     data.Amount,
		Status:          domain.DisputeStatusOpen,
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	result, err := s.engine.OpenDispute(ctx, tx, payment, dispute)
	if err != nil {
		return nil, domain.ErrInternal("open dispute", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, domain.ErrInternal("commit tx", err)
	}
	if result.Idempotent {
		return domain.Ignored(domain.ReasonDisputeAlreadyRecorded), nil
	}

	auditMeta, _ := json.Marshal(map[string]string{"stripe_dispute_id": data.ID, "reason": data.Reason})
	s.effects.RecordAudit(ctx, payment.ID, domain.AuditDisputeOpened, domain.ActorSystem, auditMeta)
	s.notifyBoth(ctx, payment, "payment_disputed", "sale_disputed")

	s.logger.Warn("dispute opened",
		"payment_id", payment.ID, "stripe_dispute_id", data.ID, "reason", data.Reason)
	return domain.Processed(), nil
}

func (s *WebhookService) handleDisputeClosed(ctx context.Context, event *provider.StripeWebhookEvent) (*domain.HandlerResult, error) {
	data, err := provider.ParseDisputeData(event.Data)
	if err != nil {
		return nil, domain.ErrInternal("parse dispute", err)
	}

	dispute, err := s.disputes.FindByStripeDisputeID(ctx, s.pool, data.ID)
	if err != nil {
		return nil, domain.ErrInternal("find dispute", err)
	}
	if dispute == nil {
		return domain.Ignored(domain.ReasonDisputeNotFound), nil
	}

	outcome := domain.DisputeStatusLost
	if data.Status == "won" {
		outcome = domain.DisputeStatusWon
	}
	if err := s.disputes.UpdateStatus(ctx, s.pool, dispute.ID, outcome, nil); err != nil {
		return nil, domain.ErrInternal("update dispute status", err)
	}

	payment, err := s.payments.FindByID(ctx, s.pool, dispute.PaymentID)
	if err != nil {
		return nil, domain.ErrInternal("find payment", err)
	}

	auditMeta, _ := json.Marshal(map[string]string{"stripe_dispute_id": data.ID, "outcome": string(outcome)})
	s.effects.RecordAudit(ctx, dispute.PaymentID, domain.AuditDisputeClosed, domain.ActorSystem, auditMeta)
	if payment != nil {
		s.notifyBoth(ctx, payment, "dispute_closed", "dispute_closed")
	}

	return domain.Processed(), nil
}

// notifyBoth sends one notification to the buyer and one to the seller.
func (s *WebhookService) notifyBoth(ctx context.Context, payment *domain.Payment, buyerType, sellerType string) {
	payloadJSON, _ := json.Marshal(map[string]interface{}{
		"payment_id":   payment.ID.String(),
		"listing_id":   payment.ListingID.String(),
		"amount_cents": payment.AmountCents,
	})
	s.effects.Notify(ctx, payment.BuyerProfileID, buyerType, payloadJSON)
	s.effects.Notify(ctx, payment.SellerProfileID, sellerType, payloadJSON)
}
