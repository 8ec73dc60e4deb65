package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tradepost/marketplace/internal/domain"
	"github.com/tradepost/marketplace/internal/provider"
	"github.com/tradepost/marketplace/internal/repository"
)

// DB is the database handle the intake path needs: plain queries plus
// the ability to open a transaction for the milestone reservation.
type DB interface {
	repository.DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PaymentService handles the payment intake path: intent creation for
// full purchases and milestones, plus buyer-facing reads.
type PaymentService struct {
	db              DB
	stripe          StripeGateway
	profiles        repository.ProfileRepository
	listings        repository.ListingRepository
	payments        repository.PaymentRepository
	milestones      repository.MilestoneRepository
	effects         *SideEffects
	logger          *slog.Logger
	paymentsEnabled bool
	platformFeeBps  int64
}

// NewPaymentService creates a PaymentService.
func NewPaymentService(
	db DB,
	stripe StripeGateway,
	profiles repository.ProfileRepository,
	listings repository.ListingRepository,
	payments repository.PaymentRepository,
	milestones repository.MilestoneRepository,
	effects *SideEffects,
	logger *slog.Logger,
	paymentsEnabled bool,
	platformFeeBps int64,
) *PaymentService {
	return &PaymentService{
		db:              db,
		stripe:          stripe,
		profiles:        profiles,
		listings:        listings,
		payments:        payments,
		milestones:      milestones,
		effects:         effects,
		logger:          logger,
		paymentsEnabled: paymentsEnabled,
		platformFeeBps:  platformFeeBps,
	}
}

// IntentResponse is returned to the buyer's client. Money fields are
// decimal units for display; the ledger stays in cents.
type IntentResponse struct {
	PaymentID    string  `json:"payment_id"`
	ClientSecret string  `json:"client_secret"`
	TotalAmount  float64 `json:"total_amount"`
	PlatformFee  float64 `json:"platform_fee"`
	SellerAmount float64 `json:"seller_amount"`
}

// CreatePaymentIntent creates a manual-capture intent for the full
// listing price. Buyer identity comes from the verified token only.
func (s *PaymentService) CreatePaymentIntent(ctx context.Context, userID, listingID uuid.UUID) (*IntentResponse, error) {
	buyer, listing, err := s.resolveIntake(ctx, userID, listingID)
	if err != nil {
		return nil, err
	}
	return s.createIntent(ctx, buyer, listing, listing.PriceCents, nil)
}

// CreateMilestoneIntent creates a manual-capture intent for a partial
// payment against a listing. The sum of pending milestones may never
// exceed the listing price.
func (s *PaymentService) CreateMilestoneIntent(ctx context.Context, userID, listingID uuid.UUID, title string, amountCents int64) (*IntentResponse, error) {
	if err := domain.ValidatePositiveAmount(amountCents); err != nil {
		return nil, err
	}
	if title == "" {
		return nil, domain.ErrValidation("milestone title is required")
	}

	buyer, listing, err := s.resolveIntake(ctx, userID, listingID)
	if err != nil {
		return nil, err
	}

	if amountCents > listing.PriceCents {
		return nil, domain.ErrValidation("milestone amount exceeds listing price")
	}

	milestone := &domain.Milestone{
		ID:             uuid.New(),
		ListingID:      listing.ID,
		BuyerProfileID: buyer.ID,
		Title:          title,
		AmountCents:    amountCents,
		Status:         domain.MilestoneStatusPending,
	}
	if err := s.reserveMilestone(ctx, milestone); err != nil {
		return nil, err
	}

	resp, err := s.createIntent(ctx, buyer, listing, amountCents, &milestone.ID)
	if err != nil {
		// The milestone must not keep counting against the cap.
		if mErr := s.milestones.UpdateStatus(ctx, s.db, milestone.ID, domain.MilestoneStatusFailed); mErr != nil {
			s.logger.Error("mark milestone failed", "error", mErr, "milestone_id", milestone.ID)
		}
		return nil, err
	}
	return resp, nil
}

// reserveMilestone inserts the milestone under a listing row lock. The
// lock serializes concurrent reservations against one listing, so the
// pending-amount sum each one checks already includes every committed
// predecessor and the cap cannot be jointly exceeded.
func (s *PaymentService) reserveMilestone(ctx context.Context, m *domain.Milestone) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return domain.ErrInternal("begin milestone reservation", err)
	}
	defer tx.Rollback(ctx)

	listing, err := s.listings.LockForUpdate(ctx, tx, m.ListingID)
	if err != nil {
		return domain.ErrInternal("lock listing", err)
	}
	if listing == nil {
		return domain.ErrNotFound("listing", m.ListingID.String())
	}

	pendingSum, err := s.milestones.SumPendingByListing(ctx, tx, listing.ID)
	if err != nil {
		return domain.ErrInternal("sum pending milestones", err)
	}
	if pendingSum+m.AmountCents > listing.PriceCents {
		return domain.ErrValidation("pending milestones exceed listing price")
	}

	if err := s.milestones.Create(ctx, tx, m); err != nil {
		return domain.ErrInternal("record milestone", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.ErrInternal("commit milestone reservation", err)
	}
	return nil
}

// resolveIntake runs the checks shared by both intent paths.
func (s *PaymentService) resolveIntake(ctx context.Context, userID, listingID uuid.UUID) (*domain.Profile, *domain.Listing, error) {
	if !s.paymentsEnabled {
		return nil, nil, domain.ErrForbidden("payments are currently disabled")
	}

	buyer, err := s.profiles.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return nil, nil, domain.ErrInternal("find buyer profile", err)
	}
	if buyer == nil {
		return nil, nil, domain.ErrNotFound("profile for user", userID.String())
	}

	listing, err := s.listings.FindByID(ctx, s.db, listingID)
	if err != nil {
		return nil, nil, domain.ErrInternal("find listing", err)
	}
	if listing == nil {
		return nil, nil, domain.ErrNotFound("listing", listingID.String())
	}
	if listing.Status != domain.ListingStatusActive {
		return nil, nil, domain.ErrValidation("listing is not active")
	}
	if listing.SellerProfileID == buyer.ID {
		return nil, nil, domain.ErrValidation("cannot purchase your own listing")
	}

	return buyer, listing, nil
}

func (s *PaymentService) createIntent(ctx context.Context, buyer *domain.Profile, listing *domain.Listing, amountCents int64, milestoneID *uuid.UUID) (*IntentResponse, error) {
	paymentID := uuid.New()
	feeCents := domain.ComputeFeeCents(amountCents, s.platformFeeBps)

	attemptMeta, _ := json.Marshal(map[string]interface{}{
		"listing_id":   listing.ID.String(),
		"amount_cents": amountCents,
	})
	s.effects.RecordAudit(ctx, paymentID, domain.AuditIntentAttempted, domain.ActorBuyer, attemptMeta)

	metadata := map[string]string{
		"payment_id":       paymentID.String(),
		"listing_id":       listing.ID.String(),
		"buyer_profile_id": buyer.ID.String(),
	}
	if milestoneID != nil {
		metadata["milestone_id"] = milestoneID.String()
	}

	intent, err := s.stripe.CreatePaymentIntent(ctx, provider.CreateIntentParams{
		AmountCents:    amountCents,
		Currency:       listing.Currency,
		IdempotencyKey: intakeIdempotencyKey(buyer.ID, listing.ID, amountCents),
		Metadata:       metadata,
	})
	if err != nil {
		return nil, domain.ErrExternalService("create payment intent", err)
	}

	payment := &domain.Payment{
		ID:                  paymentID,
		ListingID:           listing.ID,
		BuyerProfileID:      buyer.ID,
		SellerProfileID:     listing.SellerProfileID,
		MilestoneID:         milestoneID,
		AmountCents:         amountCents,
		PlatformFeeCents:    feeCents,
		Currency:            listing.Currency,
		Status:              domain.PaymentStatusRequiresCapture,
		StripePaymentIntent: intent.ID,
	}
	if err := s.payments.Create(ctx, s.db, payment); err != nil {
		// Compensate: the provider intent must not outlive a failed local
		// insert, or the buyer could be charged for a payment we never
		// recorded.
		if cancelErr := s.stripe.CancelPaymentIntent(ctx, intent.ID); cancelErr != nil {
			s.logger.Error("compensating intent cancel failed",
				"error", cancelErr, "stripe_payment_intent", intent.ID, "payment_id", paymentID)
		}
		return nil, domain.ErrInternal("record payment", err)
	}

	s.logger.Info("payment intent created",
		"payment_id", paymentID, "listing_id", listing.ID,
		"amount_cents", amountCents, "platform_fee_cents", feeCents)

	return &IntentResponse{
		PaymentID:    paymentID.String(),
		ClientSecret: intent.ClientSecret,
		TotalAmount:  centsToUnits(amountCents),
		PlatformFee:  centsToUnits(feeCents),
		SellerAmount: centsToUnits(amountCents - feeCents),
	}, nil
}

// ListPayments returns the authenticated buyer's payment history.
func (s *PaymentService) ListPayments(ctx context.Context, userID uuid.UUID) ([]domain.Payment, error) {
	buyer, err := s.profiles.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return nil, domain.ErrInternal("find buyer profile", err)
	}
	if buyer == nil {
		return nil, domain.ErrNotFound("profile for user", userID.String())
	}

	payments, err := s.payments.ListByBuyer(ctx, s.db, buyer.ID, 50)
	if err != nil {
		return nil, domain.ErrInternal("list payments", err)
	}
	return payments, nil
}

// GetPayment returns one payment, restricted to its buyer.
func (s *PaymentService) GetPayment(ctx context.Context, userID, paymentID uuid.UUID) (*domain.Payment, error) {
	buyer, err := s.profiles.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return nil, domain.ErrInternal("find buyer profile", err)
	}
	if buyer == nil {
		return nil, domain.ErrNotFound("profile for user", userID.String())
	}

	payment, err := s.payments.FindByID(ctx, s.db, paymentID)
	if err != nil {
		return nil, domain.ErrInternal("find payment", err)
	}
	if payment == nil || payment.BuyerProfileID != buyer.ID {
		return nil, domain.ErrNotFound("payment", paymentID.String())
	}
	return payment, nil
}

// intakeIdempotencyKey derives a deterministic key so a retried intake
// request converges on one provider intent.
func intakeIdempotencyKey(buyerID, listingID uuid.UUID, amountCents int64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", buyerID, listingID, amountCents)))
	return hex.EncodeToString(sum[:])
}

func centsToUnits(cents int64) float64 {
	return float64(cents) / 100
}
