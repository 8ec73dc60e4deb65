package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradepost/marketplace/internal/domain"
	"github.com/tradepost/marketplace/internal/provider"
)

type intakeFixture struct {
	svc        *PaymentService
	stripe     *fakeStripe
	payments   *fakePayments
	milestones *fakeMilestones
	audit      *fakeAudit

	userID    uuid.UUID
	buyerID   uuid.UUID
	sellerID  uuid.UUID
	listingID uuid.UUID
}

func newIntakeFixture(t *testing.T) *intakeFixture {
	t.Helper()

	f := &intakeFixture{
		stripe:     &fakeStripe{},
		payments:   &fakePayments{},
		milestones: &fakeMilestones{},
		audit:      &fakeAudit{},
		userID:     uuid.New(),
		buyerID:    uuid.New(),
		sellerID:   uuid.New(),
		listingID:  uuid.New(),
	}

	profiles := &fakeProfiles{byUserID: map[uuid.UUID]*domain.Profile{
		f.userID: {ID: f.buyerID, UserID: f.userID, DisplayName: "buyer"},
	}}
	listings := &fakeListings{byID: map[uuid.UUID]*domain.Listing{
		f.listingID: {
			ID:              f.listingID,
			SellerProfileID: f.sellerID,
			Title:           "vintage amp",
			PriceCents:      10000,
			Currency:        "USD",
			Status:          domain.ListingStatusActive,
		},
	}}

	logger := testLogger()
	effects := NewSideEffects(nil, f.audit, &fakeNotifications{}, logger)
	f.svc = NewPaymentService(&fakeDB{}, f.stripe, profiles, listings, f.payments, f.milestones, effects, logger, true, 500)
	return f
}

func TestCreatePaymentIntent(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path splits fee", func(t *testing.T) {
		f := newIntakeFixture(t)

		resp, err := f.svc.CreatePaymentIntent(ctx, f.userID, f.listingID)
		require.NoError(t, err)

		assert.Equal(t, 100.0, resp.TotalAmount)
		assert.Equal(t, 5.0, resp.PlatformFee)
		assert.Equal(t, 95.0, resp.SellerAmount)
		assert.Equal(t, "pi_test_secret", resp.ClientSecret)

		require.Len(t, f.payments.created, 1)
		p := f.payments.created[0]
		assert.Equal(t, domain.PaymentStatusRequiresCapture, p.Status)
		assert.Equal(t, int64(10000), p.AmountCents)
		assert.Equal(t, int64(500), p.PlatformFeeCents)
		assert.Equal(t, f.buyerID, p.BuyerProfileID)
		assert.Equal(t, f.sellerID, p.SellerProfileID)
		assert.Nil(t, p.MilestoneID)
	})

	t.Run("records intent attempt before provider call", func(t *testing.T) {
		f := newIntakeFixture(t)
		f.stripe.createIntentFn = func(provider.CreateIntentParams) (*provider.PaymentIntent, error) {
			return nil, errors.New("stripe down")
		}

		_, err := f.svc.CreatePaymentIntent(ctx, f.userID, f.listingID)
		require.Error(t, err)

		require.Len(t, f.audit.entries, 1)
		assert.Equal(t, domain.AuditIntentAttempted, f.audit.entries[0].Action)
		assert.Equal(t, domain.ActorBuyer, f.audit.entries[0].ActorType)
	})

	t.Run("payments disabled", func(t *testing.T) {
		f := newIntakeFixture(t)
		f.svc.paymentsEnabled = false

		_, err := f.svc.CreatePaymentIntent(ctx, f.userID, f.listingID)
		assertAppError(t, err, "FORBIDDEN", 403)
		assert.Empty(t, f.stripe.createCalls)
	})

	t.Run("unknown buyer", func(t *testing.T) {
		f := newIntakeFixture(t)

		_, err := f.svc.CreatePaymentIntent(ctx, uuid.New(), f.listingID)
		assertAppError(t, err, "NOT_FOUND", 404)
	})

	t.Run("unknown listing", func(t *testing.T) {
		f := newIntakeFixture(t)

		_, err := f.svc.CreatePaymentIntent(ctx, f.userID, uuid.New())
		assertAppError(t, err, "NOT_FOUND", 404)
	})

	t.Run("inactive listing", func(t *testing.T) {
		f := newIntakeFixture(t)
		f.listingStatus(domain.ListingStatusSold)

		_, err := f.svc.CreatePaymentIntent(ctx, f.userID, f.listingID)
		assertAppError(t, err, "VALIDATION_ERROR", 400)
	})

	t.Run("self purchase rejected", func(t *testing.T) {
		f := newIntakeFixture(t)
		f.sellerIs(f.buyerID)

		_, err := f.svc.CreatePaymentIntent(ctx, f.userID, f.listingID)
		assertAppError(t, err, "VALIDATION_ERROR", 400)
	})

	t.Run("provider failure leaves no payment", func(t *testing.T) {
		f := newIntakeFixture(t)
		f.stripe.createIntentFn = func(provider.CreateIntentParams) (*provider.PaymentIntent, error) {
			return nil, errors.New("stripe down")
		}

		_, err := f.svc.CreatePaymentIntent(ctx, f.userID, f.listingID)
		assertAppError(t, err, "EXTERNAL_SERVICE", 502)
		assert.Empty(t, f.payments.created)
		assert.Empty(t, f.stripe.cancelCalls)
	})

	t.Run("insert failure cancels the intent", func(t *testing.T) {
		f := newIntakeFixture(t)
		f.payments.createErr = errors.New("insert failed")

		_, err := f.svc.CreatePaymentIntent(ctx, f.userID, f.listingID)
		assertAppError(t, err, "INTERNAL_ERROR", 500)
		require.Len(t, f.stripe.cancelCalls, 1)
		assert.Equal(t, "pi_test", f.stripe.cancelCalls[0])
	})

	t.Run("idempotency key is deterministic", func(t *testing.T) {
		f := newIntakeFixture(t)

		_, err := f.svc.CreatePaymentIntent(ctx, f.userID, f.listingID)
		require.NoError(t, err)
		_, err = f.svc.CreatePaymentIntent(ctx, f.userID, f.listingID)
		require.NoError(t, err)

		require.Len(t, f.stripe.createCalls, 2)
		assert.Equal(t, f.stripe.createCalls[0].IdempotencyKey, f.stripe.createCalls[1].IdempotencyKey)
		assert.Len(t, f.stripe.createCalls[0].IdempotencyKey, 64)
	})
}

func TestCreateMilestoneIntent(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		f := newIntakeFixture(t)

		resp, err := f.svc.CreateMilestoneIntent(ctx, f.userID, f.listingID, "first delivery", 4000)
		require.NoError(t, err)

		assert.Equal(t, 40.0, resp.TotalAmount)
		assert.Equal(t, 2.0, resp.PlatformFee)

		require.Len(t, f.milestones.created, 1)
		m := f.milestones.created[0]
		assert.Equal(t, domain.MilestoneStatusPending, m.Status)
		assert.Equal(t, int64(4000), m.AmountCents)

		require.Len(t, f.payments.created, 1)
		require.NotNil(t, f.payments.created[0].MilestoneID)
		assert.Equal(t, m.ID, *f.payments.created[0].MilestoneID)
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		f := newIntakeFixture(t)

		_, err := f.svc.CreateMilestoneIntent(ctx, f.userID, f.listingID, "x", 0)
		assertAppError(t, err, "VALIDATION_ERROR", 400)
	})

	t.Run("rejects empty title", func(t *testing.T) {
		f := newIntakeFixture(t)

		_, err := f.svc.CreateMilestoneIntent(ctx, f.userID, f.listingID, "", 1000)
		assertAppError(t, err, "VALIDATION_ERROR", 400)
	})

	t.Run("amount above listing price", func(t *testing.T) {
		f := newIntakeFixture(t)

		_, err := f.svc.CreateMilestoneIntent(ctx, f.userID, f.listingID, "x", 10001)
		assertAppError(t, err, "VALIDATION_ERROR", 400)
	})

	t.Run("pending milestones cap", func(t *testing.T) {
		f := newIntakeFixture(t)
		f.milestones.pendingSum = 7000

		_, err := f.svc.CreateMilestoneIntent(ctx, f.userID, f.listingID, "x", 4000)
		assertAppError(t, err, "VALIDATION_ERROR", 400)
		assert.Empty(t, f.milestones.created)
	})

	t.Run("cap counts milestones reserved moments earlier", func(t *testing.T) {
		f := newIntakeFixture(t)

		_, err := f.svc.CreateMilestoneIntent(ctx, f.userID, f.listingID, "phase one", 6000)
		require.NoError(t, err)

		// Both requests pass the pre-checks; the second must still see the
		// first reservation when it re-reads the sum under the lock.
		_, err = f.svc.CreateMilestoneIntent(ctx, f.userID, f.listingID, "phase two", 5000)
		assertAppError(t, err, "VALIDATION_ERROR", 400)
		require.Len(t, f.milestones.created, 1)
	})

	t.Run("reservation runs under the listing lock", func(t *testing.T) {
		f := newIntakeFixture(t)

		_, err := f.svc.CreateMilestoneIntent(ctx, f.userID, f.listingID, "x", 4000)
		require.NoError(t, err)
		assert.Equal(t, 1, f.svc.listings.(*fakeListings).lockCalls)
	})

	t.Run("provider failure marks milestone failed", func(t *testing.T) {
		f := newIntakeFixture(t)
		f.stripe.createIntentFn = func(provider.CreateIntentParams) (*provider.PaymentIntent, error) {
			return nil, errors.New("stripe down")
		}

		_, err := f.svc.CreateMilestoneIntent(ctx, f.userID, f.listingID, "x", 4000)
		assertAppError(t, err, "EXTERNAL_SERVICE", 502)

		require.Len(t, f.milestones.created, 1)
		assert.Equal(t, domain.MilestoneStatusFailed, f.milestones.statuses[f.milestones.created[0].ID])
	})
}

func TestGetPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("scoped to buyer", func(t *testing.T) {
		f := newIntakeFixture(t)
		other := &domain.Payment{ID: uuid.New(), BuyerProfileID: uuid.New()}
		f.payments.byID = map[uuid.UUID]*domain.Payment{other.ID: other}

		_, err := f.svc.GetPayment(ctx, f.userID, other.ID)
		assertAppError(t, err, "NOT_FOUND", 404)
	})

	t.Run("returns own payment", func(t *testing.T) {
		f := newIntakeFixture(t)
		own := &domain.Payment{ID: uuid.New(), BuyerProfileID: f.buyerID}
		f.payments.byID = map[uuid.UUID]*domain.Payment{own.ID: own}

		got, err := f.svc.GetPayment(ctx, f.userID, own.ID)
		require.NoError(t, err)
		assert.Equal(t, own.ID, got.ID)
	})
}

func (f *intakeFixture) listingStatus(status domain.ListingStatus) {
	f.svc.listings.(*fakeListings).byID[f.listingID].Status = status
}

func (f *intakeFixture) sellerIs(profileID uuid.UUID) {
	f.svc.listings.(*fakeListings).byID[f.listingID].SellerProfileID = profileID
}

func assertAppError(t *testing.T, err error, code string, status int) {
	t.Helper()
	require.Error(t, err)
	var appErr *domain.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
	assert.Equal(t, status, appErr.Status)
}
