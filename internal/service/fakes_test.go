package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tradepost/marketplace/internal/domain"
	"github.com/tradepost/marketplace/internal/provider"
	"github.com/tradepost/marketplace/internal/repository"
)

var errNotImplemented = errors.New("not implemented in fake")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTx satisfies pgx.Tx. The fake repositories ignore the handle, so
// only Commit and Rollback carry behavior.
type fakeTx struct {
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Begin(context.Context) (pgx.Tx, error) { return t, nil }

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

func (t *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, errNotImplemented
}

func (t *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }

func (t *fakeTx) LargeObjects() pgx.LargeObjects { return pgx.LargeObjects{} }

func (t *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, errNotImplemented
}

func (t *fakeTx) Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (t *fakeTx) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	return nil, errNotImplemented
}

func (t *fakeTx) QueryRow(context.Context, string, ...interface{}) pgx.Row { return nil }

func (t *fakeTx) Conn() *pgx.Conn { return nil }

type fakeDB struct {
	tx       fakeTx
	beginErr error
}

func (d *fakeDB) Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (d *fakeDB) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	return nil, errNotImplemented
}

func (d *fakeDB) QueryRow(context.Context, string, ...interface{}) pgx.Row { return nil }

func (d *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	if d.beginErr != nil {
		return nil, d.beginErr
	}
	return &d.tx, nil
}

type fakeStripe struct {
	createIntentFn func(params provider.CreateIntentParams) (*provider.PaymentIntent, error)
	verifyFn       func(payload []byte, sigHeader string) (*provider.StripeWebhookEvent, error)
	retrieveFn     func(chargeID string) (*provider.Charge, error)
	refundFn       func(intentID string) (*provider.Refund, error)

	createCalls []provider.CreateIntentParams
	cancelCalls []string
}

func (f *fakeStripe) CreatePaymentIntent(_ context.Context, params provider.CreateIntentParams) (*provider.PaymentIntent, error) {
	f.createCalls = append(f.createCalls, params)
	if f.createIntentFn != nil {
		return f.createIntentFn(params)
	}
	return &provider.PaymentIntent{ID: "pi_test", ClientSecret: "pi_test_secret", Amount: params.AmountCents}, nil
}

func (f *fakeStripe) CancelPaymentIntent(_ context.Context, intentID string) error {
	f.cancelCalls = append(f.cancelCalls, intentID)
	return nil
}

func (f *fakeStripe) CreateRefund(_ context.Context, intentID string) (*provider.Refund, error) {
	if f.refundFn != nil {
		return f.refundFn(intentID)
	}
	return &provider.Refund{ID: "re_test", Status: "succeeded"}, nil
}

func (f *fakeStripe) RetrieveCharge(_ context.Context, chargeID string) (*provider.Charge, error) {
	if f.retrieveFn != nil {
		return f.retrieveFn(chargeID)
	}
	return nil, errNotImplemented
}

func (f *fakeStripe) VerifyWebhookSignature(payload []byte, sigHeader string) (*provider.StripeWebhookEvent, error) {
	if f.verifyFn != nil {
		return f.verifyFn(payload, sigHeader)
	}
	return nil, errNotImplemented
}

type fakeProfiles struct {
	byUserID map[uuid.UUID]*domain.Profile
}

func (f *fakeProfiles) FindByUserID(_ context.Context, _ repository.DBTX, userID uuid.UUID) (*domain.Profile, error) {
	return f.byUserID[userID], nil
}

func (f *fakeProfiles) LockForUpdate(_ context.Context, _ pgx.Tx, _ uuid.UUID) (*domain.Profile, error) {
	return nil, errNotImplemented
}

func (f *fakeProfiles) UpdateBalance(_ context.Context, _ pgx.Tx, _ uuid.UUID, _ int64) (*domain.Profile, error) {
	return nil, errNotImplemented
}

type fakeListings struct {
	byID      map[uuid.UUID]*domain.Listing
	lockCalls int
}

func (f *fakeListings) FindByID(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.Listing, error) {
	return f.byID[id], nil
}

func (f *fakeListings) LockForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*domain.Listing, error) {
	f.lockCalls++
	return f.byID[id], nil
}

type fakePayments struct {
	byIntent map[string]*domain.Payment
	byID     map[uuid.UUID]*domain.Payment

	createErr error
	created   []*domain.Payment
}

func (f *fakePayments) Create(_ context.Context, _ repository.DBTX, payment *domain.Payment) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, payment)
	return nil
}

func (f *fakePayments) FindByID(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.Payment, error) {
	return f.byID[id], nil
}

func (f *fakePayments) FindByStripeIntent(_ context.Context, _ repository.DBTX, intentID string) (*domain.Payment, error) {
	return f.byIntent[intentID], nil
}

func (f *fakePayments) ListByBuyer(_ context.Context, _ repository.DBTX, buyerProfileID uuid.UUID, _ int) ([]domain.Payment, error) {
	var out []domain.Payment
	for _, p := range f.created {
		if p.BuyerProfileID == buyerProfileID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePayments) UpdateStatusIfCurrent(_ context.Context, _ repository.DBTX, _ uuid.UUID, _, _ domain.PaymentStatus) (bool, error) {
	return false, errNotImplemented
}

func (f *fakePayments) MarkRefunded(_ context.Context, _ repository.DBTX, _ uuid.UUID, _ int64) (bool, error) {
	return false, errNotImplemented
}

func (f *fakePayments) MarkDisputed(_ context.Context, _ repository.DBTX, _ uuid.UUID) (bool, error) {
	return false, errNotImplemented
}

type fakeMilestones struct {
	pendingSum int64
	created    []*domain.Milestone
	statuses   map[uuid.UUID]domain.MilestoneStatus
}

func (f *fakeMilestones) Create(_ context.Context, _ repository.DBTX, m *domain.Milestone) error {
	f.created = append(f.created, m)
	return nil
}

func (f *fakeMilestones) FindByID(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.Milestone, error) {
	for _, m := range f.created {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, nil
}

func (f *fakeMilestones) SumPendingByListing(_ context.Context, _ repository.DBTX, listingID uuid.UUID) (int64, error) {
	sum := f.pendingSum
	for _, m := range f.created {
		if m.ListingID == listingID && m.Status == domain.MilestoneStatusPending {
			sum += m.AmountCents
		}
	}
	return sum, nil
}

func (f *fakeMilestones) UpdateStatus(_ context.Context, _ repository.DBTX, id uuid.UUID, status domain.MilestoneStatus) error {
	if f.statuses == nil {
		f.statuses = map[uuid.UUID]domain.MilestoneStatus{}
	}
	f.statuses[id] = status
	for _, m := range f.created {
		if m.ID == id {
			m.Status = status
		}
	}
	return nil
}

type fakeEvents struct {
	fresh     bool
	admitted  []string
	finalized map[string]string
}

func (f *fakeEvents) Admit(_ context.Context, _ repository.DBTX, id, _ string, _ json.RawMessage) (bool, error) {
	f.admitted = append(f.admitted, id)
	return f.fresh, nil
}

func (f *fakeEvents) Finalize(_ context.Context, _ repository.DBTX, id string, result string, _ *string) error {
	if f.finalized == nil {
		f.finalized = map[string]string{}
	}
	f.finalized[id] = result
	return nil
}

type fakeDisputes struct {
	byStripeID map[string]*domain.Dispute
	byID       map[uuid.UUID]*domain.Dispute
	statuses   map[uuid.UUID]domain.DisputeStatus
}

func (f *fakeDisputes) Create(_ context.Context, _ repository.DBTX, _ *domain.Dispute) error {
	return errNotImplemented
}

func (f *fakeDisputes) FindByID(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.Dispute, error) {
	return f.byID[id], nil
}

func (f *fakeDisputes) FindByStripeDisputeID(_ context.Context, _ repository.DBTX, stripeDisputeID string) (*domain.Dispute, error) {
	return f.byStripeID[stripeDisputeID], nil
}

func (f *fakeDisputes) UpdateStatus(_ context.Context, _ repository.DBTX, id uuid.UUID, status domain.DisputeStatus, _ *uuid.UUID) error {
	if f.statuses == nil {
		f.statuses = map[uuid.UUID]domain.DisputeStatus{}
	}
	f.statuses[id] = status
	return nil
}

type fakeTransactions struct {
	inserted []*domain.Transaction
}

func (f *fakeTransactions) Insert(_ context.Context, _ repository.DBTX, tx *domain.Transaction) error {
	f.inserted = append(f.inserted, tx)
	return nil
}

type fakeAudit struct {
	entries []*domain.AuditLog
}

func (f *fakeAudit) Insert(_ context.Context, _ repository.DBTX, entry *domain.AuditLog) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakeNotifications struct {
	sent []*domain.Notification
}

func (f *fakeNotifications) Insert(_ context.Context, _ repository.DBTX, n *domain.Notification) error {
	f.sent = append(f.sent, n)
	return nil
}
