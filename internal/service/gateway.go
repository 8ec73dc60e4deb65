package service

import (
	"context"

	"github.com/tradepost/marketplace/internal/provider"
)

// StripeGateway is the slice of the Stripe provider the services use.
// Satisfied by *provider.StripeProvider; faked in tests.
type StripeGateway interface {
	CreatePaymentIntent(ctx context.Context, params provider.CreateIntentParams) (*provider.PaymentIntent, error)
	CancelPaymentIntent(ctx context.Context, intentID string) error
	CreateRefund(ctx context.Context, intentID string) (*provider.Refund, error)
	RetrieveCharge(ctx context.Context, chargeID string) (*provider.Charge, error)
	VerifyWebhookSignature(payload []byte, sigHeader string) (*provider.StripeWebhookEvent, error)
}
