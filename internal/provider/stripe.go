package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.stripe.com"

// webhookTolerance is the maximum accepted age of a signed webhook payload.
const webhookTolerance = 5 * time.Minute

// StripeProvider wraps the Stripe API operations the payment core needs.
type StripeProvider struct {
	secretKey     string
	webhookSecret string
	baseURL       string
	client        *http.Client
}

// NewStripeProvider creates a Stripe provider with a bounded HTTP client.
func NewStripeProvider(secretKey, webhookSecret string) *StripeProvider {
	return &StripeProvider{
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		baseURL:       defaultBaseURL,
		client:        &http.Client{Timeout: 10 * time.Second},
	}
}

// PaymentIntent is the subset of the Stripe payment intent object we use.
type PaymentIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// Charge is the subset of the Stripe charge object we use.
type Charge struct {
	ID             string `json:"id"`
	PaymentIntent  string `json:"payment_intent"`
	AmountRefunded int64  `json:"amount_refunded"`
}

// Refund is the subset of the Stripe refund object we use.
type Refund struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
	Status string `json:"status"`
}

// CreateIntentParams describes a manual-capture payment intent.
type CreateIntentParams struct {
	AmountCents    int64
	Currency       string
	IdempotencyKey string
	Metadata       map[string]string
}

// CreatePaymentIntent creates a manual-capture payment intent. The
// idempotency key makes client retries converge on one intent.
func (s *StripeProvider) CreatePaymentIntent(ctx context.Context, params CreateIntentParams) (*PaymentIntent, error) {
	if s.secretKey == "" {
		return nil, fmt.Errorf("stripe secret key not configured")
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(params.AmountCents, 10))
	form.Set("currency", strings.ToLower(params.Currency))
	form.Set("capture_method", "manual")
	for k, v := range params.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	var intent PaymentIntent
	if err := s.postForm(ctx, "/v1/payment_intents", form, params.IdempotencyKey, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

// CancelPaymentIntent cancels an uncaptured payment intent.
func (s *StripeProvider) CancelPaymentIntent(ctx context.Context, intentID string) error {
	var intent PaymentIntent
	return s.postForm(ctx, "/v1/payment_intents/"+intentID+"/cancel", url.Values{}, "", &intent)
}

// CreateRefund refunds the charge behind a payment intent.
func (s *StripeProvider) CreateRefund(ctx context.Context, intentID string) (*Refund, error) {
	form := url.Values{}
	form.Set("payment_intent", intentID)

	var refund Refund
	if err := s.postForm(ctx, "/v1/refunds", form, "", &refund); err != nil {
		return nil, err
	}
	return &refund, nil
}

// RetrieveCharge fetches a charge so dispute events can be tied back to
// their payment intent.
func (s *StripeProvider) RetrieveCharge(ctx context.Context, chargeID string) (*Charge, error) {
	if s.secretKey == "" {
		return nil, fmt.Errorf("stripe secret key not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/charges/"+chargeID, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.secretKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stripe api call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("stripe error (status %d): %s", resp.StatusCode, string(body))
	}

	var charge Charge
	if err := json.NewDecoder(resp.Body).Decode(&charge); err != nil {
		return nil, fmt.Errorf("decode stripe response: %w", err)
	}
	return &charge, nil
}

func (s *StripeProvider) postForm(ctx context.Context, path string, form url.Values, idempotencyKey string, out interface{}) error {
	if s.secretKey == "" {
		return fmt.Errorf("stripe secret key not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("stripe api call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("stripe error (status %d): %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode stripe response: %w", err)
	}
	return nil
}

// StripeWebhookEvent represents a parsed Stripe webhook event.
type StripeWebhookEvent struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// VerifyWebhookSignature verifies a Stripe webhook signature against the
// raw payload bytes. Returns the parsed event if valid.
func (s *StripeProvider) VerifyWebhookSignature(payload []byte, sigHeader string) (*StripeWebhookEvent, error) {
	if s.webhookSecret == "" {
		return nil, fmt.Errorf("stripe webhook secret not configured")
	}

	// Parse Stripe-Signature header: t=timestamp,v1=signature
	parts := strings.Split(sigHeader, ",")
	var timestamp string
	var signatures []string
	for _, part := range parts {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}

	if timestamp == "" || len(signatures) == 0 {
		return nil, fmt.Errorf("invalid signature header format")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp: %w", err)
	}
	if time.Now().Unix()-ts > int64(webhookTolerance.Seconds()) {
		return nil, fmt.Errorf("webhook timestamp too old")
	}

	signedPayload := timestamp + "." + string(payload)
	mac := hmac.New(sha256.New, []byte(s.webhookSecret))
	mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	valid := false
	for _, sig := range signatures {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			valid = true
			break
		}
	}
	if !valid {
		return nil, fmt.Errorf("invalid webhook signature")
	}

	var event StripeWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("decode webhook event: %w", err)
	}
	return &event, nil
}

// PaymentIntentData is the nested data.object from payment_intent.* events.
type PaymentIntentData struct {
	ID               string            `json:"id"`
	Amount           int64             `json:"amount"`
	Currency         string            `json:"currency"`
	Status           string            `json:"status"`
	Metadata         map[string]string `json:"metadata"`
	LastPaymentError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

// ChargeData is the nested data.object from charge.* events.
type ChargeData struct {
	ID             string `json:"id"`
	PaymentIntent  string `json:"payment_intent"`
	Amount         int64  `json:"amount"`
	AmountRefunded int64  `json:"amount_refunded"`
}

// TransferData is the nested data.object from transfer.* events.
type TransferData struct {
	ID       string            `json:"id"`
	Amount   int64             `json:"amount"`
	Metadata map[string]string `json:"metadata"`
}

// DisputeData is the nested data.object from charge.dispute.* events.
type DisputeData struct {
	ID            string `json:"id"`
	Charge        string `json:"charge"`
	PaymentIntent string `json:"payment_intent"`
	Reason        string `json:"reason"`
	Amount        int64  `json:"amount"`
	Status        string `json:"status"`
}

// ParsePaymentIntentData extracts payment intent data from a webhook event.
func ParsePaymentIntentData(data json.RawMessage) (*PaymentIntentData, error) {
	var wrapper struct {
		Object PaymentIntentData `json:"object"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("parse payment intent data: %w", err)
	}
	return &wrapper.Object, nil
}

// ParseChargeData extracts charge data from a webhook event.
func ParseChargeData(data json.RawMessage) (*ChargeData, error) {
	var wrapper struct {
		Object ChargeData `json:"object"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("parse charge data: %w", err)
	}
	return &wrapper.Object, nil
}

// ParseTransferData extracts transfer data from a webhook event.
func ParseTransferData(data json.RawMessage) (*TransferData, error) {
	var wrapper struct {
		Object TransferData `json:"object"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("parse transfer data: %w", err)
	}
	return &wrapper.Object, nil
}

// ParseDisputeData extracts dispute data from a webhook event.
func ParseDisputeData(data json.RawMessage) (*DisputeData, error) {
	var wrapper struct {
		Object DisputeData `json:"object"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("parse dispute data: %w", err)
	}
	return &wrapper.Object, nil
}
