package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec_test_secret"

func signPayload(t *testing.T, secret string, payload []byte, ts int64) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	p := NewStripeProvider("sk_test_123", testWebhookSecret)
	payload := []byte(`{"id":"evt_123","type":"payment_intent.succeeded","data":{"object":{"id":"pi_123"}}}`)

	t.Run("valid signature", func(t *testing.T) {
		ts := time.Now().Unix()
		sig := signPayload(t, testWebhookSecret, payload, ts)
		header := fmt.Sprintf("t=%d,v1=%s", ts, sig)

		event, err := p.VerifyWebhookSignature(payload, header)
		require.NoError(t, err)
		assert.Equal(t, "evt_123", event.ID)
		assert.Equal(t, "payment_intent.succeeded", event.Type)
	})

	t.Run("second v1 signature accepted", func(t *testing.T) {
		ts := time.Now().Unix()
		sig := signPayload(t, testWebhookSecret, payload, ts)
		header := fmt.Sprintf("t=%d,v1=%s,v1=%s", ts, "deadbeef", sig)

		_, err := p.VerifyWebhookSignature(payload, header)
		require.NoError(t, err)
	})

	t.Run("wrong signature rejected", func(t *testing.T) {
		ts := time.Now().Unix()
		sig := signPayload(t, "whsec_other_secret", payload, ts)
		header := fmt.Sprintf("t=%d,v1=%s", ts, sig)

		_, err := p.VerifyWebhookSignature(payload, header)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid webhook signature")
	})

	t.Run("tampered payload rejected", func(t *testing.T) {
		ts := time.Now().Unix()
		sig := signPayload(t, testWebhookSecret, payload, ts)
		header := fmt.Sprintf("t=%d,v1=%s", ts, sig)

		_, err := p.VerifyWebhookSignature([]byte(`{"id":"evt_999"}`), header)
		require.Error(t, err)
	})

	t.Run("stale timestamp rejected", func(t *testing.T) {
		ts := time.Now().Add(-10 * time.Minute).Unix()
		sig := signPayload(t, testWebhookSecret, payload, ts)
		header := fmt.Sprintf("t=%d,v1=%s", ts, sig)

		_, err := p.VerifyWebhookSignature(payload, header)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "too old")
	})

	t.Run("malformed header rejected", func(t *testing.T) {
		for _, header := range []string{"", "garbage", "t=123", "v1=abc"} {
			_, err := p.VerifyWebhookSignature(payload, header)
			require.Error(t, err, "header %q", header)
		}
	})

	t.Run("missing webhook secret is a config error", func(t *testing.T) {
		unconfigured := NewStripeProvider("sk_test_123", "")
		_, err := unconfigured.VerifyWebhookSignature(payload, "t=1,v1=abc")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "webhook secret not configured")
	})
}

func TestParsePaymentIntentData(t *testing.T) {
	data := []byte(`{"object":{"id":"pi_123","amount":10000,"currency":"usd","status":"succeeded","metadata":{"payment_id":"abc","milestone_id":"m1"}}}`)
	intent, err := ParsePaymentIntentData(data)
	require.NoError(t, err)
	assert.Equal(t, "pi_123", intent.ID)
	assert.Equal(t, int64(10000), intent.Amount)
	assert.Equal(t, "abc", intent.Metadata["payment_id"])
	assert.Nil(t, intent.LastPaymentError)
}

func TestParsePaymentIntentData_WithError(t *testing.T) {
	data := []byte(`{"object":{"id":"pi_123","status":"requires_payment_method","last_payment_error":{"code":"card_declined","message":"Your card was declined."}}}`)
	intent, err := ParsePaymentIntentData(data)
	require.NoError(t, err)
	require.NotNil(t, intent.LastPaymentError)
	assert.Equal(t, "card_declined", intent.LastPaymentError.Code)
}

func TestParseChargeData(t *testing.T) {
	data := []byte(`{"object":{"id":"ch_123","payment_intent":"pi_123","amount":10000,"amount_refunded":10000}}`)
	charge, err := ParseChargeData(data)
	require.NoError(t, err)
	assert.Equal(t, "pi_123", charge.PaymentIntent)
	assert.Equal(t, int64(10000), charge.AmountRefunded)
}

func TestParseDisputeData(t *testing.T) {
	data := []byte(`{"object":{"id":"dp_123","charge":"ch_123","reason":"fraudulent","amount":10000,"status":"needs_response"}}`)
	dispute, err := ParseDisputeData(data)
	require.NoError(t, err)
	assert.Equal(t, "dp_123", dispute.ID)
	assert.Equal(t, "ch_123", dispute.Charge)
	assert.Empty(t, dispute.PaymentIntent)
}

func TestParseTransferData(t *testing.T) {
	data := []byte(`{"object":{"id":"tr_123","amount":9500,"metadata":{"payment_id":"abc"}}}`)
	transfer, err := ParseTransferData(data)
	require.NoError(t, err)
	assert.Equal(t, "tr_123", transfer.ID)
	assert.Equal(t, "abc", transfer.Metadata["payment_id"])
}

func TestParseData_Malformed(t *testing.T) {
	_, err := ParsePaymentIntentData([]byte(`{bad`))
	require.Error(t, err)
}
