//go:build integration

package testutil

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tradepost/marketplace/internal/auth"
)

// UserToken mints a user-realm JWT for the given user id.
func (env *TestEnv) UserToken(userID uuid.UUID) string {
	env.t.Helper()
	token, err := env.JWTMgr.GenerateToken(auth.RealmUser, userID, "buyer@example.com", "")
	if err != nil {
		env.t.Fatalf("UserToken: %v", err)
	}
	return token
}

// AdminToken mints an admin-realm JWT.
func (env *TestEnv) AdminToken(adminID uuid.UUID) string {
	env.t.Helper()
	token, err := env.JWTMgr.GenerateToken(auth.RealmAdmin, adminID, "admin@example.com", "admin")
	if err != nil {
		env.t.Fatalf("AdminToken: %v", err)
	}
	return token
}

// SeedProfile inserts a profile and returns its id.
func (env *TestEnv) SeedProfile(userID uuid.UUID, balanceCents int64) uuid.UUID {
	env.t.Helper()
	id := uuid.New()
	_, err := env.Pool.Exec(context.Background(), `
		INSERT INTO profiles (id, user_id, display_name, balance_cents)
		VALUES ($1, $2, $3, $4)`, id, userID, "profile-"+id.String()[:8], balanceCents)
	if err != nil {
		env.t.Fatalf("SeedProfile: %v", err)
	}
	return id
}

// SeedListing inserts an active listing and returns its id.
func (env *TestEnv) SeedListing(sellerProfileID uuid.UUID, priceCents int64) uuid.UUID {
	env.t.Helper()
	id := uuid.New()
	_, err := env.Pool.Exec(context.Background(), `
		INSERT INTO listings (id, seller_profile_id, title, price_cents, currency, status)
		VALUES ($1, $2, $3, $4, 'USD', 'active')`, id, sellerProfileID, "listing-"+id.String()[:8], priceCents)
	if err != nil {
		env.t.Fatalf("SeedListing: %v", err)
	}
	return id
}

// SeedPayment inserts a payment row in the given status and returns its id.
func (env *TestEnv) SeedPayment(listingID, buyerProfileID, sellerProfileID uuid.UUID, amountCents, feeCents int64, status, stripeIntent string) uuid.UUID {
	env.t.Helper()
	id := uuid.New()
	_, err := env.Pool.Exec(context.Background(), `
		INSERT INTO payments (id, listing_id, buyer_profile_id, seller_profile_id,
			amount_cents, platform_fee_cents, currency, status, stripe_payment_intent)
		VALUES ($1, $2, $3, $4, $5, $6, 'USD', $7, $8)`,
		id, listingID, buyerProfileID, sellerProfileID, amountCents, feeCents, status, stripeIntent)
	if err != nil {
		env.t.Fatalf("SeedPayment: %v", err)
	}
	return id
}

// SeedDispute inserts a dispute row and returns its id.
func (env *TestEnv) SeedDispute(paymentID uuid.UUID, stripeDisputeID, status string) uuid.UUID {
	env.t.Helper()
	id := uuid.New()
	_, err := env.Pool.Exec(context.Background(), `
		INSERT INTO disputes (id, payment_id, stripe_dispute_id, reason, amount_cents, status)
		VALUES ($1, $2, $3, 'fraudulent', 0, $4)`, id, paymentID, stripeDisputeID, status)
	if err != nil {
		env.t.Fatalf("SeedDispute: %v", err)
	}
	return id
}

// SignedWebhook builds a Stripe-style signature header for a payload
// using the test webhook secret.
func SignedWebhook(payload []byte) string {
	ts := fmt.Sprintf("%d", time.Now().Unix())
	mac := hmac.New(sha256.New, []byte(TestStripeWebhookSecret))
	mac.Write([]byte(ts + "." + string(payload)))
	return "t=" + ts + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}

// PostWebhook delivers a signed webhook payload.
func (env *TestEnv) PostWebhook(payload []byte) *http.Response {
	env.t.Helper()
	return env.RawPOST("/webhooks/stripe", payload, map[string]string{
		"Content-Type":     "application/json",
		"Stripe-Signature": SignedWebhook(payload),
	})
}

// RawPOST performs a POST with an exact byte body and custom headers.
func (env *TestEnv) RawPOST(path string, body []byte, headers map[string]string) *http.Response {
	env.t.Helper()
	req, err := http.NewRequest("POST", env.Server.URL+path, bytes.NewReader(body))
	if err != nil {
		env.t.Fatalf("RawPOST %s: new request: %v", path, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("RawPOST %s: %v", path, err)
	}
	return resp
}

// GET performs an unauthenticated GET request.
func (env *TestEnv) GET(path string) *http.Response {
	env.t.Helper()
	resp, err := http.Get(env.Server.URL + path)
	if err != nil {
		env.t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

// POST performs a POST request with optional auth token.
func (env *TestEnv) POST(path string, body interface{}, token string) *http.Response {
	env.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			env.t.Fatalf("POST %s: encode: %v", path, err)
		}
	}
	req, err := http.NewRequest("POST", env.Server.URL+path, &buf)
	if err != nil {
		env.t.Fatalf("POST %s: new request: %v", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

// AuthGET performs an authenticated GET request.
func (env *TestEnv) AuthGET(path, token string) *http.Response {
	env.t.Helper()
	req, err := http.NewRequest("GET", env.Server.URL+path, nil)
	if err != nil {
		env.t.Fatalf("AuthGET %s: new request: %v", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("AuthGET %s: %v", path, err)
	}
	return resp
}

// PaymentStatus reads a payment's status straight from the database.
func (env *TestEnv) PaymentStatus(paymentID uuid.UUID) string {
	env.t.Helper()
	var status string
	err := env.Pool.QueryRow(context.Background(),
		"SELECT status FROM payments WHERE id = $1", paymentID).Scan(&status)
	if err != nil {
		env.t.Fatalf("PaymentStatus: %v", err)
	}
	return status
}

// ProfileBalance reads a profile's balance straight from the database.
func (env *TestEnv) ProfileBalance(profileID uuid.UUID) int64 {
	env.t.Helper()
	var balance int64
	err := env.Pool.QueryRow(context.Background(),
		"SELECT balance_cents FROM profiles WHERE id = $1", profileID).Scan(&balance)
	if err != nil {
		env.t.Fatalf("ProfileBalance: %v", err)
	}
	return balance
}

// CountRows counts rows in a table matching a single-column predicate.
func (env *TestEnv) CountRows(query string, args ...interface{}) int {
	env.t.Helper()
	var n int
	if err := env.Pool.QueryRow(context.Background(), query, args...).Scan(&n); err != nil {
		env.t.Fatalf("CountRows: %v", err)
	}
	return n
}
