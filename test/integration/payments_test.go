//go:build integration

package integration

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradepost/marketplace/test/integration/testutil"
)

func TestPayments_RequireAuth(t *testing.T) {
	env := testutil.NewTestEnv(t)

	resp := env.POST("/payments/intent", map[string]string{"listing_id": uuid.NewString()}, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp2 := env.GET("/payments")
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
}

func TestPayments_AdminTokenRejectedOnUserRoutes(t *testing.T) {
	env := testutil.NewTestEnv(t)

	token := env.AdminToken(uuid.New())
	resp := env.AuthGET("/payments", token)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCreateIntent_UnknownProfile(t *testing.T) {
	env := testutil.NewTestEnv(t)

	sellerProfile := env.SeedProfile(uuid.New(), 0)
	listing := env.SeedListing(sellerProfile, 10000)

	// Authenticated user without a profile row.
	token := env.UserToken(uuid.New())
	resp := env.POST("/payments/intent", map[string]string{"listing_id": listing.String()}, token)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateIntent_SelfPurchaseRejected(t *testing.T) {
	env := testutil.NewTestEnv(t)

	sellerUser := uuid.New()
	sellerProfile := env.SeedProfile(sellerUser, 0)
	listing := env.SeedListing(sellerProfile, 10000)

	token := env.UserToken(sellerUser)
	resp := env.POST("/payments/intent", map[string]string{"listing_id": listing.String()}, token)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
}

func TestCreateIntent_UnknownListing(t *testing.T) {
	env := testutil.NewTestEnv(t)

	buyerUser := uuid.New()
	env.SeedProfile(buyerUser, 0)

	token := env.UserToken(buyerUser)
	resp := env.POST("/payments/intent", map[string]string{"listing_id": uuid.NewString()}, token)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateMilestone_CapEnforcedBeforeProvider(t *testing.T) {
	env := testutil.NewTestEnv(t)

	buyerUser := uuid.New()
	env.SeedProfile(buyerUser, 0)
	sellerProfile := env.SeedProfile(uuid.New(), 0)
	listing := env.SeedListing(sellerProfile, 10000)

	token := env.UserToken(buyerUser)
	resp := env.POST("/payments/milestones", map[string]interface{}{
		"listing_id":   listing.String(),
		"title":        "too big",
		"amount_cents": 10001,
	}, token)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, env.CountRows("SELECT COUNT(*) FROM milestones"))
}

func TestGetPayment_ScopedToBuyer(t *testing.T) {
	env := testutil.NewTestEnv(t)

	buyerUser := uuid.New()
	buyerProfile := env.SeedProfile(buyerUser, 0)
	otherUser := uuid.New()
	env.SeedProfile(otherUser, 0)
	sellerProfile := env.SeedProfile(uuid.New(), 0)
	listing := env.SeedListing(sellerProfile, 10000)
	payment := env.SeedPayment(listing, buyerProfile, sellerProfile, 10000, 500, "completed", "pi_scope_1")

	ownerResp := env.AuthGET("/payments/"+payment.String(), env.UserToken(buyerUser))
	defer ownerResp.Body.Close()
	assert.Equal(t, http.StatusOK, ownerResp.StatusCode)

	otherResp := env.AuthGET("/payments/"+payment.String(), env.UserToken(otherUser))
	defer otherResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, otherResp.StatusCode)
}
