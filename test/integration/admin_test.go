//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradepost/marketplace/test/integration/testutil"
)

func TestAdminDisputes_RequireAdminRealm(t *testing.T) {
	env := testutil.NewTestEnv(t)

	// A user token must not reach admin routes.
	token := env.UserToken(uuid.New())
	resp := env.POST("/admin/disputes/"+uuid.NewString()+"/resolve", nil, token)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminResolveDispute(t *testing.T) {
	env := testutil.NewTestEnv(t)

	buyerProfile := env.SeedProfile(uuid.New(), 0)
	sellerProfile := env.SeedProfile(uuid.New(), 9500)
	listing := env.SeedListing(sellerProfile, 10000)
	payment := env.SeedPayment(listing, buyerProfile, sellerProfile, 10000, 500, "disputed", "pi_resolve_1")
	dispute := env.SeedDispute(payment, "dp_resolve_1", "open")

	adminID := uuid.New()
	resp := env.POST("/admin/disputes/"+dispute.String()+"/resolve", nil, env.AdminToken(adminID))
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Payment returns to completed; settlement stands, no balance moves.
	assert.Equal(t, "completed", env.PaymentStatus(payment))
	assert.Equal(t, int64(9500), env.ProfileBalance(sellerProfile))
	assert.Equal(t, 1, env.CountRows(
		"SELECT COUNT(*) FROM disputes WHERE id = $1 AND status = 'resolved' AND resolved_by = $2", dispute, adminID))
	assert.Equal(t, 1, env.CountRows(
		"SELECT COUNT(*) FROM payment_audit_logs WHERE payment_id = $1 AND action = 'dispute_resolved'", payment))
}

func TestAdminResolveDispute_NotFound(t *testing.T) {
	env := testutil.NewTestEnv(t)

	resp := env.POST("/admin/disputes/"+uuid.NewString()+"/resolve", nil, env.AdminToken(uuid.New()))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminResolveDispute_AlreadyClosed(t *testing.T) {
	env := testutil.NewTestEnv(t)

	buyerProfile := env.SeedProfile(uuid.New(), 0)
	sellerProfile := env.SeedProfile(uuid.New(), 0)
	listing := env.SeedListing(sellerProfile, 10000)
	payment := env.SeedPayment(listing, buyerProfile, sellerProfile, 10000, 500, "completed", "pi_closed_1")
	dispute := env.SeedDispute(payment, "dp_closed_1", "resolved")

	resp := env.POST("/admin/disputes/"+dispute.String()+"/resolve", nil, env.AdminToken(uuid.New()))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}
