package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *JWTManager {
	return NewJWTManager("test-secret-that-is-long-enough-123", time.Hour, time.Hour)
}

func TestGenerateAndValidateToken(t *testing.T) {
	mgr := newTestManager()
	subjectID := uuid.New()

	t.Run("user token round trip", func(t *testing.T) {
		token, err := mgr.GenerateToken(RealmUser, subjectID, "buyer@example.com", "")
		require.NoError(t, err)

		claims, err := mgr.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, RealmUser, claims.Realm)
		assert.Equal(t, subjectID.String(), claims.Subject)
		assert.Equal(t, "buyer@example.com", claims.Email)
	})

	t.Run("admin token carries role", func(t *testing.T) {
		token, err := mgr.GenerateToken(RealmAdmin, subjectID, "ops@example.com", "superadmin")
		require.NoError(t, err)

		claims, err := mgr.ValidateTokenForRealm(token, RealmAdmin)
		require.NoError(t, err)
		assert.Equal(t, "superadmin", claims.Role)
	})

	t.Run("unknown realm rejected", func(t *testing.T) {
		_, err := mgr.GenerateToken(Realm("bogus"), subjectID, "", "")
		require.Error(t, err)
	})
}

func TestValidateTokenForRealm_Mismatch(t *testing.T) {
	mgr := newTestManager()
	token, err := mgr.GenerateToken(RealmUser, uuid.New(), "", "")
	require.NoError(t, err)

	_, err = mgr.ValidateTokenForRealm(token, RealmAdmin)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected realm admin")
}

func TestValidateToken_Expired(t *testing.T) {
	mgr := NewJWTManager("test-secret-that-is-long-enough-123", -time.Minute, -time.Minute)
	token, err := mgr.GenerateToken(RealmUser, uuid.New(), "", "")
	require.NoError(t, err)

	_, err = mgr.ValidateToken(token)
	require.Error(t, err)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	mgr := newTestManager()
	token, err := mgr.GenerateToken(RealmUser, uuid.New(), "", "")
	require.NoError(t, err)

	other := NewJWTManager("a-completely-different-secret-456789", time.Hour, time.Hour)
	_, err = other.ValidateToken(token)
	require.Error(t, err)
}
