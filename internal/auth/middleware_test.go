package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequireRole(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	withClaims := func(r *http.Request, role string) *http.Request {
		ctx := context.WithValue(r.Context(), claimsKey, &Claims{Role: role})
		return r.WithContext(ctx)
	}

	t.Run("allows a listed role", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := withClaims(httptest.NewRequest(http.MethodPost, "/admin/disputes/1/resolve", nil), "admin")

		RequireRole("admin", "superadmin")(next).ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("rejects an unlisted role", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := withClaims(httptest.NewRequest(http.MethodPost, "/admin/disputes/1/resolve", nil), "support")

		RequireRole("admin")(next).ServeHTTP(w, r)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("rejects missing claims", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/admin/disputes/1/resolve", nil)

		RequireRole("admin")(next).ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
