package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/loginguard/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func protected(t *testing.T, ti *auth.TokenIssuer, role string) http.Handler {
	t.Helper()
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := auth.GetOperatorFromContext(r)
		require.NotNil(t, claims)
		w.WriteHeader(http.StatusNoContent)
	})
	if role == "" {
		return auth.AuthMiddleware(ti)(final)
	}
	return auth.AuthMiddleware(ti)(auth.RequireRole(role)(final))
}

func TestAuthMiddleware(t *testing.T) {
	ti := newTestIssuer()
	access, _, err := ti.IssueAccess("op-1", "doctor")
	require.NoError(t, err)
	refresh, _, err := ti.IssueRefresh("op-1", "doctor", "sid", "jti")
	require.NoError(t, err)

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+access) }, http.StatusNoContent},
		{"access cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: auth.AccessCookieName, Value: access}) }, http.StatusNoContent},
		{"missing", func(r *http.Request) {}, http.StatusUnauthorized},
		{"malformed header", func(r *http.Request) { r.Header.Set("Authorization", "Token "+access) }, http.StatusUnauthorized},
		{"refresh token as access", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+refresh) }, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
			tt.setup(req)
			w := httptest.NewRecorder()

			protected(t, ti, "").ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	ti := newTestIssuer()
	admin, _, _ := ti.IssueAccess("op-1", "admin")
	nurse, _, _ := ti.IssueAccess("op-2", "nurse")

	req := httptest.NewRequest(http.MethodGet, "/admin/lockouts", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	w := httptest.NewRecorder()
	protected(t, ti, "admin").ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin/lockouts", nil)
	req.Header.Set("Authorization", "Bearer "+nurse)
	w = httptest.NewRecorder()
	protected(t, ti, "admin").ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireRole_WithoutAuth(t *testing.T) {
	h := auth.RequireRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/lockouts", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
