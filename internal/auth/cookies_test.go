package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/loginguard/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cookiesByName(w *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range w.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

func TestSetAuthCookies(t *testing.T) {
	w := httptest.NewRecorder()
	cfg := auth.CookieConfig{Secure: true, SameSite: http.SameSiteStrictMode, RefreshPath: "/auth", Domain: "clinic.example"}

	auth.SetAuthCookies(w, "acc", 15*time.Minute, "ref", 7*24*time.Hour, cfg)

	cookies := cookiesByName(w)
	require.Len(t, cookies, 2)

	access := cookies[auth.AccessCookieName]
	assert.Equal(t, "acc", access.Value)
	assert.Equal(t, "/", access.Path)
	assert.Equal(t, 900, access.MaxAge)
	assert.True(t, access.HttpOnly)
	assert.True(t, access.Secure)
	assert.Equal(t, http.SameSiteStrictMode, access.SameSite)

	refresh := cookies[auth.RefreshCookieName]
	assert.Equal(t, "ref", refresh.Value)
	assert.Equal(t, "/auth", refresh.Path)
	assert.Equal(t, 7*24*3600, refresh.MaxAge)
	assert.Equal(t, "clinic.example", refresh.Domain)
}

func TestClearAuthCookies(t *testing.T) {
	w := httptest.NewRecorder()

	auth.ClearAuthCookies(w, auth.CookieConfig{SameSite: http.SameSiteLaxMode})

	cookies := cookiesByName(w)
	require.Len(t, cookies, 2)
	for _, c := range cookies {
		assert.Empty(t, c.Value)
		assert.Equal(t, -1, c.MaxAge)
	}
	assert.Equal(t, "/", cookies[auth.RefreshCookieName].Path)
}

func TestGetRefreshTokenCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	_, err := auth.GetRefreshTokenCookie(req)
	assert.Error(t, err)

	req.AddCookie(&http.Cookie{Name: auth.RefreshCookieName, Value: "tok"})
	v, err := auth.GetRefreshTokenCookie(req)
	require.NoError(t, err)
	assert.Equal(t, "tok", v)
}
