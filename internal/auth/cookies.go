package auth

import (
	"net/http"
	"time"
)

const (
	AccessCookieName  = "access_token"
	RefreshCookieName = "refresh_token"
)

// CookieConfig holds cookie configuration settings
type CookieConfig struct {
	Domain      string // empty = current host only
	Secure      bool
	SameSite    http.SameSite
	RefreshPath string // scope of the refresh cookie, e.g. "/auth"
}

func (c CookieConfig) refreshPath() string {
	if c.RefreshPath == "" {
		return "/"
	}
	return c.RefreshPath
}

// SetAuthCookies writes both token cookies. Each cookie lives as long as its token.
func SetAuthCookies(w http.ResponseWriter, accessToken string, accessTTL time.Duration, refreshToken string, refreshTTL time.Duration, config CookieConfig) {
	http.SetCookie(w, newCookie(AccessCookieName, accessToken, "/", accessTTL, config))
	http.SetCookie(w, newCookie(RefreshCookieName, refreshToken, config.refreshPath(), refreshTTL, config))
}

// ClearAuthCookies expires both token cookies
func ClearAuthCookies(w http.ResponseWriter, config CookieConfig) {
	for _, c := range []*http.Cookie{
		newCookie(AccessCookieName, "", "/", 0, config),
		newCookie(RefreshCookieName, "", config.refreshPath(), 0, config),
	} {
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
		http.SetCookie(w, c)
	}
}

// GetRefreshTokenCookie retrieves the refresh token from cookies
func GetRefreshTokenCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}

func newCookie(name, value, path string, ttl time.Duration, config CookieConfig) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   config.Domain,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: config.SameSite,
	}
	if ttl > 0 {
		c.Expires = time.Now().Add(ttl)
		c.MaxAge = int(ttl.Seconds())
	}
	return c
}
