package middleware

import (
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/loginguard/pkg/http"
	"github.com/go-chi/httprate"
)

// FloodGuardConfig holds the coarse per-IP request ceiling for /auth/*
type FloodGuardConfig struct {
	RequestsPerMinute int
	IPConfig          *pkghttp.IPConfig
}

// FloodGuard limits raw request volume per client IP. It sits in front of
// the policy-based limiter and keys on the same trusted-proxy aware address.
// A non-positive limit disables it.
func FloodGuard(config FloodGuardConfig) func(next http.Handler) http.Handler {
	if config.RequestsPerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		config.RequestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, config.IPConfig), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "rate_limited", "Too many requests. Please try again later.", time.Minute)
		}),
	)
}
