package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
)

// RateLimitService enforces the per-IP request policies (login, register).
// Counters live in fixed windows anchored at the first request.
type RateLimitService struct {
	store    GuardStore
	policies map[string]models.RatePolicy
	logger   *slog.Logger
	now      Clock
}

func NewRateLimitService(store GuardStore, policies map[string]models.RatePolicy, logger *slog.Logger) *RateLimitService {
	return &RateLimitService{
		store:    store,
		policies: policies,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *RateLimitService) SetClock(now Clock) { s.now = now }

// Allow counts one request from ip against policy. Once the count passes the
// policy max it returns a *models.BlockedError with the time left in the window.
func (s *RateLimitService) Allow(ctx context.Context, policy, ip string) error {
	p, ok := s.policies[policy]
	if !ok {
		return fmt.Errorf("unknown rate policy %q", policy)
	}

	now := s.now()
	wc := s.store.IncrementWithExpiry(ctx, rateKey(policy, ip), now, p.Window, models.WindowFixed)
	if wc.Count <= p.Max {
		return nil
	}

	retry := wc.ExpiresAt.Sub(now)
	if retry <= 0 {
		retry = time.Millisecond
	}
	s.logger.Warn("rate limit exceeded",
		slog.String("policy", policy),
		slog.String("ip_address", NormalizeIP(ip)),
		slog.Int64("count", wc.Count),
		slog.Duration("retry_after", retry),
	)
	return &models.BlockedError{Reason: models.BlockRateLimited, RetryAfter: retry}
}

func rateKey(policy, ip string) string {
	return keyPrefix + "rate:" + policy + ":" + NormalizeIP(ip)
}
