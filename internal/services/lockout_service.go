package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
)

// LockoutConfig holds the per-role lockout table
type LockoutConfig struct {
	Default      models.LockoutPolicy
	RolePolicies map[string]models.LockoutPolicy
	Window       time.Duration     // how long failures are remembered
	Mode         models.WindowMode // fixed or sliding failure window
}

// lockoutState is the stored snapshot for one (ip, username) pair. It is
// rewritten on every failure and read by Check.
type lockoutState struct {
	FailCount     int64      `json:"failCount"`
	FirstFailedAt time.Time  `json:"firstFailedAt"`
	LastFailedAt  time.Time  `json:"lastFailedAt"`
	LockedUntil   *time.Time `json:"lockedUntil,omitempty"`
}

// LockoutService locks an (ip, username) pair after repeated failed logins.
type LockoutService struct {
	store  GuardStore
	config LockoutConfig
	logger *slog.Logger
	now    Clock
}

func NewLockoutService(store GuardStore, config LockoutConfig, logger *slog.Logger) *LockoutService {
	return &LockoutService{
		store:  store,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

func (s *LockoutService) SetClock(now Clock) { s.now = now }

// PolicyFor resolves the policy for role; unknown or empty roles get the default.
func (s *LockoutService) PolicyFor(role string) models.LockoutPolicy {
	if p, ok := s.config.RolePolicies[role]; ok {
		return p
	}
	return s.config.Default
}

// Check returns a *models.BlockedError while a lock is in force.
func (s *LockoutService) Check(ctx context.Context, ip, username string) error {
	now := s.now()
	st := s.load(ctx, lockoutKey(ip, username), now)
	if st == nil || st.LockedUntil == nil || !st.LockedUntil.After(now) {
		return nil
	}
	until := *st.LockedUntil
	return &models.BlockedError{
		Reason:     models.BlockLocked,
		RetryAfter: until.Sub(now),
		Until:      &until,
	}
}

// RecordFailure counts a failed attempt and locks the pair once the count
// reaches policy.MaxFails. An existing later lock is never shortened.
func (s *LockoutService) RecordFailure(ctx context.Context, ip, username string, policy models.LockoutPolicy) *models.LoginLockout {
	now := s.now()
	key := lockoutKey(ip, username)

	wc := s.store.IncrementWithExpiry(ctx, failKey(ip, username), now, s.config.Window, s.config.Mode)
	prev := s.load(ctx, key, now)

	st := &lockoutState{
		FailCount:     wc.Count,
		FirstFailedAt: wc.WindowStart,
		LastFailedAt:  now,
	}
	if prev != nil && prev.LockedUntil != nil && prev.LockedUntil.After(now) {
		existing := *prev.LockedUntil
		st.LockedUntil = &existing
	}

	if wc.Count >= policy.MaxFails {
		candidate := now.Add(policy.LockDuration)
		if st.LockedUntil == nil || candidate.After(*st.LockedUntil) {
			st.LockedUntil = &candidate
			s.logger.Warn("login locked",
				slog.String("ip_address", NormalizeIP(ip)),
				slog.Int64("fail_count", wc.Count),
				slog.Time("locked_until", candidate),
			)
		}
	}

	ttl := s.config.Window
	if wc.ExpiresAt.After(now) {
		ttl = wc.ExpiresAt.Sub(now)
	}
	if st.LockedUntil != nil && st.LockedUntil.Sub(now) > ttl {
		ttl = st.LockedUntil.Sub(now)
	}
	s.save(ctx, key, st, now, ttl)

	return st.snapshot(ip, username)
}

// Reset clears failures and any lock for the pair across every tier.
func (s *LockoutService) Reset(ctx context.Context, ip, username string) {
	s.store.Delete(ctx, failKey(ip, username), lockoutKey(ip, username))
}

// State returns the current snapshot; a pair with no history has FailCount 0.
func (s *LockoutService) State(ctx context.Context, ip, username string) *models.LoginLockout {
	st := s.load(ctx, lockoutKey(ip, username), s.now())
	if st == nil {
		return &models.LoginLockout{IP: NormalizeIP(ip), Username: NormalizeUsername(username)}
	}
	return st.snapshot(ip, username)
}

func (s *LockoutService) load(ctx context.Context, key string, now time.Time) *lockoutState {
	raw, found := s.store.Get(ctx, key, now)
	if !found {
		return nil
	}
	var st lockoutState
	if err := json.Unmarshal(raw, &st); err != nil {
		s.logger.Warn("discarding unreadable lockout record", slog.String("error", err.Error()))
		return nil
	}
	return &st
}

func (s *LockoutService) save(ctx context.Context, key string, st *lockoutState, now time.Time, ttl time.Duration) {
	raw, err := json.Marshal(st)
	if err != nil {
		s.logger.Error("failed to encode lockout record", slog.String("error", err.Error()))
		return
	}
	s.store.Set(ctx, key, raw, now, ttl)
}

func (st *lockoutState) snapshot(ip, username string) *models.LoginLockout {
	first, last := st.FirstFailedAt, st.LastFailedAt
	out := &models.LoginLockout{
		IP:          NormalizeIP(ip),
		Username:    NormalizeUsername(username),
		FailCount:   st.FailCount,
		LockedUntil: st.LockedUntil,
	}
	if !first.IsZero() {
		out.FirstFailedAt = &first
	}
	if !last.IsZero() {
		out.LastFailedAt = &last
	}
	return out
}

func pairID(ip, username string) string {
	return NormalizeIP(ip) + "|" + NormalizeUsername(username)
}

func failKey(ip, username string) string {
	return keyPrefix + "lock:fail:" + pairID(ip, username)
}

func lockoutKey(ip, username string) string {
	return keyPrefix + "lock:state:" + pairID(ip, username)
}
