package services_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/loginguard/internal/auth"
	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/BradenHooton/loginguard/internal/services"
	"github.com/BradenHooton/loginguard/internal/storage"
	pkgauth "github.com/BradenHooton/loginguard/pkg/auth"
	pkglogger "github.com/BradenHooton/loginguard/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// fakeClock is shared by every service under test so windows can be stepped.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now().Truncate(time.Millisecond)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// plainHasher keeps tests fast; it is not a real hash.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "plain:" + password, nil }

func (plainHasher) Compare(hashed, password string) error {
	if hashed == "plain:"+password {
		return nil
	}
	return pkgauth.ErrPasswordMismatch
}

// operatorStore is an in-memory OperatorRepository.
type operatorStore struct {
	mu   sync.Mutex
	byID map[string]*models.Operator
}

func newOperatorStore(ops ...*models.Operator) *operatorStore {
	s := &operatorStore{byID: map[string]*models.Operator{}}
	for _, op := range ops {
		s.byID[op.ID] = op
	}
	return s
}

func (s *operatorStore) GetByUsername(_ context.Context, username string) (*models.Operator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range s.byID {
		if op.Username == username {
			return op, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *operatorStore) GetByID(_ context.Context, id string) (*models.Operator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if op, ok := s.byID[id]; ok {
		return op, nil
	}
	return nil, models.ErrNotFound
}

func (s *operatorStore) Create(_ context.Context, op *models.Operator) (*models.Operator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if existing.Username == op.Username {
			return nil, models.ErrConflict
		}
	}
	op.ID = uuid.NewString()
	s.byID[op.ID] = op
	return op, nil
}

func (s *operatorStore) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
}

// attemptLog records audit rows in memory.
type attemptLog struct {
	mu   sync.Mutex
	rows []*models.LoginAttempt
}

func (l *attemptLog) Create(_ context.Context, a *models.LoginAttempt) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows = append(l.rows, a)
	return nil
}

func (l *attemptLog) List(context.Context, models.LoginAttemptFilter) ([]*models.LoginAttempt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*models.LoginAttempt(nil), l.rows...), nil
}

func (l *attemptLog) reasons() []models.AttemptReason {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.AttemptReason, len(l.rows))
	for i, r := range l.rows {
		out[i] = r.Reason
	}
	return out
}

type guardEnv struct {
	auth      *services.AuthService
	captchas  *services.CaptchaService
	lockouts  *services.LockoutService
	sessions  *services.SessionService
	tokens    *auth.TokenIssuer
	operators *operatorStore
	attempts  *attemptLog
	clock     *fakeClock
}

type envOptions struct {
	tiers    []storage.Tier
	rotation bool
}

const (
	doctorPassword = "Correct-Horse-1"
	adminPassword  = "Admin-Secret-9"
)

func newGuardEnv(t *testing.T, opts envOptions) *guardEnv {
	t.Helper()
	logger := discardLogger()
	if len(opts.tiers) == 0 {
		opts.tiers = []storage.Tier{storage.NewMemoryTier()}
	}
	store := storage.NewCoordinator("test", logger, opts.tiers...)
	clock := newFakeClock()

	rates := services.NewRateLimitService(store, map[string]models.RatePolicy{
		models.PolicyLogin:    {Window: time.Minute, Max: 10},
		models.PolicyRegister: {Window: 10 * time.Minute, Max: 5},
	}, logger)
	rates.SetClock(clock.Now)

	lockouts := services.NewLockoutService(store, services.LockoutConfig{
		Default:      models.LockoutPolicy{MaxFails: 5, LockDuration: 10 * time.Minute},
		RolePolicies: map[string]models.LockoutPolicy{"admin": {MaxFails: 3, LockDuration: 30 * time.Minute}},
		Window:       15 * time.Minute,
		Mode:         models.WindowFixed,
	}, logger)
	lockouts.SetClock(clock.Now)

	sessions := services.NewSessionService(store, logger)
	sessions.SetClock(clock.Now)

	captchas := services.NewCaptchaService(store, 5*time.Minute, logger)
	captchas.SetClock(clock.Now)

	attempts := &attemptLog{}
	audit := services.NewAuditService(attempts, pkglogger.NewAuditLogger(logger, "test"), logger, time.Second)
	audit.SetClock(clock.Now)

	tokens := auth.NewTokenIssuer("access-secret-for-tests-0123456789", "refresh-secret-for-tests-98765432", 15*time.Minute, 7*24*time.Hour)

	operators := newOperatorStore(
		&models.Operator{ID: "op-doc1", Username: "doc1", PasswordHash: "plain:" + doctorPassword, Name: "Dr. One", Role: "doctor"},
		&models.Operator{ID: "op-admin", Username: "root", PasswordHash: "plain:" + adminPassword, Name: "Admin", Role: "admin"},
	)

	svc, err := services.NewAuthService(services.AuthDeps{
		Operators:  operators,
		Hasher:     plainHasher{},
		Tokens:     tokens,
		Sessions:   sessions,
		RateLimits: rates,
		Lockouts:   lockouts,
		Captchas:   captchas,
		Audit:      audit,
	}, services.AuthConfig{
		RefreshRotation:      opts.rotation,
		RegisterAllowedRoles: []string{"doctor", "nurse"},
	}, logger)
	require.NoError(t, err)

	return &guardEnv{
		auth:      svc,
		captchas:  captchas,
		lockouts:  lockouts,
		sessions:  sessions,
		tokens:    tokens,
		operators: operators,
		attempts:  attempts,
		clock:     clock,
	}
}

func solveCaptcha(t *testing.T, c *models.Captcha) string {
	t.Helper()
	var a, b int
	_, err := fmt.Sscanf(c.Challenge, "%d + %d", &a, &b)
	require.NoError(t, err)
	return fmt.Sprint(a + b)
}

// login runs one login from ip with a freshly solved captcha.
func (e *guardEnv) login(t *testing.T, ip, username, password string) (*services.AuthResult, error) {
	t.Helper()
	c, err := e.captchas.Create(context.Background())
	require.NoError(t, err)
	return e.auth.Login(context.Background(), services.LoginInput{
		Username:    username,
		Password:    password,
		CaptchaID:   c.ID,
		Captcha:     solveCaptcha(t, c),
		RequestMeta: services.RequestMeta{IP: ip, UserAgent: "go-test", RequestID: "req-" + strings.ReplaceAll(ip, ".", "-")},
	})
}
