package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/BradenHooton/loginguard/internal/auth"
	"github.com/BradenHooton/loginguard/internal/models"
	pkgauth "github.com/BradenHooton/loginguard/pkg/auth"
	pkglogger "github.com/BradenHooton/loginguard/pkg/logger"
	"github.com/google/uuid"
)

// OperatorRepository is the credential store
type OperatorRepository interface {
	GetByUsername(ctx context.Context, username string) (*models.Operator, error)
	GetByID(ctx context.Context, id string) (*models.Operator, error)
	Create(ctx context.Context, op *models.Operator) (*models.Operator, error)
}

// PasswordHasher hashes new passwords and compares candidates against stored hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hashed, password string) error
}

// AuthConfig holds the auth flow switches
type AuthConfig struct {
	RefreshRotation      bool
	RegisterAllowedRoles []string
}

// AuthDeps bundles the collaborators of AuthService
type AuthDeps struct {
	Operators  OperatorRepository
	Hasher     PasswordHasher
	Tokens     *auth.TokenIssuer
	Sessions   *SessionService
	RateLimits *RateLimitService
	Lockouts   *LockoutService
	Captchas   *CaptchaService
	Audit      *AuditService
	Timing     *auth.TimingDelay
}

// RequestMeta describes where a request came from
type RequestMeta struct {
	IP        string
	UserAgent string
	RequestID string
}

type LoginInput struct {
	Username  string
	Password  string
	CaptchaID string
	Captcha   string
	RequestMeta
}

type RegisterInput struct {
	Username  string
	Password  string
	Name      string
	Role      string
	CaptchaID string
	Captcha   string
	RequestMeta
}

// AuthResult is what a successful login, register or refresh hands back.
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	OperatorID   string
	Role         string
	Name         string
}

// AuthService runs the login, register, refresh and logout flows.
type AuthService struct {
	AuthDeps
	config    AuthConfig
	logger    *slog.Logger
	dummyHash string
}

func NewAuthService(deps AuthDeps, config AuthConfig, logger *slog.Logger) (*AuthService, error) {
	// Unknown usernames are compared against this so they cost the same as a wrong password.
	dummy, err := deps.Hasher.Hash("loginguard-unknown-operator-" + uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &AuthService{
		AuthDeps:  deps,
		config:    config,
		logger:    logger,
		dummyHash: dummy,
	}, nil
}

// Login checks captcha, rate limit, lockout and credentials in that order.
// Throttled requests never reach the credential store.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	start := time.Now()
	ip := NormalizeIP(in.IP)
	username := NormalizeUsername(in.Username)

	attempt := &models.LoginAttempt{
		IP:        ip,
		UserAgent: in.UserAgent,
		RequestID: in.RequestID,
	}
	if username != "" {
		attempt.Username = &username
	}

	if !s.Captchas.Verify(ctx, in.CaptchaID, in.Captcha) {
		attempt.Reason = models.ReasonCaptchaInvalid
		s.Audit.RecordLogin(ctx, attempt)
		return nil, s.captchaRejected(ctx)
	}

	if err := s.RateLimits.Allow(ctx, models.PolicyLogin, ip); err != nil {
		var blocked *models.BlockedError
		if !errors.As(err, &blocked) {
			s.logger.Error("rate limit check failed", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		attempt.Reason = models.ReasonRateLimited
		s.Audit.RecordLogin(ctx, attempt)
		return nil, err
	}

	if err := s.Lockouts.Check(ctx, ip, username); err != nil {
		var blocked *models.BlockedError
		if errors.As(err, &blocked) {
			attempt.LockedUntil = blocked.Until
		}
		attempt.Reason = models.ReasonLocked
		s.Audit.RecordLogin(ctx, attempt)
		return nil, err
	}

	var op *models.Operator
	if username != "" {
		found, err := s.Operators.GetByUsername(ctx, username)
		switch {
		case err == nil:
			op = found
		case errors.Is(err, models.ErrNotFound):
		default:
			s.logger.Error("operator lookup failed", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
	}

	hash := s.dummyHash
	if op != nil {
		hash = op.PasswordHash
	}
	cmpErr := s.Hasher.Compare(hash, in.Password)
	if cmpErr != nil && op != nil && !errors.Is(cmpErr, pkgauth.ErrPasswordMismatch) {
		s.logger.Warn("stored password hash unusable", slog.String("operator_id", op.ID), slog.Any("error", cmpErr))
	}

	if op == nil || cmpErr != nil {
		role := ""
		if op != nil {
			role = op.Role
			attempt.OperatorID = &op.ID
		}
		policy := s.Lockouts.PolicyFor(role)
		state := s.Lockouts.RecordFailure(ctx, ip, username, policy)

		attempt.Reason = models.ReasonInvalidCredentials
		attempt.LockedUntil = state.LockedUntil
		s.Audit.RecordLogin(ctx, attempt)

		s.Timing.WaitFrom(ctx, start, false)
		return nil, models.ErrUnauthorized
	}

	s.Lockouts.Reset(ctx, ip, username)

	result, err := s.startSession(ctx, op)
	if err != nil {
		return nil, err
	}

	attempt.OK = true
	attempt.Reason = models.ReasonOK
	attempt.OperatorID = &op.ID
	s.Audit.RecordLogin(ctx, attempt)

	s.logger.Info("operator logged in", slog.String("operator_id", op.ID), slog.String("role", op.Role))
	return result, nil
}

// Register creates an operator with one of the self-service roles and signs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	ip := NormalizeIP(in.IP)
	username := NormalizeUsername(in.Username)

	if !s.Captchas.Verify(ctx, in.CaptchaID, in.Captcha) {
		s.logRegister(ctx, in, username, false, string(models.ReasonCaptchaInvalid), "")
		return nil, s.captchaRejected(ctx)
	}

	if err := s.RateLimits.Allow(ctx, models.PolicyRegister, ip); err != nil {
		var blocked *models.BlockedError
		if !errors.As(err, &blocked) {
			s.logger.Error("rate limit check failed", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		s.logRegister(ctx, in, username, false, string(models.ReasonRateLimited), "")
		return nil, err
	}

	if !slices.Contains(s.config.RegisterAllowedRoles, in.Role) {
		return nil, fmt.Errorf("%w: role %q cannot self-register", models.ErrBadRequest, in.Role)
	}

	if err := pkgauth.ValidatePassword(in.Password); err != nil {
		return nil, err
	}

	_, err := s.Operators.GetByUsername(ctx, username)
	switch {
	case err == nil:
		return nil, models.ErrConflict
	case errors.Is(err, models.ErrNotFound):
	default:
		s.logger.Error("operator lookup failed", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	op, err := s.Operators.Create(ctx, &models.Operator{
		Username:     username,
		PasswordHash: hash,
		Name:         in.Name,
		Role:         in.Role,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create operator", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	result, err := s.startSession(ctx, op)
	if err != nil {
		return nil, err
	}

	s.logRegister(ctx, in, username, true, string(models.ReasonOK), op.ID)
	return result, nil
}

// Refresh exchanges a refresh token for a new access token. Any mismatch
// between the token and the stored session revokes the session.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta RequestMeta) (*AuthResult, error) {
	claims, err := s.Tokens.ParseRefresh(refreshToken)
	if err != nil {
		s.logger.Info("refresh token rejected", slog.Any("error", err))
		return nil, models.ErrUnauthorized
	}

	sess := s.Sessions.Get(ctx, claims.SessionID)
	if sess == nil {
		s.logRefresh(ctx, meta, claims.OperatorID, false, "session_missing")
		return nil, models.ErrSessionRevoked
	}

	if !sess.Matches(claims) {
		// A stale jti means the token was already rotated; treat it as reuse.
		s.Sessions.Delete(ctx, claims.SessionID)
		s.logger.Warn("refresh token reuse detected, session revoked",
			slog.String("operator_id", claims.OperatorID),
			slog.String("sid", claims.SessionID),
		)
		s.logRefresh(ctx, meta, claims.OperatorID, false, "token_reuse")
		return nil, models.ErrSessionRevoked
	}

	op, err := s.Operators.GetByID(ctx, claims.OperatorID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.Sessions.Delete(ctx, claims.SessionID)
			s.logRefresh(ctx, meta, claims.OperatorID, false, "operator_missing")
			return nil, models.ErrSessionRevoked
		}
		s.logger.Error("operator lookup failed during refresh", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if op.Role != claims.Role {
		s.Sessions.Delete(ctx, claims.SessionID)
		s.logRefresh(ctx, meta, op.ID, false, "role_changed")
		return nil, models.ErrSessionRevoked
	}

	jti := claims.ID
	if s.config.RefreshRotation {
		jti = uuid.NewString()
	}

	result, err := s.mint(ctx, op, claims.SessionID, jti)
	if err != nil {
		return nil, err
	}

	s.logRefresh(ctx, meta, op.ID, true, "")
	return result, nil
}

// Logout deletes the session named by the refresh token when it belongs to
// the token's operator. It never fails.
func (s *AuthService) Logout(ctx context.Context, refreshToken string, meta RequestMeta) {
	if refreshToken == "" {
		return
	}
	claims, err := s.Tokens.ParseRefresh(refreshToken)
	if err != nil {
		return
	}
	if sess := s.Sessions.Get(ctx, claims.SessionID); sess != nil && sess.OperatorID == claims.OperatorID {
		s.Sessions.Delete(ctx, claims.SessionID)
	}
	s.Audit.LogEvent(ctx, pkglogger.AuditEvent{
		EventType:  "logout",
		OperatorID: claims.OperatorID,
		IPAddress:  NormalizeIP(meta.IP),
		UserAgent:  meta.UserAgent,
		RequestID:  meta.RequestID,
		Success:    true,
	})
}

// Captcha issues a fresh challenge.
func (s *AuthService) Captcha(ctx context.Context) (*models.Captcha, error) {
	c, err := s.Captchas.Create(ctx)
	if err != nil {
		s.logger.Error("failed to create captcha", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return c, nil
}

func (s *AuthService) startSession(ctx context.Context, op *models.Operator) (*AuthResult, error) {
	return s.mint(ctx, op, uuid.NewString(), uuid.NewString())
}

// mint signs both tokens and stores (or overwrites) the session record.
func (s *AuthService) mint(ctx context.Context, op *models.Operator, sid, jti string) (*AuthResult, error) {
	access, _, err := s.Tokens.IssueAccess(op.ID, op.Role)
	if err != nil {
		s.logger.Error("failed to sign access token", slog.String("operator_id", op.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	refresh, refreshExp, err := s.Tokens.IssueRefresh(op.ID, op.Role, sid, jti)
	if err != nil {
		s.logger.Error("failed to sign refresh token", slog.String("operator_id", op.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.Sessions.Put(ctx, &models.RefreshSession{
		SessionID:  sid,
		OperatorID: op.ID,
		Role:       op.Role,
		JTI:        jti,
		ExpiresAt:  refreshExp,
	}, s.Tokens.RefreshTTL())

	return &AuthResult{
		AccessToken:  access,
		RefreshToken: refresh,
		AccessTTL:    s.Tokens.AccessTTL(),
		RefreshTTL:   s.Tokens.RefreshTTL(),
		OperatorID:   op.ID,
		Role:         op.Role,
		Name:         op.Name,
	}, nil
}

func (s *AuthService) captchaRejected(ctx context.Context) error {
	fresh, err := s.Captchas.Create(ctx)
	if err != nil {
		s.logger.Error("failed to create replacement captcha", slog.Any("error", err))
	}
	return &models.CaptchaRejectedError{Fresh: fresh}
}

func (s *AuthService) logRegister(ctx context.Context, in RegisterInput, username string, ok bool, reason, operatorID string) {
	s.Audit.LogEvent(ctx, pkglogger.AuditEvent{
		EventType:  "register",
		OperatorID: operatorID,
		Username:   username,
		IPAddress:  NormalizeIP(in.IP),
		UserAgent:  in.UserAgent,
		RequestID:  in.RequestID,
		Success:    ok,
		Reason:     reason,
	})
}

func (s *AuthService) logRefresh(ctx context.Context, meta RequestMeta, operatorID string, ok bool, reason string) {
	s.Audit.LogEvent(ctx, pkglogger.AuditEvent{
		EventType:  "refresh",
		OperatorID: operatorID,
		IPAddress:  NormalizeIP(meta.IP),
		UserAgent:  meta.UserAgent,
		RequestID:  meta.RequestID,
		Success:    ok,
		Reason:     reason,
	})
}
