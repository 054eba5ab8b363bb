package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/loginguard/internal/models"
	pkglogger "github.com/BradenHooton/loginguard/pkg/logger"
)

const (
	DefaultAttemptListLimit = 50
	MaxAttemptListLimit     = 200
)

// AdminService backs the operator-facing diagnostics endpoints.
type AdminService struct {
	attempts    LoginAttemptRepository
	lockouts    *LockoutService
	auditLogger *pkglogger.AuditLogger
	logger      *slog.Logger
}

func NewAdminService(attempts LoginAttemptRepository, lockouts *LockoutService, auditLogger *pkglogger.AuditLogger, logger *slog.Logger) *AdminService {
	return &AdminService{
		attempts:    attempts,
		lockouts:    lockouts,
		auditLogger: auditLogger,
		logger:      logger,
	}
}

// ListLoginAttempts returns the newest audit rows first. A limit outside
// 1..200 is clamped.
func (s *AdminService) ListLoginAttempts(ctx context.Context, filter models.LoginAttemptFilter) ([]*models.LoginAttempt, error) {
	switch {
	case filter.Limit <= 0:
		filter.Limit = DefaultAttemptListLimit
	case filter.Limit > MaxAttemptListLimit:
		filter.Limit = MaxAttemptListLimit
	}
	if filter.IP != "" {
		filter.IP = NormalizeIP(filter.IP)
	}
	if filter.Username != "" {
		filter.Username = NormalizeUsername(filter.Username)
	}

	rows, err := s.attempts.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list login attempts", slog.Any("error", err))
		return nil, fmt.Errorf("%w: list login attempts", models.ErrInternalServer)
	}
	return rows, nil
}

func (s *AdminService) LockoutState(ctx context.Context, ip, username string) *models.LoginLockout {
	return s.lockouts.State(ctx, ip, username)
}

// ClearLockout resets the pair and records who did it.
func (s *AdminService) ClearLockout(ctx context.Context, actorID, ip, username string) {
	s.lockouts.Reset(ctx, ip, username)
	s.auditLogger.LogAdminAction(ctx, "lockout_cleared", actorID, map[string]string{
		"ip_address": NormalizeIP(ip),
		"username":   pkglogger.MaskUsername(NormalizeUsername(username)),
	})
}
