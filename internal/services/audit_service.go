package services

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/BradenHooton/loginguard/internal/database"
	"github.com/BradenHooton/loginguard/internal/models"
	pkglogger "github.com/BradenHooton/loginguard/pkg/logger"
)

// LoginAttemptRepository persists and lists login audit rows
type LoginAttemptRepository interface {
	Create(ctx context.Context, attempt *models.LoginAttempt) error
	List(ctx context.Context, filter models.LoginAttemptFilter) ([]*models.LoginAttempt, error)
}

const DefaultAuditTimeout = 2 * time.Second

// AuditService dual-writes every login decision: a structured slog line and a
// login_attempts row. Failures here never change the response.
type AuditService struct {
	repo         LoginAttemptRepository
	auditLogger  *pkglogger.AuditLogger
	logger       *slog.Logger
	timeout      time.Duration
	now          Clock
	tableMissing atomic.Bool
}

func NewAuditService(repo LoginAttemptRepository, auditLogger *pkglogger.AuditLogger, logger *slog.Logger, timeout time.Duration) *AuditService {
	if timeout <= 0 {
		timeout = DefaultAuditTimeout
	}
	return &AuditService{
		repo:        repo,
		auditLogger: auditLogger,
		logger:      logger,
		timeout:     timeout,
		now:         time.Now,
	}
}

func (s *AuditService) SetClock(now Clock) { s.now = now }

// RecordLogin writes one attempt. The insert runs on a context detached from
// the request so a client disconnect does not drop the row.
func (s *AuditService) RecordLogin(ctx context.Context, attempt *models.LoginAttempt) {
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = s.now().UTC()
	}

	event := pkglogger.AuditEvent{
		EventType:   "login",
		IPAddress:   attempt.IP,
		UserAgent:   attempt.UserAgent,
		RequestID:   attempt.RequestID,
		Success:     attempt.OK,
		Reason:      string(attempt.Reason),
		LockedUntil: attempt.LockedUntil,
	}
	if attempt.Username != nil {
		event.Username = *attempt.Username
	}
	if attempt.OperatorID != nil {
		event.OperatorID = *attempt.OperatorID
	}
	s.auditLogger.LogAuthAttempt(ctx, event)

	if s.repo == nil {
		return
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	err := s.repo.Create(writeCtx, attempt)
	switch {
	case err == nil:
		return
	case database.IsUndefinedTable(err):
		if s.tableMissing.CompareAndSwap(false, true) {
			s.logger.Warn("login_attempts table missing, audit rows are not persisted")
		}
	default:
		s.logger.Warn("failed to persist login attempt",
			slog.String("reason", string(attempt.Reason)),
			slog.String("error", err.Error()),
		)
	}
}

// LogEvent emits a structured audit line for non-login decisions (register,
// refresh, logout).
func (s *AuditService) LogEvent(ctx context.Context, event pkglogger.AuditEvent) {
	s.auditLogger.LogAuthAttempt(ctx, event)
}
