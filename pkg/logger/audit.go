package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent is one security decision worth a structured log line
type AuditEvent struct {
	EventType   string // login, register, refresh, logout, lockout_cleared
	OperatorID  string
	Username    string
	IPAddress   string
	UserAgent   string
	RequestID   string
	Success     bool
	Reason      string
	LockedUntil *time.Time
}

// AuditLogger writes audit lines through the shared slog handler
type AuditLogger struct {
	logger *slog.Logger
	env    string
}

func NewAuditLogger(logger *slog.Logger, env string) *AuditLogger {
	return &AuditLogger{
		logger: logger,
		env:    env,
	}
}

// LogAuthAttempt records a login, register or refresh decision.
func (al *AuditLogger) LogAuthAttempt(ctx context.Context, event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.OperatorID != "" {
		attrs = append(attrs, slog.String("operator_id", event.OperatorID))
	}
	if event.Username != "" {
		attrs = append(attrs, RedactedAttr("username", MaskUsername(event.Username), al.env))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.RequestID != "" {
		attrs = append(attrs, slog.String("request_id", event.RequestID))
	}
	if event.Reason != "" {
		attrs = append(attrs, slog.String("reason", event.Reason))
	}
	if event.LockedUntil != nil {
		attrs = append(attrs, slog.Time("locked_until", *event.LockedUntil))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, "audit", attrs...)
}

// LogAdminAction logs operator-initiated changes to guard state
func (al *AuditLogger) LogAdminAction(ctx context.Context, eventType, actorID string, metadata map[string]string) {
	attrs := []slog.Attr{
		slog.String("audit_type", "admin"),
		slog.String("event_type", eventType),
		slog.String("actor_id", actorID),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	for key, val := range metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	al.logger.LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
}
