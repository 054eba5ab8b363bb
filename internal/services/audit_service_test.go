package services_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/BradenHooton/loginguard/internal/services"
	pkglogger "github.com/BradenHooton/loginguard/pkg/logger"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditService_RecordLogin_DetachedFromRequest(t *testing.T) {
	var seen *models.LoginAttempt
	var ctxErr error
	repo := &services.MockLoginAttemptRepository{
		CreateFunc: func(ctx context.Context, a *models.LoginAttempt) error {
			seen = a
			ctxErr = ctx.Err()
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			return nil
		},
	}
	svc := services.NewAuditService(repo, pkglogger.NewAuditLogger(discardLogger(), "test"), discardLogger(), time.Second)

	reqCtx, cancel := context.WithCancel(context.Background())
	cancel()

	username := "doc1"
	svc.RecordLogin(reqCtx, &models.LoginAttempt{IP: "1.2.3.4", Username: &username, Reason: models.ReasonInvalidCredentials})

	require.NotNil(t, seen)
	assert.NoError(t, ctxErr)
	assert.False(t, seen.CreatedAt.IsZero())
	assert.Equal(t, models.ReasonInvalidCredentials, seen.Reason)
}

func TestAuditService_MissingTableWarnsOnce(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(buf, nil))
	calls := 0
	repo := &services.MockLoginAttemptRepository{
		CreateFunc: func(ctx context.Context, a *models.LoginAttempt) error {
			calls++
			return &pgconn.PgError{Code: "42P01", Message: `relation "login_attempts" does not exist`}
		},
	}
	svc := services.NewAuditService(repo, pkglogger.NewAuditLogger(slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)), "test"), logger, 0)

	for i := 0; i < 3; i++ {
		svc.RecordLogin(context.Background(), &models.LoginAttempt{IP: "1.2.3.4", Reason: models.ReasonRateLimited})
	}

	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, strings.Count(buf.String(), "login_attempts table missing"))
}

func TestAuditService_OtherErrorsAreLogged(t *testing.T) {
	buf := &bytes.Buffer{}
	repo := &services.MockLoginAttemptRepository{
		CreateFunc: func(ctx context.Context, a *models.LoginAttempt) error {
			return errors.New("connection refused")
		},
	}
	svc := services.NewAuditService(repo, pkglogger.NewAuditLogger(discardLogger(), "test"), slog.New(slog.NewJSONHandler(buf, nil)), 0)

	assert.NotPanics(t, func() {
		svc.RecordLogin(context.Background(), &models.LoginAttempt{IP: "1.2.3.4", Reason: models.ReasonLocked})
	})
	assert.Contains(t, buf.String(), "failed to persist login attempt")
}
