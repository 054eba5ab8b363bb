package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskUsername(t *testing.T) {
	assert.Equal(t, "d***", MaskUsername("doc1"))
	assert.Equal(t, "*", MaskUsername("x"))
	assert.Equal(t, "", MaskUsername(""))
	assert.Equal(t, "é**", MaskUsername("éva"))
}

func TestSanitizeQueryString(t *testing.T) {
	assert.True(t, SanitizeQueryString("username=doc1&limit=5"))
	assert.True(t, SanitizeQueryString("Captcha=12"))
	assert.False(t, SanitizeQueryString("ip=1.2.3.4&limit=50"))
}

func TestAuditLogger_LogAuthAttempt(t *testing.T) {
	buf := &bytes.Buffer{}
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(buf, nil)), "production")
	until := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	al.LogAuthAttempt(context.Background(), AuditEvent{
		EventType:   "login",
		Username:    "doc1",
		IPAddress:   "1.2.3.4",
		Reason:      "invalid_credentials",
		LockedUntil: &until,
	})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "[REDACTED]", line["username"])
	assert.Equal(t, "invalid_credentials", line["reason"])
	assert.Equal(t, "2026-01-01T12:00:00Z", line["locked_until"])
	assert.NotContains(t, line, "operator_id")
}
