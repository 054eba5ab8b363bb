package http_test

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	pkghttp "github.com/BradenHooton/loginguard/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()

	pkghttp.WriteError(w, 400, "test_error", "Test message")

	assert.Equal(t, 400, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "test_error", resp.Error)
	assert.Equal(t, "Test message", resp.Message)
	assert.Empty(t, resp.Details)
	assert.Nil(t, resp.RetryAfterSeconds)
}

func TestWriteErrorWithDetails(t *testing.T) {
	w := httptest.NewRecorder()

	pkghttp.WriteErrorWithDetails(w, 400, "validation_error", "Invalid request", "username: is required")

	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "username: is required", resp.Details)
}

func TestWriteTooManyRequests(t *testing.T) {
	w := httptest.NewRecorder()

	pkghttp.WriteTooManyRequests(w, "locked", "Account locked. Try again in 10 minutes", 9*time.Minute+500*time.Millisecond)

	assert.Equal(t, 429, w.Code)
	assert.Equal(t, "541", w.Header().Get("Retry-After"))

	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "locked", resp.Error)
	require.NotNil(t, resp.RetryAfterSeconds)
	assert.Equal(t, 541, *resp.RetryAfterSeconds)
}

func TestWriteTooManyRequests_MinimumOneSecond(t *testing.T) {
	w := httptest.NewRecorder()
	pkghttp.WriteTooManyRequests(w, "rate_limited", "Too many requests", 0)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestWriteCaptchaRequired(t *testing.T) {
	w := httptest.NewRecorder()

	pkghttp.WriteCaptchaRequired(w, "Captcha required", map[string]string{"captchaId": "c1", "challenge": "3 + 4"})

	assert.Equal(t, 400, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "captcha_invalid", body["error"])
	captcha, ok := body["captcha"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "3 + 4", captcha["challenge"])
}

func TestWriteBadRequestWithCaptcha(t *testing.T) {
	w := httptest.NewRecorder()
	pkghttp.WriteBadRequestWithCaptcha(w, "Invalid request body", "", map[string]string{"captchaId": "c2"})

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 400, w.Code)
	assert.Equal(t, "bad_request", body["error"])
	assert.NotNil(t, body["captcha"])

	w = httptest.NewRecorder()
	pkghttp.WriteBadRequestWithCaptcha(w, "Invalid request body", "", nil)
	assert.NotContains(t, w.Body.String(), "captcha")
}

func TestCommonWriters(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w *httptest.ResponseRecorder)
		status int
		code   string
	}{
		{"bad request", func(w *httptest.ResponseRecorder) { pkghttp.WriteBadRequest(w, "x") }, 400, "bad_request"},
		{"unauthorized", func(w *httptest.ResponseRecorder) { pkghttp.WriteUnauthorized(w, "x") }, 401, "unauthorized"},
		{"forbidden", func(w *httptest.ResponseRecorder) { pkghttp.WriteForbidden(w, "x") }, 403, "forbidden"},
		{"not found", func(w *httptest.ResponseRecorder) { pkghttp.WriteNotFound(w, "x") }, 404, "not_found"},
		{"internal", func(w *httptest.ResponseRecorder) { pkghttp.WriteInternalError(w, "x") }, 500, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			assert.Equal(t, tt.status, w.Code)
			var resp pkghttp.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Error)
		})
	}
}
