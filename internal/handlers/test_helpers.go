package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/loginguard/internal/auth"
	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/BradenHooton/loginguard/internal/services"
	pkghttp "github.com/BradenHooton/loginguard/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithOperatorContext adds access claims to request context for testing authenticated endpoints
func WithOperatorContext(req *http.Request, operatorID, role string) *http.Request {
	claims := &models.AccessClaims{
		Type:       models.TokenTypeAccess,
		OperatorID: operatorID,
		Role:       role,
	}
	ctx := context.WithValue(req.Context(), auth.OperatorContextKey, claims)
	return req.WithContext(ctx)
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target any) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) pkghttp.ErrorResponse {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
	return resp
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc    func(ctx context.Context, in services.LoginInput) (*services.AuthResult, error)
	RegisterFunc func(ctx context.Context, in services.RegisterInput) (*services.AuthResult, error)
	RefreshFunc  func(ctx context.Context, refreshToken string, meta services.RequestMeta) (*services.AuthResult, error)
	LogoutFunc   func(ctx context.Context, refreshToken string, meta services.RequestMeta)
	CaptchaFunc  func(ctx context.Context) (*models.Captcha, error)
}

func (m *MockAuthService) Login(ctx context.Context, in services.LoginInput) (*services.AuthResult, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.LoginFunc(ctx, in)
}

func (m *MockAuthService) Register(ctx context.Context, in services.RegisterInput) (*services.AuthResult, error) {
	if m.RegisterFunc == nil {
		return nil, models.ErrConflict
	}
	return m.RegisterFunc(ctx, in)
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string, meta services.RequestMeta) (*services.AuthResult, error) {
	if m.RefreshFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.RefreshFunc(ctx, refreshToken, meta)
}

func (m *MockAuthService) Logout(ctx context.Context, refreshToken string, meta services.RequestMeta) {
	if m.LogoutFunc != nil {
		m.LogoutFunc(ctx, refreshToken, meta)
	}
}

func (m *MockAuthService) Captcha(ctx context.Context) (*models.Captcha, error) {
	if m.CaptchaFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.CaptchaFunc(ctx)
}

// MockAdminService implements AdminServiceInterface for testing
type MockAdminService struct {
	ListLoginAttemptsFunc func(ctx context.Context, filter models.LoginAttemptFilter) ([]*models.LoginAttempt, error)
	LockoutStateFunc      func(ctx context.Context, ip, username string) *models.LoginLockout
	ClearLockoutFunc      func(ctx context.Context, actorID, ip, username string)
}

func (m *MockAdminService) ListLoginAttempts(ctx context.Context, filter models.LoginAttemptFilter) ([]*models.LoginAttempt, error) {
	if m.ListLoginAttemptsFunc == nil {
		return nil, nil
	}
	return m.ListLoginAttemptsFunc(ctx, filter)
}

func (m *MockAdminService) LockoutState(ctx context.Context, ip, username string) *models.LoginLockout {
	if m.LockoutStateFunc == nil {
		return &models.LoginLockout{IP: ip, Username: username}
	}
	return m.LockoutStateFunc(ctx, ip, username)
}

func (m *MockAdminService) ClearLockout(ctx context.Context, actorID, ip, username string) {
	if m.ClearLockoutFunc != nil {
		m.ClearLockoutFunc(ctx, actorID, ip, username)
	}
}
