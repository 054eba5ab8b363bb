package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BradenHooton/loginguard/internal/auth"
	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/BradenHooton/loginguard/internal/services"
	pkgauth "github.com/BradenHooton/loginguard/pkg/auth"
	pkghttp "github.com/BradenHooton/loginguard/pkg/http"
	"github.com/go-chi/chi/v5/middleware"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, in services.LoginInput) (*services.AuthResult, error)
	Register(ctx context.Context, in services.RegisterInput) (*services.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string, meta services.RequestMeta) (*services.AuthResult, error)
	Logout(ctx context.Context, refreshToken string, meta services.RequestMeta)
	Captcha(ctx context.Context) (*models.Captcha, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service  AuthServiceInterface
	cookies  auth.CookieConfig
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, cookies auth.CookieConfig, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service:  service,
		cookies:  cookies,
		ipConfig: ipConfig,
		logger:   logger,
	}
}

// Request DTOs

// LoginRequest is the login body. Token is an accepted alias for Username.
type LoginRequest struct {
	Username  string `json:"username" validate:"max=128"`
	Token     string `json:"token,omitempty" validate:"max=128"`
	Password  string `json:"password" validate:"required,max=1024"`
	CaptchaID string `json:"captchaId"`
	Captcha   string `json:"captcha"`
}

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=64"`
	Password  string `json:"password" validate:"required,max=1024"`
	Name      string `json:"name" validate:"required,min=1,max=128"`
	Role      string `json:"role" validate:"required"`
	CaptchaID string `json:"captchaId"`
	Captcha   string `json:"captcha"`
}

// AuthResponse is returned by login, register and refresh. The refresh
// token only travels in its cookie.
type AuthResponse struct {
	AccessToken string `json:"accessToken"`
	OperatorID  string `json:"operatorId"`
	Role        string `json:"role"`
	Name        string `json:"name"`
}

// MeResponse describes the caller's access token
type MeResponse struct {
	OperatorID string    `json:"operatorId"`
	Role       string    `json:"role"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Captcha handles GET /auth/captcha
func (h *AuthHandler) Captcha(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Captcha(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, c)
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, r, "Invalid request body", "")
		return
	}

	if err := ValidateRequest(req); err != nil {
		h.writeBadRequest(w, r, err.Error(), "")
		return
	}

	username := req.Username
	if strings.TrimSpace(username) == "" {
		username = req.Token
	}
	if strings.TrimSpace(username) == "" {
		h.writeBadRequest(w, r, "validation failed: Username: this field is required", "")
		return
	}

	result, err := h.service.Login(r.Context(), services.LoginInput{
		Username:    username,
		Password:    req.Password,
		CaptchaID:   req.CaptchaID,
		Captcha:     req.Captcha,
		RequestMeta: h.requestMeta(r),
	})
	if err != nil {
		var rejected *models.CaptchaRejectedError
		var blocked *models.BlockedError
		switch {
		case errors.As(err, &rejected):
			pkghttp.WriteCaptchaRequired(w, "Captcha answer is missing or incorrect", rejected.Fresh)
		case errors.As(err, &blocked):
			writeBlocked(w, blocked)
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Invalid username or password")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	h.writeSession(w, result)
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, r, "Invalid request body", "")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if err := ValidateRequest(req); err != nil {
		h.writeBadRequest(w, r, err.Error(), "")
		return
	}

	result, err := h.service.Register(r.Context(), services.RegisterInput{
		Username:    req.Username,
		Password:    req.Password,
		Name:        req.Name,
		Role:        req.Role,
		CaptchaID:   req.CaptchaID,
		Captcha:     req.Captcha,
		RequestMeta: h.requestMeta(r),
	})
	if err != nil {
		var rejected *models.CaptchaRejectedError
		var blocked *models.BlockedError
		var weak *pkgauth.PasswordValidationError
		switch {
		case errors.As(err, &rejected):
			pkghttp.WriteCaptchaRequired(w, "Captcha answer is missing or incorrect", rejected.Fresh)
		case errors.As(err, &blocked):
			writeBlocked(w, blocked)
		case errors.As(err, &weak):
			h.writeBadRequest(w, r, "Password does not meet requirements", strings.Join(weak.Errors, "; "))
		case errors.Is(err, models.ErrConflict):
			h.writeBadRequest(w, r, "Username is already taken", "")
		case errors.Is(err, models.ErrBadRequest):
			h.writeBadRequest(w, r, "Role is not allowed for self-registration", "")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	h.writeSession(w, result)
}

// writeBadRequest rejects a login or register body and hands out a fresh
// captcha with the error.
func (h *AuthHandler) writeBadRequest(w http.ResponseWriter, r *http.Request, message, details string) {
	fresh, err := h.service.Captcha(r.Context())
	if err != nil {
		h.logger.Warn("failed to issue replacement captcha", slog.Any("error", err))
		pkghttp.WriteBadRequestWithCaptcha(w, message, details, nil)
		return
	}
	pkghttp.WriteBadRequestWithCaptcha(w, message, details, fresh)
}

// Refresh handles POST /auth/refresh. Every failure clears both cookies.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token, err := auth.GetRefreshTokenCookie(r)
	if err != nil {
		auth.ClearAuthCookies(w, h.cookies)
		pkghttp.WriteUnauthorized(w, "Refresh token required")
		return
	}

	result, err := h.service.Refresh(r.Context(), token, h.requestMeta(r))
	if err != nil {
		auth.ClearAuthCookies(w, h.cookies)
		switch {
		case errors.Is(err, models.ErrUnauthorized), errors.Is(err, models.ErrSessionRevoked):
			pkghttp.WriteUnauthorized(w, "Session expired or revoked")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	h.writeSession(w, result)
}

// Logout handles POST /auth/logout. It always succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token, err := auth.GetRefreshTokenCookie(r); err == nil {
		h.service.Logout(r.Context(), token, h.requestMeta(r))
	}
	auth.ClearAuthCookies(w, h.cookies)
	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// Me handles GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetOperatorFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	resp := MeResponse{OperatorID: claims.OperatorID, Role: claims.Role}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time
	}
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) writeSession(w http.ResponseWriter, result *services.AuthResult) {
	auth.SetAuthCookies(w, result.AccessToken, result.AccessTTL, result.RefreshToken, result.RefreshTTL, h.cookies)
	pkghttp.WriteJSON(w, http.StatusOK, AuthResponse{
		AccessToken: result.AccessToken,
		OperatorID:  result.OperatorID,
		Role:        result.Role,
		Name:        result.Name,
	})
}

func (h *AuthHandler) requestMeta(r *http.Request) services.RequestMeta {
	return services.RequestMeta{
		IP:        pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent: r.Header.Get("User-Agent"),
		RequestID: middleware.GetReqID(r.Context()),
	}
}

func writeBlocked(w http.ResponseWriter, blocked *models.BlockedError) {
	switch blocked.Reason {
	case models.BlockRateLimited:
		pkghttp.WriteTooManyRequests(w, "rate_limited", "Too many requests. Please try again later.", blocked.RetryAfter)
	case models.BlockLocked:
		pkghttp.WriteTooManyRequests(w, "locked",
			fmt.Sprintf("Account locked. Try again in %d minutes", blocked.RemainingMinutes()),
			blocked.RetryAfter)
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
