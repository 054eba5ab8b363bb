package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/BradenHooton/loginguard/internal/auth"
	"github.com/BradenHooton/loginguard/internal/models"
	pkghttp "github.com/BradenHooton/loginguard/pkg/http"
)

// AdminServiceInterface defines the diagnostics service contract.
type AdminServiceInterface interface {
	ListLoginAttempts(ctx context.Context, filter models.LoginAttemptFilter) ([]*models.LoginAttempt, error)
	LockoutState(ctx context.Context, ip, username string) *models.LoginLockout
	ClearLockout(ctx context.Context, actorID, ip, username string)
}

// AdminHandler handles admin HTTP requests.
type AdminHandler struct {
	service AdminServiceInterface
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(service AdminServiceInterface) *AdminHandler {
	return &AdminHandler{service: service}
}

// ClearLockoutRequest names the (ip, username) pair to reset
type ClearLockoutRequest struct {
	IP       string `json:"ip" validate:"required,ip"`
	Username string `json:"username" validate:"required,max=128"`
}

// LoginAttemptsResponse wraps an audit listing
type LoginAttemptsResponse struct {
	Attempts []*models.LoginAttempt `json:"attempts"`
	Limit    int                    `json:"limit"`
}

// ListLoginAttempts handles GET /admin/login-attempts
// Accepts optional ?ip=, ?username= and ?limit=N (1–200, default 50).
func (h *AdminHandler) ListLoginAttempts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.LoginAttemptFilter{
		IP:       q.Get("ip"),
		Username: q.Get("username"),
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 || n > 200 {
			pkghttp.WriteBadRequest(w, "limit must be between 1 and 200")
			return
		}
		filter.Limit = n
	}

	attempts, err := h.service.ListLoginAttempts(r.Context(), filter)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to retrieve login attempts")
		return
	}

	limit := filter.Limit
	if limit == 0 {
		limit = 50
	}
	pkghttp.WriteJSON(w, http.StatusOK, LoginAttemptsResponse{Attempts: attempts, Limit: limit})
}

// GetLockout handles GET /admin/lockouts
func (h *AdminHandler) GetLockout(w http.ResponseWriter, r *http.Request) {
	ip := r.URL.Query().Get("ip")
	username := r.URL.Query().Get("username")
	if ip == "" || username == "" {
		pkghttp.WriteBadRequest(w, "ip and username are required")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, h.service.LockoutState(r.Context(), ip, username))
}

// ClearLockout handles POST /admin/lockouts/clear
func (h *AdminHandler) ClearLockout(w http.ResponseWriter, r *http.Request) {
	var req ClearLockoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	actorID := ""
	if claims := auth.GetOperatorFromContext(r); claims != nil {
		actorID = claims.OperatorID
	}

	h.service.ClearLockout(r.Context(), actorID, req.IP, req.Username)
	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Lockout cleared"})
}
