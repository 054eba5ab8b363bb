package routes

import (
	"net/http"

	"github.com/BradenHooton/loginguard/internal/auth"
	"github.com/BradenHooton/loginguard/internal/handlers"
	"github.com/BradenHooton/loginguard/internal/middleware"
	"github.com/BradenHooton/loginguard/internal/models"
	pkghttp "github.com/BradenHooton/loginguard/pkg/http"
	"github.com/go-chi/chi/v5"
)

// Handlers groups everything RegisterRoutes mounts
type Handlers struct {
	Auth   *handlers.AuthHandler
	Admin  *handlers.AdminHandler
	Health *handlers.HealthHandler
}

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	h Handlers,
	tokens auth.AccessTokenParser,
	flood middleware.FloodGuardConfig,
) {
	router.Get("/health", h.Health.Health)

	router.Route("/auth", func(r chi.Router) {
		r.Use(middleware.FloodGuard(flood))

		// Public routes - no authentication required
		r.Get("/captcha", h.Auth.Captcha)
		r.Post("/login", h.Auth.Login)
		r.Post("/register", h.Auth.Register)
		r.Post("/refresh", h.Auth.Refresh)
		r.Post("/logout", h.Auth.Logout)

		r.With(auth.AuthMiddleware(tokens)).Get("/me", h.Auth.Me)
	})

	// Admin-only routes
	router.Route("/admin", func(r chi.Router) {
		r.Use(auth.AuthMiddleware(tokens))
		r.Use(auth.RequireRole(models.RoleAdmin))

		r.Get("/login-attempts", h.Admin.ListLoginAttempts)
		r.Get("/lockouts", h.Admin.GetLockout)
		r.Post("/lockouts/clear", h.Admin.ClearLockout)
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteNotFound(w, "Route not found")
	})
}
