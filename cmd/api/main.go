package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BradenHooton/loginguard/internal/auth"
	"github.com/BradenHooton/loginguard/internal/background"
	"github.com/BradenHooton/loginguard/internal/cache"
	"github.com/BradenHooton/loginguard/internal/config"
	"github.com/BradenHooton/loginguard/internal/database"
	"github.com/BradenHooton/loginguard/internal/handlers"
	middlewareCustom "github.com/BradenHooton/loginguard/internal/middleware"
	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/BradenHooton/loginguard/internal/repositories"
	"github.com/BradenHooton/loginguard/internal/routes"
	"github.com/BradenHooton/loginguard/internal/services"
	"github.com/BradenHooton/loginguard/internal/storage"
	pkgauth "github.com/BradenHooton/loginguard/pkg/auth"
	pkghttp "github.com/BradenHooton/loginguard/pkg/http"
	pkglogger "github.com/BradenHooton/loginguard/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Server.LogLevel)); err != nil {
		logger.Warn("invalid LOG_LEVEL, using info", slog.String("value", cfg.Server.LogLevel))
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database. An unreachable database leaves the service running
	// on the cache and memory tiers.
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Storage tiers
	memory := storage.NewMemoryTier()
	postgresTier := storage.NewPostgresTier(db, cfg.Guard.PostgresTimeout)

	guardTiers := []storage.Tier{postgresTier, memory}
	sessionTiers := []storage.Tier{memory}
	healthChecks := map[string]handlers.HealthCheckFunc{"database": db.HealthCheck}

	if cfg.Redis.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rdb, err := cache.Connect(ctx, cfg.Redis.URL, logger)
		cancel()
		if err != nil {
			logger.Error("invalid redis configuration", slog.Any("error", err))
			os.Exit(1)
		}
		defer rdb.Close()

		redisTier := storage.NewRedisTier(rdb, cfg.Redis.Timeout)
		guardTiers = append([]storage.Tier{redisTier}, guardTiers...)
		sessionTiers = append([]storage.Tier{redisTier}, sessionTiers...)
		healthChecks["redis"] = func(ctx context.Context) error { return cache.HealthCheck(ctx, rdb) }
	} else {
		logger.Info("redis disabled, using database and memory tiers")
	}

	guardStore := storage.NewCoordinator("guard", logger, guardTiers...)
	sessionStore := storage.NewCoordinator("session", logger, sessionTiers...)
	logger.Info("storage tiers ready",
		slog.Any("guard", guardStore.Tiers()),
		slog.Any("session", sessionStore.Tiers()),
	)

	// Initialize repositories
	operatorRepo := repositories.NewOperatorRepository(db)
	loginAttemptRepo := repositories.NewLoginAttemptRepository(db)

	// Initialize security services
	auditLogger := pkglogger.NewAuditLogger(logger, cfg.Server.Env)
	hasher := pkgauth.NewBcryptHasher(pkgauth.DefaultBcryptCost)

	tokenIssuer := auth.NewTokenIssuer(
		cfg.Auth.JWTSecret,
		cfg.Auth.JWTRefreshSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)

	rateLimitService := services.NewRateLimitService(guardStore, map[string]models.RatePolicy{
		models.PolicyLogin:    cfg.Guard.LoginRate,
		models.PolicyRegister: cfg.Guard.RegisterRate,
	}, logger)

	lockoutService := services.NewLockoutService(guardStore, services.LockoutConfig{
		Default:      cfg.Guard.Lockout,
		RolePolicies: cfg.Guard.RolePolicies,
		Window:       cfg.Guard.LockoutWindow,
		Mode:         cfg.Guard.LockoutMode,
	}, logger)

	// Timing delay for auth security
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   cfg.Auth.TimingBaseDelayMs,
		RandomDelayMs: cfg.Auth.TimingRandomDelayMs,
	})

	auditService := services.NewAuditService(loginAttemptRepo, auditLogger, logger, cfg.Guard.AuditTimeout)

	authService, err := services.NewAuthService(services.AuthDeps{
		Operators:  operatorRepo,
		Hasher:     hasher,
		Tokens:     tokenIssuer,
		Sessions:   services.NewSessionService(sessionStore, logger),
		RateLimits: rateLimitService,
		Lockouts:   lockoutService,
		Captchas:   services.NewCaptchaService(guardStore, cfg.Auth.CaptchaTTL, logger),
		Audit:      auditService,
		Timing:     timingDelay,
	}, services.AuthConfig{
		RefreshRotation:      cfg.Auth.RefreshRotation,
		RegisterAllowedRoles: cfg.Auth.RegisterAllowedRoles,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize auth service", slog.Any("error", err))
		os.Exit(1)
	}

	adminService := services.NewAdminService(loginAttemptRepo, lockoutService, auditLogger, logger)

	// Bootstrap first admin operator if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminOperator(ctx, operatorRepo, hasher, logger); err != nil {
		logger.Error("failed to ensure admin operator", slog.Any("error", err))
	}
	cancel()

	// Initialize handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	cookieConfig := auth.CookieConfig{
		Domain:      cfg.Auth.Cookie.Domain,
		Secure:      cfg.Auth.Cookie.Secure,
		SameSite:    cfg.Auth.Cookie.SameSite,
		RefreshPath: cfg.Auth.Cookie.RefreshPath,
	}

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	routes.RegisterRoutes(router, routes.Handlers{
		Auth:   handlers.NewAuthHandler(authService, cookieConfig, ipConfig, logger),
		Admin:  handlers.NewAdminHandler(adminService),
		Health: handlers.NewHealthHandler(healthChecks),
	}, tokenIssuer, middlewareCustom.FloodGuardConfig{
		RequestsPerMinute: cfg.Server.FloodLimit,
		IPConfig:          ipConfig,
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupManager := background.NewCleanupManager(logger, cfg.Guard.CleanupInterval,
		background.PurgeTarget{Name: postgresTier.Name(), Purge: postgresTier.Purge},
		background.PurgeTarget{Name: memory.Name(), Purge: func(_ context.Context, now time.Time) (int64, error) {
			return int64(memory.Purge(now)), nil
		}},
	)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		return
	}

	logger.Info("server stopped gracefully")
}

// ensureAdminOperator creates the first admin if ADMIN_USERNAME and ADMIN_PASSWORD are set
func ensureAdminOperator(ctx context.Context, repo *repositories.OperatorRepository, hasher *pkgauth.BcryptHasher, logger *slog.Logger) error {
	username := services.NormalizeUsername(os.Getenv("ADMIN_USERNAME"))
	password := os.Getenv("ADMIN_PASSWORD")

	if username == "" || password == "" {
		logger.Info("no ADMIN_USERNAME or ADMIN_PASSWORD set, skipping admin creation")
		return nil
	}

	_, err := repo.GetByUsername(ctx, username)
	if err == nil {
		logger.Info("admin operator already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	if err := pkgauth.ValidatePassword(password); err != nil {
		return fmt.Errorf("ADMIN_PASSWORD rejected: %w", err)
	}

	hash, err := hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	if _, err := repo.Create(ctx, &models.Operator{
		Username:     username,
		PasswordHash: hash,
		Name:         "Admin",
		Role:         models.RoleAdmin,
	}); err != nil {
		return fmt.Errorf("failed to create admin operator: %w", err)
	}

	logger.Info("admin operator created")
	return nil
}
