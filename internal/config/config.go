package config

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Auth     AuthConfig
	Guard    GuardConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type RedisConfig struct {
	Enabled bool
	URL     string
	Timeout time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	FloodLimit     int // requests per minute per IP on /auth/*
}

type AuthConfig struct {
	JWTSecret            string
	JWTRefreshSecret     string
	AccessTokenExpiry    time.Duration
	RefreshTokenExpiry   time.Duration
	RefreshRotation      bool
	RegisterAllowedRoles []string
	CaptchaTTL           time.Duration
	Cookie               CookieConfig
	TimingBaseDelayMs    int
	TimingRandomDelayMs  int
}

type CookieConfig struct {
	Secure      bool
	SameSite    http.SameSite
	Domain      string
	RefreshPath string
}

type GuardConfig struct {
	LoginRate       models.RatePolicy
	RegisterRate    models.RatePolicy
	Lockout         models.LockoutPolicy
	RolePolicies    map[string]models.LockoutPolicy
	LockoutWindow   time.Duration
	LockoutMode     models.WindowMode
	PostgresTimeout time.Duration
	AuditTimeout    time.Duration
	CleanupInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	sameSite, err := parseSameSite(getEnv("COOKIE_SAMESITE", "lax"))
	if err != nil {
		return nil, err
	}

	rolePolicies, err := parseRolePolicies(getEnv("LOCKOUT_ROLE_POLICIES", "admin:3:30m"))
	if err != nil {
		return nil, err
	}

	mode := models.WindowMode(strings.ToLower(getEnv("LOCKOUT_MODE", string(models.WindowFixed))))
	if mode != models.WindowFixed && mode != models.WindowSliding {
		return nil, fmt.Errorf("LOCKOUT_MODE must be fixed or sliding (got %q)", mode)
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "loginguard"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Redis: RedisConfig{
			Enabled: getEnvAsBool("REDIS_ENABLED", true),
			URL:     getEnv("REDIS_URL", "localhost:6379"),
			Timeout: getEnvAsDuration("REDIS_TIMEOUT", 300*time.Millisecond),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES", nil),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			RequestTimeout: getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 30*time.Second),
			FloodLimit:     getEnvAsInt("HTTP_FLOOD_LIMIT", 120),
		},
		Auth: AuthConfig{
			JWTSecret:            jwtSecret,
			JWTRefreshSecret:     getEnv("JWT_REFRESH_SECRET", jwtSecret+".refresh"),
			AccessTokenExpiry:    getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute),
			RefreshTokenExpiry:   getEnvAsDuration("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour),
			RefreshRotation:      getEnvAsBool("REFRESH_ROTATION", true),
			RegisterAllowedRoles: getEnvAsList("REGISTER_ALLOWED_ROLES", []string{"doctor", "nurse"}),
			CaptchaTTL:           getEnvAsDuration("CAPTCHA_TTL", 5*time.Minute),
			Cookie: CookieConfig{
				Secure:      env == "production",
				SameSite:    sameSite,
				Domain:      getEnv("COOKIE_DOMAIN", ""),
				RefreshPath: getEnv("REFRESH_COOKIE_PATH", "/auth"),
			},
			TimingBaseDelayMs:   getEnvAsInt("AUTH_TIMING_BASE_DELAY_MS", 500),
			TimingRandomDelayMs: getEnvAsInt("AUTH_TIMING_RANDOM_DELAY_MS", 100),
		},
		Guard: GuardConfig{
			LoginRate: models.RatePolicy{
				Window: getEnvAsDuration("RATE_LOGIN_WINDOW", time.Minute),
				Max:    int64(getEnvAsInt("RATE_LOGIN_MAX", 10)),
			},
			RegisterRate: models.RatePolicy{
				Window: getEnvAsDuration("RATE_REGISTER_WINDOW", 10*time.Minute),
				Max:    int64(getEnvAsInt("RATE_REGISTER_MAX", 5)),
			},
			Lockout: models.LockoutPolicy{
				MaxFails:     int64(getEnvAsInt("LOCKOUT_MAX_FAILS", 5)),
				LockDuration: getEnvAsDuration("LOCKOUT_DURATION", 10*time.Minute),
			},
			RolePolicies:    rolePolicies,
			LockoutWindow:   getEnvAsDuration("LOCKOUT_WINDOW", 15*time.Minute),
			LockoutMode:     mode,
			PostgresTimeout: getEnvAsDuration("POSTGRES_TIER_TIMEOUT", time.Second),
			AuditTimeout:    getEnvAsDuration("AUDIT_TIMEOUT", 2*time.Second),
			CleanupInterval: getEnvAsDuration("CLEANUP_INTERVAL", 10*time.Minute),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if err := cfg.Guard.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (g *GuardConfig) validate() error {
	for name, p := range map[string]models.RatePolicy{
		models.PolicyLogin:    g.LoginRate,
		models.PolicyRegister: g.RegisterRate,
	} {
		if p.Max < 1 || p.Window <= 0 {
			return fmt.Errorf("rate policy %q needs a positive max and window", name)
		}
	}
	if g.Lockout.MaxFails < 1 || g.Lockout.LockDuration <= 0 {
		return fmt.Errorf("LOCKOUT_MAX_FAILS and LOCKOUT_DURATION must be positive")
	}
	if g.LockoutWindow <= 0 {
		return fmt.Errorf("LOCKOUT_WINDOW must be positive")
	}
	return nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// parseRolePolicies reads "role:maxFails:duration" entries separated by commas.
func parseRolePolicies(raw string) (map[string]models.LockoutPolicy, error) {
	policies := make(map[string]models.LockoutPolicy)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("LOCKOUT_ROLE_POLICIES entry %q must be role:maxFails:duration", entry)
		}
		maxFails, err := strconv.Atoi(parts[1])
		if err != nil || maxFails < 1 {
			return nil, fmt.Errorf("LOCKOUT_ROLE_POLICIES entry %q has an invalid maxFails", entry)
		}
		d, err := time.ParseDuration(parts[2])
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("LOCKOUT_ROLE_POLICIES entry %q has an invalid duration", entry)
		}
		policies[strings.ToLower(strings.TrimSpace(parts[0]))] = models.LockoutPolicy{
			MaxFails:     int64(maxFails),
			LockDuration: d,
		}
	}
	return policies, nil
}

func parseSameSite(v string) (http.SameSite, error) {
	switch strings.ToLower(v) {
	case "strict":
		return http.SameSiteStrictMode, nil
	case "lax":
		return http.SameSiteLaxMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("COOKIE_SAMESITE must be strict, lax or none (got %q)", v)
	}
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsList(key string, defaultVal []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		return getEnvAsList("ALLOWED_ORIGINS", []string{})
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:5173", // Vite default
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
}
