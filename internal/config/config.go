// Package config handles loading application configuration from environment
// variables. All config is centralized here so no other package reads env
// vars directly. Sensible defaults are provided for development.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Store backends for the CSRF token store and rate-limit table.
// Memory is correct for a single process; Redis is required when the
// gateway runs as multiple replicas behind a load balancer.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Rate-limit strategies. FixedWindow reproduces the historical behavior
// (including the accepted burst at window boundaries); TokenBucket is a
// deliberate, smoother alternative.
const (
	StrategyFixedWindow = "fixed_window"
	StrategyTokenBucket = "token_bucket"
)

// Config holds all application configuration. Populated from environment
// variables at startup. Passed to other packages via dependency injection.
type Config struct {
	// Env is the runtime environment: "development" or "production".
	Env string

	// Port is the HTTP listen port (default: 8080).
	Port int

	// BaseURL is the public-facing URL used for links and redirects.
	BaseURL string

	// LogLevel controls log verbosity: "debug", "info", "warn", "error".
	LogLevel string

	// Gateway holds the request-pipeline policy settings.
	Gateway GatewayConfig

	// Identity holds the hosted identity provider settings.
	Identity IdentityConfig

	// Database holds MariaDB connection settings (role store + audit log).
	Database DatabaseConfig

	// Redis holds Redis connection settings (shared-store backends).
	Redis RedisConfig
}

// GatewayConfig holds the policy knobs for the edge request pipeline.
type GatewayConfig struct {
	// AllowedOrigins is the fixed CORS allow-list. Wildcards are rejected
	// at load time; every entry must be an absolute http(s) origin.
	AllowedOrigins []string

	// CSRFTokenTTL is how long an issued CSRF token stays valid.
	CSRFTokenTTL time.Duration

	// RateLimitWindow and RateLimitMax define the per-client budget:
	// RateLimitMax requests per RateLimitWindow.
	RateLimitWindow time.Duration
	RateLimitMax    int

	// RateLimitStrategy selects the limiter algorithm: "fixed_window"
	// (default) or "token_bucket".
	RateLimitStrategy string

	// StoreBackend selects where CSRF tokens and rate counters live:
	// "memory" (default) or "redis".
	StoreBackend string

	// EnforceProtectedRoutes controls whether unauthenticated requests to
	// protected paths are redirected to the login page. Defaults to true.
	// Set ENFORCE_PROTECTED_ROUTES=false to rely on page-level checks
	// only, as the legacy gateway did.
	EnforceProtectedRoutes bool

	// UpstreamTimeout bounds each call to the role store and audit sink.
	UpstreamTimeout time.Duration

	// Routes holds the path classification lists and redirect targets.
	Routes RouteConfig
}

// RouteConfig enumerates which path prefixes fall into each security
// category, and where role-based redirects land. Admin prefixes win over
// Protected when both match.
type RouteConfig struct {
	Protected []string
	AuthEntry []string
	Admin     []string

	// LoginPath is the auth-code exchange entry point and the target for
	// unauthenticated redirects.
	LoginPath string

	// AdminLanding and UserLanding are where authenticated users on
	// auth-entry paths are sent, by role. RootPath is where unauthorized
	// admin-area requests are sent.
	AdminLanding string
	UserLanding  string
	RootPath     string
}

// IdentityConfig holds settings for the hosted identity provider.
type IdentityConfig struct {
	// BaseURL is the identity service root (e.g. "https://xyz.supabase.co").
	BaseURL string

	// APIKey is the anon key sent on every identity call.
	APIKey string

	// AccessCookie is the cookie carrying the access token when no
	// Authorization header is present.
	AccessCookie string

	// Timeout bounds each identity provider round trip.
	Timeout time.Duration
}

// DatabaseConfig holds MariaDB connection parameters. Individual fields
// (Host, User, Password, Name) are read from separate env vars so container
// orchestrators can manage each independently. If DATABASE_URL is set, it
// takes precedence over the individual fields.
type DatabaseConfig struct {
	// Host is the MariaDB address in host:port format. If no port is
	// specified, 3306 is appended automatically.
	Host string

	// User is the MariaDB username.
	User string

	// Password is the MariaDB password.
	Password string

	// Name is the database name.
	Name string

	// dsnOverride is set when DATABASE_URL is provided, bypassing individual fields.
	dsnOverride string

	// MaxOpenConns is the maximum number of open connections in the pool.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections in the pool.
	MaxIdleConns int

	// ConnMaxLifetime is how long a connection can be reused.
	ConnMaxLifetime time.Duration
}

// Enabled reports whether a database was configured at all. Without one the
// gateway degrades: roles resolve to none and audit logging is skipped.
func (d DatabaseConfig) Enabled() bool {
	return d.dsnOverride != "" || d.Host != ""
}

// DSN returns the go-sql-driver/mysql connection string. If DATABASE_URL was
// set, it is returned as-is. Otherwise the DSN is built from the individual
// Host/User/Password/Name fields using the driver's Config.FormatDSN()
// to safely handle special characters in passwords.
func (d DatabaseConfig) DSN() string {
	if d.dsnOverride != "" {
		return d.dsnOverride
	}
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = ensurePort(d.Host, "3306")
	cfg.DBName = d.Name
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// ensurePort appends the default port if the host string doesn't include one.
func ensurePort(host, defaultPort string) string {
	_, _, err := net.SplitHostPort(host)
	if err != nil {
		return net.JoinHostPort(host, defaultPort)
	}
	return host
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379").
	URL string
}

// Load reads configuration from environment variables with sensible defaults.
// Policy misconfiguration (bad origin list, unknown backend or strategy) is
// a startup error, never a per-request one.
func Load() (*Config, error) {
	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		BaseURL:  getEnv("BASE_URL", "http://localhost:8080"),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		Gateway: GatewayConfig{
			AllowedOrigins:         getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			CSRFTokenTTL:           getEnvDuration("CSRF_TOKEN_TTL", 15*time.Minute),
			RateLimitWindow:        getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
			RateLimitMax:           getEnvInt("RATE_LIMIT_MAX", 100),
			RateLimitStrategy:      getEnv("RATE_LIMIT_STRATEGY", StrategyFixedWindow),
			StoreBackend:           getEnv("STORE_BACKEND", BackendMemory),
			EnforceProtectedRoutes: getEnvBool("ENFORCE_PROTECTED_ROUTES", true),
			UpstreamTimeout:        getEnvDuration("UPSTREAM_TIMEOUT", 3*time.Second),
			Routes: RouteConfig{
				Protected:    getEnvList("PROTECTED_ROUTES", []string{"/admin", "/profile", "/chat"}),
				AuthEntry:    getEnvList("AUTH_ROUTES", []string{"/login", "/register", "/forgot-password"}),
				Admin:        getEnvList("ADMIN_ROUTES", []string{"/admin"}),
				LoginPath:    getEnv("LOGIN_PATH", "/login"),
				AdminLanding: getEnv("ADMIN_LANDING", "/admin/user"),
				UserLanding:  getEnv("USER_LANDING", "/chat"),
				RootPath:     "/",
			},
		},

		Identity: IdentityConfig{
			BaseURL:      getEnv("IDENTITY_URL", "http://localhost:54321"),
			APIKey:       getEnv("IDENTITY_API_KEY", ""),
			AccessCookie: getEnv("IDENTITY_ACCESS_COOKIE", "sb-access-token"),
			Timeout:      getEnvDuration("IDENTITY_TIMEOUT", 3*time.Second),
		},

		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", ""),
			User:            getEnv("DB_USER", "tutofino"),
			Password:        getEnv("DB_PASSWORD", "tutofino"),
			Name:            getEnv("DB_NAME", "tutofino"),
			dsnOverride:     getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},

		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},
	}

	if err := cfg.Gateway.validate(); err != nil {
		return nil, err
	}

	// Require a real identity key in production. Case-insensitive check
	// catches common variants like "Production", "prod", etc.
	envLower := strings.ToLower(cfg.Env)
	if envLower == "production" || envLower == "prod" {
		if cfg.Identity.APIKey == "" {
			return nil, fmt.Errorf("IDENTITY_API_KEY is required in production")
		}
	}

	return cfg, nil
}

// validate checks the gateway policy settings. Runs once at load time.
func (g GatewayConfig) validate() error {
	for _, origin := range g.AllowedOrigins {
		if strings.Contains(origin, "*") {
			return fmt.Errorf("wildcard origin %q is not allowed: enumerate origins explicitly", origin)
		}
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("malformed allowed origin %q: must be an absolute http(s) origin", origin)
		}
		if u.Path != "" || u.RawQuery != "" {
			return fmt.Errorf("allowed origin %q must not contain a path or query", origin)
		}
	}

	switch g.StoreBackend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("unknown store backend %q (want %q or %q)", g.StoreBackend, BackendMemory, BackendRedis)
	}

	switch g.RateLimitStrategy {
	case StrategyFixedWindow, StrategyTokenBucket:
	default:
		return fmt.Errorf("unknown rate limit strategy %q (want %q or %q)", g.RateLimitStrategy, StrategyFixedWindow, StrategyTokenBucket)
	}

	if g.RateLimitMax <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX must be positive, got %d", g.RateLimitMax)
	}
	if g.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", g.RateLimitWindow)
	}
	if g.CSRFTokenTTL <= 0 {
		return fmt.Errorf("CSRF_TOKEN_TTL must be positive, got %s", g.CSRFTokenTTL)
	}

	for _, list := range [][]string{g.Routes.Protected, g.Routes.AuthEntry, g.Routes.Admin} {
		for _, p := range list {
			if !strings.HasPrefix(p, "/") {
				return fmt.Errorf("route prefix %q must start with /", p)
			}
		}
	}

	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev"
}

// --- Helper functions for reading environment variables ---

// getEnv reads a string env var or returns the default.
func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvInt reads an integer env var or returns the default.
func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvBool reads a boolean env var or returns the default.
func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvDuration reads a duration env var (e.g., "60s") or returns the default.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// getEnvList reads a comma-separated env var or returns the default.
// Empty items are dropped; surrounding whitespace is trimmed.
func getEnvList(key string, defaultVal []string) []string {
	val, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
