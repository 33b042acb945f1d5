package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	KVBackendSQLite = "sqlite"
	KVBackendRedis  = "redis"
)

type AppConfig struct {
	// Server
	HTTPAddr       string
	AllowedOrigins []string
	MetricsEnabled bool

	// Device-local key-value store
	KVBackend      string
	SQLitePath     string
	KVNamespace    string
	RedisAddrs     []string
	RedisPass      string
	RedisDB        int
	RedisPool      int
	RedisIsCluster bool

	// Row store
	DatabaseURL   string
	DBMaxConns    int32
	RunMigrations bool

	// Identity provider
	AuthURL         string
	AuthAnonKey     string
	AuthJWTSecret   string
	AuthTimeout     time.Duration
	AuthRedirectURL string

	// SMTP
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPass     string
	SMTPFromName string
	SMTPSecure   bool
	InviteURL    string

	Auth AuthConfig
}

// AuthConfig holds the engine tunables.
type AuthConfig struct {
	ResendCooldown    time.Duration `env:"AUTH_RESEND_COOLDOWN" envDefault:"60s"`
	InvitationTTL     time.Duration `env:"AUTH_INVITATION_TTL"  envDefault:"168h"`
	DataCacheTTL      time.Duration `env:"DATA_CACHE_TTL"       envDefault:"5m"`
	StoreReadCacheTTL time.Duration `env:"KV_READ_CACHE_TTL"    envDefault:"10s"`
	RecentOrdersLimit int           `env:"RECENT_ORDERS_LIMIT"  envDefault:"20"`
}

// Load loads environment variables into AppConfig.
func Load() (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddr:       getEnv("HTTP_ADDR", "127.0.0.1:8080"),
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://127.0.0.1:5173"}),
		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),

		KVBackend:      strings.ToLower(getEnv("KV_BACKEND", KVBackendSQLite)),
		SQLitePath:     getEnv("KV_SQLITE_PATH", "ordering-device.db"),
		KVNamespace:    getEnv("KV_NAMESPACE", ""),
		RedisAddrs:     getEnvSlice("REDIS_ADDR", []string{"localhost:6379"}),
		RedisPass:      getEnv("REDIS_PASS", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		RedisPool:      getEnvInt("REDIS_POOL_SIZE", 10),
		RedisIsCluster: getEnvBool("REDIS_CLUSTER", false),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		DBMaxConns:    int32(getEnvInt("DB_MAX_CONNS", 10)),
		RunMigrations: getEnvBool("RUN_MIGRATIONS", false),

		AuthURL:         getEnv("AUTH_URL", ""),
		AuthAnonKey:     getEnv("AUTH_ANON_KEY", ""),
		AuthJWTSecret:   getEnv("AUTH_JWT_SECRET", ""),
		AuthTimeout:     getEnvDuration("AUTH_TIMEOUT", 15*time.Second),
		AuthRedirectURL: getEnv("AUTH_REDIRECT_URL", ""),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnv("SMTP_PORT", "465"),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPass:     getEnv("SMTP_PASS", ""),
		SMTPFromName: getEnv("SMTP_FROM_NAME", "Ordering"),
		SMTPSecure:   getEnvBool("SMTP_SECURE", true),
		InviteURL:    getEnv("INVITE_URL", ""),
	}

	if err := env.Parse(&cfg.Auth); err != nil {
		return AppConfig{}, fmt.Errorf("parse auth config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Validate reports settings the process cannot start without.
func (c AppConfig) Validate() error {
	switch {
	case c.DatabaseURL == "":
		return fmt.Errorf("DATABASE_URL is required")
	case c.AuthURL == "":
		return fmt.Errorf("AUTH_URL is required")
	case c.AuthAnonKey == "":
		return fmt.Errorf("AUTH_ANON_KEY is required")
	case c.KVBackend != KVBackendSQLite && c.KVBackend != KVBackendRedis:
		return fmt.Errorf("KV_BACKEND must be %q or %q, got %q", KVBackendSQLite, KVBackendRedis, c.KVBackend)
	case c.Auth.ResendCooldown <= 0:
		return fmt.Errorf("AUTH_RESEND_COOLDOWN must be positive")
	}
	return nil
}

// --- Helper functions ---

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.ToLower(v) == "true"
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
