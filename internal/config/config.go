package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port        string
	Environment string
	LogLevel    string

	// Database
	DatabaseURL string
	AutoMigrate bool

	// JWT (tokens are issued by the identity service; this API only verifies them)
	JWTSecret string

	// Background Workers
	WorkerCount       int
	ReconcileInterval time.Duration
	ReconcileBatch    int

	// CORS
	AllowedOrigins []string

	// Sentry
	SentryDSN string

	// Billing
	DefaultProrataRate     decimal.Decimal
	GuaranteeRetentionRate decimal.Decimal
	ComposeMaxAttempts     int
	AllowDegradedDefault   bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:                   getEnv("PORT", "8080"),
		Environment:            getEnv("ENVIRONMENT", "development"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		AutoMigrate:            getEnvAsBool("AUTO_MIGRATE", true),
		JWTSecret:              getEnv("JWT_SECRET", ""),
		WorkerCount:            getEnvAsInt("WORKER_COUNT", 5),
		ReconcileInterval:      time.Duration(getEnvAsInt("RECONCILE_INTERVAL_MINUTES", 10)) * time.Minute,
		ReconcileBatch:         getEnvAsInt("RECONCILE_BATCH", 50),
		AllowedOrigins:         getEnvAsSlice("ALLOWED_ORIGINS", []string{"*"}),
		SentryDSN:              getEnv("SENTRY_DSN", ""),
		DefaultProrataRate:     getEnvAsDecimal("DEFAULT_PRORATA_RATE", decimal.RequireFromString("2.5")),
		GuaranteeRetentionRate: getEnvAsDecimal("GUARANTEE_RETENTION_RATE", decimal.NewFromInt(5)),
		ComposeMaxAttempts:     getEnvAsInt("COMPOSE_MAX_ATTEMPTS", 2),
		AllowDegradedDefault:   getEnvAsBool("ALLOW_DEGRADED_DEFAULT", false),
	}

	// Validate required configuration
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" && cfg.Environment == "production" {
		return nil, fmt.Errorf("JWT_SECRET is required in production")
	}

	if cfg.ComposeMaxAttempts < 1 {
		return nil, fmt.Errorf("COMPOSE_MAX_ATTEMPTS must be at least 1")
	}

	if cfg.DefaultProrataRate.IsNegative() || cfg.GuaranteeRetentionRate.IsNegative() {
		return nil, fmt.Errorf("retention rates must not be negative")
	}

	// Set default JWT secret for development
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-secret-change-in-production"
	}

	return cfg, nil
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt reads an environment variable as integer
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool reads an environment variable as boolean
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDecimal reads an environment variable as a decimal (rates, amounts)
func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return defaultValue
	}
	value, err := decimal.NewFromString(strings.Replace(valueStr, ",", ".", 1))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSlice reads an environment variable as comma-separated slice
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
