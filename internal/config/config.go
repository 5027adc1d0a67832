package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Storage drivers understood by Load.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds runtime configuration sourced from env vars.
type Config struct {
	Port          string
	StorageDriver string
	DatabaseURL   string
	JWTSecret     string
	JWTIssuer     string
	JWTTTL        time.Duration
	CORSOrigins   []string
	AdminAPIKey   string

	ScanCooldown    time.Duration
	PointCashRate   decimal.Decimal
	ConflictRetries int

	PayoutURL     string
	PayoutTimeout time.Duration

	CatalogPath string

	MonthlyResetEnabled bool
	MonthlyResetEvery   time.Duration
}

// Load reads configuration from the environment and performs minimal validation.
func Load() (Config, error) {
	cfg := Config{
		Port:          fallback(os.Getenv("PORT"), "8080"),
		StorageDriver: strings.ToLower(fallback(os.Getenv("STORAGE_DRIVER"), DriverPostgres)),
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		JWTSecret:     strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTIssuer:     fallback(os.Getenv("JWT_ISSUER"), "points-ledger"),
		CORSOrigins:   parseCSV(fallback(os.Getenv("CORS_ALLOWED_ORIGINS"), "*")),
		AdminAPIKey:   strings.TrimSpace(os.Getenv("ADMIN_API_KEY")),
		PayoutURL:     strings.TrimSpace(os.Getenv("PAYOUT_URL")),
		CatalogPath:   strings.TrimSpace(os.Getenv("CATALOG_PATH")),
	}

	cfg.JWTTTL = time.Duration(positiveInt(os.Getenv("JWT_TTL_MINUTES"), 60)) * time.Minute
	cfg.ScanCooldown = time.Duration(positiveInt(os.Getenv("SCAN_COOLDOWN_SECONDS"), 300)) * time.Second
	cfg.ConflictRetries = positiveInt(os.Getenv("CONFLICT_RETRIES"), 5)
	cfg.PayoutTimeout = time.Duration(positiveInt(os.Getenv("PAYOUT_TIMEOUT_SECONDS"), 10)) * time.Second
	cfg.MonthlyResetEvery = time.Duration(positiveInt(os.Getenv("MONTHLY_RESET_CHECK_MINUTES"), 60)) * time.Minute

	rate, err := decimal.NewFromString(fallback(os.Getenv("POINT_CASH_RATE"), "0.1"))
	if err != nil || !rate.IsPositive() {
		return Config{}, fmt.Errorf("POINT_CASH_RATE must be a positive decimal, got %q", os.Getenv("POINT_CASH_RATE"))
	}
	cfg.PointCashRate = rate

	if v := strings.TrimSpace(os.Getenv("MONTHLY_RESET_ENABLED")); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("MONTHLY_RESET_ENABLED: %w", err)
		}
		cfg.MonthlyResetEnabled = enabled
	}

	switch cfg.StorageDriver {
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, errors.New("DATABASE_URL is required")
		}
	case DriverMemory:
	default:
		return Config{}, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

func positiveInt(value string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	var out []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
