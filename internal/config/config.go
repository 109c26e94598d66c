package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr  string
	DB        DBConfig
	RedisAddr string
	Catalog   CatalogConfig
	Webhook   WebhookConfig
	Pricing   PricingConfig
	RateLimit RateLimitConfig
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
}

type CatalogConfig struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

type WebhookConfig struct {
	Secret    string
	Tolerance time.Duration
}

type PricingConfig struct {
	TaxRateBps int64 // 825 = 8.25%
}

type RateLimitConfig struct {
	OrderCreateMaxAttempts int
	OrderCreateWindow      time.Duration
	OrderCreateLockout     time.Duration
	OrderCreateFailOpen    bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "3306"),
			User:     getEnv("DB_USER", "root"),
			Password: getEnv("DB_PASS", ""),
			Database: getEnv("DB_NAME", "orders"),
		},
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		Catalog: CatalogConfig{
			BaseURL:  getEnv("CATALOG_URL", "http://localhost:8081"),
			Timeout:  getDuration("CATALOG_TIMEOUT", 5*time.Second),
			CacheTTL: getDuration("CATALOG_CACHE_TTL", 30*time.Second),
		},
		Webhook: WebhookConfig{
			Secret:    getEnv("WEBHOOK_SECRET", ""),
			Tolerance: getDuration("WEBHOOK_TOLERANCE", 5*time.Minute),
		},
		Pricing: PricingConfig{
			TaxRateBps: getInt64("TAX_RATE_BPS", 825),
		},
		RateLimit: RateLimitConfig{
			OrderCreateMaxAttempts: int(getInt64("RATE_LIMIT_ORDER_ATTEMPTS", 10)),
			OrderCreateWindow:      getDuration("RATE_LIMIT_ORDER_WINDOW", time.Minute),
			OrderCreateLockout:     getDuration("RATE_LIMIT_ORDER_LOCKOUT", 5*time.Minute),
			OrderCreateFailOpen:    getEnv("RATE_LIMIT_FAIL_OPEN", "0") == "1",
		},
	}, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
