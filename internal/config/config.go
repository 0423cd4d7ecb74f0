package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Mide008/Roothaus-1/internal/domain"
)

const defaultSMTPHost = "smtp.gmail.com"

type Config struct {
	Port        string
	Environment string
	LogLevel    string
	SiteURL     string // URL: public site URL, used for links in emails and checkout redirects
	Database    DatabaseConfig
	Redis       RedisConfig
	Stripe      StripeConfig
	SMTP        SMTPConfig
	Notify      NotifyConfig
	Dedup       DedupConfig
	Currency    CurrencyConfig
	Checkout    CheckoutConfig
	Admin       AdminConfig
	RateLimit   RateLimitConfig
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	URL string // REDIS_URL, e.g. redis://localhost:6379/0
}

// StripeConfig holds the payment provider credentials
type StripeConfig struct {
	SecretKey          string // STRIPE_SECRET_KEY
	WebhookSecret      string // STRIPE_WEBHOOK_SECRET: verify incoming webhooks (Stripe-Signature)
	SettlementCurrency string // must be the catalog currency: prices are charged as listed
	DashboardURL       string
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Timeout  time.Duration
}

// NotifyConfig controls who receives order emails and how hard we retry
type NotifyConfig struct {
	BusinessEmail string
	FromName      string
	AdminFromName string
	MaxRetries    uint64
}

// DedupConfig selects the notification ledger backend: memory, postgres or redis
type DedupConfig struct {
	Backend   string
	ClaimTTL  time.Duration
	Retention time.Duration
}

type CurrencyConfig struct {
	GeoAPIURL   string
	RatesAPIURL string
	RatesTTL    time.Duration
	Locale      string
}

// CheckoutConfig is used by the cart CLI to reach the session-creation endpoint
type CheckoutConfig struct {
	Endpoint string
	CartID   string
}

// AdminConfig guards the operator endpoints. An empty hash disables them.
type AdminConfig struct {
	APIKeyHash string // ADMIN_API_KEY_HASH: bcrypt hash of the operator bearer token
}

// RateLimitConfig bounds checkout-session creation per client IP
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

func Load() (*Config, error) {
	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("LOG_LEVEL", "info")

	// Read from environment variables
	viper.AutomaticEnv()

	// Try to read .env file (optional)
	if err := viper.ReadInConfig(); err != nil {
		// It's okay if .env doesn't exist, we'll use env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	smtpPort, err := strconv.Atoi(getEnvOrViper("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}
	maxRetries, err := strconv.ParseUint(getEnvOrViper("NOTIFY_MAX_RETRIES", "3"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid NOTIFY_MAX_RETRIES: %w", err)
	}
	smtpTimeout, err := getDuration("SMTP_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}
	claimTTL, err := getDuration("DEDUP_CLAIM_TTL", "10m")
	if err != nil {
		return nil, err
	}
	retention, err := getDuration("DEDUP_RETENTION", "720h")
	if err != nil {
		return nil, err
	}
	ratesTTL, err := getDuration("RATES_CACHE_TTL", "1h")
	if err != nil {
		return nil, err
	}

	rateRPS, err := strconv.ParseFloat(getEnvOrViper("CHECKOUT_RATE_RPS", "1"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid CHECKOUT_RATE_RPS: %w", err)
	}
	rateBurst, err := strconv.Atoi(getEnvOrViper("CHECKOUT_RATE_BURST", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid CHECKOUT_RATE_BURST: %w", err)
	}

	smtpUser := strings.TrimSpace(getEnvOrViper("SMTP_USER", ""))

	cfg := &Config{
		Port:        getEnvOrViper("PORT", "8080"),
		Environment: getEnvOrViper("ENVIRONMENT", "development"),
		LogLevel:    getEnvOrViper("LOG_LEVEL", "info"),
		SiteURL:     strings.TrimSuffix(strings.TrimSpace(getEnvOrViper("URL", "http://localhost:8888")), "/"),
		Database: DatabaseConfig{
			Host:     getEnvOrViper("DB_HOST", "localhost"),
			Port:     getEnvOrViper("DB_PORT", "5432"),
			User:     getEnvOrViper("DB_USER", "postgres"),
			Password: getEnvOrViper("DB_PASSWORD", "postgres"),
			DBName:   getEnvOrViper("DB_NAME", "roothaus"),
			SSLMode:  getEnvOrViper("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL: strings.TrimSpace(getEnvOrViper("REDIS_URL", "redis://localhost:6379/0")),
		},
		Stripe: StripeConfig{
			SecretKey:          strings.TrimSpace(getEnvOrViper("STRIPE_SECRET_KEY", "")),
			WebhookSecret:      strings.TrimSpace(getEnvOrViper("STRIPE_WEBHOOK_SECRET", "")),
			SettlementCurrency: strings.ToLower(getEnvOrViper("SETTLEMENT_CURRENCY", "usd")),
			DashboardURL:       strings.TrimSuffix(getEnvOrViper("STRIPE_DASHBOARD_URL", "https://dashboard.stripe.com"), "/"),
		},
		SMTP: SMTPConfig{
			Host:     strings.TrimSpace(getEnvOrViper("SMTP_HOST", "")),
			Port:     smtpPort,
			User:     smtpUser,
			Password: getEnvOrViper("SMTP_PASSWORD", ""),
			Timeout:  smtpTimeout,
		},
		Notify: NotifyConfig{
			// test-email falls back to SMTP_USER; the webhook requires BUSINESS_EMAIL explicitly
			BusinessEmail: strings.TrimSpace(getEnvOrViper("BUSINESS_EMAIL", "")),
			FromName:      getEnvOrViper("MAIL_FROM_NAME", "RootHaus"),
			AdminFromName: getEnvOrViper("MAIL_ADMIN_FROM_NAME", "RootHaus Order System"),
			MaxRetries:    maxRetries,
		},
		Dedup: DedupConfig{
			Backend:   strings.ToLower(getEnvOrViper("DEDUP_BACKEND", "memory")),
			ClaimTTL:  claimTTL,
			Retention: retention,
		},
		Currency: CurrencyConfig{
			GeoAPIURL:   strings.TrimSuffix(getEnvOrViper("GEO_API_URL", "https://ipapi.co"), "/"),
			RatesAPIURL: getEnvOrViper("RATES_API_URL", "https://api.exchangerate-api.com/v4/latest/USD"),
			RatesTTL:    ratesTTL,
			Locale:      getEnvOrViper("DISPLAY_LOCALE", "en-US"),
		},
		Checkout: CheckoutConfig{
			Endpoint: getEnvOrViper("CHECKOUT_ENDPOINT", "http://localhost:8080/api/checkout-sessions"),
			CartID:   getEnvOrViper("CART_ID", "default"),
		},
		Admin: AdminConfig{
			APIKeyHash: strings.TrimSpace(getEnvOrViper("ADMIN_API_KEY_HASH", "")),
		},
		RateLimit: RateLimitConfig{
			RPS:   rateRPS,
			Burst: rateBurst,
		},
	}

	switch cfg.Dedup.Backend {
	case "memory", "postgres", "redis":
	default:
		return nil, fmt.Errorf("DEDUP_BACKEND must be one of memory, postgres, redis (got %q)", cfg.Dedup.Backend)
	}

	return cfg, nil
}

// ServerHost returns SMTP_HOST, defaulting to Gmail like the hosted webhook always did
func (s SMTPConfig) ServerHost() string {
	if s.Host == "" {
		return defaultSMTPHost
	}
	return s.Host
}

// ValidateServer checks the settings the webhook server cannot start without
func (c *Config) ValidateServer() error {
	if c.Stripe.SecretKey == "" {
		return fmt.Errorf("STRIPE_SECRET_KEY is required")
	}
	if c.Notify.BusinessEmail == "" {
		return fmt.Errorf("BUSINESS_EMAIL is required")
	}
	if c.SMTP.User == "" || c.SMTP.Password == "" {
		return fmt.Errorf("SMTP_USER and SMTP_PASSWORD are required")
	}
	// catalog prices are USD and are never converted for charging
	if !strings.EqualFold(c.Stripe.SettlementCurrency, domain.BaseCurrency) {
		return fmt.Errorf("SETTLEMENT_CURRENCY must be %s (got %q)", strings.ToLower(domain.BaseCurrency), c.Stripe.SettlementCurrency)
	}
	return nil
}

// ValidateSMTP reports every missing SMTP variable at once. The diagnostic
// entry point treats any of them missing as fatal, including SMTP_HOST.
func (c *Config) ValidateSMTP() error {
	var missing []string
	if c.SMTP.Host == "" {
		missing = append(missing, "SMTP_HOST")
	}
	if c.SMTP.User == "" {
		missing = append(missing, "SMTP_USER")
	}
	if c.SMTP.Password == "" {
		missing = append(missing, "SMTP_PASSWORD")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnvOrViper(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultValue
}

func getDuration(key, defaultValue string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnvOrViper(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
