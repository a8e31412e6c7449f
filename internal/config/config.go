package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingCredentials is returned by provider Validate methods.
// services maps it onto a failed-precondition error.
var ErrMissingCredentials = errors.New("gateway credentials not configured")

// MTNConfig holds the MTN MoMo collection settings
type MTNConfig struct {
	BaseURL           string
	APIKey            string
	SubscriptionKey   string
	TargetEnvironment string
	CollectionAccount string
	CallbackURL       string
	WebhookSecret     string
}

// Validate reports missing credentials without touching the network
func (c MTNConfig) Validate() error {
	var missing []string
	if c.BaseURL == "" {
		missing = append(missing, "MTN_BASE_URL")
	}
	if c.APIKey == "" {
		missing = append(missing, "MTN_API_KEY")
	}
	if c.SubscriptionKey == "" {
		missing = append(missing, "MTN_SUBSCRIPTION_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return nil
}

// AirtelConfig holds the Airtel Money collection settings
type AirtelConfig struct {
	BaseURL       string
	APIKey        string
	Country       string
	WebhookSecret string
}

// Validate reports missing credentials without touching the network
func (c AirtelConfig) Validate() error {
	var missing []string
	if c.BaseURL == "" {
		missing = append(missing, "AIRTEL_BASE_URL")
	}
	if c.APIKey == "" {
		missing = append(missing, "AIRTEL_API_KEY")
	}
	if c.Country == "" {
		missing = append(missing, "AIRTEL_COUNTRY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return nil
}

// SMTPConfig is used by the payment notification task
type SMTPConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	From     string
}

// WahaConfig points at the WhatsApp HTTP API used for payer messages
type WahaConfig struct {
	BaseURL string
	APIKey  string
}

// Config is built once at startup and handed to every component that needs it.
type Config struct {
	Port                    string
	DatabaseURL             string
	RedisURL                string
	FirebaseCredentialsPath string

	Currency       string
	CountryCode    string
	PaymentWindow  time.Duration
	GatewayTimeout time.Duration
	StatusCacheTTL time.Duration

	// RRULE for the expiry sweeper task
	SweepRule string

	WebhookAllowedCIDRs []string

	MTN    MTNConfig
	Airtel AirtelConfig
	SMTP   SMTPConfig
	Waha   WahaConfig
}

// Load reads .env (when present) and the process environment into a Config
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function, which keeps tests off the real environment
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	window, err := time.ParseDuration(get("PAYMENT_WINDOW", "4m"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYMENT_WINDOW: %w", err)
	}
	timeout, err := time.ParseDuration(get("GATEWAY_TIMEOUT", "20s"))
	if err != nil {
		return nil, fmt.Errorf("invalid GATEWAY_TIMEOUT: %w", err)
	}
	cacheTTL, err := time.ParseDuration(get("STATUS_CACHE_TTL", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid STATUS_CACHE_TTL: %w", err)
	}

	var cidrs []string
	for _, c := range strings.Split(get("WEBHOOK_ALLOWED_CIDRS", ""), ",") {
		if c = strings.TrimSpace(c); c != "" {
			cidrs = append(cidrs, c)
		}
	}

	cfg := &Config{
		Port:                    get("PORT", "8080"),
		DatabaseURL:             get("DATABASE_URL", ""),
		RedisURL:                get("REDIS_URL", ""),
		FirebaseCredentialsPath: get("FIREBASE_CREDENTIALS_PATH", ""),

		Currency:       get("PAYMENT_CURRENCY", "UGX"),
		CountryCode:    get("PAYMENT_COUNTRY_CODE", "256"),
		PaymentWindow:  window,
		GatewayTimeout: timeout,
		StatusCacheTTL: cacheTTL,
		SweepRule:      get("PAYMENT_SWEEP_RRULE", "FREQ=MINUTELY;INTERVAL=5"),

		WebhookAllowedCIDRs: cidrs,

		MTN: MTNConfig{
			BaseURL:           strings.TrimRight(get("MTN_BASE_URL", ""), "/"),
			APIKey:            get("MTN_API_KEY", ""),
			SubscriptionKey:   get("MTN_SUBSCRIPTION_KEY", ""),
			TargetEnvironment: get("MTN_TARGET_ENVIRONMENT", "sandbox"),
			CollectionAccount: get("MTN_COLLECTION_ACCOUNT", ""),
			CallbackURL:       get("MTN_CALLBACK_URL", ""),
			WebhookSecret:     get("MTN_WEBHOOK_SECRET", ""),
		},
		Airtel: AirtelConfig{
			BaseURL:       strings.TrimRight(get("AIRTEL_BASE_URL", ""), "/"),
			APIKey:        get("AIRTEL_API_KEY", ""),
			Country:       get("AIRTEL_COUNTRY", "UG"),
			WebhookSecret: get("AIRTEL_WEBHOOK_SECRET", ""),
		},
		SMTP: SMTPConfig{
			Host:     get("SMTP_HOST", ""),
			Port:     get("SMTP_PORT", ""),
			User:     get("SMTP_USER", ""),
			Password: get("SMTP_PASS", ""),
			From:     get("EMAIL_FROM", ""),
		},
		Waha: WahaConfig{
			BaseURL: get("WAHA_BASE_URL", ""),
			APIKey:  get("WAHA_API_KEY", ""),
		},
	}

	if window <= 0 {
		return nil, fmt.Errorf("PAYMENT_WINDOW must be positive")
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("GATEWAY_TIMEOUT must be positive")
	}
	return cfg, nil
}
