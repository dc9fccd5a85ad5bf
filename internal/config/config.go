// internal/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"bowlsbackend/internal/logger"
)

// Config carries everything the service reads from the environment. It is
// built once in main and handed to the components that need it.
type Config struct {
	ServerHost string
	ServerPort string

	// DatabasePath is the sqlite file backing the document store.
	DatabasePath string

	// Stripe credentials. The two webhook secrets belong to separate
	// endpoints: direct-charge events and connected-account events.
	StripeSecretKey      string
	PaymentWebhookSecret string
	ConnectWebhookSecret string

	// HomeCountry selects the "full" service agreement for connected
	// accounts; every other country gets "recipient".
	HomeCountry string

	// SiteBaseURL is the public frontend origin used to template checkout
	// redirect URLs, onboarding return URLs and store page links.
	SiteBaseURL string

	AllowedOrigin string
	JWTSecret     string

	LogsDirectory string
	LogFileFormat string
	TimeZone      string
}

// LoadEnv reads a .env file if present. System environment wins afterwards.
func LoadEnv() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("No .env file found, using system environment variables")
	}
}

// Load builds a Config from the environment, applying dev defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ServerHost: getEnv("SERVER_HOST", "127.0.0.1"),
		ServerPort: getEnv("SERVER_PORT", "5052"),

		DatabasePath: getEnv("DATABASE_PATH", "./data/documents.db"),

		StripeSecretKey:      os.Getenv("STRIPE_SECRET"),
		PaymentWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		ConnectWebhookSecret: os.Getenv("STRIPE_CONNECT_WEBHOOK_SECRET"),

		HomeCountry: getEnv("HOME_COUNTRY", "US"),
		SiteBaseURL: getEnv("SITE_BASE_URL", "https://homebowls.com"),

		AllowedOrigin: getEnv("ALLOWED_ORIGIN", "*"),
		JWTSecret:     os.Getenv("JWT_SECRET"),

		LogsDirectory: getEnv("LOGS_DIRECTORY", "./logs"),
		LogFileFormat: getEnv("LOG_FILE_FORMAT", "server_%s.log"),
		TimeZone:      getEnv("TIME_ZONE", "Local"),
	}

	if cfg.StripeSecretKey == "" {
		return nil, fmt.Errorf("STRIPE_SECRET is not set")
	}
	if cfg.PaymentWebhookSecret == "" {
		return nil, fmt.Errorf("STRIPE_WEBHOOK_SECRET is not set")
	}
	if cfg.ConnectWebhookSecret == "" {
		// The original reused the direct-charge secret for both endpoints.
		cfg.ConnectWebhookSecret = cfg.PaymentWebhookSecret
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is not set")
	}
	if cfg.AllowedOrigin == "*" {
		logger.LogWarn("ALLOWED_ORIGIN not set, allowing all origins")
	}

	cfg.SiteBaseURL = strings.TrimRight(cfg.SiteBaseURL, "/")
	return cfg, nil
}

// LoggerConfig returns the logger settings portion of the environment. It is
// separate from Load so logging can come up before config validation.
func LoggerConfig() logger.Config {
	return logger.Config{
		LogsDirectory: getEnv("LOGS_DIRECTORY", "./logs"),
		LogFileFormat: getEnv("LOG_FILE_FORMAT", "server_%s.log"),
		TimeZone:      getEnv("TIME_ZONE", "Local"),
	}
}

// Addr builds the listen address.
func (c *Config) Addr() string {
	return c.ServerHost + ":" + c.ServerPort
}

// CheckoutSuccessURL is where the processor redirects after payment. The
// {CHECKOUT_SESSION_ID} placeholder is substituted by the processor.
func (c *Config) CheckoutSuccessURL() string {
	return c.SiteBaseURL + "/order/success?session_id={CHECKOUT_SESSION_ID}"
}

// CheckoutCancelURL is where the processor redirects on an abandoned session.
func (c *Config) CheckoutCancelURL() string {
	return c.SiteBaseURL + "/order/canceled?session_id={CHECKOUT_SESSION_ID}"
}

// OnboardingRefreshURL is revisited when an onboarding link expires.
func (c *Config) OnboardingRefreshURL() string {
	return c.SiteBaseURL + "/refresh"
}

// OnboardingReturnURL is where a seller lands after onboarding.
func (c *Config) OnboardingReturnURL() string {
	return c.SiteBaseURL + "/return"
}

// StorePageURL links a seller's public store page.
func (c *Config) StorePageURL(uid string) string {
	return c.SiteBaseURL + "/storePage?store_id=" + uid
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
