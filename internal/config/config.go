package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// JWT configuration
	JWT JWTConfig

	// Payment gateway configuration
	Payment PaymentConfig

	// Webhook configuration
	Webhook WebhookConfig

	// Outbound notification configuration
	Notification NotificationConfig

	// Background job configuration
	Scheduler SchedulerConfig

	// Rate limiting configuration
	RateLimit RateLimitConfig

	// CORS configuration
	CORS CORSConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
	Timezone    string // used to decide what "today" means for booking dates
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
	AutoMigrate        bool
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret            string
	Issuer            string
	AccessTokenExpiry time.Duration
}

// PaymentConfig holds Midtrans Snap configuration
type PaymentConfig struct {
	Provider       string // "midtrans"
	ServerKey      string // SECRET - never expose to client
	ClientKey      string
	IsProduction   bool
	BaseURL        string // overrides the sandbox/production Snap URL when set
	FinishURL      string // where the hosted page sends the customer afterwards
	Currency       string
	SessionTimeout time.Duration
}

// WebhookConfig holds inbound gateway notification settings
type WebhookConfig struct {
	VerifySignature bool
}

// NotificationConfig holds SMS and Telegram settings plus outbox worker tuning
type NotificationConfig struct {
	Mode             string // "dev" logs messages, "production" delivers them
	SMSBaseURL       string
	SMSAPIKey        string
	SMSMask          string
	TelegramBotToken string
	TelegramChatID   int64
	PollInterval     time.Duration
	BatchSize        int
	MaxAttempts      int
	LeaseDuration    time.Duration
}

// SchedulerConfig holds cron specs for background jobs
type SchedulerConfig struct {
	RewardExpirySpec  string
	OutboxCleanupSpec string
	OutboxRetention   time.Duration
}

// RateLimitConfig holds per-user booking and per-booking payment limits
type RateLimitConfig struct {
	MaxUserBookings    int
	BookingWindow      time.Duration
	MaxPaymentAttempts int
	PaymentWindow      time.Duration
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			Timezone:    getEnv("APP_TIMEZONE", "Asia/Jakarta"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
			AutoMigrate:        getEnvAsBool("DATABASE_AUTO_MIGRATE", false),
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			Issuer:            getEnv("JWT_ISSUER", "tripnest-booking"),
			AccessTokenExpiry: time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
		},
		Payment: PaymentConfig{
			Provider:       getEnv("PAYMENT_PROVIDER", "midtrans"),
			ServerKey:      getEnv("PAYMENT_SERVER_KEY", ""),
			ClientKey:      getEnv("PAYMENT_CLIENT_KEY", ""),
			IsProduction:   getEnvAsBool("PAYMENT_IS_PRODUCTION", false),
			BaseURL:        getEnv("PAYMENT_BASE_URL", ""),
			FinishURL:      getEnv("PAYMENT_FINISH_URL", ""),
			Currency:       getEnv("PAYMENT_CURRENCY", "IDR"),
			SessionTimeout: getEnvAsDuration("PAYMENT_SESSION_TIMEOUT", 30*time.Second),
		},
		Webhook: WebhookConfig{
			VerifySignature: getEnvAsBool("WEBHOOK_VERIFY_SIGNATURE", true),
		},
		Notification: NotificationConfig{
			Mode:             getEnv("NOTIFICATION_MODE", "dev"),
			SMSBaseURL:       getEnv("SMS_BASE_URL", ""),
			SMSAPIKey:        getEnv("SMS_API_KEY", ""),
			SMSMask:          getEnv("SMS_MASK", ""),
			TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			TelegramChatID:   getEnvAsInt64("TELEGRAM_CHAT_ID", 0),
			PollInterval:     getEnvAsDuration("NOTIFIER_POLL_INTERVAL", 5*time.Second),
			BatchSize:        getEnvAsInt("NOTIFIER_BATCH_SIZE", 20),
			MaxAttempts:      getEnvAsInt("NOTIFIER_MAX_ATTEMPTS", 5),
			LeaseDuration:    getEnvAsDuration("NOTIFIER_LEASE_DURATION", 2*time.Minute),
		},
		Scheduler: SchedulerConfig{
			RewardExpirySpec:  getEnv("CRON_REWARD_EXPIRY", "0 */15 * * * *"),
			OutboxCleanupSpec: getEnv("CRON_OUTBOX_CLEANUP", "0 30 3 * * *"),
			OutboxRetention:   getEnvAsDuration("OUTBOX_RETENTION", 30*24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			MaxUserBookings:    getEnvAsInt("RATE_LIMIT_BOOKINGS", 10),
			BookingWindow:      getEnvAsDuration("RATE_LIMIT_BOOKING_WINDOW", time.Hour),
			MaxPaymentAttempts: getEnvAsInt("RATE_LIMIT_PAYMENT_ATTEMPTS", 5),
			PaymentWindow:      getEnvAsDuration("RATE_LIMIT_PAYMENT_WINDOW", time.Hour),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization", "X-Request-ID"}),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.Payment.Provider != "midtrans" {
		return fmt.Errorf("invalid payment provider: %s (must be 'midtrans')", c.Payment.Provider)
	}

	if c.Server.Environment == "production" && c.Payment.ServerKey == "" {
		return fmt.Errorf("PAYMENT_SERVER_KEY is required in production")
	}

	if _, err := time.LoadLocation(c.Server.Timezone); err != nil {
		return fmt.Errorf("invalid APP_TIMEZONE %q: %w", c.Server.Timezone, err)
	}

	if c.Notification.Mode != "dev" && c.Notification.Mode != "production" {
		return fmt.Errorf("invalid notification mode: %s (must be 'dev' or 'production')", c.Notification.Mode)
	}

	return nil
}

// Location returns the configured business timezone
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Server.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid duration value for %s, using default: %s", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
