package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Secrets    SecretsConfig
	Dispatcher DispatcherConfig
	Webhook    WebhookConfig
	Receipts   ReceiptsConfig
	RateLimit  RateLimitConfig
	Logger     LoggerConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port        int
	Host        string
	MetricsPort int
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// SecretsConfig selects and configures the secret manager backend
type SecretsConfig struct {
	// Backend is one of aws, vault, local
	Backend string
	// AWSRegion applies to the aws backend
	AWSRegion string
	// VaultAddress and VaultToken apply to the vault backend
	VaultAddress string
	VaultToken   string
	VaultMount   string
	// LocalDir applies to the local backend (development only)
	LocalDir string
}

// DispatcherConfig tunes the bank confirmation worker pool
type DispatcherConfig struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
}

// WebhookConfig tunes webhook delivery and retries
type WebhookConfig struct {
	RetryInterval time.Duration
	MaxRetries    int
}

// ReceiptsConfig holds receipt upload storage settings
type ReceiptsConfig struct {
	BaseDir       string
	PublicBaseURL string
}

// RateLimitConfig tunes the per-IP limiter on public endpoints
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string // debug, info, warn, error
	Development bool
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnvAsInt("SERVER_PORT", 8080),
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			MetricsPort: getEnvAsInt("METRICS_PORT", 9090),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "fetanpay"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
			MaxConns: int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns: int32(getEnvAsInt("DB_MIN_CONNS", 5)),
		},
		Secrets: SecretsConfig{
			Backend:      getEnv("SECRETS_BACKEND", "local"),
			AWSRegion:    getEnv("AWS_REGION", "eu-west-1"),
			VaultAddress: getEnv("VAULT_ADDR", ""),
			VaultToken:   getEnv("VAULT_TOKEN", ""),
			VaultMount:   getEnv("VAULT_MOUNT", "secret"),
			LocalDir:     getEnv("SECRETS_LOCAL_DIR", "./secrets"),
		},
		Dispatcher: DispatcherConfig{
			Workers:     getEnvAsInt("CONFIRMATION_WORKERS", 4),
			QueueSize:   getEnvAsInt("CONFIRMATION_QUEUE_SIZE", 256),
			MaxAttempts: getEnvAsInt("CONFIRMATION_MAX_ATTEMPTS", 5),
		},
		Webhook: WebhookConfig{
			RetryInterval: getEnvAsDuration("WEBHOOK_RETRY_INTERVAL", 5*time.Minute),
			MaxRetries:    getEnvAsInt("WEBHOOK_MAX_RETRIES", 5),
		},
		Receipts: ReceiptsConfig{
			BaseDir:       getEnv("RECEIPTS_DIR", "./receipts"),
			PublicBaseURL: getEnv("RECEIPTS_PUBLIC_URL", "http://localhost:8080/receipts"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 10),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	switch cfg.Secrets.Backend {
	case "aws", "vault", "local":
	default:
		return nil, fmt.Errorf("SECRETS_BACKEND must be aws, vault or local, got %q", cfg.Secrets.Backend)
	}
	if cfg.Secrets.Backend == "vault" && cfg.Secrets.VaultAddress == "" {
		return nil, fmt.Errorf("VAULT_ADDR is required for the vault backend")
	}

	return cfg, nil
}

// ConnectionString returns PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
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
		return defaultValue
	}
	return value
}
