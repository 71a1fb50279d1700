package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration
type Config struct {
	Server    ServerConfig    `json:"server"`
	Store     StoreConfig     `json:"store"`
	Telegram  TelegramConfig  `json:"telegram"`
	Retry     RetryConfig     `json:"retry"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Security  SecurityConfig  `json:"security"`
	Redis     RedisConfig     `json:"redis"`
	Logging   LoggingConfig   `json:"logging"`
	Timezone  string          `json:"timezone"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Port         string        `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
	Environment  string        `json:"environment"`
}

// StoreConfig selects and configures the record store backend.
// Backend is one of "postgres", "sheets" or "memory".
type StoreConfig struct {
	Backend  string         `json:"backend"`
	Postgres PostgresConfig `json:"postgres"`
	Sheets   SheetsConfig   `json:"sheets"`
}

// PostgresConfig represents database configuration
type PostgresConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	User           string `json:"user"`
	Password       string `json:"password"`
	DBName         string `json:"dbname"`
	SSLMode        string `json:"sslmode"`
	MigrationsPath string `json:"migrations_path"`
}

// SheetsConfig represents the spreadsheet record store configuration.
type SheetsConfig struct {
	BaseURL    string        `json:"base_url"`
	DocumentID string        `json:"document_id"`
	Token      string        `json:"token"`
	Timeout    time.Duration `json:"timeout"`
}

// TelegramConfig represents chat transport configuration.
type TelegramConfig struct {
	BotToken      string        `json:"bot_token"`
	WebhookSecret string        `json:"webhook_secret"`
	AdminChatID   string        `json:"admin_chat_id"`
	Timeout       time.Duration `json:"timeout"`
}

// RetryConfig controls the record store backoff schedule.
type RetryConfig struct {
	MaxAttempts int           `json:"max_attempts"`
	Base        time.Duration `json:"base"`
	Multiplier  float64       `json:"multiplier"`
}

// SchedulerConfig controls the background tick loop.
type SchedulerConfig struct {
	TickInterval time.Duration `json:"tick_interval"`
}

// SecurityConfig represents the admin API security configuration.
type SecurityConfig struct {
	AdminUsername     string        `json:"admin_username"`
	AdminPasswordHash string        `json:"admin_password_hash"`
	JWTSecret         string        `json:"jwt_secret"`
	JWTExpiration     time.Duration `json:"jwt_expiration"`
	RateLimitEnabled  bool          `json:"rate_limit_enabled"`
	RateLimitRequests int           `json:"rate_limit_requests"`
	RateLimitWindow   time.Duration `json:"rate_limit_window"`
}

// RedisConfig represents Redis configuration
type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"` // json, text
}

// Load loads configuration from environment variables and defaults
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			Environment:  getEnv("ENVIRONMENT", "development"),
		},
		Store: StoreConfig{
			Backend: getEnv("STORE_BACKEND", "postgres"),
			Postgres: PostgresConfig{
				Host:           getEnv("DB_HOST", "localhost"),
				Port:           getEnvInt("DB_PORT", 5432),
				User:           getEnv("DB_USER", "postgres"),
				Password:       getEnv("DB_PASSWORD", ""),
				DBName:         getEnv("DB_NAME", "motorpool"),
				SSLMode:        getEnv("DB_SSLMODE", "disable"),
				MigrationsPath: getEnv("DB_MIGRATIONS_PATH", "./migrations"),
			},
			Sheets: SheetsConfig{
				BaseURL:    getEnv("SHEETS_BASE_URL", ""),
				DocumentID: getEnv("SHEETS_DOCUMENT_ID", ""),
				Token:      getEnv("SHEETS_TOKEN", ""),
				Timeout:    getEnvDuration("SHEETS_TIMEOUT", 10*time.Second),
			},
		},
		Telegram: TelegramConfig{
			BotToken:      getEnv("TELEGRAM_BOT_TOKEN", ""),
			WebhookSecret: getEnv("TELEGRAM_WEBHOOK_SECRET", ""),
			AdminChatID:   getEnv("TELEGRAM_ADMIN_CHAT_ID", ""),
			Timeout:       getEnvDuration("TELEGRAM_TIMEOUT", 10*time.Second),
		},
		Retry: RetryConfig{
			MaxAttempts: getEnvInt("RETRY_MAX_ATTEMPTS", 3),
			Base:        getEnvDuration("RETRY_BASE", time.Second),
			Multiplier:  getEnvFloat("RETRY_MULTIPLIER", 2),
		},
		Scheduler: SchedulerConfig{
			TickInterval: getEnvDuration("SCHEDULER_TICK_INTERVAL", time.Minute),
		},
		Security: SecurityConfig{
			AdminUsername:     getEnv("ADMIN_USERNAME", "admin"),
			AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
			JWTSecret:         getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			JWTExpiration:     getEnvDuration("JWT_EXPIRATION", 12*time.Hour),
			RateLimitEnabled:  getEnvBool("RATE_LIMIT_ENABLED", false),
			RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 20),
			RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Timezone: getEnv("TIMEZONE", "Asia/Dubai"),
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	switch c.Store.Backend {
	case "postgres":
		if c.Store.Postgres.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Store.Postgres.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Store.Postgres.DBName == "" {
			return fmt.Errorf("database name is required")
		}
	case "sheets":
		if c.Store.Sheets.BaseURL == "" {
			return fmt.Errorf("sheets base URL is required")
		}
		if c.Store.Sheets.DocumentID == "" {
			return fmt.Errorf("sheets document id is required")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store backend: %s", c.Store.Backend)
	}

	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram bot token is required")
	}
	if c.Telegram.AdminChatID == "" {
		return fmt.Errorf("telegram admin chat id is required")
	}

	if c.Security.AdminPasswordHash == "" {
		return fmt.Errorf("admin password hash is required")
	}
	if c.Security.JWTSecret == "" || c.Security.JWTSecret == "your-secret-key-change-in-production" {
		if c.Server.Environment == "production" {
			return fmt.Errorf("JWT secret must be set in production")
		}
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}

	return nil
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// GetDatabaseURL returns the database connection URL
func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Store.Postgres.Host,
		c.Store.Postgres.Port,
		c.Store.Postgres.User,
		c.Store.Postgres.Password,
		c.Store.Postgres.DBName,
		c.Store.Postgres.SSLMode,
	)
}

// GetRedisURL returns the Redis connection URL
func (c *Config) GetRedisURL() string {
	if c.Redis.Password != "" {
		return fmt.Sprintf("redis://:%s@%s:%d/%d", c.Redis.Password, c.Redis.Host, c.Redis.Port, c.Redis.DB)
	}
	return fmt.Sprintf("redis://%s:%d/%d", c.Redis.Host, c.Redis.Port, c.Redis.DB)
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Helper functions for environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
