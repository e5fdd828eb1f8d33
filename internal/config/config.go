// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	// Server Configuration
	GinMode       string        `mapstructure:"GIN_MODE"`
	ServerHost    string        `mapstructure:"SERVER_HOST"`
	ServerPort    string        `mapstructure:"SERVER_PORT"`
	ServerTimeout time.Duration `mapstructure:"SERVER_TIMEOUT_SECONDS"`

	// Profile store (Redis) Configuration
	RedisURL       string `mapstructure:"REDIS_URL"`
	UserKeyPrefix  string `mapstructure:"USER_KEY_PREFIX"`
	RedisScanCount int64  `mapstructure:"REDIS_SCAN_COUNT"`

	// Logging Configuration
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// Rate limiting for the unauthenticated endpoints
	PublicRateLimitRPS   float64 `mapstructure:"PUBLIC_RATE_LIMIT_RPS"`
	PublicRateLimitBurst int     `mapstructure:"PUBLIC_RATE_LIMIT_BURST"`

	// Application Specific Configuration
	DefaultPhotoURL     string `mapstructure:"DEFAULT_PHOTO_URL"`
	UsernameMaxAttempts int    `mapstructure:"USERNAME_MAX_ATTEMPTS"`

	// Firebase Configuration
	FirebaseServiceAccountKeyPath string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_KEY_PATH"`
	FirebaseProjectID             string `mapstructure:"FIREBASE_PROJECT_ID"`
}

// Load attempts to load configuration from a .env file (if present) and environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	v := viper.New()

	// Set default values
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_TIMEOUT_SECONDS", 30)

	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("USER_KEY_PREFIX", "user:")
	v.SetDefault("REDIS_SCAN_COUNT", 100)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	v.SetDefault("PUBLIC_RATE_LIMIT_RPS", 5.0)
	v.SetDefault("PUBLIC_RATE_LIMIT_BURST", 10)

	v.SetDefault("DEFAULT_PHOTO_URL", "https://www.tenforums.com/geek/gars/images/2/types/thumb_15951118880user.png")
	v.SetDefault("USERNAME_MAX_ATTEMPTS", 10)

	// Firebase
	v.SetDefault("FIREBASE_PROJECT_ID", "") // Optional
	v.SetDefault("FIREBASE_SERVICE_ACCOUNT_KEY_PATH", "")

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling configuration: %w", err)
	}

	// Convert duration fields
	cfg.ServerTimeout = time.Duration(v.GetInt("SERVER_TIMEOUT_SECONDS")) * time.Second

	// Basic validation for critical configs
	if strings.TrimSpace(cfg.FirebaseServiceAccountKeyPath) == "" {
		return nil, fmt.Errorf("FATAL: FIREBASE_SERVICE_ACCOUNT_KEY_PATH is not set. This is required for Firebase Admin SDK initialization")
	}
	if _, err := os.Stat(cfg.FirebaseServiceAccountKeyPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("FATAL: Firebase service account key file specified in FIREBASE_SERVICE_ACCOUNT_KEY_PATH (%s) not found", cfg.FirebaseServiceAccountKeyPath)
	}

	return &cfg, nil
}
