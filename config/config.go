package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"quiz-portal-go/logging"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server"`

	// Database configuration
	Database DatabaseConfig `json:"database"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`

	// Email configuration
	Email EmailConfig `json:"email"`

	// Authentication configuration
	Auth AuthConfig `json:"auth"`

	// Application configuration
	App AppConfig `json:"app"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string `json:"port"`
	Host        string `json:"host"`
	BehindProxy bool   `json:"behind_proxy"`
	BaseURL     string `json:"base_url"`
	Environment string `json:"environment"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string        `json:"host"`
	Port     string        `json:"port"`
	Username string        `json:"username"`
	Password string        `json:"password"`
	Database string        `json:"database"`
	Timeout  time.Duration `json:"timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level       string `json:"level"`
	Prefix      string `json:"prefix"`
	EnableColor bool   `json:"enable_color"`
}

// EmailConfig holds SMTP configuration
type EmailConfig struct {
	SMTPHost     string `json:"smtp_host"`
	SMTPPort     string `json:"smtp_port"`
	SMTPUsername string `json:"smtp_username"`
	SMTPPassword string `json:"smtp_password"`
	FromEmail    string `json:"from_email"`
	FromName     string `json:"from_name"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret       string `json:"jwt_secret"`
	RestrictSignups bool   `json:"restrict_signups"`
	AdminToken      string `json:"admin_token"`
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	EventName       string `json:"event_name"`
	LeaderboardSize int    `json:"leaderboard_size"`
	MinTeamSize     int    `json:"min_team_size"`
	MaxTeamSize     int    `json:"max_team_size"`
	IsDevelopment   bool   `json:"is_development"`
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// Don't treat missing .env as an error
		logging.Warnf("Could not load .env file: %v", err)
	}

	environment := getEnv("ENVIRONMENT", "development")
	isDevelopment := strings.ToLower(environment) == "development"

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			BehindProxy: getBoolEnv("BEHIND_PROXY", false),
			BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
			Environment: environment,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "27017"),
			Username: getEnv("DB_USERNAME", ""),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "quiz_portal"),
			Timeout:  getDurationEnv("DB_TIMEOUT", 10*time.Second),
		},
		Logging: LoggingConfig{
			Level:       getEnv("LOG_LEVEL", "debug"),
			Prefix:      getEnv("LOG_PREFIX", "quiz-portal"),
			EnableColor: getBoolEnv("LOG_COLOR", true),
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnv("SMTP_PORT", "587"),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			FromEmail:    getEnv("FROM_EMAIL", ""),
			FromName:     getEnv("FROM_NAME", "Quiz Portal"),
		},
		Auth: AuthConfig{
			JWTSecret:       getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			RestrictSignups: getBoolEnv("RESTRICT_SIGNUPS", true),
			AdminToken:      getEnv("ADMIN_TOKEN", ""),
		},
		App: AppConfig{
			EventName:       getEnv("EVENT_NAME", "Quiz Portal"),
			LeaderboardSize: getIntEnv("LEADERBOARD_SIZE", 3),
			MinTeamSize:     getIntEnv("MIN_TEAM_SIZE", 3),
			MaxTeamSize:     getIntEnv("MAX_TEAM_SIZE", 5),
			IsDevelopment:   isDevelopment,
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration for required fields and sensible values
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port == "" {
		return fmt.Errorf("database port is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if c.Auth.JWTSecret == "your-secret-key-change-in-production" && !c.App.IsDevelopment {
		return fmt.Errorf("JWT secret must be changed in production")
	}

	if c.App.LeaderboardSize < 1 {
		return fmt.Errorf("leaderboard size must be at least 1, got: %d", c.App.LeaderboardSize)
	}
	if c.App.MinTeamSize < 1 || c.App.MaxTeamSize < c.App.MinTeamSize {
		return fmt.Errorf("invalid team size bounds: min=%d max=%d", c.App.MinTeamSize, c.App.MaxTeamSize)
	}

	return nil
}

// IsEmailConfigured returns true if email service is configured
func (c *Config) IsEmailConfigured() bool {
	return c.Email.SMTPHost != "" &&
		c.Email.SMTPUsername != "" &&
		c.Email.SMTPPassword != "" &&
		c.Email.FromEmail != ""
}

// GetServerAddress returns the full server address
func (c *Config) GetServerAddress() string {
	return c.Server.Host + ":" + c.Server.Port
}

// LogConfiguration logs the current configuration (without sensitive data)
func (c *Config) LogConfiguration() {
	logging.Info("=== Application Configuration ===")
	logging.Infof("Server: %s (Behind Proxy: %t, Environment: %s)",
		c.GetServerAddress(), c.Server.BehindProxy, c.Server.Environment)
	logging.Infof("Database: %s:%s/%s (Username: %s, Auth: %t)",
		c.Database.Host, c.Database.Port, c.Database.Database,
		c.Database.Username, c.Database.Password != "")
	logging.Infof("Logging: Level=%s, Prefix=%s, Color=%t",
		c.Logging.Level, c.Logging.Prefix, c.Logging.EnableColor)
	logging.Infof("Email: Configured=%t, Host=%s, From=%s",
		c.IsEmailConfigured(), c.Email.SMTPHost, c.Email.FromEmail)
	logging.Infof("App: Event=%s, LeaderboardSize=%d, TeamSize=%d-%d, Development=%t, RestrictSignups=%t",
		c.App.EventName, c.App.LeaderboardSize, c.App.MinTeamSize, c.App.MaxTeamSize,
		c.App.IsDevelopment, c.Auth.RestrictSignups)
	logging.Info("================================")
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
