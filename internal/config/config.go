// Package config provides application configuration loaded from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Log      LogConfig
	Backup   BackupConfig
	Owner    OwnerConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
}

// DatabaseConfig selects the gorm driver and its connection settings.
// Driver "sqlite" uses Path; "postgres" uses the host fields.
type DatabaseConfig struct {
	Driver   string
	Path     string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev               bool
	Migrations        bool
	StrictTransitions bool
	SessionSecret     string
}

// LogConfig feeds logger.New.
type LogConfig struct {
	Level       string
	Environment string
}

// BackupConfig drives the backup scheduler and chooses the snapshot backend.
type BackupConfig struct {
	Backend            string // "gorm" or "mongo"
	Interval           time.Duration
	RetentionInterval  time.Duration
	RetentionHorizon   time.Duration
	StaleAfter         time.Duration
	StaleCheckInterval time.Duration
	MongoURI           string
	MongoDatabase      string
}

// OwnerConfig holds the system owner console credentials.
type OwnerConfig struct {
	Username string
	Password string
}

// DSN returns the connection string for the configured driver.
func (d DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// URL returns the PostgreSQL connection string in URL format.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// Load reads configuration from environment variables.
// It uses sensible defaults for a single-terminal install.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "sqlite"),
			Path:     getEnv("DB_PATH", "foodcore.db"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "foodcore"),
			Password: getEnv("DB_PASSWORD", "foodcore"),
			DBName:   getEnv("DB_NAME", "foodcore"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		App: AppConfig{
			Dev:               getEnvBool("DEV", true),
			Migrations:        getEnvBool("MIGRATIONS", false),
			StrictTransitions: getEnvBool("ORDERS_STRICT_TRANSITIONS", false),
			SessionSecret:     getEnv("SESSION_SECRET", "devsessionsecret"),
		},
		Log: LogConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Backup: BackupConfig{
			Backend:            getEnv("BACKUP_BACKEND", "gorm"),
			Interval:           getEnvDuration("BACKUP_INTERVAL", 2*time.Hour),
			RetentionInterval:  getEnvDuration("BACKUP_RETENTION_INTERVAL", 24*time.Hour),
			RetentionHorizon:   getEnvDuration("BACKUP_RETENTION_HORIZON", 48*time.Hour),
			StaleAfter:         getEnvDuration("BACKUP_STALE_AFTER", 6*time.Hour),
			StaleCheckInterval: getEnvDuration("BACKUP_STALE_CHECK_INTERVAL", time.Hour),
			MongoURI:           getEnv("MONGO_URI", "mongodb://localhost:27017"),
			MongoDatabase:      getEnv("MONGO_DATABASE", "foodcore"),
		},
		Owner: OwnerConfig{
			Username: getEnv("OWNER_USERNAME", "superadmin"),
			Password: getEnv("OWNER_PASSWORD", "superadmin"),
		},
	}
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default.
// Accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}

// getEnvDuration parses values like "90m" or "2h"; invalid or non-positive values fall back.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
