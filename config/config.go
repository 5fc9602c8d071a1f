package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the audit dashboard service
type Config struct {
	// Server configuration
	Host string
	Port string

	// Upstream audit/RPA API
	AuditAPIURL     string
	AuditAPITimeout time.Duration

	// RPA queue polling
	PollInterval time.Duration

	// Success toasts auto-dismiss after this delay; errors persist
	SuccessDismissAfter time.Duration

	// Run-history database (optional; empty DBHost disables the store)
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Host: getEnv("HOST", "0.0.0.0"),
		Port: getEnv("PORT", "8080"),

		AuditAPIURL:     getEnv("AUDIT_API_URL", "http://localhost:8001"),
		AuditAPITimeout: getDurationEnv("AUDIT_API_TIMEOUT", 120*time.Second),

		PollInterval: getDurationEnv("RPA_POLL_INTERVAL", 5*time.Second),

		SuccessDismissAfter: getDurationEnv("SUCCESS_DISMISS_AFTER", 5*time.Second),

		DBUser:     getEnv("DB_USER", "server"),
		DBPassword: getEnv("DB_PASSWORD", "secret_app"),
		DBHost:     getEnv("DB_HOST", ""),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBName:     getEnv("DB_NAME", "audit"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
