package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the importer
type Config struct {
	// Server-side knobs (log level only; the importer has no HTTP surface)
	LogLevel string

	// Database configuration
	Database DatabaseConfig

	// Import configuration
	Import ImportConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// ImportConfig holds batch import configuration
type ImportConfig struct {
	// Directory scanned for timetable zip archives
	TimetableDir string

	// Path to the stop-registry zip (NaPTAN-style StopPoint feed)
	StopRegistryZip string

	// Monday of the week every operating calendar is projected onto.
	// All documents in a batch are resolved against this one week.
	ReferenceMonday time.Time
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	refMonday, err := time.Parse("2006-01-02", getEnv("REFERENCE_MONDAY", "2018-03-12"))
	if err != nil {
		return nil, fmt.Errorf("invalid REFERENCE_MONDAY: %w", err)
	}

	config := &Config{
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		Import: ImportConfig{
			TimetableDir:    getEnv("TIMETABLE_DATA_DIR", "travelinedata"),
			StopRegistryZip: getEnv("STOP_REGISTRY_ZIP", "naptandata/NaPTANxml.zip"),
			ReferenceMonday: refMonday,
		},
	}

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

	if c.Import.ReferenceMonday.Weekday() != time.Monday {
		return fmt.Errorf("REFERENCE_MONDAY %s is a %s, not a Monday",
			c.Import.ReferenceMonday.Format("2006-01-02"), c.Import.ReferenceMonday.Weekday())
	}

	return nil
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
