package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the safemap service.
type Config struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Server configuration
	Port string

	// Feed configuration
	PollInterval time.Duration

	// Identity provider token validation
	JWTSecret string

	// Access gate policy: when true, only verified contributors may
	// create reports; otherwise any authenticated user may.
	RequireVerifiedContributor bool

	// Places provider (nearest police station lookup)
	PlacesAPIKey       string
	PlacesBaseURL      string
	PlacesRadiusMeters int

	// Device geolocation timeouts
	LocateTimeout     time.Duration
	AutoLocateTimeout time.Duration

	// Uploads
	UploadsDir     string
	UploadsBaseURL string

	// Optional AMQP event publishing; disabled when URL is empty. Events
	// are published on the exchange with the event name as routing key.
	AMQPURL      string
	AMQPExchange string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables. A local .env file
// is applied first when present.
func Load() *Config {
	godotenv.Load()

	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "server"),
		DBPassword: getEnv("DB_PASSWORD", "secret_app"),
		DBName:     getEnv("DB_NAME", "safemap"),

		Port: getEnv("PORT", "8080"),

		PollInterval: getDurationEnv("POLL_INTERVAL", time.Second),

		JWTSecret: getEnv("JWT_SECRET", ""),

		RequireVerifiedContributor: getBoolEnv("REQUIRE_VERIFIED_CONTRIBUTOR", true),

		PlacesAPIKey:       getEnv("PLACES_API_KEY", ""),
		PlacesBaseURL:      getEnv("PLACES_BASE_URL", "https://maps.googleapis.com/maps/api/place"),
		PlacesRadiusMeters: getIntEnv("PLACES_RADIUS_METERS", 5000),

		LocateTimeout:     getDurationEnv("LOCATE_TIMEOUT", 10*time.Second),
		AutoLocateTimeout: getDurationEnv("AUTO_LOCATE_TIMEOUT", 5*time.Second),

		UploadsDir:     getEnv("UPLOADS_DIR", "./uploads"),
		UploadsBaseURL: getEnv("UPLOADS_BASE_URL", "/uploads"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "safemap"),

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

// getBoolEnv gets a boolean environment variable or returns a default value
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
