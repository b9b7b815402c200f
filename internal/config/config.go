package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds widget host configuration.
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Scheduling backend (chat, lead verification, catalog, viability).
	ChatAPIBaseURL string

	// Geocoding provider.
	GeocoderBaseURL     string
	GeocoderAccessToken string

	// Shared HTTP behavior. A hung request otherwise leaves the
	// conversation in "typing" forever.
	RequestTimeout time.Duration

	// Phone handling.
	DefaultDialCode string

	// Map defaults when no location is known yet.
	DefaultMapLat  float64
	DefaultMapLng  float64
	DefaultMapZoom int

	// Language preference store.
	RedisAddr       string
	RedisPassword   string
	DefaultLanguage string
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:                getEnv("PORT", "8080"),
		Env:                 getEnv("ENV", "development"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		ChatAPIBaseURL:      getEnv("CHAT_API_BASE_URL", "http://localhost:8000"),
		GeocoderBaseURL:     getEnv("GEOCODER_BASE_URL", "https://api.mapbox.com/search/geocode/v6"),
		GeocoderAccessToken: getEnv("GEOCODER_ACCESS_TOKEN", ""),
		RequestTimeout:      getEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),
		DefaultDialCode:     getEnv("DEFAULT_DIAL_CODE", "+58"),
		DefaultMapLat:       getEnvAsFloat("DEFAULT_MAP_LAT", 10.2144164),
		DefaultMapLng:       getEnvAsFloat("DEFAULT_MAP_LNG", -68.0113295),
		DefaultMapZoom:      getEnvAsInt("DEFAULT_MAP_ZOOM", 10),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		DefaultLanguage:     getEnv("DEFAULT_LANGUAGE", "es"),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
