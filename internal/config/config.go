// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ServerConfig holds all server-related settings
type ServerConfig struct {
	Port           int
	Host           string
	MetricsEnabled bool
}

// DatabaseConfig holds MongoDB connection settings
type DatabaseConfig struct {
	URI  string
	Name string
}

// AuthConfig holds token-signing settings
type AuthConfig struct {
	JWTSecret   string
	TokenExpiry time.Duration
}

// MediaConfig holds credentials for the external image host
type MediaConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Config holds the complete application configuration
type Config struct {
	Server         *ServerConfig
	Database       *DatabaseConfig
	Auth           *AuthConfig
	Media          *MediaConfig
	AllowedOrigins []string
	Debug          bool
}

// DefaultConfig provides default server settings
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Port:           8080,
		Host:           "0.0.0.0",
		MetricsEnabled: true,
	}
}

// LoadConfig loads configuration from environment variables and applies defaults
func LoadConfig() (*Config, error) {
	// Try to load .env from the working directory and the project root;
	// silently continue when none exists.
	for _, location := range []string{".env", "../../.env"} {
		if err := godotenv.Load(location); err == nil {
			break
		}
	}

	serverConfig := DefaultConfig()

	if portStr := os.Getenv("PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			serverConfig.Port = port
		}
	}
	if host := os.Getenv("HOST"); host != "" {
		serverConfig.Host = host
	}
	if metricsEnabled := os.Getenv("METRICS_ENABLED"); metricsEnabled != "" {
		serverConfig.MetricsEnabled = metricsEnabled == "true"
	}

	dbConfig := &DatabaseConfig{
		URI:  getEnvOrDefault("MONGODB_URI", "mongodb://localhost:27017"),
		Name: getEnvOrDefault("DB_NAME", "perch"),
	}

	authConfig := &AuthConfig{
		JWTSecret:   os.Getenv("JWT_SECRET"),
		TokenExpiry: 30 * 24 * time.Hour,
	}
	if authConfig.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if expiryStr := os.Getenv("JWT_EXPIRE_HOURS"); expiryStr != "" {
		if hours, err := strconv.Atoi(expiryStr); err == nil && hours > 0 {
			authConfig.TokenExpiry = time.Duration(hours) * time.Hour
		}
	}

	mediaConfig := &MediaConfig{
		CloudName: os.Getenv("MEDIA_CLOUD_NAME"),
		APIKey:    os.Getenv("MEDIA_API_KEY"),
		APISecret: os.Getenv("MEDIA_API_SECRET"),
		Folder:    getEnvOrDefault("MEDIA_FOLDER", "user_profiles"),
	}

	config := &Config{
		Server:         serverConfig,
		Database:       dbConfig,
		Auth:           authConfig,
		Media:          mediaConfig,
		AllowedOrigins: []string{"*"},
		Debug:          false,
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.AllowedOrigins = strings.Split(origins, ",")
	}
	if debug := os.Getenv("DEBUG"); debug == "true" {
		config.Debug = true
	}

	return config, nil
}

// Helper function to get environment variable with default fallback
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
