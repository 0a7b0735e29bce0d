package app

import (
	"errors"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Issuer    string // Issuer claim for access tokens
	JWTSecret string // Required: HMAC secret for access tokens (min 32 bytes)

	DatabaseFile string // Path to the SQLite database file (default: ./chat.db)

	LiveKitHost      string // HTTP(S) endpoint of the LiveKit API
	LiveKitAPIKey    string
	LiveKitAPISecret string
	LiveKitWSURL     string // Websocket URL handed to clients with their voice token

	AdminUsername string // First-boot admin account
	AdminPassword string
	DefaultRoom   string // Name of the default room (default: General)

	Env       string // Environment (dev, staging, prod) (default: dev)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: json)
	Port      int    // HTTP server port (default: 8080)

	AccessTokenTTL       time.Duration // Access token lifetime (default: 2h)
	RefreshTokenTTL      time.Duration // Refresh token lifetime (default: 168h)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	return Config{
		Issuer:    getEnvOrDefault("CHAT_ISSUER", "taproom-chat"),
		JWTSecret: os.Getenv("CHAT_JWT_SECRET"),

		DatabaseFile: getEnvOrDefault("CHAT_DATABASE_FILE", "chat.db"),

		LiveKitHost:      os.Getenv("LIVEKIT_HOST"),
		LiveKitAPIKey:    os.Getenv("LIVEKIT_API_KEY"),
		LiveKitAPISecret: os.Getenv("LIVEKIT_API_SECRET"),
		LiveKitWSURL:     os.Getenv("LIVEKIT_WS_URL"),

		AdminUsername: getEnvOrDefault("CHAT_ADMIN_USERNAME", "admin"),
		AdminPassword: os.Getenv("CHAT_ADMIN_PASSWORD"),
		DefaultRoom:   getEnvOrDefault("CHAT_DEFAULT_ROOM", "General"),

		Env:       getEnvOrDefault("ENV", "dev"),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),
		Port:      getEnvIntOrDefault("PORT", 8080),

		AccessTokenTTL:       getEnvDurationOrDefault("CHAT_ACCESS_TOKEN_TTL", 2*time.Hour),
		RefreshTokenTTL:      getEnvDurationOrDefault("CHAT_REFRESH_TOKEN_TTL", 7*24*time.Hour),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
}

// Validate reports configuration problems that would only surface later as
// confusing runtime failures.
func (cfg Config) Validate() error {
	if cfg.JWTSecret == "" {
		return errors.New("CHAT_JWT_SECRET is required")
	}
	if cfg.LiveKitHost != "" && (cfg.LiveKitAPIKey == "" || cfg.LiveKitAPISecret == "") {
		return errors.New("LIVEKIT_API_KEY and LIVEKIT_API_SECRET are required when LIVEKIT_HOST is set")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return defaultValue
}
