package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Store configuration
	DatabasePath string
	MediaRoot    string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string
	PubNubGateChannel  string

	// Auth configuration
	JWTSecret      string
	ServiceKeyHash string

	// Issuance configuration
	MaxIssueAttempts int

	// Verification cache configuration
	VerifyPositiveTTL time.Duration
	VerifyNegativeTTL time.Duration

	// Rate limiting
	VerifyRateLimit int

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Store
		DatabasePath: getEnv("DATABASE_PATH", "etickets.db"),
		MediaRoot:    getEnv("MEDIA_ROOT", "media"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),
		PubNubGateChannel:  getEnv("PUBNUB_GATE_CHANNEL", "gate-entries"),

		// Auth
		JWTSecret:      getEnv("JWT_SECRET", ""),
		ServiceKeyHash: getEnv("SERVICE_KEY_HASH", ""),

		// Issuance
		MaxIssueAttempts: getEnvAsInt("MAX_ISSUE_ATTEMPTS", 100),

		// Verification cache
		VerifyPositiveTTL: getEnvAsDuration("VERIFY_POSITIVE_TTL", "5m"),
		VerifyNegativeTTL: getEnvAsDuration("VERIFY_NEGATIVE_TTL", "1m"),

		// Rate limiting
		VerifyRateLimit: getEnvAsInt("VERIFY_RATE_LIMIT", 60),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
