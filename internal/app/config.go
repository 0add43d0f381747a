package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env                 string        // dev, staging, prod (default: dev)
	LogLevel            string        // debug, info, warn, error (default: info)
	LogFormat           string        // json, text (default: json)
	Addr                string        // HTTP listen address (default: :8080)
	ShutdownGracePeriod time.Duration // default: 10s

	RedisAddr     string // empty starts an in-process miniredis
	RedisPassword string
	RedisDB       int

	DatabaseDriver string // sqlite or postgres (default: sqlite)
	DatabaseDSN    string // default: shelfauth.db

	JWTSecret        string        // required outside dev
	JWTIssuer        string        // default: shelfauth
	TokenValidity    time.Duration // default: 7d
	RenewalThreshold time.Duration // default: 3d
	CacheTTL         time.Duration // default: 30m
	StorePolicy      string        // fail_closed or fail_open (default: fail_closed)

	AutoLogin    bool // default: true
	AuditEnabled bool // default: false
}

func LoadConfig() Config {
	return Config{
		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Addr:                getEnvOrDefault("HTTP_ADDR", ":8080"),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvIntOrDefault("REDIS_DB", 0),

		DatabaseDriver: strings.ToLower(getEnvOrDefault("DB_DRIVER", "sqlite")),
		DatabaseDSN:    getEnvOrDefault("DB_DSN", "shelfauth.db"),

		JWTSecret:        os.Getenv("JWT_SECRET"),
		JWTIssuer:        getEnvOrDefault("JWT_ISSUER", "shelfauth"),
		TokenValidity:    getEnvDurationOrDefault("TOKEN_VALIDITY", 7*24*time.Hour),
		RenewalThreshold: getEnvDurationOrDefault("TOKEN_RENEWAL_THRESHOLD", 3*24*time.Hour),
		CacheTTL:         getEnvDurationOrDefault("USER_CACHE_TTL", 30*time.Minute),
		StorePolicy:      getEnvOrDefault("STORE_POLICY", "fail_closed"),

		AutoLogin:    getEnvBoolOrDefault("AUTO_LOGIN", true),
		AuditEnabled: getEnvBoolOrDefault("AUDIT_ENABLED", false),
	}
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

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// "1h", "30m", "168h"
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// bare integers are minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
