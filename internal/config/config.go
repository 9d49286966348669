// Package config loads application configuration from environment variables.
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.  Strings for identifiers and secrets,
// durations for the retry policy.
type Config struct {
	Env           string        // application environment (e.g. "dev", "prod")
	Port          string        // HTTP port to listen on
	DBUser        string        // database username
	DBPass        string        // database password (optional)
	DBHost        string        // database host address
	DBPort        string        // database port number
	DBName        string        // database name
	JWTSecret     string        // secret used to verify access tokens
	GatewaySecret string        // shared secret for completion signatures
	GatewayURL    string        // external payment gateway base URL (optional)
	GatewayKey    string        // external payment gateway API key (optional)
	Currency      string        // ISO currency code applied to new reservations
	RabbitURL     string        // AMQP broker URL (optional, defaults applied downstream)
	RetryAttempts int           // reconciliation attempts per tier
	RetryDelay    time.Duration // fixed delay between reconciliation attempts
}

// Load reads configuration values from environment variables.  Required
// variables are enforced by must(); missing values cause the program to
// exit with a fatal log message.
func Load() Config {
	return Config{
		Env:           must("APP_ENV"),
		Port:          must("APP_PORT"),
		DBUser:        must("DB_USER"),
		DBPass:        os.Getenv("DB_PASS"), // empty allowed
		DBHost:        must("DB_HOST"),
		DBPort:        must("DB_PORT"),
		DBName:        must("DB_NAME"),
		JWTSecret:     must("JWT_SECRET"),
		GatewaySecret: must("GATEWAY_SECRET"),
		GatewayURL:    os.Getenv("GATEWAY_URL"), // empty means wallet-only deployment
		GatewayKey:    os.Getenv("GATEWAY_KEY"),
		Currency:      envStr("CURRENCY", "USD"),
		RabbitURL:     os.Getenv("RABBITMQ_URL"),
		RetryAttempts: envInt("RECONCILE_ATTEMPTS", 3),
		RetryDelay:    envDur("RECONCILE_DELAY", time.Second),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
