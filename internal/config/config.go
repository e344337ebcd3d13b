// Package config loads application configuration from environment
// variables. A local .env file is honoured when present so development
// setups need no exported shell state.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values. Each field
// corresponds to an environment variable. Durations are given in the
// units the variable name states.
type Config struct {
	Env        string // application environment (e.g. "dev", "prod")
	Port       string // HTTP port to listen on
	DBUser     string // database username
	DBPass     string // database password (optional)
	DBHost     string // database host address
	DBPort     string // database port number
	DBName     string // database name
	BcryptCost int    // bcrypt cost for password hashing

	SessionTTL time.Duration // session lifetime (SESSION_TTL_HOURS)
	OTPTTL     time.Duration // passcode lifetime (OTP_TTL_MIN)

	SMTPAddr string // host:port of the SMTP relay; empty = log-only mailer
	SMTPFrom string // From address for outbound mail
	SMTPUser string // SMTP username (optional)
	SMTPPass string // SMTP password (optional)
}

// Load reads configuration values from the environment. Required
// variables are enforced by must() and missing values cause the
// program to exit with a fatal log message.
func Load() Config {
	// Missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	return Config{
		Env:        must("APP_ENV"),
		Port:       must("APP_PORT"),
		DBUser:     must("DB_USER"),
		DBPass:     os.Getenv("DB_PASS"),
		DBHost:     must("DB_HOST"),
		DBPort:     must("DB_PORT"),
		DBName:     must("DB_NAME"),
		BcryptCost: mustInt("BCRYPT_COST"),

		SessionTTL: time.Duration(intOr("SESSION_TTL_HOURS", 24)) * time.Hour,
		OTPTTL:     time.Duration(intOr("OTP_TTL_MIN", 10)) * time.Minute,

		SMTPAddr: os.Getenv("SMTP_ADDR"),
		SMTPFrom: os.Getenv("SMTP_FROM"),
		SMTPUser: os.Getenv("SMTP_USER"),
		SMTPPass: os.Getenv("SMTP_PASS"),
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and
// exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an
// integer. If conversion fails, the application logs a fatal error
// and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// intOr reads an optional integer variable with a default.
func intOr(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, v)
	}
	return n
}
