package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr    string
	DatabaseURL string

	JWTSecret string
	JWTIssuer string

	AccessTokenTTL       time.Duration
	SessionTTL           time.Duration
	ChallengeTTL         time.Duration
	MaxChallengeAttempts int
	BcryptCost           int
	TOTPIssuer           string

	ResendAPIKey string
	EmailFrom    string
	AppName      string

	CookieDomain  string
	SecureCookies bool

	PurgeInterval time.Duration
}

// Load reads configuration from the environment, with a .env file as a
// convenience for local runs. Only the secrets have no default.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:             envString("HTTP_ADDR", ":8080"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		JWTIssuer:            envString("JWT_ISSUER", "authgate"),
		AccessTokenTTL:       envDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		SessionTTL:           envDuration("SESSION_TTL", 30*24*time.Hour),
		ChallengeTTL:         envDuration("TWO_FACTOR_CHALLENGE_TTL", 5*time.Minute),
		MaxChallengeAttempts: envInt("TWO_FACTOR_MAX_ATTEMPTS", 5),
		BcryptCost:           envInt("BCRYPT_COST", 0),
		TOTPIssuer:           envString("TOTP_ISSUER", "authgate"),
		ResendAPIKey:         os.Getenv("RESEND_API_KEY"),
		EmailFrom:            os.Getenv("EMAIL_FROM"),
		AppName:              envString("APP_NAME", "authgate"),
		CookieDomain:         os.Getenv("COOKIE_DOMAIN"),
		SecureCookies:        envBool("COOKIE_SECURE", true),
		PurgeInterval:        envDuration("PURGE_INTERVAL", time.Hour),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	return cfg, nil
}

func envString(key string, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
