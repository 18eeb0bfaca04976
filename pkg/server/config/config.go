// Package config loads platform API configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the platform API's runtime configuration.
type Config struct {
	Addr string

	// DatabaseURL is the Postgres DSN.
	DatabaseURL string
	// RedisAddr is the interview-request store address.
	RedisAddr string

	// JWTSecret signs platform access tokens.
	JWTSecret string
	// TokenTTL bounds platform access token lifetime.
	TokenTTL time.Duration

	// Media server control API and token credentials.
	MediaURL       string
	MediaAPIKey    string
	MediaAPISecret string

	// Object storage for call recordings and transcripts.
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	// PresignTTL bounds recording download links.
	PresignTTL time.Duration

	// GeminiAPIKey authorizes transcript feedback analysis.
	GeminiAPIKey string
	// FeedbackModel generates post-call feedback.
	FeedbackModel string

	// CORSAllowedOrigins is the allowlist; empty disables CORS handling.
	CORSAllowedOrigins map[string]struct{}

	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	ShutdownGracePeriod time.Duration
}

// LoadFromEnv reads configuration with validation. Missing required keys
// are errors; tunables fall back to defaults.
func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                envOr("INTERVIEWD_ADDR", ":8000"),
		DatabaseURL:         os.Getenv("INTERVIEWD_DATABASE_URL"),
		RedisAddr:           envOr("INTERVIEWD_REDIS_ADDR", "localhost:6379"),
		JWTSecret:           os.Getenv("INTERVIEWD_JWT_SECRET"),
		TokenTTL:            envDurationOr("INTERVIEWD_TOKEN_TTL", 30*time.Minute),
		MediaURL:            envOr("INTERVIEWD_MEDIA_URL", "http://localhost:7880"),
		MediaAPIKey:         os.Getenv("INTERVIEWD_MEDIA_API_KEY"),
		MediaAPISecret:      os.Getenv("INTERVIEWD_MEDIA_API_SECRET"),
		S3Endpoint:          os.Getenv("INTERVIEWD_S3_ENDPOINT"),
		S3Region:            envOr("INTERVIEWD_S3_REGION", "us-east-1"),
		S3Bucket:            envOr("INTERVIEWD_S3_BUCKET", "interview-artifacts"),
		S3AccessKey:         os.Getenv("INTERVIEWD_S3_ACCESS_KEY"),
		S3SecretKey:         os.Getenv("INTERVIEWD_S3_SECRET_KEY"),
		PresignTTL:          envDurationOr("INTERVIEWD_PRESIGN_TTL", 15*time.Minute),
		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
		FeedbackModel:       envOr("INTERVIEWD_FEEDBACK_MODEL", "gemini-2.0-flash"),
		CORSAllowedOrigins:  make(map[string]struct{}),
		ReadHeaderTimeout:   envDurationOr("INTERVIEWD_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:         envDurationOr("INTERVIEWD_READ_TIMEOUT", 30*time.Second),
		ShutdownGracePeriod: envDurationOr("INTERVIEWD_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	for _, origin := range splitCSV(os.Getenv("INTERVIEWD_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("INTERVIEWD_DATABASE_URL must be set")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("INTERVIEWD_JWT_SECRET must be set")
	}
	if cfg.TokenTTL <= 0 {
		return Config{}, fmt.Errorf("INTERVIEWD_TOKEN_TTL must be > 0")
	}
	if cfg.PresignTTL <= 0 {
		return Config{}, fmt.Errorf("INTERVIEWD_PRESIGN_TTL must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("INTERVIEWD_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("INTERVIEWD_READ_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("INTERVIEWD_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
