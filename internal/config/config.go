package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultHTTPAddr             = ":8080"
	defaultDatabaseURL          = "file:slapp.db"
	defaultLogLevel             = "info"
	defaultPendingTTL           = "24h"
	defaultSweepInterval        = "1m"
	defaultSweepBatch           = "100"
	defaultSweepWorkers         = "4"
	defaultAllowOverrideOpening = "true"
	defaultCORSOrigins          = "http://localhost:3000,http://localhost:5173"
)

type Config struct {
	AppEnv               string
	HTTPAddr             string
	DatabaseURL          string
	LogLevel             logrus.Level
	PendingTTL           time.Duration
	SweepInterval        time.Duration
	SweepBatch           int
	SweepWorkers         int
	AllowOverrideOpening bool
	CORSAllowedOrigins   []string
}

func Load() (*Config, error) {
	cfg := &Config{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = strings.TrimSpace(os.Getenv("ENV"))
	}
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.HTTPAddr = strings.TrimSpace(getEnv("HTTP_ADDR", defaultHTTPAddr))
	cfg.DatabaseURL = strings.TrimSpace(getEnv("DATABASE_URL", defaultDatabaseURL))

	var err error
	cfg.LogLevel, err = logrus.ParseLevel(strings.TrimSpace(getEnv("LOG_LEVEL", defaultLogLevel)))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	cfg.PendingTTL, err = parseDurationEnv("PENDING_TTL", defaultPendingTTL)
	if err != nil {
		return nil, err
	}

	cfg.SweepInterval, err = parseDurationEnv("EXPIRY_SWEEP_INTERVAL", defaultSweepInterval)
	if err != nil {
		return nil, err
	}

	cfg.SweepBatch, err = parseIntEnv("EXPIRY_SWEEP_BATCH", defaultSweepBatch)
	if err != nil {
		return nil, err
	}

	cfg.SweepWorkers, err = parseIntEnv("EXPIRY_SWEEP_WORKERS", defaultSweepWorkers)
	if err != nil {
		return nil, err
	}

	cfg.AllowOverrideOpening = parseBoolEnv("ALLOW_OVERRIDE_OPENING", defaultAllowOverrideOpening)
	cfg.CORSAllowedOrigins = parseListEnv("CORS_ALLOWED_ORIGINS", defaultCORSOrigins)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Fields is the non-secret part of the config, for startup logs.
func (c *Config) Fields() logrus.Fields {
	return logrus.Fields{
		"env":                    c.AppEnv,
		"http_addr":              c.HTTPAddr,
		"pending_ttl":            c.PendingTTL.String(),
		"sweep_interval":         c.SweepInterval.String(),
		"sweep_batch":            c.SweepBatch,
		"sweep_workers":          c.SweepWorkers,
		"allow_override_opening": c.AllowOverrideOpening,
	}
}

func validateConfig(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	if cfg.PendingTTL <= 0 {
		return fmt.Errorf("PENDING_TTL must be > 0")
	}
	if cfg.SweepInterval <= 0 {
		return fmt.Errorf("EXPIRY_SWEEP_INTERVAL must be > 0")
	}
	if cfg.SweepBatch <= 0 {
		return fmt.Errorf("EXPIRY_SWEEP_BATCH must be > 0")
	}
	if cfg.SweepWorkers <= 0 {
		return fmt.Errorf("EXPIRY_SWEEP_WORKERS must be > 0")
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		return fmt.Errorf("CORS_ALLOWED_ORIGINS must list at least one origin")
	}

	if isProdLike(cfg.AppEnv) {
		if !strings.HasPrefix(cfg.DatabaseURL, "postgres://") && !strings.HasPrefix(cfg.DatabaseURL, "postgresql://") {
			return fmt.Errorf("in prod/release DATABASE_URL must point to PostgreSQL")
		}
		for _, o := range cfg.CORSAllowedOrigins {
			if o == "*" {
				return fmt.Errorf("in prod/release CORS_ALLOWED_ORIGINS must not contain *")
			}
		}
	}

	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseIntEnv(name, fallback string) (int, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func parseListEnv(name, fallback string) []string {
	var out []string
	for _, v := range strings.Split(getEnv(name, fallback), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
