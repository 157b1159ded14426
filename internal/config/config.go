package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults match the security posture the service ships with.
const (
	DefaultAddr       = ":8080"
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
	DefaultHashCost   = 12
)

// Config carries process configuration. Instances are built once at startup
// and treated as immutable afterwards.
type Config struct {
	Addr          string
	DatabaseDSN   string
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	HashCost      int
}

// FromEnv loads configuration from AUTHD_* environment variables and
// validates it.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:          envOr("AUTHD_ADDR", DefaultAddr),
		DatabaseDSN:   strings.TrimSpace(os.Getenv("AUTHD_PG_DSN")),
		AccessSecret:  strings.TrimSpace(os.Getenv("AUTHD_ACCESS_SECRET")),
		RefreshSecret: strings.TrimSpace(os.Getenv("AUTHD_REFRESH_SECRET")),
		AccessTTL:     DefaultAccessTTL,
		RefreshTTL:    DefaultRefreshTTL,
		HashCost:      DefaultHashCost,
	}

	var err error
	if cfg.AccessTTL, err = envDuration("AUTHD_ACCESS_TTL", cfg.AccessTTL); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTTL, err = envDuration("AUTHD_REFRESH_TTL", cfg.RefreshTTL); err != nil {
		return Config{}, err
	}
	if cfg.HashCost, err = envInt("AUTHD_HASH_COST", cfg.HashCost); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces the invariants the auth core relies on.
func (c Config) Validate() error {
	if c.AccessSecret == "" {
		return errors.New("config: AUTHD_ACCESS_SECRET is required")
	}
	if c.RefreshSecret == "" {
		return errors.New("config: AUTHD_REFRESH_SECRET is required")
	}
	if c.AccessSecret == c.RefreshSecret {
		return errors.New("config: access and refresh secrets must differ")
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return errors.New("config: token TTLs must be positive")
	}
	if c.RefreshTTL <= c.AccessTTL {
		return errors.New("config: refresh TTL must exceed access TTL")
	}
	if c.HashCost < 4 || c.HashCost > 31 {
		return fmt.Errorf("config: hash cost %d out of bcrypt range", c.HashCost)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: parse %s: %w", key, err)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: parse %s: %w", key, err)
	}
	return n, nil
}
