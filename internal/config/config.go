// Package config loads the gateway configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the startup configuration surface of the gateway.
type Config struct {
	Addr string

	AuthSecret  string
	AuthIssuer  string
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	AuthExclude []string

	RateLimit    int
	RateWindow   time.Duration
	RateStrategy string

	Services map[string]string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// DefaultServices is the conventional in-cluster registry. GATEWAY_SERVICES
// entries are merged over it.
func DefaultServices() map[string]string {
	return map[string]string{
		"user":         "http://user-service:8081",
		"auth":         "http://auth-service:8082",
		"competency":   "http://competency-service:8083",
		"learning":     "http://learning-service:8084",
		"program":      "http://program-service:8085",
		"notification": "http://notification-service:8086",
	}
}

// Load reads configuration from the environment, failing fast on invalid
// values. The signing secret is the only required setting.
func Load() (Config, error) {
	cfg := Config{
		Addr:         envStr("GATEWAY_ADDR", ":8080"),
		AuthSecret:   strings.TrimSpace(os.Getenv("GATEWAY_AUTH_SECRET")),
		AuthIssuer:   envStr("GATEWAY_AUTH_ISSUER", "edugate"),
		AuthExclude:  envList("GATEWAY_AUTH_EXCLUDE", []string{"/healthz", "/readyz", "/metrics", "/api/v1/auth/"}),
		RateStrategy: envStr("GATEWAY_RATE_STRATEGY", "user"),
		Services:     DefaultServices(),

		RedisAddr:     strings.TrimSpace(os.Getenv("GATEWAY_REDIS_ADDR")),
		RedisPassword: os.Getenv("GATEWAY_REDIS_PASSWORD"),
	}

	if cfg.AuthSecret == "" {
		return Config{}, fmt.Errorf("GATEWAY_AUTH_SECRET is required")
	}

	var err error
	if cfg.AccessTTL, err = envDuration("GATEWAY_ACCESS_TTL", 15*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTTL, err = envDuration("GATEWAY_REFRESH_TTL", 14*24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.RateLimit, err = envInt("GATEWAY_RATE_LIMIT", 100); err != nil {
		return Config{}, err
	}
	if cfg.RateWindow, err = envDuration("GATEWAY_RATE_WINDOW", 60*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.RedisDB, err = envInt("GATEWAY_REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.RateLimit <= 0 {
		return Config{}, fmt.Errorf("GATEWAY_RATE_LIMIT must be positive")
	}
	if cfg.RateWindow <= 0 {
		return Config{}, fmt.Errorf("GATEWAY_RATE_WINDOW must be positive")
	}

	if err := mergeServices(cfg.Services, os.Getenv("GATEWAY_SERVICES")); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// mergeServices parses "name=baseURL,name=baseURL" pairs over the defaults.
func mergeServices(dst map[string]string, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, url, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		url = strings.TrimSpace(url)
		if !ok || name == "" || url == "" {
			return fmt.Errorf("GATEWAY_SERVICES: malformed entry %q", pair)
		}
		dst[name] = url
	}
	return nil
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envList(key string, def []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func envInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", key, raw)
	}
	return v, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a duration", key, raw)
	}
	return d, nil
}
