// Package config loads service settings from the environment and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"energy-monitor/internal/devices/cache"
	devices "energy-monitor/internal/devices/domain"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverREST     = "rest"
	DriverBolt     = "bolt"
	DriverMemory   = "memory"
)

// InfluxConfig enables the consumption snapshot sink when URL is set.
type InfluxConfig struct {
	URL    string `yaml:"url"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
	Token  string `yaml:"token"`
}

// Config defines service configuration.
type Config struct {
	HTTPAddr            string        `yaml:"http_addr"`
	StoreDriver         string        `yaml:"store_driver"`
	DatabaseURL         string        `yaml:"database_url"`
	DeviceAPIURL        string        `yaml:"device_api_url"`
	DeviceAPITimeout    time.Duration `yaml:"device_api_timeout"`
	BoltPath            string        `yaml:"bolt_path"`
	PricePerKWh         float64       `yaml:"price_per_kwh"`
	Currency            string        `yaml:"currency"`
	CacheTTL            time.Duration `yaml:"cache_ttl"`
	JWTSecret           string        `yaml:"jwt_secret"`
	WebhookURL          string        `yaml:"webhook_url"`
	WebhookTemplate     string        `yaml:"webhook_template"`
	WebhookDedupeWindow time.Duration `yaml:"webhook_dedupe_window"`
	Influx              InfluxConfig  `yaml:"influx"`
}

// Load reads env defaults, then overlays CONFIG_FILE when set.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:            getenvDefault("HTTP_ADDR", ":8080"),
		StoreDriver:         getenvDefault("STORE_DRIVER", DriverPostgres),
		DatabaseURL:         getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		DeviceAPIURL:        getenvDefault("DEVICE_API_URL", ""),
		DeviceAPITimeout:    getenvDuration("DEVICE_API_TIMEOUT", 10*time.Second),
		BoltPath:            getenvDefault("BOLT_PATH", "var/devices.db"),
		PricePerKWh:         getenvFloatDefault("PRICE_PER_KWH", devices.DefaultPricePerKWh),
		Currency:            getenvDefault("CURRENCY", devices.DefaultCurrency),
		CacheTTL:            getenvDuration("DEVICE_CACHE_TTL", cache.DefaultTTL),
		JWTSecret:           getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		WebhookURL:          getenvDefault("DEVICES_WEBHOOK_URL", ""),
		WebhookTemplate:     getenvDefault("DEVICES_WEBHOOK_TEMPLATE", ""),
		WebhookDedupeWindow: getenvDuration("DEVICES_WEBHOOK_DEDUP_WINDOW", 0),
		Influx: InfluxConfig{
			URL:    getenvDefault("INFLUXDB_URL", ""),
			Org:    getenvDefault("INFLUXDB_ORG", ""),
			Bucket: getenvDefault("INFLUXDB_BUCKET", ""),
			Token:  getenvDefault("INFLUXDB_API_TOKEN", ""),
		},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	return cfg, cfg.Validate()
}

// Validate checks required settings for the selected driver.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL or PG_DSN is required")
		}
	case DriverREST:
		if c.DeviceAPIURL == "" {
			return errors.New("config: DEVICE_API_URL is required")
		}
	case DriverBolt:
		if c.BoltPath == "" {
			return errors.New("config: BOLT_PATH is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unknown store driver %q", c.StoreDriver)
	}
	if c.JWTSecret == "" {
		return errors.New("config: AUTH_JWT_SECRET is required")
	}
	if c.PricePerKWh < 0 {
		return errors.New("config: PRICE_PER_KWH must not be negative")
	}
	if c.CacheTTL < 0 {
		return errors.New("config: DEVICE_CACHE_TTL must not be negative")
	}
	if c.Influx.URL != "" && c.Influx.Bucket == "" {
		return errors.New("config: INFLUXDB_BUCKET is required with INFLUXDB_URL")
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
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
