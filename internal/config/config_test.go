package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"HTTP_ADDR", "STORE_DRIVER", "DATABASE_URL", "PG_DSN", "DEVICE_API_URL", "DEVICE_API_TIMEOUT",
		"BOLT_PATH", "PRICE_PER_KWH", "CURRENCY", "DEVICE_CACHE_TTL", "AUTH_JWT_SECRET", "JWT_SECRET",
		"DEVICES_WEBHOOK_URL", "DEVICES_WEBHOOK_TEMPLATE", "DEVICES_WEBHOOK_DEDUP_WINDOW",
		"INFLUXDB_URL", "INFLUXDB_ORG", "INFLUXDB_BUCKET", "INFLUXDB_API_TOKEN", "CONFIG_FILE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("AUTH_JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, DriverMemory, cfg.StoreDriver)
	require.Equal(t, 1.13, cfg.PricePerKWh)
	require.Equal(t, "BRL", cfg.Currency)
	require.Equal(t, 5*time.Minute, cfg.CacheTTL)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "REST")
	t.Setenv("DEVICE_API_URL", "http://devices.local/api/v1")
	t.Setenv("DEVICE_API_TIMEOUT", "3s")
	t.Setenv("PRICE_PER_KWH", "0.95")
	t.Setenv("DEVICE_CACHE_TTL", "0s")
	t.Setenv("JWT_SECRET", "legacy")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DriverREST, cfg.StoreDriver)
	require.Equal(t, 3*time.Second, cfg.DeviceAPITimeout)
	require.Equal(t, 0.95, cfg.PricePerKWh)
	require.Zero(t, cfg.CacheTTL)
	require.Equal(t, "legacy", cfg.JWTSecret)
}

func TestLoadYAMLOverlay(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store_driver: bolt
bolt_path: /tmp/devices.db
price_per_kwh: 0.8
currency: USD
cache_ttl: 30s
jwt_secret: from-file
influx:
  url: http://influx:8086
  bucket: energy
`), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DriverBolt, cfg.StoreDriver)
	require.Equal(t, "/tmp/devices.db", cfg.BoltPath)
	require.Equal(t, 0.8, cfg.PricePerKWh)
	require.Equal(t, "USD", cfg.Currency)
	require.Equal(t, 30*time.Second, cfg.CacheTTL)
	require.Equal(t, "energy", cfg.Influx.Bucket)
}

func TestValidate(t *testing.T) {
	base := Config{StoreDriver: DriverMemory, JWTSecret: "s"}
	require.NoError(t, base.Validate())

	cases := []Config{
		{StoreDriver: DriverPostgres, JWTSecret: "s"},
		{StoreDriver: DriverREST, JWTSecret: "s"},
		{StoreDriver: DriverBolt, JWTSecret: "s"},
		{StoreDriver: "sqlite", JWTSecret: "s"},
		{StoreDriver: DriverMemory},
		{StoreDriver: DriverMemory, JWTSecret: "s", PricePerKWh: -1},
		{StoreDriver: DriverMemory, JWTSecret: "s", CacheTTL: -time.Second},
		{StoreDriver: DriverMemory, JWTSecret: "s", Influx: InfluxConfig{URL: "http://influx"}},
	}
	for _, c := range cases {
		require.Error(t, c.Validate(), "%+v", c)
	}
}
