package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"energy-monitor/internal/audit"
	devices "energy-monitor/internal/devices/domain"
	devicebolt "energy-monitor/internal/devices/infrastructure/bolt"
	devicerepo "energy-monitor/internal/devices/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type config struct {
	driver          string
	dsn             string
	boltPath        string
	ownerPrefix     string
	ownerCount      int
	devicesPerOwner int
	withAudit       bool
}

type appliance struct {
	name  string
	watts float64
	hours float64
	qty   int
}

var catalog = []appliance{
	{"Refrigerator", 150, 24, 1},
	{"Air Conditioner", 1200, 8, 1},
	{"TV", 100, 5, 2},
	{"Electric Shower", 5500, 0.5, 1},
	{"Washing Machine", 500, 1, 1},
	{"Microwave", 1100, 0.3, 1},
	{"LED Lamp", 9, 6, 8},
	{"Laptop", 65, 8, 2},
	{"Router", 12, 24, 1},
	{"Air Fryer", 1500, 0.5, 1},
}

func main() {
	cfg := parseConfig()
	if cfg.ownerCount <= 0 {
		log.Fatal("owner-count must be > 0")
	}
	if cfg.devicesPerOwner <= 0 {
		log.Fatal("devices-per-owner must be > 0")
	}

	repo, closeFn, err := openRepository(cfg)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer closeFn()

	ctx := context.Background()
	log.Printf("seeding devices: driver=%s owners=%d per_owner=%d", cfg.driver, cfg.ownerCount, cfg.devicesPerOwner)
	total, err := seedDevices(ctx, repo, buildOwnerIDs(cfg.ownerPrefix, cfg.ownerCount), cfg.devicesPerOwner)
	if err != nil {
		log.Fatalf("seed devices: %v", err)
	}
	log.Printf("device seed completed: %d devices", total)
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.driver, "driver", envOrDefault("STORE_DRIVER", "postgres"), "store driver (postgres or bolt)")
	flag.StringVar(&cfg.dsn, "pg-dsn", envOrDefault("PG_DSN", envOrDefault("DATABASE_URL", "")), "Postgres DSN")
	flag.StringVar(&cfg.boltPath, "bolt-path", envOrDefault("BOLT_PATH", "data/devices.db"), "bbolt file path")
	flag.StringVar(&cfg.ownerPrefix, "owner-prefix", envOrDefault("OWNER_PREFIX", "user-seed-"), "owner id prefix")
	flag.IntVar(&cfg.ownerCount, "owner-count", envOrInt("OWNER_COUNT", 3), "number of owners to seed")
	flag.IntVar(&cfg.devicesPerOwner, "devices-per-owner", envOrInt("DEVICES_PER_OWNER", 5), "devices per owner")
	flag.BoolVar(&cfg.withAudit, "audit", envOrBool("SEED_AUDIT", false), "record audit entries for seeded devices")
	flag.Parse()
	cfg.driver = strings.ToLower(strings.TrimSpace(cfg.driver))
	return cfg
}

func openRepository(cfg config) (devices.Repository, func(), error) {
	switch cfg.driver {
	case "postgres":
		if cfg.dsn == "" {
			return nil, nil, fmt.Errorf("PG_DSN or DATABASE_URL is required")
		}
		db, err := sql.Open("pgx", cfg.dsn)
		if err != nil {
			return nil, nil, err
		}
		var opts []devicerepo.DeviceOption
		if cfg.withAudit {
			opts = append(opts, devicerepo.WithAuditLogger(audit.NewRepository(db)))
		}
		return devicerepo.NewDeviceRepository(db, opts...), func() { _ = db.Close() }, nil
	case "bolt":
		db, err := devicebolt.OpenDB(cfg.boltPath, nil)
		if err != nil {
			return nil, nil, err
		}
		repo, err := devicebolt.NewDeviceRepository(db)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return repo, func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported driver %q", cfg.driver)
	}
}

func buildOwnerIDs(prefix string, count int) []string {
	ids := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		ids = append(ids, fmt.Sprintf("%s%03d", prefix, i))
	}
	return ids
}

func seedDevices(ctx context.Context, repo devices.Repository, owners []string, perOwner int) (int, error) {
	total := 0
	for o, owner := range owners {
		for i := 0; i < perOwner; i++ {
			item := catalog[(o+i)%len(catalog)]
			qty := item.qty
			input := devices.DeviceInput{Name: item.name, PowerWatts: item.watts, HoursPerDay: item.hours, Quantity: &qty}
			if err := input.Validate(); err != nil {
				return total, fmt.Errorf("catalog %s: %w", item.name, err)
			}
			if _, err := repo.Create(ctx, input.NewDevice(owner)); err != nil {
				return total, err
			}
			total++
		}
	}
	return total, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envOrBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
