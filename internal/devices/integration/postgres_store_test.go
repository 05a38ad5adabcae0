package integration_test

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"energy-monitor/internal/audit"
	"energy-monitor/internal/auth"
	"energy-monitor/internal/devices/application"
	devices "energy-monitor/internal/devices/domain"
	"energy-monitor/internal/devices/infrastructure/postgres"
	"energy-monitor/internal/devices/infrastructure/storetest"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if !tableExists(db, "devices") || !tableExists(db, "device_audit_logs") {
		t.Skip("missing tables; run migrations")
	}
	return db
}

func TestDeviceStoreContract_Postgres(t *testing.T) {
	db := openDB(t)
	storetest.Run(t, func(t *testing.T, clock *storetest.StepClock) devices.Repository {
		if _, err := db.ExecContext(context.Background(), "DELETE FROM devices WHERE owner_id IN ('owner-a', 'owner-b')"); err != nil {
			t.Fatalf("cleanup: %v", err)
		}
		return postgres.NewDeviceRepository(db, postgres.WithClock(clock))
	})
}

func TestDeviceServiceAudit_Postgres(t *testing.T) {
	db := openDB(t)
	ctx := auth.WithPrincipal(context.Background(), "owner-it-audit")
	_, _ = db.ExecContext(ctx, "DELETE FROM devices WHERE owner_id = $1", "owner-it-audit")
	_, _ = db.ExecContext(ctx, "DELETE FROM device_audit_logs WHERE owner_id = $1", "owner-it-audit")

	repo := postgres.NewDeviceRepository(db, postgres.WithAuditLogger(audit.NewRepository(db)))
	service, err := application.NewService(repo, application.WithCache(application.NewDeviceCache()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	created, err := service.Create(ctx, devices.DeviceInput{Name: "100% Fan_2", PowerWatts: 60, HoursPerDay: 8})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	found, err := service.Search(ctx, "0% f")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) != 1 || found[0].ID != created.ID {
		t.Fatalf("expected literal percent match, got %+v", found)
	}
	none, err := service.Search(ctx, "Fan%2")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected percent to be literal, got %+v", none)
	}
	if err := service.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM device_audit_logs WHERE owner_id = $1", "owner-it-audit").Scan(&count); err != nil {
		t.Fatalf("count audit: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 audit entries, got %d", count)
	}
}

func tableExists(db *sql.DB, name string) bool {
	var exists bool
	if err := db.QueryRow(`SELECT EXISTS (
	SELECT 1 FROM information_schema.tables WHERE table_name = $1
)`, name).Scan(&exists); err != nil {
		return false
	}
	return exists
}
