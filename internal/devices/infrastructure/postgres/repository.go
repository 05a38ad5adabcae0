package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"energy-monitor/internal/audit"
	"energy-monitor/internal/auth"
	devices "energy-monitor/internal/devices/domain"
)

const defaultDevicesTable = "devices"

const deviceColumns = "id, owner_id, name, power_watts, hours_per_day, quantity, created_at, updated_at"

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// DeviceRepository is the hosted Device Store backed by Postgres.
type DeviceRepository struct {
	db    DBTX
	table string
	clock Clock
	audit audit.Logger
}

// DeviceOption configures the repository.
type DeviceOption func(*DeviceRepository)

// WithDeviceTable overrides the default table name.
func WithDeviceTable(table string) DeviceOption {
	return func(repo *DeviceRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// WithClock overrides the default clock.
func WithClock(clock Clock) DeviceOption {
	return func(repo *DeviceRepository) {
		if clock != nil {
			repo.clock = clock
		}
	}
}

// WithAuditLogger records every mutation.
func WithAuditLogger(logger audit.Logger) DeviceOption {
	return func(repo *DeviceRepository) {
		repo.audit = logger
	}
}

// NewDeviceRepository constructs a repository.
func NewDeviceRepository(db DBTX, opts ...DeviceOption) *DeviceRepository {
	repo := &DeviceRepository{db: db, table: defaultDevicesTable, clock: systemClock{}}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// List returns owner devices newest first; a non-blank query filters by name, ignoring case.
func (r *DeviceRepository) List(ctx context.Context, ownerID, query string) ([]devices.Device, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("device repo: nil db")
	}
	if ownerID == "" {
		return nil, errors.New("device repo: empty owner id")
	}

	args := []any{ownerID}
	where := "owner_id = $1"
	if q := strings.TrimSpace(query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		where += ` AND name ILIKE $2 ESCAPE '\'`
	}
	stmt := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE %s
ORDER BY created_at DESC, id DESC`, deviceColumns, r.table, where)

	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]devices.Device, 0)
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, device)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Get loads an owner's device by id.
func (r *DeviceRepository) Get(ctx context.Context, ownerID, id string) (*devices.Device, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("device repo: nil db")
	}
	if ownerID == "" || id == "" {
		return nil, errors.New("device repo: invalid query")
	}

	stmt := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE owner_id = $1 AND id = $2
LIMIT 1`, deviceColumns, r.table)

	device, err := scanDevice(r.db.QueryRowContext(ctx, stmt, ownerID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &device, nil
}

// Create inserts a device with a generated id.
func (r *DeviceRepository) Create(ctx context.Context, device devices.Device) (*devices.Device, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("device repo: nil db")
	}
	if device.OwnerID == "" {
		return nil, errors.New("device repo: empty owner id")
	}
	if err := device.Validate(); err != nil {
		return nil, err
	}
	now := r.clock.Now().UTC()
	device.ID = uuid.NewString()
	device.CreatedAt = now
	device.UpdatedAt = now

	stmt := fmt.Sprintf(`
INSERT INTO %s (%s)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, r.table, deviceColumns)
	if _, err := r.db.ExecContext(ctx, stmt,
		device.ID, device.OwnerID, device.Name, device.PowerWatts, device.HoursPerDay,
		device.Quantity, device.CreatedAt, device.UpdatedAt); err != nil {
		return nil, err
	}
	r.logAudit(ctx, "device.create", device.OwnerID, device.ID, device)
	return &device, nil
}

// Update patches the device matching id and owner. A missing row yields (nil, nil).
func (r *DeviceRepository) Update(ctx context.Context, ownerID, id string, patch devices.DevicePatch) (*devices.Device, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("device repo: nil db")
	}
	if ownerID == "" || id == "" {
		return nil, errors.New("device repo: invalid query")
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Name != nil {
		add("name", strings.TrimSpace(*patch.Name))
	}
	if patch.PowerWatts != nil {
		add("power_watts", *patch.PowerWatts)
	}
	if patch.HoursPerDay != nil {
		add("hours_per_day", *patch.HoursPerDay)
	}
	if patch.Quantity != nil {
		add("quantity", *patch.Quantity)
	}
	if len(sets) == 0 {
		return r.Get(ctx, ownerID, id)
	}
	add("updated_at", r.clock.Now().UTC())
	args = append(args, ownerID, id)

	stmt := fmt.Sprintf(`
UPDATE %s
SET %s
WHERE owner_id = $%d AND id = $%d
RETURNING %s`, r.table, strings.Join(sets, ", "), len(args)-1, len(args), deviceColumns)

	device, err := scanDevice(r.db.QueryRowContext(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	r.logAudit(ctx, "device.update", ownerID, id, patch)
	return &device, nil
}

// Delete removes the device matching id and owner and reports whether a row went away.
func (r *DeviceRepository) Delete(ctx context.Context, ownerID, id string) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("device repo: nil db")
	}
	if ownerID == "" || id == "" {
		return false, errors.New("device repo: invalid query")
	}
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE owner_id = $1 AND id = $2`, r.table)
	res, err := r.db.ExecContext(ctx, stmt, ownerID, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected > 0 {
		r.logAudit(ctx, "device.delete", ownerID, id, nil)
	}
	return affected > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (devices.Device, error) {
	var device devices.Device
	if err := row.Scan(
		&device.ID,
		&device.OwnerID,
		&device.Name,
		&device.PowerWatts,
		&device.HoursPerDay,
		&device.Quantity,
		&device.CreatedAt,
		&device.UpdatedAt,
	); err != nil {
		return devices.Device{}, err
	}
	device.CreatedAt = device.CreatedAt.UTC()
	device.UpdatedAt = device.UpdatedAt.UTC()
	return device, nil
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}

func (r *DeviceRepository) logAudit(ctx context.Context, action, ownerID, deviceID string, payload any) {
	if r.audit == nil {
		return
	}
	var meta []byte
	if payload != nil {
		meta, _ = json.Marshal(payload)
	}
	_ = r.audit.Log(ctx, audit.Entry{
		OwnerID:      ownerID,
		Actor:        auth.SubjectFromContext(ctx),
		Role:         string(auth.RoleFromContext(ctx)),
		Action:       action,
		ResourceType: "device",
		ResourceID:   deviceID,
		Metadata:     meta,
		CreatedAt:    r.clock.Now().UTC(),
	})
}
