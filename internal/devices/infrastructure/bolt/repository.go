// Package bolt keeps devices in a local bbolt file for single-node deployments.
package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	devices "energy-monitor/internal/devices/domain"
)

const defaultBucket = "devices"

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// OpenDB opens or creates the database file at path.
func OpenDB(path string, opts *bbolt.Options) (*bbolt.DB, error) {
	if path == "" {
		return nil, errors.New("device bolt: empty path")
	}
	if opts == nil {
		opts = &bbolt.Options{Timeout: time.Second}
	}
	return bbolt.Open(path, 0o600, opts)
}

// DeviceRepository stores one JSON document per device id in a single bucket.
type DeviceRepository struct {
	db     *bbolt.DB
	bucket []byte
	clock  Clock
}

// Option configures the repository.
type Option func(*DeviceRepository)

// WithBucket overrides the bucket name.
func WithBucket(name string) Option {
	return func(r *DeviceRepository) {
		if name != "" {
			r.bucket = []byte(name)
		}
	}
}

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(r *DeviceRepository) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// NewDeviceRepository constructs a repository and ensures the bucket exists.
func NewDeviceRepository(db *bbolt.DB, opts ...Option) (*DeviceRepository, error) {
	if db == nil {
		return nil, errors.New("device bolt: nil db")
	}
	repo := &DeviceRepository{db: db, bucket: []byte(defaultBucket), clock: systemClock{}}
	for _, opt := range opts {
		opt(repo)
	}
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(repo.bucket)
		return err
	})
	if err != nil {
		return nil, err
	}
	return repo, nil
}

// List returns owner devices newest first, filtered by query.
func (r *DeviceRepository) List(ctx context.Context, ownerID, query string) ([]devices.Device, error) {
	if ownerID == "" {
		return nil, errors.New("device bolt: empty owner id")
	}
	result := make([]devices.Device, 0)
	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(r.bucket).ForEach(func(_, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var d devices.Device
			if err := json.Unmarshal(v, &d); err != nil {
				return err
			}
			if d.OwnerID == ownerID && d.MatchesQuery(query) {
				result = append(result, d)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	devices.SortNewestFirst(result)
	return result, nil
}

// Get loads an owner's device by id.
func (r *DeviceRepository) Get(ctx context.Context, ownerID, id string) (*devices.Device, error) {
	_ = ctx
	var found *devices.Device
	err := r.db.View(func(tx *bbolt.Tx) error {
		d, err := r.read(tx, ownerID, id)
		found = d
		return err
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// Create assigns id and timestamps and stores the device.
func (r *DeviceRepository) Create(ctx context.Context, device devices.Device) (*devices.Device, error) {
	_ = ctx
	if device.OwnerID == "" {
		return nil, errors.New("device bolt: empty owner id")
	}
	if err := device.Validate(); err != nil {
		return nil, err
	}
	now := r.clock.Now().UTC()
	device.ID = uuid.NewString()
	device.CreatedAt = now
	device.UpdatedAt = now

	err := r.db.Update(func(tx *bbolt.Tx) error {
		return r.write(tx, device)
	})
	if err != nil {
		return nil, err
	}
	return &device, nil
}

// Update patches the device matching id and owner inside one write transaction.
func (r *DeviceRepository) Update(ctx context.Context, ownerID, id string, patch devices.DevicePatch) (*devices.Device, error) {
	_ = ctx
	var updated *devices.Device
	err := r.db.Update(func(tx *bbolt.Tx) error {
		d, err := r.read(tx, ownerID, id)
		if err != nil || d == nil {
			return err
		}
		patch.Apply(d)
		if err := d.Validate(); err != nil {
			return err
		}
		d.UpdatedAt = r.clock.Now().UTC()
		if err := r.write(tx, *d); err != nil {
			return err
		}
		updated = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the device matching id and owner.
func (r *DeviceRepository) Delete(ctx context.Context, ownerID, id string) (bool, error) {
	_ = ctx
	removed := false
	err := r.db.Update(func(tx *bbolt.Tx) error {
		d, err := r.read(tx, ownerID, id)
		if err != nil || d == nil {
			return err
		}
		removed = true
		return tx.Bucket(r.bucket).Delete([]byte(id))
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

func (r *DeviceRepository) read(tx *bbolt.Tx, ownerID, id string) (*devices.Device, error) {
	data := tx.Bucket(r.bucket).Get([]byte(id))
	if data == nil {
		return nil, nil
	}
	var d devices.Device
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	if d.OwnerID != ownerID {
		return nil, nil
	}
	return &d, nil
}

func (r *DeviceRepository) write(tx *bbolt.Tx, device devices.Device) error {
	data, err := json.Marshal(device)
	if err != nil {
		return err
	}
	return tx.Bucket(r.bucket).Put([]byte(device.ID), data)
}
