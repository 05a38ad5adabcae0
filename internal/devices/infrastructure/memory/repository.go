package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	devices "energy-monitor/internal/devices/domain"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// DeviceRepository is an in-memory Device Store for demo/testing.
type DeviceRepository struct {
	mu    sync.RWMutex
	data  map[string]devices.Device
	clock Clock
	newID func() string
}

// Option configures the repository.
type Option func(*DeviceRepository)

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(r *DeviceRepository) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithIDGenerator overrides uuid ids.
func WithIDGenerator(fn func() string) Option {
	return func(r *DeviceRepository) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// NewDeviceRepository constructs a repository.
func NewDeviceRepository(opts ...Option) *DeviceRepository {
	repo := &DeviceRepository{
		data:  make(map[string]devices.Device),
		clock: systemClock{},
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// List returns owner devices newest first, filtered by query.
func (r *DeviceRepository) List(ctx context.Context, ownerID, query string) ([]devices.Device, error) {
	_ = ctx
	if ownerID == "" {
		return nil, errors.New("device repo: empty owner id")
	}
	r.mu.RLock()
	result := make([]devices.Device, 0, len(r.data))
	for _, d := range r.data {
		if d.OwnerID == ownerID && d.MatchesQuery(query) {
			result = append(result, d)
		}
	}
	r.mu.RUnlock()
	devices.SortNewestFirst(result)
	return result, nil
}

// Get loads an owner's device by id.
func (r *DeviceRepository) Get(ctx context.Context, ownerID, id string) (*devices.Device, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.data[id]
	if !ok || d.OwnerID != ownerID {
		return nil, nil
	}
	return &d, nil
}

// Create assigns id and timestamps and stores the device.
func (r *DeviceRepository) Create(ctx context.Context, device devices.Device) (*devices.Device, error) {
	_ = ctx
	if err := device.Validate(); err != nil {
		return nil, err
	}
	now := r.clock.Now()
	device.ID = r.newID()
	device.CreatedAt = now
	device.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.data[device.ID]; exists {
		return nil, errors.New("device repo: duplicate id")
	}
	r.data[device.ID] = device
	return &device, nil
}

// Update patches the device matching id and owner.
func (r *DeviceRepository) Update(ctx context.Context, ownerID, id string, patch devices.DevicePatch) (*devices.Device, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.data[id]
	if !ok || d.OwnerID != ownerID {
		return nil, nil
	}
	patch.Apply(&d)
	if err := d.Validate(); err != nil {
		return nil, err
	}
	d.UpdatedAt = r.clock.Now()
	r.data[id] = d
	return &d, nil
}

// Delete removes the device matching id and owner.
func (r *DeviceRepository) Delete(ctx context.Context, ownerID, id string) (bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.data[id]
	if !ok || d.OwnerID != ownerID {
		return false, nil
	}
	delete(r.data, id)
	return true, nil
}

// Len returns the number of stored devices across owners.
func (r *DeviceRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}
