package application

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"energy-monitor/internal/auth"
	"energy-monitor/internal/devices/cache"
	devices "energy-monitor/internal/devices/domain"
	"energy-monitor/internal/eventbus"
	"energy-monitor/internal/observability/metrics"
)

const (
	opList   = "list"
	opSearch = "search"
	opGet    = "get"
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
)

// keySep cannot appear in owner ids or queries typed by users.
const keySep = "\x1f"

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// DeviceCache is the read-through cache consulted by list, search and get.
type DeviceCache = cache.Cache[[]devices.Device]

// NewDeviceCache builds a cache sized for the access layer.
func NewDeviceCache(opts ...cache.Option) *DeviceCache {
	return cache.New[[]devices.Device](opts...)
}

// Service is the device access layer: validation, owner-scoped CRUD against the
// Device Store, consumption/cost figures and an optional read-through cache.
type Service struct {
	repo     devices.Repository
	cache    *DeviceCache
	bus      eventbus.EventBus
	clock    Clock
	logger   *log.Logger
	rate     float64
	currency string
}

// ServiceOption customizes the service.
type ServiceOption func(*Service)

// WithCache enables read-through caching.
func WithCache(c *DeviceCache) ServiceOption {
	return func(s *Service) {
		s.cache = c
	}
}

// WithEventBus overrides the in-process change bus.
func WithEventBus(bus eventbus.EventBus) ServiceOption {
	return func(s *Service) {
		if bus != nil {
			s.bus = bus
		}
	}
}

// WithClock assigns a clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *log.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithPricePerKWh sets the tariff used for cost figures.
func WithPricePerKWh(rate float64) ServiceOption {
	return func(s *Service) {
		if rate >= 0 {
			s.rate = rate
		}
	}
}

// WithCurrency labels cost figures.
func WithCurrency(currency string) ServiceOption {
	return func(s *Service) {
		if currency != "" {
			s.currency = currency
		}
	}
}

// NewService constructs the access layer.
func NewService(repo devices.Repository, opts ...ServiceOption) (*Service, error) {
	if repo == nil {
		return nil, errors.New("devices: nil repository")
	}
	service := &Service{
		repo:     repo,
		bus:      eventbus.NewInMemoryBus(),
		clock:    systemClock{},
		rate:     devices.DefaultPricePerKWh,
		currency: devices.DefaultCurrency,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// PricePerKWh returns the configured tariff.
func (s *Service) PricePerKWh() float64 { return s.rate }

// Currency returns the configured currency label.
func (s *Service) Currency() string { return s.currency }

// ListAll returns the principal's devices, newest first.
func (s *Service) ListAll(ctx context.Context) (list []devices.Device, err error) {
	defer s.observe(opList, time.Now(), &err)
	owner, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	return s.cachedList(ctx, opList, listKey(owner), owner, "")
}

// Search returns the principal's devices whose name contains query, ignoring case.
// A blank query behaves exactly as ListAll.
func (s *Service) Search(ctx context.Context, query string) (list []devices.Device, err error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.ListAll(ctx)
	}
	defer s.observe(opSearch, time.Now(), &err)
	owner, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	return s.cachedList(ctx, opSearch, searchKey(owner, query), owner, query)
}

// GetByID returns the principal's device or (nil, nil) when absent.
func (s *Service) GetByID(ctx context.Context, id string) (device *devices.Device, err error) {
	defer s.observe(opGet, time.Now(), &err)
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, devices.NewValidationError("id", "must not be empty")
	}
	owner, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}

	key := getKey(owner, id)
	if cached, ok := s.lookup(opGet, key); ok && len(cached) == 1 {
		d := cached[0]
		return &d, nil
	}

	found, err := s.repo.Get(ctx, owner, id)
	if err != nil {
		return nil, devices.NewStoreError("get", err)
	}
	if found == nil {
		return nil, nil
	}
	s.store(key, []devices.Device{*found})
	d := *found
	return &d, nil
}

// Create validates input, stamps the owner and persists the device.
func (s *Service) Create(ctx context.Context, input devices.DeviceInput) (device *devices.Device, err error) {
	defer s.observe(opCreate, time.Now(), &err)
	if err := input.Validate(); err != nil {
		return nil, err
	}
	owner, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, input.NewDevice(owner))
	if err != nil {
		return nil, devices.NewStoreError("create", err)
	}
	if created == nil {
		return nil, devices.NewStoreError("create", errors.New("store returned no device"))
	}
	s.invalidateLists(owner)
	s.publish(ctx, ActionCreated, owner, created.ID)
	return created, nil
}

// Update applies a partial update restricted to the principal's device.
// It returns (nil, nil) when no device matches id and owner.
func (s *Service) Update(ctx context.Context, id string, patch devices.DevicePatch) (device *devices.Device, err error) {
	defer s.observe(opUpdate, time.Now(), &err)
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, devices.NewValidationError("id", "must not be empty")
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	owner, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		found, err := s.repo.Get(ctx, owner, id)
		if err != nil {
			return nil, devices.NewStoreError("get", err)
		}
		return found, nil
	}

	updated, err := s.repo.Update(ctx, owner, id, patch.Normalized())
	if err != nil {
		return nil, devices.NewStoreError("update", err)
	}
	if updated == nil {
		return nil, nil
	}
	s.cache.Delete(getKey(owner, id))
	s.invalidateLists(owner)
	s.publish(ctx, ActionUpdated, owner, id)
	return updated, nil
}

// Delete removes the principal's device. Deleting a missing device succeeds.
func (s *Service) Delete(ctx context.Context, id string) (err error) {
	defer s.observe(opDelete, time.Now(), &err)
	id = strings.TrimSpace(id)
	if id == "" {
		return devices.NewValidationError("id", "must not be empty")
	}
	owner, err := s.principal(ctx)
	if err != nil {
		return err
	}

	removed, err := s.repo.Delete(ctx, owner, id)
	if err != nil {
		return devices.NewStoreError("delete", err)
	}
	s.cache.Delete(getKey(owner, id))
	s.invalidateLists(owner)
	if removed {
		s.publish(ctx, ActionDeleted, owner, id)
	}
	return nil
}

// MonthlyCost is devices.MonthlyCost at the configured tariff.
func (s *Service) MonthlyCost(d devices.Device) float64 {
	return devices.MonthlyCost(d, s.rate)
}

// Subscribe registers a change handler and returns its cancel func.
func (s *Service) Subscribe(handler ChangeHandler) func() {
	if handler == nil {
		return func() {}
	}
	return s.bus.Subscribe(eventbus.EventTypeOf[DevicesChanged](), func(ctx context.Context, event any) error {
		evt, ok := event.(DevicesChanged)
		if !ok {
			return eventbus.ErrInvalidEventType
		}
		return handler(ctx, evt)
	})
}

// SubscribeNotifier registers a ChangeNotifier.
func (s *Service) SubscribeNotifier(notifier ChangeNotifier) func() {
	if notifier == nil {
		return func() {}
	}
	return s.Subscribe(notifier.NotifyDevicesChanged)
}

func (s *Service) cachedList(ctx context.Context, op, key, owner, query string) ([]devices.Device, error) {
	if cached, ok := s.lookup(op, key); ok {
		return cached, nil
	}
	list, err := s.repo.List(ctx, owner, query)
	if err != nil {
		return nil, devices.NewStoreError(op, err)
	}
	if list == nil {
		list = []devices.Device{}
	}
	s.store(key, list)
	return list, nil
}

func (s *Service) principal(ctx context.Context) (string, error) {
	owner, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return "", devices.ErrUnauthenticated
	}
	return owner, nil
}

func (s *Service) lookup(op, key string) ([]devices.Device, bool) {
	if s.cache == nil {
		return nil, false
	}
	cached, ok := s.cache.Get(key)
	metrics.IncCacheLookup(op, ok)
	if !ok {
		return nil, false
	}
	return append([]devices.Device(nil), cached...), true
}

func (s *Service) store(key string, list []devices.Device) {
	if s.cache == nil {
		return
	}
	s.cache.Set(key, append([]devices.Device(nil), list...))
}

func (s *Service) invalidateLists(owner string) {
	s.cache.Delete(listKey(owner))
	s.cache.DeletePrefix(opSearch + keySep + owner + keySep)
}

func (s *Service) publish(ctx context.Context, action ChangeAction, owner, deviceID string) {
	metrics.IncDeviceChange(string(action))
	evt := DevicesChanged{Action: action, OwnerID: owner, DeviceID: deviceID, At: s.clock.Now()}
	if err := s.bus.Publish(ctx, evt); err != nil {
		s.logf("devices changed subscriber error: action=%s device=%s err=%v", action, deviceID, err)
	}
}

func (s *Service) observe(op string, start time.Time, errp *error) {
	result := metrics.ResultSuccess
	if errp != nil && *errp != nil {
		result = metrics.ResultError
		if errors.Is(*errp, devices.ErrStore) {
			s.logf("device %s error: %v", op, *errp)
		}
	}
	metrics.ObserveDeviceOperation(op, result, time.Since(start))
}

func (s *Service) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

func listKey(owner string) string {
	return opList + keySep + owner
}

func searchKey(owner, query string) string {
	return opSearch + keySep + owner + keySep + strings.ToLower(query)
}

func getKey(owner, id string) string {
	return opGet + keySep + owner + keySep + id
}
