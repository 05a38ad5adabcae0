// Package storetest holds the behaviour every Device Store must share.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	devices "energy-monitor/internal/devices/domain"
)

// StepClock advances one second on every read so creation order is observable.
type StepClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewStepClock starts at a fixed instant.
func NewStepClock() *StepClock {
	return &StepClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

// Now returns the next instant.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// Factory builds a fresh, empty store whose timestamps come from clock.
type Factory func(t *testing.T, clock *StepClock) devices.Repository

func newDevice(owner, name string, watts, hours float64, qty int) devices.Device {
	return devices.Device{OwnerID: owner, Name: name, PowerWatts: watts, HoursPerDay: hours, Quantity: qty}
}

// Run executes the contract against the store built by factory.
func Run(t *testing.T, factory Factory) {
	t.Run("create assigns id and timestamps", func(t *testing.T) {
		repo := factory(t, NewStepClock())
		ctx := context.Background()
		created, err := repo.Create(ctx, newDevice("owner-a", "Fridge", 150, 24, 1))
		require.NoError(t, err)
		require.NotNil(t, created)
		require.NotEmpty(t, created.ID)
		require.False(t, created.CreatedAt.IsZero())
		require.Equal(t, "owner-a", created.OwnerID)

		got, err := repo.Get(ctx, "owner-a", created.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, "Fridge", got.Name)
		require.Equal(t, 1, got.Quantity)
	})

	t.Run("list is owner scoped and newest first", func(t *testing.T) {
		repo := factory(t, NewStepClock())
		ctx := context.Background()
		first, err := repo.Create(ctx, newDevice("owner-a", "Air Conditioner", 1200, 8, 1))
		require.NoError(t, err)
		second, err := repo.Create(ctx, newDevice("owner-a", "TV", 100, 4, 2))
		require.NoError(t, err)
		_, err = repo.Create(ctx, newDevice("owner-b", "Air Fryer", 1500, 1, 1))
		require.NoError(t, err)

		list, err := repo.List(ctx, "owner-a", "")
		require.NoError(t, err)
		require.Len(t, list, 2)
		require.Equal(t, second.ID, list[0].ID)
		require.Equal(t, first.ID, list[1].ID)

		found, err := repo.List(ctx, "owner-a", "air")
		require.NoError(t, err)
		require.Len(t, found, 1)
		require.Equal(t, first.ID, found[0].ID)
	})

	t.Run("get of missing or foreign device is nil", func(t *testing.T) {
		repo := factory(t, NewStepClock())
		ctx := context.Background()
		created, err := repo.Create(ctx, newDevice("owner-a", "Lamp", 60, 5, 1))
		require.NoError(t, err)

		got, err := repo.Get(ctx, "owner-b", created.ID)
		require.NoError(t, err)
		require.Nil(t, got)

		got, err = repo.Get(ctx, "owner-a", "does-not-exist")
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("update is owner scoped partial replacement", func(t *testing.T) {
		repo := factory(t, NewStepClock())
		ctx := context.Background()
		created, err := repo.Create(ctx, newDevice("owner-a", "Heater", 2000, 3, 1))
		require.NoError(t, err)

		hours := 5.0
		foreign, err := repo.Update(ctx, "owner-b", created.ID, devices.DevicePatch{HoursPerDay: &hours})
		require.NoError(t, err)
		require.Nil(t, foreign)

		qty := 2
		updated, err := repo.Update(ctx, "owner-a", created.ID, devices.DevicePatch{HoursPerDay: &hours, Quantity: &qty})
		require.NoError(t, err)
		require.NotNil(t, updated)
		require.Equal(t, 5.0, updated.HoursPerDay)
		require.Equal(t, 2, updated.Quantity)
		require.Equal(t, "Heater", updated.Name)
		require.Equal(t, 2000.0, updated.PowerWatts)

		unchanged, err := repo.Get(ctx, "owner-a", created.ID)
		require.NoError(t, err)
		require.Equal(t, 5.0, unchanged.HoursPerDay)
	})

	t.Run("delete is owner scoped and idempotent", func(t *testing.T) {
		repo := factory(t, NewStepClock())
		ctx := context.Background()
		created, err := repo.Create(ctx, newDevice("owner-a", "Microwave", 1100, 0.5, 1))
		require.NoError(t, err)

		removed, err := repo.Delete(ctx, "owner-b", created.ID)
		require.NoError(t, err)
		require.False(t, removed)

		removed, err = repo.Delete(ctx, "owner-a", created.ID)
		require.NoError(t, err)
		require.True(t, removed)

		removed, err = repo.Delete(ctx, "owner-a", created.ID)
		require.NoError(t, err)
		require.False(t, removed)

		list, err := repo.List(ctx, "owner-a", "")
		require.NoError(t, err)
		require.Empty(t, list)
	})
}
