package application

import (
	"context"
	"time"
)

// ChangeAction names a device mutation.
type ChangeAction string

const (
	ActionCreated ChangeAction = "created"
	ActionUpdated ChangeAction = "updated"
	ActionDeleted ChangeAction = "deleted"
)

// DevicesChanged is published after every successful mutation.
type DevicesChanged struct {
	Action   ChangeAction `json:"action"`
	OwnerID  string       `json:"owner_id"`
	DeviceID string       `json:"device_id"`
	At       time.Time    `json:"at"`
}

// ChangeHandler receives change events. Errors are logged, never propagated to the mutation.
type ChangeHandler func(ctx context.Context, evt DevicesChanged) error

// ChangeNotifier is implemented by subscribers that prefer an interface.
type ChangeNotifier interface {
	NotifyDevicesChanged(ctx context.Context, evt DevicesChanged) error
}
