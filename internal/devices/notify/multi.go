package notify

import (
	"context"
	"errors"

	"energy-monitor/internal/devices/application"
)

// MultiNotifier dispatches change events to multiple notifiers.
type MultiNotifier struct {
	notifiers []application.ChangeNotifier
}

// NewMultiNotifier constructs a MultiNotifier.
func NewMultiNotifier(notifiers ...application.ChangeNotifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// NotifyDevicesChanged forwards events to all notifiers and joins their errors.
func (m *MultiNotifier) NotifyDevicesChanged(ctx context.Context, evt application.DevicesChanged) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, notifier := range m.notifiers {
		if notifier == nil {
			continue
		}
		if err := notifier.NotifyDevicesChanged(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
