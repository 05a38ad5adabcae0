// Package notify pushes device change notifications to external channels.
package notify

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"energy-monitor/internal/devices/application"
	devices "energy-monitor/internal/devices/domain"
)

// DeviceReader loads a device for enrichment; deleted devices come back nil.
type DeviceReader interface {
	Get(ctx context.Context, ownerID, id string) (*devices.Device, error)
}

// Clock provides time for dedupe bookkeeping.
type Clock interface {
	Now() time.Time
}

type sendRecord struct {
	at   time.Time
	hash string
}

// Notifier renders change events and sends them through a channel.
type Notifier struct {
	reader       DeviceReader
	channel      Channel
	template     *Template
	clock        Clock
	rate         float64
	currency     string
	dedupeWindow time.Duration
	mu           sync.Mutex
	sent         map[string]sendRecord
}

// Option configures the notifier.
type Option func(*Notifier)

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(n *Notifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithDeviceReader enriches messages with device details.
func WithDeviceReader(reader DeviceReader) Option {
	return func(n *Notifier) {
		n.reader = reader
	}
}

// WithTariff sets the rate and currency used for cost lines.
func WithTariff(rate float64, currency string) Option {
	return func(n *Notifier) {
		if rate >= 0 {
			n.rate = rate
		}
		if currency != "" {
			n.currency = currency
		}
	}
}

// WithDedupeWindow suppresses identical notifications within the window.
func WithDedupeWindow(window time.Duration) Option {
	return func(n *Notifier) {
		if window > 0 {
			n.dedupeWindow = window
		}
	}
}

// NewNotifier constructs a change notifier.
func NewNotifier(channel Channel, template *Template, opts ...Option) (*Notifier, error) {
	if channel == nil {
		return nil, errors.New("device notifier: nil channel")
	}
	if template == nil {
		defaultTemplate, err := NewTemplate("")
		if err != nil {
			return nil, err
		}
		template = defaultTemplate
	}
	n := &Notifier{
		channel:  channel,
		template: template,
		clock:    systemClock{},
		rate:     devices.DefaultPricePerKWh,
		currency: devices.DefaultCurrency,
		sent:     make(map[string]sendRecord),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// NotifyDevicesChanged implements application.ChangeNotifier.
func (n *Notifier) NotifyDevicesChanged(ctx context.Context, evt application.DevicesChanged) error {
	if n == nil || n.channel == nil {
		return nil
	}
	var device *devices.Device
	if n.reader != nil && evt.Action != application.ActionDeleted {
		d, err := n.reader.Get(ctx, evt.OwnerID, evt.DeviceID)
		if err == nil {
			device = d
		}
	}
	data := n.buildTemplateData(evt, device)
	content, err := n.template.Render(data)
	if err != nil {
		return err
	}
	// the timestamp alone never makes a message distinct
	data.At = ""
	key, hash := notificationKey(evt), hashContent(fmt.Sprintf("%+v", data))
	if !n.shouldSend(key, hash) {
		return nil
	}
	if err := n.channel.Send(ctx, content); err != nil {
		return err
	}
	n.markSent(key, hash)
	return nil
}

func (n *Notifier) buildTemplateData(evt application.DevicesChanged, device *devices.Device) TemplateData {
	at := evt.At
	if at.IsZero() {
		at = n.clock.Now()
	}
	data := TemplateData{
		Action:      string(evt.Action),
		ActionLabel: actionLabel(evt.Action),
		Device:      evt.DeviceID,
		DeviceID:    evt.DeviceID,
		OwnerID:     evt.OwnerID,
		Currency:    n.currency,
		At:          at.UTC().Format(time.RFC3339),
	}
	if device != nil {
		qty := device.EffectiveQuantity()
		data.Known = true
		data.Device = device.Name
		data.PowerWatts = formatFloat(device.PowerWatts)
		data.HoursPerDay = formatFloat(device.HoursPerDay)
		data.Quantity = qty
		data.MonthlyKWh = formatFloat(devices.MonthlyConsumption(*device) * float64(qty))
		data.MonthlyCost = formatFloat(devices.MonthlyCost(*device, n.rate) * float64(qty))
	}
	return data
}

func actionLabel(action application.ChangeAction) string {
	switch action {
	case application.ActionCreated:
		return "Added"
	case application.ActionUpdated:
		return "Updated"
	case application.ActionDeleted:
		return "Removed"
	default:
		return string(action)
	}
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(devices.Round2(value), 'f', 2, 64)
}

func (n *Notifier) shouldSend(key, hash string) bool {
	if n.dedupeWindow <= 0 {
		return true
	}
	n.mu.Lock()
	record, ok := n.sent[key]
	n.mu.Unlock()
	if !ok {
		return true
	}
	return record.hash != hash || n.clock.Now().Sub(record.at) >= n.dedupeWindow
}

func (n *Notifier) markSent(key, hash string) {
	if n.dedupeWindow <= 0 {
		return
	}
	now := n.clock.Now().UTC()
	n.mu.Lock()
	defer n.mu.Unlock()
	for k, record := range n.sent {
		if now.Sub(record.at) >= n.dedupeWindow {
			delete(n.sent, k)
		}
	}
	n.sent[key] = sendRecord{at: now, hash: hash}
}

func (n *Notifier) pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func notificationKey(evt application.DevicesChanged) string {
	return fmt.Sprintf("%s|%s|%s", evt.OwnerID, evt.DeviceID, evt.Action)
}

func hashContent(content string) string {
	sum := sha1.Sum([]byte(content))
	return hex.EncodeToString(sum[:8])
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
