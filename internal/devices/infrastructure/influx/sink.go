// Package influx records consumption snapshots in InfluxDB whenever an owner's devices change.
package influx

import (
	"context"
	"errors"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"energy-monitor/internal/devices/application"
	devices "energy-monitor/internal/devices/domain"
)

const (
	// FleetMeasurement holds one point per owner snapshot.
	FleetMeasurement = "device_fleet"
	// ChangeMeasurement holds one point per change event.
	ChangeMeasurement = "device_change"
)

// Params provides the InfluxDB connection settings.
type Params struct {
	URL    string
	Org    string
	Token  string
	Bucket string
}

// PointWriter is satisfied by api.WriteAPIBlocking.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Lister reads an owner's devices straight from the store.
type Lister interface {
	List(ctx context.Context, ownerID, query string) ([]devices.Device, error)
}

// Sink writes a fleet snapshot for the affected owner after every change.
type Sink struct {
	writer PointWriter
	lister Lister
	rate   float64
	client influxdb2.Client
}

// Option configures the sink.
type Option func(*Sink)

// WithPricePerKWh sets the tariff for the cost field.
func WithPricePerKWh(rate float64) Option {
	return func(s *Sink) {
		if rate >= 0 {
			s.rate = rate
		}
	}
}

// NewSink constructs a sink over an existing writer.
func NewSink(writer PointWriter, lister Lister, opts ...Option) (*Sink, error) {
	if writer == nil {
		return nil, errors.New("influx sink: nil writer")
	}
	if lister == nil {
		return nil, errors.New("influx sink: nil lister")
	}
	s := &Sink{writer: writer, lister: lister, rate: devices.DefaultPricePerKWh}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewClientSink opens an InfluxDB client and writes with the blocking API.
func NewClientSink(params Params, lister Lister, opts ...Option) (*Sink, error) {
	if params.URL == "" || params.Bucket == "" {
		return nil, errors.New("influx sink: url and bucket are required")
	}
	client := influxdb2.NewClient(params.URL, params.Token)
	sink, err := NewSink(client.WriteAPIBlocking(params.Org, params.Bucket), lister, opts...)
	if err != nil {
		client.Close()
		return nil, err
	}
	sink.client = client
	return sink, nil
}

// NotifyDevicesChanged implements application.ChangeNotifier.
func (s *Sink) NotifyDevicesChanged(ctx context.Context, evt application.DevicesChanged) error {
	if s == nil {
		return nil
	}
	list, err := s.lister.List(ctx, evt.OwnerID, "")
	if err != nil {
		return fmt.Errorf("influx sink: list devices: %w", err)
	}
	at := evt.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	if err := s.writer.WritePoint(ctx, ChangePoint(evt, at), FleetPoint(evt.OwnerID, list, s.rate, at)); err != nil {
		return fmt.Errorf("influx sink: failed to write to DB: %w", err)
	}
	return nil
}

// Close releases the underlying client when the sink owns one.
func (s *Sink) Close() error {
	if s != nil && s.client != nil {
		s.client.Close()
	}
	return nil
}

// FleetPoint builds the snapshot point for an owner.
func FleetPoint(ownerID string, list []devices.Device, rate float64, at time.Time) *write.Point {
	totals := devices.SumTotals(list, rate)
	return influxdb2.NewPoint(FleetMeasurement,
		map[string]string{"owner_id": ownerID},
		map[string]interface{}{
			"devices":      totals.Devices,
			"quantity":     totals.Quantity,
			"monthly_kwh":  totals.MonthlyConsumption,
			"monthly_cost": totals.MonthlyCost,
		},
		at)
}

// ChangePoint builds the point describing a single change.
func ChangePoint(evt application.DevicesChanged, at time.Time) *write.Point {
	return influxdb2.NewPoint(ChangeMeasurement,
		map[string]string{"owner_id": evt.OwnerID, "action": string(evt.Action)},
		map[string]interface{}{"device_id": evt.DeviceID},
		at)
}
