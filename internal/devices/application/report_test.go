package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	devices "energy-monitor/internal/devices/domain"
)

func TestBuildAdvancedReportEmpty(t *testing.T) {
	report := BuildAdvancedReport(nil, 1.13, "BRL")
	require.Zero(t, report.CurrentKWh)
	require.Zero(t, report.ForecastCost)
	require.Empty(t, report.TopDevice)
	require.NotNil(t, report.Suggestions)
	require.Empty(t, report.Suggestions)
	require.Equal(t, "BRL", report.Currency)
}

func TestBuildAdvancedReportFigures(t *testing.T) {
	list := []devices.Device{
		{ID: "ac", Name: "Air Conditioner", PowerWatts: 1000, HoursPerDay: 8, Quantity: 1},
		{ID: "tv", Name: "TV", PowerWatts: 100, HoursPerDay: 5, Quantity: 2},
	}
	report := BuildAdvancedReport(list, 1.0, "BRL")

	// 240 kWh + 2 * 15 kWh
	require.InDelta(t, 270.0, report.CurrentKWh, 1e-9)
	require.InDelta(t, 270.0, report.CurrentCost, 1e-9)
	require.InDelta(t, 297.0, report.ForecastKWh, 1e-9)
	require.InDelta(t, 297.0, report.ForecastCost, 1e-9)
	require.Equal(t, "Air Conditioner", report.TopDevice)

	require.Len(t, report.Suggestions, 1)
	s := report.Suggestions[0]
	require.Equal(t, "ac", s.DeviceID)
	// 1 kW * 2 h * 30 days
	require.InDelta(t, 60.0, s.MonthlySaving, 1e-9)
	require.Contains(t, s.Message, "Air Conditioner")
}

func TestBuildAdvancedReportTopDeviceWeighsQuantity(t *testing.T) {
	list := []devices.Device{
		{ID: "heater", Name: "Heater", PowerWatts: 2000, HoursPerDay: 1, Quantity: 1},
		{ID: "lamp", Name: "Lamp", PowerWatts: 60, HoursPerDay: 5, Quantity: 10},
	}
	report := BuildAdvancedReport(list, 1.13, "BRL")
	require.Equal(t, "Lamp", report.TopDevice)
	require.Empty(t, report.Suggestions)
}

func TestBuildAdvancedReportCapsSuggestions(t *testing.T) {
	var list []devices.Device
	for i := 0; i < MaxSuggestions+3; i++ {
		list = append(list, devices.Device{ID: string(rune('a' + i)), Name: "Pump", PowerWatts: 500, HoursPerDay: 12, Quantity: 1})
	}
	report := BuildAdvancedReport(list, 1.13, "BRL")
	require.Len(t, report.Suggestions, MaxSuggestions)
}

func TestServiceSummaryAndReport(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := userCtx("user-1")
	qty := 3
	_, err := svc.Create(ctx, devices.DeviceInput{Name: "Fan", PowerWatts: 50, HoursPerDay: 10, Quantity: &qty})
	require.NoError(t, err)

	totals, err := svc.Summary(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, totals.Devices)
	require.Equal(t, 3, totals.Quantity)
	require.InDelta(t, 45.0, totals.MonthlyConsumption, 1e-9)
	require.InDelta(t, 45.0*devices.DefaultPricePerKWh, totals.MonthlyCost, 1e-9)

	report, err := svc.AdvancedReport(ctx)
	require.NoError(t, err)
	require.Equal(t, "Fan", report.TopDevice)
	require.Len(t, report.Suggestions, 1)

	_, err = svc.Summary(context.Background())
	require.ErrorIs(t, err, devices.ErrUnauthenticated)
}
