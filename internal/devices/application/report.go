package application

import (
	"context"
	"fmt"

	devices "energy-monitor/internal/devices/domain"
)

const (
	// ForecastGrowth projects next month's usage from the current estimate.
	ForecastGrowth = 1.10
	// SuggestionHoursThreshold is the daily usage above which a saving is suggested.
	SuggestionHoursThreshold = 6.0
	// SuggestionHoursCut is the daily reduction a suggestion proposes.
	SuggestionHoursCut = 2.0
	// MaxSuggestions caps the suggestion list.
	MaxSuggestions = 4
)

// Suggestion proposes cutting daily usage of one device.
type Suggestion struct {
	DeviceID      string  `json:"device_id"`
	DeviceName    string  `json:"device_name"`
	MonthlySaving float64 `json:"monthly_saving"`
	Message       string  `json:"message"`
}

// AdvancedReport summarizes current and projected consumption for an owner.
type AdvancedReport struct {
	CurrentKWh   float64      `json:"current_kwh"`
	CurrentCost  float64      `json:"current_cost"`
	ForecastKWh  float64      `json:"forecast_kwh"`
	ForecastCost float64      `json:"forecast_cost"`
	TopDevice    string       `json:"top_device"`
	Suggestions  []Suggestion `json:"suggestions"`
	PricePerKWh  float64      `json:"price_per_kwh"`
	Currency     string       `json:"currency"`
}

// BuildAdvancedReport computes the report for list at rate. Quantity multiplies every figure.
func BuildAdvancedReport(list []devices.Device, rate float64, currency string) AdvancedReport {
	report := AdvancedReport{
		Suggestions: []Suggestion{},
		PricePerKWh: rate,
		Currency:    currency,
	}
	if len(list) == 0 {
		return report
	}

	totals := devices.SumTotals(list, rate)
	forecastKWh := totals.MonthlyConsumption * ForecastGrowth
	report.CurrentKWh = devices.Round2(totals.MonthlyConsumption)
	report.CurrentCost = devices.Round2(totals.MonthlyCost)
	report.ForecastKWh = devices.Round2(forecastKWh)
	report.ForecastCost = devices.Round2(forecastKWh * rate)

	var (
		top      devices.Device
		topScore = -1.0
	)
	for _, d := range list {
		qty := float64(d.EffectiveQuantity())
		if score := d.PowerWatts * d.HoursPerDay * qty; score > topScore {
			top, topScore = d, score
		}
		if d.HoursPerDay > SuggestionHoursThreshold && len(report.Suggestions) < MaxSuggestions {
			saving := d.PowerWatts / 1000 * SuggestionHoursCut * devices.DaysPerMonth * qty * rate
			report.Suggestions = append(report.Suggestions, Suggestion{
				DeviceID:      d.ID,
				DeviceName:    d.Name,
				MonthlySaving: devices.Round2(saving),
				Message:       fmt.Sprintf("Reduce %s by %.0fh/day to save %s %.2f per month", d.Name, SuggestionHoursCut, currency, saving),
			})
		}
	}
	report.TopDevice = top.Name
	return report
}

// Summary returns fleet totals for the principal.
func (s *Service) Summary(ctx context.Context) (devices.Totals, error) {
	list, err := s.ListAll(ctx)
	if err != nil {
		return devices.Totals{}, err
	}
	return devices.SumTotals(list, s.rate), nil
}

// AdvancedReport returns the advanced report for the principal.
func (s *Service) AdvancedReport(ctx context.Context) (AdvancedReport, error) {
	list, err := s.ListAll(ctx)
	if err != nil {
		return AdvancedReport{}, err
	}
	return BuildAdvancedReport(list, s.rate, s.currency), nil
}
