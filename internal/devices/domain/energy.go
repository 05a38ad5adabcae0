package devices

import "math"

const (
	// DefaultPricePerKWh is the tariff applied when none is configured.
	DefaultPricePerKWh = 1.13
	// DefaultCurrency labels amounts computed with the default tariff.
	DefaultCurrency = "BRL"
	// DaysPerMonth is the billing month length used for estimates.
	DaysPerMonth = 30
)

// DailyConsumption returns kWh/day for a single unit of the device.
func DailyConsumption(d Device) float64 {
	return d.PowerWatts / 1000 * d.HoursPerDay
}

// MonthlyConsumption returns kWh/month for a single unit of the device.
func MonthlyConsumption(d Device) float64 {
	return DailyConsumption(d) * DaysPerMonth
}

// MonthlyCost returns the monthly cost for a single unit at rate per kWh.
func MonthlyCost(d Device, rate float64) float64 {
	return MonthlyConsumption(d) * rate
}

// Totals aggregates a device list; quantity multiplies here and only here.
type Totals struct {
	Devices            int     `json:"devices"`
	Quantity           int     `json:"quantity"`
	MonthlyConsumption float64 `json:"monthly_kwh"`
	MonthlyCost        float64 `json:"monthly_cost"`
	PricePerKWh        float64 `json:"price_per_kwh"`
}

// SumTotals computes fleet totals at rate per kWh.
func SumTotals(list []Device, rate float64) Totals {
	totals := Totals{Devices: len(list), PricePerKWh: rate}
	for _, d := range list {
		qty := d.EffectiveQuantity()
		totals.Quantity += qty
		totals.MonthlyConsumption += MonthlyConsumption(d) * float64(qty)
	}
	totals.MonthlyCost = totals.MonthlyConsumption * rate
	return totals
}

// Round2 rounds to two decimals for display.
func Round2(value float64) float64 {
	return math.Round(value*100) / 100
}
