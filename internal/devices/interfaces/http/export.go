package http

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	devicesapp "energy-monitor/internal/devices/application"
	devices "energy-monitor/internal/devices/domain"
	"energy-monitor/internal/observability/metrics"
)

const exportPrefix = "/api/v1/exports/devices."

// ExportRow is one device line of an export; figures are quantity-aware.
type ExportRow struct {
	Device     devices.Device
	DailyKWh   float64
	MonthlyKWh float64
	Cost       float64
}

// ExportData is everything an export renders.
type ExportData struct {
	Rows        []ExportRow
	Totals      devices.Totals
	Currency    string
	GeneratedAt time.Time
}

// NewExportData computes per-device rows and totals at rate.
func NewExportData(list []devices.Device, rate float64, currency string, at time.Time) ExportData {
	rows := make([]ExportRow, 0, len(list))
	for _, d := range list {
		qty := float64(d.EffectiveQuantity())
		rows = append(rows, ExportRow{
			Device:     d,
			DailyKWh:   devices.DailyConsumption(d) * qty,
			MonthlyKWh: devices.MonthlyConsumption(d) * qty,
			Cost:       devices.MonthlyCost(d, rate) * qty,
		})
	}
	return ExportData{Rows: rows, Totals: devices.SumTotals(list, rate), Currency: currency, GeneratedAt: at}
}

var exportHeader = []string{"id", "name", "power_watts", "hours_per_day", "quantity", "daily_kwh", "monthly_kwh", "monthly_cost"}

// BuildDevicesCSV renders the export as CSV with a trailing totals line.
func BuildDevicesCSV(data ExportData) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, row := range data.Rows {
		d := row.Device
		record := []string{
			csvText(d.ID),
			csvText(d.Name),
			formatNumber(d.PowerWatts),
			formatNumber(d.HoursPerDay),
			strconv.Itoa(d.EffectiveQuantity()),
			formatNumber(row.DailyKWh),
			formatNumber(row.MonthlyKWh),
			formatNumber(row.Cost),
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	total := []string{"", "TOTAL", "", "", strconv.Itoa(data.Totals.Quantity), "", formatNumber(data.Totals.MonthlyConsumption), formatNumber(data.Totals.MonthlyCost)}
	if err := writer.Write(total); err != nil {
		return nil, err
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildDevicesXLSX renders a summary sheet and a devices sheet.
func BuildDevicesXLSX(data ExportData) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "summary"
	devicesSheet := "devices"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(devicesSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Energy Consumption")
	_ = f.SetCellValue(summarySheet, "A3", "Generated")
	_ = f.SetCellValue(summarySheet, "B3", data.GeneratedAt.UTC().Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A4", "Devices")
	_ = f.SetCellValue(summarySheet, "B4", data.Totals.Devices)
	_ = f.SetCellValue(summarySheet, "A5", "Units")
	_ = f.SetCellValue(summarySheet, "B5", data.Totals.Quantity)
	_ = f.SetCellValue(summarySheet, "A6", "Monthly Energy (kWh)")
	_ = f.SetCellValue(summarySheet, "B6", devices.Round2(data.Totals.MonthlyConsumption))
	_ = f.SetCellValue(summarySheet, "A7", "Monthly Cost")
	_ = f.SetCellValue(summarySheet, "B7", devices.Round2(data.Totals.MonthlyCost))
	_ = f.SetCellValue(summarySheet, "A8", "Price per kWh")
	_ = f.SetCellValue(summarySheet, "B8", data.Totals.PricePerKWh)
	_ = f.SetCellValue(summarySheet, "A9", "Currency")
	_ = f.SetCellValue(summarySheet, "B9", data.Currency)

	for i, title := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(devicesSheet, cell, title)
	}
	for i, row := range data.Rows {
		r := i + 2
		d := row.Device
		_ = f.SetCellValue(devicesSheet, fmt.Sprintf("A%d", r), d.ID)
		_ = f.SetCellValue(devicesSheet, fmt.Sprintf("B%d", r), d.Name)
		_ = f.SetCellValue(devicesSheet, fmt.Sprintf("C%d", r), d.PowerWatts)
		_ = f.SetCellValue(devicesSheet, fmt.Sprintf("D%d", r), d.HoursPerDay)
		_ = f.SetCellValue(devicesSheet, fmt.Sprintf("E%d", r), d.EffectiveQuantity())
		_ = f.SetCellValue(devicesSheet, fmt.Sprintf("F%d", r), devices.Round2(row.DailyKWh))
		_ = f.SetCellValue(devicesSheet, fmt.Sprintf("G%d", r), devices.Round2(row.MonthlyKWh))
		_ = f.SetCellValue(devicesSheet, fmt.Sprintf("H%d", r), devices.Round2(row.Cost))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildDevicesPDF renders a one-table PDF report.
func BuildDevicesPDF(data ExportData) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Energy Consumption")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", data.GeneratedAt.UTC().Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Devices: %d (%d units)", data.Totals.Devices, data.Totals.Quantity))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Monthly Energy (kWh): %.2f", data.Totals.MonthlyConsumption))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Monthly Cost (%s): %.2f at %.2f/kWh", data.Currency, data.Totals.MonthlyCost, data.Totals.PricePerKWh))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(60, 6, "Device", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Watts", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "h/day", "1", 0, "C", false, 0, "")
	pdf.CellFormat(15, 6, "Qty", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "kWh/month", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Cost", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, row := range data.Rows {
		d := row.Device
		pdf.CellFormat(60, 6, truncate(d.Name, 32), "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%.0f", d.PowerWatts), "1", 0, "R", false, 0, "")
		pdf.CellFormat(20, 6, fmt.Sprintf("%.1f", d.HoursPerDay), "1", 0, "R", false, 0, "")
		pdf.CellFormat(15, 6, strconv.Itoa(d.EffectiveQuantity()), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", row.MonthlyKWh), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", row.Cost), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type exportFormat struct {
	contentType string
	build       func(ExportData) ([]byte, error)
}

var exportFormats = map[string]exportFormat{
	"csv":  {contentType: "text/csv; charset=utf-8", build: BuildDevicesCSV},
	"xlsx": {contentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", build: BuildDevicesXLSX},
	"pdf":  {contentType: "application/pdf", build: BuildDevicesPDF},
}

// ExportHandler serves /api/v1/exports/devices.{csv,xlsx,pdf}.
type ExportHandler struct {
	service *devicesapp.Service
	now     func() time.Time
}

// NewExportHandler constructs an export handler.
func NewExportHandler(service *devicesapp.Service) (*ExportHandler, error) {
	if service == nil {
		return nil, errors.New("export handler: nil service")
	}
	return &ExportHandler{service: service, now: func() time.Time { return time.Now().UTC() }}, nil
}

// ServeHTTP renders the principal's devices in the requested format.
func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !strings.HasPrefix(r.URL.Path, exportPrefix) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, exportPrefix)
	format, ok := exportFormats[name]
	if !ok {
		http.Error(w, "unsupported export format", http.StatusNotFound)
		return
	}

	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveExport(name, result, time.Since(start))
	}()

	list, err := h.service.ListAll(r.Context())
	if err != nil {
		result = metrics.ResultError
		respondError(w, err)
		return
	}
	payload, err := format.build(NewExportData(list, h.service.PricePerKWh(), h.service.Currency(), h.now()))
	if err != nil {
		result = metrics.ResultError
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", format.contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=devices.%s", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

// csvText keeps spreadsheet apps from evaluating user text as a formula.
func csvText(value string) string {
	if value != "" && strings.ContainsRune("=+-@\t\r", rune(value[0])) {
		return "'" + value
	}
	return value
}

func formatNumber(value float64) string {
	return strconv.FormatFloat(devices.Round2(value), 'f', 2, 64)
}

func truncate(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max-1]) + "~"
}
