package http

import (
	"errors"
	"net/http"
	"strings"

	devicesapp "energy-monitor/internal/devices/application"
	devices "energy-monitor/internal/devices/domain"
)

const reportPath = "/api/v1/report"

// summaryResponse is the JSON shape of the totals endpoint.
type summaryResponse struct {
	devices.Totals
	Currency string `json:"currency"`
}

// ReportHandler serves fleet totals and the advanced report.
type ReportHandler struct {
	service *devicesapp.Service
}

// NewReportHandler constructs a report handler.
func NewReportHandler(service *devicesapp.Service) (*ReportHandler, error) {
	if service == nil {
		return nil, errors.New("report handler: nil service")
	}
	return &ReportHandler{service: service}, nil
}

// ServeHTTP handles /api/v1/report/summary and /api/v1/report/advanced.
func (h *ReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch strings.TrimSuffix(r.URL.Path, "/") {
	case reportPath + "/summary":
		totals, err := h.service.Summary(r.Context())
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summaryResponse{Totals: totals, Currency: h.service.Currency()})
	case reportPath + "/advanced":
		report, err := h.service.AdvancedReport(r.Context())
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}
