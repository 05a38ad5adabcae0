package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"energy-monitor/internal/auth"
	devicesapp "energy-monitor/internal/devices/application"
	devices "energy-monitor/internal/devices/domain"
	"energy-monitor/internal/devices/infrastructure/memory"
	"energy-monitor/internal/devices/infrastructure/storetest"
)

var testSecret = []byte("handler-secret")

type testServer struct {
	server  *httptest.Server
	service *devicesapp.Service
	broker  *SSEBroker
}

func newTestServer(t *testing.T, repo devices.Repository) *testServer {
	t.Helper()
	if repo == nil {
		repo = memory.NewDeviceRepository(memory.WithClock(storetest.NewStepClock()))
	}
	service, err := devicesapp.NewService(repo, devicesapp.WithCache(devicesapp.NewDeviceCache()))
	require.NoError(t, err)
	broker := NewSSEBroker()
	service.SubscribeNotifier(broker)

	handler, err := NewHandler(service)
	require.NoError(t, err)
	reports, err := NewReportHandler(service)
	require.NoError(t, err)
	exports, err := NewExportHandler(service)
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/devices", handler)
	mux.Handle("/api/v1/devices/", handler)
	mux.Handle("/api/v1/devices/stream", NewStreamHandler(broker))
	mux.Handle("/api/v1/report/", reports)
	mux.Handle("/api/v1/exports/", exports)

	authn := auth.NewMiddleware(testSecret, auth.NewDefaultPolicy(nil, nil))
	server := httptest.NewServer(authn.Wrap(mux))
	t.Cleanup(server.Close)
	return &testServer{server: server, service: service, broker: broker}
}

func token(t *testing.T, subject string) string {
	t.Helper()
	tok, err := auth.IssueJWT(testSecret, subject, subject+"@example.com", time.Hour)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, subject string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	require.NoError(t, err)
	if subject != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, subject))
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestDeviceCRUDOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)

	resp := s.do(t, http.MethodPost, "/api/v1/devices", "user-1", map[string]any{
		"name": "Air Conditioner", "power_watts": 1200, "hours_per_day": 8,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[devices.Device](t, resp)
	require.Equal(t, "user-1", created.OwnerID)
	require.Equal(t, 1, created.Quantity)

	resp = s.do(t, http.MethodGet, "/api/v1/devices/", "user-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, decode[[]devices.Device](t, resp), 1)

	resp = s.do(t, http.MethodGet, "/api/v1/devices?q=conditioner", "user-1", nil)
	require.Len(t, decode[[]devices.Device](t, resp), 1)
	resp = s.do(t, http.MethodGet, "/api/v1/devices?q=fridge", "user-1", nil)
	require.Empty(t, decode[[]devices.Device](t, resp))

	resp = s.do(t, http.MethodPatch, "/api/v1/devices/"+created.ID, "user-1", map[string]any{"hours_per_day": 4})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 4.0, decode[devices.Device](t, resp).HoursPerDay)

	resp = s.do(t, http.MethodGet, "/api/v1/devices/"+created.ID, "user-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 4.0, decode[devices.Device](t, resp).HoursPerDay)

	resp = s.do(t, http.MethodDelete, "/api/v1/devices/"+created.ID, "user-1", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = s.do(t, http.MethodDelete, "/api/v1/devices/"+created.ID, "user-1", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/v1/devices/"+created.ID, "user-1", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeviceHTTPErrors(t *testing.T) {
	s := newTestServer(t, nil)

	resp := s.do(t, http.MethodGet, "/api/v1/devices", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/api/v1/devices", "user-1", map[string]any{"name": "TV", "power_watts": 0, "hours_per_day": 2})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/api/v1/devices", "user-1", map[string]any{"name": "TV", "power_watts": 100, "hours_per_day": 30})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/api/v1/devices", "user-1", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodPut, "/api/v1/devices/unknown", "user-1", map[string]any{"name": "x"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/api/v1/devices/some-id", "user-1", nil)
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestDeviceHTTPIsOwnerScoped(t *testing.T) {
	s := newTestServer(t, nil)
	resp := s.do(t, http.MethodPost, "/api/v1/devices", "user-1", map[string]any{"name": "Router", "power_watts": 12, "hours_per_day": 24})
	created := decode[devices.Device](t, resp)

	resp = s.do(t, http.MethodGet, "/api/v1/devices/"+created.ID, "user-2", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = s.do(t, http.MethodPut, "/api/v1/devices/"+created.ID, "user-2", map[string]any{"name": "mine"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = s.do(t, http.MethodDelete, "/api/v1/devices/"+created.ID, "user-2", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/v1/devices", "user-1", nil)
	list := decode[[]devices.Device](t, resp)
	require.Len(t, list, 1)
	require.Equal(t, "Router", list[0].Name)
}

type failingRepo struct {
	devices.Repository
}

func (failingRepo) List(context.Context, string, string) ([]devices.Device, error) {
	return nil, errors.New("backend unavailable")
}

func TestStoreFailureIsBadGateway(t *testing.T) {
	s := newTestServer(t, failingRepo{})
	resp := s.do(t, http.MethodGet, "/api/v1/devices", "user-1", nil)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	body := new(strings.Builder)
	_, _ = bufio.NewReader(resp.Body).WriteTo(body)
	require.Contains(t, body.String(), "backend unavailable")
}

func TestReportEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, http.MethodPost, "/api/v1/devices", "user-1", map[string]any{"name": "Heater", "power_watts": 1000, "hours_per_day": 10, "quantity": 2})

	resp := s.do(t, http.MethodGet, "/api/v1/report/summary", "user-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := decode[map[string]any](t, resp)
	require.Equal(t, 1.0, summary["devices"])
	require.Equal(t, 2.0, summary["quantity"])
	require.InDelta(t, 600.0, summary["monthly_kwh"], 1e-9)
	require.Equal(t, devices.DefaultCurrency, summary["currency"])

	resp = s.do(t, http.MethodGet, "/api/v1/report/advanced", "user-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	report := decode[devicesapp.AdvancedReport](t, resp)
	require.Equal(t, "Heater", report.TopDevice)
	require.InDelta(t, 660.0, report.ForecastKWh, 1e-9)
	require.Len(t, report.Suggestions, 1)

	resp = s.do(t, http.MethodGet, "/api/v1/report/other", "user-1", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExportEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, http.MethodPost, "/api/v1/devices", "user-1", map[string]any{"name": "Fridge", "power_watts": 150, "hours_per_day": 24})

	resp := s.do(t, http.MethodGet, "/api/v1/exports/devices.csv", "user-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/csv")
	records, err := csv.NewReader(resp.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, exportHeader, records[0])
	require.Equal(t, "Fridge", records[1][1])
	require.Equal(t, "108.00", records[1][6])
	require.Equal(t, "TOTAL", records[2][1])

	for _, format := range []string{"xlsx", "pdf"} {
		resp = s.do(t, http.MethodGet, "/api/v1/exports/devices."+format, "user-1", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, format)
		require.Equal(t, exportFormats[format].contentType, resp.Header.Get("Content-Type"))
	}

	resp = s.do(t, http.MethodGet, "/api/v1/exports/devices.doc", "user-1", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBuildExports(t *testing.T) {
	data := NewExportData([]devices.Device{
		{ID: "a", Name: "Lamp", PowerWatts: 60, HoursPerDay: 5, Quantity: 4},
	}, 1, "BRL", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.InDelta(t, 36.0, data.Rows[0].MonthlyKWh, 1e-9)
	require.InDelta(t, 36.0, data.Totals.MonthlyCost, 1e-9)

	xlsx, err := BuildDevicesXLSX(data)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(xlsx, []byte("PK")))

	pdf, err := BuildDevicesPDF(data)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}

func TestBuildDevicesCSVQuotesFormulaNames(t *testing.T) {
	data := NewExportData([]devices.Device{
		{ID: "a", Name: "=HYPERLINK(\"http://x\")", PowerWatts: 10, HoursPerDay: 1, Quantity: 1},
		{ID: "b", Name: "@SUM(A1)", PowerWatts: 10, HoursPerDay: 1, Quantity: 1},
		{ID: "c", Name: "Lamp - hall", PowerWatts: 10, HoursPerDay: 1, Quantity: 1},
	}, 1, "BRL", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	out, err := BuildDevicesCSV(data)
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	names := map[string]string{}
	for _, rec := range records[1 : len(records)-1] {
		names[rec[0]] = rec[1]
	}
	require.Equal(t, "'=HYPERLINK(\"http://x\")", names["a"])
	require.Equal(t, "'@SUM(A1)", names["b"])
	require.Equal(t, "Lamp - hall", names["c"])
	require.Equal(t, "TOTAL", records[len(records)-1][1])
}

func TestStreamDeliversOwnerEvents(t *testing.T) {
	s := newTestServer(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.server.URL+"/api/v1/devices/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token(t, "user-1"))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "event: ready\n", line)

	require.Eventually(t, func() bool { return s.broker.Clients() == 1 }, time.Second, 10*time.Millisecond)

	s.do(t, http.MethodPost, "/api/v1/devices", "user-2", map[string]any{"name": "Other", "power_watts": 10, "hours_per_day": 1})
	s.do(t, http.MethodPost, "/api/v1/devices", "user-1", map[string]any{"name": "Mine", "power_watts": 10, "hours_per_day": 1})

	lines := make(chan string, 8)
	go func() {
		for {
			l, err := reader.ReadString('\n')
			if err != nil {
				close(lines)
				return
			}
			lines <- l
		}
	}()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case l, ok := <-lines:
			require.True(t, ok, "stream closed early")
			if strings.HasPrefix(l, "data: ") && strings.Contains(l, "created") {
				require.Contains(t, l, `"owner_id":"user-1"`)
				return
			}
		case <-deadline:
			t.Fatal("timeout waiting for device event")
		}
	}
}

func TestStatusFor(t *testing.T) {
	require.Equal(t, http.StatusBadRequest, statusFor(devices.NewValidationError("name", "x")))
	require.Equal(t, http.StatusUnauthorized, statusFor(devices.ErrUnauthenticated))
	require.Equal(t, http.StatusBadGateway, statusFor(devices.NewStoreError("list", errors.New("x"))))
	require.Equal(t, http.StatusServiceUnavailable, statusFor(devices.ErrNilStore))
	require.Equal(t, http.StatusInternalServerError, statusFor(errors.New("x")))
}
