package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	devicesapp "energy-monitor/internal/devices/application"
	devices "energy-monitor/internal/devices/domain"
)

const (
	devicesPath   = "/api/v1/devices"
	maxBodyBytes  = 1 << 20
	contentTypeJS = "application/json"
)

// Handler provides device CRUD endpoints.
type Handler struct {
	service *devicesapp.Service
}

// NewHandler constructs a handler.
func NewHandler(service *devicesapp.Service) (*Handler, error) {
	if service == nil {
		return nil, errors.New("devices handler: nil service")
	}
	return &Handler{service: service}, nil
}

// ServeHTTP handles /api/v1/devices and /api/v1/devices/{id}, with or without a trailing slash.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == devicesPath:
		switch r.Method {
		case http.MethodGet:
			h.handleList(w, r)
		case http.MethodPost:
			h.handleCreate(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case strings.HasPrefix(path, devicesPath+"/"):
		id := strings.TrimPrefix(path, devicesPath+"/")
		if id == "" || strings.Contains(id, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch r.Method {
		case http.MethodGet:
			h.handleGet(w, r, id)
		case http.MethodPut, http.MethodPatch:
			h.handleUpdate(w, r, id)
		case http.MethodDelete:
			h.handleDelete(w, r, id)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	device, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	if device == nil {
		http.Error(w, "device not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, device)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var input devices.DeviceInput
	if err := decodeBody(r, &input); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	device, err := h.service.Create(r.Context(), input)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, device)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request, id string) {
	var patch devices.DevicePatch
	if err := decodeBody(r, &patch); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	device, err := h.service.Update(r.Context(), id, patch)
	if err != nil {
		respondError(w, err)
		return
	}
	if device == nil {
		http.Error(w, "device not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, device)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.service.Delete(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeBody(r *http.Request, out any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return errors.New("invalid json body: " + err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", contentTypeJS)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
