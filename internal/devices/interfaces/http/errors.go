package http

import (
	"errors"
	"net/http"

	devices "energy-monitor/internal/devices/domain"
)

// statusFor maps access layer errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, devices.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, devices.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, devices.ErrNilStore):
		return http.StatusServiceUnavailable
	case errors.Is(err, devices.ErrStore):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	http.Error(w, err.Error(), statusFor(err))
}
