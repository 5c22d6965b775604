package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"syncdisplay/internal/converter"
	"syncdisplay/internal/coordinator"
	"syncdisplay/internal/services"
)

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), ErrorResponse{Success: false, Message: err.Error()})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var convErr *converter.Error
	switch {
	case errors.Is(err, coordinator.ErrAlreadyPresenting),
		errors.Is(err, coordinator.ErrNotPresenting),
		errors.Is(err, services.ErrPresenting),
		errors.Is(err, services.ErrConversionRunning):
		return http.StatusConflict
	case errors.Is(err, coordinator.ErrAssetsNotLoaded),
		errors.Is(err, coordinator.ErrDisplayUnassigned),
		errors.Is(err, coordinator.ErrOutputShared),
		errors.Is(err, coordinator.ErrInvalidFade):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrUnknownLanguage),
		errors.Is(err, services.ErrClickerNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrClickerInactive):
		return http.StatusForbidden
	case errors.Is(err, coordinator.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.As(err, &convErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
