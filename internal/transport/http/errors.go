package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"formbuilder-service/internal/config"
	"formbuilder-service/internal/domain"
	"github.com/go-playground/validator/v10"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, domain.ErrFormNotFound), errors.Is(err, domain.ErrResponseNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrFormNotPublished):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrFormFrozen):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidForm), errors.Is(err, domain.ErrEmailRequired),
		errors.Is(err, errBadRequest), errors.As(err, &verrs):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", "1")
		msg = domain.ErrPersistence.Error()
	case http.StatusInternalServerError:
		msg = http.StatusText(status)
	}
	if status >= http.StatusInternalServerError {
		config.WithContext(r.Context()).WithError(err).WithField("path", r.URL.Path).Error("request failed")
	}
	writeJSON(w, status, errorBody{Error: msg})
}
