// Package handler implements the HTTP API. Handlers decode requests, call
// the service layer, and translate apperror sentinels into status codes;
// no business rules live here.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/adswipe/child-panel/internal/apperror"
	"github.com/adswipe/child-panel/internal/monitoring"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encoding response failed", "error", err)
	}
}

// writeError maps a service error to a status code and error body.
//
// Partial writes and store failures return 5xx and bump the store error
// counters — they are the signals an operator has to act on. Unknown
// errors are logged but never echoed to the client.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, code := http.StatusInternalServerError, "internal"
	message := "internal server error"
	field := ""

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
		field = appErr.Field

		switch {
		case errors.Is(err, apperror.ErrInvalidInput):
			status, code = http.StatusBadRequest, "invalid_input"
		case errors.Is(err, apperror.ErrBelowMinimum):
			status, code = http.StatusBadRequest, "below_minimum"
		case errors.Is(err, apperror.ErrUnauthorized):
			status, code = http.StatusUnauthorized, "unauthorized"
		case errors.Is(err, apperror.ErrNotFound):
			status, code = http.StatusNotFound, "not_found"
		case errors.Is(err, apperror.ErrConflict):
			status, code = http.StatusConflict, "conflict"
		case errors.Is(err, apperror.ErrQuotaExceeded):
			status, code = http.StatusConflict, "quota_exceeded"
		case errors.Is(err, apperror.ErrInsufficientBalance):
			status, code = http.StatusUnprocessableEntity, "insufficient_balance"
		case errors.Is(err, apperror.ErrPartialWrite):
			status, code = http.StatusInternalServerError, "partial_write"
			monitoring.StoreErrors.WithLabelValues("partial_write").Inc()
			logger.Error("partial write", "error", err)
		case errors.Is(err, apperror.ErrStoreUnavailable):
			status, code = http.StatusBadGateway, "store_unavailable"
			monitoring.StoreErrors.WithLabelValues("store_unavailable").Inc()
			logger.Error("store unavailable", "error", err)
		case errors.Is(err, apperror.ErrCodeSpaceExhausted):
			status, code = http.StatusServiceUnavailable, "code_space_exhausted"
			logger.Error("code space exhausted", "error", err)
		default:
			message = "internal server error"
			logger.Error("unhandled application error", "error", err)
		}
	} else {
		logger.Error("unhandled error", "error", err)
	}

	writeJSON(w, logger, status, ErrorResponse{Error: code, Message: message, Field: field})
}

func decodeBody(r *http.Request, dest any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return apperror.InvalidInput("body", "invalid JSON request body")
	}
	return nil
}
