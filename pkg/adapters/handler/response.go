package handler

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/wadjakorntonsri/shortly/pkg/core/domain"
)

// ErrorResponse is the body of every non-2xx JSON answer.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorStatus(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Code: status, Message: message})
}

// writeError maps a service error onto a status. Server-side failures are
// logged and answered without internals.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	status, sentinel := classify(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
		writeJSON(w, status, ErrorResponse{Code: status, Message: sentinel.Error()})
		return
	}
	resp := ErrorResponse{Code: status, Message: sentinel.Error()}
	if err != sentinel {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

var errInternal = errors.New("internal server error")

func classify(err error) (int, error) {
	switch {
	case errors.Is(err, domain.ErrInvalidURL):
		return http.StatusBadRequest, domain.ErrInvalidURL
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, domain.ErrInvalidInput
	case errors.Is(err, domain.ErrTitleFetch):
		return http.StatusNotFound, domain.ErrTitleFetch
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, domain.ErrNotFound
	case errors.Is(err, domain.ErrUserExists):
		return http.StatusConflict, domain.ErrUserExists
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, domain.ErrInvalidCredentials
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, domain.ErrUnauthorized
	case errors.Is(err, domain.ErrCodeExhausted):
		return http.StatusInternalServerError, domain.ErrCodeExhausted
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusInternalServerError, domain.ErrPersistence
	default:
		return http.StatusInternalServerError, errInternal
	}
}
