package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tripflow/payment-coordinator/internal/application"
)

type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BuildErrorResponse maps a service error to its HTTP status and body.
// Anything unrecognized is reported as an internal error without leaking
// the underlying message.
func BuildErrorResponse(err error) (int, ErrorResponse) {
	if svcErr, ok := application.IsServiceError(err); ok {
		return svcErr.HTTPStatus, ErrorResponse{
			Success: false,
			Error: ErrorDetail{
				Code:    svcErr.Code,
				Message: svcErr.Message,
			},
		}
	}

	return http.StatusInternalServerError, ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Code:    application.ErrCodeInternal,
			Message: "an internal error occurred",
		},
	}
}

// WriteError maps application errors to HTTP responses.
func WriteError(w http.ResponseWriter, err error, logger *slog.Logger) {
	statusCode, response := BuildErrorResponse(err)

	if statusCode >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
	}

	WriteJSON(w, statusCode, response, logger)
}

func WriteJSON(w http.ResponseWriter, statusCode int, payload any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
