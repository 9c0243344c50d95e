package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/tripflow/payment-coordinator/internal/interfaces/rest"
)

// Timeout bounds every request via http.TimeoutHandler, which also cancels
// the request context when the deadline passes. Slow requests get a 503
// carrying the standard error envelope.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	body, _ := json.Marshal(rest.ErrorResponse{
		Success: false,
		Error: rest.ErrorDetail{
			Code:    "TIMEOUT",
			Message: "request timed out",
		},
	})

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, string(body))
	}
}
