package application

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
)

// Outcome is the normalized bucket a gateway answer falls into. The timing
// of a failure relative to "was the request actually sent" decides whether
// a retry is safe: only a failure that provably happened before anything
// reached the wire may be retried. Everything doubtful is AMBIGUOUS and is
// resolved by reconciliation, never by guessing.
type Outcome string

const (
	// OutcomePaid is a definitive success.
	OutcomePaid Outcome = "PAID"
	// OutcomeDeclined is a definitive failure (decline, validation, 4xx).
	OutcomeDeclined Outcome = "DECLINED"
	// OutcomeInFlight means the gateway confirmed receipt and is still working.
	OutcomeInFlight Outcome = "IN_FLIGHT"
	// OutcomeAmbiguous means the charge may or may not have happened.
	OutcomeAmbiguous Outcome = "AMBIGUOUS"
	// OutcomeRetrySafe means the request provably never reached the gateway.
	OutcomeRetrySafe Outcome = "RETRY_SAFE"
	// OutcomeNotFound means the gateway has no record of the order.
	OutcomeNotFound Outcome = "NOT_FOUND"
)

// Classification is the result of normalizing one gateway answer or error.
type Classification struct {
	Outcome Outcome
	Code    string
	Message string
	Raw     json.RawMessage
}

// ClassifyResult buckets a gateway status string. Unrecognized statuses are
// ambiguous: an unknown word from the gateway gives no right to decide the
// money moved or didn't.
func ClassifyResult(res *GatewayResult) Classification {
	c := Classification{Raw: res.Raw, Code: res.Status}

	switch strings.ToUpper(res.Status) {
	case "SUCCESS", "PAID", "COMPLETED", "CAPTURED":
		c.Outcome = OutcomePaid
	case "FAILED", "DECLINED", "REJECTED", "CANCELLED", "EXPIRED":
		c.Outcome = OutcomeDeclined
		c.Message = "gateway reported the payment as failed"
	case "PENDING", "PROCESSING", "IN_PROGRESS":
		c.Outcome = OutcomeInFlight
	case "NOT_FOUND":
		c.Outcome = OutcomeNotFound
		c.Message = "order not found at gateway"
	default:
		c.Outcome = OutcomeAmbiguous
		c.Code = "UNKNOWN_STATUS"
		c.Message = "gateway returned unrecognized status: " + res.Status
	}

	return c
}

// ClassifyError buckets a transport or HTTP error from the gateway call.
func ClassifyError(err error) Classification {
	if gwErr, ok := IsGatewayError(err); ok {
		switch {
		case gwErr.StatusCode == 404:
			return Classification{
				Outcome: OutcomeNotFound,
				Code:    "ORDER_NOT_FOUND",
				Message: gwErr.Message,
			}
		case gwErr.StatusCode >= 400 && gwErr.StatusCode < 500:
			return Classification{
				Outcome: OutcomeDeclined,
				Code:    "GATEWAY_CLIENT_ERROR",
				Message: gwErr.Message,
			}
		default:
			// 5xx and malformed bodies: the gateway may have processed
			// the charge before failing to answer.
			return Classification{
				Outcome: OutcomeAmbiguous,
				Code:    "GATEWAY_SERVER_ERROR",
				Message: gwErr.Message,
			}
		}
	}

	if isConnectFailure(err) {
		return Classification{
			Outcome: OutcomeRetrySafe,
			Code:    "CONNECT_FAILURE",
			Message: err.Error(),
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Classification{
			Outcome: OutcomeAmbiguous,
			Code:    "GATEWAY_TIMEOUT",
			Message: "gateway did not respond within the request timeout",
		}
	}

	return Classification{
		Outcome: OutcomeAmbiguous,
		Code:    "NETWORK_ERROR",
		Message: err.Error(),
	}
}

// isConnectFailure reports whether the error happened while establishing
// the connection, before any bytes of the request could have been written.
// Only these errors justify a blind retry.
func isConnectFailure(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}

	return false
}
