package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// DeriveIdempotencyKey builds a deterministic key from the business identity
// of a payment request, so the same logical request always collapses to the
// same Transaction no matter how often it is submitted.
func DeriveIdempotencyKey(tripID, payerID string, amount Money) string {
	payload := strings.Join([]string{
		tripID,
		payerID,
		fmt.Sprintf("%d", amount.Amount),
		amount.Currency,
	}, "|")

	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
