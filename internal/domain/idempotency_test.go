package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveIdempotencyKey_Deterministic(t *testing.T) {
	money := Money{Amount: 5000, Currency: "EGP"}

	a := DeriveIdempotencyKey("trip-1", "payer-1", money)
	b := DeriveIdempotencyKey("trip-1", "payer-1", money)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestDeriveIdempotencyKey_SensitiveToEveryField(t *testing.T) {
	base := DeriveIdempotencyKey("trip-1", "payer-1", Money{Amount: 5000, Currency: "EGP"})

	assert.NotEqual(t, base, DeriveIdempotencyKey("trip-2", "payer-1", Money{Amount: 5000, Currency: "EGP"}))
	assert.NotEqual(t, base, DeriveIdempotencyKey("trip-1", "payer-2", Money{Amount: 5000, Currency: "EGP"}))
	assert.NotEqual(t, base, DeriveIdempotencyKey("trip-1", "payer-1", Money{Amount: 5001, Currency: "EGP"}))
	assert.NotEqual(t, base, DeriveIdempotencyKey("trip-1", "payer-1", Money{Amount: 5000, Currency: "USD"}))
}

func TestDeriveIdempotencyKey_KnownValue(t *testing.T) {
	sum := sha256.Sum256([]byte("trip-1|payer-1|5000|EGP"))
	want := hex.EncodeToString(sum[:])

	assert.Equal(t, want, DeriveIdempotencyKey("trip-1", "payer-1", Money{Amount: 5000, Currency: "EGP"}))
}
