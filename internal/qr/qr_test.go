package qr_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fbrgate/internal/qr"
)

func TestPayload(t *testing.T) {
	date := time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, "FBR:FBR-0001:3510:2025-06-01", qr.Payload("FBR-0001", 3510, date))
}

func TestPayload_Deterministic(t *testing.T) {
	date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	a := qr.Payload("LOCAL-1234567-000042", 1170, date)
	b := qr.Payload("LOCAL-1234567-000042", 1170, date)
	assert.Equal(t, a, b)
}

func TestPayload_NormalizesToUTCDate(t *testing.T) {
	karachi := time.FixedZone("PKT", 5*60*60)
	// 02:00 PKT on June 2 is still June 1 in UTC
	date := time.Date(2025, 6, 2, 2, 0, 0, 0, karachi)
	assert.Equal(t, "FBR:FBR-0001:100:2025-06-01", qr.Payload("FBR-0001", 100, date))
}
