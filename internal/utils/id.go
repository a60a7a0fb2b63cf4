package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// NewRequestID returns a short random identifier used to correlate batch
// jobs with their webhook deliveries and log lines.
func NewRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(b)
}
