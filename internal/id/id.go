package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// New returns a random 128-bit job identifier in hex, prefixed so it reads as
// a derive job in queue dashboards.
func New() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("read random job id: %w", err)
	}
	return "derive-" + hex.EncodeToString(b[:]), nil
}
