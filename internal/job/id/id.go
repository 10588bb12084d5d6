// Package id provides unique identifier generation for render jobs.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Generate creates a new unique render ID.
// Format: render-<timestamp>-<random>
// Example: render-1701432000-a1b2c3d4
func Generate() string {
	timestamp := time.Now().Unix()
	random := make([]byte, 4)
	if _, err := rand.Read(random); err != nil {
		// Fallback to nanosecond timestamp if crypto/rand fails
		return fmt.Sprintf("render-%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("render-%d-%s", timestamp, hex.EncodeToString(random))
}
