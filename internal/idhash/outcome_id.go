// Package idhash derives deterministic identifiers for persisted records.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeOutcomeID computes a deterministic outcome ID using SHA256.
// Formula: SHA256(run_id|security_id|source_path)
// Returns hex-encoded hash (64 characters).
func ComputeOutcomeID(runID, securityID, sourcePath string) string {
	data := fmt.Sprintf("%s|%s|%s", runID, securityID, sourcePath)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
