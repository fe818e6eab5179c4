package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputePositionID computes a deterministic position_id using SHA256.
// Formula: SHA256(mint|entry_order_id|entry_time_ms)
// Returns hex-encoded hash (64 characters).
//
// The entry order ID is unique per attempt, so a re-entry into the same
// mint after a close produces a distinct position ID while replays of the
// same entry stay stable.
func ComputePositionID(mint, entryOrderID string, entryTimeMs int64) string {
	data := fmt.Sprintf("%s|%s|%d", mint, entryOrderID, entryTimeMs)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeAssessmentID computes a deterministic assessment_id using SHA256.
// Formula: SHA256(mint|captured_at_ms)
// One snapshot is assessed at most once, so the capture time disambiguates
// repeated evaluations of the same mint.
func ComputeAssessmentID(mint string, capturedAtMs int64) string {
	data := fmt.Sprintf("%s|%d", mint, capturedAtMs)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
