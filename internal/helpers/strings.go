package helpers

import (
	"crypto/sha256"
	"encoding/hex"
)

// SafeTruncate safely truncates a string to maxLen bytes without panicking.
// Returns the original string if it's shorter than maxLen, otherwise returns
// the first maxLen bytes. Used when logging client-supplied values such as
// identification strings, which are unbounded in length.
//
// If maxLen is negative, it's treated as 0 and returns an empty string.
//
// Example:
//
//	SafeTruncate("Mozilla/5.0 (X11; Linux x86_64)", 11) // Returns: "Mozilla/5.0"
//	SafeTruncate("short", 10)                           // Returns: "short"
//	SafeTruncate("test", -1)                            // Returns: ""
func SafeTruncate(s string, maxLen int) string {
	if maxLen < 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// HashForLogging returns the first 16 hex characters of the SHA-256 digest of s.
// Empty input returns "<empty>" so that missing values remain visible in logs.
func HashForLogging(s string) string {
	if s == "" {
		return "<empty>"
	}
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}
