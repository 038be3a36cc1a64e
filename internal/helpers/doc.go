// Package helpers provides small utility functions shared across the invite-gate packages.
//
// Key utilities:
//   - SafeTruncate: Safely truncates strings (identification strings, signatures) for logging
//   - HashForLogging: Produces a short, stable, non-reversible digest of sensitive values
//   - ClassifyIP: Classifies network addresses (public, private, loopback, etc.)
package helpers
