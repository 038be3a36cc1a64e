// Package testutil provides testing utilities for the invite gate: a mock
// clock, shared identification strings and an HTTP request builder.
package testutil
