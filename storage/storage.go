package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrStoreUnavailable is returned when the backing store cannot be reached.
	ErrStoreUnavailable = errors.New("window store unavailable")

	// ErrInvalidKey is returned for empty keys.
	ErrInvalidKey = errors.New("invalid window key")

	// ErrInvalidWindow is returned for non-positive window durations.
	ErrInvalidWindow = errors.New("invalid window duration")
)

// WindowStore records request instants per key inside a rolling window.
// All methods accept context.Context for tracing and cancellation.
type WindowStore interface {
	// Record atomically drops the instants recorded for key that are at least
	// window older than now, appends now, and returns the number of instants
	// left inside the window (including now).
	//
	// Implementations may keep only the newest limit+1 instants of a key: once
	// limit+1 instants are inside the window every older one expires before them,
	// so dropping older entries never changes an allow/deny decision. A limit
	// of zero or less disables trimming.
	//
	// SECURITY: Concurrent calls for the same key MUST be serialised so that two
	// callers never both observe a pre-increment count.
	Record(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (int, error)
}

// Sizer is implemented by stores that can report how many keys they track.
// It is optional and only used for capacity gauges.
type Sizer interface {
	Len() int
}

// ValidateRecordArgs checks the arguments shared by every Record implementation.
func ValidateRecordArgs(key string, window time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}
	if window <= 0 {
		return ErrInvalidWindow
	}
	return nil
}
