package security

import "time"

// Skew returns the absolute distance between now and a unix timestamp in
// seconds. Fractional seconds of now are ignored, so a timestamp taken in
// the same second has zero skew.
func Skew(now time.Time, unixSeconds int64) time.Duration {
	d := now.Unix() - unixSeconds
	if d < 0 {
		d = -d
	}
	// Clamp before converting so absurd timestamps can't overflow Duration.
	const maxSeconds = int64(1<<63-1) / int64(time.Second)
	if d > maxSeconds || d < 0 {
		d = maxSeconds
	}
	return time.Duration(d) * time.Second
}

// WithinSkew reports whether a unix timestamp is within tolerance of now,
// inclusive.
func WithinSkew(now time.Time, unixSeconds int64, tolerance time.Duration) bool {
	return Skew(now, unixSeconds) <= tolerance
}
