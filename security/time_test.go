package security

import (
	"math"
	"testing"
	"time"
)

func TestSkew(t *testing.T) {
	now := time.Unix(1_700_000_000, 500_000_000)

	tests := []struct {
		name string
		ts   int64
		want time.Duration
	}{
		{name: "same second", ts: 1_700_000_000, want: 0},
		{name: "past", ts: 1_700_000_000 - 10, want: 10 * time.Second},
		{name: "future", ts: 1_700_000_000 + 31, want: 31 * time.Second},
		{name: "absurd past", ts: math.MinInt64 + 1, want: time.Duration(int64(math.MaxInt64)/int64(time.Second)) * time.Second},
		{name: "absurd future", ts: math.MaxInt64, want: time.Duration(int64(math.MaxInt64)/int64(time.Second)) * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Skew(now, tt.ts); got != tt.want {
				t.Errorf("Skew() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWithinSkew(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name      string
		ts        int64
		tolerance time.Duration
		want      bool
	}{
		{name: "exact boundary past", ts: 1_700_000_000 - 10, tolerance: 10 * time.Second, want: true},
		{name: "exact boundary future", ts: 1_700_000_000 + 10, tolerance: 10 * time.Second, want: true},
		{name: "one second over", ts: 1_700_000_000 - 11, tolerance: 10 * time.Second, want: false},
		{name: "redemption tolerance", ts: 1_700_000_000 - 30, tolerance: 30 * time.Second, want: true},
		{name: "zero timestamp", ts: 0, tolerance: 30 * time.Second, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WithinSkew(now, tt.ts, tt.tolerance); got != tt.want {
				t.Errorf("WithinSkew() = %v, want %v", got, tt.want)
			}
		})
	}
}
