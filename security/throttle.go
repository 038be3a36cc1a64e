package security

import (
	"container/list"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultThrottleMaxEntries bounds the number of addresses the throttle tracks.
	DefaultThrottleMaxEntries = 10000

	// defaultThrottleIdle is how long an address may stay silent before Cleanup drops it.
	defaultThrottleIdle = 30 * time.Minute
)

type throttleEntry struct {
	address    string
	limiter    *rate.Limiter
	lastAccess time.Time
}

// EventThrottle limits how many audit events a single network address can
// produce, so a flood of rejected requests cannot flood the logs as well.
// It keeps one token bucket per address with LRU eviction to bound memory.
//
// The throttle only affects logging. It never decides whether a request is
// served; that is the job of RateLimiter.
type EventThrottle struct {
	entries    map[string]*list.Element
	lruList    *list.List // of *throttleEntry, most recent at front
	mu         sync.Mutex
	rate       rate.Limit
	burst      int
	maxEntries int
	logger     *slog.Logger

	totalEvictions  int64
	totalSuppressed int64
}

// NewEventThrottle allows burst events per address, refilled at perSecond.
// maxEntries <= 0 uses DefaultThrottleMaxEntries.
func NewEventThrottle(perSecond float64, burst, maxEntries int, logger *slog.Logger) *EventThrottle {
	if logger == nil {
		logger = slog.Default()
	}
	if maxEntries <= 0 {
		maxEntries = DefaultThrottleMaxEntries
	}
	return &EventThrottle{
		entries:    make(map[string]*list.Element),
		lruList:    list.New(),
		rate:       rate.Limit(perSecond),
		burst:      burst,
		maxEntries: maxEntries,
		logger:     logger,
	}
}

// Allow reports whether another event for address may be logged.
func (t *EventThrottle) Allow(address string) bool {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if elem, ok := t.entries[address]; ok {
		t.lruList.MoveToFront(elem)
		entry := elem.Value.(*throttleEntry)
		entry.lastAccess = now
		return t.record(entry.limiter.AllowN(now, 1))
	}

	if len(t.entries) >= t.maxEntries {
		t.evictLRU()
	}

	entry := &throttleEntry{
		address:    address,
		limiter:    rate.NewLimiter(t.rate, t.burst),
		lastAccess: now,
	}
	t.entries[address] = t.lruList.PushFront(entry)
	return t.record(entry.limiter.AllowN(now, 1))
}

func (t *EventThrottle) record(allowed bool) bool {
	if !allowed {
		t.totalSuppressed++
	}
	return allowed
}

// evictLRU must be called with the mutex held.
func (t *EventThrottle) evictLRU() {
	elem := t.lruList.Back()
	if elem == nil {
		return
	}
	entry := elem.Value.(*throttleEntry)
	delete(t.entries, entry.address)
	t.lruList.Remove(elem)
	t.totalEvictions++
}

// Cleanup drops addresses idle for longer than maxIdle.
func (t *EventThrottle) Cleanup(maxIdle time.Duration) int {
	if maxIdle <= 0 {
		maxIdle = defaultThrottleIdle
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	removed := 0
	// Oldest entries sit at the back; stop at the first fresh one.
	for elem := t.lruList.Back(); elem != nil; {
		entry := elem.Value.(*throttleEntry)
		if now.Sub(entry.lastAccess) <= maxIdle {
			break
		}
		prev := elem.Prev()
		delete(t.entries, entry.address)
		t.lruList.Remove(elem)
		removed++
		elem = prev
	}

	if removed > 0 {
		t.logger.Debug("Audit throttle cleanup completed",
			"removed", removed,
			"remaining", len(t.entries))
	}
	return removed
}

// Len returns the number of tracked addresses.
func (t *EventThrottle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// ThrottleStats holds throttle statistics for monitoring
type ThrottleStats struct {
	CurrentEntries  int
	MaxEntries      int
	TotalEvictions  int64
	TotalSuppressed int64
	MemoryPressure  float64 // percentage of MaxEntries in use (0-100)
}

// Stats returns current throttle statistics.
func (t *EventThrottle) Stats() ThrottleStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	return ThrottleStats{
		CurrentEntries:  len(t.entries),
		MaxEntries:      t.maxEntries,
		TotalEvictions:  t.totalEvictions,
		TotalSuppressed: t.totalSuppressed,
		MemoryPressure:  float64(len(t.entries)) / float64(t.maxEntries) * 100.0,
	}
}
