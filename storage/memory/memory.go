package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/invite-gate/instrumentation"
	"github.com/giantswarm/invite-gate/storage"
)

const (
	// DefaultShards is the number of independently locked partitions.
	DefaultShards = 32

	// DefaultEvictionThreshold is the key count above which sweeps may run.
	DefaultEvictionThreshold = 1000

	// DefaultSweepProbability is the chance that a Record call above the
	// threshold triggers a sweep.
	DefaultSweepProbability = 0.1

	// forcedSweepFactor multiplies the threshold, and the key count left by the
	// last sweep, to get the key count at which Record sweeps regardless of
	// probability.
	forcedSweepFactor = 2
)

type shard struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

// Store is an in-memory sliding-window store.
type Store struct {
	shards []*shard

	evictionThreshold int
	sweepProbability  float64
	randFloat         func() float64

	keys           atomic.Int64
	nextForced     atomic.Int64
	sweeping       atomic.Bool
	totalEvictions atomic.Int64
	totalSweeps    atomic.Int64

	instrumentation *instrumentation.Instrumentation
	tracer          trace.Tracer
	logger          *slog.Logger
}

var (
	_ storage.WindowStore = (*Store)(nil)
	_ storage.Sizer       = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithShards sets the number of lock shards. Values below 1 are ignored.
func WithShards(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.shards = make([]*shard, n)
		}
	}
}

// WithEvictionThreshold sets the key count above which eviction sweeps run.
// Values below 1 are ignored.
func WithEvictionThreshold(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.evictionThreshold = n
		}
	}
}

// WithSweepProbability sets the chance (0..1] that a Record call above the
// threshold sweeps. Out-of-range values are ignored.
func WithSweepProbability(p float64) Option {
	return func(s *Store) {
		if p > 0 && p <= 1 {
			s.sweepProbability = p
		}
	}
}

// WithLogger sets the logger. A nil logger keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		shards:            make([]*shard, DefaultShards),
		evictionThreshold: DefaultEvictionThreshold,
		sweepProbability:  DefaultSweepProbability,
		randFloat:         rand.Float64,
		logger:            slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	for i := range s.shards {
		s.shards[i] = &shard{windows: make(map[string][]time.Time)}
	}
	s.nextForced.Store(int64(forcedSweepFactor * s.evictionThreshold))
	return s
}

// SetInstrumentation sets OpenTelemetry instrumentation for the store and
// registers the tracked-keys gauge.
func (s *Store) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.instrumentation = inst
	if inst == nil {
		return
	}
	s.tracer = inst.Tracer("storage")
	if err := inst.RegisterWindowKeysCallback(func() int64 { return s.keys.Load() }); err != nil {
		s.logger.Warn("Failed to register window keys callback", "error", err)
	}
}

func (s *Store) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// Record implements storage.WindowStore.
func (s *Store) Record(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (int, error) {
	ctx, span := s.startStorageSpan(ctx, "record")
	defer span.End()
	startTime := time.Now()

	if err := storage.ValidateRecordArgs(key, window); err != nil {
		s.recordStorageOperation(ctx, span, "record", err, startTime)
		return 0, err
	}

	sh := s.shardFor(key)
	sh.mu.Lock()
	prev, existed := sh.windows[key]
	kept := prune(prev, now, window)
	kept = append(kept, now)
	if limit > 0 && len(kept) > limit+1 {
		kept = append(kept[:0:0], kept[len(kept)-(limit+1):]...)
	}
	sh.windows[key] = kept
	if !existed {
		s.keys.Add(1)
	}
	count := len(kept)
	sh.mu.Unlock()

	s.maybeSweep(now, window)

	span.SetAttributes(attribute.Int("window.count", count))
	s.recordStorageOperation(ctx, span, "record", nil, startTime)
	return count, nil
}

// prune keeps the timestamps strictly younger than window, reusing ts.
func prune(ts []time.Time, now time.Time, window time.Duration) []time.Time {
	kept := ts[:0]
	for _, t := range ts {
		if now.Sub(t) < window {
			kept = append(kept, t)
		}
	}
	return kept
}

func (s *Store) maybeSweep(now time.Time, window time.Duration) {
	n := s.keys.Load()
	if n <= int64(s.evictionThreshold) {
		return
	}
	forced := n > s.nextForced.Load()
	if !forced && s.randFloat() >= s.sweepProbability {
		return
	}
	if !s.sweeping.CompareAndSwap(false, true) {
		return
	}
	defer s.sweeping.Store(false)

	evicted := s.Sweep(now, window)
	remaining := s.keys.Load()

	// Live keys survive a sweep, so the next forced sweep waits until the
	// table has doubled again.
	s.nextForced.Store(max(int64(forcedSweepFactor*s.evictionThreshold), forcedSweepFactor*remaining))

	s.logger.Debug("Window store sweep completed",
		"evicted", evicted,
		"remaining", remaining,
		"forced", forced)
}

// Sweep removes every key whose timestamps have all left the window and
// returns how many keys were removed. Keys with at least one timestamp inside
// the window are pruned but kept. A non-positive window removes nothing.
func (s *Store) Sweep(now time.Time, window time.Duration) int {
	if window <= 0 {
		return 0
	}
	evicted := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, ts := range sh.windows {
			kept := prune(ts, now, window)
			if len(kept) == 0 {
				delete(sh.windows, key)
				evicted++
				continue
			}
			sh.windows[key] = kept
		}
		sh.mu.Unlock()
	}
	s.keys.Add(-int64(evicted))
	s.totalEvictions.Add(int64(evicted))
	s.totalSweeps.Add(1)
	return evicted
}

// StartJanitor sweeps the store every interval until ctx is cancelled.
// It complements the opportunistic sweeps triggered by Record. window must be
// the limiter's window; a non-positive window starts no janitor.
func (s *Store) StartJanitor(ctx context.Context, every, window time.Duration) {
	if window <= 0 {
		s.logger.Warn("Window store janitor not started: invalid window", "window", window)
		return
	}
	if every <= 0 {
		every = time.Minute
	}
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if !s.sweeping.CompareAndSwap(false, true) {
					continue
				}
				evicted := s.Sweep(now, window)
				s.sweeping.Store(false)
				if evicted > 0 {
					s.logger.Debug("Window store janitor evicted keys", "evicted", evicted)
				}
			}
		}
	}()
}

// Len returns the number of tracked keys.
func (s *Store) Len() int {
	return int(s.keys.Load())
}

// Stats holds capacity statistics for the store.
type Stats struct {
	CurrentKeys       int
	EvictionThreshold int
	TotalEvictions    int64
	TotalSweeps       int64
	MemoryPressure    float64 // CurrentKeys / EvictionThreshold
}

// Stats returns current capacity statistics.
func (s *Store) Stats() Stats {
	current := int(s.keys.Load())
	return Stats{
		CurrentKeys:       current,
		EvictionThreshold: s.evictionThreshold,
		TotalEvictions:    s.totalEvictions.Load(),
		TotalSweeps:       s.totalSweeps.Load(),
		MemoryPressure:    float64(current) / float64(s.evictionThreshold),
	}
}

func (s *Store) startStorageSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	if s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, fmt.Sprintf("storage.%s", operation),
		trace.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("storage.backend", "memory"),
		))
}

func (s *Store) recordStorageOperation(ctx context.Context, span trace.Span, operation string, err error, startTime time.Time) {
	if s.instrumentation == nil {
		return
	}

	result := "success"
	if err != nil {
		result = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	durationMs := float64(time.Since(startTime).Microseconds()) / 1000
	s.instrumentation.Metrics().RecordStorageOperation(ctx, "memory", operation, result, durationMs)
}
