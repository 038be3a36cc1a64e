package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/invite-gate/instrumentation"
	"github.com/giantswarm/invite-gate/storage"
)

// DefaultPrefix namespaces window keys.
const DefaultPrefix = "invitegate:window:"

// recordScript prunes, appends, trims and counts one window.
// Numbers arrive preformatted in ARGV; Lua number formatting would lose
// precision on microsecond timestamps.
//
//	KEYS[1] window key
//	ARGV[1] score of now (unix micros)
//	ARGV[2] prune cutoff, inclusive (unix micros)
//	ARGV[3] unique member
//	ARGV[4] entries to keep (0 disables trimming)
//	ARGV[5] key ttl in milliseconds
const recordScript = `
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[2])
redis.call("ZADD", KEYS[1], ARGV[1], ARGV[3])
local n = redis.call("ZCARD", KEYS[1])
local keep = tonumber(ARGV[4])
if keep > 0 and n > keep then
  redis.call("ZREMRANGEBYRANK", KEYS[1], 0, n - keep - 1)
  n = keep
end
redis.call("PEXPIRE", KEYS[1], ARGV[5])
return n
`

var recordLua = goredis.NewScript(recordScript)

// Store is a Redis-backed sliding-window store.
type Store struct {
	redis  goredis.UniversalClient
	prefix string

	instrumentation *instrumentation.Instrumentation
	tracer          trace.Tracer
	logger          *slog.Logger
}

var _ storage.WindowStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the key namespace.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
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

// New creates a store backed by the given Redis client.
func New(client goredis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		redis:  client,
		prefix: DefaultPrefix,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetInstrumentation sets OpenTelemetry instrumentation for the store.
func (s *Store) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.instrumentation = inst
	if inst != nil {
		s.tracer = inst.Tracer("storage")
	}
}

func (s *Store) key(k string) string {
	return s.prefix + k
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

	nowMicros := now.UnixMicro()
	cutoff := nowMicros - window.Microseconds()
	keep := 0
	if limit > 0 {
		keep = limit + 1
	}
	ttlMs := window.Milliseconds()
	if ttlMs < 1 {
		ttlMs = 1
	}
	member := strconv.FormatInt(nowMicros, 10) + "-" + uuid.NewString()

	n, err := recordLua.Run(ctx, s.redis, []string{s.key(key)},
		strconv.FormatInt(nowMicros, 10),
		strconv.FormatInt(cutoff, 10),
		member,
		strconv.Itoa(keep),
		strconv.FormatInt(ttlMs, 10),
	).Int64()
	if err != nil {
		err = fmt.Errorf("%w: %v", storage.ErrStoreUnavailable, err)
		s.logger.Error("Window store record failed", "error", err)
		s.recordStorageOperation(ctx, span, "record", err, startTime)
		return 0, err
	}

	span.SetAttributes(attribute.Int64("window.count", n))
	s.recordStorageOperation(ctx, span, "record", nil, startTime)
	return int(n), nil
}

// Ping reports whether Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Store) startStorageSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	if s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, fmt.Sprintf("storage.%s", operation),
		trace.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("storage.backend", "redis"),
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
	s.instrumentation.Metrics().RecordStorageOperation(ctx, "redis", operation, result, durationMs)
}
