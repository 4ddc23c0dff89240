package trigger

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// DefaultInterval is the minimum spacing between two downstream triggers.
const DefaultInterval = time.Minute

// Gate decides whether a trigger may fire at now. A true answer consumes the
// window: no other call is allowed until interval has elapsed.
// Implementations must serialise concurrent callers.
type Gate interface {
	Allow(ctx context.Context, now time.Time) bool
}

// LocalGate is a process-local gate: a token bucket holding one token that
// refills once per interval. rate.Limiter guards its own state.
type LocalGate struct {
	limiter *rate.Limiter
}

// NewLocalGate creates a process-local gate.
func NewLocalGate(interval time.Duration) *LocalGate {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &LocalGate{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Allow reports whether a trigger may fire at now.
func (g *LocalGate) Allow(_ context.Context, now time.Time) bool {
	return g.limiter.AllowN(now, 1)
}

// RedisGate shares the window between replicas with SET NX PX.
// When Redis is unreachable it falls back to a local gate.
type RedisGate struct {
	client   redis.UniversalClient
	key      string
	interval time.Duration
	fallback *LocalGate
	logger   *log.Logger
}

// RedisGateOptions contains configuration for creating a RedisGate.
type RedisGateOptions struct {
	Client   redis.UniversalClient
	Key      string        // Default: "helius:trigger:last"
	Interval time.Duration // Default: DefaultInterval
	Logger   *log.Logger
}

// NewRedisGate creates a gate backed by Redis.
func NewRedisGate(opts RedisGateOptions) *RedisGate {
	key := opts.Key
	if key == "" {
		key = "helius:trigger:last"
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &RedisGate{
		client:   opts.Client,
		key:      key,
		interval: interval,
		fallback: NewLocalGate(interval),
		logger:   logger,
	}
}

// Allow reports whether this replica won the current window.
func (g *RedisGate) Allow(ctx context.Context, now time.Time) bool {
	ok, err := g.client.SetNX(ctx, g.key, now.UTC().Format(time.RFC3339Nano), g.interval).Result()
	if err != nil {
		g.logger.Printf("Trigger gate: redis unavailable, using local window: %v", err)
		return g.fallback.Allow(ctx, now)
	}
	return ok
}

// String describes the gate for startup logs.
func (g *RedisGate) String() string {
	return fmt.Sprintf("redis gate key=%s interval=%v", g.key, g.interval)
}

var (
	_ Gate = (*LocalGate)(nil)
	_ Gate = (*RedisGate)(nil)
)
