package rategovernor

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/veribatch/internal/domain"
)

const (
	// DefaultLimitPerMinute is the provider's advertised cap.
	DefaultLimitPerMinute = 200
	// DefaultBuffer is subtracted from DefaultLimitPerMinute to leave
	// headroom for the provider's own jitter (spec.md §4.3).
	DefaultBuffer = 20
)

// checkAndIncrementScript atomically checks the current window total
// against the limit and only increments if the increment still fits,
// mirroring multiLimitLuaScript's check-before-mutate shape.
const checkAndIncrementScript = `
local key = KEYS[1]
local increment = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local current = tonumber(redis.call("GET", key) or "0")

if current + increment > limit then
    return {0, current}
end

local newVal = redis.call("INCRBY", key, increment)
if newVal == increment then
    redis.call("EXPIRE", key, ttl)
end

return {1, newVal}
`

// Gate is a Redis-backed sliding rate limiter for provider API calls. It
// buckets by the current 60-second epoch rather than a true sliding log,
// which is the same approximation the teacher's rate limiter makes for
// its second/minute/day buckets.
type Gate struct {
	redis  *redis.Client
	repo   Repository
	script *redis.Script

	limit int
}

// NewGate builds a Gate with the default limit (200 - 20 buffer = 180
// usable requests/minute). Use WithLimit to override in tests.
func NewGate(redisClient *redis.Client, repo Repository) *Gate {
	return &Gate{
		redis:  redisClient,
		repo:   repo,
		script: redis.NewScript(checkAndIncrementScript),
		limit:  DefaultLimitPerMinute - DefaultBuffer,
	}
}

// WithLimit overrides the usable-per-minute limit, e.g. for tests.
func (g *Gate) WithLimit(limit int) *Gate {
	g.limit = limit
	return g
}

func windowKey(ct domain.CheckType, kind domain.RequestKind, epoch int64) string {
	return fmt.Sprintf("rategovernor:%s:%s:%d", ct, kind, epoch)
}

// Check reports whether n additional requests of the given kind would fit
// within the current window, and atomically reserves them if so. Callers
// MUST call Record after a successful provider call that Check admitted —
// Check already performs the Redis-side increment; Record persists the
// durable audit row (spec.md §4.3 contract).
func (g *Gate) Check(ctx context.Context, ct domain.CheckType, kind domain.RequestKind, n int) (ok bool, current int, err error) {
	epoch := time.Now().Unix() / 60
	key := windowKey(ct, kind, epoch)

	result, err := g.script.Run(ctx, g.redis, []string{key}, n, g.limit, 120).Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rategovernor: check: %w", err)
	}

	allowed := result[0].(int64) == 1
	total := int(result[1].(int64))
	return allowed, total, nil
}

// Record persists the RateCounter audit row for a granted admission. The
// Redis-side counter is already incremented by Check; this call only
// updates the durable ledger and never blocks admission on its own
// success.
func (g *Gate) Record(ctx context.Context, ct domain.CheckType, kind domain.RequestKind, n int) error {
	if g.repo == nil {
		return nil
	}
	if err := g.repo.RecordGrant(ctx, ct, kind, n); err != nil {
		return fmt.Errorf("rategovernor: record: %w", err)
	}
	return nil
}
