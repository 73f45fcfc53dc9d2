package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// admitScript purges, counts and conditionally records one admission as a
// single atomic unit, so concurrent callers can never read the same count
// and all admit past capacity. Scores are in milliseconds: Lua numbers are
// doubles and nanosecond epochs lose precision past 2^53.
//
// KEYS[1] window sorted set
// ARGV[1] cutoff (ms), ARGV[2] now (ms), ARGV[3] capacity,
// ARGV[4] member, ARGV[5] key TTL (ms)
//
// Returns {allowed, count-after, oldest-score-ms}.
var admitScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, ARGV[1])
local count = redis.call('ZCARD', KEYS[1])
if count < tonumber(ARGV[3]) then
	redis.call('ZADD', KEYS[1], ARGV[2], ARGV[4])
	redis.call('PEXPIRE', KEYS[1], ARGV[5])
	return {1, count + 1, 0}
end
local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
local score = 0
if oldest[2] then
	score = tonumber(oldest[2])
end
return {0, count, score}
`)

// RedisStore keeps sliding-window state in a Redis sorted set per tenant,
// scored by admission time in milliseconds. Used when multiple instances
// must share admission state.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "ratelimit:"}
}

func (s *RedisStore) key(tenant string) string {
	return s.prefix + tenant
}

func (s *RedisStore) Admit(ctx context.Context, tenant string, rule Rule, now time.Time) (Decision, error) {
	key := s.key(tenant)
	capacity := rule.Capacity()
	cutoff := now.Add(-rule.Window).UnixMilli()
	// Members must be unique even for admissions in the same instant, or
	// ZADD collapses them and the set undercounts.
	member := strconv.FormatInt(now.UnixNano(), 10) + ":" + uuid.NewString()

	res, err := admitScript.Run(ctx, s.client, []string{key},
		cutoff, now.UnixMilli(), capacity, member, (rule.Window * 2).Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit admit: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("rate limit admit: unexpected reply of length %d", len(res))
	}

	count := int(res[1])
	if res[0] == 1 {
		return Decision{
			Allowed:   true,
			Limit:     capacity,
			Remaining: capacity - count,
			Reset:     now.Add(rule.Window),
		}, nil
	}

	reset := now.Add(rule.Window)
	if res[2] > 0 {
		reset = time.UnixMilli(res[2]).Add(rule.Window)
	}
	retryAfter := reset.Sub(now)
	if retryAfter < 0 {
		retryAfter = 0
	}
	return Decision{
		Allowed:    false,
		Limit:      capacity,
		Remaining:  0,
		Reset:      reset,
		RetryAfter: retryAfter,
	}, nil
}

// Purge is a no-op for Redis: per-key TTLs expire idle tenants.
func (s *RedisStore) Purge(context.Context, time.Duration) error {
	return nil
}
