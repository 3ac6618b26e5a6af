package ratelimit

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each key's admission log in a sorted set scored by
// microsecond timestamp, so several instances share one window.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// hitScript trims the window and records the hit only when it is admitted,
// in one atomic step. It returns {1, seen} or {0, seen, oldest score}.
var hitScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[4])

redis.call("ZREMRANGEBYSCORE", key, "-inf", ARGV[1])
local seen = redis.call("ZCARD", key)
if seen < limit then
	redis.call("ZADD", key, ARGV[2], ARGV[3])
	redis.call("PEXPIRE", key, ARGV[5])
	return {1, seen}
end

local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
return {0, seen, oldest[2]}
`)

// NewRedisStore returns a store that namespaces keys under prefix. Keys are
// joined to the prefix with a single colon.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	prefix = strings.TrimRight(prefix, ":")
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Hit(ctx context.Context, key string, rule Rule, now time.Time) (Decision, error) {
	k := s.prefix + ":" + key
	nowScore := now.UnixMicro()
	cutoff := now.Add(-rule.Window).UnixMicro()
	member, err := hitMember(nowScore)
	if err != nil {
		return Decision{}, err
	}

	vals, err := hitScript.Run(ctx, s.client, []string{k},
		cutoff,
		nowScore,
		member,
		rule.Limit,
		max(rule.Window.Milliseconds(), 1),
	).Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: redis hit %s: %w", key, err)
	}
	if len(vals) < 2 {
		return Decision{}, fmt.Errorf("ratelimit: redis hit %s: short reply %v", key, vals)
	}
	allowed, _ := vals[0].(int64)
	seen, _ := vals[1].(int64)

	if allowed == 1 {
		return Decision{
			Allowed:   true,
			Limit:     rule.Limit,
			Remaining: rule.Limit - int(seen) - 1,
		}, nil
	}

	retry := rule.Window
	if len(vals) > 2 {
		if raw, ok := vals[2].(string); ok {
			if score, err := strconv.ParseFloat(raw, 64); err == nil {
				retry = time.UnixMicro(int64(score)).Add(rule.Window).Sub(now)
			}
		}
	}
	return Decision{Allowed: false, Limit: rule.Limit, RetryAfter: retry}, nil
}

// hitMember makes each admission a distinct set member even when two land in
// the same microsecond.
func hitMember(score int64) (string, error) {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("ratelimit: member entropy: %w", err)
	}
	return strconv.FormatInt(score, 10) + "-" + hex.EncodeToString(b[:]), nil
}
