// Package ratelimit throttles admin login attempts per client IP.
// Attempts are counted in fixed windows: the counter for an IP starts at the
// first attempt of a window and is dropped when the window ends.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter reports whether one more login attempt from the client identified
// by key fits in the current window.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// loginWindowScript counts one attempt and arms the key TTL on the first.
var loginWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// RedisLimiter keeps the per-IP counters in Redis so every server instance
// sees the same attempt count. Keys are prefix:ip:slot.
type RedisLimiter struct {
	limit  int
	window time.Duration

	client *redis.Client
	prefix string
}

func NewRedisLimiter(addr, password, prefix string, limit int, window time.Duration) (*RedisLimiter, error) {
	if limit <= 0 || window <= 0 {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("rate limiter redis addr is required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "authorsite:ratelimit"
	}
	return &RedisLimiter{
		limit:  limit,
		window: window,
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		prefix: prefix,
	}, nil
}

// Allow counts the attempt. It refuses the attempt when Redis cannot be reached.
func (l *RedisLimiter) Allow(ctx context.Context, key string) bool {
	key = clientKey(key)
	windowMs := l.window.Milliseconds()
	slot := time.Now().UTC().UnixMilli() / windowMs
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, slot)
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	res, err := loginWindowScript.Run(ctx, l.client, []string{redisKey}, windowMs).Int64()
	if err != nil {
		return false
	}
	return res <= int64(l.limit)
}

func (l *RedisLimiter) Close() error {
	return l.client.Close()
}

type window struct {
	slot  int64
	count int
}

// MemoryLimiter counts attempts in-process. It is used when no Redis address
// is configured and only holds for a single server instance.
type MemoryLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]window
}

func NewMemoryLimiter(limit int, w time.Duration) (*MemoryLimiter, error) {
	if limit <= 0 || w <= 0 {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	return &MemoryLimiter{
		limit:   limit,
		window:  w,
		now:     time.Now,
		windows: make(map[string]window),
	}, nil
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) bool {
	key = clientKey(key)
	slot := l.now().UTC().UnixMilli() / l.window.Milliseconds()

	l.mu.Lock()
	defer l.mu.Unlock()
	w := l.windows[key]
	if w.slot != slot {
		// drop stale windows so the map does not grow with every caller
		for k, old := range l.windows {
			if old.slot != slot {
				delete(l.windows, k)
			}
		}
		w = window{slot: slot}
	}
	w.count++
	l.windows[key] = w
	return w.count <= l.limit
}

// Unlimited allows every attempt; used when LOGIN_RATE_LIMIT_PER_MINUTE is 0.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) bool { return true }

// clientKey buckets requests without a resolvable client IP together.
func clientKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "unknown"
	}
	return key
}
