// Package schedule drives the periodic game jobs. A Gate makes sure a job runs at
// most once per period even when several workers share the schedule.
package schedule

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type Gate interface {
	// Acquire reports whether the caller owns job's period containing now.
	Acquire(ctx context.Context, job string, period time.Duration, now time.Time) (bool, error)
}

func periodStart(now time.Time, period time.Duration) time.Time {
	return now.UTC().Truncate(period)
}

// RedisGate claims periods with SET NX so only one worker replica runs each period.
type RedisGate struct {
	client *redis.Client
	prefix string
}

func NewRedisGate(client *redis.Client, prefix string) *RedisGate {
	if prefix == "" {
		prefix = "starpets:gate"
	}
	return &RedisGate{client: client, prefix: prefix}
}

// DialRedis connects and pings so a misconfigured address fails at startup.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

func (g *RedisGate) key(job string, start time.Time) string {
	return g.prefix + ":" + job + ":" + strconv.FormatInt(start.Unix(), 10)
}

func (g *RedisGate) Acquire(ctx context.Context, job string, period time.Duration, now time.Time) (bool, error) {
	start := periodStart(now, period)
	ttl := start.Add(period).Sub(now.UTC()) + period
	ok, err := g.client.SetNX(ctx, g.key(job, start), now.UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis gate %s: %w", job, err)
	}
	return ok, nil
}

// LocalGate is the single-process Gate used when no Redis is configured.
type LocalGate struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func NewLocalGate() *LocalGate {
	return &LocalGate{last: make(map[string]time.Time)}
}

func (g *LocalGate) Acquire(ctx context.Context, job string, period time.Duration, now time.Time) (bool, error) {
	start := periodStart(now, period)
	g.mu.Lock()
	defer g.mu.Unlock()
	if last, ok := g.last[job]; ok && !start.After(last) {
		return false, nil
	}
	g.last[job] = start
	return true, nil
}
