// Package ratelimit implements fixed one-minute window request limits, backed by
// Redis when available and by process memory otherwise.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/rajasatyajit/CommentIntel/config"
)

const window = time.Minute

// Decision is the outcome of one rate check
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetSec  int
}

// Limiter counts requests per key in one-minute windows
type Limiter interface {
	CheckRate(ctx context.Context, key string, rpm int) (Decision, error)
}

// Connect parses the Redis URL and pings the server
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.Password != "" {
		opt.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opt.DB = cfg.DB
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// Manager provides Redis-backed rate limiting shared by every API replica
type Manager struct {
	redis *redis.Client
	now   func() time.Time
}

// NewManager creates a Manager on an existing client
func NewManager(client *redis.Client) *Manager {
	return &Manager{redis: client, now: time.Now}
}

// Close closes the underlying client
func (m *Manager) Close() error { return m.redis.Close() }

// CheckRate counts one request for key and reports whether it fits within rpm
func (m *Manager) CheckRate(ctx context.Context, key string, rpm int) (Decision, error) {
	now := m.now().UTC()
	slot := now.Unix() / int64(window.Seconds())
	rk := fmt.Sprintf("rl:%s:%d", key, slot)

	// INCR and set TTL in one round trip
	pipe := m.redis.TxPipeline()
	incr := pipe.Incr(ctx, rk)
	pipe.Expire(ctx, rk, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("rate check: %w", err)
	}

	return decide(int(incr.Val()), rpm, now), nil
}

// MemoryLimiter is a single-process Limiter
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	slot  int64
	count int
}

// NewMemoryLimiter creates an empty in-memory limiter
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{buckets: make(map[string]*bucket), now: time.Now}
}

// CheckRate counts one request for key and reports whether it fits within rpm
func (l *MemoryLimiter) CheckRate(ctx context.Context, key string, rpm int) (Decision, error) {
	now := l.now().UTC()
	slot := now.Unix() / int64(window.Seconds())

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.buckets[key]
	if b == nil || b.slot != slot {
		b = &bucket{slot: slot}
		l.buckets[key] = b
		// drop stale windows
		for k, other := range l.buckets {
			if other.slot != slot {
				delete(l.buckets, k)
			}
		}
	}
	b.count++
	return decide(b.count, rpm, now), nil
}

func decide(count, rpm int, now time.Time) Decision {
	return Decision{
		Allowed:   count <= rpm,
		Limit:     rpm,
		Remaining: max(rpm-count, 0),
		ResetSec:  int(window.Seconds()) - int(now.Unix()%int64(window.Seconds())),
	}
}
