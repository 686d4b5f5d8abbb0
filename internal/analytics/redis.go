// Package analytics provides counters for fired triggers and generator
// runs, bucketed by time window and stored in Redis.
package analytics

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisSink counts occurrences per record and time bucket. Each write
// increments the bucket key and refreshes its retention TTL.
type RedisSink struct {
	client    *redis.Client
	window    time.Duration
	retention time.Duration
}

func NewRedisSink(client *redis.Client, window, retention time.Duration) *RedisSink {
	if window <= 0 {
		window = time.Minute
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &RedisSink{client: client, window: window, retention: retention}
}

// Record increments the counter for (kind, id) in the bucket containing
// at. It never returns an error: analytics is a best-effort side effect
// and failures are only logged.
func (s *RedisSink) Record(ctx context.Context, kind string, id uuid.UUID, at time.Time) {
	key := buildKey(kind, id.String(), at, s.window)

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.retention)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("analytics: redis pipeline: %v", err)
	}
}

// Count returns the counter for (kind, id) in the bucket containing at.
// A missing bucket counts as zero.
func (s *RedisSink) Count(ctx context.Context, kind string, id uuid.UUID, at time.Time) (int64, error) {
	key := buildKey(kind, id.String(), at, s.window)
	n, err := s.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get: %w", err)
	}
	return n, nil
}

func buildKey(kind, id string, t time.Time, window time.Duration) string {
	return fmt.Sprintf("ec:%s:%s:%s", kind, id, truncateToBucket(t, window))
}

func truncateToBucket(t time.Time, window time.Duration) string {
	t = t.UTC()
	switch window {
	case time.Minute:
		return t.Format("200601021504")
	case 5 * time.Minute:
		minute := (t.Minute() / 5) * 5
		return t.Format("2006010215") + fmt.Sprintf("%02d", minute)
	case time.Hour:
		return t.Format("2006010215")
	default:
		return t.Format("200601021504")
	}
}
