package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const dedupKeyPrefix = "webhook_event:"

// RedisDeduplicator stores claimed event ids in Redis with a TTL so dedup state is
// shared across instances and survives restarts.
type RedisDeduplicator struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

func NewRedisDeduplicator(client *redis.Client, ttl time.Duration) *RedisDeduplicator {
	if client == nil {
		panic("events: redis client required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDeduplicator{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("callcrm.internal.events.dedup"),
	}
}

func (d *RedisDeduplicator) Seen(ctx context.Context, eventID string) (bool, error) {
	ctx, span := d.tracer.Start(ctx, "events.dedup.seen")
	defer span.End()

	err := d.redis.Get(ctx, dedupKeyPrefix+eventID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("events: dedup lookup: %w", err)
	}
	return true, nil
}

func (d *RedisDeduplicator) MarkSeen(ctx context.Context, eventID string) (bool, error) {
	ctx, span := d.tracer.Start(ctx, "events.dedup.mark")
	defer span.End()

	ok, err := d.redis.SetNX(ctx, dedupKeyPrefix+eventID, time.Now().UTC().Unix(), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("events: dedup claim: %w", err)
	}
	return ok, nil
}
