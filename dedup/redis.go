package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Compile-time interface check.
var _ Index = (*Redis)(nil)

// All keys are prefixed with "loyaltysync:" to avoid collisions.
const keyPrefix = "loyaltysync:"

// dedupKey returns the Set key for a subject: loyaltysync:dedup:{subject}
func dedupKey(subject string) string { return keyPrefix + "dedup:" + subject }

// Redis is an Index shared across processes, backed by Redis Sets. Each
// subject's hashes live in one Set with an optional expiry so idle
// subjects age out.
type Redis struct {
	client redis.Cmdable
	ttl    time.Duration
}

// RedisOption configures the Redis index.
type RedisOption func(*Redis)

// WithTTL sets the per-subject expiry, refreshed on every write. Zero
// means keys never expire.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) { r.ttl = ttl }
}

// NewRedis creates a Redis-backed index. The caller owns the client
// lifecycle.
func NewRedis(client redis.Cmdable, opts ...RedisOption) *Redis {
	r := &Redis{client: client}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Redis) Seen(ctx context.Context, subject, hash string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, dedupKey(subject), hash).Result()
	if err != nil {
		return false, fmt.Errorf("dedup: seen %q: %w", subject, err)
	}
	return ok, nil
}

func (r *Redis) Record(ctx context.Context, subject, hash string) error {
	return r.RecordAll(ctx, subject, []string{hash})
}

func (r *Redis) RecordAll(ctx context.Context, subject string, hashes []string) error {
	if len(hashes) == 0 {
		return nil
	}
	key := dedupKey(subject)
	members := make([]any, len(hashes))
	for i, h := range hashes {
		members[i] = h
	}
	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, key, members...)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("dedup: record %q: %w", subject, err)
	}
	return nil
}
