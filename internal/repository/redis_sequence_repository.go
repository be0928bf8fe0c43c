package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/sigce-api/internal/models"
)

const sequenceKeyPrefix = "folio:seq"

// RedisSequenceRepository reserves folio sequence numbers with Redis INCR,
// which is atomic per key on the server.
type RedisSequenceRepository struct {
	client redis.Cmdable
}

// NewRedisSequenceRepository constructs a Redis-backed reserver.
func NewRedisSequenceRepository(client redis.Cmdable) *RedisSequenceRepository {
	return &RedisSequenceRepository{client: client}
}

// ReserveNext increments and returns the counter for key.
func (r *RedisSequenceRepository) ReserveNext(ctx context.Context, key models.SequenceKey) (int, error) {
	if r.client == nil {
		return 0, fmt.Errorf("reserve folio sequence %s: redis not configured", key)
	}
	next, err := r.client.Incr(ctx, redisSequenceKey(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("reserve folio sequence %s: %w", key, err)
	}
	return int(next), nil
}

// Seed raises the counter to at least floor, used when migrating an existing
// certificate registry onto Redis.
func (r *RedisSequenceRepository) Seed(ctx context.Context, key models.SequenceKey, floor int) error {
	script := redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
if current < tonumber(ARGV[1]) then
  redis.call("SET", KEYS[1], ARGV[1])
end
return 1`)
	if err := script.Run(ctx, r.client, []string{redisSequenceKey(key)}, floor).Err(); err != nil {
		return fmt.Errorf("seed folio sequence %s: %w", key, err)
	}
	return nil
}

func redisSequenceKey(key models.SequenceKey) string {
	return fmt.Sprintf("%s:%s:%d:%s", sequenceKeyPrefix, key.Prefix, key.Year, key.Type)
}
