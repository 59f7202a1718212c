package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "conv:state:"

// RedisStore keeps state in Redis so several bot instances can share it.
// Entries expire after ttl of inactivity.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore creates a RedisStore. A zero ttl keeps entries forever.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func redisKey(userID int64) string {
	return redisKeyPrefix + strconv.FormatInt(userID, 10)
}

// Get implements StateStore.
func (r *RedisStore) Get(ctx context.Context, userID int64) (State, error) {
	val, err := r.rdb.Get(ctx, redisKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return StateStart, nil
	}
	if err != nil {
		return StateStart, fmt.Errorf("failed to read conversation state: %w", err)
	}
	s := State(val)
	if !s.Valid() {
		return StateStart, nil
	}
	return s, nil
}

// Set implements StateStore. Setting start removes the key.
func (r *RedisStore) Set(ctx context.Context, userID int64, state State) error {
	if state == StateStart {
		return r.Delete(ctx, userID)
	}
	if err := r.rdb.Set(ctx, redisKey(userID), string(state), r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write conversation state: %w", err)
	}
	return nil
}

// Delete implements StateStore.
func (r *RedisStore) Delete(ctx context.Context, userID int64) error {
	if err := r.rdb.Del(ctx, redisKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete conversation state: %w", err)
	}
	return nil
}
