package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jmswank/neural-link/pkg/room"
)

const (
	roomKeyPrefix  = "room:"
	usageKeyPrefix = "usage:"

	// Rooms expire a day after their last write; abandoned games clean
	// themselves up.
	roomTTL = 24 * time.Hour

	// Usage counters outlive their day so yesterday's total stays
	// inspectable, then fall away.
	usageTTL = 48 * time.Hour
)

// RedisStorage implements the Storage interface using Redis
type RedisStorage struct {
	client *redis.Client
	logger *slog.Logger
}

// Ensure RedisStorage implements Storage interface
var _ Storage = (*RedisStorage)(nil)

// NewRedisStorage creates a new Redis storage instance from a redis URL
func NewRedisStorage(redisURL string, logger *slog.Logger) (*RedisStorage, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	return &RedisStorage{
		client: redis.NewClient(opts),
		logger: logger,
	}, nil
}

func (r *RedisStorage) Ping(ctx context.Context) error {
	cmd := r.client.Ping(ctx)
	if err := cmd.Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	r.logger.Debug("Redis ping successful", "result", cmd.Val())
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}

	r.logger.Info("Redis connection closed")
	return nil
}

func (r *RedisStorage) GetRoom(ctx context.Context, id string) (*room.Room, error) {
	cmd := r.client.Get(ctx, roomKeyPrefix+id)
	if err := cmd.Err(); err != nil {
		if err == redis.Nil {
			r.logger.Debug("Room not found", "room_id", id)
			return nil, ErrRoomNotFound
		}
		r.logger.Error("Redis GET failed", "room_id", id, "error", err)
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var rm room.Room
	if err := json.Unmarshal([]byte(cmd.Val()), &rm); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}
	return &rm, nil
}

func (r *RedisStorage) PutRoom(ctx context.Context, rm *room.Room) error {
	rm.UpdatedAt = time.Now()

	data, err := json.Marshal(rm)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}

	if err := r.client.Set(ctx, roomKeyPrefix+rm.ID, data, roomTTL).Err(); err != nil {
		r.logger.Error("Redis SET failed", "room_id", rm.ID, "error", err)
		return fmt.Errorf("redis set failed: %w", err)
	}

	r.logger.Debug("Room saved", "room_id", rm.ID, "turn", rm.Turn)
	return nil
}

func (r *RedisStorage) DeleteRoom(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, roomKeyPrefix+id).Err(); err != nil {
		r.logger.Error("Redis DEL failed", "room_id", id, "error", err)
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) IncrDailyUsage(ctx context.Context, dateKey string) (int64, error) {
	key := usageKeyPrefix + dateKey

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		r.logger.Error("Redis INCR failed", "key", key, "error", err)
		return 0, fmt.Errorf("redis incr failed: %w", err)
	}

	// First increment of the day sets the expiry.
	if count == 1 {
		if err := r.client.Expire(ctx, key, usageTTL).Err(); err != nil {
			r.logger.Error("Redis EXPIRE failed", "key", key, "error", err)
		}
	}

	return count, nil
}
