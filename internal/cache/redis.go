package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mlevkov/expertbooking/config"
	"github.com/mlevkov/expertbooking/internal/domain"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client   *redis.Client
	slotsTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, slotsTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:   redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		slotsTTL: slotsTTL,
	}
}

func (c *RedisCache) GetOpenSlots(ctx context.Context) ([]domain.Slot, error) {
	data, err := c.client.Get(ctx, openSlotsKey()).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var slots []domain.Slot
	if err := json.Unmarshal(data, &slots); err != nil {
		return nil, err
	}
	return slots, nil
}

func (c *RedisCache) SetOpenSlots(ctx context.Context, slots []domain.Slot) error {
	payload, err := json.Marshal(slots)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, openSlotsKey(), payload, c.slotsTTL).Err()
}

func (c *RedisCache) InvalidateOpenSlots(ctx context.Context) error {
	return c.client.Del(ctx, openSlotsKey()).Err()
}

// AcquireSlotLock is a fast-path filter in front of the database claim; the
// conditional capacity decrement remains the source of truth.
func (c *RedisCache) AcquireSlotLock(ctx context.Context, slotID int64, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, slotLockKey(slotID), "locked", ttl).Result()
}

func (c *RedisCache) ReleaseSlotLock(ctx context.Context, slotID int64) error {
	return c.client.Del(ctx, slotLockKey(slotID)).Err()
}

func openSlotsKey() string {
	return "cache:slots:open"
}

func slotLockKey(slotID int64) string {
	return fmt.Sprintf("lock:slot:%d", slotID)
}
