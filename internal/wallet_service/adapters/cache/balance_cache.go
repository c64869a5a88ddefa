package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const balanceKeyPrefix = "wallet:balance:"

// RedisBalanceCache stores account balances as decimal strings with a TTL.
type RedisBalanceCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisBalanceCache(client *redis.Client, ttl time.Duration) *RedisBalanceCache {
	return &RedisBalanceCache{client: client, ttl: ttl}
}

func balanceKey(accountID uuid.UUID) string {
	return balanceKeyPrefix + accountID.String()
}

func (c *RedisBalanceCache) Get(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, bool, error) {
	val, err := c.client.Get(ctx, balanceKey(accountID)).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("reading cached balance: %w", err)
	}
	balance, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("parsing cached balance %q: %w", val, err)
	}
	return balance, true, nil
}

func (c *RedisBalanceCache) Set(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal) error {
	if err := c.client.Set(ctx, balanceKey(accountID), balance.String(), c.ttl).Err(); err != nil {
		return fmt.Errorf("caching balance: %w", err)
	}
	return nil
}

func (c *RedisBalanceCache) Invalidate(ctx context.Context, accountID uuid.UUID) error {
	if err := c.client.Del(ctx, balanceKey(accountID)).Err(); err != nil {
		return fmt.Errorf("invalidating cached balance: %w", err)
	}
	return nil
}
