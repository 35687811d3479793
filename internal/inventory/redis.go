package inventory

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// reserveScript performs the check-and-increment atomically on the Redis
// side, so concurrent checkouts across processes cannot oversell.
var reserveScript = redis.NewScript(`
local reserved = tonumber(redis.call('HGET', KEYS[1], ARGV[1]) or '0')
local qty = tonumber(ARGV[2])
local stock = tonumber(ARGV[3])
if stock - reserved >= qty then
	return {1, redis.call('HINCRBY', KEYS[1], ARGV[1], qty)}
end
return {0, reserved}
`)

const reservedHashKey = "inventory:reserved"

// RedisCounter is a ReservationCounter shared across processes via Redis.
type RedisCounter struct {
	client *redis.Client
}

func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

func (c *RedisCounter) Reserve(ctx context.Context, productID string, qty, stock int) (bool, int, error) {
	res, err := reserveScript.Run(ctx, c.client, []string{reservedHashKey}, productID, qty, stock).Slice()
	if err != nil {
		return false, 0, fmt.Errorf("failed to run reserve script: %w", err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("unexpected reserve script reply: %v", res)
	}
	ok, _ := res[0].(int64)
	reserved, _ := res[1].(int64)
	return ok == 1, int(reserved), nil
}

func (c *RedisCounter) Release(ctx context.Context, productID string, qty int) error {
	reserved, err := c.client.HIncrBy(ctx, reservedHashKey, productID, int64(-qty)).Result()
	if err != nil {
		return fmt.Errorf("failed to release reservation: %w", err)
	}
	if reserved < 0 {
		// Clamp drift rather than letting availability run above stock.
		if err := c.client.HSet(ctx, reservedHashKey, productID, 0).Err(); err != nil {
			return fmt.Errorf("failed to clamp reserved count: %w", err)
		}
	}
	return nil
}

func (c *RedisCounter) Reserved(ctx context.Context, productID string) (int, error) {
	reserved, err := c.client.HGet(ctx, reservedHashKey, productID).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read reserved count: %w", err)
	}
	return reserved, nil
}
